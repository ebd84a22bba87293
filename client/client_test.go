package client

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anchorageoss/nsm-session/nsm"
)

func fakeDevice(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nsm.sock")
	require.NoError(t, os.WriteFile(path, nil, 0600))
	return path
}

func openClient(t *testing.T) *Client {
	t.Helper()
	c := New(Options{DevicePath: fakeDevice(t)})
	require.NoError(t, c.Open())
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestOpenAndClose(t *testing.T) {
	c := New(Options{DevicePath: fakeDevice(t)})
	assert.False(t, c.IsOpen())

	require.NoError(t, c.Open())
	assert.True(t, c.IsOpen())

	data, err := c.GetRandom(32)
	require.NoError(t, err)
	assert.Len(t, data, 32)

	require.NoError(t, c.Close())
	assert.False(t, c.IsOpen())
	require.NoError(t, c.Close())
}

func TestReopenCreatesFreshSession(t *testing.T) {
	c := openClient(t)
	_, err := c.ExtendPCR(0, []byte("boot"))
	require.NoError(t, err)
	first, err := c.DescribeNSM()
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Open())

	second, err := c.DescribeNSM()
	require.NoError(t, err)
	assert.NotEqual(t, first.ModuleID, second.ModuleID)

	pcr, err := c.DescribePCR(0)
	require.NoError(t, err)
	assert.True(t, pcr.Digest.IsZero())
}

func TestOpenIsIdempotent(t *testing.T) {
	c := openClient(t)
	before, err := c.DescribeNSM()
	require.NoError(t, err)

	require.NoError(t, c.Open())
	after, err := c.DescribeNSM()
	require.NoError(t, err)
	assert.Equal(t, before.ModuleID, after.ModuleID)
}

func TestRequiresOpen(t *testing.T) {
	c := New(Options{DevicePath: fakeDevice(t)})

	_, err := c.GetRandom(8)
	assert.ErrorIs(t, err, nsm.ErrSessionClosed)
	assert.Contains(t, err.Error(), "not open")

	_, err = c.GetAttestation(nsm.AttestationRequest{})
	assert.ErrorIs(t, err, nsm.ErrSessionClosed)
}

func TestClosedClientFails(t *testing.T) {
	c := openClient(t)
	require.NoError(t, c.Close())

	_, err := c.DescribePCR(0)
	assert.ErrorIs(t, err, nsm.ErrSessionClosed)
}

func TestMissingDevice(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.sock")
	c := New(Options{DevicePath: missing})

	err := c.Open()
	assert.ErrorIs(t, err, nsm.ErrDeviceMissing)
	assert.False(t, c.IsOpen())
}

func TestDevicePath(t *testing.T) {
	assert.Equal(t, nsm.DefaultDevicePath, New(Options{}).DevicePath())

	path := fakeDevice(t)
	c := New(Options{DevicePath: path})
	assert.Equal(t, path, c.DevicePath())
	require.NoError(t, c.Open())
	assert.Equal(t, path, c.DevicePath())
}

func TestCustomOpener(t *testing.T) {
	path := fakeDevice(t)
	var opened []string
	c := New(Options{
		DevicePath: "ignored",
		Opener: func(devicePath string) (Session, error) {
			opened = append(opened, devicePath)
			s, err := nsm.New(path)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
	})
	require.NoError(t, c.Open())
	assert.Equal(t, []string{"ignored"}, opened)

	failing := New(Options{Opener: func(string) (Session, error) {
		return nil, errors.New("transport down")
	}})
	err := failing.Open()
	assert.ErrorContains(t, err, "transport down")
}

func TestGetRandomValidatesLength(t *testing.T) {
	c := openClient(t)
	_, err := c.GetRandom(0)
	assert.ErrorIs(t, err, nsm.ErrInvalidRandomLength)
}

func TestDescribeAndExtendPCR(t *testing.T) {
	c := openClient(t)

	original, err := c.DescribePCR(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), original.Index)
	assert.True(t, original.Digest.IsZero())
	assert.False(t, original.Locked)

	updated, err := c.ExtendPCR(0, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, uint32(0), updated.Index)
	assert.NotEqual(t, original.Digest, updated.Digest)
	assert.False(t, updated.Locked)

	latest, err := c.DescribePCR(0)
	require.NoError(t, err)
	assert.Equal(t, updated, latest)
}

func TestExtendPCRRejectsEmptyPayload(t *testing.T) {
	c := openClient(t)
	_, err := c.ExtendPCR(0, nil)
	assert.ErrorIs(t, err, nsm.ErrInvalidArgument)
}

func TestInvalidPCRSlot(t *testing.T) {
	c := openClient(t)
	_, err := c.DescribePCR(999)
	assert.ErrorIs(t, err, nsm.ErrInvalidPCRSlot)
}

func TestCertificateLifecycle(t *testing.T) {
	cert := []byte("-----BEGIN CERTIFICATE-----\nFAKE\n-----END CERTIFICATE-----")
	c := openClient(t)

	require.NoError(t, c.SetCertificate(0, cert))
	got, err := c.DescribeCertificate(0)
	require.NoError(t, err)
	assert.Equal(t, cert, got)

	require.NoError(t, c.RemoveCertificate(0))
	_, err = c.DescribeCertificate(0)
	assert.ErrorIs(t, err, nsm.ErrCertificateNotFound)

	assert.ErrorIs(t, c.SetCertificate(1, nil), nsm.ErrInvalidArgument)
}

func TestPCRLockingPreventsExtensions(t *testing.T) {
	c := openClient(t)
	require.NoError(t, c.LockPCR(0))

	info, err := c.DescribePCR(0)
	require.NoError(t, err)
	assert.True(t, info.Locked)

	_, err = c.ExtendPCR(0, []byte("later"))
	assert.ErrorIs(t, err, nsm.ErrPCRLocked)
}

func TestLockRangeAffectsPrefix(t *testing.T) {
	c := openClient(t)
	require.NoError(t, c.LockPCRs(2))

	for slot, locked := range []bool{true, true, false} {
		pcr, err := c.DescribePCR(uint32(slot))
		require.NoError(t, err)
		assert.Equal(t, locked, pcr.Locked, "PCR[%d]", slot)
	}
}

func TestDescribeNSMIncludesMetadata(t *testing.T) {
	c := openClient(t)
	require.NoError(t, c.LockPCR(1))

	desc, err := c.DescribeNSM()
	require.NoError(t, err)
	assert.NotEmpty(t, desc.ModuleID)
	assert.GreaterOrEqual(t, desc.PCRSlots, 32)
	assert.Contains(t, desc.LockedPCRs, uint32(1))
}

func TestGetAttestationReturnsDocument(t *testing.T) {
	c := openClient(t)
	doc, err := c.GetAttestation(nsm.AttestationRequest{UserData: []byte("payload"), Nonce: []byte("123")})
	require.NoError(t, err)

	assert.NotEmpty(t, doc.ModuleID)
	assert.NotZero(t, doc.Timestamp)
	assert.False(t, doc.Digest.IsZero())
	assert.Equal(t, []byte("payload"), doc.UserData)
	assert.Equal(t, []byte("123"), doc.Nonce)
	assert.Contains(t, doc.PCRs, uint32(0))
	assert.Empty(t, doc.LockedPCRs)
}

func TestGetAttestationRaw(t *testing.T) {
	c := openClient(t)
	raw, err := c.GetAttestationRaw(nsm.AttestationRequest{UserData: []byte{0xca, 0xfe}})
	require.NoError(t, err)

	require.NotNil(t, raw.UserData)
	assert.Equal(t, "cafe", *raw.UserData)
	assert.Nil(t, raw.Nonce)
	assert.Nil(t, raw.PublicKey)
	assert.Len(t, raw.PCRs, nsm.PCRSlots)
	assert.Len(t, raw.Digest, 2*nsm.DigestSize)
}
