package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anchorageoss/nsm-session/nsm"
)

func newSession(t *testing.T) *nsm.Session {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nsm.sock")
	require.NoError(t, os.WriteFile(path, nil, 0600))
	s, err := nsm.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestApply(t *testing.T) {
	s := newSession(t)
	m := sampleManifest()

	report, err := m.Apply(s, nil)
	require.NoError(t, err)
	require.Len(t, report.Extended, 3)
	assert.Equal(t, []uint32{0}, report.Certificates)
	assert.Equal(t, []uint32{0, 1, 16}, report.Locked)

	// The same measurements replayed into a fresh session by hand
	reference := newSession(t)
	for _, ms := range m.Measurements {
		_, err := reference.ExtendPCR(ms.Slot, ms.Data)
		require.NoError(t, err)
	}
	for _, slot := range []uint32{0, 16} {
		want, err := reference.DescribePCR(slot)
		require.NoError(t, err)
		got, err := s.DescribePCR(slot)
		require.NoError(t, err)
		assert.Equal(t, want, got, "PCR[%d]", slot)
	}
	assert.Equal(t, report.Extended[2].Digest, mustDescribe(t, s, 16))

	cert, err := s.DescribeCertificate(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("device-cert"), cert)

	desc, err := s.DescribeModule()
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 16}, desc.LockedPCRs)
}

func TestApplyMeasuredPolicy(t *testing.T) {
	s := newSession(t)
	m := &Manifest{
		Measurements: []Measurement{
			{Slot: 8, Description: "app", Data: []byte("a")},
			{Slot: 9, Description: "config", Data: []byte("b")},
		},
		Policy: LockPolicyMeasured,
	}

	report, err := m.Apply(s, nil)
	require.NoError(t, err)
	assert.Equal(t, []uint32{8, 9}, report.Locked)

	_, err = s.ExtendPCR(9, []byte("late"))
	assert.ErrorIs(t, err, nsm.ErrPCRLocked)
}

func TestApplyStopsAtLockedRegister(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.LockPCR(16))

	report, err := sampleManifest().Apply(s, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, nsm.ErrPCRLocked)
	assert.Contains(t, err.Error(), "measurement 2 (app)")
	assert.Len(t, report.Extended, 2)
	assert.Empty(t, report.Certificates)
}

func TestApplyClosedSession(t *testing.T) {
	s := newSession(t)
	require.NoError(t, s.Close())

	_, err := sampleManifest().Apply(s, nil)
	assert.ErrorIs(t, err, nsm.ErrSessionClosed)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *Manifest)
	}{
		{"measurement slot", func(m *Manifest) { m.Measurements[0].Slot = nsm.PCRSlots }},
		{"empty measurement", func(m *Manifest) { m.Measurements[1].Data = nil }},
		{"certificate slot", func(m *Manifest) { m.Certificates[0].Slot = nsm.CertificateSlots }},
		{"empty certificate", func(m *Manifest) { m.Certificates[0].Data = []byte{} }},
		{"lock slot", func(m *Manifest) { m.Locks = append(m.Locks, 99) }},
		{"policy", func(m *Manifest) { m.Policy = LockPolicy(7) }},
	}

	require.NoError(t, sampleManifest().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := sampleManifest()
			tt.mutate(m)
			err := m.Validate()
			assert.ErrorIs(t, err, nsm.ErrInvalidArgument)

			_, applyErr := m.Apply(newSession(t), nil)
			assert.True(t, errors.Is(applyErr, nsm.ErrInvalidArgument))
		})
	}
}

func TestLockSetClampsRange(t *testing.T) {
	m := &Manifest{LockRange: 100, Locks: []uint32{3}}
	set := m.LockSet()
	assert.Len(t, set, nsm.PCRSlots)
	assert.Equal(t, uint32(0), set[0])
	assert.Equal(t, uint32(31), set[len(set)-1])
}

func mustDescribe(t *testing.T, s *nsm.Session, slot uint32) nsm.Digest {
	t.Helper()
	d, err := s.DescribePCR(slot)
	require.NoError(t, err)
	return d
}
