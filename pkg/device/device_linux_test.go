//go:build linux

package device

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestOpenMissingDevice(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.ErrorIs(t, err, unix.ENOENT)
}

func TestRequestOnNonDevice(t *testing.T) {
	d, err := Open("/dev/null")
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	assert.True(t, d.IsOpen())
	assert.Equal(t, "/dev/null", d.Path())

	_, err = d.GetRandom(16)
	require.Error(t, err)
	assert.ErrorIs(t, err, unix.ENOTTY)
	assert.Contains(t, err.Error(), "ioctl request 0xc0040001 failed")

	_, err = d.ExtendPCR(3, []byte("data"))
	assert.ErrorIs(t, err, unix.ENOTTY)

	_, err = d.GetRandom(0)
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	d, err := Open("/dev/null")
	require.NoError(t, err)

	require.NoError(t, d.Close())
	assert.False(t, d.IsOpen())
	require.NoError(t, d.Close())

	_, err = d.DescribeNSM()
	assert.ErrorIs(t, err, ErrNotOpen)
	_, err = d.DescribePCR(0)
	assert.ErrorIs(t, err, ErrNotOpen)
}
