package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/anchorageoss/nsm-session/codec"
	"github.com/anchorageoss/nsm-session/config"
	"github.com/anchorageoss/nsm-session/nsm"
)

func TestParseSlotList(t *testing.T) {
	slots, err := parseSlotList(" 0, 1,,16 ")
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 16}, slots)

	slots, err = parseSlotList("")
	require.NoError(t, err)
	assert.Nil(t, slots)

	_, err = parseSlotList("1,-2")
	assert.ErrorIs(t, err, nsm.ErrInvalidArgument)
}

func TestParseSlotValue(t *testing.T) {
	tests := []struct {
		spec    string
		slot    uint32
		value   []byte
		wantErr bool
	}{
		{spec: "16:abcd", slot: 16, value: []byte{0xab, 0xcd}},
		{spec: "0:0xff", slot: 0, value: []byte{0xff}},
		{spec: "3:base64:AQI=", slot: 3, value: []byte{0x01, 0x02}},
		{spec: "4:", slot: 4, value: nil},
		{spec: "abcd", wantErr: true},
		{spec: "x:abcd", wantErr: true},
		{spec: "1:zz", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			slot, value, err := parseSlotValue(tt.spec)
			if tt.wantErr {
				assert.ErrorIs(t, err, nsm.ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.slot, slot)
			assert.Equal(t, tt.value, value)
		})
	}
}

func TestParseSlotPath(t *testing.T) {
	slot, path, err := parseSlotPath("2:/tmp/dir with space/cert.der")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), slot)
	assert.Equal(t, "/tmp/dir with space/cert.der", path)

	for _, spec := range []string{"2", "2:", "a:/tmp/c", "1,2:/tmp/c"} {
		_, _, err := parseSlotPath(spec)
		assert.ErrorIs(t, err, nsm.ErrInvalidArgument, spec)
	}
}

// captureEnv runs a command with the common flags and returns its resolved
// environment
func captureEnv(t *testing.T, args ...string) (*cmdEnv, error) {
	t.Helper()
	var env *cmdEnv
	var setupErr error
	c := &cli.Command{
		Name:  "probe",
		Flags: commonFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			env, setupErr = setup(cmd)
			return nil
		},
	}
	require.NoError(t, c.Run(context.Background(), append([]string{"probe"}, args...)))
	return env, setupErr
}

func TestSetupPrecedence(t *testing.T) {
	dir := testEnv(t)
	configPath := filepath.Join(dir, "config.yaml")
	cfg := config.DefaultConfig()
	cfg.Hash = "sha512"
	cfg.Format = "cbor"
	cfg.DevicePath = "/from/file"
	require.NoError(t, config.Save(configPath, cfg))

	t.Run("file over defaults, env over file", func(t *testing.T) {
		env, err := captureEnv(t, "--config", configPath)
		require.NoError(t, err)
		assert.Equal(t, nsm.HashSHA512, env.hash)
		assert.Equal(t, codec.FormatCBOR, env.format)
		assert.Equal(t, os.Getenv(config.EnvDevicePath), env.cfg.DevicePath)
	})

	t.Run("flags over env", func(t *testing.T) {
		t.Setenv(config.EnvHash, "sha384")
		env, err := captureEnv(t, "--config", configPath, "--hash", "sha256", "--device", "/from/flag", "--format", "json")
		require.NoError(t, err)
		assert.Equal(t, nsm.HashSHA256, env.hash)
		assert.Equal(t, codec.FormatJSON, env.format)
		assert.Equal(t, "/from/flag", env.cfg.DevicePath)
	})

	t.Run("env over file", func(t *testing.T) {
		t.Setenv(config.EnvHash, "sha384")
		env, err := captureEnv(t, "--config", configPath)
		require.NoError(t, err)
		assert.Equal(t, nsm.HashSHA384, env.hash)
	})

	t.Run("invalid values", func(t *testing.T) {
		_, err := captureEnv(t, "--hash", "md5")
		assert.ErrorIs(t, err, nsm.ErrInvalidArgument)

		_, err = captureEnv(t, "--log-level", "loud")
		assert.ErrorIs(t, err, nsm.ErrInvalidArgument)
	})
}
