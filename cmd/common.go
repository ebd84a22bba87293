package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/anchorageoss/nsm-session/client"
	"github.com/anchorageoss/nsm-session/codec"
	"github.com/anchorageoss/nsm-session/config"
	"github.com/anchorageoss/nsm-session/nsm"
)

// commonFlags returns the flags every session command accepts
func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to YAML config file (default ~/.config/nsm-session/config.yaml)",
		},
		&cli.StringFlag{
			Name:  "device",
			Usage: "NSM device path checked when the session opens",
		},
		&cli.StringFlag{
			Name:  "hash",
			Usage: "Register hash algorithm: sha256, sha384, sha512",
		},
		&cli.StringFlag{
			Name:  "format",
			Usage: "Document format: json, cbor",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
	}
}

// cmdEnv is the resolved configuration of a single command invocation
type cmdEnv struct {
	cfg    *config.Config
	hash   nsm.HashAlg
	format codec.Format
	logger *zap.Logger
}

// setup resolves configuration with precedence flags > environment > file >
// defaults
func setup(cmd *cli.Command) (*cmdEnv, error) {
	path := cmd.String("config")
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.LoadFromEnv()

	overrides := map[string]*string{
		"device":    &cfg.DevicePath,
		"hash":      &cfg.Hash,
		"format":    &cfg.Format,
		"log-level": &cfg.LogLevel,
	}
	for name, field := range overrides {
		if cmd.IsSet(name) {
			*field = cmd.String(name)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hash, err := cfg.HashAlg()
	if err != nil {
		return nil, err
	}
	format, err := codec.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return &cmdEnv{cfg: cfg, hash: hash, format: format, logger: logger}, nil
}

// newLogger builds a console logger on stderr at the given level
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, nsm.InvalidArgument("invalid log level %q", level)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.DisableStacktrace = true
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// open creates and opens a client for the invocation's device and hash
func (env *cmdEnv) open() (*client.Client, error) {
	c := client.New(client.Options{
		DevicePath:     env.cfg.DevicePath,
		Logger:         env.logger,
		SessionOptions: []nsm.Option{nsm.WithHashAlg(env.hash)},
	})
	if err := c.Open(); err != nil {
		return nil, err
	}
	return c, nil
}

func (env *cmdEnv) close(c *client.Client) {
	if err := c.Close(); err != nil {
		env.logger.Warn("failed to close session", zap.Error(err))
	}
	_ = env.logger.Sync()
}

// parseSlotList parses "0,1,16" into register indices
func parseSlotList(spec string) ([]uint32, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil
	}
	var slots []uint32
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		slot, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, nsm.InvalidArgument("invalid slot '%s'", part)
		}
		slots = append(slots, uint32(slot))
	}
	return slots, nil
}

// parseSlotValue parses "slot:value" where value is hex or "base64:" data
func parseSlotValue(spec string) (uint32, []byte, error) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 {
		return 0, nil, nsm.InvalidArgument("invalid specification '%s': expected format 'slot:value'", spec)
	}
	slot, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 32)
	if err != nil {
		return 0, nil, nsm.InvalidArgument("invalid slot '%s'", parts[0])
	}
	value, err := codec.OptionalBytes(parts[1])
	if err != nil {
		return 0, nil, err
	}
	return uint32(slot), value, nil
}
