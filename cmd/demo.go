package cmd

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/anchorageoss/nsm-session/client"
	"github.com/anchorageoss/nsm-session/codec"
	"github.com/anchorageoss/nsm-session/nsm"
)

// DemoCommand creates the demo command
func DemoCommand() *cli.Command {
	return &cli.Command{
		Name:  "demo",
		Usage: "Log random bytes and an attestation, optionally on a keep-alive loop",
		Flags: append(commonFlags(),
			&cli.BoolFlag{
				Name:    "keep-alive",
				Aliases: []string{"k"},
				Usage:   "Keep running, retrying the session open and emitting on every interval",
			},
			&cli.DurationFlag{
				Name:    "keep-duration",
				Aliases: []string{"s"},
				Usage:   "How long --keep-alive runs",
				Value:   300 * time.Second,
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Time between iterations (default from config)",
			},
			&cli.IntFlag{
				Name:  "iterations",
				Usage: "Stop after this many iterations (0 runs until the duration elapses)",
			},
		),
		Action: runDemoCommand,
	}
}

func runDemoCommand(ctx context.Context, cmd *cli.Command) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	interval := env.cfg.Demo.Interval
	if cmd.IsSet("interval") {
		interval = cmd.Duration("interval")
	}
	if interval <= 0 {
		return nsm.InvalidArgument("interval must be positive")
	}

	if !cmd.Bool("keep-alive") {
		c, err := env.open()
		if err != nil {
			return err
		}
		defer env.close(c)
		env.logger.Info("NSM device path", zap.String("device_path", c.DevicePath()))
		return demoIteration(env, c)
	}

	ctx, cancel := context.WithTimeout(ctx, cmd.Duration("keep-duration"))
	defer cancel()
	env.logger.Info("keep-alive requested",
		zap.Duration("interval", interval),
		zap.Duration("duration", cmd.Duration("keep-duration")))

	return keepAlive(ctx, env, interval, cmd.Int("iterations"))
}

// keepAlive retries opening the session until it succeeds, then emits one
// iteration per interval. It returns nil when ctx ends or the iteration
// budget is spent, and the last open error if the session never opened.
func keepAlive(ctx context.Context, env *cmdEnv, interval time.Duration, iterations int) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var c *client.Client
	var openErr error
	done := 0
	for {
		if c == nil {
			if c, openErr = env.open(); openErr != nil {
				c = nil
				env.logger.Warn("failed to open NSM session, will retry", zap.Error(openErr))
			} else {
				env.logger.Info("NSM device path", zap.String("device_path", c.DevicePath()))
				defer env.close(c)
			}
		}
		if c != nil {
			if err := demoIteration(env, c); err != nil {
				env.logger.Error("iteration failed, will retry", zap.Error(err))
			}
			done++
			if iterations > 0 && done >= iterations {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			if c == nil {
				return errors.Join(openErr, errors.New("timed out waiting for the NSM session"))
			}
			return nil
		case <-ticker.C:
		}
	}
}

func demoIteration(env *cmdEnv, c *client.Client) error {
	random, err := c.GetRandom(env.cfg.Demo.RandomBytes)
	if err != nil {
		return err
	}
	env.logger.Info("random", zap.String("hex", hex.EncodeToString(random)))

	doc, err := c.GetAttestation(nsm.AttestationRequest{})
	if err != nil {
		return err
	}
	payload, err := codec.EncodeDocument(doc, codec.FormatJSON)
	if err != nil {
		return err
	}
	env.logger.Info("attestation payload", zap.ByteString("document", payload))
	return nil
}
