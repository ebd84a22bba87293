package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/anchorageoss/nsm-session/cmd"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "nsm-session",
		Usage: "Software model of the Nitro Secure Module",
		Commands: []*cli.Command{
			cmd.RandomCommand(),
			cmd.AttestCommand(),
			cmd.DescribeCommand(),
			cmd.VerifyCommand(),
			cmd.ManifestCommand(),
			cmd.DemoCommand(),
			cmd.DeviceCommand(),
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		stop()
		os.Exit(cmd.WriteError(os.Stderr, err, false))
	}
}
