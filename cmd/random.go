package cmd

import (
	"context"
	"encoding/hex"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// RandomCommand creates the random command
func RandomCommand() *cli.Command {
	return &cli.Command{
		Name:  "random",
		Usage: "Draw random bytes from the session",
		Flags: append(commonFlags(),
			&cli.IntFlag{
				Name:  "length",
				Usage: "Number of bytes to draw",
				Value: 32,
			},
		),
		Action: runRandomCommand,
	}
}

func runRandomCommand(ctx context.Context, cmd *cli.Command) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	c, err := env.open()
	if err != nil {
		return err
	}
	defer env.close(c)

	random, err := c.GetRandom(cmd.Int("length"))
	if err != nil {
		return err
	}
	env.logger.Debug("drew random bytes", zap.Int("length", len(random)))

	return writeResult(cmd, "", []byte(hex.EncodeToString(random)), true)
}
