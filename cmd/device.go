package cmd

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/anchorageoss/nsm-session/nsm"
	"github.com/anchorageoss/nsm-session/pkg/device"
)

// DeviceCommand creates the device commands
func DeviceCommand() *cli.Command {
	return &cli.Command{
		Name:  "device",
		Usage: "Talk to an NSM character device directly",
		Commands: []*cli.Command{
			probeDeviceCommand(),
		},
	}
}

func probeDeviceCommand() *cli.Command {
	return &cli.Command{
		Name:  "probe",
		Usage: "Open the device and issue a describe request",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "path",
				Usage: "Device node to probe",
				Value: device.DefaultPath,
			},
			&cli.IntFlag{
				Name:  "random",
				Usage: "Also request this many random bytes",
			},
		},
		Action: runProbeDeviceCommand,
	}
}

func runProbeDeviceCommand(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("path")
	w := stdout(cmd)

	if !device.Exists(path) {
		return fmt.Errorf("%w: %s", nsm.ErrDeviceMissing, path)
	}
	fmt.Fprintf(w, "Device: %s\n", path)

	d, err := device.Open(path)
	if err != nil {
		return err
	}
	defer d.Close()

	desc, err := d.DescribeNSM()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Describe: %s\n", truncate(hex.EncodeToString(desc), 64))

	if n := cmd.Int("random"); n > 0 {
		random, err := d.GetRandom(n)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Random: %s\n", hex.EncodeToString(random))
	}
	fmt.Fprintf(w, "%s device answered\n", success("✓"))
	return nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
