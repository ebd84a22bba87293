package cmd

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/anchorageoss/nsm-session/codec"
	"github.com/anchorageoss/nsm-session/verify"
)

// DescribeCommand creates the describe command
func DescribeCommand() *cli.Command {
	flags := append(commonFlags(), stateFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:  "pcr",
			Usage: "Comma-separated registers to describe, e.g. '0,16'",
		},
		&cli.StringFlag{
			Name:  "show-certificate",
			Usage: "Comma-separated certificate slots to print",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output in JSON format",
		},
	)
	return &cli.Command{
		Name:   "describe",
		Usage:  "Describe the session, its registers and certificates",
		Flags:  flags,
		Action: runDescribeCommand,
	}
}

type describeOutput struct {
	Module       json.RawMessage   `json:"module"`
	PCRs         []codec.PCRJSON   `json:"pcrs,omitempty"`
	Certificates map[string]string `json:"certificates,omitempty"`
}

func runDescribeCommand(ctx context.Context, cmd *cli.Command) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	c, err := env.open()
	if err != nil {
		return err
	}
	defer env.close(c)

	if _, err := prepare(cmd, env, c); err != nil {
		return err
	}

	pcrSlots, err := parseSlotList(cmd.String("pcr"))
	if err != nil {
		return err
	}
	certSlots, err := parseSlotList(cmd.String("show-certificate"))
	if err != nil {
		return err
	}

	desc, err := c.DescribeNSM()
	if err != nil {
		return err
	}

	var out describeOutput
	for _, slot := range pcrSlots {
		pcr, err := c.DescribePCR(slot)
		if err != nil {
			return err
		}
		out.PCRs = append(out.PCRs, codec.PCRJSON{Index: pcr.Index, Digest: pcr.Digest.Hex(), Locked: pcr.Locked})
	}
	for _, slot := range certSlots {
		cert, err := c.DescribeCertificate(slot)
		if err != nil {
			return err
		}
		if out.Certificates == nil {
			out.Certificates = make(map[string]string)
		}
		out.Certificates[fmt.Sprint(slot)] = hex.EncodeToString(cert)
	}

	if cmd.Bool("json") {
		if out.Module, err = codec.EncodeModuleDescription(desc); err != nil {
			return err
		}
		jsonBytes, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		return writeResult(cmd, "", jsonBytes, true)
	}

	w := stdout(cmd)
	fmt.Fprint(w, verify.NewFormatter().FormatModuleDescription(desc))
	for _, pcr := range out.PCRs {
		suffix := ""
		if pcr.Locked {
			suffix = " (locked)"
		}
		fmt.Fprintf(w, "  PCR[%d]: %s%s\n", pcr.Index, pcr.Digest, suffix)
	}
	for _, slot := range certSlots {
		fmt.Fprintf(w, "  Certificate[%d]: %s\n", slot, out.Certificates[fmt.Sprint(slot)])
	}
	return nil
}
