package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/anchorageoss/nsm-session/manifest"
	"github.com/anchorageoss/nsm-session/nsm"
	"github.com/anchorageoss/nsm-session/verify"
)

// ManifestCommand creates the manifest commands
func ManifestCommand() *cli.Command {
	return &cli.Command{
		Name:  "manifest",
		Usage: "Author, decode and hash measurement manifests",
		Commands: []*cli.Command{
			decodeManifestCommand(),
			hashManifestCommand(),
			encodeManifestCommand(),
		},
	}
}

func manifestSourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "file",
			Usage: "Path to Borsh manifest file",
		},
		&cli.StringFlag{
			Name:  "base64",
			Usage: "Base64-encoded Borsh manifest",
		},
	}
}

// readManifest decodes the manifest named by --file or --base64
func readManifest(cmd *cli.Command) (*manifest.Manifest, []byte, error) {
	filePath := cmd.String("file")
	b64 := cmd.String("base64")

	if filePath == "" && b64 == "" {
		return nil, nil, nsm.InvalidArgument("either --file or --base64 must be provided")
	}
	if filePath != "" && b64 != "" {
		return nil, nil, nsm.InvalidArgument("only one of --file or --base64 should be provided")
	}

	var m *manifest.Manifest
	var manifestBytes []byte
	var err error
	if filePath != "" {
		m, manifestBytes, err = manifest.DecodeManifestFromFile(filePath)
	} else {
		m, manifestBytes, err = manifest.DecodeManifestFromBase64(b64)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return m, manifestBytes, nil
}

func decodeManifestCommand() *cli.Command {
	return &cli.Command{
		Name:  "decode",
		Usage: "Decode a Borsh manifest",
		Flags: append(manifestSourceFlags(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output in JSON format",
			},
		),
		Action: runDecodeManifestCommand,
	}
}

func runDecodeManifestCommand(ctx context.Context, cmd *cli.Command) error {
	m, manifestBytes, err := readManifest(cmd)
	if err != nil {
		return err
	}
	manifestHash := manifest.ComputeHash(manifestBytes)
	formatter := verify.NewFormatter()

	if cmd.Bool("json") {
		output := formatter.FormatManifestJSON(m)
		output["hash"] = manifestHash

		jsonBytes, err := json.MarshalIndent(output, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		return writeResult(cmd, "", jsonBytes, true)
	}

	w := stdout(cmd)
	fmt.Fprintln(w, heading("=== Measurement Manifest ==="))
	fmt.Fprintf(w, "Manifest Hash: %s\n\n", manifestHash)
	fmt.Fprint(w, formatter.FormatManifest(m))
	return nil
}

func hashManifestCommand() *cli.Command {
	return &cli.Command{
		Name:   "hash",
		Usage:  "Print the SHA-256 of a manifest, the value 'attest --bind-manifest' binds",
		Flags:  manifestSourceFlags(),
		Action: runHashManifestCommand,
	}
}

func runHashManifestCommand(ctx context.Context, cmd *cli.Command) error {
	_, manifestBytes, err := readManifest(cmd)
	if err != nil {
		return err
	}
	return writeResult(cmd, "", []byte(manifest.ComputeHash(manifestBytes)), true)
}

func encodeManifestCommand() *cli.Command {
	return &cli.Command{
		Name:  "encode",
		Usage: "Encode a YAML manifest into its Borsh form",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "yaml",
				Usage:    "Path to YAML manifest",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "output",
				Usage:    "Path of the Borsh manifest to write",
				Required: true,
			},
		},
		Action: runEncodeManifestCommand,
	}
}

func runEncodeManifestCommand(ctx context.Context, cmd *cli.Command) error {
	m, err := manifest.FromYAMLFile(cmd.String("yaml"))
	if err != nil {
		return err
	}
	manifestBytes, err := manifest.WriteManifestFile(cmd.String("output"), m)
	if err != nil {
		return err
	}
	fmt.Fprintf(stderr(cmd), "%s encoded %d measurements, hash %s\n",
		success("✓"), len(m.Measurements), manifest.ComputeHash(manifestBytes))
	return nil
}
