package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/anchorageoss/nsm-session/codec"
	"github.com/anchorageoss/nsm-session/manifest"
	"github.com/anchorageoss/nsm-session/nsm"
	"github.com/anchorageoss/nsm-session/verify"
)

// AttestCommand creates the attest command
func AttestCommand() *cli.Command {
	flags := append(commonFlags(), stateFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:  "user-data",
			Usage: "User data to bind, hex or 'base64:...'",
		},
		&cli.StringFlag{
			Name:  "public-key",
			Usage: "Public key to include, hex or 'base64:...'",
		},
		&cli.StringFlag{
			Name:  "nonce",
			Usage: "Nonce to include, hex or 'base64:...'",
		},
		&cli.BoolFlag{
			Name:  "bind-manifest",
			Usage: "Bind the replayed manifest's SHA-256 digest as user data",
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "Write the document to a file instead of stdout",
		},
		&cli.BoolFlag{
			Name:  "summary",
			Usage: "Print a human-readable summary to stderr",
		},
	)
	return &cli.Command{
		Name:   "attest",
		Usage:  "Produce an attestation document from a prepared session",
		Flags:  flags,
		Action: runAttestCommand,
	}
}

// attestationRequest builds the caller context from the attest flags
func attestationRequest(cmd *cli.Command, state *prepared) (nsm.AttestationRequest, error) {
	var req nsm.AttestationRequest
	var err error
	if req.UserData, err = codec.OptionalBytes(cmd.String("user-data")); err != nil {
		return req, fmt.Errorf("invalid --user-data: %w", err)
	}
	if req.PublicKey, err = codec.OptionalBytes(cmd.String("public-key")); err != nil {
		return req, fmt.Errorf("invalid --public-key: %w", err)
	}
	if req.Nonce, err = codec.OptionalBytes(cmd.String("nonce")); err != nil {
		return req, fmt.Errorf("invalid --nonce: %w", err)
	}

	if cmd.Bool("bind-manifest") {
		if state.manifestBytes == nil {
			return req, nsm.InvalidArgument("--bind-manifest requires --manifest or --manifest-yaml")
		}
		if req.UserData != nil {
			return req, nsm.InvalidArgument("--bind-manifest and --user-data are mutually exclusive")
		}
		req.UserData = manifest.Digest(state.manifestBytes)
	}
	return req, nil
}

func runAttestCommand(ctx context.Context, cmd *cli.Command) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	c, err := env.open()
	if err != nil {
		return err
	}
	defer env.close(c)

	state, err := prepare(cmd, env, c)
	if err != nil {
		return err
	}
	req, err := attestationRequest(cmd, state)
	if err != nil {
		return err
	}

	doc, err := c.GetAttestation(req)
	if err != nil {
		return err
	}
	env.logger.Info("produced attestation document",
		zap.String("module_id", doc.ModuleID),
		zap.String("digest", doc.Digest.Hex()),
		zap.Uint32s("locked_pcrs", doc.LockedPCRs))

	encoded, err := codec.EncodeDocument(doc, env.format)
	if err != nil {
		return err
	}

	if cmd.Bool("summary") {
		w := stderr(cmd)
		fmt.Fprintln(w, heading("=== Attestation ==="))
		if state.manifestBytes != nil {
			fmt.Fprintf(w, "Manifest Hash: %s\n", manifest.ComputeHash(state.manifestBytes))
		}
		fmt.Fprint(w, verify.NewFormatter().FormatDocument(doc))
	}

	return writeResult(cmd, cmd.String("output"), encoded, env.format == codec.FormatJSON)
}
