package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/anchorageoss/nsm-session/codec"
	"github.com/anchorageoss/nsm-session/manifest"
	"github.com/anchorageoss/nsm-session/verify"
)

// VerifyCommand creates the verify command
func VerifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "Verify an attestation document offline",
		Flags: append(commonFlags(),
			&cli.StringFlag{
				Name:     "document",
				Usage:    "Attestation document file produced by 'attest'",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "pcrs",
				Usage: "Expected register values, e.g. '0:<hex>,16:<hex>'",
			},
			&cli.StringFlag{
				Name:  "user-data",
				Usage: "Expected user data (hex)",
			},
			&cli.StringFlag{
				Name:  "nonce",
				Usage: "Expected nonce (hex)",
			},
			&cli.StringFlag{
				Name:  "module-id",
				Usage: "Expected module id",
			},
			&cli.StringFlag{
				Name:  "manifest",
				Usage: "Borsh manifest file whose digest must be the document's user data",
			},
			&cli.StringFlag{
				Name:  "require-locked",
				Usage: "Comma-separated registers that must be locked",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output in JSON format",
			},
		),
		Action: runVerifyCommand,
	}
}

func runVerifyCommand(ctx context.Context, cmd *cli.Command) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = env.logger.Sync() }()

	documentBytes, err := os.ReadFile(cmd.String("document"))
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}
	doc, err := codec.DecodeDocument(documentBytes, env.format)
	if err != nil {
		return err
	}

	rules, err := ParsePCRs(cmd.String("pcrs"))
	if err != nil {
		return err
	}
	requireLocked, err := parseSlotList(cmd.String("require-locked"))
	if err != nil {
		return err
	}
	req := &verify.VerifyRequest{
		ExpectedPCRs:        rules,
		ExpectedUserDataHex: cmd.String("user-data"),
		ExpectedNonceHex:    cmd.String("nonce"),
		ExpectedModuleID:    cmd.String("module-id"),
		RequireLocked:       requireLocked,
	}
	if path := cmd.String("manifest"); path != "" {
		_, manifestBytes, err := manifest.DecodeManifestFromFile(path)
		if err != nil {
			return fmt.Errorf("failed to decode manifest: %w", err)
		}
		req.ManifestBytes = manifestBytes
	}

	result, verifyErr := verify.NewService(env.hash, env.logger).Verify(doc, req)
	if result == nil {
		return verifyErr
	}
	env.logger.Info("verified attestation document",
		zap.String("module_id", result.ModuleID),
		zap.Bool("valid", result.Valid))

	if cmd.Bool("json") {
		jsonBytes, err := json.MarshalIndent(verify.NewFormatter().FormatVerificationResult(result), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		if err := writeResult(cmd, "", jsonBytes, true); err != nil {
			return err
		}
	} else {
		printVerification(stdout(cmd), result)
	}

	return verifyErr
}

func printVerification(w io.Writer, result *verify.VerifyResult) {
	check := func(name string, ok bool) {
		mark := success("✓")
		if !ok {
			mark = failure("✗")
		}
		fmt.Fprintf(w, "  %s %s\n", mark, name)
	}

	fmt.Fprintln(w, heading("=== Attestation Verification ==="))
	fmt.Fprintf(w, "Module ID: %s\n", result.ModuleID)
	fmt.Fprintf(w, "Digest: %s\n", result.Digest)
	if result.ManifestHash != "" {
		fmt.Fprintf(w, "Manifest Hash: %s\n", result.ManifestHash)
	}
	fmt.Fprintln(w)
	check("Digest", result.DigestValid)
	check("PCRs", result.PCRsValid)
	check("User data", result.UserDataValid)
	check("Nonce", result.NonceValid)
	check("Module ID", result.ModuleIDValid)
	check("Locks", result.LocksValid)

	for _, pcr := range result.PCRValidationResults {
		if !pcr.Valid {
			fmt.Fprintf(w, "    PCR[%d] expected %s, got %s\n", pcr.Index, pcr.Expected, pcr.Actual)
		}
	}
	fmt.Fprint(w, verify.NewFormatter().FormatPCRValues(result.PCRs, result.LockedPCRs, "PCRs", ""))

	if result.Valid {
		fmt.Fprintf(w, "\n%s\n", success("Attestation document is valid"))
		return
	}
	fmt.Fprintf(w, "\n%s\n", failure("Attestation document is NOT valid"))
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  - %s\n", e)
	}
}
