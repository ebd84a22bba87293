package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/anchorageoss/nsm-session/client"
	"github.com/anchorageoss/nsm-session/manifest"
	"github.com/anchorageoss/nsm-session/nsm"
)

// stateFlags returns the flags that shape a session before it is used:
// manifest replay, ad hoc extensions, certificates and locks, applied in that
// order
func stateFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "manifest",
			Usage: "Borsh manifest file to replay into the session",
		},
		&cli.StringFlag{
			Name:  "manifest-yaml",
			Usage: "YAML manifest to replay into the session",
		},
		&cli.StringSliceFlag{
			Name:  "extend",
			Usage: "Extend a register, 'slot:hex' or 'slot:base64:...' (repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "certificate",
			Usage: "Install a certificate file, 'slot:path' (repeatable)",
		},
		&cli.StringFlag{
			Name:  "lock",
			Usage: "Comma-separated registers to lock, e.g. '0,1,16'",
		},
		&cli.IntFlag{
			Name:  "lock-range",
			Usage: "Lock registers 0..n-1",
		},
	}
}

// prepared describes the state applied to a session
type prepared struct {
	// manifestBytes is nil when no manifest was replayed
	manifestBytes []byte
	manifest      *manifest.Manifest
}

// loadManifest reads whichever manifest flag is set
func loadManifest(cmd *cli.Command) (*manifest.Manifest, []byte, error) {
	borshPath := cmd.String("manifest")
	yamlPath := cmd.String("manifest-yaml")
	switch {
	case borshPath != "" && yamlPath != "":
		return nil, nil, nsm.InvalidArgument("only one of --manifest or --manifest-yaml should be provided")
	case borshPath != "":
		m, manifestBytes, err := manifest.DecodeManifestFromFile(borshPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decode manifest: %w", err)
		}
		return m, manifestBytes, nil
	case yamlPath != "":
		m, err := manifest.FromYAMLFile(yamlPath)
		if err != nil {
			return nil, nil, err
		}
		manifestBytes, err := manifest.Encode(m)
		if err != nil {
			return nil, nil, err
		}
		return m, manifestBytes, nil
	}
	return nil, nil, nil
}

// prepare applies the state flags to an open client
func prepare(cmd *cli.Command, env *cmdEnv, c *client.Client) (*prepared, error) {
	out := &prepared{}
	m, manifestBytes, err := loadManifest(cmd)
	if err != nil {
		return nil, err
	}
	if m != nil {
		session, err := c.Session()
		if err != nil {
			return nil, err
		}
		if _, err := m.Apply(session, env.logger); err != nil {
			return nil, fmt.Errorf("failed to apply manifest: %w", err)
		}
		out.manifest = m
		out.manifestBytes = manifestBytes
		env.logger.Info("replayed manifest",
			zap.String("namespace", m.Namespace.Name),
			zap.String("hash", manifest.ComputeHash(manifestBytes)))
	}

	for _, spec := range cmd.StringSlice("extend") {
		slot, data, err := parseSlotValue(spec)
		if err != nil {
			return nil, err
		}
		pcr, err := c.ExtendPCR(slot, data)
		if err != nil {
			return nil, err
		}
		env.logger.Debug("extended PCR", zap.Uint32("slot", pcr.Index), zap.String("digest", pcr.Digest.Hex()))
	}

	for _, spec := range cmd.StringSlice("certificate") {
		slot, path, err := parseSlotPath(spec)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read certificate: %w", err)
		}
		if err := c.SetCertificate(slot, data); err != nil {
			return nil, err
		}
	}

	if n := cmd.Int("lock-range"); n != 0 {
		if n < 0 {
			return nil, nsm.InvalidArgument("lock range must not be negative")
		}
		if err := c.LockPCRs(uint32(min(n, nsm.PCRSlots))); err != nil {
			return nil, err
		}
	}
	locks, err := parseSlotList(cmd.String("lock"))
	if err != nil {
		return nil, err
	}
	for _, slot := range locks {
		if err := c.LockPCR(slot); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func parseSlotPath(spec string) (uint32, string, error) {
	slot, path, ok := strings.Cut(spec, ":")
	if !ok || path == "" {
		return 0, "", nsm.InvalidArgument("invalid certificate '%s': expected format 'slot:path'", spec)
	}
	slots, err := parseSlotList(slot)
	if err != nil || len(slots) != 1 {
		return 0, "", nsm.InvalidArgument("invalid certificate slot '%s'", slot)
	}
	return slots[0], path, nil
}
