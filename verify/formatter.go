package verify

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/anchorageoss/nsm-session/manifest"
	"github.com/anchorageoss/nsm-session/nsm"
)

// Formatter formats attestation, verification and manifest data for display
type Formatter struct{}

// NewFormatter creates a new formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

// FormatPCRValues formats PCR values in slot order. Consecutive all-zero
// registers are collapsed into a range and locked registers are marked.
func (f *Formatter) FormatPCRValues(pcrs map[uint32]nsm.Digest, locked []uint32, title string, indent string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("\n%s%s:\n", indent, title))

	isLocked := make(map[uint32]bool, len(locked))
	for _, slot := range locked {
		isLocked[slot] = true
	}
	suffix := func(idx uint32) string {
		if isLocked[idx] {
			return " (locked)"
		}
		return ""
	}

	var zero nsm.Digest
	writeZeroRange := func(start, end uint32) {
		if start == end {
			sb.WriteString(fmt.Sprintf("%s    PCR[%d]: %s (all zeros)%s\n", indent, start, zero.Hex(), suffix(start)))
			return
		}
		sb.WriteString(fmt.Sprintf("%s    PCR[%d-%d]: %s (all zeros)\n", indent, start, end, zero.Hex()))
	}

	// Zero registers only share a range when their lock state matches
	inRange := false
	var start, end uint32
	for idx := uint32(0); idx < nsm.PCRSlots; idx++ {
		pcr, exists := pcrs[idx]
		if exists && pcr.IsZero() && !isLocked[idx] {
			if !inRange {
				start, inRange = idx, true
			}
			end = idx
			continue
		}
		if inRange {
			writeZeroRange(start, end)
			inRange = false
		}
		if !exists {
			continue
		}
		sb.WriteString(fmt.Sprintf("%s    PCR[%d]: %s%s\n", indent, idx, pcr.Hex(), suffix(idx)))
	}
	if inRange {
		writeZeroRange(start, end)
	}

	return sb.String()
}

// FormatDocument formats an attestation document for display
func (f *Formatter) FormatDocument(doc *nsm.AttestationDocument) string {
	var sb strings.Builder

	sb.WriteString("Attestation Document:\n")
	sb.WriteString(fmt.Sprintf("  Module ID: %s\n", doc.ModuleID))
	sb.WriteString(fmt.Sprintf("  Timestamp: %d\n", doc.Timestamp))
	sb.WriteString(fmt.Sprintf("  Digest: %s\n", doc.Digest.Hex()))
	sb.WriteString(fmt.Sprintf("  Locked PCRs: %v\n", doc.LockedPCRs))
	sb.WriteString(fmt.Sprintf("  Certificate: %s\n", formatOptional(doc.Certificate)))
	sb.WriteString(fmt.Sprintf("  User Data: %s\n", formatOptional(doc.UserData)))
	sb.WriteString(fmt.Sprintf("  Public Key: %s\n", formatOptional(doc.PublicKey)))
	sb.WriteString(fmt.Sprintf("  Nonce: %s\n", formatOptional(doc.Nonce)))
	sb.WriteString(f.FormatPCRValues(doc.PCRs, doc.LockedPCRs, "PCRs", "  "))

	return sb.String()
}

// FormatModuleDescription formats session metadata for display
func (f *Formatter) FormatModuleDescription(desc *nsm.ModuleDescription) string {
	var sb strings.Builder

	sb.WriteString("NSM Module:\n")
	sb.WriteString(fmt.Sprintf("  Module ID: %s\n", desc.ModuleID))
	sb.WriteString(fmt.Sprintf("  Device: %s\n", desc.DevicePath))
	sb.WriteString(fmt.Sprintf("  Hash: %s\n", desc.HashAlgorithm))
	sb.WriteString(fmt.Sprintf("  PCR Slots: %d\n", desc.PCRSlots))
	sb.WriteString(fmt.Sprintf("  Locked PCRs: %v\n", desc.LockedPCRs))
	sb.WriteString(fmt.Sprintf("  Certificates: %d/%d\n", desc.Certificates, desc.CertificateSlots))

	return sb.String()
}

// FormatManifest formats manifest details for display
func (f *Formatter) FormatManifest(m *manifest.Manifest) string {
	var sb strings.Builder

	sb.WriteString("Namespace:\n")
	sb.WriteString(fmt.Sprintf("  Name: %s\n", m.Namespace.Name))
	sb.WriteString(fmt.Sprintf("  Nonce: %d\n", m.Namespace.Nonce))

	sb.WriteString(fmt.Sprintf("\nMeasurements (%d):\n", len(m.Measurements)))
	for i, ms := range m.Measurements {
		sb.WriteString(fmt.Sprintf("  %d. PCR[%d] %s (%s)\n", i+1, ms.Slot, ms.Description, truncateHex(ms.Data)))
	}

	sb.WriteString(fmt.Sprintf("\nCertificates (%d):\n", len(m.Certificates)))
	for _, c := range m.Certificates {
		sb.WriteString(fmt.Sprintf("  Slot %d: %d bytes\n", c.Slot, len(c.Data)))
	}

	sb.WriteString("\nLocks:\n")
	sb.WriteString(fmt.Sprintf("  Range: %d\n", m.LockRange))
	sb.WriteString(fmt.Sprintf("  Policy: %s\n", m.Policy))
	sb.WriteString(fmt.Sprintf("  Locked After Apply: %v\n", m.LockSet()))

	return sb.String()
}

// FormatMeasurements formats Measurement array for output
func (f *Formatter) FormatMeasurements(measurements []manifest.Measurement) []map[string]interface{} {
	result := make([]map[string]interface{}, len(measurements))
	for i, ms := range measurements {
		result[i] = map[string]interface{}{
			"slot":        ms.Slot,
			"description": ms.Description,
			"data":        hex.EncodeToString(ms.Data),
		}
	}
	return result
}

// FormatCertificates formats Certificate array for output
func (f *Formatter) FormatCertificates(certificates []manifest.Certificate) []map[string]interface{} {
	result := make([]map[string]interface{}, len(certificates))
	for i, c := range certificates {
		result[i] = map[string]interface{}{
			"slot": c.Slot,
			"data": hex.EncodeToString(c.Data),
		}
	}
	return result
}

// FormatManifestJSON formats manifest for JSON output
func (f *Formatter) FormatManifestJSON(m *manifest.Manifest) map[string]interface{} {
	locks := m.Locks
	if locks == nil {
		locks = []uint32{}
	}
	return map[string]interface{}{
		"namespace": map[string]interface{}{
			"name":  m.Namespace.Name,
			"nonce": m.Namespace.Nonce,
		},
		"measurements": f.FormatMeasurements(m.Measurements),
		"certificates": f.FormatCertificates(m.Certificates),
		"lockRange":    m.LockRange,
		"locks":        locks,
		"policy":       m.Policy,
	}
}

// FormatVerificationResult formats a verification result for JSON output
func (f *Formatter) FormatVerificationResult(result *VerifyResult) map[string]interface{} {
	output := map[string]interface{}{
		"valid":          result.Valid,
		"digestValid":    result.DigestValid,
		"pcrsValid":      result.PCRsValid,
		"userDataValid":  result.UserDataValid,
		"nonceValid":     result.NonceValid,
		"moduleIdValid":  result.ModuleIDValid,
		"locksValid":     result.LocksValid,
		"moduleId":       result.ModuleID,
		"timestamp":      result.Timestamp,
		"digest":         result.Digest,
		"computedDigest": result.ComputedDigest,
	}

	// Add optional fields if present
	if result.ManifestHash != "" {
		output["manifestHash"] = result.ManifestHash
	}
	if len(result.PCRValidationResults) > 0 {
		output["pcrs"] = result.PCRValidationResults
	}
	if len(result.Errors) > 0 {
		output["errors"] = result.Errors
	}

	return output
}

func formatOptional(b []byte) string {
	if b == nil {
		return "<absent>"
	}
	return truncateHex(b)
}

func truncateHex(b []byte) string {
	s := hex.EncodeToString(b)
	if len(s) > 64 {
		return s[:64] + "..."
	}
	return s
}
