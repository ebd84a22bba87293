package verify

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/anchorageoss/nsm-session/manifest"
	"github.com/anchorageoss/nsm-session/nsm"
)

// Service handles verification logic
type Service struct {
	hash   nsm.HashAlg
	logger *zap.Logger
}

// NewService creates a new verification service for documents produced with
// the given hash algorithm
func NewService(hash nsm.HashAlg, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		hash:   hash,
		logger: logger,
	}
}

// Verify checks doc against req. Malformed input returns an error and no
// result. A well-formed document that fails any check returns the populated
// result together with an error wrapping ErrVerificationFailed.
func (s *Service) Verify(doc *nsm.AttestationDocument, req *VerifyRequest) (*VerifyResult, error) {
	if doc == nil {
		return nil, nsm.InvalidArgument("attestation document is nil")
	}
	if req == nil {
		req = &VerifyRequest{}
	}
	if !s.hash.Valid() {
		return nil, nsm.InvalidArgument("unsupported hash algorithm %s", s.hash)
	}

	registers, ok := doc.Registers()
	if !ok {
		return nil, nsm.InvalidArgument("attestation document must carry all %d PCRs, got %d", nsm.PCRSlots, len(doc.PCRs))
	}

	result := &VerifyResult{
		ModuleID:   doc.ModuleID,
		Timestamp:  doc.Timestamp,
		Digest:     doc.Digest.Hex(),
		UserData:   doc.UserData,
		PCRs:       doc.PCRs,
		LockedPCRs: doc.LockedPCRs,
	}

	// Step 1: Recompute the aggregate digest
	computed := nsm.ComputeAttestationDigest(s.hash, registers, doc.UserData)
	result.ComputedDigest = computed.Hex()
	result.DigestValid = computed == doc.Digest
	if !result.DigestValid {
		result.Errors = append(result.Errors, fmt.Sprintf("digest mismatch: document %s, computed %s", result.Digest, result.ComputedDigest))
	}

	// Step 2: Expected PCR values
	pcrErrors, err := s.verifyPCRs(registers, req, result)
	if err != nil {
		return nil, err
	}
	result.Errors = append(result.Errors, pcrErrors...)

	// Step 3: User data, either a raw expectation or a manifest hash
	result.UserDataValid = true
	if req.ExpectedUserDataHex != "" {
		if err := s.verifyUserData(doc.UserData, req.ExpectedUserDataHex); err != nil {
			if nsm.KindOf(err) == nsm.KindInvalidArgument {
				return nil, err
			}
			result.UserDataValid = false
			result.Errors = append(result.Errors, fmt.Sprintf("user data %v", err))
		}
	}
	if req.ManifestBytes != nil {
		m, err := manifest.Decode(req.ManifestBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to decode manifest: %w", err)
		}
		result.Manifest = m
		result.ManifestHash = manifest.ComputeHash(req.ManifestBytes)
		if err := s.verifyUserData(doc.UserData, result.ManifestHash); err != nil {
			result.UserDataValid = false
			result.Errors = append(result.Errors, fmt.Sprintf("manifest %v", err))
		}
	}

	// Step 4: Nonce and module id
	result.NonceValid = true
	if req.ExpectedNonceHex != "" {
		if err := s.verifyUserData(doc.Nonce, req.ExpectedNonceHex); err != nil {
			if nsm.KindOf(err) == nsm.KindInvalidArgument {
				return nil, err
			}
			result.NonceValid = false
			result.Errors = append(result.Errors, fmt.Sprintf("nonce %v", err))
		}
	}
	result.ModuleIDValid = req.ExpectedModuleID == "" || strings.EqualFold(req.ExpectedModuleID, doc.ModuleID)
	if !result.ModuleIDValid {
		result.Errors = append(result.Errors, fmt.Sprintf("module id mismatch: expected %s, got %s", req.ExpectedModuleID, doc.ModuleID))
	}

	// Step 5: Registers that must be locked
	result.LocksValid = true
	for _, slot := range req.RequireLocked {
		if !doc.IsLocked(slot) {
			result.LocksValid = false
			result.Errors = append(result.Errors, fmt.Sprintf("PCR[%d] is not locked", slot))
		}
	}

	result.Valid = len(result.Errors) == 0
	s.logger.Debug("verified attestation document",
		zap.String("module_id", doc.ModuleID),
		zap.Bool("valid", result.Valid),
		zap.Int("pcr_rules", len(req.ExpectedPCRs)),
		zap.Strings("errors", result.Errors))
	if !result.Valid {
		return result, fmt.Errorf("%w: %s", ErrVerificationFailed, strings.Join(result.Errors, "; "))
	}
	return result, nil
}

func (s *Service) verifyPCRs(registers [nsm.PCRSlots]nsm.Digest, req *VerifyRequest, result *VerifyResult) ([]string, error) {
	var failures []string
	result.PCRsValid = true
	for _, rule := range req.ExpectedPCRs {
		if rule.Index >= nsm.PCRSlots {
			return nil, nsm.InvalidArgument("expected PCR index %d out of range (0..%d)", rule.Index, nsm.PCRSlots)
		}
		actual := registers[rule.Index]
		check := PCRValidationResult{
			Index:    rule.Index,
			Expected: hex.EncodeToString(rule.Value),
			Actual:   actual.Hex(),
			Valid:    bytes.Equal(rule.Value, actual[:]),
		}
		result.PCRValidationResults = append(result.PCRValidationResults, check)
		if !check.Valid {
			result.PCRsValid = false
			failures = append(failures, fmt.Sprintf("PCR[%d] mismatch: expected %s, got %s", check.Index, check.Expected, check.Actual))
		}
	}
	slices.SortFunc(result.PCRValidationResults, func(a, b PCRValidationResult) int {
		return int(a.Index) - int(b.Index)
	})
	return failures, nil
}

// verifyUserData verifies that data matches the provided hex value
func (s *Service) verifyUserData(data []byte, expectedHex string) error {
	expectedBytes, err := hex.DecodeString(expectedHex)
	if err != nil {
		return nsm.InvalidArgument("invalid hex provided: %v", err)
	}

	if !bytes.Equal(expectedBytes, data) {
		actual := "<absent>"
		if data != nil {
			actual = hex.EncodeToString(data)
		}
		return fmt.Errorf("mismatch: expected %s, got %s", strings.ToLower(expectedHex), actual)
	}

	return nil
}
