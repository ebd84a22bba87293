// Package verify checks attestation documents produced by an nsm session.
//
// The verification process validates:
//   - The aggregate digest against the document's registers and user data
//   - Expected PCR values
//   - Measurement manifest integrity via the user data binding
//   - Caller context (user data, nonce, module id, locked registers)
//
// # Verification Flow
//
// Call Verify with a decoded attestation document and the expectations:
//
//	result, err := verify.NewService(nsm.HashSHA256, logger).Verify(doc, &verify.VerifyRequest{
//		ExpectedPCRs:  rules,
//		ManifestBytes: manifestBytes,
//	})
//	if err != nil {
//		log.Printf("Verification failed: %v", err)
//	}
//
// # Detailed Results
//
// VerifyResult includes the outcome of every individual check and a list of
// failure messages, so callers can report all mismatches at once.
package verify

import (
	"errors"

	nitroverifier "github.com/anchorageoss/awsnitroverifier"

	"github.com/anchorageoss/nsm-session/manifest"
	"github.com/anchorageoss/nsm-session/nsm"
)

// ErrVerificationFailed is returned alongside a result with Valid == false
var ErrVerificationFailed = errors.New("attestation verification failed")

// VerifyRequest represents the expectations a document is checked against.
// Empty fields are not checked.
type VerifyRequest struct {
	ExpectedPCRs        []nitroverifier.PCRRule
	ExpectedUserDataHex string
	ExpectedNonceHex    string
	ExpectedModuleID    string
	// ManifestBytes, when set, must hash to the document's user data
	ManifestBytes []byte
	RequireLocked []uint32
}

// VerifyResult represents the result of verification
type VerifyResult struct {
	Valid                bool                  `json:"valid"`
	DigestValid          bool                  `json:"digestValid"`
	PCRsValid            bool                  `json:"pcrsValid"`
	UserDataValid        bool                  `json:"userDataValid"`
	NonceValid           bool                  `json:"nonceValid"`
	ModuleIDValid        bool                  `json:"moduleIdValid"`
	LocksValid           bool                  `json:"locksValid"`
	ModuleID             string                `json:"moduleId"`
	Timestamp            uint64                `json:"timestamp"`
	Digest               string                `json:"digest"`
	ComputedDigest       string                `json:"computedDigest"`
	ManifestHash         string                `json:"manifestHash,omitempty"`
	Errors               []string              `json:"errors,omitempty"`
	UserData             []byte                `json:"-"`
	PCRs                 map[uint32]nsm.Digest `json:"-"`
	LockedPCRs           []uint32              `json:"-"`
	PCRValidationResults []PCRValidationResult `json:"-"`
	Manifest             *manifest.Manifest    `json:"-"`
}

// PCRValidationResult represents the result of validating a single PCR
type PCRValidationResult struct {
	Index    uint   `json:"index"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Valid    bool   `json:"valid"`
}
