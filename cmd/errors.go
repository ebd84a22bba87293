package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/anchorageoss/nsm-session/nsm"
	"github.com/anchorageoss/nsm-session/verify"
)

// Exit codes
const (
	ExitSuccess      = 0 // Operation completed successfully
	ExitGeneral      = 1 // Unknown/unhandled error
	ExitUsage        = 2 // Invalid argument or configuration
	ExitAttestation  = 3 // Attestation document failed verification
	ExitDevice       = 4 // Device path missing
	ExitSessionState = 5 // Closed session, locked register, empty certificate slot
)

// Error codes (strings) for programmatic error handling
const (
	CodeInvalidArgument    = "INVALID_ARGUMENT"
	CodeVerificationFailed = "VERIFICATION_FAILED"
	CodeDeviceMissing      = "DEVICE_MISSING"
	CodeSessionClosed      = "SESSION_CLOSED"
	CodePCRLocked          = "PCR_LOCKED"
	CodeNotFound           = "CERTIFICATE_NOT_FOUND"
	CodeRandomFailure      = "RANDOM_FAILURE"
	CodeInternalError      = "INTERNAL_ERROR"
)

// CLIError represents a structured error for CLI output.
type CLIError struct {
	Code     string `json:"code"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	Hint     string `json:"hint,omitempty"`
	ExitCode int    `json:"-"`
	err      error
}

// Error implements the error interface.
func (e *CLIError) Error() string {
	return e.Message
}

// Unwrap returns the classified error
func (e *CLIError) Unwrap() error {
	return e.err
}

// Classify maps an error returned by a command onto a CLIError. A nil error
// yields nil.
func Classify(err error) *CLIError {
	if err == nil {
		return nil
	}
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr
	}

	e := &CLIError{
		Code:     CodeInternalError,
		Kind:     nsm.KindOf(err).String(),
		Message:  err.Error(),
		ExitCode: ExitGeneral,
		err:      err,
	}
	if errors.Is(err, verify.ErrVerificationFailed) {
		e.Code = CodeVerificationFailed
		e.ExitCode = ExitAttestation
		e.Hint = "Compare the expected values with the document's registers and user data"
		return e
	}

	switch nsm.KindOf(err) {
	case nsm.KindInvalidArgument, nsm.KindInvalidRandomLength, nsm.KindInvalidPCRSlot, nsm.KindInvalidCertificateSlot:
		e.Code = CodeInvalidArgument
		e.ExitCode = ExitUsage
		e.Hint = fmt.Sprintf("PCR slots are 0..%d and certificate slots are 0..%d", nsm.PCRSlots-1, nsm.CertificateSlots-1)
	case nsm.KindDeviceMissing:
		e.Code = CodeDeviceMissing
		e.ExitCode = ExitDevice
		e.Hint = "Pass --device or set NSM_DEVICE_PATH to an existing device path"
	case nsm.KindSessionClosed:
		e.Code = CodeSessionClosed
		e.ExitCode = ExitSessionState
	case nsm.KindPCRLocked:
		e.Code = CodePCRLocked
		e.ExitCode = ExitSessionState
		e.Hint = "Locked registers cannot be extended until a new session is opened"
	case nsm.KindCertificateNotFound:
		e.Code = CodeNotFound
		e.ExitCode = ExitSessionState
	case nsm.KindRandomFailure:
		e.Code = CodeRandomFailure
	}
	return e
}

// WriteError prints err to w, as JSON when asJSON is set
func WriteError(w io.Writer, err error, asJSON bool) int {
	cliErr := Classify(err)
	if cliErr == nil {
		return ExitSuccess
	}
	if asJSON {
		out, _ := json.Marshal(cliErr)
		fmt.Fprintln(w, string(out))
		return cliErr.ExitCode
	}
	fmt.Fprintf(w, "%s %s\n", failure("Error:"), cliErr.Message)
	if cliErr.Hint != "" {
		fmt.Fprintf(w, "%s %s\n", hint("Hint:"), cliErr.Hint)
	}
	return cliErr.ExitCode
}
