package nsm

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceMissing is returned from New when the device path does not exist
	ErrDeviceMissing = errors.New("nsm device path does not exist")
	// ErrSessionClosed is returned by every operation after Close
	ErrSessionClosed = errors.New("session is closed")
	// ErrInvalidRandomLength is returned for zero-length random requests
	ErrInvalidRandomLength = errors.New("invalid random length")
	// ErrInvalidPCRSlot is returned for register indices outside 0..PCRSlots
	ErrInvalidPCRSlot = errors.New("PCR slot out of range")
	// ErrPCRLocked is returned when extending a locked register
	ErrPCRLocked = errors.New("PCR slot is locked")
	// ErrInvalidCertificateSlot is returned for certificate indices outside 0..CertificateSlots
	ErrInvalidCertificateSlot = errors.New("certificate slot out of range")
	// ErrCertificateNotFound is returned when describing or removing an empty certificate slot
	ErrCertificateNotFound = errors.New("certificate slot is empty")
	// ErrAttestationFailure is reserved for signing-layer failures
	ErrAttestationFailure = errors.New("attestation generation failed")
	// ErrRandomFailure is returned when the entropy source fails
	ErrRandomFailure = errors.New("OS random generator failure")
	// ErrInvalidArgument is returned for malformed caller input
	ErrInvalidArgument = errors.New("invalid argument")
)

// Kind classifies an error returned by this package.
type Kind int

const (
	KindUnknown Kind = iota
	KindDeviceMissing
	KindSessionClosed
	KindInvalidRandomLength
	KindInvalidPCRSlot
	KindPCRLocked
	KindInvalidCertificateSlot
	KindCertificateNotFound
	KindAttestationFailure
	KindRandomFailure
	KindInvalidArgument
)

var kindSentinels = []struct {
	kind Kind
	err  error
}{
	{KindDeviceMissing, ErrDeviceMissing},
	{KindSessionClosed, ErrSessionClosed},
	{KindInvalidRandomLength, ErrInvalidRandomLength},
	{KindInvalidPCRSlot, ErrInvalidPCRSlot},
	{KindPCRLocked, ErrPCRLocked},
	{KindInvalidCertificateSlot, ErrInvalidCertificateSlot},
	{KindCertificateNotFound, ErrCertificateNotFound},
	{KindAttestationFailure, ErrAttestationFailure},
	{KindRandomFailure, ErrRandomFailure},
	{KindInvalidArgument, ErrInvalidArgument},
}

// KindOf reports the kind of err, or KindUnknown if err does not wrap one of
// the package sentinels.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, ks := range kindSentinels {
		if errors.Is(err, ks.err) {
			return ks.kind
		}
	}
	return KindUnknown
}

// String returns the name of the error kind
func (k Kind) String() string {
	switch k {
	case KindDeviceMissing:
		return "DeviceMissing"
	case KindSessionClosed:
		return "SessionClosed"
	case KindInvalidRandomLength:
		return "InvalidRandomLength"
	case KindInvalidPCRSlot:
		return "InvalidPcrSlot"
	case KindPCRLocked:
		return "PcrLocked"
	case KindInvalidCertificateSlot:
		return "InvalidCertificateSlot"
	case KindCertificateNotFound:
		return "CertificateNotFound"
	case KindAttestationFailure:
		return "AttestationFailure"
	case KindRandomFailure:
		return "RandomFailure"
	case KindInvalidArgument:
		return "InvalidArgument"
	default:
		return "Unknown"
	}
}

// InvalidArgument wraps ErrInvalidArgument with a formatted reason.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func deviceMissing(path string) error {
	return fmt.Errorf("%w: '%s'", ErrDeviceMissing, path)
}

func invalidRandomLength(length int) error {
	return fmt.Errorf("%w: requested %d bytes", ErrInvalidRandomLength, length)
}

func invalidPCRSlot(slot uint32) error {
	return fmt.Errorf("%w: slot %d (0..%d)", ErrInvalidPCRSlot, slot, PCRSlots)
}

func pcrLocked(slot uint32) error {
	return fmt.Errorf("%w: slot %d", ErrPCRLocked, slot)
}

func invalidCertificateSlot(slot uint32) error {
	return fmt.Errorf("%w: slot %d (0..%d)", ErrInvalidCertificateSlot, slot, CertificateSlots)
}

func certificateNotFound(slot uint32) error {
	return fmt.Errorf("%w: slot %d", ErrCertificateNotFound, slot)
}

func randomFailure(err error) error {
	return fmt.Errorf("%w: %w", ErrRandomFailure, err)
}
