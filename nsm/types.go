package nsm

import "encoding/hex"

const (
	// PCRSlots is the fixed number of measurement registers in a session
	PCRSlots = 32
	// DigestSize is the size of every register value and attestation digest
	DigestSize = 32
	// CertificateSlots is the fixed number of certificate slots in a session
	CertificateSlots = 4
	// ModuleIDSize is the number of random bytes behind a module id
	ModuleIDSize = 16
	// DefaultDevicePath is used when New is given an empty path
	DefaultDevicePath = "/var/run/nsm"
)

// Digest is a single register value.
type Digest [DigestSize]byte

// Hex returns the lowercase hex encoding of the digest
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// String implements fmt.Stringer
func (d Digest) String() string {
	return d.Hex()
}

// IsZero reports whether the digest is all zeros
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// PCR is the structured view of one register slot.
type PCR struct {
	Index  uint32 `json:"index"`
	Digest Digest `json:"digest"`
	Locked bool   `json:"locked"`
}

// ModuleDescription is session-wide metadata returned by DescribeModule.
type ModuleDescription struct {
	ModuleID         string
	DevicePath       string
	HashAlgorithm    HashAlg
	PCRSlots         int
	CertificateSlots int
	LockedPCRs       []uint32
	Certificates     int
}

// AttestationRequest carries the optional caller context bound into an
// attestation document. A nil field is absent.
type AttestationRequest struct {
	UserData  []byte
	PublicKey []byte
	Nonce     []byte
}

// AttestationDocument is an unsigned snapshot of the session binding every
// register value and the caller context. Nil byte fields mark absence.
type AttestationDocument struct {
	ModuleID    string
	Timestamp   uint64
	Digest      Digest
	PCRs        map[uint32]Digest
	LockedPCRs  []uint32
	Certificate []byte
	CABundle    []byte
	UserData    []byte
	PublicKey   []byte
	Nonce       []byte
}

// Registers returns the document's register values in slot order. ok is false
// if any of the PCRSlots entries is missing.
func (d *AttestationDocument) Registers() (pcrs [PCRSlots]Digest, ok bool) {
	for i := range pcrs {
		v, found := d.PCRs[uint32(i)]
		if !found {
			return pcrs, false
		}
		pcrs[i] = v
	}
	return pcrs, len(d.PCRs) == PCRSlots
}

// IsLocked reports whether slot appears in the document's locked list
func (d *AttestationDocument) IsLocked(slot uint32) bool {
	for _, s := range d.LockedPCRs {
		if s == slot {
			return true
		}
	}
	return false
}
