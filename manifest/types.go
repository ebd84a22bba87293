// Package manifest provides types and parsing functions for measurement
// manifests.
//
// A manifest is a Borsh-encoded boot policy for an attestation session. It
// lists the measurements to extend into registers, the certificates to
// install and the registers to lock once measurement is complete.
//
// # Manifest Structure
//
// A manifest contains:
//   - Namespace: Application identifier and manifest revision
//   - Measurements: Ordered register extensions
//   - Certificates: Certificate slot contents
//   - LockRange and Locks: Registers to lock after measurement
//
// # Parsing
//
// Decode manifests using DecodeManifestFromBase64 or DecodeManifestFromFile:
//
//	m, manifestBytes, err := manifest.DecodeManifestFromFile("boot.manifest")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Compute the manifest hash and bind it as attestation user data:
//
//	doc, err := session.GetAttestation(nsm.AttestationRequest{UserData: manifest.Digest(manifestBytes)})
//
// # Replay
//
// Apply replays a manifest into a session: measurements first, then
// certificates, then locks.
package manifest

import (
	"fmt"
)

// LockPolicy controls what Apply does after the last measurement
type LockPolicy uint8

const (
	// LockPolicyListed locks only LockRange and Locks
	LockPolicyListed LockPolicy = iota
	// LockPolicyMeasured additionally locks every measured register
	LockPolicyMeasured
)

// MarshalJSON renders the policy by name
func (p LockPolicy) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", p.String())), nil
}

// String converts LockPolicy to string format
func (p LockPolicy) String() string {
	switch p {
	case LockPolicyListed:
		return "Listed"
	case LockPolicyMeasured:
		return "Measured"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(p))
	}
}

// ParseLockPolicy converts a policy name back into a LockPolicy. An empty name
// selects LockPolicyListed.
func ParseLockPolicy(name string) (LockPolicy, error) {
	switch name {
	case "", "Listed", "listed":
		return LockPolicyListed, nil
	case "Measured", "measured":
		return LockPolicyMeasured, nil
	}
	return 0, fmt.Errorf("unknown lock policy %q", name)
}

type Namespace struct {
	Name  string `borsh:"name" json:"name"`
	Nonce uint32 `borsh:"nonce" json:"nonce"`
}

// Measurement is a single register extension
type Measurement struct {
	Slot        uint32 `borsh:"slot" json:"slot"`
	Description string `borsh:"description" json:"description"`
	Data        []byte `borsh:"data" json:"data"`
}

// Certificate is the content of one certificate slot
type Certificate struct {
	Slot uint32 `borsh:"slot" json:"slot"`
	Data []byte `borsh:"data" json:"data"`
}

type Manifest struct {
	Namespace    Namespace     `borsh:"namespace" json:"namespace"`
	Measurements []Measurement `borsh:"measurements" json:"measurements"`
	Certificates []Certificate `borsh:"certificates" json:"certificates"`

	// LockRange locks registers 0..LockRange-1; zero locks nothing
	LockRange uint32     `borsh:"lock_range" json:"lock_range"`
	Locks     []uint32   `borsh:"locks" json:"locks"`
	Policy    LockPolicy `borsh:"policy" json:"policy"`
}
