package manifest

import (
	"crypto/sha256"
	"encoding/hex"
)

// ComputeHash computes SHA256 hash of manifest bytes
func ComputeHash(manifestBytes []byte) string {
	return hex.EncodeToString(Digest(manifestBytes))
}

// Digest returns the raw SHA256 of manifest bytes, suitable as attestation
// user data
func Digest(manifestBytes []byte) []byte {
	sum := sha256.Sum256(manifestBytes)
	return sum[:]
}
