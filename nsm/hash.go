package nsm

import (
	"crypto"
	_ "crypto/sha256" // registers crypto.SHA256
	_ "crypto/sha512" // registers crypto.SHA384 and crypto.SHA512
	"fmt"
	"strings"

	"github.com/google/go-tpm/legacy/tpm2"
)

// HashAlg identifies the digest function used to extend registers and to
// compute the attestation digest. Values follow the TCG algorithm registry.
type HashAlg uint16

// Supported hash algorithms. The output of each is at least DigestSize bytes
// long; only the first DigestSize bytes are kept.
var (
	HashSHA256 = HashAlg(tpm2.AlgSHA256)
	HashSHA384 = HashAlg(tpm2.AlgSHA384)
	HashSHA512 = HashAlg(tpm2.AlgSHA512)
)

// ParseHashAlg maps a name such as "sha256" or "SHA-384" to a HashAlg.
func ParseHashAlg(name string) (HashAlg, error) {
	switch strings.ToUpper(strings.ReplaceAll(name, "-", "")) {
	case "", "SHA256":
		return HashSHA256, nil
	case "SHA384":
		return HashSHA384, nil
	case "SHA512":
		return HashSHA512, nil
	}
	return 0, InvalidArgument("unsupported hash algorithm %q", name)
}

// CryptoHash converts the TCG registry identifier to a crypto.Hash. Unknown
// algorithms yield 0.
func (a HashAlg) CryptoHash() crypto.Hash {
	if a != HashSHA256 && a != HashSHA384 && a != HashSHA512 {
		return 0
	}
	h, err := a.GoTPMAlg().Hash()
	if err != nil {
		return 0
	}
	return h
}

// GoTPMAlg returns the go-tpm definition of this algorithm.
func (a HashAlg) GoTPMAlg() tpm2.Algorithm {
	return tpm2.Algorithm(a)
}

// Valid reports whether the algorithm is supported and produces at least
// DigestSize bytes of output.
func (a HashAlg) Valid() bool {
	h := a.CryptoHash()
	return h != 0 && h.Available() && h.Size() >= DigestSize
}

// String returns a human-friendly representation of the hash algorithm.
func (a HashAlg) String() string {
	switch a {
	case HashSHA256:
		return "SHA256"
	case HashSHA384:
		return "SHA384"
	case HashSHA512:
		return "SHA512"
	}
	return fmt.Sprintf("HashAlg<%d>", int(a))
}

// sum hashes the concatenation of parts and keeps the first DigestSize bytes.
func (a HashAlg) sum(parts ...[]byte) Digest {
	h := a.CryptoHash().New()
	for _, p := range parts {
		h.Write(p)
	}
	var d Digest
	copy(d[:], h.Sum(nil)[:DigestSize])
	return d
}
