package nsm

import (
	"bytes"

	"go.uber.org/zap"
)

// GetAttestation assembles an attestation document from the current session
// state. It never mutates registers or certificates.
//
// The digest is Hash(pcr[0] || ... || pcr[31] || userData). PublicKey and
// Nonce are carried through unmodified and are not part of the digest.
func (s *Session) GetAttestation(req AttestationRequest) (*AttestationDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	pcrs := make(map[uint32]Digest, PCRSlots)
	for i, v := range s.pcrs {
		pcrs[uint32(i)] = v
	}

	var certificate []byte
	if c := s.certs[0]; c.set {
		certificate = cloneNonNil(c.data)
	}

	doc := &AttestationDocument{
		ModuleID:    s.moduleID,
		Timestamp:   s.timestamp(),
		Digest:      ComputeAttestationDigest(s.hash, s.pcrs, req.UserData),
		PCRs:        pcrs,
		LockedPCRs:  s.lockedSlots(),
		Certificate: certificate,
		UserData:    bytes.Clone(req.UserData),
		PublicKey:   bytes.Clone(req.PublicKey),
		Nonce:       bytes.Clone(req.Nonce),
	}
	s.logger.Debug("generated attestation",
		zap.String("module_id", doc.ModuleID),
		zap.String("digest", doc.Digest.Hex()),
		zap.Int("locked_pcrs", len(doc.LockedPCRs)),
		zap.Bool("user_data", req.UserData != nil))
	return doc, nil
}

// ComputeAttestationDigest hashes every register in ascending slot order
// followed by userData, if any.
func ComputeAttestationDigest(alg HashAlg, pcrs [PCRSlots]Digest, userData []byte) Digest {
	parts := make([][]byte, 0, PCRSlots+1)
	for i := range pcrs {
		parts = append(parts, pcrs[i][:])
	}
	if userData != nil {
		parts = append(parts, userData)
	}
	return alg.sum(parts...)
}

// timestamp must be called with s.mu held
func (s *Session) timestamp() uint64 {
	sec := s.now().Unix()
	if sec < 0 {
		return 0
	}
	return uint64(sec)
}
