package nsm

import (
	"bytes"

	"go.uber.org/zap"
)

// SetCertificate stores an opaque blob in a certificate slot, replacing any
// previous value. The content is not validated.
func (s *Session) SetCertificate(slot uint32, certificate []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if err := validateCertificateSlot(slot); err != nil {
		return err
	}
	s.certs[slot] = certificateSlot{data: bytes.Clone(certificate), set: true}
	s.logger.Debug("stored certificate", zap.Uint32("slot", slot), zap.Int("size", len(certificate)))
	return nil
}

// DescribeCertificate returns a copy of the blob stored in a slot.
func (s *Session) DescribeCertificate(slot uint32) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	if err := validateCertificateSlot(slot); err != nil {
		return nil, err
	}
	c := s.certs[slot]
	if !c.set {
		return nil, certificateNotFound(slot)
	}
	return cloneNonNil(c.data), nil
}

// RemoveCertificate deletes the blob stored in a slot.
func (s *Session) RemoveCertificate(slot uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if err := validateCertificateSlot(slot); err != nil {
		return err
	}
	if !s.certs[slot].set {
		return certificateNotFound(slot)
	}
	s.certs[slot] = certificateSlot{}
	s.logger.Debug("removed certificate", zap.Uint32("slot", slot))
	return nil
}

func validateCertificateSlot(slot uint32) error {
	if slot >= CertificateSlots {
		return invalidCertificateSlot(slot)
	}
	return nil
}

// cloneNonNil copies b, returning an empty non-nil slice for empty input so a
// stored empty blob is never confused with absence.
func cloneNonNil(b []byte) []byte {
	return append([]byte{}, b...)
}
