package nsm

import "go.uber.org/zap"

// DescribePCR returns the current value of a register.
func (s *Session) DescribePCR(slot uint32) (Digest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return Digest{}, err
	}
	if err := validatePCRSlot(slot); err != nil {
		return Digest{}, err
	}
	return s.pcrs[slot], nil
}

// DescribePCRRaw returns the register value together with its index and lock
// state.
func (s *Session) DescribePCRRaw(slot uint32) (PCR, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return PCR{}, err
	}
	if err := validatePCRSlot(slot); err != nil {
		return PCR{}, err
	}
	return PCR{Index: slot, Digest: s.pcrs[slot], Locked: s.locks[slot]}, nil
}

// ExtendPCR replaces the register with Hash(current || data) and returns the
// new value. Locked registers cannot be extended.
func (s *Session) ExtendPCR(slot uint32, data []byte) (Digest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return Digest{}, err
	}
	if err := validatePCRSlot(slot); err != nil {
		return Digest{}, err
	}
	if s.locks[slot] {
		return Digest{}, pcrLocked(slot)
	}

	s.pcrs[slot] = s.hash.sum(s.pcrs[slot][:], data)
	s.logger.Debug("extended PCR",
		zap.Uint32("slot", slot),
		zap.Int("data_len", len(data)),
		zap.String("digest", s.pcrs[slot].Hex()))
	return s.pcrs[slot], nil
}

// LockPCR permanently prevents further extension of a register. Locking an
// already locked register is a no-op.
func (s *Session) LockPCR(slot uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if err := validatePCRSlot(slot); err != nil {
		return err
	}
	if !s.locks[slot] {
		s.locks[slot] = true
		s.logger.Debug("locked PCR", zap.Uint32("slot", slot))
	}
	return nil
}

// LockPCRs locks registers 0..n. Values of n above PCRSlots are clamped.
func (s *Session) LockPCRs(n uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	n = min(n, PCRSlots)
	for i := uint32(0); i < n; i++ {
		s.locks[i] = true
	}
	s.logger.Debug("locked PCR range", zap.Uint32("count", n))
	return nil
}

func validatePCRSlot(slot uint32) error {
	if slot >= PCRSlots {
		return invalidPCRSlot(slot)
	}
	return nil
}
