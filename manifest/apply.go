package manifest

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/anchorageoss/nsm-session/nsm"
)

// Target is the session surface a manifest is replayed into. *nsm.Session
// satisfies it.
type Target interface {
	ExtendPCR(slot uint32, data []byte) (nsm.Digest, error)
	SetCertificate(slot uint32, certificate []byte) error
	LockPCR(slot uint32) error
	LockPCRs(n uint32) error
}

// Report summarizes a replay
type Report struct {
	// Extended holds the register value after each measurement, in order
	Extended     []nsm.PCR
	Certificates []uint32
	Locked       []uint32
}

// Validate checks slot ranges and payloads without touching a session
func (m *Manifest) Validate() error {
	for i, ms := range m.Measurements {
		if ms.Slot >= nsm.PCRSlots {
			return nsm.InvalidArgument("measurement %d: PCR slot %d out of range", i, ms.Slot)
		}
		if len(ms.Data) == 0 {
			return nsm.InvalidArgument("measurement %d (%s): data must not be empty", i, ms.Description)
		}
	}
	for i, c := range m.Certificates {
		if c.Slot >= nsm.CertificateSlots {
			return nsm.InvalidArgument("certificate %d: slot %d out of range", i, c.Slot)
		}
		if len(c.Data) == 0 {
			return nsm.InvalidArgument("certificate %d: payload must not be empty", i)
		}
	}
	for _, slot := range m.Locks {
		if slot >= nsm.PCRSlots {
			return nsm.InvalidArgument("lock: PCR slot %d out of range", slot)
		}
	}
	switch m.Policy {
	case LockPolicyListed, LockPolicyMeasured:
	default:
		return nsm.InvalidArgument("unknown lock policy %s", m.Policy)
	}
	return nil
}

// LockSet returns the registers Apply locks, ascending
func (m *Manifest) LockSet() []uint32 {
	var slots []uint32
	for i := uint32(0); i < min(m.LockRange, nsm.PCRSlots); i++ {
		slots = append(slots, i)
	}
	slots = append(slots, m.Locks...)
	if m.Policy == LockPolicyMeasured {
		for _, ms := range m.Measurements {
			slots = append(slots, ms.Slot)
		}
	}
	slices.Sort(slots)
	return slices.Compact(slots)
}

// Apply replays the manifest into target: measurements in order, then
// certificates, then the lock range and individual locks. Replay stops at the
// first failing step.
func (m *Manifest) Apply(target Target, logger *zap.Logger) (*Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	report := &Report{}
	for i, ms := range m.Measurements {
		d, err := target.ExtendPCR(ms.Slot, ms.Data)
		if err != nil {
			return report, fmt.Errorf("measurement %d (%s): %w", i, ms.Description, err)
		}
		report.Extended = append(report.Extended, nsm.PCR{Index: ms.Slot, Digest: d})
		logger.Debug("applied measurement",
			zap.String("namespace", m.Namespace.Name),
			zap.Uint32("slot", ms.Slot),
			zap.String("description", ms.Description),
			zap.String("digest", d.Hex()))
	}

	for _, c := range m.Certificates {
		if err := target.SetCertificate(c.Slot, c.Data); err != nil {
			return report, fmt.Errorf("certificate slot %d: %w", c.Slot, err)
		}
		report.Certificates = append(report.Certificates, c.Slot)
	}

	if m.LockRange > 0 {
		if err := target.LockPCRs(m.LockRange); err != nil {
			return report, fmt.Errorf("lock range %d: %w", m.LockRange, err)
		}
	}
	locks := m.LockSet()
	for _, slot := range locks {
		if slot < m.LockRange {
			continue
		}
		if err := target.LockPCR(slot); err != nil {
			return report, fmt.Errorf("lock PCR %d: %w", slot, err)
		}
	}
	report.Locked = locks

	logger.Info("applied manifest",
		zap.String("namespace", m.Namespace.Name),
		zap.Uint32("nonce", m.Namespace.Nonce),
		zap.Int("measurements", len(report.Extended)),
		zap.Int("certificates", len(report.Certificates)),
		zap.Int("locked", len(report.Locked)))
	return report, nil
}
