// Package nsm models the attestation state machine of a Nitro Secure Module.
//
// A Session owns 32 measurement registers (PCRs), their one-way lock bits,
// four opaque certificate slots and a random module id. Registers can only be
// extended (hash-chained) and, once locked, never change again. Attestation
// documents bind every register value and optional caller data into a single
// digest.
//
// # Lifecycle
//
// Open a session for a device path; construction fails if the path does not
// exist:
//
//	session, err := nsm.New("/var/run/nsm", nsm.WithLogger(logger))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer session.Close()
//
// # Measurements
//
// Extend a register and lock it:
//
//	digest, err := session.ExtendPCR(16, []byte("boot"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := session.LockPCR(16); err != nil {
//		log.Fatal(err)
//	}
//
// # Attestation
//
// Produce a document binding the registers and user data:
//
//	doc, err := session.GetAttestation(nsm.AttestationRequest{UserData: []byte("ctx")})
//
// The session performs no device I/O and never blocks. A single mutex guards
// all state so every operation observes a consistent cross-register snapshot.
package nsm

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Option configures a Session
type Option func(*options)

type options struct {
	logger      *zap.Logger
	hash        HashAlg
	entropy     io.Reader
	now         func() time.Time
	deviceCheck func(string) bool
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithHashAlg selects the digest function. Defaults to HashSHA256.
func WithHashAlg(alg HashAlg) Option {
	return func(o *options) {
		o.hash = alg
	}
}

// WithEntropy replaces the entropy source used for GetRandom and the module id.
func WithEntropy(r io.Reader) Option {
	return func(o *options) {
		if r != nil {
			o.entropy = r
		}
	}
}

// WithClock replaces the wall clock used for attestation timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithDeviceCheck replaces the device existence check run by New.
func WithDeviceCheck(exists func(path string) bool) Option {
	return func(o *options) {
		if exists != nil {
			o.deviceCheck = exists
		}
	}
}

// DeviceExists reports whether path exists on the local filesystem
func DeviceExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

type certificateSlot struct {
	data []byte
	set  bool
}

// Session is the in-memory attestation state of one module instance.
type Session struct {
	mu sync.Mutex

	devicePath string
	moduleID   string
	hash       HashAlg
	entropy    io.Reader
	now        func() time.Time
	logger     *zap.Logger

	pcrs   [PCRSlots]Digest
	locks  [PCRSlots]bool
	certs  [CertificateSlots]certificateSlot
	closed bool
}

// New creates a session for devicePath. An empty path selects
// DefaultDevicePath. The path is only checked for existence and retained as
// metadata.
func New(devicePath string, opts ...Option) (*Session, error) {
	o := options{
		logger:      zap.NewNop(),
		hash:        HashSHA256,
		entropy:     rand.Reader,
		now:         time.Now,
		deviceCheck: DeviceExists,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if devicePath == "" {
		devicePath = DefaultDevicePath
	}
	if !o.hash.Valid() {
		return nil, InvalidArgument("hash algorithm %s cannot produce %d-byte digests", o.hash, DigestSize)
	}
	if !o.deviceCheck(devicePath) {
		return nil, deviceMissing(devicePath)
	}

	id := make([]byte, ModuleIDSize)
	if _, err := io.ReadFull(o.entropy, id); err != nil {
		return nil, randomFailure(err)
	}

	s := &Session{
		devicePath: devicePath,
		moduleID:   hex.EncodeToString(id),
		hash:       o.hash,
		entropy:    o.entropy,
		now:        o.now,
		logger:     o.logger,
	}
	s.logger.Debug("nsm session opened",
		zap.String("device_path", s.devicePath),
		zap.String("module_id", s.moduleID),
		zap.Stringer("hash", s.hash))
	return s, nil
}

// DevicePath returns the path the session was created for
func (s *Session) DevicePath() string {
	return s.devicePath
}

// ModuleID returns the hex-encoded module id
func (s *Session) ModuleID() string {
	return s.moduleID
}

// HashAlg returns the session's digest function
func (s *Session) HashAlg() HashAlg {
	return s.hash
}

// IsClosed reports whether Close has been called
func (s *Session) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close ends the session. Closing twice is not an error; a closed session
// cannot be reopened.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.logger.Debug("nsm session closed", zap.String("module_id", s.moduleID))
	}
	return nil
}

// GetRandom returns length bytes from the session's entropy source.
func (s *Session) GetRandom(length int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	if length <= 0 {
		return nil, invalidRandomLength(length)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(s.entropy, buf); err != nil {
		return nil, randomFailure(err)
	}
	return buf, nil
}

// DescribeModule reports session-wide metadata.
func (s *Session) DescribeModule() (*ModuleDescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	certificates := 0
	for _, c := range s.certs {
		if c.set {
			certificates++
		}
	}
	return &ModuleDescription{
		ModuleID:         s.moduleID,
		DevicePath:       s.devicePath,
		HashAlgorithm:    s.hash,
		PCRSlots:         PCRSlots,
		CertificateSlots: CertificateSlots,
		LockedPCRs:       s.lockedSlots(),
		Certificates:     certificates,
	}, nil
}

// ensureOpen must be called with s.mu held
func (s *Session) ensureOpen() error {
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}

// lockedSlots must be called with s.mu held
func (s *Session) lockedSlots() []uint32 {
	locked := []uint32{}
	for i, l := range s.locks {
		if l {
			locked = append(locked, uint32(i))
		}
	}
	return locked
}
