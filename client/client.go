// Package client provides a lifecycle-managed handle over an nsm.Session.
//
// The client opens its session lazily, can be reopened after Close (which
// creates a fresh session with a new module id) and validates arguments before
// they reach the session.
//
//	c := client.New(client.Options{DevicePath: "/var/run/nsm"})
//	if err := c.Open(); err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close()
//
//	pcr, err := c.ExtendPCR(16, []byte("app"))
package client

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/anchorageoss/nsm-session/codec"
	"github.com/anchorageoss/nsm-session/nsm"
)

// Session is the subset of *nsm.Session the client drives
type Session interface {
	DevicePath() string
	IsClosed() bool
	Close() error
	GetRandom(length int) ([]byte, error)
	DescribePCRRaw(slot uint32) (nsm.PCR, error)
	ExtendPCR(slot uint32, data []byte) (nsm.Digest, error)
	LockPCR(slot uint32) error
	LockPCRs(n uint32) error
	SetCertificate(slot uint32, certificate []byte) error
	DescribeCertificate(slot uint32) ([]byte, error)
	RemoveCertificate(slot uint32) error
	DescribeModule() (*nsm.ModuleDescription, error)
	GetAttestation(req nsm.AttestationRequest) (*nsm.AttestationDocument, error)
}

// Opener creates a session for a device path
type Opener func(devicePath string) (Session, error)

// Options configures a Client
type Options struct {
	DevicePath string
	Opener     Opener
	Logger     *zap.Logger
	// SessionOptions are passed to nsm.New when Opener is nil
	SessionOptions []nsm.Option
}

// Client is a reopenable handle over a single session
type Client struct {
	mu         sync.Mutex
	devicePath string
	opener     Opener
	logger     *zap.Logger
	session    Session
}

// New creates a client. No session is opened until Open is called.
func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	opener := opts.Opener
	if opener == nil {
		sessionOpts := append([]nsm.Option{nsm.WithLogger(logger)}, opts.SessionOptions...)
		opener = func(devicePath string) (Session, error) {
			s, err := nsm.New(devicePath, sessionOpts...)
			if err != nil {
				return nil, err
			}
			return s, nil
		}
	}
	return &Client{
		devicePath: opts.DevicePath,
		opener:     opener,
		logger:     logger,
	}
}

// DevicePath returns the open session's device path, or the configured path
// (falling back to nsm.DefaultDevicePath) before the first Open.
func (c *Client) DevicePath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return c.session.DevicePath()
	}
	if c.devicePath != "" {
		return c.devicePath
	}
	return nsm.DefaultDevicePath
}

// IsOpen reports whether the client holds an open session
func (c *Client) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil && !c.session.IsClosed()
}

// Open creates a session if none is open. Calling Open on an open client is a
// no-op.
func (c *Client) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil && !c.session.IsClosed() {
		return nil
	}
	session, err := c.opener(c.devicePath)
	if err != nil {
		return fmt.Errorf("failed to open NSM session: %w", err)
	}
	c.session = session
	c.logger.Info("opened NSM session", zap.String("device_path", session.DevicePath()))
	return nil
}

// Close closes the current session, if any
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil || c.session.IsClosed() {
		return nil
	}
	return c.session.Close()
}

// Session returns the current session
func (c *Client) Session() (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil, fmt.Errorf("%w: client is not open, call Open first", nsm.ErrSessionClosed)
	}
	return c.session, nil
}

// GetRandom returns length random bytes
func (c *Client) GetRandom(length int) ([]byte, error) {
	if length <= 0 {
		return nil, fmt.Errorf("%w: length must be greater than zero", nsm.ErrInvalidRandomLength)
	}
	s, err := c.Session()
	if err != nil {
		return nil, err
	}
	return s.GetRandom(length)
}

// DescribePCR returns a register with its lock state
func (c *Client) DescribePCR(slot uint32) (nsm.PCR, error) {
	s, err := c.Session()
	if err != nil {
		return nsm.PCR{}, err
	}
	return s.DescribePCRRaw(slot)
}

// ExtendPCR extends a register and returns its new value and lock state.
// Empty data is rejected.
func (c *Client) ExtendPCR(slot uint32, data []byte) (nsm.PCR, error) {
	if len(data) == 0 {
		return nsm.PCR{}, nsm.InvalidArgument("data to extend must not be empty")
	}
	s, err := c.Session()
	if err != nil {
		return nsm.PCR{}, err
	}
	if _, err := s.ExtendPCR(slot, data); err != nil {
		return nsm.PCR{}, err
	}
	return s.DescribePCRRaw(slot)
}

// LockPCR locks a single register
func (c *Client) LockPCR(slot uint32) error {
	s, err := c.Session()
	if err != nil {
		return err
	}
	return s.LockPCR(slot)
}

// LockPCRs locks registers 0..n
func (c *Client) LockPCRs(n uint32) error {
	s, err := c.Session()
	if err != nil {
		return err
	}
	return s.LockPCRs(n)
}

// SetCertificate stores a certificate. Empty payloads are rejected.
func (c *Client) SetCertificate(slot uint32, certificate []byte) error {
	if len(certificate) == 0 {
		return nsm.InvalidArgument("certificate payload must not be empty")
	}
	s, err := c.Session()
	if err != nil {
		return err
	}
	return s.SetCertificate(slot, certificate)
}

// DescribeCertificate returns the certificate stored in slot
func (c *Client) DescribeCertificate(slot uint32) ([]byte, error) {
	s, err := c.Session()
	if err != nil {
		return nil, err
	}
	return s.DescribeCertificate(slot)
}

// RemoveCertificate deletes the certificate stored in slot
func (c *Client) RemoveCertificate(slot uint32) error {
	s, err := c.Session()
	if err != nil {
		return err
	}
	return s.RemoveCertificate(slot)
}

// DescribeNSM returns session-wide metadata
func (c *Client) DescribeNSM() (*nsm.ModuleDescription, error) {
	s, err := c.Session()
	if err != nil {
		return nil, err
	}
	return s.DescribeModule()
}

// GetAttestation returns an attestation document for the given context
func (c *Client) GetAttestation(req nsm.AttestationRequest) (*nsm.AttestationDocument, error) {
	s, err := c.Session()
	if err != nil {
		return nil, err
	}
	return s.GetAttestation(req)
}

// GetAttestationRaw returns an attestation document in its generic JSON form
func (c *Client) GetAttestationRaw(req nsm.AttestationRequest) (*codec.DocumentJSON, error) {
	doc, err := c.GetAttestation(req)
	if err != nil {
		return nil, err
	}
	return codec.DocumentMap(doc), nil
}
