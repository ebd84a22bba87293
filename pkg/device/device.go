// Package device provides raw access to an NSM character device.
//
// It is a thin transport for callers that talk to a real module: open the
// device file, issue ioctl requests and read back fixed-size buffers. It holds
// no session state; the in-memory model lives in package nsm.
//
// The request codes are placeholders. Replace them with the values from the
// kernel driver header before talking to production hardware.
package device

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// DefaultPath is the conventional NSM device node
const DefaultPath = "/dev/nsm"

// Request codes
const (
	RequestGetRandom   uintptr = 0xC0040001
	RequestDescribePCR uintptr = 0xC0040002
	RequestExtendPCR   uintptr = 0xC0040003
	RequestDescribeNSM uintptr = 0xC0040004
)

const (
	pcrSize         = 32
	describeNSMSize = 256
)

var (
	// ErrUnsupported is returned on platforms without ioctl support
	ErrUnsupported = errors.New("nsm device access is not supported on this platform")
	// ErrNotOpen is returned by requests on a closed device
	ErrNotOpen = errors.New("device not open")
)

// Exists reports whether path exists, without opening it
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Path returns the device path
func (d *Device) Path() string {
	return d.path
}

// IsOpen reports whether the device file is open
func (d *Device) IsOpen() bool {
	return d != nil && d.fd >= 0
}

// GetRandom requests length random bytes from the device
func (d *Device) GetRandom(length int) ([]byte, error) {
	if length <= 0 {
		return nil, fmt.Errorf("length must be > 0")
	}
	return d.Request(RequestGetRandom, nil, length)
}

// DescribePCR requests the raw value of a register
func (d *Device) DescribePCR(slot uint32) ([]byte, error) {
	return d.Request(RequestDescribePCR, binary.NativeEndian.AppendUint32(nil, slot), pcrSize)
}

// ExtendPCR sends slot followed by data and returns the device's reply
func (d *Device) ExtendPCR(slot uint32, data []byte) ([]byte, error) {
	buf := binary.NativeEndian.AppendUint32(make([]byte, 0, 4+len(data)), slot)
	return d.Request(RequestExtendPCR, append(buf, data...), pcrSize)
}

// DescribeNSM requests the device metadata blob
func (d *Device) DescribeNSM() ([]byte, error) {
	return d.Request(RequestDescribeNSM, nil, describeNSMSize)
}

func requestError(request uintptr, err error) error {
	return fmt.Errorf("ioctl request 0x%x failed: %w", request, err)
}
