//go:build linux

package device

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Open opens the device node for reading and writing
func Open(path string) (*Device, error) {
	if path == "" {
		path = DefaultPath
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open device '%s': %w", path, err)
	}
	return &Device{path: path, fd: fd}, nil
}

// Request issues an ioctl with a buffer large enough for both in and the
// reply, and returns the first outSize bytes of the buffer afterwards
func (d *Device) Request(request uintptr, in []byte, outSize int) ([]byte, error) {
	if !d.IsOpen() {
		return nil, ErrNotOpen
	}
	if outSize < 0 {
		return nil, fmt.Errorf("invalid output size %d", outSize)
	}

	buf := make([]byte, max(len(in), outSize, 1))
	copy(buf, in)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), request, uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return nil, requestError(request, errno)
	}
	return buf[:outSize], nil
}

// Close closes the device node. Closing twice is a no-op.
func (d *Device) Close() error {
	if !d.IsOpen() {
		return nil
	}
	fd := d.fd
	d.fd = -1
	if err := unix.Close(fd); err != nil {
		return fmt.Errorf("failed to close device '%s': %w", d.path, err)
	}
	return nil
}
