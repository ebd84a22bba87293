//go:build !linux

package device

// Open always fails with ErrUnsupported
func Open(path string) (*Device, error) {
	return nil, ErrUnsupported
}

// Request always fails with ErrUnsupported
func (d *Device) Request(request uintptr, in []byte, outSize int) ([]byte, error) {
	return nil, ErrUnsupported
}

// Close is a no-op
func (d *Device) Close() error {
	return nil
}
