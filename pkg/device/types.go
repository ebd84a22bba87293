package device

// Device is an open handle on an NSM device node
type Device struct {
	path string
	// fd is -1 once closed
	fd int
}
