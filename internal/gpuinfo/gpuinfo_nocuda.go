//go:build !cuda

package gpuinfo

// Device describes one enumerated CUDA device.
type Device struct {
	Ordinal int
	Name    string
	Memory  uint64
}

// Enumerate always returns an empty list in a non-cuda build: there is
// no device backend compiled in to enumerate.
func Enumerate() ([]Device, error) {
	return nil, nil
}
