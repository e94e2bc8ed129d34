//go:build cuda

package derive

import (
	"fmt"

	"keysearch/gpu/wrapper"
	"keysearch/internal/curve"
)

// GPUConfig configures a GPU derivation back-end: which device to bind,
// and where the compiled kernel and precomputed GTable live on disk.
type GPUConfig struct {
	DeviceOrdinal int
	PTXPath       string
	GTableXPath   string
	GTableYPath   string
}

// GPUBackend derives batches on a CUDA device via a fixed-window GTable
// kernel. It never trusts its own output until RunBIST has passed at
// construction time; a BIST failure permanently disables the backend
// for the process lifetime.
type GPUBackend struct {
	device *wrapper.Device
	kernel *wrapper.DeriveKernel
}

// NewGPUBackend binds the configured CUDA device, loads the derivation
// kernel and GTable, and runs the built-in self-test against the CPU
// reference before returning a usable backend.
func NewGPUBackend(cfg GPUConfig) (Backend, error) {
	if err := wrapper.InitCUDA(); err != nil {
		return nil, fmt.Errorf("gpu backend: %w", err)
	}
	device, err := wrapper.NewDevice(cfg.DeviceOrdinal)
	if err != nil {
		return nil, fmt.Errorf("gpu backend: %w", err)
	}

	kernel, err := wrapper.NewDeriveKernel(device, wrapper.DeriveKernelConfig{
		PTXPath:     cfg.PTXPath,
		GTableXPath: cfg.GTableXPath,
		GTableYPath: cfg.GTableYPath,
		MaxGridBits: MaxGridBits,
	})
	if err != nil {
		device.Close()
		return nil, fmt.Errorf("gpu backend: %w", err)
	}

	backend := &GPUBackend{device: device, kernel: kernel}

	if err := RunBIST(backend); err != nil {
		backend.Close()
		return nil, fmt.Errorf("gpu backend: %w", err)
	}

	return backend, nil
}

// DeriveBatch implements Backend by delegating to the device kernel and
// re-tagging the untagged coordinate buffer it returns.
func (b *GPUBackend) DeriveBatch(base curve.Scalar, gridBits uint8) (Batch, error) {
	if err := ValidateGridBits(int(gridBits)); err != nil {
		return Batch{}, err
	}

	validated, _ := curve.Validate(base)

	raw, err := b.kernel.DeriveBatch([32]byte(validated), gridBits)
	if err != nil {
		return Batch{}, fmt.Errorf("gpu derive: %w", err)
	}

	n := 1 << gridBits
	if len(raw) != n*64 {
		return Batch{}, fmt.Errorf("gpu derive: got %d bytes, want %d", len(raw), n*64)
	}

	coords := make([]Coord, n)
	for i := 0; i < n; i++ {
		copy(coords[i][:], raw[i*64:(i+1)*64])
	}

	return Batch{Base: validated, GridBits: gridBits, Coords: coords}, nil
}

// Close releases the derivation kernel and the device context.
func (b *GPUBackend) Close() error {
	if err := b.kernel.Close(); err != nil {
		return err
	}
	return b.device.Close()
}
