package wrapper

import (
	"fmt"
	"os"
	"unsafe"

	"keysearch/gpu/gtable"
)

// gTableSize is the byte size of one GTable coordinate array.
const gTableSize = gtable.ChunkCount * gtable.ChunkSize * gtable.PointBytes

// DeriveKernel wraps the device-side batch derivation kernel: it
// transfers a single 256-bit base scalar, launches a grid of 2^g work
// items where item i computes (s+i)·G using the precomputed GTable, and
// reads back a flat 2^g*64 byte coordinate buffer with no tag byte (the
// host re-tags on read-back in internal/derive).
type DeriveKernel struct {
	device *Device
	module *Module
	kernel *Function

	gTableX *DeviceMemory
	gTableY *DeviceMemory

	baseScalar *DeviceMemory
	outCoords  *DeviceMemory

	maxGridBits uint8
}

// DeriveKernelConfig configures a DeriveKernel.
type DeriveKernelConfig struct {
	PTXPath     string
	GTableXPath string
	GTableYPath string
	// MaxGridBits bounds the largest batch this kernel will be asked to
	// derive; device output memory is sized to 2^MaxGridBits*64 bytes up
	// front so DeriveBatch never has to reallocate mid-run.
	MaxGridBits uint8
}

// NewDeriveKernel loads the compiled PTX module, the precomputed GTable,
// and allocates the device buffers for the largest configured batch.
func NewDeriveKernel(device *Device, cfg DeriveKernelConfig) (*DeriveKernel, error) {
	if err := device.SetCurrent(); err != nil {
		return nil, fmt.Errorf("failed to set context: %w", err)
	}

	ptx, err := os.ReadFile(cfg.PTXPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read PTX: %w", err)
	}

	module, err := LoadModule(string(ptx))
	if err != nil {
		return nil, fmt.Errorf("failed to load module: %w", err)
	}

	kernel, err := module.GetFunction("keysearch_derive_kernel")
	if err != nil {
		return nil, fmt.Errorf("failed to get kernel: %w", err)
	}

	dk := &DeriveKernel{
		device:      device,
		module:      module,
		kernel:      kernel,
		maxGridBits: cfg.MaxGridBits,
	}

	if err := dk.loadGTable(cfg.GTableXPath, cfg.GTableYPath); err != nil {
		return nil, fmt.Errorf("failed to load GTable: %w", err)
	}

	if err := dk.allocateBuffers(); err != nil {
		return nil, fmt.Errorf("failed to allocate buffers: %w", err)
	}

	return dk, nil
}

func (dk *DeriveKernel) loadGTable(xPath, yPath string) error {
	xData, err := os.ReadFile(xPath)
	if err != nil {
		return fmt.Errorf("reading GTable X: %w", err)
	}
	if len(xData) != gTableSize {
		return fmt.Errorf("GTable X size mismatch: got %d, want %d", len(xData), gTableSize)
	}

	yData, err := os.ReadFile(yPath)
	if err != nil {
		return fmt.Errorf("reading GTable Y: %w", err)
	}
	if len(yData) != gTableSize {
		return fmt.Errorf("GTable Y size mismatch: got %d, want %d", len(yData), gTableSize)
	}

	dk.gTableX, err = dk.device.Alloc(uint64(gTableSize))
	if err != nil {
		return err
	}
	dk.gTableY, err = dk.device.Alloc(uint64(gTableSize))
	if err != nil {
		dk.gTableX.Free()
		return err
	}
	if err := dk.gTableX.CopyFromHost(xData); err != nil {
		return err
	}
	return dk.gTableY.CopyFromHost(yData)
}

func (dk *DeriveKernel) allocateBuffers() error {
	var err error
	dk.baseScalar, err = dk.device.Alloc(32)
	if err != nil {
		return fmt.Errorf("allocating base scalar buffer: %w", err)
	}
	maxPoints := uint64(1) << dk.maxGridBits
	dk.outCoords, err = dk.device.Alloc(maxPoints * 64)
	if err != nil {
		return fmt.Errorf("allocating output buffer: %w", err)
	}
	return nil
}

// DeriveBatch transfers base (32 big-endian bytes) to the device, launches
// 2^gridBits work items, and returns the raw 2^gridBits*64 byte coordinate
// buffer (X‖Y per point, no tag byte).
func (dk *DeriveKernel) DeriveBatch(base [32]byte, gridBits uint8) ([]byte, error) {
	if gridBits > dk.maxGridBits {
		return nil, fmt.Errorf("grid width %d exceeds configured max %d", gridBits, dk.maxGridBits)
	}
	if err := dk.device.SetCurrent(); err != nil {
		return nil, fmt.Errorf("failed to set context: %w", err)
	}

	baseBytes := base[:]
	if err := dk.baseScalar.CopyFromHost(baseBytes); err != nil {
		return nil, fmt.Errorf("copying base scalar: %w", err)
	}

	numPoints := 1 << gridBits
	blockSize := uint32(256)
	gridSize := uint32((numPoints + int(blockSize) - 1) / int(blockSize))

	basePtr := dk.baseScalar.Ptr()
	gTableXPtr := dk.gTableX.Ptr()
	gTableYPtr := dk.gTableY.Ptr()
	outPtr := dk.outCoords.Ptr()
	numPointsVal := int32(numPoints)

	params := []unsafe.Pointer{
		unsafe.Pointer(&basePtr),
		unsafe.Pointer(&numPointsVal),
		unsafe.Pointer(&gTableXPtr),
		unsafe.Pointer(&gTableYPtr),
		unsafe.Pointer(&outPtr),
	}

	if err := dk.kernel.Launch(gridSize, 1, 1, blockSize, 1, 1, 0, params); err != nil {
		return nil, fmt.Errorf("kernel launch failed: %w", err)
	}
	if err := dk.device.Synchronize(); err != nil {
		return nil, fmt.Errorf("synchronize failed: %w", err)
	}

	out := make([]byte, numPoints*64)
	if err := dk.outCoords.CopyToHost(out); err != nil {
		return nil, fmt.Errorf("copying results: %w", err)
	}
	return out, nil
}

// Close releases all device memory held by the kernel.
func (dk *DeriveKernel) Close() error {
	if dk.gTableX != nil {
		dk.gTableX.Free()
	}
	if dk.gTableY != nil {
		dk.gTableY.Free()
	}
	if dk.baseScalar != nil {
		dk.baseScalar.Free()
	}
	if dk.outCoords != nil {
		dk.outCoords.Free()
	}
	return nil
}
