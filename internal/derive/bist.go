package derive

import (
	"errors"
	"fmt"
	"math/big"

	"keysearch/internal/curve"
)

// ErrBISTMismatch is returned when a GPU back-end's derivation disagrees
// with the CPU reference on any byte of any coordinate. A BIST failure
// marks the GPU back-end unusable for the process lifetime.
var ErrBISTMismatch = errors.New("derive: GPU self-test mismatch against CPU reference")

// selfTestScalars mirrors gpu/wrapper.SelfTestScalars without importing
// the cgo-heavy wrapper package from a file that must build in a non-cuda
// binary too.
func selfTestScalars() []curve.Scalar {
	mk := func(v byte) curve.Scalar {
		var s curve.Scalar
		s[31] = v
		return s
	}
	nMinus1 := curve.FromBigInt(new(big.Int).Sub(curve.N, big.NewInt(1)))
	twoPow128 := curve.Scalar{16: 0x01}

	return []curve.Scalar{mk(1), mk(2), mk(3), mk(255), twoPow128, nMinus1}
}

// RunBIST derives the fixed self-test scalar set on both the CPU
// reference and the candidate back-end (typically a GPU back-end) and
// compares every byte of every coordinate. Any mismatch returns
// ErrBISTMismatch and the candidate must not be used for real batches.
func RunBIST(candidate Backend) error {
	cpu := NewCPUBackend()
	defer cpu.Close()

	for _, s := range selfTestScalars() {
		want, err := cpu.DeriveBatch(s, 0)
		if err != nil {
			return fmt.Errorf("deriving CPU reference: %w", err)
		}
		got, err := candidate.DeriveBatch(s, 0)
		if err != nil {
			return fmt.Errorf("deriving candidate batch: %w", err)
		}
		if len(want.Coords) != len(got.Coords) {
			return fmt.Errorf("%w: coordinate count mismatch", ErrBISTMismatch)
		}
		for i := range want.Coords {
			if want.Coords[i] != got.Coords[i] {
				return fmt.Errorf("%w: scalar %x coordinate %d differs", ErrBISTMismatch, s, i)
			}
		}
	}
	return nil
}
