package derive

import (
	secp256k1 "github.com/decred/dcrd/dcrec/secp256k1/v4"

	"keysearch/internal/curve"
)

// CPUBackend derives batches using the decred/dcrd secp256k1 primitives
// that back github.com/btcsuite/btcd/btcec/v2. It shares a single
// addition chain across the batch: computing s·G once via
// ScalarBaseMultNonConst, then walking the remaining 2^g-1 slots by
// adding G in Jacobian coordinates, while still producing output that
// is bit-identical to independent scalar multiplications (verified in
// cpu_test.go against btcec's own PublicKey serialization).
type CPUBackend struct {
	g secp256k1.JacobianPoint
}

// NewCPUBackend constructs a CPU derivation back-end.
func NewCPUBackend() *CPUBackend {
	var one secp256k1.ModNScalar
	one.SetInt(1)

	var g secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&one, &g)

	return &CPUBackend{g: g}
}

// Close is a no-op for the CPU back-end; it exists to satisfy Backend.
func (b *CPUBackend) Close() error { return nil }

// DeriveBatch implements Backend.
func (b *CPUBackend) DeriveBatch(base curve.Scalar, gridBits uint8) (Batch, error) {
	if err := ValidateGridBits(int(gridBits)); err != nil {
		return Batch{}, err
	}

	validated, _ := curve.Validate(base)

	var k secp256k1.ModNScalar
	k.SetByteSlice(validated[:])

	var p secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&k, &p)

	n := 1 << gridBits
	coords := make([]Coord, n)

	for i := 0; i < n; i++ {
		affine := p
		affine.ToAffine()

		var c Coord
		xBytes := affine.X.Bytes()
		yBytes := affine.Y.Bytes()
		copy(c[0:32], xBytes[:])
		copy(c[32:64], yBytes[:])
		coords[i] = c

		if i != n-1 {
			var next secp256k1.JacobianPoint
			secp256k1.AddNonConst(&p, &b.g, &next)
			p = next
		}
	}

	return Batch{Base: validated, GridBits: gridBits, Coords: coords}, nil
}
