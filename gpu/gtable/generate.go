// Package gtable builds the fixed-window scalar-multiplication table the
// GPU derivation kernel walks instead of doing a full point
// multiplication per key: 16 chunks of 65536 precomputed points, so any
// 256-bit scalar times G costs 16 point additions on-device instead of
// up to 256 point doublings.
package gtable

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"os"

	"keysearch/internal/curve"
)

const (
	// ChunkCount is the number of 16-bit windows a 256-bit scalar is
	// split into.
	ChunkCount = 16
	// ChunkSize is the number of precomputed points per window: one for
	// each nonzero 16-bit value.
	ChunkSize = 65536
	// PointBytes is the size of one coordinate (X or Y alone) in the
	// table's little-endian on-disk and on-device layout.
	PointBytes = 32

	tableBytes = ChunkCount * ChunkSize * PointBytes
)

// P is the secp256k1 prime field modulus, shared with internal/curve so
// the table and the CPU/GPU derivation back-ends agree on domain
// parameters.
var P = curve.P

// Point is a secp256k1 point in affine coordinates. A nil X (with Y
// also nil) represents the point at infinity.
type Point struct {
	X, Y *big.Int
}

// NewPoint copies x, y into a new Point.
func NewPoint(x, y *big.Int) *Point {
	return &Point{X: new(big.Int).Set(x), Y: new(big.Int).Set(y)}
}

// Infinity returns the point at infinity, the curve's additive identity.
func Infinity() *Point {
	return &Point{}
}

// IsInfinity reports whether p is the point at infinity.
func (p *Point) IsInfinity() bool {
	return p.X == nil && p.Y == nil
}

// G returns the secp256k1 generator point.
func G() *Point {
	return NewPoint(curve.Gx, curve.Gy)
}

// Add returns p1+p2 in affine coordinates, dispatching to Double when
// the two points coincide.
func Add(p1, p2 *Point) *Point {
	if p1.IsInfinity() {
		return NewPoint(p2.X, p2.Y)
	}
	if p2.IsInfinity() {
		return NewPoint(p1.X, p1.Y)
	}
	if p1.X.Cmp(p2.X) == 0 {
		if p1.Y.Cmp(p2.Y) == 0 {
			return Double(p1)
		}
		return Infinity() // p2 == -p1
	}

	// slope = (y2 - y1) / (x2 - x1)
	slope := new(big.Int).Sub(p2.Y, p1.Y)
	dx := new(big.Int).Sub(p2.X, p1.X)
	dx.ModInverse(dx, P)
	slope.Mul(slope, dx)
	slope.Mod(slope, P)

	return affineFromSlope(slope, p1.X, p2.X, p1.X, p1.Y)
}

// Double returns 2p in affine coordinates.
func Double(p *Point) *Point {
	if p.IsInfinity() || p.Y.Sign() == 0 {
		return Infinity()
	}

	// slope = 3x^2 / 2y (secp256k1's curve equation has a=0)
	slope := new(big.Int).Mul(p.X, p.X)
	slope.Mul(slope, big.NewInt(3))
	slope.Mod(slope, P)

	denom := new(big.Int).Mul(p.Y, big.NewInt(2))
	denom.ModInverse(denom, P)
	slope.Mul(slope, denom)
	slope.Mod(slope, P)

	return affineFromSlope(slope, p.X, p.X, p.X, p.Y)
}

// affineFromSlope finishes an addition or doubling given the already
// computed slope and the two X coordinates being combined, plus one
// point's X, Y to subtract off.
func affineFromSlope(slope, x1, x2, subX, subY *big.Int) *Point {
	x3 := new(big.Int).Mul(slope, slope)
	x3.Sub(x3, x1)
	x3.Sub(x3, x2)
	x3.Mod(x3, P)

	y3 := new(big.Int).Sub(subX, x3)
	y3.Mul(y3, slope)
	y3.Sub(y3, subY)
	y3.Mod(y3, P)

	return &Point{X: x3, Y: y3}
}

// ToBytes serializes p as little-endian X and Y byte arrays, the byte
// order the GPU kernel expects.
func (p *Point) ToBytes() (xBytes, yBytes [PointBytes]byte) {
	if p.IsInfinity() {
		return
	}
	bigIntToLE(p.X, xBytes[:])
	bigIntToLE(p.Y, yBytes[:])
	return
}

func bigIntToLE(v *big.Int, out []byte) {
	be := v.Bytes()
	for i := 0; i < len(be) && i < len(out); i++ {
		out[i] = be[len(be)-1-i]
	}
}

func bigIntFromLE(b []byte) *big.Int {
	v := new(big.Int)
	for i := len(b) - 1; i >= 0; i-- {
		v.Lsh(v, 8)
		v.Or(v, big.NewInt(int64(b[i])))
	}
	return v
}

// Table holds the precomputed points, X and Y coordinates in separate
// flat buffers for GPU-friendly access patterns. Point i of chunk c
// is (i+1) * 2^(16*c) * G.
type Table struct {
	X []byte
	Y []byte
}

// Generate computes the full table. progress, if non-nil, is called
// once per chunk as it completes.
func Generate(progress func(chunk int)) (*Table, error) {
	gt := &Table{
		X: make([]byte, tableBytes),
		Y: make([]byte, tableBytes),
	}

	point := G()
	for chunk := 0; chunk < ChunkCount; chunk++ {
		if progress != nil {
			progress(chunk)
		}

		base := chunk * ChunkSize * PointBytes
		xBytes, yBytes := point.ToBytes()
		copy(gt.X[base:base+PointBytes], xBytes[:])
		copy(gt.Y[base:base+PointBytes], yBytes[:])

		chunkBase := NewPoint(point.X, point.Y)
		point = Double(point)

		for i := 1; i < ChunkSize-1; i++ {
			offset := base + i*PointBytes
			xBytes, yBytes = point.ToBytes()
			copy(gt.X[offset:offset+PointBytes], xBytes[:])
			copy(gt.Y[offset:offset+PointBytes], yBytes[:])
			point = Add(point, chunkBase)
		}
		// point is now 65536*chunkBase == 2^(16*(chunk+1))*G, the seed
		// for the next chunk.
	}

	return gt, nil
}

// Save writes the table to two binary files.
func (gt *Table) Save(xPath, yPath string) error {
	if err := os.WriteFile(xPath, gt.X, 0o644); err != nil {
		return fmt.Errorf("gtable: writing X table: %w", err)
	}
	if err := os.WriteFile(yPath, gt.Y, 0o644); err != nil {
		return fmt.Errorf("gtable: writing Y table: %w", err)
	}
	return nil
}

// Load reads a previously saved table back from disk, validating both
// files are exactly the expected size.
func Load(xPath, yPath string) (*Table, error) {
	x, err := os.ReadFile(xPath)
	if err != nil {
		return nil, fmt.Errorf("gtable: reading X table: %w", err)
	}
	y, err := os.ReadFile(yPath)
	if err != nil {
		return nil, fmt.Errorf("gtable: reading Y table: %w", err)
	}
	if len(x) != tableBytes {
		return nil, fmt.Errorf("gtable: X table size %d, want %d", len(x), tableBytes)
	}
	if len(y) != tableBytes {
		return nil, fmt.Errorf("gtable: Y table size %d, want %d", len(y), tableBytes)
	}
	return &Table{X: x, Y: y}, nil
}

// Verify checks that the table's first point is G.
func (gt *Table) Verify() error {
	p, err := gt.PointAt(0)
	if err != nil {
		return err
	}
	if p.X.Cmp(curve.Gx) != 0 {
		return fmt.Errorf("gtable: first point X is %s, want %s", p.X.Text(16), curve.Gx.Text(16))
	}
	if p.Y.Cmp(curve.Gy) != 0 {
		return fmt.Errorf("gtable: first point Y is %s, want %s", p.Y.Text(16), curve.Gy.Text(16))
	}
	return nil
}

// PointAt decodes the point stored at the given flat index (0 to
// ChunkCount*ChunkSize-1).
func (gt *Table) PointAt(index int) (*Point, error) {
	if index < 0 || index >= ChunkCount*ChunkSize {
		return nil, fmt.Errorf("gtable: index %d out of range", index)
	}
	offset := index * PointBytes
	return &Point{
		X: bigIntFromLE(gt.X[offset : offset+PointBytes]),
		Y: bigIntFromLE(gt.Y[offset : offset+PointBytes]),
	}, nil
}

// GeneratorHash returns the first 8 bytes of the X table as a quick
// fingerprint for sanity-checking a loaded table against expectations.
func (gt *Table) GeneratorHash() uint64 {
	return binary.LittleEndian.Uint64(gt.X[0:8])
}
