// Package curve holds the secp256k1 domain parameters shared by the CPU
// derivation path, the GPU GTable generator, and the built-in self-test.
package curve

import (
	"crypto/rand"
	"math/big"
)

var (
	// P is the secp256k1 prime field modulus.
	P, _ = new(big.Int).SetString("FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEFFFFFC2F", 16)
	// N is the order of the secp256k1 base point (the group order).
	N, _ = new(big.Int).SetString("FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEBAAEDCE6AF48A03BBFD25E8CD0364141", 16)
	// Gx, Gy are the coordinates of the secp256k1 generator point.
	Gx, _ = new(big.Int).SetString("79BE667EF9DCBBAC55A06295CE870B07029BFCDB2DCE28D959F2815B16F81798", 16)
	Gy, _ = new(big.Int).SetString("483ADA7726A3C4655DA4FBFC0E1108A8FD17B448A68554199C47D08FFB10D4B8", 16)

	one = big.NewInt(1)
)

// substituteScalar is the fixed replacement value used for any scalar
// produced outside [1, N-1]: it keeps batches rectangular without ever
// aborting the pipeline.
const substituteScalar = 2

// Scalar is a nonnegative 256-bit integer in big-endian byte order.
type Scalar [32]byte

// FromBigInt renders a big.Int as a big-endian Scalar. Callers must ensure
// v fits in 256 bits; Validate is the place invalid values are corrected.
func FromBigInt(v *big.Int) Scalar {
	var s Scalar
	b := v.Bytes()
	copy(s[32-len(b):], b)
	return s
}

// BigInt returns the scalar as a big.Int.
func (s Scalar) BigInt() *big.Int {
	return new(big.Int).SetBytes(s[:])
}

// Add returns s+delta as a new Scalar, without validating range.
func (s Scalar) Add(delta uint64) Scalar {
	v := s.BigInt()
	v.Add(v, new(big.Int).SetUint64(delta))
	return FromBigInt(v)
}

// Validate checks s against [1, N-1] and returns the substitute scalar
// `2` along with false when s is out of range. The substitution is
// deliberately observable: a hit derived from a substituted scalar
// carries the value 2.
func Validate(s Scalar) (Scalar, bool) {
	v := s.BigInt()
	if v.Sign() <= 0 || v.Cmp(N) >= 0 {
		return substituteScalarValue(), false
	}
	return s, true
}

func substituteScalarValue() Scalar {
	return FromBigInt(big.NewInt(substituteScalar))
}

// Random draws a uniformly random Scalar in [1, N-1] using a
// cryptographically secure source. It retries on the (astronomically
// unlikely) case the raw 256 bits land outside the group order.
func Random() (Scalar, error) {
	for {
		var buf [32]byte
		if _, err := rand.Read(buf[:]); err != nil {
			return Scalar{}, err
		}
		v := new(big.Int).SetBytes(buf[:])
		if v.Sign() > 0 && v.Cmp(N) < 0 {
			return Scalar(buf), nil
		}
	}
}

// MaskTopBits zeroes the top 256-k bits of s, restricting it to the
// effective 2^k key space used by bit-masked puzzle-range search.
func MaskTopBits(s Scalar, k int) Scalar {
	if k <= 0 {
		return Scalar{}
	}
	if k >= 256 {
		return s
	}
	v := s.BigInt()
	mask := new(big.Int).Lsh(one, uint(k))
	mask.Sub(mask, one)
	v.And(v, mask)
	return FromBigInt(v)
}
