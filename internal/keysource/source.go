// Package keysource generates candidate secp256k1 private-key scalars
// from one of several strategies: secure randomness, seeded randomness,
// bit-masked randomness for puzzle-range search, or replay of scalars
// recorded in a text file.
package keysource

import (
	"errors"

	"keysearch/internal/curve"
)

// ErrClosed is returned by any operation on a Source after Close.
var ErrClosed = errors.New("keysource: source closed")

// Source is the capability set every key-source variant implements.
// Producers pairing a base scalar with a derivation grid call NextBase;
// producers that hash one scalar at a time call NextBatch. Every variant
// validates its output against [1, N-1] and substitutes the fixed value
// 2 on violation before returning.
type Source interface {
	// ID is the unique, non-null identifier producers reference this
	// source by.
	ID() string
	// NextBase returns the next scalar for a batch base.
	NextBase() (curve.Scalar, error)
	// NextBatch returns the next n scalars, one derivation each.
	NextBatch(n int) ([]curve.Scalar, error)
	// Close releases any resources (open files) held by the source.
	Close() error
}

// validate runs the shared substitution rule and is called by every
// variant right before a scalar leaves the package.
func validate(s curve.Scalar) curve.Scalar {
	v, _ := curve.Validate(s)
	return v
}
