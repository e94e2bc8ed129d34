package keysource

import "keysearch/internal/curve"

// BitMasked wraps another source and zeroes the top 256-k bits of every
// scalar it draws, restricting the effective key space to 2^k and
// implementing puzzle-range search.
type BitMasked struct {
	id     string
	inner  Source
	bits   int
	closed bool
}

// NewBitMasked wraps inner, masking every drawn scalar down to bits of
// effective key space.
func NewBitMasked(id string, inner Source, bits int) *BitMasked {
	return &BitMasked{id: id, inner: inner, bits: bits}
}

// ID implements Source.
func (s *BitMasked) ID() string { return s.id }

// NextBase implements Source.
func (s *BitMasked) NextBase() (curve.Scalar, error) {
	if s.closed {
		return curve.Scalar{}, ErrClosed
	}
	raw, err := s.inner.NextBase()
	if err != nil {
		return curve.Scalar{}, err
	}
	return validate(curve.MaskTopBits(raw, s.bits)), nil
}

// NextBatch implements Source.
func (s *BitMasked) NextBatch(n int) ([]curve.Scalar, error) {
	out := make([]curve.Scalar, n)
	for i := range out {
		v, err := s.NextBase()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Close implements Source. It closes the wrapped inner source too.
func (s *BitMasked) Close() error {
	s.closed = true
	return s.inner.Close()
}
