package keysource

import "keysearch/internal/curve"

// SecureRandom draws each scalar from a cryptographically secure RNG
// (crypto/rand, via curve.Random).
type SecureRandom struct {
	id     string
	closed bool
}

// NewSecureRandom constructs a secure-random key source identified by id.
func NewSecureRandom(id string) *SecureRandom {
	return &SecureRandom{id: id}
}

// ID implements Source.
func (s *SecureRandom) ID() string { return s.id }

// NextBase implements Source.
func (s *SecureRandom) NextBase() (curve.Scalar, error) {
	if s.closed {
		return curve.Scalar{}, ErrClosed
	}
	raw, err := curve.Random()
	if err != nil {
		return curve.Scalar{}, err
	}
	return validate(raw), nil
}

// NextBatch implements Source.
func (s *SecureRandom) NextBatch(n int) ([]curve.Scalar, error) {
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

// Close implements Source.
func (s *SecureRandom) Close() error {
	s.closed = true
	return nil
}
