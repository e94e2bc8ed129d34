package hashmatch

import (
	"fmt"
	"os"
	"sync"
)

// Hit is a confirmed match, from either a store probe or a vanity
// pattern match, ready to be rendered to the sink.
type Hit struct {
	Scalar  [32]byte
	Form    string // "compressed" or "uncompressed"
	Hash160 []byte
	Amount  uint64
	Address string
}

// Sink is the append-only hit-record writer. Writes are serialized with
// a mutex since the sink is shared-mutable across consumer workers;
// this is not on the hot path.
type Sink struct {
	mu sync.Mutex
	f  *os.File
}

// NewSink opens path for appending, creating it if necessary.
func NewSink(path string) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("hashmatch: opening hit sink: %w", err)
	}
	return &Sink{f: f}, nil
}

// Write appends one line: scalar_hex\tform\thash_hex\tamount\tbase58
func (s *Sink) Write(h Hit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line := fmt.Sprintf("%x\t%s\t%x\t%d\t%s\n", h.Scalar, h.Form, h.Hash160, h.Amount, h.Address)
	_, err := s.f.WriteString(line)
	return err
}

// Close flushes and closes the underlying file.
func (s *Sink) Close() error {
	return s.f.Close()
}
