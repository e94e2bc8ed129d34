package derive

import (
	"errors"
	"testing"

	"keysearch/internal/curve"
)

func TestRunBISTPassesAgainstItself(t *testing.T) {
	backend := NewCPUBackend()
	defer backend.Close()

	if err := RunBIST(backend); err != nil {
		t.Fatalf("RunBIST against a correct backend: %v", err)
	}
}

// wrongBackend derives every batch off by one point, simulating a broken
// GPU kernel that RunBIST must catch.
type wrongBackend struct {
	cpu *CPUBackend
}

func (w *wrongBackend) DeriveBatch(base curve.Scalar, gridBits uint8) (Batch, error) {
	batch, err := w.cpu.DeriveBatch(base.Add(1), gridBits)
	if err != nil {
		return Batch{}, err
	}
	batch.Base = base
	return batch, nil
}

func (w *wrongBackend) Close() error { return nil }

func TestRunBISTCatchesMismatch(t *testing.T) {
	wrong := &wrongBackend{cpu: NewCPUBackend()}
	defer wrong.Close()

	err := RunBIST(wrong)
	if !errors.Is(err, ErrBISTMismatch) {
		t.Fatalf("expected ErrBISTMismatch, got %v", err)
	}
}
