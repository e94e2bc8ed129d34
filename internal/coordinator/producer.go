package coordinator

import (
	"context"
	"sync/atomic"
)

// State is a producer's lifecycle stage.
type State int32

const (
	StateUninitialized State = iota
	StateInitialized
	StateRunning
	StateNotRunning
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateInitialized:
		return "INITIALIZED"
	case StateRunning:
		return "RUNNING"
	case StateNotRunning:
		return "NOT_RUNNING"
	default:
		return "UNKNOWN"
	}
}

// Producer is the capability set every producer variant implements:
// initialize, produce-until-stopped, interrupt, report-state.
type Producer interface {
	// ID identifies the producer in logs and error reports.
	ID() string
	// Init transitions UNINITIALIZED -> INITIALIZED, preparing any
	// resources (a GPU device context, an open file) the producer
	// needs before it can run.
	Init() error
	// Run blocks, deriving and pushing batches until ctx is
	// cancelled or the producer's key source is exhausted. It
	// transitions RUNNING -> NOT_RUNNING on return.
	Run(ctx context.Context) error
	// State reports the producer's current lifecycle stage.
	State() State
	// Close releases resources acquired by Init.
	Close() error
}

// lifecycle is embedded by concrete producers to provide a thread-safe
// State().
type lifecycle struct {
	state atomic.Int32
}

func (l *lifecycle) State() State {
	return State(l.state.Load())
}

func (l *lifecycle) setState(s State) {
	l.state.Store(int32(s))
}
