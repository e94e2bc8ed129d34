package coordinator

import (
	"context"
	"errors"
	"io"

	"keysearch/internal/derive"
	"keysearch/internal/hashmatch"
	"keysearch/internal/keysource"
)

// BatchProducer pairs a key source with a derivation back-end and pushes
// the resulting batches into the consumer's bounded queue. It is the
// single Producer implementation for both the CPU and GPU back-ends —
// the two differ only in which derive.Backend they were constructed
// with.
type BatchProducer struct {
	lifecycle
	id       string
	source   keysource.Source
	backend  derive.Backend
	gridBits uint8
	runOnce  bool
	consumer *hashmatch.Consumer
}

// NewBatchProducer constructs a producer in state UNINITIALIZED.
func NewBatchProducer(id string, source keysource.Source, backend derive.Backend, gridBits uint8, runOnce bool, consumer *hashmatch.Consumer) *BatchProducer {
	return &BatchProducer{
		id:       id,
		source:   source,
		backend:  backend,
		gridBits: gridBits,
		runOnce:  runOnce,
		consumer: consumer,
	}
}

// ID implements Producer.
func (p *BatchProducer) ID() string { return p.id }

// Init implements Producer. The source and backend are already
// constructed by the time a BatchProducer exists (any GPU BIST failure
// surfaces there, before Init is ever called), so Init only records the
// lifecycle transition.
func (p *BatchProducer) Init() error {
	p.setState(StateInitialized)
	return nil
}

// Run derives and pushes batches until the key source is exhausted, ctx
// is cancelled, or (for a run-once producer) a single batch has been
// pushed. A batch that fails to derive is dropped and the producer
// continues with the next base; producers never retry a failed
// derivation.
func (p *BatchProducer) Run(ctx context.Context) error {
	p.setState(StateRunning)
	defer p.setState(StateNotRunning)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		base, err := p.source.NextBase()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		batch, err := p.backend.DeriveBatch(base, p.gridBits)
		if err != nil {
			continue
		}

		if err := p.consumer.Push(ctx, batch); err != nil {
			return nil
		}

		if p.runOnce {
			return nil
		}
	}
}

// Close releases the source and the derivation back-end.
func (p *BatchProducer) Close() error {
	return errors.Join(p.source.Close(), p.backend.Close())
}
