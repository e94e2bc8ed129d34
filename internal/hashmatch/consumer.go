package hashmatch

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/klauspost/cpuid/v2"

	"keysearch/internal/derive"
	"keysearch/internal/store"
)

// queueFactor sizes the bounded batch queue to the number of consumer
// worker threads times a small constant, giving producers a little
// slack before Push starts applying back-pressure.
const queueFactor = 4

// Consumer owns the bounded batch queue and a fixed pool of worker
// goroutines, each sized by the number of physical CPU cores. A batch
// is never split across workers.
type Consumer struct {
	store  *store.Store
	vanity *VanityMatcher
	sink   *Sink

	queue   chan derive.Batch
	workers int

	hits    int64
	scanned int64

	wg      sync.WaitGroup
	errOnce sync.Once
	err     error
}

// NewConsumer builds a consumer with a worker pool sized to the number
// of physical CPU cores reported by cpuid, unless overridden.
func NewConsumer(st *store.Store, vanity *VanityMatcher, sink *Sink) *Consumer {
	workers := cpuid.CPU.PhysicalCores
	if workers < 1 {
		workers = 1
	}
	return &Consumer{
		store:   st,
		vanity:  vanity,
		sink:    sink,
		queue:   make(chan derive.Batch, workers*queueFactor),
		workers: workers,
	}
}

// Push enqueues a batch, blocking if the queue is full, or returning
// early if ctx is cancelled.
func (c *Consumer) Push(ctx context.Context, batch derive.Batch) error {
	select {
	case c.queue <- batch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the worker pool. It returns once ctx is cancelled and every
// worker has drained its in-flight batch. A fatal error from any worker
// (a store-internal lookup failure or a hit-sink write failure) stops
// the rest of the pool early; see Err.
func (c *Consumer) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(ctx, cancel)
	}
}

// Wait blocks until every worker has exited.
func (c *Consumer) Wait() {
	c.wg.Wait()
}

// Err returns the first fatal error encountered by any worker, or nil
// if every batch was processed cleanly. Safe to call once Wait returns.
func (c *Consumer) Err() error {
	return c.err
}

func (c *Consumer) setErr(err error) {
	c.errOnce.Do(func() {
		c.err = err
	})
}

// Close closes the queue so workers exit once it drains. Callers must
// stop calling Push before Close.
func (c *Consumer) Close() {
	close(c.queue)
}

// Hits returns the number of confirmed hits written to the sink.
func (c *Consumer) Hits() int64 { return atomic.LoadInt64(&c.hits) }

// Scanned returns the number of coordinate pairs processed.
func (c *Consumer) Scanned() int64 { return atomic.LoadInt64(&c.scanned) }

func (c *Consumer) worker(ctx context.Context, cancel context.CancelFunc) {
	defer c.wg.Done()
	for {
		select {
		case batch, ok := <-c.queue:
			if !ok {
				return
			}
			if err := c.processBatch(batch); err != nil {
				c.setErr(err)
				cancel()
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// processBatch hashes every coordinate in both serialization forms,
// probes the store, and checks the vanity pattern, entirely on this
// worker's goroutine. It stops at the first fatal error — a store or
// hit-sink failure — and returns it to the caller.
func (c *Consumer) processBatch(batch derive.Batch) error {
	for i, coord := range batch.Coords {
		scalar := batch.Base.Add(uint64(i))
		atomic.AddInt64(&c.scanned, 1)

		if err := c.checkForm(scalar, "uncompressed", coord.Uncompressed()); err != nil {
			return err
		}
		if err := c.checkForm(scalar, "compressed", coord.Compressed()); err != nil {
			return err
		}
	}
	return nil
}

func (c *Consumer) checkForm(scalar [32]byte, form string, serialized []byte) error {
	hash := Hash160(serialized)

	address, vanityMatch, vanityErr := "", false, error(nil)
	if c.vanity.Enabled() {
		address, vanityMatch, vanityErr = c.vanity.Match(hash)
	}

	amount, found, err := c.store.Contains(hash)
	if err != nil {
		return err
	}

	if !found && !vanityMatch {
		return nil
	}
	if vanityErr != nil {
		return nil
	}

	// A plain store hit with no vanity pattern configured never went
	// through Match above, so the address still needs rendering — every
	// hit-sink line carries one, not just vanity hits.
	if address == "" {
		address, err = c.vanity.Render(hash)
		if err != nil {
			return err
		}
	}

	atomic.AddInt64(&c.hits, 1)
	return c.sink.Write(Hit{
		Scalar:  scalar,
		Form:    form,
		Hash160: hash,
		Amount:  amount,
		Address: address,
	})
}
