// Package coordinator wires key sources, the hash/match consumer, and
// producers together and enforces the startup and shutdown ordering
// they must run under.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"keysearch/internal/config"
	"keysearch/internal/derive"
	"keysearch/internal/hashmatch"
	"keysearch/internal/keysource"
	"keysearch/internal/store"
)

// ErrUnknownKeySourceReference is returned when a producer or bit-masked
// key source names a key source id that was never built.
var ErrUnknownKeySourceReference = errors.New("coordinator: unknown key source reference")

// Coordinator owns every key source, the consumer, and every producer
// for one Find run, and enforces that they start in the order key
// sources -> consumer -> producers, and stop in the reverse order.
type Coordinator struct {
	sources   map[string]keysource.Source
	consumer  *hashmatch.Consumer
	producers []Producer
	store     *store.Store
	deadline  time.Duration
}

// Build constructs every key source, the store-backed consumer, and
// every producer named in cfg, but starts nothing. Key sources are
// built before the consumer, which is built before producers, matching
// the order they are later started in Run.
func Build(cfg config.FindConfig) (*Coordinator, error) {
	sources, err := buildKeySources(cfg.KeySources)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Consumer.StorePath, store.ReadOnly(), store.WithMinMapSize(cfg.Consumer.MinMapSize))
	if err != nil {
		closeSources(sources)
		return nil, fmt.Errorf("coordinator: opening store: %w", err)
	}

	vanity, err := hashmatch.NewVanityMatcher(cfg.Consumer.VanityPattern)
	if err != nil {
		st.Close()
		closeSources(sources)
		return nil, fmt.Errorf("coordinator: compiling vanity pattern: %w", err)
	}

	sink, err := hashmatch.NewSink(cfg.Consumer.HitSinkPath)
	if err != nil {
		st.Close()
		closeSources(sources)
		return nil, fmt.Errorf("coordinator: opening hit sink: %w", err)
	}

	consumer := hashmatch.NewConsumer(st, vanity, sink)

	producers, err := buildProducers(cfg.Producers, sources, consumer)
	if err != nil {
		sink.Close()
		st.Close()
		closeSources(sources)
		return nil, err
	}

	deadline := time.Duration(cfg.ShutdownDeadline) * time.Millisecond
	if deadline <= 0 {
		deadline = 30 * time.Second
	}

	return &Coordinator{
		sources:   sources,
		consumer:  consumer,
		producers: producers,
		store:     st,
		deadline:  deadline,
	}, nil
}

func buildKeySources(cfgs []config.KeySourceConfig) (map[string]keysource.Source, error) {
	sources := make(map[string]keysource.Source, len(cfgs))
	// Bit-masked sources reference another key source by id, so build
	// every non-bit-masked source first, then resolve bit-masked
	// wrappers against what is already built.
	var deferred []config.KeySourceConfig
	for _, sc := range cfgs {
		if sc.Type == config.KeySourceBitMasked {
			deferred = append(deferred, sc)
			continue
		}
		src, err := buildLeafKeySource(sc)
		if err != nil {
			closeSources(sources)
			return nil, err
		}
		sources[sc.ID] = src
	}
	for _, sc := range deferred {
		inner, ok := sources[sc.InnerID]
		if !ok {
			closeSources(sources)
			return nil, fmt.Errorf("%w: %s (inner id %s)", ErrUnknownKeySourceReference, sc.ID, sc.InnerID)
		}
		sources[sc.ID] = keysource.NewBitMasked(sc.ID, inner, sc.Bits)
	}
	return sources, nil
}

func buildLeafKeySource(sc config.KeySourceConfig) (keysource.Source, error) {
	switch sc.Type {
	case config.KeySourceSecureRandom:
		return keysource.NewSecureRandom(sc.ID), nil
	case config.KeySourceSeededRandom:
		return keysource.NewSeededRandom(sc.ID, sc.Seed), nil
	case config.KeySourceFileReplay:
		format, err := fileFormat(sc.Format)
		if err != nil {
			return nil, err
		}
		return keysource.NewFileReplay(sc.ID, sc.Path, format)
	default:
		return nil, fmt.Errorf("coordinator: key source %s: unsupported type %q here", sc.ID, sc.Type)
	}
}

func fileFormat(f config.FileFormat) (keysource.Format, error) {
	switch f {
	case config.FileFormatDecimal:
		return keysource.FormatDecimal, nil
	case config.FileFormatHex:
		return keysource.FormatHex, nil
	case config.FileFormatWIF:
		return keysource.FormatWIF, nil
	case config.FileFormatMnemonic:
		return keysource.FormatMnemonic, nil
	default:
		return 0, fmt.Errorf("coordinator: unknown file format %q", f)
	}
}

func buildProducers(cfgs []config.ProducerConfig, sources map[string]keysource.Source, consumer *hashmatch.Consumer) ([]Producer, error) {
	producers := make([]Producer, 0, len(cfgs))
	for i, pc := range cfgs {
		src, ok := sources[pc.KeySourceID]
		if !ok {
			return nil, fmt.Errorf("%w: producer %d references %s", ErrUnknownKeySourceReference, i, pc.KeySourceID)
		}

		var backend derive.Backend
		switch pc.Type {
		case config.ProducerCPU:
			backend = derive.NewCPUBackend()
		case config.ProducerGPU:
			gb, err := derive.NewGPUBackend(derive.GPUConfig{
				DeviceOrdinal: pc.GPUDeviceOrdinal,
				PTXPath:       pc.GPUPTXPath,
				GTableXPath:   pc.GPUGTableXPath,
				GTableYPath:   pc.GPUGTableYPath,
			})
			if err != nil {
				if pc.GPUFatalOnBISTFailure {
					return nil, fmt.Errorf("coordinator: producer %d: %w", i, err)
				}
				// Non-fatal per config: drop this producer, keep the
				// rest of the pipeline running.
				continue
			}
			backend = gb
		default:
			return nil, fmt.Errorf("coordinator: producer %d: unsupported type %q", i, pc.Type)
		}

		id := fmt.Sprintf("%s/%d", pc.Type, i)
		producers = append(producers, NewBatchProducer(id, src, backend, pc.GridBits, pc.RunOnce, consumer))
	}
	return producers, nil
}

func closeSources(sources map[string]keysource.Source) {
	for _, s := range sources {
		s.Close()
	}
}

// Run starts key sources implicitly (they need no explicit Init), then
// the consumer, then every producer, and blocks until every producer
// has stopped — either because its key source was exhausted or because
// SIGINT/SIGTERM arrived. On signal, Run drains in-flight batches into
// the consumer and waits up to the configured shutdown deadline before
// returning.
//
// A single producer's runtime failure (a malformed line from a file
// replay source, for instance) is logged and does not fail the run —
// the rest of the producers and the consumer keep going. Run only
// returns an error for a producer that fails to initialize, or for a
// fatal error out of the consumer itself (a store-internal failure or a
// hit-sink write failure), which is unrecoverable for the whole
// pipeline.
func (c *Coordinator) Run(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, p := range c.producers {
		if err := p.Init(); err != nil {
			return fmt.Errorf("coordinator: initializing producer %s: %w", p.ID(), err)
		}
	}

	c.consumer.Run(ctx)

	var wg sync.WaitGroup
	for _, p := range c.producers {
		wg.Add(1)
		go func(p Producer) {
			defer wg.Done()
			if err := p.Run(ctx); err != nil {
				log.Printf("coordinator: producer %s: %v", p.ID(), err)
			}
		}(p)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		select {
		case <-done:
		case <-time.After(c.deadline):
		}
	}

	c.consumer.Close()
	c.consumer.Wait()

	if err := c.consumer.Err(); err != nil {
		return fmt.Errorf("coordinator: %w", err)
	}
	return nil
}

// Close releases every producer, key source, and the store, in the
// reverse of build order.
func (c *Coordinator) Close() error {
	var err error
	for _, p := range c.producers {
		err = errors.Join(err, p.Close())
	}
	for _, s := range c.sources {
		err = errors.Join(err, s.Close())
	}
	err = errors.Join(err, c.store.Close())
	return err
}

// Hits reports the number of confirmed hits found so far.
func (c *Coordinator) Hits() int64 { return c.consumer.Hits() }

// Scanned reports the number of coordinate pairs scanned so far.
func (c *Coordinator) Scanned() int64 { return c.consumer.Scanned() }
