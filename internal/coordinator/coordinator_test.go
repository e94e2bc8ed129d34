package coordinator

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"keysearch/internal/config"
	"keysearch/internal/derive"
	"keysearch/internal/hashmatch"
	"keysearch/internal/keysource"
	"keysearch/internal/store"
)

func TestBuildRejectsUnknownBitMaskedInner(t *testing.T) {
	_, err := buildKeySources([]config.KeySourceConfig{
		{ID: "masked", Type: config.KeySourceBitMasked, InnerID: "missing", Bits: 8},
	})
	if !errors.Is(err, ErrUnknownKeySourceReference) {
		t.Fatalf("expected ErrUnknownKeySourceReference, got %v", err)
	}
}

func TestBuildRejectsUnknownProducerKeySource(t *testing.T) {
	sources, err := buildKeySources([]config.KeySourceConfig{
		{ID: "a", Type: config.KeySourceSecureRandom},
	})
	if err != nil {
		t.Fatalf("buildKeySources: %v", err)
	}
	_, err = buildProducers([]config.ProducerConfig{
		{KeySourceID: "b", Type: config.ProducerCPU, GridBits: 1},
	}, sources, nil)
	if !errors.Is(err, ErrUnknownKeySourceReference) {
		t.Fatalf("expected ErrUnknownKeySourceReference, got %v", err)
	}
}

func TestBatchProducerRunOnceStopsAfterOneBatch(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "store.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()

	vanity, err := hashmatch.NewVanityMatcher("")
	if err != nil {
		t.Fatalf("NewVanityMatcher: %v", err)
	}
	sink, err := hashmatch.NewSink(filepath.Join(dir, "hits.tsv"))
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	defer sink.Close()

	consumer := hashmatch.NewConsumer(st, vanity, sink)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	consumer.Run(ctx)

	source := keysource.NewSeededRandom("seed-1", 42)
	backend := derive.NewCPUBackend()
	producer := NewBatchProducer("p0", source, backend, 2, true, consumer)

	if producer.State() != StateUninitialized {
		t.Fatalf("expected UNINITIALIZED before Init, got %s", producer.State())
	}
	if err := producer.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if producer.State() != StateInitialized {
		t.Fatalf("expected INITIALIZED after Init, got %s", producer.State())
	}

	if err := producer.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if producer.State() != StateNotRunning {
		t.Fatalf("expected NOT_RUNNING after Run returns, got %s", producer.State())
	}

	consumer.Close()
	consumer.Wait()
	if consumer.Scanned() == 0 {
		t.Fatal("expected at least one scanned coordinate from the run-once batch")
	}
}

func TestBatchProducerStopsOnContextCancel(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "store.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()

	vanity, _ := hashmatch.NewVanityMatcher("")
	sink, err := hashmatch.NewSink(filepath.Join(dir, "hits.tsv"))
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	defer sink.Close()

	// A consumer whose worker pool never runs, so the queue fills and
	// Push blocks until ctx is cancelled.
	consumer := hashmatch.NewConsumer(st, vanity, sink)

	source := keysource.NewSecureRandom("secure-1")
	backend := derive.NewCPUBackend()
	producer := NewBatchProducer("p0", source, backend, 1, false, consumer)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- producer.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("producer did not stop after context cancellation")
	}
}

func TestBatchProducerStopsOnSourceExhaustion(t *testing.T) {
	dir := t.TempDir()
	replayPath := filepath.Join(dir, "replay.txt")
	if err := os.WriteFile(replayPath, []byte("1\n2\n"), 0o644); err != nil {
		t.Fatalf("os.WriteFile: %v", err)
	}

	st, err := store.Open(filepath.Join(dir, "store.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()

	vanity, _ := hashmatch.NewVanityMatcher("")
	sink, err := hashmatch.NewSink(filepath.Join(dir, "hits.tsv"))
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	defer sink.Close()

	consumer := hashmatch.NewConsumer(st, vanity, sink)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	consumer.Run(ctx)

	source, err := keysource.NewFileReplay("replay-1", replayPath, keysource.FormatDecimal)
	if err != nil {
		t.Fatalf("NewFileReplay: %v", err)
	}
	backend := derive.NewCPUBackend()
	producer := NewBatchProducer("p0", source, backend, 0, false, consumer)

	err = producer.Run(ctx)
	if err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("Run: expected nil or io.EOF-wrapping, got %v", err)
	}
	consumer.Close()
	consumer.Wait()
}

func TestCoordinatorRunIgnoresNonFatalProducerError(t *testing.T) {
	dir := t.TempDir()
	replayPath := filepath.Join(dir, "replay.txt")
	// A single malformed line: the file-replay source will return a
	// non-EOF error from NextBase, which the producer surfaces from
	// Run. This must be logged, not treated as fatal to the run.
	if err := os.WriteFile(replayPath, []byte("not-a-number\n"), 0o644); err != nil {
		t.Fatalf("os.WriteFile: %v", err)
	}

	cfg := config.FindConfig{
		KeySources: []config.KeySourceConfig{
			{ID: "replay", Type: config.KeySourceFileReplay, Path: replayPath, Format: config.FileFormatDecimal},
		},
		Producers: []config.ProducerConfig{
			{KeySourceID: "replay", Type: config.ProducerCPU, GridBits: 1},
		},
		Consumer: config.ConsumerConfig{
			StorePath:   filepath.Join(dir, "store.db"),
			HitSinkPath: filepath.Join(dir, "hits.tsv"),
		},
		ShutdownDeadline: 200,
	}

	c, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run: expected a malformed replay line not to fail the run, got %v", err)
	}
}

func TestCoordinatorRunStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	cfg := config.FindConfig{
		KeySources: []config.KeySourceConfig{
			{ID: "seed", Type: config.KeySourceSeededRandom, Seed: 7},
		},
		Producers: []config.ProducerConfig{
			{KeySourceID: "seed", Type: config.ProducerCPU, GridBits: 1},
		},
		Consumer: config.ConsumerConfig{
			StorePath:   filepath.Join(dir, "store.db"),
			HitSinkPath: filepath.Join(dir, "hits.tsv"),
		},
		ShutdownDeadline: 200,
	}

	c, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if c.Scanned() == 0 {
		t.Fatal("expected some scanning to have occurred before shutdown")
	}
}
