// Command keysearch runs the key-derivation and address-store pipeline
// described by a single JSON configuration file.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"keysearch/internal/config"
	"keysearch/internal/coordinator"
	"keysearch/internal/gpuinfo"
	"keysearch/internal/ingest"
	"keysearch/internal/store"
)

const (
	exitOK             = 0
	exitConfigError    = 1
	exitStoreOpenError = 2
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <config.json>\n", os.Args[0])
		os.Exit(exitConfigError)
	}

	f, err := os.Open(os.Args[1])
	if err != nil {
		log.Printf("configuration: %v", err)
		os.Exit(exitConfigError)
	}
	cfg, err := config.Load(f)
	f.Close()
	if err != nil {
		log.Printf("configuration: %v", err)
		os.Exit(exitConfigError)
	}

	var runErr error
	switch cfg.Command {
	case config.CommandFind:
		runErr = runFind(*cfg.Find)
	case config.CommandAddressFilesToLMDB:
		runErr = runImport(*cfg.AddressFilesToLMDB)
	case config.CommandLMDBToAddressFile:
		runErr = runExport(*cfg.LMDBToAddressFile)
	case config.CommandOpenCLInfo:
		runErr = runDeviceInfo()
	}
	if runErr != nil {
		log.Printf("%v", runErr)
		os.Exit(exitStoreOpenError)
	}
	os.Exit(exitOK)
}

func runFind(cfg config.FindConfig) error {
	c, err := coordinator.Build(cfg)
	if err != nil {
		return fmt.Errorf("find: %w", err)
	}
	defer c.Close()

	log.Printf("keysearch: starting pipeline (%d key sources, %d producers)", len(cfg.KeySources), len(cfg.Producers))
	if err := c.Run(context.Background()); err != nil {
		return fmt.Errorf("find: %w", err)
	}
	log.Printf("keysearch: shutdown complete, scanned=%d hits=%d", c.Scanned(), c.Hits())
	return nil
}

func runImport(cfg config.ImportConfig) error {
	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("import: opening store: %w", err)
	}
	defer st.Close()

	var total ingest.Stats
	for _, path := range cfg.InputPaths {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("import: opening %s: %w", path, err)
		}
		stats, err := ingest.Import(f, func(hash [20]byte, amount uint64) error {
			return st.Put(hash[:], amount)
		})
		f.Close()
		if err != nil {
			return fmt.Errorf("import: %s: %w", path, err)
		}
		total.Lines += stats.Lines
		total.Imported += stats.Imported
		total.Skipped += stats.Skipped
		total.Failed += stats.Failed
		log.Printf("import: %s: %d lines, %d imported, %d skipped, %d failed", path, stats.Lines, stats.Imported, stats.Skipped, stats.Failed)
	}
	log.Printf("import: total %d lines, %d imported, %d skipped, %d failed", total.Lines, total.Imported, total.Skipped, total.Failed)
	return nil
}

func runExport(cfg config.ExportConfig) error {
	st, err := store.Open(cfg.StorePath, store.ReadOnly())
	if err != nil {
		return fmt.Errorf("export: opening store: %w", err)
	}
	defer st.Close()

	out, err := os.Create(cfg.OutputPath)
	if err != nil {
		return fmt.Errorf("export: creating %s: %w", cfg.OutputPath, err)
	}
	defer out.Close()

	var iterErr error
	written, err := ingest.Export(out, func(yield func(hash [20]byte, amount uint64) bool) {
		iterErr = st.All(yield)
	})
	if iterErr != nil {
		return fmt.Errorf("export: reading store: %w", iterErr)
	}
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	log.Printf("export: wrote %d entries to %s", written, cfg.OutputPath)
	return nil
}

func runDeviceInfo() error {
	devices, err := gpuinfo.Enumerate()
	if err != nil {
		return fmt.Errorf("device info: %w", err)
	}
	if len(devices) == 0 {
		fmt.Println("no acceleration devices available")
		return nil
	}
	for _, d := range devices {
		fmt.Printf("%d: %s (%d MiB)\n", d.Ordinal, d.Name, d.Memory/(1024*1024))
	}
	return nil
}
