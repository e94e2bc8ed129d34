package config

import (
	"errors"
	"fmt"

	"keysearch/internal/derive"
)

// Error kinds surfaced at startup. All are fatal: no partial pipeline is
// ever brought up.
var (
	ErrUnknownCommand        = errors.New("config: unknown command")
	ErrMissingKeySourceID    = errors.New("config: key source missing id")
	ErrDuplicateKeySourceID  = errors.New("config: duplicate key source id")
	ErrUnknownKeySourceID    = errors.New("config: producer references unknown key source id")
	ErrMissingStorePath      = errors.New("config: missing store path")
	ErrMissingHitSinkPath    = errors.New("config: missing hit sink path")
	ErrMissingPayload        = errors.New("config: command's payload object is missing")
	ErrUnknownKeySourceType  = errors.New("config: unknown key source type")
	ErrUnknownProducerType   = errors.New("config: unknown producer type")
	ErrUnknownFileFormat     = errors.New("config: unknown file-replay format")
	ErrBitMaskedMissingInner = errors.New("config: bit-masked key source missing inner id")
)

// Validate checks structural and referential invariants that must hold
// before any component of the pipeline is constructed.
func (c *Config) Validate() error {
	switch c.Command {
	case CommandFind:
		if c.Find == nil {
			return ErrMissingPayload
		}
		return c.Find.validate()
	case CommandAddressFilesToLMDB:
		if c.AddressFilesToLMDB == nil {
			return ErrMissingPayload
		}
		if c.AddressFilesToLMDB.StorePath == "" {
			return ErrMissingStorePath
		}
		return nil
	case CommandLMDBToAddressFile:
		if c.LMDBToAddressFile == nil {
			return ErrMissingPayload
		}
		if c.LMDBToAddressFile.StorePath == "" {
			return ErrMissingStorePath
		}
		return nil
	case CommandOpenCLInfo:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, c.Command)
	}
}

func (f *FindConfig) validate() error {
	if f.Consumer.StorePath == "" {
		return ErrMissingStorePath
	}
	if f.Consumer.HitSinkPath == "" {
		return ErrMissingHitSinkPath
	}

	seen := make(map[string]KeySourceConfig, len(f.KeySources))
	for _, ks := range f.KeySources {
		if ks.ID == "" {
			return ErrMissingKeySourceID
		}
		if _, dup := seen[ks.ID]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateKeySourceID, ks.ID)
		}
		seen[ks.ID] = ks

		switch ks.Type {
		case KeySourceSecureRandom, KeySourceSeededRandom:
			// no extra fields required
		case KeySourceBitMasked:
			if ks.InnerID == "" {
				return fmt.Errorf("%w: %q", ErrBitMaskedMissingInner, ks.ID)
			}
		case KeySourceFileReplay:
			if ks.Path == "" {
				return fmt.Errorf("config: file-replay key source %q missing path", ks.ID)
			}
			switch ks.Format {
			case FileFormatDecimal, FileFormatHex, FileFormatWIF, FileFormatMnemonic:
			default:
				return fmt.Errorf("%w: %q", ErrUnknownFileFormat, ks.Format)
			}
		default:
			return fmt.Errorf("%w: %q", ErrUnknownKeySourceType, ks.Type)
		}
	}

	// Bit-masked sources may reference another key source defined
	// earlier or later in the array; validate the reference exists
	// only after the full id set is known.
	for _, ks := range f.KeySources {
		if ks.Type == KeySourceBitMasked {
			if _, ok := seen[ks.InnerID]; !ok {
				return fmt.Errorf("%w: %q references %q", ErrUnknownKeySourceID, ks.ID, ks.InnerID)
			}
		}
	}

	for _, p := range f.Producers {
		if _, ok := seen[p.KeySourceID]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownKeySourceID, p.KeySourceID)
		}
		if err := derive.ValidateGridBits(int(p.GridBits)); err != nil {
			return err
		}
		switch p.Type {
		case ProducerCPU, ProducerGPU:
		default:
			return fmt.Errorf("%w: %q", ErrUnknownProducerType, p.Type)
		}
	}

	return nil
}
