// Package config decodes and validates the JSON configuration document
// that selects and parameterizes a run of this program.
package config

import (
	"encoding/json"
	"fmt"
	"io"
)

// Command selects one of the four operations the CLI can perform.
type Command string

const (
	// CommandFind runs the producer/consumer key-search pipeline.
	CommandFind Command = "Find"
	// CommandAddressFilesToLMDB imports address-dump text files into
	// the on-disk store.
	CommandAddressFilesToLMDB Command = "AddressFilesToLMDB"
	// CommandLMDBToAddressFile exports the on-disk store back to a
	// text file.
	CommandLMDBToAddressFile Command = "LMDBToAddressFile"
	// CommandOpenCLInfo enumerates available acceleration devices.
	// The name predates this module's CUDA-only backend (see
	// DESIGN.md) but is kept as-is since it is a wire-visible value.
	CommandOpenCLInfo Command = "OpenCLInfo"
)

// KeySourceType names one of the four key-source variants.
type KeySourceType string

const (
	KeySourceSecureRandom KeySourceType = "secure-random"
	KeySourceSeededRandom KeySourceType = "seeded-random"
	KeySourceBitMasked    KeySourceType = "bit-masked"
	KeySourceFileReplay   KeySourceType = "file-replay"
)

// FileFormat names one of the file-replay line formats.
type FileFormat string

const (
	FileFormatDecimal  FileFormat = "decimal"
	FileFormatHex      FileFormat = "hex"
	FileFormatWIF      FileFormat = "wif"
	FileFormatMnemonic FileFormat = "mnemonic"
)

// KeySourceConfig configures one key source instance. Only the fields
// relevant to Type need be set.
type KeySourceConfig struct {
	ID   string        `json:"id"`
	Type KeySourceType `json:"type"`

	// SeededRandom / BitMasked
	Seed uint64 `json:"seed,omitempty"`

	// BitMasked
	InnerID string `json:"innerId,omitempty"`
	Bits    int    `json:"bits,omitempty"`

	// FileReplay
	Path   string     `json:"path,omitempty"`
	Format FileFormat `json:"format,omitempty"`
}

// ProducerType names one of the derivation back-ends a producer uses.
type ProducerType string

const (
	ProducerCPU ProducerType = "cpu"
	ProducerGPU ProducerType = "gpu"
)

// ProducerConfig configures a single producer thread.
type ProducerConfig struct {
	KeySourceID string       `json:"keySourceId"`
	Type        ProducerType `json:"type"`
	GridBits    uint8        `json:"gridBits"`
	RunOnce     bool         `json:"runOnce"`

	// GPU
	GPUDeviceOrdinal int    `json:"gpuDeviceOrdinal,omitempty"`
	GPUPTXPath       string `json:"gpuPtxPath,omitempty"`
	GPUGTableXPath   string `json:"gpuGtableXPath,omitempty"`
	GPUGTableYPath   string `json:"gpuGtableYPath,omitempty"`
	// GPUFatalOnBISTFailure decides whether a BIST mismatch drops
	// only this producer (false) or aborts the whole process (true).
	// See DESIGN.md for the reasoning behind the default.
	GPUFatalOnBISTFailure bool `json:"gpuFatalOnBistFailure,omitempty"`
}

// ConsumerConfig configures the hash/match consumer.
type ConsumerConfig struct {
	StorePath string `json:"storePath"`
	// MinMapSize floors the store's initial memory map size below
	// which it is never sized, even for a small on-disk file.
	MinMapSize    int64  `json:"minMapSize,omitempty"`
	VanityPattern string `json:"vanityPattern,omitempty"`
	HitSinkPath   string `json:"hitSinkPath"`
}

// FindConfig is the payload for CommandFind.
type FindConfig struct {
	KeySources       []KeySourceConfig `json:"keySources"`
	Producers        []ProducerConfig  `json:"producers"`
	Consumer         ConsumerConfig    `json:"consumer"`
	ShutdownDeadline int64             `json:"shutdownDeadlineMillis,omitempty"`
}

// ImportConfig is the payload for CommandAddressFilesToLMDB.
type ImportConfig struct {
	StorePath  string   `json:"storePath"`
	InputPaths []string `json:"inputPaths"`
}

// ExportConfig is the payload for CommandLMDBToAddressFile.
type ExportConfig struct {
	StorePath  string `json:"storePath"`
	OutputPath string `json:"outputPath"`
}

// Config is the top-level JSON document.
type Config struct {
	Command            Command       `json:"command"`
	Find               *FindConfig   `json:"find,omitempty"`
	AddressFilesToLMDB *ImportConfig `json:"addressFilesToLMDB,omitempty"`
	LMDBToAddressFile  *ExportConfig `json:"lmdbToAddressFile,omitempty"`
}

// Load decodes and validates a configuration document from r.
func Load(r io.Reader) (*Config, error) {
	var cfg Config
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
