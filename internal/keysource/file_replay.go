package keysource

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"

	"keysearch/internal/curve"
)

// Format names one of the declared file-replay line formats.
type Format int

const (
	// FormatDecimal parses each line as a base-10 integer.
	FormatDecimal Format = iota
	// FormatHex parses each line as a hex-encoded scalar, with or
	// without a leading 0x.
	FormatHex
	// FormatWIF decodes each line as a Wallet Import Format private key.
	FormatWIF
	// FormatMnemonic derives the first child scalar of the BIP-32
	// master key seeded from each line's BIP-39 mnemonic.
	FormatMnemonic
)

// FileReplay yields scalars parsed from a text file, one per line, in a
// single declared format. It ends cleanly (io.EOF) at end of file.
type FileReplay struct {
	id     string
	format Format
	file   *os.File
	sc     *bufio.Scanner
	closed bool
}

// NewFileReplay opens path and prepares to parse it line by line as
// format.
func NewFileReplay(id string, path string, format Format) (*FileReplay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("keysource: opening replay file: %w", err)
	}
	return &FileReplay{id: id, format: format, file: f, sc: bufio.NewScanner(f)}, nil
}

// ID implements Source.
func (s *FileReplay) ID() string { return s.id }

// NextBase implements Source. It returns io.EOF once the file is
// exhausted.
func (s *FileReplay) NextBase() (curve.Scalar, error) {
	if s.closed {
		return curve.Scalar{}, ErrClosed
	}
	for s.sc.Scan() {
		line := strings.TrimSpace(s.sc.Text())
		if line == "" {
			continue
		}
		v, err := s.parseLine(line)
		if err != nil {
			return curve.Scalar{}, fmt.Errorf("keysource: parsing replay line: %w", err)
		}
		return validate(v), nil
	}
	if err := s.sc.Err(); err != nil {
		return curve.Scalar{}, err
	}
	return curve.Scalar{}, io.EOF
}

// NextBatch implements Source. It returns as many scalars as it could
// parse before end of file, along with io.EOF, if the file ends before
// n scalars were produced.
func (s *FileReplay) NextBatch(n int) ([]curve.Scalar, error) {
	out := make([]curve.Scalar, 0, n)
	for len(out) < n {
		v, err := s.NextBase()
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Close implements Source.
func (s *FileReplay) Close() error {
	s.closed = true
	return s.file.Close()
}

func (s *FileReplay) parseLine(line string) (curve.Scalar, error) {
	switch s.format {
	case FormatDecimal:
		v, ok := new(big.Int).SetString(line, 10)
		if !ok {
			return curve.Scalar{}, fmt.Errorf("invalid decimal scalar %q", line)
		}
		return curve.FromBigInt(v), nil

	case FormatHex:
		clean := strings.TrimPrefix(strings.TrimPrefix(line, "0x"), "0X")
		b, err := hex.DecodeString(clean)
		if err != nil {
			return curve.Scalar{}, fmt.Errorf("invalid hex scalar %q: %w", line, err)
		}
		if len(b) > 32 {
			return curve.Scalar{}, fmt.Errorf("hex scalar %q too long", line)
		}
		var out curve.Scalar
		copy(out[32-len(b):], b)
		return out, nil

	case FormatWIF:
		wif, err := btcutil.DecodeWIF(line)
		if err != nil {
			return curve.Scalar{}, fmt.Errorf("invalid WIF %q: %w", line, err)
		}
		var out curve.Scalar
		copy(out[:], wif.PrivKey.Serialize())
		return out, nil

	case FormatMnemonic:
		if !bip39.IsMnemonicValid(line) {
			return curve.Scalar{}, fmt.Errorf("invalid mnemonic")
		}
		seed := bip39.NewSeed(line, "")
		master, err := bip32.NewMasterKey(seed)
		if err != nil {
			return curve.Scalar{}, fmt.Errorf("deriving master key: %w", err)
		}
		child, err := master.NewChildKey(0)
		if err != nil {
			return curve.Scalar{}, fmt.Errorf("deriving child key: %w", err)
		}
		key := child.Key
		if len(key) > 32 {
			key = key[len(key)-32:]
		}
		var out curve.Scalar
		copy(out[32-len(key):], key)
		return out, nil

	default:
		return curve.Scalar{}, fmt.Errorf("unknown replay format %d", s.format)
	}
}
