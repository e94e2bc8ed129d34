// Package ingest converts address-dump text files into the on-disk
// store and back.
package ingest

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg"
)

// defaultAmount is used when a line carries no parseable amount. It is
// deliberately 1, not 0: the store's own sentinel value already stands
// in for a stored zero (internal/store), so an importer default of 1
// keeps "no amount recorded" and "recorded zero amount" distinguishable
// on round trip.
const defaultAmount = 1

const (
	ignoreLinePrefix = "#"
	addressHeader    = "address"
)

// ErrSkipLine marks a line that carries no address at all (blank,
// comment, header, or a recognized-but-unsupported format) — it does
// not count as a parse failure.
var ErrSkipLine = fmt.Errorf("ingest: line skipped")

// Record is one parsed hash160/amount pair.
type Record struct {
	Hash160 [20]byte
	Amount  uint64
}

// Stats accumulates running import statistics: per-line failures are
// recorded and parsing continues.
type Stats struct {
	Lines    int
	Imported int
	Skipped  int
	Failed   int
	// FailedLines holds up to len(FailedLines) offending lines for
	// diagnostics; callers needing the full list should inspect the
	// per-line error via ParseLine directly.
	FailedLines []string
}

// ParseLine parses a single address-dump line. It returns
// (nil, ErrSkipLine) for blank lines, comments, the header line, and
// recognized-but-unsupported address families (32-byte witness
// programs, altcoin bech32, multisig prefixes). Any other failure is a
// genuine parse error.
func ParseLine(line string) (*Record, error) {
	address, amount := splitFields(line)
	address = strings.TrimSpace(address)

	if address == "" || strings.HasPrefix(address, ignoreLinePrefix) || address == addressHeader {
		return nil, ErrSkipLine
	}

	if strings.HasPrefix(address, "q") {
		hash, err := decodeCashAddr(address)
		if err != nil {
			return nil, fmt.Errorf("ingest: cashaddr %q: %w", address, err)
		}
		return &Record{Hash160: hash, Amount: amount}, nil
	}

	switch {
	case strings.HasPrefix(address, "d-"), strings.HasPrefix(address, "m-"), strings.HasPrefix(address, "s-"):
		return nil, ErrSkipLine // blockchair multisig / P2MS export formats
	case strings.HasPrefix(address, "p"):
		return nil, ErrSkipLine // bitcoin cash CashAddr P2SH, unique non-hash160 form
	}

	for _, prefix := range []string{"bc1", "fc1", "lcc1", "ltc1", "nc1", "vtc1", "dgb1"} {
		if strings.HasPrefix(address, prefix) {
			if prefix != "bc1" {
				return nil, ErrSkipLine // altcoin bech32, no decoder wired
			}
			hash, err := decodeBech32PubKeyHash(address)
			if err != nil {
				if err == errWitnessTooLong {
					return nil, ErrSkipLine // 32-byte witness program, unsupported
				}
				return nil, fmt.Errorf("ingest: bech32 %q: %w", address, err)
			}
			return &Record{Hash160: hash, Amount: amount}, nil
		}
	}

	for _, prefix := range []string{"7", "A", "9", "M", "3", "t", "X", "D", "L", "G", "B", "V", "N", "4", "R"} {
		if !strings.HasPrefix(address, prefix) {
			continue
		}
		versionBytes := 1
		if prefix == "t" {
			versionBytes = 2 // ZCash carries a two-byte version prefix
		}
		hash, err := decodeBase58Unchecked(address, versionBytes)
		if err != nil {
			return nil, fmt.Errorf("ingest: base58 %q: %w", address, err)
		}
		return &Record{Hash160: hash, Amount: amount}, nil
	}

	// Plain bitcoin base-58 P2PKH: try the strict checksum parser
	// first, falling back to the unchecked path on any failure — a
	// bad checksum, wrong network byte, or an implausibly short
	// address all land here.
	hash, err := decodeBase58Checked(address)
	if err != nil {
		hash, err = decodeBase58Unchecked(address, 1)
		if err != nil {
			return nil, fmt.Errorf("ingest: base58 %q: %w", address, err)
		}
	}
	return &Record{Hash160: hash, Amount: amount}, nil
}

// splitFields splits a line on the first tab or comma into an address
// and an optional amount, defaulting the amount when absent or
// unparsable.
func splitFields(line string) (address string, amount uint64) {
	sep := strings.IndexAny(line, "\t,")
	if sep < 0 {
		return line, defaultAmount
	}
	amountStr := strings.TrimSpace(line[sep+1:])
	v, err := strconv.ParseUint(amountStr, 10, 64)
	if err != nil {
		return line[:sep], defaultAmount
	}
	return line[:sep], v
}

func decodeBase58Checked(address string) ([20]byte, error) {
	var out [20]byte
	decoded, _, err := base58.CheckDecode(address)
	if err != nil {
		return out, err
	}
	if len(decoded) < 20 {
		return out, fmt.Errorf("decoded payload too short: %d bytes", len(decoded))
	}
	copy(out[:], decoded[:20])
	return out, nil
}

func decodeBase58Unchecked(address string, versionBytes int) ([20]byte, error) {
	var out [20]byte
	decoded := base58.Decode(address)
	if len(decoded) == 0 {
		return out, fmt.Errorf("invalid base58 string")
	}
	toCopy := len(decoded) - versionBytes
	if toCopy > 20 {
		toCopy = 20
	}
	if toCopy < 0 {
		toCopy = 0
	}
	if versionBytes < len(decoded) {
		copy(out[:], decoded[versionBytes:versionBytes+toCopy])
	}
	return out, nil
}

var errWitnessTooLong = fmt.Errorf("ingest: witness program is not a 20-byte hash")

func decodeBech32PubKeyHash(address string) ([20]byte, error) {
	var out [20]byte
	addr, err := btcutil.DecodeAddress(address, &chaincfg.MainNetParams)
	if err != nil {
		return out, err
	}
	witness, ok := addr.(*btcutil.AddressWitnessPubKeyHash)
	if !ok {
		return out, errWitnessTooLong
	}
	copy(out[:], witness.Hash160()[:])
	return out, nil
}

// Import reads r line by line, calling put for every successfully
// parsed record, and returns running statistics. A store-write failure
// is fatal and aborts the import entirely.
func Import(r io.Reader, put func(hash [20]byte, amount uint64) error) (Stats, error) {
	var stats Stats
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		stats.Lines++
		line := sc.Text()

		rec, err := ParseLine(line)
		if err != nil {
			if err == ErrSkipLine {
				stats.Skipped++
				continue
			}
			stats.Failed++
			if len(stats.FailedLines) < 100 {
				stats.FailedLines = append(stats.FailedLines, line)
			}
			continue
		}

		if err := put(rec.Hash160, rec.Amount); err != nil {
			return stats, fmt.Errorf("ingest: store write failed: %w", err)
		}
		stats.Imported++
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("ingest: reading input: %w", err)
	}
	return stats, nil
}
