package ingest

import (
	"fmt"
	"strings"
)

// decodeCashAddr decodes a Bitcoin Cash CashAddr string into its
// 20-byte P2PKH hash. No CashAddr package exists anywhere in the
// example corpus this module was grounded on, so this is a compact,
// self-contained decoder rather than a wrapped third-party dependency
// (see DESIGN.md). Lines without an explicit "prefix:" carry the
// implicit "bitcoincash" prefix, matching legacy dumps that begin
// directly with "q...".
func decodeCashAddr(address string) ([20]byte, error) {
	var out [20]byte

	prefix := "bitcoincash"
	payloadStr := address
	if idx := strings.IndexByte(address, ':'); idx >= 0 {
		prefix = address[:idx]
		payloadStr = address[idx+1:]
	}

	data := make([]byte, 0, len(payloadStr))
	for _, c := range strings.ToLower(payloadStr) {
		v := strings.IndexRune(cashAddrCharset, c)
		if v < 0 {
			return out, fmt.Errorf("invalid cashaddr character %q", c)
		}
		data = append(data, byte(v))
	}
	if len(data) < 8 {
		return out, fmt.Errorf("cashaddr payload too short")
	}

	if !cashAddrChecksumValid(prefix, data) {
		return out, fmt.Errorf("cashaddr checksum mismatch")
	}
	payload5 := data[:len(data)-8]

	packed, err := convertBits(payload5, 5, 8, false)
	if err != nil {
		return out, err
	}
	if len(packed) < 21 {
		return out, fmt.Errorf("cashaddr payload too short after unpacking")
	}

	// First byte is the version/size byte; hash160 forms carry a
	// 20-byte hash immediately after it.
	hash := packed[1:]
	if len(hash) != 20 {
		return out, fmt.Errorf("cashaddr hash is %d bytes, want 20", len(hash))
	}
	copy(out[:], hash)
	return out, nil
}

const cashAddrCharset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

func cashAddrPolymod(values []byte) uint64 {
	const gen0, gen1, gen2, gen3, gen4 = 0x98f2bc8e61, 0x79b76d99e2, 0xf33e5fb3c4, 0xae2eabe2a8, 0x1e4f43e470
	c := uint64(1)
	for _, v := range values {
		c0 := byte(c >> 35)
		c = ((c & 0x07ffffffff) << 5) ^ uint64(v)
		if c0&0x01 != 0 {
			c ^= gen0
		}
		if c0&0x02 != 0 {
			c ^= gen1
		}
		if c0&0x04 != 0 {
			c ^= gen2
		}
		if c0&0x08 != 0 {
			c ^= gen3
		}
		if c0&0x10 != 0 {
			c ^= gen4
		}
	}
	return c ^ 1
}

func cashAddrChecksumValid(prefix string, data []byte) bool {
	values := make([]byte, 0, len(prefix)+1+len(data))
	for _, c := range prefix {
		values = append(values, byte(c)&0x1f)
	}
	values = append(values, 0)
	values = append(values, data...)
	return cashAddrPolymod(values) == 0
}

// convertBits repacks a slice of fromBits-wide groups into toBits-wide
// groups, mirroring the bech32/cashaddr shared base-conversion routine.
func convertBits(data []byte, fromBits, toBits uint, pad bool) ([]byte, error) {
	var acc uint32
	var bits uint
	maxv := uint32(1)<<toBits - 1
	var out []byte

	for _, value := range data {
		if uint32(value)>>fromBits != 0 {
			return nil, fmt.Errorf("invalid data range for convertBits")
		}
		acc = (acc << fromBits) | uint32(value)
		bits += fromBits
		for bits >= toBits {
			bits -= toBits
			out = append(out, byte((acc>>bits)&maxv))
		}
	}
	if pad {
		if bits > 0 {
			out = append(out, byte((acc<<(toBits-bits))&maxv))
		}
	} else if bits >= fromBits || (acc<<(toBits-bits))&maxv != 0 {
		return nil, fmt.Errorf("invalid padding in convertBits")
	}
	return out, nil
}
