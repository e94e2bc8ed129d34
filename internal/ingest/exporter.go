package ingest

import (
	"encoding/hex"
	"fmt"
	"io"
)

// Export writes one line per entry as "hash_hex\tamount", the inverse of
// the tab-separated form Import understands. It is intentionally not
// address-rendering: the store only ever held a hash160, not the
// network/version byte an address encoding would need.
func Export(w io.Writer, entries func(yield func(hash [20]byte, amount uint64) bool)) (int, error) {
	written := 0
	var writeErr error
	entries(func(hash [20]byte, amount uint64) bool {
		_, err := fmt.Fprintf(w, "%s\t%d\n", hex.EncodeToString(hash[:]), amount)
		if err != nil {
			writeErr = err
			return false
		}
		written++
		return true
	})
	return written, writeErr
}
