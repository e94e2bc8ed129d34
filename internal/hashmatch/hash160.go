// Package hashmatch turns derivation batches into hits: it computes
// hash160 for both serialization forms of every coordinate, probes the
// address store, and optionally matches a vanity regex against the
// base-58 rendering.
package hashmatch

import (
	"github.com/minio/sha256-simd"
	"golang.org/x/crypto/ripemd160"
)

// Hash160 computes RIPEMD160(SHA256(data)), the widely used two-stage
// digest identifying a public key. SHA-256 uses sha256-simd's SIMD/AVX2
// acceleration where available; observable results are defined purely
// by input/output bytes, so the choice of primitive is invisible to
// callers.
func Hash160(data []byte) []byte {
	sum := sha256.Sum256(data)

	h := ripemd160.New()
	h.Write(sum[:])
	return h.Sum(nil)
}
