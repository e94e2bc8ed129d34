// Package store wraps a memory-mapped, ordered on-disk key/value map used
// as the lookup oracle for derived address hashes.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	bolt "go.etcd.io/bbolt"
)

// ErrNotFound is returned by admin lookups that expect a record to
// already exist.
var ErrNotFound = errors.New("store: hash not found")

// bucketAddresses is the single bucket mapping a 20-byte hash160 to an
// 8-byte little-endian amount.
var bucketAddresses = []byte("addresses")

// sentinelStored is the on-disk value substituted for a real amount of
// zero, so ingestion never has to write an empty value into a store
// that treats an empty value as "absent".
const sentinelStored = 1

// minMmapSize is the floor for bbolt's initial map size regardless of
// how small the on-disk file is, avoiding remaps on the first writes
// during ingestion.
const minMmapSize = 1 << 20

// Store is a read-optimized wrapper around a bbolt database: a bloom
// filter rejects near-certain misses without touching the memory-mapped
// file, and any bloom positive is confirmed against the B+-tree because
// bloom filters carry false positives.
type Store struct {
	db     *bolt.DB
	filter *bloom.BloomFilter
}

type options struct {
	bolt       bolt.Options
	minMapSize int64
}

// Option configures Open.
type Option func(*options)

// ReadOnly opens the store without permitting writes. A producer's
// consumer opens its store this way so no writer ever runs concurrently
// with a search.
func ReadOnly() Option {
	return func(o *options) { o.bolt.ReadOnly = true }
}

// WithMinMapSize sets a floor for the initial memory map size, used
// when it is larger than the current on-disk file size. This lets a
// caller pre-size the map for growth it knows is coming instead of
// paying for a remap once ingestion starts filling the file.
func WithMinMapSize(bytes int64) Option {
	return func(o *options) {
		if bytes > 0 {
			o.minMapSize = bytes
		}
	}
}

// Open memory-maps path, sizing the initial map to at least the larger
// of the current on-disk file size and any configured minimum, and
// builds the bloom prefilter by scanning the bucket once.
func Open(path string, opts ...Option) (*Store, error) {
	o := &options{bolt: bolt.Options{Timeout: time.Second}, minMapSize: minMmapSize}
	for _, opt := range opts {
		opt(o)
	}

	size := o.minMapSize
	if fi, err := os.Stat(path); err == nil && fi.Size() > size {
		size = fi.Size()
	}
	o.bolt.InitialMmapSize = int(size)

	db, err := bolt.Open(path, 0o600, &o.bolt)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}

	s := &Store{db: db}
	if !o.bolt.ReadOnly {
		if err := db.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(bucketAddresses)
			return err
		}); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: creating bucket: %w", err)
		}
	}

	if err := s.buildFilter(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) buildFilter() error {
	count := uint(0)
	if err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketAddresses)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			count++
			return nil
		})
	}); err != nil {
		return fmt.Errorf("store: sizing bloom filter: %w", err)
	}
	if count == 0 {
		count = 1
	}

	filter := bloom.NewWithEstimates(count, 1e-6)
	if err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketAddresses)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			filter.Add(k)
			return nil
		})
	}); err != nil {
		return fmt.Errorf("store: populating bloom filter: %w", err)
	}

	s.filter = filter
	return nil
}

// Contains implements the hot-path lookup oracle: a bloom negative is
// authoritative and skips the mmap probe entirely; a bloom positive is
// confirmed against the B+-tree because bloom filters have false
// positives. The sentinel value 1 is translated back to the reported
// amount 0.
func (s *Store) Contains(hash []byte) (amount uint64, ok bool, err error) {
	if s.filter != nil && !s.filter.Test(hash) {
		return 0, false, nil
	}

	err = s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketAddresses)
		if bucket == nil {
			return nil
		}
		raw := bucket.Get(hash)
		if raw == nil {
			return nil
		}
		ok = true
		amount = decodeAmount(raw)
		return nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("store: lookup failed: %w", err)
	}
	return amount, ok, nil
}

// Put writes hash → amount, applying the sentinel substitution on
// write: a real amount of 0 is stored as 1 so an empty value is never
// written. Put is only meaningful on a store opened without ReadOnly.
func (s *Store) Put(hash []byte, amount uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketAddresses)
		if bucket == nil {
			return fmt.Errorf("store: bucket missing")
		}
		if err := bucket.Put(hash, encodeAmount(amount)); err != nil {
			return err
		}
		if s.filter != nil {
			s.filter.Add(hash)
		}
		return nil
	})
}

// Size returns the number of entries in the store.
func (s *Store) Size() (uint64, error) {
	var n uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketAddresses)
		if bucket == nil {
			return nil
		}
		n = uint64(bucket.Stats().KeyN)
		return nil
	})
	return n, err
}

// All calls yield once per stored entry, in key order, stopping early
// if yield returns false. It is used by the export command; it is not
// on the hot lookup path and does not consult the bloom filter.
func (s *Store) All(yield func(hash [20]byte, amount uint64) bool) error {
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketAddresses)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			var hash [20]byte
			copy(hash[:], k)
			if !yield(hash, decodeAmount(v)) {
				return errStopIteration
			}
			return nil
		})
	})
	if errors.Is(err, errStopIteration) {
		return nil
	}
	return err
}

// errStopIteration unwinds bucket.ForEach without surfacing an error to
// All's caller when yield asks to stop early.
var errStopIteration = errors.New("store: iteration stopped")

// Close unmaps the store.
func (s *Store) Close() error {
	return s.db.Close()
}

func encodeAmount(amount uint64) []byte {
	if amount == 0 {
		amount = sentinelStored
	}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, amount)
	return buf
}

func decodeAmount(raw []byte) uint64 {
	v := binary.LittleEndian.Uint64(raw)
	if v == sentinelStored {
		return 0
	}
	return v
}
