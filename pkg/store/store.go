// Package store provides a content-addressed chunk store backed by
// pebble. It is the alternative to carrying chunk payloads inline in an
// archive: unique chunks land in the store keyed by a multihash CID of
// their strong hash, and archives written against the same store
// deduplicate against everything stored before them.
package store

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/multiformats/go-multihash"
)

const (
	// PrefixChunk keys stored chunk payloads.
	PrefixChunk = "c:"
)

// Store is a pebble-backed chunk store.
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) a chunk store at dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open chunk store %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CIDForHash wraps a blake2b-512 strong hash in its multihash encoding
// and renders it base58, matching the keys Put writes.
func CIDForHash(hash []byte) (string, error) {
	mh, err := multihash.Encode(hash, multihash.BLAKE2B_MAX)
	if err != nil {
		return "", fmt.Errorf("encode multihash: %w", err)
	}
	return multihash.Multihash(mh).B58String(), nil
}

// Put stores a chunk payload under the CID of its strong hash. Storing
// the same hash twice is a no-op; written reports the bytes actually
// added.
func (s *Store) Put(hash []byte, payload []byte) (cid string, written int, err error) {
	cid, err = CIDForHash(hash)
	if err != nil {
		return "", 0, err
	}

	exists, err := s.Has(cid)
	if err != nil {
		return "", 0, err
	}
	if exists {
		return cid, 0, nil
	}

	if err := s.db.Set(chunkKey(cid), payload, pebble.Sync); err != nil {
		return "", 0, fmt.Errorf("store chunk %s: %w", cid, err)
	}
	return cid, len(payload), nil
}

// Get returns the payload stored under cid.
func (s *Store) Get(cid string) ([]byte, error) {
	val, closer, err := s.db.Get(chunkKey(cid))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("chunk not found: %s", cid)
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	out := append([]byte(nil), val...)
	return out, nil
}

// Has reports whether cid exists in the store.
func (s *Store) Has(cid string) (bool, error) {
	_, closer, err := s.db.Get(chunkKey(cid))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	closer.Close()
	return true, nil
}

// Stats summarizes the store contents.
type Stats struct {
	TotalChunks int
	TotalBytes  int64
}

// GetStats walks the chunk keyspace and tallies object count and size.
func (s *Store) GetStats() (Stats, error) {
	var stats Stats

	iter, err := newPrefixIter(s.db, PrefixChunk)
	if err != nil {
		return stats, err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		stats.TotalChunks++
		stats.TotalBytes += int64(len(iter.Value()))
	}
	if err := iter.Error(); err != nil {
		return stats, err
	}
	return stats, nil
}

func chunkKey(cid string) []byte {
	return []byte(PrefixChunk + cid)
}

func newPrefixIter(db *pebble.DB, prefix string) (*pebble.Iterator, error) {
	upper := append([]byte(prefix), 0xff)
	return db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: upper,
	})
}
