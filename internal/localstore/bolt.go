// Package localstore is the device-local key/value store. It survives process
// restarts and is scoped to one device profile: anonymous carts are keyed by
// device id and referral attributions by session id.
package localstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	bolt "github.com/boltdb/bolt"
)

const (
	BucketCarts     = "carts"
	BucketReferrals = "referrals"
)

// ErrNotFound is returned when a key has no value.
var ErrNotFound = errors.New("local value not found")

type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database file and ensures all buckets exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{BucketCarts, BucketReferrals} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create local buckets: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(_ context.Context, bucket, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("unknown bucket %q", bucket)
		}
		v := b.Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		// bolt values are only valid inside the transaction
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Put writes value under key. Identical payloads skip the write.
func (s *Store) Put(_ context.Context, bucket, key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("unknown bucket %q", bucket)
		}
		if existing := b.Get([]byte(key)); existing != nil && bytes.Equal(existing, value) {
			return nil
		}
		return b.Put([]byte(key), value)
	})
}

// PutIfAbsent writes value only when key is unset. It returns the stored value
// and whether this call wrote it.
func (s *Store) PutIfAbsent(_ context.Context, bucket, key string, value []byte) ([]byte, bool, error) {
	var stored []byte
	created := false

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("unknown bucket %q", bucket)
		}
		if existing := b.Get([]byte(key)); existing != nil {
			stored = append([]byte(nil), existing...)
			return nil
		}
		if err := b.Put([]byte(key), value); err != nil {
			return err
		}
		stored = append([]byte(nil), value...)
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(_ context.Context, bucket, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("unknown bucket %q", bucket)
		}
		return b.Delete([]byte(key))
	})
}
