// Package kvbolt provides a BoltDB-backed key-value store used as the cache
// layer for denormalized projections.
package kvbolt

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const cacheBucket = "cache"

// Store provides a BoltDB-backed string key-value store. Entries persist
// until explicitly deleted; no TTL is applied.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Set persists a value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("cache store is not configured")
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("cache key is required")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(cacheBucket))
		if bucket == nil {
			return fmt.Errorf("cache bucket is missing")
		}
		return bucket.Put([]byte(key), []byte(value))
	})
}

// Get fetches the value stored under key. The second return reports whether
// the key was present.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if s == nil || s.db == nil {
		return "", false, fmt.Errorf("cache store is not configured")
	}
	if strings.TrimSpace(key) == "" {
		return "", false, fmt.Errorf("cache key is required")
	}

	var value string
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(cacheBucket))
		if bucket == nil {
			return fmt.Errorf("cache bucket is missing")
		}
		payload := bucket.Get([]byte(key))
		if payload == nil {
			return nil
		}
		value = string(payload)
		found = true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return value, found, nil
}

// Delete removes the value stored under key. Deleting a missing key is not
// an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("cache store is not configured")
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("cache key is required")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(cacheBucket))
		if bucket == nil {
			return fmt.Errorf("cache bucket is missing")
		}
		return bucket.Delete([]byte(key))
	})
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(cacheBucket))
		if err != nil {
			return fmt.Errorf("create cache bucket: %w", err)
		}
		return nil
	})
}
