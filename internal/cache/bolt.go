package cache

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketEntries = []byte("entries")

// BoltClient implements cache on an embedded bbolt file, so snapshots survive
// CLI restarts. Each value is stored behind an 8 byte expiry header.
type BoltClient struct {
	db *bolt.DB
}

// NewBoltClient opens (or creates) the bbolt database at path.
func NewBoltClient(path string) (*BoltClient, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEntries)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bbolt init bucket: %w", err)
	}

	return &BoltClient{db: db}, nil
}

// Get retrieves a value from cache.
func (c *BoltClient) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	expired := false

	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketEntries).Get([]byte(key))
		if len(v) < 8 {
			return nil
		}
		exp := int64(binary.BigEndian.Uint64(v[:8]))
		if exp != 0 && time.Now().UnixNano() > exp {
			expired = true
			return nil
		}
		// bbolt slices are only valid within the transaction
		out = make([]byte, len(v)-8)
		copy(out, v[8:])
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bbolt get: %w", err)
	}

	if expired {
		_ = c.Delete(ctx, key)
		return nil, ErrCacheMiss
	}
	if out == nil {
		return nil, ErrCacheMiss
	}
	return out, nil
}

// Set stores a value in cache. A zero ttl never expires.
func (c *BoltClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var exp int64
	if ttl > 0 {
		exp = time.Now().Add(ttl).UnixNano()
	}

	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf[:8], uint64(exp))
	copy(buf[8:], value)

	err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).Put([]byte(key), buf)
	})
	if err != nil {
		return fmt.Errorf("bbolt set: %w", err)
	}
	return nil
}

// Delete removes a value from cache.
func (c *BoltClient) Delete(ctx context.Context, key string) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("bbolt delete: %w", err)
	}
	return nil
}

// DeleteByPrefix removes all keys with the given prefix.
func (c *BoltClient) DeleteByPrefix(ctx context.Context, prefix string) error {
	p := []byte(prefix)
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEntries)
		var keys [][]byte
		cur := b.Cursor()
		for k, _ := cur.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = cur.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bbolt delete by prefix: %w", err)
	}
	return nil
}

// Close closes the underlying bbolt database.
func (c *BoltClient) Close() error {
	return c.db.Close()
}
