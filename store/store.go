// Package store persists encoded values in a bbolt database.
//
// Values are stored under string keys in their plain binary encoding, so
// object member order survives a round trip. A second bucket holds each
// value's canonical content digest for cheap change detection without
// decoding.
package store

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/Neumenon/binjson/binjson"
)

var (
	valuesBucket  = []byte("values")
	digestsBucket = []byte("digests")
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("store: key not found")

// Options configures Open.
type Options struct {
	// Timeout bounds how long Open waits for the file lock. Zero means
	// one second.
	Timeout time.Duration
}

// Store is a bbolt-backed collection of encoded values.
type Store struct {
	db *bolt.DB
}

// Open opens or creates a store at path.
func Open(path string, opts *Options) (*Store, error) {
	if opts == nil {
		opts = &Options{}
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 1 * time.Second
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, errors.Wrapf(err, "open store %q", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(valuesBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(digestsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create buckets")
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path of the database.
func (s *Store) Path() string {
	return s.db.Path()
}

// Put stores a value under key, replacing any previous value. The
// canonical digest is updated in the same transaction.
func (s *Store) Put(key string, v *binjson.Value) error {
	data := binjson.Encode(v)
	var dig [8]byte
	binary.BigEndian.PutUint64(dig[:], binjson.Digest(v))

	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(valuesBucket).Put([]byte(key), data); err != nil {
			return err
		}
		return tx.Bucket(digestsBucket).Put([]byte(key), dig[:])
	})
	return errors.Wrapf(err, "put %q", key)
}

// Get returns the value stored under key.
func (s *Store) Get(key string) (*binjson.Value, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		stored := tx.Bucket(valuesBucket).Get([]byte(key))
		if stored == nil {
			return errors.Wrapf(ErrNotFound, "get %q", key)
		}
		// The slice is only valid inside the transaction.
		data = append(data, stored...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	v, err := binjson.Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "decode value for %q", key)
	}
	return v, nil
}

// Delete removes a key. Deleting an absent key returns ErrNotFound.
func (s *Store) Delete(key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		values := tx.Bucket(valuesBucket)
		if values.Get([]byte(key)) == nil {
			return errors.Wrapf(ErrNotFound, "delete %q", key)
		}
		if err := values.Delete([]byte(key)); err != nil {
			return err
		}
		return tx.Bucket(digestsBucket).Delete([]byte(key))
	})
	return err
}

// List returns all keys in byte order.
func (s *Store) List() ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(valuesBucket).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "list keys")
	}
	return keys, nil
}

// Digest returns the canonical content digest recorded for key. It does
// not decode the stored value.
func (s *Store) Digest(key string) (uint64, error) {
	var dig uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		stored := tx.Bucket(digestsBucket).Get([]byte(key))
		if stored == nil {
			return errors.Wrapf(ErrNotFound, "digest %q", key)
		}
		if len(stored) != 8 {
			return errors.Errorf("corrupt digest for %q: %d bytes", key, len(stored))
		}
		dig = binary.BigEndian.Uint64(stored)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return dig, nil
}
