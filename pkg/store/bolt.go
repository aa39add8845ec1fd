package store

import (
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

// BoltStore implements Store on top of a single bbolt database file, one
// bucket per table.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (creating if necessary) the database file
// "<dataDir>/maxwell-master.db".
func OpenBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "maxwell-master.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Table(name string) (Table, error) {
	bucket := []byte(name)
	err := s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("open table %s: %w", name, err)
	}
	return &boltTable{db: s.db, bucket: bucket}, nil
}

type boltTable struct {
	db     *bolt.DB
	bucket []byte
}

func (t *boltTable) Put(key, value []byte) error {
	return t.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(t.bucket).Put(key, value)
	})
}

func (t *boltTable) Get(key []byte) ([]byte, error) {
	var value []byte
	err := t.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(t.bucket).Get(key)
		if v == nil {
			return nil
		}
		value = make([]byte, len(v))
		copy(value, v)
		return nil
	})
	return value, err
}

func (t *boltTable) Delete(key []byte) error {
	return t.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(t.bucket).Delete(key)
	})
}

// Truncate drops and recreates the bucket, matching the original
// truncate_table semantics used to invalidate the topic placement cache.
func (t *boltTable) Truncate() error {
	return t.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(t.bucket); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(t.bucket)
		return err
	})
}

// Cursor takes a point-in-time snapshot of the table, since bbolt cursors
// cannot outlive the transaction that created them.
func (t *boltTable) Cursor() (Cursor, error) {
	var keys, values [][]byte
	err := t.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(t.bucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			keyCopy := make([]byte, len(k))
			copy(keyCopy, k)
			valCopy := make([]byte, len(v))
			copy(valCopy, v)
			keys = append(keys, keyCopy)
			values = append(values, valCopy)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan table: %w", err)
	}
	return &sliceCursor{keys: keys, values: values, pos: -1}, nil
}

type sliceCursor struct {
	keys, values [][]byte
	pos          int
}

func (c *sliceCursor) Next() bool {
	c.pos++
	return c.pos < len(c.keys)
}

func (c *sliceCursor) Key() []byte {
	return c.keys[c.pos]
}

func (c *sliceCursor) Value() []byte {
	return c.values[c.pos]
}
