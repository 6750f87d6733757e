package verification

import (
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

// DonorVerifiedKey prefixes the per-user flag set once a donation has been
// confirmed.
const DonorVerifiedKey = "donorVerified"

// DonorFlagKey is the flag key for userID. Several accounts may share one
// store, so the flag never applies to anyone but the user who donated.
func DonorFlagKey(userID string) string {
	return DonorVerifiedKey + ":" + userID
}

// FlagStore is the small persisted key-value space the poller reads its
// local shortcut from.
type FlagStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Has(key string) (bool, error)
}

// MemoryFlags is a FlagStore that lives for the process only.
type MemoryFlags struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryFlags() *MemoryFlags {
	return &MemoryFlags{values: make(map[string]string)}
}

func (f *MemoryFlags) Get(key string) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.values[key], nil
}

func (f *MemoryFlags) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

func (f *MemoryFlags) Has(key string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.values[key]
	return ok, nil
}

var flagsBucket = []byte("flags")

// BoltFlags persists flags in a bolt database file.
type BoltFlags struct {
	db *bolt.DB
}

func OpenBoltFlags(path string) (*BoltFlags, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open flag store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(flagsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init flag store: %w", err)
	}
	return &BoltFlags{db: db}, nil
}

func (f *BoltFlags) Get(key string) (string, error) {
	var value string
	err := f.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(flagsBucket).Get([]byte(key)); v != nil {
			value = string(v)
		}
		return nil
	})
	return value, err
}

func (f *BoltFlags) Set(key, value string) error {
	return f.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(flagsBucket).Put([]byte(key), []byte(value))
	})
}

func (f *BoltFlags) Has(key string) (bool, error) {
	var ok bool
	err := f.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket(flagsBucket).Get([]byte(key)) != nil
		return nil
	})
	return ok, err
}

func (f *BoltFlags) Close() error {
	return f.db.Close()
}
