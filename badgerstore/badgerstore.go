// Package badgerstore implements a binindex.KV backend on top of Badger.
package badgerstore

import (
	"github.com/bsm/binindex"
	"github.com/dgraph-io/badger"
)

// KV is a Badger backed binindex.KV.
type KV struct {
	db *badger.DB
}

// Open opens (or creates) a database in dir, keeping keys and values
// in the same directory.
func Open(dir string) (*KV, error) {
	opts := badger.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir
	return OpenWithOptions(opts)
}

// OpenWithOptions opens a database with custom options.
func OpenWithOptions(opts badger.Options) (*KV, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &KV{db: db}, nil
}

// Store is a shortcut for binindex.NewKVStore(kv, c).
func (kv *KV) Store(c binindex.Compression) binindex.Store {
	return binindex.NewKVStore(kv, c)
}

// Has implements binindex.KV.
func (kv *KV) Has(key []byte) (bool, error) {
	var found bool
	err := kv.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		} else if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// Get implements binindex.KV.
func (kv *KV) Get(key []byte) ([]byte, error) {
	var val []byte
	err := kv.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return binindex.ErrNotFound
		} else if err != nil {
			return err
		}

		val, err = item.ValueCopy(nil)
		return err
	})
	return val, err
}

// Set implements binindex.KV.
func (kv *KV) Set(key, value []byte) error {
	return kv.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Close closes the database.
func (kv *KV) Close() error {
	return kv.db.Close()
}
