// Package leveldbstore implements a binindex.KV backend on top of LevelDB.
package leveldbstore

import (
	"github.com/bsm/binindex"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// KV is a LevelDB backed binindex.KV.
type KV struct {
	db *leveldb.DB
}

// Open opens (or creates) a database in dir. Blobs are already compressed
// by binindex, so LevelDB's own block compression is disabled by default.
func Open(dir string, o *opt.Options) (*KV, error) {
	if o == nil {
		o = &opt.Options{Compression: opt.NoCompression}
	}

	db, err := leveldb.OpenFile(dir, o)
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
	return kv.db.Has(key, nil)
}

// Get implements binindex.KV.
func (kv *KV) Get(key []byte) ([]byte, error) {
	val, err := kv.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, binindex.ErrNotFound
	}
	return val, err
}

// Set implements binindex.KV.
func (kv *KV) Set(key, value []byte) error {
	return kv.db.Put(key, value, nil)
}

// Close closes the database.
func (kv *KV) Close() error {
	return kv.db.Close()
}
