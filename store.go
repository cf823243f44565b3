package binindex

import (
	"context"
	_ "crypto/sha256" // register digest.SHA256
	"fmt"

	"github.com/opencontainers/go-digest"
)

// Store is a content-addressed object store. Storing the same bytes twice
// must yield the same address.
type Store interface {
	// Put stores data and returns its address.
	Put(ctx context.Context, data []byte) (Address, error)
	// Get retrieves the data stored at addr. It may return ErrNotFound.
	Get(ctx context.Context, addr Address) ([]byte, error)
}

// KV is a raw byte key-value backend. Get must return ErrNotFound for
// missing keys.
type KV interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
}

// NewKVStore turns a KV backend into a Store. Addresses are sha256 digests
// of the plain data; values are framed with EncodeBlob using c.
func NewKVStore(kv KV, c Compression) Store {
	if !c.isValid() {
		c = SnappyCompression
	}
	return &kvStore{kv: kv, c: c}
}

type kvStore struct {
	kv KV
	c  Compression
}

func (s *kvStore) Put(ctx context.Context, data []byte) (Address, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dgst := digest.FromBytes(data)
	key := []byte(dgst.String())

	ok, err := s.kv.Has(key)
	if err != nil {
		return "", err
	} else if ok {
		return Address(dgst), nil
	}

	if err := s.kv.Set(key, EncodeBlob(nil, data, s.c)); err != nil {
		return "", err
	}
	return Address(dgst), nil
}

func (s *kvStore) Get(ctx context.Context, addr Address) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := s.kv.Get([]byte(addr))
	if err != nil {
		return nil, err
	}
	return VerifyBlob(addr, raw)
}

// VerifyBlob decodes a framed blob and checks it against its digest address.
func VerifyBlob(addr Address, raw []byte) ([]byte, error) {
	dgst, err := digest.Parse(string(addr))
	if err != nil {
		return nil, fmt.Errorf("binindex: bad address %q: %w", addr, err)
	}

	data, err := DecodeBlob(raw)
	if err != nil {
		return nil, err
	}

	if dgst.Algorithm().FromBytes(data) != dgst {
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, addr)
	}
	return data, nil
}
