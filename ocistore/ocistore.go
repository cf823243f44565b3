// Package ocistore stores index objects as blobs in an OCI image layout
// directory, see https://github.com/opencontainers/image-spec/blob/main/image-layout.md.
package ocistore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/bsm/binindex"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/content/oci"
	"oras.land/oras-go/v2/errdef"
)

// MediaType is the media type of stored index objects.
const MediaType = "application/vnd.bsm.binindex.object.v1+json"

// Store is an OCI image layout backed binindex.Store. Addresses are blob
// digests.
type Store struct {
	oci *oci.Store
}

// New opens (or creates) an OCI image layout at root.
func New(root string) (*Store, error) {
	s, err := oci.New(root)
	if err != nil {
		return nil, err
	}
	return &Store{oci: s}, nil
}

// Put implements binindex.Store.
func (s *Store) Put(ctx context.Context, data []byte) (binindex.Address, error) {
	desc := content.NewDescriptorFromBytes(MediaType, data)
	if err := s.oci.Push(ctx, desc, bytes.NewReader(data)); err != nil && !errors.Is(err, errdef.ErrAlreadyExists) {
		return "", err
	}
	return binindex.Address(desc.Digest), nil
}

// Get implements binindex.Store.
func (s *Store) Get(ctx context.Context, addr binindex.Address) ([]byte, error) {
	dgst, err := digest.Parse(string(addr))
	if err != nil {
		return nil, fmt.Errorf("ocistore: bad address %q: %w", addr, err)
	}

	rc, err := s.oci.Fetch(ctx, ocispec.Descriptor{MediaType: MediaType, Digest: dgst})
	if errors.Is(err, errdef.ErrNotFound) {
		return nil, binindex.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	defer rc.Close()

	verifier := dgst.Verifier()
	data, err := io.ReadAll(io.TeeReader(rc, verifier))
	if err != nil {
		return nil, err
	}
	if !verifier.Verified() {
		return nil, fmt.Errorf("%w: %s", binindex.ErrCorrupt, addr)
	}
	return data, nil
}

// Tag names a stored object, typically an index root, in the layout's
// index.json.
func (s *Store) Tag(ctx context.Context, addr binindex.Address, name string) error {
	data, err := s.Get(ctx, addr)
	if err != nil {
		return err
	}
	return s.oci.Tag(ctx, content.NewDescriptorFromBytes(MediaType, data), name)
}

// Resolve returns the address tagged with name.
func (s *Store) Resolve(ctx context.Context, name string) (binindex.Address, error) {
	desc, err := s.oci.Resolve(ctx, name)
	if errors.Is(err, errdef.ErrNotFound) {
		return "", binindex.ErrNotFound
	} else if err != nil {
		return "", err
	}
	return binindex.Address(desc.Digest), nil
}
