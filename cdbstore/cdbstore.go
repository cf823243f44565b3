// Package cdbstore packs a whole index into a single constant database
// (CDB) file. Packs are written once through a Writer and then opened
// read-only with Open.
package cdbstore

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/bsm/binindex"
	"github.com/colinmarc/cdb"
	"github.com/opencontainers/go-digest"
)

var (
	// ErrNotFrozen is returned by Writer.Get before the pack is frozen.
	ErrNotFrozen = errors.New("cdbstore: pack is not frozen")
	// ErrReadOnly is returned by Reader.Put.
	ErrReadOnly = errors.New("cdbstore: pack is read-only")

	errClosed = errors.New("cdbstore: is closed")
	errFrozen = errors.New("cdbstore: pack is frozen")
)

// Writer writes a pack file. It implements binindex.Store.
type Writer struct {
	c binindex.Compression

	mu     sync.Mutex
	f      *os.File
	w      *cdb.Writer
	db     *cdb.CDB
	seen   map[digest.Digest]struct{}
	closed bool
}

// Create creates a new pack at path, truncating any existing file.
func Create(path string, c binindex.Compression) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := cdb.NewWriter(f, nil)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{c: c, f: f, w: w, seen: make(map[digest.Digest]struct{})}, nil
}

// Put implements binindex.Store.
func (w *Writer) Put(ctx context.Context, data []byte) (binindex.Address, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dgst := digest.FromBytes(data)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return "", errClosed
	} else if w.w == nil {
		return "", errFrozen
	}

	if _, ok := w.seen[dgst]; !ok {
		if err := w.w.Put([]byte(dgst), binindex.EncodeBlob(nil, data, w.c)); err != nil {
			return "", err
		}
		w.seen[dgst] = struct{}{}
	}
	return binindex.Address(dgst), nil
}

// Get implements binindex.Store. It fails with ErrNotFrozen until Freeze
// has been called.
func (w *Writer) Get(ctx context.Context, addr binindex.Address) ([]byte, error) {
	w.mu.Lock()
	db, closed := w.db, w.closed
	w.mu.Unlock()

	if closed {
		return nil, errClosed
	} else if db == nil {
		return nil, ErrNotFrozen
	}
	return get(ctx, db, addr)
}

// Len returns the number of distinct objects written.
func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}

// Freeze finalises the pack. No more objects can be added afterwards, but
// stored objects become readable.
func (w *Writer) Freeze() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errClosed
	} else if w.w == nil {
		return nil
	}

	db, err := w.w.Freeze()
	if err != nil {
		return err
	}
	w.w, w.db = nil, db
	return nil
}

// Close freezes the pack, if not frozen yet, and releases all resources.
func (w *Writer) Close() error {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return nil
	}

	if err := w.Freeze(); err != nil {
		w.mu.Lock()
		defer w.mu.Unlock()

		w.closed = true
		w.w = nil
		_ = w.f.Close()
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true
	if w.db != nil {
		db := w.db
		w.db = nil
		return db.Close()
	}
	return nil
}

// --------------------------------------------------------------------

// Reader opens a frozen pack. It implements binindex.Store.
type Reader struct {
	db *cdb.CDB
}

// Open opens the pack at path.
func Open(path string) (*Reader, error) {
	db, err := cdb.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{db: db}, nil
}

// Put always returns ErrReadOnly.
func (r *Reader) Put(_ context.Context, _ []byte) (binindex.Address, error) {
	return "", ErrReadOnly
}

// Get implements binindex.Store.
func (r *Reader) Get(ctx context.Context, addr binindex.Address) ([]byte, error) {
	return get(ctx, r.db, addr)
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}

func get(ctx context.Context, db *cdb.CDB, addr binindex.Address) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := db.Get([]byte(addr))
	if err != nil {
		return nil, err
	} else if raw == nil {
		return nil, binindex.ErrNotFound
	}
	return binindex.VerifyBlob(addr, raw)
}
