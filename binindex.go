package binindex

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when an address cannot be found.
var ErrNotFound = errors.New("binindex: not found")

// Input validation errors, returned before any object is stored.
var (
	ErrInvalidBinSize = errors.New("binindex: bin size must be >= 1")
	ErrInvalidKey     = errors.New("binindex: invalid key")
	ErrDuplicateKey   = errors.New("binindex: duplicate key value")
)

// ErrStorageWrite matches any StorageWriteError via errors.Is.
var ErrStorageWrite = errors.New("binindex: storage write failed")

// ErrCorrupt is returned when stored content does not match its address.
var ErrCorrupt = errors.New("binindex: corrupt object")

var errBadCompression = errors.New("binindex: bad compression codec")

// Address is the location of an object in a content-addressed store.
type Address string

// String implements fmt.Stringer.
func (a Address) String() string { return string(a) }

// Root is the descriptor object uploaded last. Pivots[i] is the greatest key
// stored in the bin at Bins[i]; Keys holds every key in ascending order.
type Root struct {
	Metadata json.RawMessage `json:"metadata"`
	Pivots   []string        `json:"pivots"`
	Bins     []Address       `json:"bins"`
	Keys     []string        `json:"keys"`
}

// StorageWriteError reports a failed object upload.
type StorageWriteError struct {
	Bin int // bin position, -1 for the root
	Err error
}

func (e *StorageWriteError) Error() string {
	if e.Bin < 0 {
		return fmt.Sprintf("binindex: storing root: %v", e.Err)
	}
	return fmt.Sprintf("binindex: storing bin %d: %v", e.Bin, e.Err)
}

// Unwrap returns the underlying store error.
func (e *StorageWriteError) Unwrap() error { return e.Err }

// Is reports whether target is ErrStorageWrite.
func (e *StorageWriteError) Is(target error) bool { return target == ErrStorageWrite }

// --------------------------------------------------------------------

// Compression is the compression codec applied by byte-oriented stores.
type Compression byte

func (c Compression) isValid() bool {
	return c >= SnappyCompression && c < unknownCompression
}

// String returns the codec name.
func (c Compression) String() string {
	switch c {
	case SnappyCompression:
		return "snappy"
	case NoCompression:
		return "none"
	case ZstdCompression:
		return "zstd"
	}
	return fmt.Sprintf("Compression(%d)", byte(c))
}

// ParseCompression parses a codec name as returned by Compression.String.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "snappy", "":
		return SnappyCompression, nil
	case "none":
		return NoCompression, nil
	case "zstd":
		return ZstdCompression, nil
	}
	return 0, fmt.Errorf("binindex: unknown compression %q", s)
}

// Supported compression codecs
const (
	SnappyCompression Compression = iota
	NoCompression
	ZstdCompression
	unknownCompression
)
