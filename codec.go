package binindex

import (
	"fmt"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

const (
	blobNoCompression     = 0
	blobSnappyCompression = 1
	blobZstdCompression   = 2
)

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	if zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault)); err != nil {
		panic(err)
	}
	if zstdDecoder, err = zstd.NewReader(nil); err != nil {
		panic(err)
	}
}

// EncodeBlob appends the framed form of plain to dst: the (possibly
// compressed) payload followed by a single codec byte. Compressed output is
// only kept if it saves at least a quarter of the plain size.
func EncodeBlob(dst, plain []byte, c Compression) []byte {
	var packed []byte
	var flag byte

	switch c {
	case SnappyCompression:
		packed, flag = snappy.Encode(nil, plain), blobSnappyCompression
	case ZstdCompression:
		packed, flag = zstdEncoder.EncodeAll(plain, nil), blobZstdCompression
	}

	if packed != nil && len(packed) < len(plain)-len(plain)/4 {
		dst = append(dst, packed...)
		return append(dst, flag)
	}

	dst = append(dst, plain...)
	return append(dst, blobNoCompression)
}

// DecodeBlob reverses EncodeBlob. Damaged payloads return ErrCorrupt.
func DecodeBlob(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, ErrCorrupt
	}

	var plain []byte
	var err error

	cBitPos := len(raw) - 1
	switch raw[cBitPos] {
	case blobNoCompression:
		return raw[:cBitPos], nil
	case blobSnappyCompression:
		plain, err = snappy.Decode(nil, raw[:cBitPos])
	case blobZstdCompression:
		plain, err = zstdDecoder.DecodeAll(raw[:cBitPos], nil)
	default:
		return nil, errBadCompression
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return plain, nil
}
