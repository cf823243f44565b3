package binindex

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// ParseKey parses a hex-encoded unsigned integer key with an optional
// 0x/0X prefix. Digits are case-insensitive and the width is unbounded.
func ParseKey(s string) (*big.Int, error) {
	hex := s
	if len(hex) >= 2 && hex[0] == '0' && (hex[1] == 'x' || hex[1] == 'X') {
		hex = hex[2:]
	}
	if hex == "" {
		return nil, fmt.Errorf("%w %q: empty hex payload", ErrInvalidKey, s)
	}
	for i := 0; i < len(hex); i++ {
		if !isHexDigit(hex[i]) {
			return nil, fmt.Errorf("%w %q: bad hex digit %q", ErrInvalidKey, s, hex[i])
		}
	}

	n, ok := new(big.Int).SetString(strings.ToLower(hex), 16)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrInvalidKey, s)
	}
	return n, nil
}

// CompareKeys compares two keys by numeric value. It returns -1, 0 or +1.
func CompareKeys(a, b string) (int, error) {
	x, err := ParseKey(a)
	if err != nil {
		return 0, err
	}
	y, err := ParseKey(b)
	if err != nil {
		return 0, err
	}
	return x.Cmp(y), nil
}

// SortKeys returns a new slice with keys in ascending numeric order. Keys
// that share a numeric value under different spellings are rejected.
func SortKeys(keys []string) ([]string, error) {
	parsed := make([]parsedKey, len(keys))
	for i, k := range keys {
		n, err := ParseKey(k)
		if err != nil {
			return nil, err
		}
		parsed[i] = parsedKey{s: k, n: n}
	}

	sort.Slice(parsed, func(i, j int) bool {
		return parsed[i].n.Cmp(parsed[j].n) < 0
	})

	sorted := make([]string, len(parsed))
	for i, p := range parsed {
		if i != 0 && p.n.Cmp(parsed[i-1].n) == 0 {
			return nil, fmt.Errorf("%w: %q and %q", ErrDuplicateKey, parsed[i-1].s, p.s)
		}
		sorted[i] = p.s
	}
	return sorted, nil
}

type parsedKey struct {
	s string
	n *big.Int
}

func isHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
