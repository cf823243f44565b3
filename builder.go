package binindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultBinSize is the number of entries per bin used when Options.BinSize
// is not set.
const DefaultBinSize = 500

// Options define builder specific options.
type Options struct {
	// BinSize is the maximum number of entries per bin. Every bin except the
	// last holds exactly BinSize entries. Negative values are rejected.
	// Default: 500.
	BinSize int

	// Concurrency limits the number of bin uploads in flight.
	// Default: 0 (unlimited).
	Concurrency int

	// Progress, if set, is called once per stored bin with 1/numBins.
	// Calls never overlap.
	Progress func(fraction float64)

	// Logger receives build events. Default: discard.
	Logger *slog.Logger
}

func (o *Options) norm() *Options {
	var oo Options
	if o != nil {
		oo = *o
	}

	if oo.BinSize == 0 {
		oo.BinSize = DefaultBinSize
	}
	if oo.Concurrency < 0 {
		oo.Concurrency = 0
	}
	if oo.Logger == nil {
		oo.Logger = slog.New(slog.DiscardHandler)
	}

	return &oo
}

// Builder builds binned indexes over entries with values of type V and
// stores them in a Store. A Builder holds no state between builds and may
// be used concurrently.
type Builder[V any] struct {
	s Store
	o *Options
}

// NewBuilder wraps a store and returns a Builder.
func NewBuilder[V any](s Store, o *Options) *Builder[V] {
	return &Builder[V]{s: s, o: o.norm()}
}

// Build is a shortcut for NewBuilder(s, ...).Build(ctx, entries, metadata)
// with an explicit bin size and progress callback. A binSize < 1 is
// rejected with ErrInvalidBinSize.
func Build[V any](ctx context.Context, s Store, entries map[string]V, metadata any, binSize int, onProgress func(float64)) (Address, error) {
	if binSize < 1 {
		return "", ErrInvalidBinSize
	}
	return NewBuilder[V](s, &Options{BinSize: binSize, Progress: onProgress}).Build(ctx, entries, metadata)
}

// Build sorts the entry keys, partitions them into bins, stores every bin
// and finally the root, whose address is returned.
//
// Input is validated before anything is stored. If any bin fails to store,
// the build is aborted and no root is written. Entries must not be modified
// while Build is running.
func (b *Builder[V]) Build(ctx context.Context, entries map[string]V, metadata any) (Address, error) {
	if b.o.BinSize < 1 {
		return "", ErrInvalidBinSize
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}

	plan, err := NewPlan(keys, b.o.BinSize)
	if err != nil {
		return "", err
	}

	meta, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("binindex: encoding metadata: %w", err)
	}

	bins := make([][]byte, plan.NumBins())
	for i := range bins {
		if bins[i], err = encodeBin(plan.BinKeys(i), entries); err != nil {
			return "", err
		}
	}

	log := b.o.Logger.With(slog.String("build_id", uuid.NewString()))
	log.Debug("build started",
		slog.Int("entries", len(plan.Keys)),
		slog.Int("bins", len(bins)),
		slog.Int("bin_size", b.o.BinSize))
	start := time.Now()

	addrs, err := b.storeBins(ctx, log, bins)
	if err != nil {
		return "", err
	}

	rootData, err := json.Marshal(&Root{
		Metadata: meta,
		Pivots:   plan.Pivots,
		Bins:     addrs,
		Keys:     plan.Keys,
	})
	if err != nil {
		return "", fmt.Errorf("binindex: encoding root: %w", err)
	}

	root, err := b.s.Put(ctx, rootData)
	if err != nil {
		log.Warn("storing root failed", slog.Any("error", err))
		return "", &StorageWriteError{Bin: -1, Err: err}
	}

	log.Info("build finished",
		slog.String("root", root.String()),
		slog.Int("bins", len(bins)),
		slog.Duration("elapsed", time.Since(start)))
	return root, nil
}

// storeBins stores all bins concurrently and returns their addresses in bin
// order. The first failure cancels the remaining uploads.
func (b *Builder[V]) storeBins(ctx context.Context, log *slog.Logger, bins [][]byte) ([]Address, error) {
	addrs := make([]Address, len(bins))
	if len(bins) == 0 {
		return addrs, nil
	}

	step := 1 / float64(len(bins))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	if b.o.Concurrency > 0 {
		g.SetLimit(b.o.Concurrency)
	}

	for i, data := range bins {
		g.Go(func() error {
			addr, err := b.s.Put(gctx, data)
			if err != nil {
				log.Warn("storing bin failed", slog.Int("bin", i), slog.Any("error", err))
				return &StorageWriteError{Bin: i, Err: err}
			}
			addrs[i] = addr

			if b.o.Progress != nil {
				mu.Lock()
				b.o.Progress(step)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return addrs, nil
}

// encodeBin encodes a JSON object with keys in the given order.
func encodeBin[V any](keys []string, entries map[string]V) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte('{')
	for i, k := range keys {
		if i != 0 {
			buf.WriteByte(',')
		}

		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(entries[k])
		if err != nil {
			return nil, fmt.Errorf("binindex: encoding value of %q: %w", k, err)
		}

		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
