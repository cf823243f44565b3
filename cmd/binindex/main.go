package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/bsm/binindex"
	"github.com/bsm/binindex/badgerstore"
	"github.com/bsm/binindex/cdbstore"
	"github.com/bsm/binindex/ipfsstore"
	"github.com/bsm/binindex/leveldbstore"
	"github.com/bsm/binindex/ocistore"
)

var errTagUnsupported = errors.New("-tag is only supported by oci stores")

type config struct {
	in          string
	meta        string
	binSize     int
	store       string
	compression string
	concurrency int
	tag         string
	verbose     bool
}

func main() {
	var cfg config
	flag.StringVar(&cfg.in, "in", "", "path to a JSON object of key/value entries, - for stdin")
	flag.StringVar(&cfg.meta, "meta", "", "path to a JSON metadata document (optional)")
	flag.IntVar(&cfg.binSize, "bin-size", binindex.DefaultBinSize, "maximum number of entries per bin")
	flag.StringVar(&cfg.store, "store", "mem", "target store: mem, leveldb:DIR, badger:DIR, cdb:FILE, oci:DIR or ipfs:URL")
	flag.StringVar(&cfg.compression, "compression", "snappy", "blob compression for leveldb/badger/cdb: snappy, zstd or none")
	flag.IntVar(&cfg.concurrency, "concurrency", 0, "maximum concurrent bin uploads, 0 for unlimited")
	flag.StringVar(&cfg.tag, "tag", "", "tag the root under this name (oci only)")
	flag.BoolVar(&cfg.verbose, "v", false, "verbose logging")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, &cfg, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "binindex:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config, stdin io.Reader, stdout, stderr io.Writer) error {
	level := slog.LevelWarn
	if cfg.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if cfg.in == "" {
		return errors.New("missing -in")
	}
	if cfg.binSize < 1 {
		return binindex.ErrInvalidBinSize
	}
	if cfg.tag != "" && !strings.HasPrefix(cfg.store, "oci:") {
		return errTagUnsupported
	}

	entries, err := readEntries(cfg.in, stdin)
	if err != nil {
		return err
	}

	metadata := json.RawMessage("null")
	if cfg.meta != "" {
		if metadata, err = readJSON(cfg.meta); err != nil {
			return err
		}
	}

	comp, err := binindex.ParseCompression(cfg.compression)
	if err != nil {
		return err
	}

	target, err := openStore(cfg.store, comp, logger)
	if err != nil {
		return err
	}
	defer target.Close()

	var progressMu sync.Mutex
	var done float64
	builder := binindex.NewBuilder[json.RawMessage](target, &binindex.Options{
		BinSize:     cfg.binSize,
		Concurrency: cfg.concurrency,
		Logger:      logger,
		Progress: func(f float64) {
			progressMu.Lock()
			done += f
			if cfg.verbose {
				fmt.Fprintf(stderr, "\rstored %5.1f%%", done*100)
			}
			progressMu.Unlock()
		},
	})

	root, err := builder.Build(ctx, entries, metadata)
	if cfg.verbose && done > 0 {
		fmt.Fprintln(stderr)
	}
	if err != nil {
		return err
	}

	if cfg.tag != "" {
		tagger, ok := target.Store.(*ocistore.Store)
		if !ok {
			return errTagUnsupported
		}
		if err := tagger.Tag(ctx, root, cfg.tag); err != nil {
			return err
		}
	}

	if err := target.Close(); err != nil {
		return err
	}

	fmt.Fprintln(stdout, root)
	return nil
}

// openedStore is a store with an optional release func.
type openedStore struct {
	binindex.Store
	close func() error
	once  sync.Once
	err   error
}

func (s *openedStore) Close() error {
	s.once.Do(func() {
		if s.close != nil {
			s.err = s.close()
		}
	})
	return s.err
}

func openStore(uri string, comp binindex.Compression, logger *slog.Logger) (*openedStore, error) {
	kind, arg, _ := strings.Cut(uri, ":")
	if kind != "mem" && arg == "" {
		return nil, fmt.Errorf("store %q requires an argument, e.g. %s:PATH", uri, kind)
	}

	switch kind {
	case "mem":
		return &openedStore{Store: binindex.NewKVStore(binindex.NewMemStore(), comp)}, nil
	case "leveldb":
		kv, err := leveldbstore.Open(arg, nil)
		if err != nil {
			return nil, err
		}
		return &openedStore{Store: kv.Store(comp), close: kv.Close}, nil
	case "badger":
		kv, err := badgerstore.Open(arg)
		if err != nil {
			return nil, err
		}
		return &openedStore{Store: kv.Store(comp), close: kv.Close}, nil
	case "cdb":
		w, err := cdbstore.Create(arg, comp)
		if err != nil {
			return nil, err
		}
		return &openedStore{Store: w, close: w.Close}, nil
	case "oci":
		s, err := ocistore.New(arg)
		if err != nil {
			return nil, err
		}
		return &openedStore{Store: s}, nil
	case "ipfs":
		s, err := ipfsstore.New(arg, &ipfsstore.Options{Logger: logger})
		if err != nil {
			return nil, err
		}
		return &openedStore{Store: s}, nil
	}
	return nil, fmt.Errorf("unknown store %q", uri)
}

func readEntries(path string, stdin io.Reader) (map[string]json.RawMessage, error) {
	var raw json.RawMessage
	var err error
	if path == "-" {
		err = json.NewDecoder(stdin).Decode(&raw)
	} else {
		raw, err = readJSON(path)
	}
	if err != nil {
		return nil, err
	}

	entries := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("entries must be a JSON object: %w", err)
	}
	return entries, nil
}

func readJSON(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%s: invalid JSON", path)
	}
	return json.RawMessage(data), nil
}
