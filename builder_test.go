package binindex_test

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	"github.com/bsm/binindex"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Builder", func() {
	var store *recordingStore
	var ctx = context.Background()

	var progress []float64
	var progressMu sync.Mutex
	var onProgress = func(f float64) {
		progressMu.Lock()
		progress = append(progress, f)
		progressMu.Unlock()
	}

	readRoot := func(addr binindex.Address) *binindex.Root {
		data, err := store.Get(ctx, addr)
		Expect(err).NotTo(HaveOccurred())

		root := new(binindex.Root)
		Expect(json.Unmarshal(data, root)).To(Succeed())
		return root
	}

	readBin := func(addr binindex.Address) map[string]string {
		data, err := store.Get(ctx, addr)
		Expect(err).NotTo(HaveOccurred())

		bin := make(map[string]string)
		Expect(json.Unmarshal(data, &bin)).To(Succeed())
		return bin
	}

	BeforeEach(func() {
		store = newRecordingStore()
		progress = nil
	})

	It("should build the basic example", func() {
		entries := map[string]string{"0x00": "a", "0x01": "b", "0x02": "c"}
		addr, err := binindex.Build(ctx, store, entries, map[string]string{"name": "test"}, 2, onProgress)
		Expect(err).NotTo(HaveOccurred())
		Expect(store.Stored()).To(Equal(3))

		root := readRoot(addr)
		Expect(root.Pivots).To(Equal([]string{"0x01", "0x02"}))
		Expect(root.Keys).To(Equal([]string{"0x00", "0x01", "0x02"}))
		Expect(root.Bins).To(HaveLen(2))
		Expect(string(root.Metadata)).To(MatchJSON(`{"name":"test"}`))

		Expect(readBin(root.Bins[0])).To(Equal(map[string]string{"0x00": "a", "0x01": "b"}))
		Expect(readBin(root.Bins[1])).To(Equal(map[string]string{"0x02": "c"}))
		Expect(progress).To(Equal([]float64{0.5, 0.5}))
	})

	It("should build an empty root for empty input", func() {
		addr, err := binindex.Build(ctx, store, map[string]string{}, nil, 10, onProgress)
		Expect(err).NotTo(HaveOccurred())
		Expect(store.Stored()).To(Equal(1))
		Expect(progress).To(BeEmpty())

		data, err := store.Get(ctx, addr)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(MatchJSON(`{"metadata":null,"pivots":[],"bins":[],"keys":[]}`))
	})

	It("should write bins in sorted key order", func() {
		entries := map[string]int{"0x10": 16, "0x2": 2, "0xA": 10}
		addr, err := binindex.NewBuilder[int](store, &binindex.Options{BinSize: 3}).Build(ctx, entries, "meta")
		Expect(err).NotTo(HaveOccurred())

		root := readRoot(addr)
		data, err := store.Get(ctx, root.Bins[0])
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(`{"0x2":2,"0xA":10,"0x10":16}`))
		Expect(string(root.Metadata)).To(Equal(`"meta"`))
	})

	It("should partition large inputs", func() {
		entries := seedEntries(1000)
		addr, err := binindex.NewBuilder[string](store, &binindex.Options{
			BinSize:     64,
			Concurrency: 4,
			Progress:    onProgress,
		}).Build(ctx, entries, nil)
		Expect(err).NotTo(HaveOccurred())

		root := readRoot(addr)
		Expect(root.Bins).To(HaveLen(16))
		Expect(root.Pivots).To(HaveLen(16))
		Expect(root.Keys).To(HaveLen(1000))

		var joined []string
		for i, baddr := range root.Bins {
			bin := readBin(baddr)
			if i < len(root.Bins)-1 {
				Expect(bin).To(HaveLen(64))
			} else {
				Expect(bin).To(HaveLen(1000 - 15*64))
			}

			keys := root.Keys[len(joined) : len(joined)+len(bin)]
			for _, k := range keys {
				Expect(bin).To(HaveKeyWithValue(k, entries[k]))
			}
			Expect(keys[len(keys)-1]).To(Equal(root.Pivots[i]))
			joined = append(joined, keys...)
		}
		Expect(joined).To(Equal(root.Keys))

		var sum float64
		for _, f := range progress {
			sum += f
		}
		Expect(progress).To(HaveLen(16))
		Expect(sum).To(BeNumerically("~", 1.0, 1e-9))
	})

	It("should be deterministic", func() {
		entries := seedEntries(100)
		a1, err := binindex.Build(ctx, store, entries, []int{1, 2}, 7, nil)
		Expect(err).NotTo(HaveOccurred())
		a2, err := binindex.Build(ctx, store, entries, []int{1, 2}, 7, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(a1).To(Equal(a2))

		d1, err := store.Get(ctx, a1)
		Expect(err).NotTo(HaveOccurred())
		d2, err := store.Get(ctx, a2)
		Expect(err).NotTo(HaveOccurred())
		Expect(d1).To(Equal(d2))
	})

	It("should default the bin size", func() {
		addr, err := binindex.NewBuilder[string](store, nil).Build(ctx, seedEntries(501), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(readRoot(addr).Bins).To(HaveLen(2))
	})

	Describe("concurrency", func() {
		It("should dispatch all bins at once by default", func() {
			gate := newGateStore(4)
			addr, err := binindex.Build(ctx, gate, seedEntries(16), nil, 4, onProgress)
			Expect(err).NotTo(HaveOccurred())
			Expect(addr).NotTo(BeEmpty())
			Expect(gate.Peak()).To(Equal(4))
			Expect(progress).To(HaveLen(4))
		})

		It("should cap in-flight uploads", func() {
			gate := newGateStore(2)
			_, err := binindex.NewBuilder[string](gate, &binindex.Options{
				BinSize:     2,
				Concurrency: 2,
			}).Build(ctx, seedEntries(16), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(gate.Peak()).To(Equal(2))
		})
	})

	Describe("validation", func() {
		It("should reject invalid bin sizes", func() {
			_, err := binindex.Build(ctx, store, seedEntries(3), nil, 0, nil)
			Expect(err).To(MatchError(binindex.ErrInvalidBinSize))

			_, err = binindex.NewBuilder[string](store, &binindex.Options{BinSize: -1}).Build(ctx, seedEntries(3), nil)
			Expect(err).To(MatchError(binindex.ErrInvalidBinSize))
			Expect(store.Calls()).To(Equal(0))
		})

		It("should reject invalid keys without storing anything", func() {
			entries := seedEntries(10)
			entries["0xnope"] = "x"

			_, err := binindex.Build(ctx, store, entries, nil, 2, onProgress)
			Expect(err).To(MatchError(binindex.ErrInvalidKey))
			Expect(store.Calls()).To(Equal(0))
			Expect(progress).To(BeEmpty())
		})

		It("should reject keys with equal values", func() {
			_, err := binindex.Build(ctx, store, map[string]string{"0x1": "a", "0x001": "b"}, nil, 2, nil)
			Expect(err).To(MatchError(binindex.ErrDuplicateKey))
			Expect(store.Calls()).To(Equal(0))
		})

		It("should reject unencodable values", func() {
			_, err := binindex.Build(ctx, store, map[string]interface{}{"0x1": make(chan int)}, nil, 2, nil)
			Expect(err).To(MatchError(ContainSubstring(`encoding value of "0x1"`)))
			Expect(store.Calls()).To(Equal(0))
		})

		It("should reject unencodable metadata", func() {
			_, err := binindex.Build(ctx, store, seedEntries(2), func() {}, 2, nil)
			Expect(err).To(MatchError(ContainSubstring(`encoding metadata`)))
			Expect(store.Calls()).To(Equal(0))
		})
	})

	Describe("failures", func() {
		It("should not store the root if a bin fails", func() {
			store.failOn = func(data []byte) bool {
				return bytes.Contains(data, []byte(`"0x1e"`)) && !bytes.Contains(data, []byte(`"pivots"`))
			}

			_, err := binindex.Build(ctx, store, seedEntries(100), nil, 10, nil)
			Expect(err).To(MatchError(binindex.ErrStorageWrite))
			Expect(err).To(MatchError(errInjected))

			var swe *binindex.StorageWriteError
			Expect(err).To(BeAssignableToTypeOf(swe))
			swe = err.(*binindex.StorageWriteError)
			Expect(swe.Bin).To(Equal(1))

			for _, data := range store.puts {
				Expect(string(data)).NotTo(ContainSubstring(`"pivots"`))
			}
		})

		It("should report root failures", func() {
			store.failOn = func(data []byte) bool {
				return bytes.Contains(data, []byte(`"pivots"`))
			}

			_, err := binindex.Build(ctx, store, seedEntries(10), nil, 5, nil)
			Expect(err).To(MatchError(`binindex: storing root: injected failure`))
			Expect(store.Stored()).To(Equal(2))
		})

		It("should stop on cancelled contexts", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			_, err := binindex.Build(cctx, store, seedEntries(10), nil, 5, nil)
			Expect(err).To(MatchError(context.Canceled))
			Expect(store.Stored()).To(Equal(0))
		})
	})
})
