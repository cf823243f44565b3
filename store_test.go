package binindex_test

import (
	"context"

	"github.com/bsm/binindex"
	"github.com/bsm/binindex/internal/storetest"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("KVStore", func() {
	var kv *binindex.MemStore
	var subject binindex.Store
	var ctx = context.Background()

	BeforeEach(func() {
		kv = binindex.NewMemStore()
		subject = binindex.NewKVStore(kv, binindex.SnappyCompression)
	})

	Context("defaults", func() {
		storetest.Lint(func() binindex.Store { return subject })
		storetest.LintNotFound(func() binindex.Store { return subject }, storetest.MissingDigest)
	})

	It("should address by sha256 digest", func() {
		addr, err := subject.Put(ctx, []byte("testdata"))
		Expect(err).NotTo(HaveOccurred())
		Expect(addr).To(Equal(binindex.Address("sha256:810ff2fb242a5dee4220f2cb0e6a519891fb67f2f828a6cab4ef8894633b1f50")))
	})

	It("should dedupe writes", func() {
		a1, err := subject.Put(ctx, []byte("testdata"))
		Expect(err).NotTo(HaveOccurred())
		a2, err := subject.Put(ctx, []byte("testdata"))
		Expect(err).NotTo(HaveOccurred())
		Expect(a1).To(Equal(a2))
		Expect(kv.Len()).To(Equal(1))
	})

	It("should detect corruption", func() {
		addr, err := subject.Put(ctx, []byte("testdata"))
		Expect(err).NotTo(HaveOccurred())
		Expect(kv.Set([]byte(addr), []byte("tampered\x00"))).To(Succeed())

		_, err = subject.Get(ctx, addr)
		Expect(err).To(MatchError(binindex.ErrCorrupt))
	})

	It("should detect damaged compressed payloads", func() {
		addr, err := subject.Put(ctx, []byte("testdata"))
		Expect(err).NotTo(HaveOccurred())

		Expect(kv.Set([]byte(addr), []byte("\xff\xff\xff\xff\x01"))).To(Succeed())
		_, err = subject.Get(ctx, addr)
		Expect(err).To(MatchError(binindex.ErrCorrupt))

		Expect(kv.Set([]byte(addr), []byte("garbage\x02"))).To(Succeed())
		_, err = subject.Get(ctx, addr)
		Expect(err).To(MatchError(binindex.ErrCorrupt))
	})

	It("should reject malformed addresses", func() {
		Expect(kv.Set([]byte("bogus"), []byte("x\x00"))).To(Succeed())
		_, err := subject.Get(ctx, "bogus")
		Expect(err).To(HaveOccurred())
	})

	It("should respect cancelled contexts", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := subject.Put(cctx, []byte("testdata"))
		Expect(err).To(MatchError(context.Canceled))
	})
})
