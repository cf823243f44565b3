package binindex_test

import (
	"github.com/bsm/binindex"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseKey", func() {
	It("should parse hex with and without prefix", func() {
		n, err := binindex.ParseKey("0xFF")
		Expect(err).NotTo(HaveOccurred())
		Expect(n.Int64()).To(Equal(int64(255)))

		n, err = binindex.ParseKey("0Xff")
		Expect(err).NotTo(HaveOccurred())
		Expect(n.Int64()).To(Equal(int64(255)))

		n, err = binindex.ParseKey("ff")
		Expect(err).NotTo(HaveOccurred())
		Expect(n.Int64()).To(Equal(int64(255)))
	})

	It("should parse keys wider than 64 bits", func() {
		n, err := binindex.ParseKey("0x" + "ff00000000000000000000000000000000000000000000000000000000000001")
		Expect(err).NotTo(HaveOccurred())
		Expect(n.BitLen()).To(Equal(256))
	})

	It("should reject bad keys", func() {
		for _, s := range []string{"", "0x", "0xzz", "-0x1", "0x1 ", "12g4"} {
			_, err := binindex.ParseKey(s)
			Expect(err).To(MatchError(binindex.ErrInvalidKey), "for %q", s)
		}
	})
})

var _ = Describe("CompareKeys", func() {
	It("should compare numerically", func() {
		Expect(binindex.CompareKeys("0x2", "0x10")).To(Equal(-1))
		Expect(binindex.CompareKeys("0x10", "0x2")).To(Equal(1))
		Expect(binindex.CompareKeys("0x0A", "0x0a")).To(Equal(0))
	})

	It("should fail on bad input", func() {
		_, err := binindex.CompareKeys("0x1", "nope")
		Expect(err).To(MatchError(binindex.ErrInvalidKey))
	})
})

var _ = Describe("SortKeys", func() {
	It("should sort by value, not by string", func() {
		Expect(binindex.SortKeys([]string{"0x10", "0x2", "0xA", "0x01"})).To(Equal([]string{"0x01", "0x2", "0xA", "0x10"}))
	})

	It("should sort mixed case and wide keys", func() {
		wide := "0x1" + "0000000000000000000000000000000000000000"
		Expect(binindex.SortKeys([]string{wide, "0xFFFFFFFFFFFFFFFF", "0xab"})).To(Equal([]string{"0xab", "0xFFFFFFFFFFFFFFFF", wide}))
	})

	It("should not modify the input", func() {
		keys := []string{"0x3", "0x1", "0x2"}
		_, err := binindex.SortKeys(keys)
		Expect(err).NotTo(HaveOccurred())
		Expect(keys).To(Equal([]string{"0x3", "0x1", "0x2"}))
	})

	It("should reject keys with equal values", func() {
		_, err := binindex.SortKeys([]string{"0x1", "0x01"})
		Expect(err).To(MatchError(binindex.ErrDuplicateKey))
	})

	It("should handle empty input", func() {
		Expect(binindex.SortKeys(nil)).To(BeEmpty())
	})
})
