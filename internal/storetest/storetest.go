// Package storetest contains shared specs for binindex.Store implementations.
package storetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/bsm/binindex"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// Lint registers the common Store specs. The subject func is evaluated
// lazily, from within each spec.
func Lint(subject func() binindex.Store) {
	var ctx = context.Background()

	It("should put and get", func() {
		s := subject()

		addr, err := s.Put(ctx, []byte(`{"0x01":"testdata"}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(addr).NotTo(BeEmpty())

		Expect(s.Get(ctx, addr)).To(Equal([]byte(`{"0x01":"testdata"}`)))
	})

	It("should address by content", func() {
		s := subject()

		a1, err := s.Put(ctx, []byte(`"same"`))
		Expect(err).NotTo(HaveOccurred())
		a2, err := s.Put(ctx, []byte(`"same"`))
		Expect(err).NotTo(HaveOccurred())
		a3, err := s.Put(ctx, []byte(`"other"`))
		Expect(err).NotTo(HaveOccurred())

		Expect(a1).To(Equal(a2))
		Expect(a1).NotTo(Equal(a3))
	})

	It("should store larger payloads", func() {
		s := subject()

		payload := make([]byte, 0, 64*1024)
		payload = append(payload, '[')
		for i := 0; i < 4096; i++ {
			if i != 0 {
				payload = append(payload, ',')
			}
			payload = append(payload, fmt.Sprintf(`"0x%04x"`, i)...)
		}
		payload = append(payload, ']')

		addr, err := s.Put(ctx, payload)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Get(ctx, addr)).To(Equal(payload))
	})

	It("should put concurrently", func() {
		s := subject()

		var wg sync.WaitGroup
		addrs := make([]binindex.Address, 16)
		errs := make([]error, 16)
		for i := range addrs {
			wg.Add(1)
			go func(i int) {
				defer GinkgoRecover()
				defer wg.Done()
				addrs[i], errs[i] = s.Put(ctx, []byte(fmt.Sprintf(`{"0x%02x":%d}`, i, i)))
			}(i)
		}
		wg.Wait()

		for i, addr := range addrs {
			Expect(errs[i]).NotTo(HaveOccurred())
			Expect(s.Get(ctx, addr)).To(Equal([]byte(fmt.Sprintf(`{"0x%02x":%d}`, i, i))))
		}
	})
}

// MissingDigest is a well-formed sha256 address which is never stored.
const MissingDigest = binindex.Address("sha256:0000000000000000000000000000000000000000000000000000000000000000")

// LintNotFound registers a spec that checks missing addresses, for stores
// which can be read back right after writing.
func LintNotFound(subject func() binindex.Store, missing binindex.Address) {
	It("should return ErrNotFound for missing objects", func() {
		_, err := subject().Get(context.Background(), missing)
		Expect(err).To(MatchError(binindex.ErrNotFound))
	})
}
