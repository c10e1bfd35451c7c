/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package cache_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/vultureproject/darwin-go/cache"
)

var _ = Describe("Cache", func() {
	It("bypasses entirely at capacity 0", func() {
		c := cache.New(0)
		c.Mutex.Lock()
		c.Insert(1, 99)
		_, ok := c.Get(1)
		c.Mutex.Unlock()
		Expect(ok).To(BeFalse())
	})

	It("returns the last-inserted value and evicts LRU at capacity", func() {
		c := cache.New(2)
		c.Mutex.Lock()
		c.Insert(1, 10)
		c.Insert(2, 20)
		c.Mutex.Unlock()

		c.Mutex.Lock()
		v, ok := c.Get(1) // touches 1, making 2 the LRU victim
		c.Mutex.Unlock()
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(uint16(10)))

		c.Mutex.Lock()
		c.Insert(3, 30) // evicts 2
		_, ok2 := c.Get(2)
		c.Mutex.Unlock()
		Expect(ok2).To(BeFalse())
	})

	It("hashes the raw body deterministically", func() {
		a := cache.DefaultHash([]byte(`["abc"]`))
		b := cache.DefaultHash([]byte(`["abc"]`))
		c := cache.DefaultHash([]byte(`["xyz"]`))
		Expect(a).To(Equal(b))
		Expect(a).NotTo(Equal(c))
	})
})
