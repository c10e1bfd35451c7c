/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package wire_test

import (
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/vultureproject/darwin-go/wire"
)

var _ = Describe("Frame", func() {
	It("round-trips a single-certitude frame", func() {
		h := &wire.Header{
			Type:         wire.TypeFilter,
			ResponseMode: wire.ModeClientOnly,
			FilterCode:   0xdeadbeef,
			EventID:      uuid.New(),
		}
		body := []byte(`["abc"]`)
		frame := wire.EmitFrame(h, []uint16{42}, body)

		got, err := wire.ParseHeader(frame[:wire.HeaderLen])
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Type).To(Equal(h.Type))
		Expect(got.ResponseMode).To(Equal(h.ResponseMode))
		Expect(got.FilterCode).To(Equal(h.FilterCode))
		Expect(got.EventID).To(Equal(h.EventID))
		Expect(got.BodySize).To(Equal(uint32(len(body))))
		Expect(got.CertitudeCount).To(Equal(uint32(1)))
		Expect(got.FirstCertitude).To(Equal(uint32(42)))

		extra, gotBody, err := wire.ParseTail(got, frame[wire.HeaderLen:])
		Expect(err).NotTo(HaveOccurred())
		Expect(extra).To(BeEmpty())
		Expect(gotBody).To(Equal(body))
	})

	It("carries extra certitudes ahead of the body", func() {
		h := &wire.Header{Type: wire.TypeFilter, ResponseMode: wire.ModeBoth}
		frame := wire.EmitFrame(h, []uint16{1, 2, 3}, []byte(`["a","b","c"]`))

		got, err := wire.ParseHeader(frame[:wire.HeaderLen])
		Expect(err).NotTo(HaveOccurred())
		Expect(got.CertitudeCount).To(Equal(uint32(3)))

		extra, body, err := wire.ParseTail(got, frame[wire.HeaderLen:])
		Expect(err).NotTo(HaveOccurred())
		Expect(extra).To(Equal([]uint16{2, 3}))
		Expect(string(body)).To(Equal(`["a","b","c"]`))

		all := got.AllCertitudes(extra)
		Expect(all).To(Equal([]uint16{1, 2, 3}))
	})

	It("is a valid empty frame when body_size==0 and N<=1", func() {
		h := &wire.Header{Type: wire.TypeRaw, ResponseMode: wire.ModeNone}
		frame := wire.EmitFrame(h, nil, nil)
		got, err := wire.ParseHeader(frame[:wire.HeaderLen])
		Expect(err).NotTo(HaveOccurred())
		Expect(got.BodySize).To(Equal(uint32(0)))
		Expect(got.CertitudeCount).To(Equal(uint32(1)))
		Expect(got.TailLen()).To(Equal(uint64(0)))
	})

	It("rejects a certitude_count that would overflow frame capacity", func() {
		err := wire.CheckSize(0, uint64(^uint32(0))/4+1, wire.MaxBody)
		Expect(err).To(HaveOccurred())
	})

	It("rejects a body_size over the cap", func() {
		err := wire.CheckSize(wire.MaxBody+1, 1, wire.MaxBody)
		Expect(err).To(HaveOccurred())
	})

	It("rejects a mis-sized header", func() {
		_, err := wire.ParseHeader(make([]byte, wire.HeaderLen-1))
		Expect(err).To(HaveOccurred())
	})
})
