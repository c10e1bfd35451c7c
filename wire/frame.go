// Package wire implements the fixed+variable binary frame of spec.md §3.1 —
// a pure, transport-agnostic codec. It never touches a socket.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package wire

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/vultureproject/darwin-go/ferr"
)

// Type is the `type` field of the frame.
type Type uint8

const (
	TypeRaw    Type = 0
	TypeFilter Type = 1
	TypeOther  Type = 2
)

// ResponseMode is the `response_mode` field of the frame.
type ResponseMode uint8

const (
	ModeNone         ResponseMode = 0
	ModeClientOnly   ResponseMode = 1
	ModeForwardOnly  ResponseMode = 2
	ModeBoth         ResponseMode = 3
)

func (m ResponseMode) WantsClient() bool  { return m == ModeClientOnly || m == ModeBoth }
func (m ResponseMode) WantsForward() bool { return m == ModeForwardOnly || m == ModeBoth }

const (
	// HeaderLen is the fixed prefix every Session reads first: type(1) +
	// response_mode(1) + filter_code(4) + event_id(16) + body_size(4) +
	// certitude_count(4) + the one in-header certitude slot(4).
	HeaderLen = 1 + 1 + 4 + 16 + 4 + 4 + 4

	// DefaultCertitudeListSize is the in-header reserved slot count (spec §6.5).
	DefaultCertitudeListSize = 1

	// ErrorReturn is the sentinel certitude meaning "processing error" (spec §6.5).
	ErrorReturn = 101

	// DefaultThreshold is used when the configured threshold is >100 (spec §6.5/§8).
	DefaultThreshold = 80

	// MaxBody is the default soft cap on body_size (spec §4.A).
	MaxBody = 16 * 1024 * 1024

	// ReservedFilterCode is the filter code meaning "unset" (spec §6.5).
	ReservedFilterCode = 0
)

// Header is the parsed fixed prefix of a frame.
type Header struct {
	Type            Type
	ResponseMode    ResponseMode
	FilterCode      uint32
	EventID         uuid.UUID
	BodySize        uint32
	CertitudeCount  uint32
	FirstCertitude  uint32
}

// ExtraCertitudes is (N-1), the count of certitude slots carried in the tail
// ahead of body, per the "one slot reserved" rule of spec §3.1.
func (h *Header) ExtraCertitudes() uint32 {
	if h.CertitudeCount == 0 {
		return 0
	}
	return h.CertitudeCount - 1
}

// TailLen is the number of bytes following the header for a stream
// transport: (N-1)*4 extra certitudes plus the body.
func (h *Header) TailLen() uint64 {
	return uint64(h.ExtraCertitudes())*4 + uint64(h.BodySize)
}

// ParseHeader decodes the fixed HeaderLen-byte prefix. Field order follows
// spec.md §3.1's table literally: type, response_mode, filter_code,
// event_id, body_size, certitude_count, then the one reserved certitude
// slot. It does not validate BodySize against MaxBody — callers check that
// against their own cap once CertitudeCount/BodySize are known, since the
// cap is a Session policy, not a codec-intrinsic one.
func ParseHeader(b []byte) (*Header, error) {
	if len(b) != HeaderLen {
		return nil, ferr.NewFramingSize("header must be exactly %d bytes, got %d", HeaderLen, len(b))
	}
	h := &Header{
		Type:           Type(b[0]),
		ResponseMode:   ResponseMode(b[1]),
		FilterCode:     binary.LittleEndian.Uint32(b[2:6]),
		BodySize:       binary.LittleEndian.Uint32(b[22:26]),
		CertitudeCount: binary.LittleEndian.Uint32(b[26:30]),
	}
	copy(h.EventID[:], b[6:22])
	h.FirstCertitude = binary.LittleEndian.Uint32(b[30:34])
	return h, nil
}

// CheckSize rejects frames whose body overflows the soft cap (spec §4.A,
// §8 boundary: certitude_count == MAX_U32/4 must raise FramingSize).
func CheckSize(bodySize uint64, certitudeCount uint64, maxBody uint64) error {
	if certitudeCount >= uint64(^uint32(0))/4 {
		return ferr.NewFramingSize("certitude_count %d overflows frame capacity", certitudeCount)
	}
	if bodySize > maxBody {
		return ferr.NewFramingSize("body_size %d exceeds cap %d", bodySize, maxBody)
	}
	return nil
}

// EmitFrame serialises header+certitudes+body into a single allocation,
// with fields laid out in spec.md §3.1's documented order: type,
// response_mode, filter_code, event_id, body_size, certitude_count, the
// one reserved certitude slot, then (N-1) extra certitudes, then body.
// certitudes[0] is always written into the header's reserved slot;
// certitudes[1:] are written into the tail ahead of body.
func EmitFrame(h *Header, certitudes []uint16, body []byte) []byte {
	n := len(certitudes)
	if n == 0 {
		n = 1 // DEFAULT_CERTITUDE_LIST_SIZE
	}
	extra := n - 1
	packetSize := HeaderLen + extra*4 + len(body)
	out := make([]byte, packetSize)

	out[0] = byte(h.Type)
	out[1] = byte(h.ResponseMode)
	binary.LittleEndian.PutUint32(out[2:6], h.FilterCode)
	copy(out[6:22], h.EventID[:])
	binary.LittleEndian.PutUint32(out[22:26], uint32(len(body)))
	binary.LittleEndian.PutUint32(out[26:30], uint32(n))

	var first uint16
	if len(certitudes) > 0 {
		first = certitudes[0]
	}
	binary.LittleEndian.PutUint32(out[30:34], uint32(first))

	off := HeaderLen
	for i := 1; i < n; i++ {
		var v uint16
		if i < len(certitudes) {
			v = certitudes[i]
		}
		binary.LittleEndian.PutUint32(out[off:off+4], uint32(v))
		off += 4
	}
	copy(out[off:], body)
	return out
}

// ParseTail splits a fully-read tail (length h.TailLen()) into the extra
// certitudes and the body.
func ParseTail(h *Header, tail []byte) (extra []uint16, body []byte, err error) {
	want := h.TailLen()
	if uint64(len(tail)) != want {
		return nil, nil, ferr.NewFramingSize("tail length %d, expected %d", len(tail), want)
	}
	n := h.ExtraCertitudes()
	extra = make([]uint16, n)
	off := 0
	for i := uint32(0); i < n; i++ {
		extra[i] = uint16(binary.LittleEndian.Uint32(tail[off : off+4]))
		off += 4
	}
	body = tail[off:]
	return extra, body, nil
}

// AllCertitudes reassembles the header's reserved slot with the tail's
// extra certitudes into one ordered slice.
func (h *Header) AllCertitudes(extra []uint16) []uint16 {
	out := make([]uint16, 0, 1+len(extra))
	if h.CertitudeCount > 0 {
		out = append(out, uint16(h.FirstCertitude))
	}
	out = append(out, extra...)
	return out
}
