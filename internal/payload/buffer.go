// Package payload owns the reusable serialization buffer and the
// length-delimited frame header used by streaming transports.
package payload

import (
	"encoding/binary"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// FrameHeaderSize is the size of the transport frame header:
	// 1 compression-flag byte followed by a big-endian uint32 body length.
	FrameHeaderSize = 5

	// InitialCapacity is the starting buffer capacity. Sized so a typical
	// span batch serializes without any growth.
	InitialCapacity = 768 * 1024

	// maxFrameBody is the largest body length the 4-byte frame length
	// field can describe.
	maxFrameBody = 1<<32 - 1
)

var (
	bufferCapacityBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "trace_governor_payload_buffer_capacity_bytes",
		Help: "Current capacity of the reusable serialization buffer",
	})

	bufferGrowthTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trace_governor_payload_buffer_growth_total",
		Help: "Total number of serialization buffer growth events",
	})
)

func init() {
	prometheus.MustRegister(bufferCapacityBytes)
	prometheus.MustRegister(bufferGrowthTotal)

	bufferGrowthTotal.Add(0)
}

// Buffer is an owned, growable byte region reused across export calls.
// Capacity only grows, by doubling, so a process that has absorbed its
// largest batch size stops reallocating. A Buffer is not safe for
// concurrent use; the exporter serializes access.
type Buffer struct {
	data       []byte
	length     int
	headerSize int
}

// NewBuffer allocates a buffer with the default initial capacity. When
// framed is true the first FrameHeaderSize bytes are reserved for the
// transport frame header and Body starts after them.
func NewBuffer(framed bool) *Buffer {
	return NewBufferSize(framed, InitialCapacity)
}

// NewBufferSize allocates a buffer with an explicit initial capacity.
func NewBufferSize(framed bool, capacity int) *Buffer {
	headerSize := 0
	if framed {
		headerSize = FrameHeaderSize
	}
	if capacity < headerSize {
		capacity = headerSize
	}
	b := &Buffer{
		data:       make([]byte, capacity),
		length:     headerSize,
		headerSize: headerSize,
	}
	bufferCapacityBytes.Set(float64(capacity))
	return b
}

// HeaderSize returns the reserved frame header size (0 for bare transports).
func (b *Buffer) HeaderSize() int { return b.headerSize }

// Cap returns the current capacity.
func (b *Buffer) Cap() int { return cap(b.data) }

// Len returns the logical write position after the last serialize call.
func (b *Buffer) Len() int { return b.length }

// Reset rewinds the write position to the start offset. Capacity is kept.
func (b *Buffer) Reset() { b.length = b.headerSize }

// Ensure grows the buffer until its capacity is at least n bytes. Growth
// doubles the current capacity until sufficient; bytes before the growth
// point are preserved.
func (b *Buffer) Ensure(n int) {
	if n <= cap(b.data) {
		return
	}
	capacity := cap(b.data)
	if capacity == 0 {
		capacity = InitialCapacity
	}
	for capacity < n {
		capacity *= 2
	}
	grown := make([]byte, capacity)
	copy(grown, b.data)
	b.data = grown
	bufferGrowthTotal.Inc()
	bufferCapacityBytes.Set(float64(capacity))
}

// SetLen records the new write position, growing the region if the
// serializer wrote past the current capacity estimate.
func (b *Buffer) SetLen(n int) {
	if n < b.headerSize {
		n = b.headerSize
	}
	b.Ensure(n)
	b.length = n
}

// Raw exposes the full backing region up to capacity. The serializer
// appends into Raw()[:offset] and hands back ownership via Adopt.
func (b *Buffer) Raw() []byte { return b.data[:cap(b.data)] }

// Adopt replaces the backing region with one returned by an appending
// serializer. The region must contain the previous contents; its length
// is the new write position.
func (b *Buffer) Adopt(region []byte) {
	if cap(region) > cap(b.data) {
		bufferGrowthTotal.Inc()
		bufferCapacityBytes.Set(float64(cap(region)))
	}
	b.data = region[:cap(region)]
	b.length = len(region)
}

// Bytes returns the full written region, frame header included when framed.
// This is the region handed to the transmission handler.
func (b *Buffer) Bytes() []byte { return b.data[:b.length] }

// Body returns the written region after the frame header: the protocol
// payload. This is the region the cache writer persists.
func (b *Buffer) Body() []byte { return b.data[b.headerSize:b.length] }

// PatchFrameHeader overwrites the reserved header bytes with the
// compression flag (always 0: wire payloads are sent uncompressed) and
// the big-endian body length. A no-op for bare transports.
func (b *Buffer) PatchFrameHeader() error {
	if b.headerSize == 0 {
		return nil
	}
	body := b.length - b.headerSize
	if body > maxFrameBody {
		return fmt.Errorf("payload body %d exceeds frame length field", body)
	}
	b.data[0] = 0
	binary.BigEndian.PutUint32(b.data[1:FrameHeaderSize], uint32(body))
	return nil
}
