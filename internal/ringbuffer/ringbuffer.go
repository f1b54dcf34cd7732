// Package ringbuffer provides the lock-free single-producer single-consumer
// byte ring that carries audio frames from an instance thread to the active
// output backend's callback.
//
// Two cursors increase monotonically and are wrapped into the buffer with a
// bitmask; the readable byte count is their unsigned difference, which stays
// correct across cursor wraparound. The capacity is always
// ceilPow2(1+requested) so the ring can never look simultaneously empty and
// full: the producer never claims past capacity-1 readable bytes.
package ringbuffer

import (
	"fmt"
	"math/bits"
	"sync/atomic"
)

// RingBuffer is safe for exactly one producer goroutine (PrepareWrite,
// FinishWrite, Write, WritableBytes) and one consumer goroutine (PrepareRead,
// FinishRead, Read, ReadableBytes). The byte-count queries may be called from
// either side.
type RingBuffer struct {
	// Cursors sit on separate cache lines so the producer and consumer
	// don't invalidate each other's line on every store.
	writeCursor atomic.Uint64
	_           [56]byte
	readCursor  atomic.Uint64
	_           [56]byte

	buf        []byte
	mask       uint64
	frameBytes int
}

// New allocates a ring that can hold at least requestedBytes, rounded up to
// the next power of two after adding the one spare byte that keeps the
// full/empty states distinguishable. frameBytes is the size of one audio
// frame; the Prepare/Finish API counts in frames of this size.
func New(requestedBytes int, frameBytes int) *RingBuffer {
	if requestedBytes <= 0 || frameBytes <= 0 {
		panic(fmt.Sprintf("ringbuffer: invalid geometry %d/%d", requestedBytes, frameBytes))
	}
	capacity := ceilPow2(uint64(1 + requestedBytes))
	return &RingBuffer{
		buf:        make([]byte, capacity),
		mask:       capacity - 1,
		frameBytes: frameBytes,
	}
}

func ceilPow2(v uint64) uint64 {
	if v <= 1 {
		return 1
	}
	return 1 << bits.Len64(v-1)
}

// Capacity returns the allocated byte length, always a power of two.
func (rb *RingBuffer) Capacity() int { return len(rb.buf) }

// FrameBytes returns the frame size this ring was built for.
func (rb *RingBuffer) FrameBytes() int { return rb.frameBytes }

// ReadableBytes returns how many bytes the consumer could read right now.
func (rb *RingBuffer) ReadableBytes() int {
	return int(rb.writeCursor.Load() - rb.readCursor.Load())
}

// WritableBytes returns how many bytes the producer could write right now.
// One byte of capacity is always held back.
func (rb *RingBuffer) WritableBytes() int {
	return len(rb.buf) - 1 - rb.ReadableBytes()
}

// PrepareWrite claims space for nFrames frames and returns the contiguous
// span the producer should fill. The caller must have verified availability
// via WritableBytes; claiming more than is free is a contract violation and
// panics. The span is contiguous because callers reserve chunk sizes that
// evenly divide the capacity, so a chunk never straddles the wrap point.
func (rb *RingBuffer) PrepareWrite(nFrames int) []byte {
	n := uint64(nFrames * rb.frameBytes)
	if int(n) > rb.WritableBytes() {
		panic(fmt.Sprintf("ringbuffer: PrepareWrite(%d frames) with only %d bytes free", nFrames, rb.WritableBytes()))
	}
	pos := rb.writeCursor.Load() & rb.mask
	if pos+n > uint64(len(rb.buf)) {
		panic(fmt.Sprintf("ringbuffer: chunk of %d bytes straddles wrap at %d; chunk size must divide capacity %d", n, pos, len(rb.buf)))
	}
	return rb.buf[pos : pos+n]
}

// FinishWrite publishes nFrames previously filled via PrepareWrite. After the
// cursor store the consumer observes the whole chunk or none of it.
func (rb *RingBuffer) FinishWrite(nFrames int) {
	rb.writeCursor.Add(uint64(nFrames * rb.frameBytes))
}

// PrepareRead returns a contiguous view of the next nFrames frames. The
// consumer must have verified availability via ReadableBytes first.
func (rb *RingBuffer) PrepareRead(nFrames int) []byte {
	n := uint64(nFrames * rb.frameBytes)
	if int(n) > rb.ReadableBytes() {
		panic(fmt.Sprintf("ringbuffer: PrepareRead(%d frames) with only %d bytes readable", nFrames, rb.ReadableBytes()))
	}
	pos := rb.readCursor.Load() & rb.mask
	if pos+n > uint64(len(rb.buf)) {
		panic(fmt.Sprintf("ringbuffer: chunk of %d bytes straddles wrap at %d; chunk size must divide capacity %d", n, pos, len(rb.buf)))
	}
	return rb.buf[pos : pos+n]
}

// FinishRead releases nFrames previously obtained via PrepareRead.
func (rb *RingBuffer) FinishRead(nFrames int) {
	rb.readCursor.Add(uint64(nFrames * rb.frameBytes))
}

// Write copies up to len(p) bytes into the ring and returns how many fit.
// Producer-side alternative to PrepareWrite for unaligned amounts; handles
// the wrap with a two-segment copy.
func (rb *RingBuffer) Write(p []byte) int {
	w := rb.writeCursor.Load()
	free := uint64(rb.WritableBytes())
	n := uint64(len(p))
	if n > free {
		n = free
	}
	if n == 0 {
		return 0
	}
	pos := w & rb.mask
	first := uint64(len(rb.buf)) - pos
	if first >= n {
		copy(rb.buf[pos:pos+n], p[:n])
	} else {
		copy(rb.buf[pos:], p[:first])
		copy(rb.buf[:n-first], p[first:n])
	}
	rb.writeCursor.Store(w + n)
	return int(n)
}

// Read copies up to len(p) bytes out of the ring and returns how many were
// available. Consumer-side alternative to PrepareRead for unaligned amounts.
func (rb *RingBuffer) Read(p []byte) int {
	r := rb.readCursor.Load()
	avail := rb.writeCursor.Load() - r
	n := uint64(len(p))
	if n > avail {
		n = avail
	}
	if n == 0 {
		return 0
	}
	pos := r & rb.mask
	first := uint64(len(rb.buf)) - pos
	if first >= n {
		copy(p[:n], rb.buf[pos:pos+n])
	} else {
		copy(p[:first], rb.buf[pos:])
		copy(p[first:n], rb.buf[:n-first])
	}
	rb.readCursor.Store(r + n)
	return int(n)
}
