// Package stream implements the per-instance bridging stream that sits
// between an instance's native output and a backend that negotiates its own
// format and rate. All conversion work (sample decoding, linear-interpolation
// resampling, re-encoding) happens on the producer side during Put; the
// backend's real-time callback only copies already-converted bytes out of an
// SPSC ring, so it stays non-blocking and bounded.
package stream

import (
	"sync/atomic"

	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/audio"
	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/ringbuffer"
)

// Stream converts interleaved stereo frames from a source encoding and rate
// to a destination encoding and rate. Put is producer-only (the instance
// thread); Get and Available are consumer-side (the driver callback).
type Stream struct {
	srcFormat audio.Format
	srcRate   int
	dstFormat audio.Format
	dstRate   int

	ring *ringbuffer.RingBuffer

	// resampler state: pos is the read position within the current Put's
	// source frames; the range [-1, 0) interpolates from prev toward the
	// first incoming frame so output is continuous across Put boundaries.
	ratio        float64 // source frames consumed per output frame
	pos          float64
	prevL, prevR float32
	primed       bool

	srcF []float32 // decoded source samples (interleaved)
	outF []float32 // resampled output samples (interleaved)
	outB []byte    // encoded output bytes

	dropped atomic.Uint64
}

// New builds a stream able to accept up to maxSrcFrames frames per Put.
// minBufferBytes is the converted-side occupancy the ring must be able to
// hold beyond what a single Put produces; callers that throttle a producer
// on Available must pass their full backpressure threshold here, or the
// threshold can sit above what the ring can ever report and the throttle
// never engages.
func New(srcFormat audio.Format, srcRate int, dstFormat audio.Format, dstRate int, maxSrcFrames, minBufferBytes int) *Stream {
	ratio := float64(srcRate) / float64(dstRate)
	maxOutFrames := int(float64(maxSrcFrames)/ratio) + 4
	outChunkBytes := maxOutFrames * dstFormat.FrameBytes()

	ringBytes := minBufferBytes + outChunkBytes
	if ringBytes < 2*outChunkBytes {
		ringBytes = 2 * outChunkBytes
	}

	return &Stream{
		srcFormat: srcFormat,
		srcRate:   srcRate,
		dstFormat: dstFormat,
		dstRate:   dstRate,
		ratio:     ratio,
		pos:       0,
		ring:      ringbuffer.New(ringBytes, dstFormat.FrameBytes()),
		srcF:      make([]float32, 2*maxSrcFrames),
		outF:      make([]float32, 2*maxOutFrames),
		outB:      make([]byte, outChunkBytes),
	}
}

// Format returns the destination encoding.
func (s *Stream) Format() audio.Format { return s.dstFormat }

// FrameBytes returns the size of one converted output frame.
func (s *Stream) FrameBytes() int { return s.dstFormat.FrameBytes() }

// Available returns the number of converted bytes ready for Get.
func (s *Stream) Available() int { return s.ring.ReadableBytes() }

// Dropped returns how many output frames were discarded because the ring was
// full. Nonzero values indicate a producer running without backpressure.
func (s *Stream) Dropped() uint64 { return s.dropped.Load() }

// Put converts one chunk of source-format frames and queues the result.
// Called from the instance thread each time a ring chunk completes.
func (s *Stream) Put(src []byte) {
	nSrc := len(src) / s.srcFormat.FrameBytes()
	if nSrc == 0 {
		return
	}
	samples := s.srcF[:2*nSrc]
	audio.ToFloat32(s.srcFormat, samples, src)

	if !s.primed {
		s.prevL = samples[0]
		s.prevR = samples[1]
		s.primed = true
	}

	nOut := 0
	t := s.pos
	for t < float64(nSrc-1) {
		base := int(t)
		var aL, aR, bL, bR float32
		if t < 0 {
			base = -1
			aL, aR = s.prevL, s.prevR
			bL, bR = samples[0], samples[1]
		} else {
			aL, aR = samples[2*base], samples[2*base+1]
			bL, bR = samples[2*base+2], samples[2*base+3]
		}
		frac := float32(t - float64(base))
		s.outF[2*nOut] = aL + (bL-aL)*frac
		s.outF[2*nOut+1] = aR + (bR-aR)*frac
		nOut++
		t += s.ratio
	}
	s.pos = t - float64(nSrc)
	s.prevL = samples[2*nSrc-2]
	s.prevR = samples[2*nSrc-1]

	if nOut == 0 {
		return
	}
	outBytes := s.outB[:nOut*s.dstFormat.FrameBytes()]
	audio.FromFloat32(s.dstFormat, outBytes, s.outF[:2*nOut])

	if written := s.ring.Write(outBytes); written < len(outBytes) {
		short := uint64(len(outBytes)-written) / uint64(s.dstFormat.FrameBytes())
		s.dropped.Add(short)
	}
}

// Get copies up to len(dst) converted bytes and returns how many were read.
// Non-blocking; callers gate on Available first.
func (s *Stream) Get(dst []byte) int {
	return s.ring.Read(dst)
}
