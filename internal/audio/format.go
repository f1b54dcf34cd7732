// Package audio holds the sample formats and the frame-level arithmetic shared
// by every output path: normalization from the engine's canonical wide frames,
// saturating stream mixing, deinterleaving for per-channel driver buffers, and
// the little-endian byte codecs used on ring buffer contents.
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Format is an instance's output sample encoding. It is chosen once per
// instance before its buffers are allocated and never changes afterwards;
// every hot-path helper in this package is dispatched on it once, outside the
// real-time callback.
type Format int

const (
	FormatS16 Format = iota
	FormatS32
	FormatF32
)

func ParseFormat(s string) (Format, error) {
	switch s {
	case "s16", "":
		return FormatS16, nil
	case "s32":
		return FormatS32, nil
	case "f32":
		return FormatF32, nil
	}
	return 0, fmt.Errorf("unknown output format %q (want s16, s32 or f32)", s)
}

func (f Format) String() string {
	switch f {
	case FormatS16:
		return "s16"
	case FormatS32:
		return "s32"
	case FormatF32:
		return "f32"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// SampleBytes returns the encoded size of one sample.
func (f Format) SampleBytes() int {
	if f == FormatS16 {
		return 2
	}
	return 4
}

// FrameBytes returns the encoded size of one stereo frame.
func (f Format) FrameBytes() int { return 2 * f.SampleBytes() }

// Normalize encodes one canonical engine frame into dst. Canonical samples
// occupy the full int32 range: S16 keeps the top 16 bits, S32 passes through,
// F32 maps the range onto [-1, 1).
func Normalize(f Format, left, right int32, dst []byte) {
	switch f {
	case FormatS16:
		binary.LittleEndian.PutUint16(dst[0:2], uint16(int16(left>>16)))
		binary.LittleEndian.PutUint16(dst[2:4], uint16(int16(right>>16)))
	case FormatS32:
		binary.LittleEndian.PutUint32(dst[0:4], uint32(left))
		binary.LittleEndian.PutUint32(dst[4:8], uint32(right))
	case FormatF32:
		const scale = 1.0 / (1 << 31)
		binary.LittleEndian.PutUint32(dst[0:4], math.Float32bits(float32(left)*scale))
		binary.LittleEndian.PutUint32(dst[4:8], math.Float32bits(float32(right)*scale))
	}
}

// MixBytes sums src into dst sample by sample. dst and src hold samples in
// format f and must be the same length. Integer formats clamp at the
// representable range instead of wrapping; float samples add unclamped.
func MixBytes(f Format, dst, src []byte) {
	switch f {
	case FormatS16:
		for i := 0; i+2 <= len(dst); i += 2 {
			a := int32(int16(binary.LittleEndian.Uint16(dst[i:])))
			b := int32(int16(binary.LittleEndian.Uint16(src[i:])))
			binary.LittleEndian.PutUint16(dst[i:], uint16(clampS16(a+b)))
		}
	case FormatS32:
		for i := 0; i+4 <= len(dst); i += 4 {
			a := int64(int32(binary.LittleEndian.Uint32(dst[i:])))
			b := int64(int32(binary.LittleEndian.Uint32(src[i:])))
			binary.LittleEndian.PutUint32(dst[i:], uint32(clampS32(a+b)))
		}
	case FormatF32:
		for i := 0; i+4 <= len(dst); i += 4 {
			a := math.Float32frombits(binary.LittleEndian.Uint32(dst[i:]))
			b := math.Float32frombits(binary.LittleEndian.Uint32(src[i:]))
			binary.LittleEndian.PutUint32(dst[i:], math.Float32bits(a+b))
		}
	}
}

func clampS16(v int32) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

func clampS32(v int64) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}

// DeinterleaveS16 splits interleaved LRLR... frames in src into the two
// per-channel buffers a pull-model driver hands out.
func DeinterleaveS16(dstL, dstR []int16, src []byte) {
	for i := range dstL {
		dstL[i] = int16(binary.LittleEndian.Uint16(src[4*i:]))
		dstR[i] = int16(binary.LittleEndian.Uint16(src[4*i+2:]))
	}
}

func DeinterleaveS32(dstL, dstR []int32, src []byte) {
	for i := range dstL {
		dstL[i] = int32(binary.LittleEndian.Uint32(src[8*i:]))
		dstR[i] = int32(binary.LittleEndian.Uint32(src[8*i+4:]))
	}
}

func DeinterleaveF32(dstL, dstR []float32, src []byte) {
	for i := range dstL {
		dstL[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[8*i:]))
		dstR[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[8*i+4:]))
	}
}

// DecodeS16 unpacks little-endian samples; dst decides how many.
func DecodeS16(dst []int16, src []byte) {
	for i := range dst {
		dst[i] = int16(binary.LittleEndian.Uint16(src[2*i:]))
	}
}

func EncodeS16(dst []byte, src []int16) {
	for i, v := range src {
		binary.LittleEndian.PutUint16(dst[2*i:], uint16(v))
	}
}

func DecodeS32(dst []int32, src []byte) {
	for i := range dst {
		dst[i] = int32(binary.LittleEndian.Uint32(src[4*i:]))
	}
}

func DecodeF32(dst []float32, src []byte) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[4*i:]))
	}
}

func EncodeF32(dst []byte, src []float32) {
	for i, v := range src {
		binary.LittleEndian.PutUint32(dst[4*i:], math.Float32bits(v))
	}
}

// FromFloat32 encodes normalized float32 samples into format f. Integer
// formats clamp at [-1, 1] first, the way the conventional PCM paths do.
func FromFloat32(f Format, dst []byte, src []float32) {
	switch f {
	case FormatS16:
		for i, v := range src {
			binary.LittleEndian.PutUint16(dst[2*i:], uint16(clampFloatS16(v)))
		}
	case FormatS32:
		for i, v := range src {
			binary.LittleEndian.PutUint32(dst[4*i:], uint32(clampFloatS32(v)))
		}
	case FormatF32:
		EncodeF32(dst, src)
	}
}

func clampFloatS16(v float32) int16 {
	if v >= 1 {
		return math.MaxInt16
	}
	if v <= -1 {
		return math.MinInt16
	}
	return int16(v * 32767)
}

func clampFloatS32(v float32) int32 {
	if v >= 1 {
		return math.MaxInt32
	}
	if v <= -1 {
		return math.MinInt32
	}
	return int32(float64(v) * float64(math.MaxInt32))
}

// ToFloat32 decodes samples in format f into normalized float32 values.
// The push backend's readers use this to feed a single float32 device context
// regardless of each instance's encoding.
func ToFloat32(f Format, dst []float32, src []byte) {
	switch f {
	case FormatS16:
		const scale = 1.0 / 32768.0
		for i := range dst {
			dst[i] = float32(int16(binary.LittleEndian.Uint16(src[2*i:]))) * scale
		}
	case FormatS32:
		const scale = 1.0 / (1 << 31)
		for i := range dst {
			dst[i] = float32(int32(binary.LittleEndian.Uint32(src[4*i:]))) * scale
		}
	case FormatF32:
		DecodeF32(dst, src)
	}
}
