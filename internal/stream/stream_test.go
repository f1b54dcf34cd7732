package stream

import (
	"testing"

	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/audio"
)

func putConstantChunks(s *Stream, value int16, chunkFrames, chunks int) {
	chunk := make([]byte, chunkFrames*4)
	pcm := make([]int16, chunkFrames*2)
	for i := range pcm {
		pcm[i] = value
	}
	audio.EncodeS16(chunk, pcm)
	for i := 0; i < chunks; i++ {
		s.Put(chunk)
	}
}

func TestSameRateConversion(t *testing.T) {
	// s16 in, f32 out, no rate change: values survive as floats
	s := New(audio.FormatS16, 48000, audio.FormatF32, 48000, 64, 8192)
	putConstantChunks(s, 16384, 64, 4)

	if s.Available() == 0 {
		t.Fatal("no converted data available")
	}
	buf := make([]byte, s.Available())
	n := s.Get(buf)

	got := make([]float32, n/4)
	audio.DecodeF32(got, buf[:n])
	for i, v := range got {
		if v < 0.49 || v > 0.51 {
			t.Fatalf("sample %d = %v, want ~0.5", i, v)
		}
	}
}

func TestResampleRatio(t *testing.T) {
	// 2:1 downsample should yield about half the frames
	s := New(audio.FormatS16, 96000, audio.FormatS16, 48000, 128, 8192)
	putConstantChunks(s, 1000, 128, 8)

	frames := s.Available() / s.FrameBytes()
	want := 8 * 128 / 2
	if frames < want-8 || frames > want+8 {
		t.Fatalf("got %d frames, want about %d", frames, want)
	}
}

func TestUpsampleRatio(t *testing.T) {
	s := New(audio.FormatS16, 24000, audio.FormatS16, 48000, 64, 8192)
	putConstantChunks(s, 1000, 64, 4)

	frames := s.Available() / s.FrameBytes()
	want := 4 * 64 * 2
	if frames < want-8 || frames > want+8 {
		t.Fatalf("got %d frames, want about %d", frames, want)
	}
}

func TestGetIsBoundedByAvailable(t *testing.T) {
	s := New(audio.FormatS16, 48000, audio.FormatS16, 48000, 64, 4096)
	putConstantChunks(s, 1, 64, 1)

	avail := s.Available()
	buf := make([]byte, avail+1024)
	if n := s.Get(buf); n != avail {
		t.Fatalf("Get returned %d bytes with %d available", n, avail)
	}
	if n := s.Get(buf); n != 0 {
		t.Fatalf("second Get returned %d bytes from an empty stream", n)
	}
}

func TestDroppedOnOverflow(t *testing.T) {
	s := New(audio.FormatS16, 48000, audio.FormatS16, 48000, 64, 64)
	putConstantChunks(s, 1, 64, 100)
	if s.Dropped() == 0 {
		t.Fatal("expected drops when producing far past the ring depth")
	}
}

func TestDownsampleThresholdReachable(t *testing.T) {
	// a producer throttled on Available must be able to hit its threshold
	// even when the destination rate halves the frame count; a ring sized
	// from source-frame geometry caps just below the threshold here and
	// the stream drops frames instead of ever reporting itself full
	const threshold = 16 * 512 * 4 // bufferCount * driver frames * s16 frame
	s := New(audio.FormatS16, 96000, audio.FormatS16, 48000, 512, threshold)

	for i := 0; i < 40 && s.Available() < threshold; i++ {
		putConstantChunks(s, 1000, 512, 1)
	}
	if s.Available() < threshold {
		t.Fatalf("available capped at %d, below the threshold %d", s.Available(), threshold)
	}
	if s.Dropped() != 0 {
		t.Fatalf("dropped %d frames before reaching the threshold", s.Dropped())
	}
}
