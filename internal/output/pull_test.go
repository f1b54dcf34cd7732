package output

import (
	"testing"

	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/audio"
	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/stream"
)

func feedS16(t *testing.T, s *stream.Stream, value int16, frames int) {
	t.Helper()
	pcm := make([]int16, 2*frames)
	for i := range pcm {
		pcm[i] = value
	}
	chunk := make([]byte, 4*frames)
	audio.EncodeS16(chunk, pcm)
	s.Put(chunk)
}

func TestRenderMixUnderrunAdvancesNothing(t *testing.T) {
	a := stream.New(audio.FormatS16, 48000, audio.FormatS16, 48000, 256, 8192)
	b := stream.New(audio.FormatS16, 48000, audio.FormatS16, 48000, 256, 8192)
	feedS16(t, a, 100, 256)
	feedS16(t, b, 100, 32) // short of a full buffer

	availA, availB := a.Available(), b.Available()
	accum := make([]byte, 128*4)
	staging := make([]byte, 128*4)
	if renderMix([]*stream.Stream{a, b}, audio.FormatS16, 128, accum, staging) {
		t.Fatal("renderMix succeeded with a starved source")
	}
	if a.Available() != availA {
		t.Fatalf("stream a advanced on underrun: %d bytes left, had %d", a.Available(), availA)
	}
	if b.Available() != availB {
		t.Fatalf("stream b advanced on underrun: %d bytes left, had %d", b.Available(), availB)
	}
}

func TestRenderMixNoSources(t *testing.T) {
	accum := make([]byte, 64*4)
	staging := make([]byte, 64*4)
	if renderMix(nil, audio.FormatS16, 64, accum, staging) {
		t.Fatal("renderMix succeeded with no sources")
	}
}

func TestRenderMixSumsSources(t *testing.T) {
	a := stream.New(audio.FormatS16, 48000, audio.FormatS16, 48000, 256, 8192)
	b := stream.New(audio.FormatS16, 48000, audio.FormatS16, 48000, 256, 8192)
	feedS16(t, a, 1000, 256)
	feedS16(t, b, 234, 256)

	accum := make([]byte, 128*4)
	staging := make([]byte, 128*4)
	if !renderMix([]*stream.Stream{a, b}, audio.FormatS16, 128, accum, staging) {
		t.Fatal("renderMix failed with full sources")
	}
	mixed := make([]int16, 256)
	audio.DecodeS16(mixed, accum)
	for i, v := range mixed {
		if v != 1234 {
			t.Fatalf("sample %d = %d, want 1234", i, v)
		}
	}
}

func TestRenderMixSaturates(t *testing.T) {
	a := stream.New(audio.FormatS16, 48000, audio.FormatS16, 48000, 128, 4096)
	b := stream.New(audio.FormatS16, 48000, audio.FormatS16, 48000, 128, 4096)
	feedS16(t, a, 30000, 128)
	feedS16(t, b, 30000, 128)

	accum := make([]byte, 64*4)
	staging := make([]byte, 64*4)
	if !renderMix([]*stream.Stream{a, b}, audio.FormatS16, 64, accum, staging) {
		t.Fatal("renderMix failed with full sources")
	}
	mixed := make([]int16, 128)
	audio.DecodeS16(mixed, accum)
	for i, v := range mixed {
		if v != 32767 {
			t.Fatalf("sample %d = %d, want saturated 32767", i, v)
		}
	}
}

func TestRenderableFramesClampsToConfigured(t *testing.T) {
	old := pull.bufferFrames.Load()
	defer pull.bufferFrames.Store(old)

	pull.bufferFrames.Store(128)
	if got := renderableFrames(256); got != 128 {
		t.Fatalf("oversized driver buffer not clamped: got %d, want 128", got)
	}
	if got := renderableFrames(64); got != 64 {
		t.Fatalf("undersized driver buffer altered: got %d, want 64", got)
	}
}

func TestBufferSizeQuerySafeDuringReset(t *testing.T) {
	old := pull.bufferFrames.Load()
	defer pull.bufferFrames.Store(old)

	// step loops query the buffer size while a reset re-runs creation;
	// exercise both sides under the race detector
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			pull.bufferFrames.Store(int64(256 + i%2*256))
			pull.frequency.Store(int64(44100 + i%2*3900))
		}
	}()
	for i := 0; i < 1000; i++ {
		if s := PullBufferSize(); s != 0 && s != 256 && s != 512 {
			t.Fatalf("torn buffer size read: %d", s)
		}
		_ = PullFrequency()
	}
	<-done
}

func TestPickChannel(t *testing.T) {
	channels := []Channel{
		{ID: 0, Name: "Speakers out 0"},
		{ID: 1, Name: "Speakers out 1"},
		{ID: 2, Name: "Speakers out 2"},
	}
	cases := []struct {
		selector string
		want     int
		ok       bool
	}{
		{"Speakers out 1", 1, true},
		{"2", 2, true},
		{"0", 0, true},
		{"3", 0, false},
		{"-1", 0, false},
		{"Headphones out 0", 0, false},
	}
	for _, c := range cases {
		got, ok := pickChannel(channels, c.selector)
		if got != c.want || ok != c.ok {
			t.Errorf("pickChannel(%q) = %d, %v; want %d, %v", c.selector, got, ok, c.want, c.ok)
		}
	}
}
