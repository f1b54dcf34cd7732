package emu

import (
	"math"
	"sync/atomic"
)

const (
	toneFramesPerStep = 32
	toneAmplitude     = 0.25 * float64(math.MaxInt32)
)

// TestTone is a stand-in engine that produces a stereo sine wave. It exists
// so the transport layer can run end to end without a synthesizer core
// attached, and it doubles as the engine used by the tests.
//
// It listens to a small slice of MIDI: note-on retunes the oscillator to the
// note's pitch, note-off (or note-on with zero velocity) silences it.
type TestTone struct {
	rate  int
	phase float64

	// written by PostMIDI on the router's goroutine, read by Step
	freqMilliHz atomic.Int64

	callback SampleFunc
}

// NewTestTone creates a tone engine at the given native sample rate,
// initially tuned to pitchHz.
func NewTestTone(rate int, pitchHz float64) *TestTone {
	t := &TestTone{rate: rate}
	t.freqMilliHz.Store(int64(pitchHz * 1000))
	return t
}

func (t *TestTone) SetSampleCallback(fn SampleFunc) { t.callback = fn }

func (t *TestTone) OutputFrequency() int { return t.rate }

// Step emits a small batch of frames, mimicking an emulation core that
// produces samples as a side effect of advancing.
func (t *TestTone) Step() {
	if t.callback == nil {
		return
	}
	freq := float64(t.freqMilliHz.Load()) / 1000
	inc := freq * 2 * math.Pi / float64(t.rate)
	for i := 0; i < toneFramesPerStep; i++ {
		var s int32
		if freq > 0 {
			s = int32(toneAmplitude * math.Sin(t.phase))
			t.phase += inc
			if t.phase > 2*math.Pi {
				t.phase -= 2 * math.Pi
			}
		}
		t.callback(Frame{Left: s, Right: s})
	}
}

// PostMIDI understands note-on/note-off; everything else (including sysex
// broadcasts from the router) is accepted and ignored.
func (t *TestTone) PostMIDI(msg []byte) {
	if len(msg) < 3 {
		return
	}
	switch msg[0] & 0xF0 {
	case 0x90:
		if msg[2] == 0 {
			t.freqMilliHz.Store(0)
			return
		}
		t.freqMilliHz.Store(int64(noteHz(msg[1]) * 1000))
	case 0x80:
		t.freqMilliHz.Store(0)
	}
}

func noteHz(note byte) float64 {
	return 440 * math.Pow(2, (float64(note)-69)/12)
}
