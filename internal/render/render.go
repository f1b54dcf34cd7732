// Package render produces a WAV file from the mixed output of a set of
// engines, stepping them offline as fast as they will go.
package render

import (
	"fmt"
	"log"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/audio"
	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/emu"
)

// flush to the encoder in blocks of this many frames
const blockFrames = 4096

// Renderer mixes one or more engines into a single stereo WAV file. All
// engines must run at the same output frequency.
type Renderer struct {
	engines []emu.Engine
	format  audio.Format
	gain    float32

	pending [][]emu.Frame // per-engine frames not yet mixed
}

func New(format audio.Format, gain float32) *Renderer {
	return &Renderer{format: format, gain: gain}
}

func (r *Renderer) AddEngine(engine emu.Engine) {
	n := len(r.engines)
	r.engines = append(r.engines, engine)
	r.pending = append(r.pending, nil)
	engine.SetSampleCallback(func(f emu.Frame) {
		r.pending[n] = append(r.pending[n], f)
	})
}

func (r *Renderer) bitDepth() int {
	// 32-bit output only for the 32-bit integer format; float frames are
	// scaled down to 16 bits
	if r.format == audio.FormatS32 {
		return 32
	}
	return 16
}

// Render writes seconds worth of mixed audio to path.
func (r *Renderer) Render(path string, seconds float64) error {
	if len(r.engines) == 0 {
		return fmt.Errorf("no engines to render")
	}
	rate := r.engines[0].OutputFrequency()
	for _, e := range r.engines[1:] {
		if e.OutputFrequency() != rate {
			return fmt.Errorf("engines disagree on output frequency")
		}
	}
	totalFrames := int(seconds * float64(rate))
	if totalFrames <= 0 {
		return fmt.Errorf("nothing to render for %v seconds", seconds)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	depth := r.bitDepth()
	enc := wav.NewEncoder(f, rate, depth, 2, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 2, SampleRate: rate},
		SourceBitDepth: depth,
	}

	log.Printf("Rendering %d frames at %d Hz to %s", totalFrames, rate, path)

	written := 0
	for written < totalFrames {
		want := blockFrames
		if left := totalFrames - written; left < want {
			want = left
		}
		block := r.mixBlock(want)

		buf.Data = buf.Data[:0]
		for _, frame := range block {
			l, r2 := r.renderSample(frame.Left), r.renderSample(frame.Right)
			buf.Data = append(buf.Data, l, r2)
		}
		if err := enc.Write(buf); err != nil {
			return fmt.Errorf("write wav block: %w", err)
		}
		written += len(block)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}

// mixBlock steps every engine until each has produced want frames, then sums
// them with saturation.
func (r *Renderer) mixBlock(want int) []emu.Frame {
	for i, e := range r.engines {
		for len(r.pending[i]) < want {
			e.Step()
		}
	}

	block := make([]emu.Frame, want)
	copy(block, r.pending[0][:want])
	for i := 1; i < len(r.engines); i++ {
		for j := 0; j < want; j++ {
			block[j].Left = saturate(int64(block[j].Left) + int64(r.pending[i][j].Left))
			block[j].Right = saturate(int64(block[j].Right) + int64(r.pending[i][j].Right))
		}
	}
	for i := range r.pending {
		r.pending[i] = r.pending[i][:copy(r.pending[i], r.pending[i][want:])]
	}
	return block
}

func saturate(v int64) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}

// renderSample converts one full-range sample to the encoder's integer
// domain, applying gain.
func (r *Renderer) renderSample(v int32) int {
	scaled := v
	if r.gain != 1.0 {
		s := float64(v) * float64(r.gain)
		if s > math.MaxInt32 {
			s = math.MaxInt32
		}
		if s < math.MinInt32 {
			s = math.MinInt32
		}
		scaled = int32(s)
	}
	if r.bitDepth() == 32 {
		return int(scaled)
	}
	return int(scaled >> 16)
}
