package output

import (
	"fmt"
	"log"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/audio"
	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/ringbuffer"
)

// PushDefaultName is the single device the push backend can open; oto has no
// device enumeration, everything goes through the system default.
const PushDefaultName = "Default device (oto)"

const maxSources = 16

// pushSource adapts one instance ring buffer to oto's io.Reader pull. The
// reader converts whole chunks from the instance encoding to the context's
// float32 format, carrying any partially consumed chunk across Read calls.
// An underrun fills the remainder with silence instead of blocking.
type pushSource struct {
	ring        *ringbuffer.RingBuffer
	format      audio.Format
	chunkFrames int

	conv    []float32
	convB   []byte
	pending []byte

	player *oto.Player
}

func (s *pushSource) Read(p []byte) (int, error) {
	filled := 0
	for filled < len(p) {
		if len(s.pending) > 0 {
			n := copy(p[filled:], s.pending)
			s.pending = s.pending[n:]
			filled += n
			continue
		}
		chunkBytes := s.chunkFrames * s.format.FrameBytes()
		if s.ring.ReadableBytes() < chunkBytes {
			break
		}
		span := s.ring.PrepareRead(s.chunkFrames)
		audio.ToFloat32(s.format, s.conv, span)
		s.ring.FinishRead(s.chunkFrames)
		audio.EncodeF32(s.convB, s.conv)
		s.pending = s.convB
	}
	for i := filled; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

type pushOutput struct {
	ctx     *oto.Context
	sources []*pushSource
	params  Parameters
	started bool
}

var push pushOutput

// PushCreate opens the push backend. deviceName is accepted for interface
// symmetry; oto can only open the default device, so any other name is
// reported and the default is used.
func PushCreate(deviceName string, params Parameters) error {
	if deviceName != "" && deviceName != PushDefaultName {
		log.Printf("Push backend has no device %q; using the default device", deviceName)
	}

	op := &oto.NewContextOptions{
		SampleRate:   params.Frequency,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize: time.Second * time.Duration(params.BufferFrames*params.BufferCount) /
			time.Duration(params.Frequency),
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("oto context: %w", err)
	}
	<-ready

	push = pushOutput{ctx: ctx, params: params}
	return nil
}

// PushAddSource registers one instance ring as an audio source. The
// subsystem mixes registered players itself; nothing is summed here.
func PushAddSource(ring *ringbuffer.RingBuffer, format audio.Format, chunkFrames int) {
	if len(push.sources) == maxSources {
		log.Fatalf("attempted to add more than %d push sources", maxSources)
	}
	push.sources = append(push.sources, &pushSource{
		ring:        ring,
		format:      format,
		chunkFrames: chunkFrames,
		conv:        make([]float32, 2*chunkFrames),
		convB:       make([]byte, 8*chunkFrames),
	})
}

func PushStart() error {
	if push.ctx == nil {
		return fmt.Errorf("push backend not created")
	}
	for _, s := range push.sources {
		s.player = push.ctx.NewPlayer(s)
		s.player.Play()
	}
	push.started = true
	return nil
}

func PushStop() {
	for _, s := range push.sources {
		if s.player != nil {
			s.player.Pause()
		}
	}
	push.started = false
}

// PushDestroy stops playback and releases the players. The oto context
// itself cannot be closed; it is suspended and lives until process exit.
func PushDestroy() {
	PushStop()
	for _, s := range push.sources {
		if s.player != nil {
			if err := s.player.Close(); err != nil {
				log.Printf("Failed to close push player: %v", err)
			}
			s.player = nil
		}
	}
	if push.ctx != nil {
		if err := push.ctx.Suspend(); err != nil {
			log.Printf("Failed to suspend push context: %v", err)
		}
	}
	push.sources = nil
}
