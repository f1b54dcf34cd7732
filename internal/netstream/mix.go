package netstream

import (
	"context"
	"log"
	"time"

	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/audio"
	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/pipeline"
	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/stream"
)

type mixStage struct {
	server *Server
}

func (s *Server) MixStage() pipeline.TypedStage[any, []int16] {
	return &mixStage{server: s}
}

func (m *mixStage) Process(ctx context.Context, in <-chan any) (<-chan []int16, error) {
	return m.server.mix(ctx)
}

// mix emits one 20 ms frame of summed instance audio per tick. When any
// source is short of a full frame no source is advanced and silence goes out
// instead, keeping the stream's cadence steady through underruns.
func (s *Server) mix(ctx context.Context) (chan []int16, error) {
	out := make(chan []int16, 20)
	ticker := time.NewTicker(time.Duration(frameSize) * time.Second / sampleRate)

	frameBytes := audio.FormatS16.FrameBytes()
	accum := make([]byte, frameSize*frameBytes)
	staging := make([]byte, frameSize*frameBytes)

	go func() {
		defer func() {
			ticker.Stop()
			close(out)
			log.Println("Stream mixing stopped")
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				frame := make([]int16, channels*frameSize)
				if renderFrame(s.sources, accum, staging) {
					audio.DecodeS16(frame, accum)
				}
				select {
				case out <- frame:
				default:
					log.Println("Stream frame dropped (encoder behind)")
				}
			}
		}
	}()
	return out, nil
}

func renderFrame(sources []*stream.Stream, accum, staging []byte) bool {
	if len(sources) == 0 {
		return false
	}
	for _, src := range sources {
		if src.Available() < len(accum) {
			return false
		}
	}
	sources[0].Get(accum)
	for _, src := range sources[1:] {
		src.Get(staging)
		audio.MixBytes(audio.FormatS16, accum, staging)
	}
	return true
}
