package netstream

import (
	"context"
	"fmt"
	"log"

	"github.com/hraban/opus"

	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/pipeline"
)

type encodeOpusStage struct {
	server *Server
}

func (s *Server) EncodeOpusStage() pipeline.TypedStage[[]int16, []byte] {
	return &encodeOpusStage{server: s}
}

func (e *encodeOpusStage) Process(ctx context.Context, in <-chan []int16) (<-chan []byte, error) {
	return e.server.encodeOpus(ctx, in)
}

func (s *Server) encodeOpus(ctx context.Context, in <-chan []int16) (chan []byte, error) {
	encoder, err := opus.NewEncoder(sampleRate, channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("opus encoder: %w", err)
	}
	if err := encoder.SetBitrate(bitrate); err != nil {
		return nil, fmt.Errorf("opus bitrate: %w", err)
	}

	out := make(chan []byte, 20)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				log.Println("Stream encoding stopped")
				return
			case frame, ok := <-in:
				if !ok {
					return
				}

				encoded := make([]byte, maxOpusFrame)
				n, err := encoder.Encode(frame, encoded)
				if err != nil {
					log.Printf("Opus encode error: %v", err)
					continue
				}

				select {
				case <-ctx.Done():
					return
				case out <- encoded[:n]:
				}
			}
		}
	}()
	return out, nil
}
