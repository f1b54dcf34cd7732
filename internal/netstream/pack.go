package netstream

import (
	"context"
	"log"

	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/pipeline"
	rtputils "github.com/molinan2/Nuked-SC55-Render-Mac/internal/utils/rtp"
)

type packAsRTPStage struct {
	server *Server
}

func (s *Server) PackAsRTPStage() pipeline.TypedStage[[]byte, []byte] {
	return &packAsRTPStage{server: s}
}

func (p *packAsRTPStage) Process(ctx context.Context, in <-chan []byte) (<-chan []byte, error) {
	return p.server.packAsRTP(ctx, in)
}

func (s *Server) packAsRTP(ctx context.Context, in <-chan []byte) (chan []byte, error) {
	out := make(chan []byte, 20)
	packetizer := rtputils.NewOpusPacketizer(rtputils.DefaultOpusConfig())

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case data, ok := <-in:
				if !ok {
					return
				}

				packets, err := packetizer.Packetize(data, frameSize)
				if err != nil {
					log.Printf("Packetize error: %v", err)
					continue
				}
				for _, packet := range packets {
					select {
					case <-ctx.Done():
						return
					case out <- packet:
					}
				}
			}
		}
	}()
	return out, nil
}
