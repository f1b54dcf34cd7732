// Package netstream streams the mixed output of all instances to remote
// peers as opus over RTP/UDP. Instances feed it through bridging streams the
// same way they feed the pull audio backend; a ticker-driven mix stage turns
// those into fixed 20 ms frames and the rest of the pipeline encodes, packs
// and sends them.
package netstream

import (
	"context"
	"log"
	"sync"

	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/pipeline"
	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/stream"
)

const (
	sampleRate = 48000
	channels   = 2
	frameSize  = 960 // 20 ms at 48 kHz
	bitrate    = 96000

	// worst-case opus frame per RFC 6716
	maxOpusFrame = 1275
)

// Server owns the streaming pipeline for one set of destinations.
type Server struct {
	addrs []string
	port  string

	sources []*stream.Stream
}

func New(addrs []string, port string) *Server {
	return &Server{addrs: addrs, port: port}
}

// SampleRate reports the rate bridging streams must convert to.
func (s *Server) SampleRate() int { return sampleRate }

// BlockBytes reports the size of one 20 ms mix block on the converted side.
func (s *Server) BlockBytes() int { return frameSize * channels * 2 }

// AddSource registers an instance's bridging stream. The stream must produce
// 16-bit frames at the streaming rate. Call before Start.
func (s *Server) AddSource(src *stream.Stream) {
	s.sources = append(s.sources, src)
}

// Start spins up the mix/encode/pack/send pipeline and returns. The pipeline
// unwinds when ctx is cancelled; wg is released once the final stage exits.
func (s *Server) Start(ctx context.Context, wg *sync.WaitGroup) error {
	log.Printf("Streaming to %v port %s (opus %d Hz, %d ms frames)",
		s.addrs, s.port, sampleRate, 1000*frameSize/sampleRate)

	pipeline.New(ctx).
		AddStage(pipeline.Adapt[any, []int16](s.MixStage())).
		AddStage(pipeline.Adapt[[]int16, []byte](s.EncodeOpusStage())).
		AddStage(pipeline.Adapt[[]byte, []byte](s.PackAsRTPStage())).
		AddStage(pipeline.Adapt[[]byte, any](s.SendUDPStage(wg))).
		Run()
	return nil
}
