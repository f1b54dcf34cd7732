package netstream

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/pipeline"
)

type sendUDPStage struct {
	server *Server
	wg     *sync.WaitGroup
}

func (s *Server) SendUDPStage(wg *sync.WaitGroup) pipeline.TypedStage[[]byte, any] {
	return &sendUDPStage{server: s, wg: wg}
}

func (u *sendUDPStage) Process(ctx context.Context, in <-chan []byte) (<-chan any, error) {
	return u.server.sendUDP(ctx, in, u.wg)
}

// sendUDP fans each packet out to every destination. It is the terminal
// stage; the WaitGroup is released when the input drains or the context is
// cancelled.
func (s *Server) sendUDP(ctx context.Context, in <-chan []byte, wg *sync.WaitGroup) (<-chan any, error) {
	var conns []net.Conn
	for _, addr := range s.addrs {
		conn, err := net.Dial("udp", net.JoinHostPort(addr, s.port))
		if err != nil {
			for _, c := range conns {
				c.Close()
			}
			return nil, fmt.Errorf("UDP dial to %s: %w", addr, err)
		}
		conns = append(conns, conn)
	}

	wg.Add(1)
	go func() {
		defer func() {
			for _, conn := range conns {
				conn.Close()
			}
			wg.Done()
			log.Println("Stream sender stopped")
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case packet, ok := <-in:
				if !ok {
					return
				}
				for _, conn := range conns {
					if _, err := conn.Write(packet); err != nil {
						log.Printf("Write packet error: %v", err)
					}
				}
			}
		}
	}()
	return nil, nil
}
