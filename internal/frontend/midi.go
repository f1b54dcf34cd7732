package frontend

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"
)

const (
	maxMIDIDatagram = 1024
	midiReadTimeout = 70 * time.Millisecond
)

// SendMIDI posts a message to one instance.
func (a *Application) SendMIDI(n int, msg []byte) {
	a.instances[n].engine.PostMIDI(msg)
}

// BroadcastMIDI posts a message to every instance.
func (a *Application) BroadcastMIDI(msg []byte) {
	for i := range a.instances {
		a.SendMIDI(i, msg)
	}
}

// RouteMIDI dispatches one message. Sysex goes to every instance; channel
// messages go to instance (channel mod instance count); a stray data byte is
// reported and dropped.
func (a *Application) RouteMIDI(msg []byte) {
	if len(msg) == 0 {
		return
	}
	first := msg[0]
	if first < 0x80 {
		log.Printf("RouteMIDI received data byte %02x", first)
		return
	}
	if first == 0xF0 {
		a.BroadcastMIDI(msg)
		return
	}
	channel := int(first & 0x0F)
	a.SendMIDI(channel%len(a.instances), msg)
}

// listenMIDI receives MIDI messages as UDP datagrams, one message per
// datagram, and routes each as it arrives.
func (a *Application) listenMIDI(ctx context.Context, port string, wg *sync.WaitGroup) error {
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	lc := net.ListenConfig{}
	pc, err := lc.ListenPacket(ctx, "udp", port)
	if err != nil {
		return fmt.Errorf("failed to listen for MIDI: %w", err)
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return fmt.Errorf("invalid connection type")
	}
	log.Printf("Listening for MIDI on UDP %s", port)

	wg.Add(1)
	go func() {
		defer func() {
			conn.Close()
			wg.Done()
			log.Println("MIDI listener stopped")
		}()

		buffer := make([]byte, maxMIDIDatagram)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			conn.SetReadDeadline(time.Now().Add(midiReadTimeout))
			n, _, err := conn.ReadFromUDP(buffer)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				log.Printf("MIDI read error: %v", err)
				continue
			}

			msg := make([]byte, n)
			copy(msg, buffer[:n])
			a.RouteMIDI(msg)
		}
	}()
	return nil
}
