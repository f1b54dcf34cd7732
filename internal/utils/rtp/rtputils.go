// Package rtputils packs opus frames into RTP packets for the network
// stream output.
package rtputils

import (
	"fmt"
	"time"

	"github.com/pion/rtp"
)

const rtpHeaderSize = 12

// Config carries the RTP session parameters. PayloadType 96 is the first
// dynamic type; ClockRate matches the opus encoder rate.
type Config struct {
	PayloadType uint8
	SSRC        uint32
	ClockRate   uint32
	Mtu         uint16
}

func DefaultOpusConfig() Config {
	return Config{
		PayloadType: 96,
		ClockRate:   48000,
		SSRC:        generateSSRC(),
		Mtu:         1200,
	}
}

func generateSSRC() uint32 {
	return uint32(time.Now().UnixNano() & 0xFFFFFFFF)
}

// OpusPayloader splits an opus frame across packets when it exceeds the MTU.
// Encoded frames at streaming bitrates fit in one packet; the split path is
// there for outsized frames rather than a real fragmentation scheme.
type OpusPayloader struct{}

func (p *OpusPayloader) Payload(mtu uint16, payload []byte) [][]byte {
	if len(payload) == 0 {
		return [][]byte{}
	}
	maxPayload := int(mtu) - rtpHeaderSize
	if len(payload) <= maxPayload {
		return [][]byte{payload}
	}
	var payloads [][]byte
	for len(payload) > maxPayload {
		payloads = append(payloads, payload[:maxPayload])
		payload = payload[maxPayload:]
	}
	if len(payload) > 0 {
		payloads = append(payloads, payload)
	}
	return payloads
}

// Packetizer wraps pion's packetizer with opus defaults and marshals the
// resulting packets to wire bytes.
type Packetizer struct {
	packetizer rtp.Packetizer
}

func NewOpusPacketizer(config Config) *Packetizer {
	return &Packetizer{
		packetizer: rtp.NewPacketizer(
			config.Mtu,
			config.PayloadType,
			config.SSRC,
			&OpusPayloader{},
			rtp.NewRandomSequencer(),
			config.ClockRate,
		),
	}
}

// Packetize wraps one encoded opus frame covering the given number of
// samples and returns the marshalled packets.
func (p *Packetizer) Packetize(opusData []byte, samples int) ([][]byte, error) {
	if len(opusData) == 0 {
		return nil, fmt.Errorf("opus data is empty")
	}

	packets := p.packetizer.Packetize(opusData, uint32(samples))
	result := make([][]byte, 0, len(packets))
	for _, packet := range packets {
		data, err := packet.Marshal()
		if err != nil {
			return nil, fmt.Errorf("failed to marshal RTP packet: %w", err)
		}
		result = append(result, data)
	}
	return result, nil
}
