// Package output provides the two audio backends behind one lifecycle:
// Create, Start, Stop, Destroy, plus a backend-specific AddSource.
//
// The push backend (oto) pulls frames out of each instance's ring buffer on
// the subsystem's own schedule and mixes the players internally. The pull
// backend (portaudio) hands the application hard-deadline callbacks in which
// all instance bridge streams are summed and deinterleaved into the driver's
// per-channel buffers.
//
// Both backends keep process-wide state. The portaudio library itself is
// process-global, so the pull backend mirrors that explicitly: its state
// object lives here, is initialized by Create and torn down by Destroy, and
// nothing outside this package reads it. The frontend owns the
// portaudio.Initialize/Terminate bracket.
package output

import (
	"log"

	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/audio"
)

// Kind discriminates the concrete backends in device listings.
type Kind int

const (
	KindPush Kind = iota
	KindPull
)

func (k Kind) String() string {
	switch k {
	case KindPush:
		return "oto"
	case KindPull:
		return "portaudio"
	}
	return "unknown"
}

// Output is one selectable audio destination.
type Output struct {
	Name string
	Kind Kind
}

// Parameters are common to both backends. Frequency is the rate the backend
// should run at, Format the encoding, BufferFrames the chunk size in frames
// (a power of two) and BufferCount the number of chunks each instance ring
// holds.
type Parameters struct {
	Frequency    int
	Format       audio.Format
	BufferFrames int
	BufferCount  int
}

// Channel is one output channel a pull-model driver reports.
type Channel struct {
	ID     int
	Name   string
	Format audio.Format
}

// PullParameters extend Parameters with the left/right channel selectors,
// each an exact channel name or a numeric index.
type PullParameters struct {
	Common       Parameters
	LeftChannel  string
	RightChannel string
}

// QueryOutputs enumerates every output both backends report. A failing
// backend enumeration is logged and contributes zero devices; callers fall
// back to the default device in that case.
func QueryOutputs() []Output {
	outputs := []Output{{Name: PushDefaultName, Kind: KindPush}}

	pullDevs, err := PullQueryOutputs()
	if err != nil {
		log.Printf("Failed to query portaudio outputs: %v", err)
		return outputs
	}
	return append(outputs, pullDevs...)
}
