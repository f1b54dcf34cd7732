// Package emu defines the contract between the transport layer and a
// synthesizer core. The core itself is an external collaborator: the frontend
// only steps it and receives canonical frames through the sample callback.
package emu

// Frame is the canonical wide-integer stereo frame every engine produces,
// regardless of the output encoding an instance later normalizes to.
// Samples occupy the full int32 range.
type Frame struct {
	Left  int32
	Right int32
}

// SampleFunc receives one canonical frame per internally generated sample.
// It runs on the instance's step thread and must complete in bounded time
// without blocking.
type SampleFunc func(Frame)

// Engine is one synthesizer core. Implementations are not safe for concurrent
// use; each engine is driven by exactly one instance thread. PostMIDI is the
// exception: engines must accept it from the MIDI routing context while Step
// runs elsewhere.
type Engine interface {
	// Step advances emulation by one unit of work, invoking the sample
	// callback zero or more times.
	Step()

	// PostMIDI queues one complete MIDI message for the core.
	PostMIDI(msg []byte)

	// SetSampleCallback registers fn before the first Step.
	SetSampleCallback(fn SampleFunc)

	// OutputFrequency reports the engine's native sample rate in Hz.
	OutputFrequency() int
}
