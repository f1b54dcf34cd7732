package output

import (
	"fmt"
	"log"
	"strconv"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/audio"
	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/stream"
)

// max number of supported driver output channels
const maxChannels = 32

// pullOutput is the process-wide pull backend state. The underlying driver
// API is process-global and its callbacks carry no user context, so the state
// is modeled as one explicit object with a Create/Destroy lifecycle instead
// of being spread across callers.
type pullOutput struct {
	dev    *portaudio.DeviceInfo
	stream *portaudio.Stream

	format audio.Format

	// read by instance step loops while a reset re-runs PullCreate on the
	// event-loop goroutine
	frequency    atomic.Int64
	bufferFrames atomic.Int64

	channels    []Channel
	left, right int

	sources []*stream.Stream

	// interleaved staging buffers; accum receives the first stream and the
	// running sum, staging holds each further stream before mixing
	accum   []byte
	staging []byte

	resetRequested atomic.Bool

	createName   string
	createParams PullParameters
}

var pull pullOutput

// PullQueryOutputs lists every portaudio device with output channels.
func PullQueryOutputs() ([]Output, error) {
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	var outputs []Output
	for _, d := range devs {
		if d.MaxOutputChannels == 0 {
			continue
		}
		outputs = append(outputs, Output{Name: d.Name, Kind: KindPull})
	}
	return outputs, nil
}

func pullFindDevice(name string) (*portaudio.DeviceInfo, error) {
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, d := range devs {
		if d.MaxOutputChannels > 0 && d.Name == name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("no output device named %q", name)
}

func channelList(dev *portaudio.DeviceInfo, format audio.Format) []Channel {
	n := dev.MaxOutputChannels
	if n > maxChannels {
		log.Printf("WARNING: more than %d output channels; truncating to %d", maxChannels, maxChannels)
		n = maxChannels
	}
	channels := make([]Channel, n)
	for i := range channels {
		channels[i] = Channel{
			ID:     i,
			Name:   fmt.Sprintf("%s out %d", dev.Name, i),
			Format: format,
		}
	}
	return channels
}

// PullQueryChannels reports the output channels of a pull device.
func PullQueryChannels(deviceName string) ([]Channel, error) {
	dev, err := pullFindDevice(deviceName)
	if err != nil {
		return nil, err
	}
	return channelList(dev, audio.FormatF32), nil
}

// pickChannel resolves a selector against the channel list: exact name
// first, then a numeric index.
func pickChannel(channels []Channel, selector string) (int, bool) {
	for _, c := range channels {
		if c.Name == selector {
			return c.ID, true
		}
	}
	if id, err := strconv.Atoi(selector); err == nil && id >= 0 && id < len(channels) {
		return id, true
	}
	return 0, false
}

// PullCreate opens the named driver with the requested parameters. The
// driver decides the buffer cadence; left/right channel selectors are
// resolved once here and must name distinct channels with identical sample
// encodings.
func PullCreate(deviceName string, params PullParameters) error {
	dev, err := pullFindDevice(deviceName)
	if err != nil {
		return err
	}

	frequency := params.Common.Frequency
	if frequency == 0 {
		frequency = int(dev.DefaultSampleRate)
	}

	channels := channelList(dev, params.Common.Format)
	if len(channels) < 2 {
		return fmt.Errorf("device %q has %d output channels; 2 required", deviceName, len(channels))
	}

	left, ok := pickChannel(channels, params.LeftChannel)
	if !ok {
		log.Printf("L channel defaulting to 0")
		left = 0
	}
	right, ok := pickChannel(channels, params.RightChannel)
	if !ok {
		log.Printf("R channel defaulting to 1")
		right = 1
	}

	log.Printf("Pull output channels:")
	for _, c := range channels {
		suffix := ""
		if c.ID == left {
			suffix = " (left)"
		} else if c.ID == right {
			suffix = " (right)"
		}
		log.Printf("  %d: %-32s %s%s", c.ID, c.Name, c.Format, suffix)
	}

	if left == right {
		return fmt.Errorf("left and right channels are both %d", left)
	}
	if channels[left].Format != channels[right].Format {
		return fmt.Errorf("left and right channels %d and %d have different encodings", left, right)
	}

	bufferBytes := params.Common.BufferFrames * params.Common.Format.FrameBytes()

	// field-wise so registered sources survive a reset cycle
	pull.dev = dev
	pull.format = params.Common.Format
	pull.frequency.Store(int64(frequency))
	pull.bufferFrames.Store(int64(params.Common.BufferFrames))
	pull.channels = channels
	pull.left = left
	pull.right = right
	pull.accum = make([]byte, bufferBytes)
	pull.staging = make([]byte, bufferBytes)
	pull.createName = deviceName
	pull.createParams = params

	sp := portaudio.LowLatencyParameters(nil, dev)
	sp.Output.Channels = len(channels)
	sp.SampleRate = float64(frequency)
	sp.FramesPerBuffer = params.Common.BufferFrames

	switch pull.format {
	case audio.FormatS16:
		pull.stream, err = portaudio.OpenStream(sp, pullCallbackS16)
	case audio.FormatS32:
		pull.stream, err = portaudio.OpenStream(sp, pullCallbackS32)
	case audio.FormatF32:
		pull.stream, err = portaudio.OpenStream(sp, pullCallbackF32)
	}
	if err != nil {
		return fmt.Errorf("open pull stream: %w", err)
	}

	log.Printf("Pull output: %s, %d Hz, format %s, buffer %d frames",
		dev.Name, frequency, pull.format, params.Common.BufferFrames)
	return nil
}

// PullAddSource registers an instance's bridging stream. The stream must
// already convert to the backend's format and frequency.
func PullAddSource(s *stream.Stream) {
	if len(pull.sources) == maxSources {
		log.Fatalf("attempted to add more than %d pull streams", maxSources)
	}
	pull.sources = append(pull.sources, s)
}

func PullStart() error {
	if pull.stream == nil {
		return fmt.Errorf("pull backend not created")
	}
	if err := pull.stream.Start(); err != nil {
		return fmt.Errorf("start pull stream: %w", err)
	}
	return nil
}

func PullStop() {
	if pull.stream != nil {
		if err := pull.stream.Stop(); err != nil {
			log.Printf("Failed to stop pull stream: %v", err)
		}
	}
}

// PullDestroy stops and closes the stream. Registered sources are kept so a
// reset cycle can re-create the stream without re-registering.
func PullDestroy() {
	PullStop()
	if pull.stream != nil {
		if err := pull.stream.Close(); err != nil {
			log.Printf("Failed to close pull stream: %v", err)
		}
		pull.stream = nil
	}
}

// PullFrequency reports the rate the driver is actually running at.
func PullFrequency() int { return int(pull.frequency.Load()) }

// PullFormat reports the negotiated sample encoding.
func PullFormat() audio.Format { return pull.format }

// PullBufferSize reports the driver buffer size in frames. Safe to call
// from the step loops while a reset runs.
func PullBufferSize() int { return int(pull.bufferFrames.Load()) }

// PullRequestReset flags a driver-initiated parameter change. Nothing is
// acted on here; the application's event loop observes the flag and runs the
// stop/destroy/recreate/start cycle outside any real-time context.
func PullRequestReset() { pull.resetRequested.Store(true) }

// PullIsResetRequested reports whether a reset is pending.
func PullIsResetRequested() bool { return pull.resetRequested.Load() }

// PullReset tears the backend down and brings it back up with the original
// creation parameters.
func PullReset() error {
	pull.resetRequested.Store(false)
	name, params := pull.createName, pull.createParams
	PullDestroy()
	if err := PullCreate(name, params); err != nil {
		return fmt.Errorf("pull reset: %w", err)
	}
	if err := PullStart(); err != nil {
		return fmt.Errorf("pull reset: %w", err)
	}
	return nil
}

// renderMix gathers one driver buffer's worth of frames from every source
// into accum. Returns false, without advancing any stream, when a source
// has less than a full buffer available or no sources are registered;
// the callback then emits silence. Never blocks.
func renderMix(sources []*stream.Stream, format audio.Format, frames int, accum, staging []byte) bool {
	if len(sources) == 0 {
		return false
	}
	frameBytes := format.FrameBytes()
	renderable := frames
	for _, s := range sources {
		if avail := s.Available() / frameBytes; avail < renderable {
			renderable = avail
		}
	}
	if renderable < frames {
		return false
	}

	need := frames * frameBytes
	sources[0].Get(accum[:need])
	for _, s := range sources[1:] {
		s.Get(staging[:need])
		audio.MixBytes(format, accum[:need], staging[:need])
	}
	return true
}

// renderableFrames bounds a driver buffer to what the staging buffers were
// allocated for; a host delivering more than the configured FramesPerBuffer
// must not push the mix past them.
func renderableFrames(driverFrames int) int {
	if max := int(pull.bufferFrames.Load()); driverFrames > max {
		return max
	}
	return driverFrames
}

func pullCallbackS16(out [][]int16) {
	for _, ch := range out {
		clear(ch)
	}
	frames := renderableFrames(len(out[0]))
	if !renderMix(pull.sources, pull.format, frames, pull.accum, pull.staging) {
		return
	}
	audio.DeinterleaveS16(out[pull.left][:frames], out[pull.right][:frames], pull.accum)
}

func pullCallbackS32(out [][]int32) {
	for _, ch := range out {
		clear(ch)
	}
	frames := renderableFrames(len(out[0]))
	if !renderMix(pull.sources, pull.format, frames, pull.accum, pull.staging) {
		return
	}
	audio.DeinterleaveS32(out[pull.left][:frames], out[pull.right][:frames], pull.accum)
}

func pullCallbackF32(out [][]float32) {
	for _, ch := range out {
		clear(ch)
	}
	frames := renderableFrames(len(out[0]))
	if !renderMix(pull.sources, pull.format, frames, pull.accum, pull.staging) {
		return
	}
	audio.DeinterleaveF32(out[pull.left][:frames], out[pull.right][:frames], pull.accum)
}
