package frontend

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/audio"
	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/emu"
	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/output"
	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/ringbuffer"
	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/stream"
)

// Instance couples one engine with its output plumbing. The engine's sample
// callback fills the ring buffer chunk by chunk on the instance goroutine;
// who drains the ring depends on the backend. The push backend reads it on
// its own schedule, so the step loop throttles on ring occupancy. The pull
// backend and the network stream consume bridging streams instead; chunks
// are forwarded into those the moment they complete and the pull step loop
// throttles on the bridge.
type Instance struct {
	engine emu.Engine
	format audio.Format
	gain   float32

	ring      *ringbuffer.RingBuffer
	bridge    *stream.Stream // pull backend, nil otherwise
	netBridge *stream.Stream // network stream, nil when not streaming

	span     []byte
	spanOff  int
	chunkLen int

	bufferFrames int
	bufferCount  int

	running atomic.Bool
}

func newInstance(engine emu.Engine, format audio.Format, gain float32, bufferFrames, bufferCount int) *Instance {
	frameBytes := format.FrameBytes()
	inst := &Instance{
		engine:       engine,
		format:       format,
		gain:         gain,
		ring:         ringbuffer.New(bufferFrames*bufferCount*frameBytes, frameBytes),
		chunkLen:     bufferFrames * frameBytes,
		bufferFrames: bufferFrames,
		bufferCount:  bufferCount,
	}
	inst.span = inst.ring.PrepareWrite(bufferFrames)
	engine.SetSampleCallback(inst.receiveSample)
	return inst
}

func scaleSample(v int32, gain float32) int32 {
	if gain == 1.0 {
		return v
	}
	scaled := float64(v) * float64(gain)
	if scaled > math.MaxInt32 {
		return math.MaxInt32
	}
	if scaled < math.MinInt32 {
		return math.MinInt32
	}
	return int32(scaled)
}

// receiveSample runs on the instance goroutine inside engine.Step.
func (inst *Instance) receiveSample(f emu.Frame) {
	l := scaleSample(f.Left, inst.gain)
	r := scaleSample(f.Right, inst.gain)
	audio.Normalize(inst.format, l, r, inst.span[inst.spanOff:])
	inst.spanOff += inst.format.FrameBytes()

	if inst.spanOff < inst.chunkLen {
		return
	}

	chunk := inst.span[:inst.chunkLen]
	if inst.netBridge != nil {
		inst.netBridge.Put(chunk)
	}
	inst.ring.FinishWrite(inst.bufferFrames)
	if inst.bridge != nil {
		// the pull backend never touches the ring; drain the chunk into
		// the bridge immediately so the ring stays empty
		span := inst.ring.PrepareRead(inst.bufferFrames)
		inst.bridge.Put(span)
		inst.ring.FinishRead(inst.bufferFrames)
	}
	inst.span = inst.ring.PrepareWrite(inst.bufferFrames)
	inst.spanOff = 0
}

func (inst *Instance) maxRingBytes() int {
	return inst.bufferCount * inst.bufferFrames * inst.format.FrameBytes()
}

func (inst *Instance) pushBackpressured() bool {
	return inst.ring.ReadableBytes() >= inst.maxRingBytes()
}

// pullBackpressured recomputes the limit every call because a driver reset
// can change the buffer size. The byte count is measured on the converted
// side of the bridge, which is what the driver actually consumes.
func (inst *Instance) pullBackpressured() bool {
	maxBytes := inst.bufferCount * output.PullBufferSize() * inst.bridge.FrameBytes()
	return inst.bridge.Available() >= maxBytes
}

// runPush is the step loop for the push backend.
func (inst *Instance) runPush() {
	for inst.running.Load() {
		for inst.pushBackpressured() && inst.running.Load() {
			time.Sleep(time.Millisecond)
		}
		inst.engine.Step()
	}
}

// runPull is the step loop for the pull backend.
func (inst *Instance) runPull() {
	for inst.running.Load() {
		for inst.pullBackpressured() && inst.running.Load() {
			time.Sleep(time.Millisecond)
		}
		inst.engine.Step()
	}
}
