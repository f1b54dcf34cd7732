package frontend

import (
	"testing"

	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/audio"
	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/emu"
	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/output"
)

// recordingEngine captures posted MIDI for routing assertions.
type recordingEngine struct {
	posted [][]byte
}

func (e *recordingEngine) Step() {}

func (e *recordingEngine) PostMIDI(msg []byte) {
	e.posted = append(e.posted, msg)
}

func (e *recordingEngine) SetSampleCallback(fn emu.SampleFunc) {}

func (e *recordingEngine) OutputFrequency() int { return 44100 }

func routerApp(t *testing.T, n int) (*Application, []*recordingEngine) {
	t.Helper()
	a := &Application{}
	engines := make([]*recordingEngine, n)
	for i := range engines {
		engines[i] = &recordingEngine{}
		a.instances = append(a.instances, &Instance{engine: engines[i]})
	}
	return a, engines
}

func TestRouteMIDIChannelMessages(t *testing.T) {
	a, engines := routerApp(t, 3)

	// note-on per channel: channel mod instance count picks the target
	for ch := 0; ch < 16; ch++ {
		a.RouteMIDI([]byte{byte(0x90 | ch), 60, 100})
	}
	counts := []int{6, 5, 5} // channels 0,3,6,9,12,15 / 1,4,7,10,13 / 2,5,8,11,14
	for i, e := range engines {
		if len(e.posted) != counts[i] {
			t.Errorf("instance %d received %d messages, want %d", i, len(e.posted), counts[i])
		}
	}
}

func TestRouteMIDISysexBroadcasts(t *testing.T) {
	a, engines := routerApp(t, 3)

	sysex := []byte{0xF0, 0x41, 0x10, 0x42, 0xF7}
	a.RouteMIDI(sysex)
	for i, e := range engines {
		if len(e.posted) != 1 {
			t.Fatalf("instance %d received %d messages, want 1", i, len(e.posted))
		}
	}
}

func TestRouteMIDIDropsDataByteAndEmpty(t *testing.T) {
	a, engines := routerApp(t, 2)

	a.RouteMIDI(nil)
	a.RouteMIDI([]byte{0x45, 0x00})
	for i, e := range engines {
		if len(e.posted) != 0 {
			t.Fatalf("instance %d received %d messages, want none", i, len(e.posted))
		}
	}
}

func TestFixupBufferSize(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{512, 512},
		{1, 1},
		{500, 512},
		{300, 256},
		{384, 256}, // equidistant rounds down
		{1023, 1024},
	}
	for _, c := range cases {
		if got := FixupBufferSize(c.in); got != c.want {
			t.Errorf("FixupBufferSize(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestPickOutputDevice(t *testing.T) {
	dev, result := PickOutputDevice("")
	if result != pickDefaultDevice || dev.Kind != output.KindPush {
		t.Fatalf("empty selector: got %v result %d", dev, result)
	}

	dev, result = PickOutputDevice(output.PushDefaultName)
	if result != pickMatchedName || dev.Name != output.PushDefaultName {
		t.Fatalf("name selector: got %v result %d", dev, result)
	}

	dev, result = PickOutputDevice("0")
	if result != pickMatchedName {
		t.Fatalf("index selector: got %v result %d", dev, result)
	}

	dev, result = PickOutputDevice("no such device")
	if result != pickNoMatchingName || dev.Name != "no such device" {
		t.Fatalf("unknown selector: got %v result %d", dev, result)
	}
}

func TestInstanceChunkingAndBackpressure(t *testing.T) {
	engine := emu.NewTestTone(44100, 440)
	inst := newInstance(engine, audio.FormatS16, 1.0, 64, 2)

	if inst.pushBackpressured() {
		t.Fatal("fresh instance reports backpressure")
	}

	// the test tone emits 32 frames per step; 4 steps fill both chunks
	for i := 0; i < 4; i++ {
		if inst.pushBackpressured() {
			t.Fatalf("backpressure before step %d", i)
		}
		engine.Step()
	}
	if !inst.pushBackpressured() {
		t.Fatalf("no backpressure with %d bytes readable", inst.ring.ReadableBytes())
	}
	if inst.ring.ReadableBytes() != inst.maxRingBytes() {
		t.Fatalf("readable %d, want %d", inst.ring.ReadableBytes(), inst.maxRingBytes())
	}

	// draining a chunk releases the throttle
	buf := make([]byte, 64*4)
	inst.ring.Read(buf)
	if inst.pushBackpressured() {
		t.Fatal("backpressure after draining a chunk")
	}
}

func TestStartFailureCleansUp(t *testing.T) {
	// a MIDI port that can never bind fails Start before any device opens;
	// the failure must cancel the worker context so nothing leaks
	app, err := New(Config{MidiPort: "not-a-port"})
	if err != nil {
		t.Fatal(err)
	}
	if err := app.Start(); err == nil {
		app.Stop()
		t.Fatal("Start succeeded with an unusable MIDI port")
	}
	// ctx stays nil when driver init itself failed; otherwise the failed
	// Start must have cancelled it
	if app.ctx != nil && app.ctx.Err() == nil {
		t.Fatal("worker context still live after failed Start")
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(Config{Instances: 17}); err == nil {
		t.Error("instance count 17 accepted")
	}
	if _, err := New(Config{BufferCount: 1}); err == nil {
		t.Error("buffer count 1 accepted")
	}
	if _, err := New(Config{Format: "s24"}); err == nil {
		t.Error("format s24 accepted")
	}
	if _, err := New(Config{Gain: "-1"}); err == nil {
		t.Error("gain -1 accepted")
	}
}

func TestScaleSample(t *testing.T) {
	if got := scaleSample(1000, 1.0); got != 1000 {
		t.Errorf("unity gain changed sample: %d", got)
	}
	if got := scaleSample(1000, 0.5); got != 500 {
		t.Errorf("half gain: got %d, want 500", got)
	}
	if got := scaleSample(2000000000, 2.0); got != 2147483647 {
		t.Errorf("overflow not clamped: %d", got)
	}
	if got := scaleSample(-2000000000, 2.0); got != -2147483648 {
		t.Errorf("underflow not clamped: %d", got)
	}
}
