// Package frontend owns the application lifecycle: instance creation, audio
// device selection, MIDI routing and the shutdown sequence.
package frontend

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/audio"
	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/emu"
	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/netstream"
	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/output"
	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/stream"
)

const maxInstances = 16

// netBridgeDepth is how many 20 ms mix blocks the network stream bridge can
// hold before Put starts dropping; it only backstops encoder stalls.
const netBridgeDepth = 8

// Config is the application configuration as read from config.json.
type Config struct {
	AudioDevice    string   `json:"audioDevice"`
	MidiPort       string   `json:"midiPort"`
	Instances      int      `json:"instances"`
	BufferSize     int      `json:"bufferSize"`
	BufferCount    int      `json:"bufferCount"`
	Format         string   `json:"format"`
	Gain           string   `json:"gain"`
	PullSampleRate int      `json:"pullSampleRate"`
	LeftChannel    string   `json:"leftChannel"`
	RightChannel   string   `json:"rightChannel"`
	StreamTo       []string `json:"streamTo"`
	StreamPort     string   `json:"streamPort"`
	EngineRate     int      `json:"engineRate"`
	ToneHz         float64  `json:"toneHz"`

	// offline mode: when RenderPath is set no audio device is opened and
	// RenderSeconds of mixed output go to a WAV file instead
	RenderPath    string  `json:"renderPath"`
	RenderSeconds float64 `json:"renderSeconds"`
}

type Application struct {
	cfg    Config
	format audio.Format
	gain   float32

	bufferFrames int
	bufferCount  int

	instances []*Instance
	device    output.Output
	net       *netstream.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup // listeners, event loop, stream sender
	instWG sync.WaitGroup // instance step loops
}

func New(cfg Config) (*Application, error) {
	if cfg.Instances == 0 {
		cfg.Instances = 1
	}
	if cfg.Instances < 1 || cfg.Instances > maxInstances {
		return nil, fmt.Errorf("instance count %d out of range [1, %d]", cfg.Instances, maxInstances)
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 512
	}
	if cfg.BufferCount == 0 {
		cfg.BufferCount = 16
	}
	if cfg.BufferCount < 2 {
		// the ring must always have room for the chunk being written on
		// top of the backpressure threshold
		return nil, fmt.Errorf("buffer count %d too small; need at least 2", cfg.BufferCount)
	}
	if cfg.Format == "" {
		cfg.Format = "s16"
	}
	if cfg.Gain == "" {
		cfg.Gain = "1"
	}
	if cfg.EngineRate == 0 {
		cfg.EngineRate = 44100
	}
	if cfg.ToneHz == 0 {
		cfg.ToneHz = 440
	}
	if cfg.StreamPort == "" {
		cfg.StreamPort = "5004"
	}

	format, err := audio.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	gain, err := audio.ParseGain(cfg.Gain)
	if err != nil {
		return nil, fmt.Errorf("gain %q: %w", cfg.Gain, err)
	}

	a := &Application{
		cfg:          cfg,
		format:       format,
		gain:         gain,
		bufferFrames: FixupBufferSize(cfg.BufferSize),
		bufferCount:  cfg.BufferCount,
	}
	for i := 0; i < cfg.Instances; i++ {
		engine := emu.NewTestTone(cfg.EngineRate, cfg.ToneHz)
		a.instances = append(a.instances, newInstance(engine, format, gain, a.bufferFrames, a.bufferCount))
	}
	return a, nil
}

// Start brings up MIDI, audio and streaming, then launches the instance
// step loops. On return the application is running.
func (a *Application) Start() (err error) {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	// every failure from here on unwinds the same way: backend torn down,
	// workers cancelled, portaudio released
	defer func() {
		if err != nil {
			switch a.device.Kind {
			case output.KindPull:
				output.PullDestroy()
			default:
				output.PushDestroy()
			}
			a.cancel()
			portaudio.Terminate()
		}
	}()

	if a.cfg.MidiPort != "" {
		if err = a.listenMIDI(a.ctx, a.cfg.MidiPort, &a.wg); err != nil {
			return err
		}
	}

	if err = a.openAudio(); err != nil {
		return err
	}

	if len(a.cfg.StreamTo) > 0 {
		a.net = netstream.New(a.cfg.StreamTo, a.cfg.StreamPort)
		for _, inst := range a.instances {
			inst.netBridge = stream.New(a.format, a.cfg.EngineRate,
				audio.FormatS16, a.net.SampleRate(), a.bufferFrames,
				netBridgeDepth*a.net.BlockBytes())
			a.net.AddSource(inst.netBridge)
		}
		if err = a.net.Start(a.ctx, &a.wg); err != nil {
			return err
		}
	}

	switch a.device.Kind {
	case output.KindPush:
		if err = output.PushStart(); err != nil {
			return err
		}
	case output.KindPull:
		if err = output.PullStart(); err != nil {
			return err
		}
		a.wg.Add(1)
		go a.eventLoop()
	}

	for _, inst := range a.instances {
		inst.running.Store(true)
		a.instWG.Add(1)
		go func(inst *Instance) {
			defer a.instWG.Done()
			if a.device.Kind == output.KindPull {
				inst.runPull()
			} else {
				inst.runPush()
			}
		}(inst)
	}
	return nil
}

// Stop unwinds in reverse: step loops first so nothing produces into a dead
// backend, then the backend, then the network and MIDI goroutines.
func (a *Application) Stop() {
	log.Println("Shutting down...")
	for _, inst := range a.instances {
		inst.running.Store(false)
	}
	a.instWG.Wait()

	switch a.device.Kind {
	case output.KindPush:
		output.PushDestroy()
	case output.KindPull:
		output.PullDestroy()
	}

	a.cancel()
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Println("All workers stopped gracefully")
	case <-time.After(5 * time.Second):
		log.Println("Warning: some workers didn't stop in time")
	}

	portaudio.Terminate()
}

func (a *Application) openAudio() error {
	device, result := PickOutputDevice(a.cfg.AudioDevice)
	a.device = device

	switch result {
	case pickMatchedName, pickDefaultDevice:
	case pickNoOutputDevices:
		log.Println("No output devices found; attempting to open default device")
	case pickNoMatchingName:
		log.Printf("No output device named %q; attempting to open it anyways...", a.cfg.AudioDevice)
	}

	params := output.Parameters{
		Frequency:    a.instances[0].engine.OutputFrequency(),
		Format:       a.format,
		BufferFrames: a.bufferFrames,
		BufferCount:  a.bufferCount,
	}

	switch device.Kind {
	case output.KindPush:
		if err := output.PushCreate(device.Name, params); err != nil {
			return err
		}
		for _, inst := range a.instances {
			output.PushAddSource(inst.ring, inst.format, inst.bufferFrames)
		}
	case output.KindPull:
		params.Frequency = a.cfg.PullSampleRate // 0 picks the device default
		pp := output.PullParameters{
			Common:       params,
			LeftChannel:  a.cfg.LeftChannel,
			RightChannel: a.cfg.RightChannel,
		}
		if err := output.PullCreate(device.Name, pp); err != nil {
			return err
		}
		// the bridge ring must be able to hold the full backpressure
		// threshold, which is measured in converted driver-side bytes;
		// sizing it from source-frame geometry leaves the throttle
		// unreachable whenever the engine rate exceeds the driver rate
		thresholdBytes := a.bufferCount * output.PullBufferSize() * output.PullFormat().FrameBytes()
		for _, inst := range a.instances {
			inst.bridge = stream.New(a.format, inst.engine.OutputFrequency(),
				output.PullFormat(), output.PullFrequency(), a.bufferFrames, thresholdBytes)
			output.PullAddSource(inst.bridge)
		}
	}

	log.Printf("Audio device: %s", device.Name)
	return nil
}

// eventLoop services driver requests that must run outside the callback,
// currently just pull backend resets.
func (a *Application) eventLoop() {
	defer a.wg.Done()
	ticker := time.NewTicker(15 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			if output.PullIsResetRequested() {
				log.Println("Pull driver requested a reset")
				if err := output.PullReset(); err != nil {
					log.Printf("Reset failed: %v", err)
				}
			}
		}
	}
}
