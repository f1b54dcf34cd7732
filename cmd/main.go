package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gordonklaus/portaudio"

	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/audio"
	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/emu"
	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/frontend"
	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/render"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the configuration file")
	list := flag.Bool("list", false, "list audio devices and exit")
	flag.Parse()

	fmt.Println("=== SC55 RENDER RUNNING ===")
	defer fmt.Println("=== SC55 RENDER STOPPED ===")

	if *list {
		if err := portaudio.Initialize(); err != nil {
			log.Printf("portaudio init: %v", err)
		}
		frontend.PrintAudioDevices()
		portaudio.Terminate()
		return
	}

	config, err := ReadConfigJSON(*configPath)
	if err != nil {
		log.Printf("Error reading configuration: %v", err)
		return
	}

	fmt.Printf("Configuration loaded:\n")
	fmt.Printf("Audio device: %v\n", config.AudioDevice)
	fmt.Printf("MIDI port: %v\n", config.MidiPort)
	fmt.Printf("Instances: %v\n", config.Instances)
	fmt.Printf("Buffer: %v x %v\n", config.BufferSize, config.BufferCount)

	if config.RenderPath != "" {
		if err := runRender(config); err != nil {
			log.Printf("Render failed: %v", err)
		}
		return
	}

	app, err := frontend.New(*config)
	if err != nil {
		log.Printf("Error creating application: %v", err)
		return
	}
	if err := app.Start(); err != nil {
		log.Printf("Error starting application: %v", err)
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	fmt.Println("Press Ctrl+C to stop")
	<-sigChan
	log.Println("Received interrupt signal")

	app.Stop()
}

func runRender(config *frontend.Config) error {
	formatName := config.Format
	if formatName == "" {
		formatName = "s16"
	}
	format, err := audio.ParseFormat(formatName)
	if err != nil {
		return err
	}
	gainSpec := config.Gain
	if gainSpec == "" {
		gainSpec = "1"
	}
	gain, err := audio.ParseGain(gainSpec)
	if err != nil {
		return fmt.Errorf("gain %q: %w", gainSpec, err)
	}

	instances := config.Instances
	if instances == 0 {
		instances = 1
	}
	rate := config.EngineRate
	if rate == 0 {
		rate = 44100
	}
	tone := config.ToneHz
	if tone == 0 {
		tone = 440
	}
	seconds := config.RenderSeconds
	if seconds == 0 {
		seconds = 10
	}

	r := render.New(format, gain)
	for i := 0; i < instances; i++ {
		r.AddEngine(emu.NewTestTone(rate, tone))
	}
	return r.Render(config.RenderPath, seconds)
}

func ReadConfigJSON(filename string) (*frontend.Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config frontend.Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%s file parsing error: %w", filename, err)
	}

	return &config, nil
}
