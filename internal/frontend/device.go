package frontend

import (
	"fmt"
	"log"
	"math/bits"
	"strconv"

	"github.com/molinan2/Nuked-SC55-Render-Mac/internal/output"
)

type pickResult int

const (
	pickMatchedName pickResult = iota
	pickDefaultDevice
	pickNoOutputDevices
	pickNoMatchingName
)

// PickOutputDevice resolves the configured device string: empty means the
// default push device, otherwise an exact name, otherwise an index into the
// device listing. An unknown name is passed through to the push backend
// anyway since enumeration can miss devices the subsystem can still open.
func PickOutputDevice(preferred string) (output.Output, pickResult) {
	outputs := output.QueryOutputs()

	if len(outputs) == 0 {
		return output.Output{Name: output.PushDefaultName, Kind: output.KindPush}, pickNoOutputDevices
	}
	if preferred == "" {
		return output.Output{Name: output.PushDefaultName, Kind: output.KindPush}, pickDefaultDevice
	}
	for _, o := range outputs {
		if o.Name == preferred {
			return o, pickMatchedName
		}
	}
	if id, err := strconv.Atoi(preferred); err == nil && id >= 0 && id < len(outputs) {
		return outputs[id], pickMatchedName
	}
	return output.Output{Name: preferred, Kind: output.KindPush}, pickNoMatchingName
}

// FixupBufferSize rounds a non-power-of-two buffer size to the closer
// neighboring power of two.
func FixupBufferSize(frames int) int {
	if frames < 1 {
		frames = 1
	}
	if frames&(frames-1) == 0 {
		return frames
	}
	high := 1 << bits.Len(uint(frames))
	low := high >> 1
	closer := low
	if high-frames < frames-low {
		closer = high
	}
	log.Printf("WARNING: Audio buffer size must be a power-of-two; got %d", frames)
	log.Printf("         The next valid values are %d and %d", low, high)
	log.Printf("         Continuing with the closer value %d", closer)
	return closer
}

// PrintAudioDevices writes the device listing for -list.
func PrintAudioDevices() {
	outputs := output.QueryOutputs()
	fmt.Printf("Known audio devices:\n")
	for i, o := range outputs {
		fmt.Printf("  %d: %s [%s]\n", i, o.Name, o.Kind)
		if o.Kind != output.KindPull {
			continue
		}
		channels, err := output.PullQueryChannels(o.Name)
		if err != nil {
			fmt.Printf("     (failed to query channels: %v)\n", err)
			continue
		}
		for _, c := range channels {
			fmt.Printf("     channel %d: %s\n", c.ID, c.Name)
		}
	}
}
