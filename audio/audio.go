package audio

import (
	"errors"
	"strings"
)

// Fixed capture format: 16 kHz mono signed 16-bit little-endian PCM.
// Both recognition engines and the VAD consume this format directly.
const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BytesPerMs    = SampleRate * Channels * (BitsPerSample / 8) / 1000
)

// ErrDeviceUnavailable is returned when no capture device is present. It is
// checked before a recording session is created, not on first callback.
var ErrDeviceUnavailable = errors.New("no audio capture device available")

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// DataCallback receives one captured frame. It runs on the driver's capture
// thread and must not block for longer than one frame period; the data slice
// is owned by the driver and must be copied before being retained.
type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}
