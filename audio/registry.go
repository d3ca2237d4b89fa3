package audio

import (
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"
)

// excludedOutputNames are output-device name fragments that cannot serve as
// a system-audio loopback source (e.g. built-in speakers have no capture
// side on most hosts, and some wireless headsets expose an output device
// whose loopback monitor is silent).
var excludedOutputNames = []string{
	"built-in",
	"internal speakers",
}

// Registry enumerates malgo capture/playback devices and resolves named
// devices to handles. One Registry is created per process and shared with
// the Audio Stream layer.
type Registry struct {
	ctx *malgo.AllocatedContext
}

func NewRegistry() (*Registry, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	return &Registry{ctx: ctx}, nil
}

// Context exposes the underlying malgo context so a Stream opened against
// a device this registry resolved can share it.
func (r *Registry) Context() *malgo.AllocatedContext {
	return r.ctx
}

func (r *Registry) Close() {
	if r.ctx != nil {
		r.ctx.Uninit()
		r.ctx.Free()
	}
}

// ListDevices returns every input device plus every output device that
// survives the exclusion rules, since on this host's malgo backend
// loopback-capable outputs are what the platform contract calls
// "system-audio devices obtained from the default audio host's
// output-device list" (§4.1). Enumeration failures return an empty slice
// rather than an error.
func (r *Registry) ListDevices() []AudioDevice {
	var devices []AudioDevice

	captures, err := r.ctx.Devices(malgo.Capture)
	if err == nil {
		for _, d := range captures {
			devices = append(devices, AudioDevice{Name: d.Name(), Kind: Input})
		}
	}

	playbacks, err := r.ctx.Devices(malgo.Playback)
	if err == nil {
		for _, d := range playbacks {
			name := d.Name()
			if isExcludedOutput(name) {
				continue
			}
			devices = append(devices, AudioDevice{Name: name, Kind: Output})
		}
	}

	return devices
}

func isExcludedOutput(name string) bool {
	lower := strings.ToLower(name)
	for _, frag := range excludedOutputNames {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// DefaultMicrophone returns the host's default capture device.
func (r *Registry) DefaultMicrophone() (AudioDevice, error) {
	captures, err := r.ctx.Devices(malgo.Capture)
	if err != nil || len(captures) == 0 {
		return AudioDevice{}, &AudioError{Kind: ErrNoDefaultDevice, Message: "no default microphone"}
	}
	for _, d := range captures {
		if d.IsDefault != 0 {
			return AudioDevice{Name: d.Name(), Kind: Input}, nil
		}
	}
	return AudioDevice{Name: captures[0].Name(), Kind: Input}, nil
}

// DefaultSystemAudio returns the host's default loopback-capable output
// device, or NoDefaultDevice if none survive the exclusion rules.
func (r *Registry) DefaultSystemAudio() (AudioDevice, error) {
	playbacks, err := r.ctx.Devices(malgo.Playback)
	if err != nil {
		return AudioDevice{}, &AudioError{Kind: ErrNoDefaultDevice, Message: "no default system audio device", Err: err}
	}
	var fallback *malgo.DeviceInfo
	for i := range playbacks {
		d := &playbacks[i]
		if isExcludedOutput(d.Name()) {
			continue
		}
		if fallback == nil {
			fallback = d
		}
		if d.IsDefault != 0 {
			return AudioDevice{Name: d.Name(), Kind: Output}, nil
		}
	}
	if fallback != nil {
		return AudioDevice{Name: fallback.Name(), Kind: Output}, nil
	}
	return AudioDevice{}, &AudioError{Kind: ErrNoDefaultDevice, Message: "no default system audio device"}
}

// FindDeviceID resolves a device by (partial, case-insensitive) name match
// within the given malgo device type.
func (r *Registry) FindDeviceID(name string, deviceType malgo.DeviceType) (*malgo.DeviceID, error) {
	devices, err := r.ctx.Devices(deviceType)
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(name)
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.Name()), lower) {
			id := d.ID
			return &id, nil
		}
	}
	return nil, fmt.Errorf("device not found: %s", name)
}

// Open resolves a device to its malgo handle and the StreamConfig it will
// be opened with. Microphone streams open mono; system-audio streams open
// stereo (downmixed to mono in the stream callback).
func (r *Registry) Open(device AudioDevice, deviceType DeviceType) (*malgo.DeviceID, StreamConfig, error) {
	var malgoType malgo.DeviceType = malgo.Capture
	id, err := r.FindDeviceID(device.Name, malgoType)
	if err != nil {
		return nil, StreamConfig{}, fmt.Errorf("open device %q: %w", device.Name, err)
	}
	channels := uint16(1)
	if deviceType == System {
		channels = 2
	}
	cfg := StreamConfig{SampleRateHz: 48000, ChannelCount: channels, SampleFormat: FormatF32}
	return id, cfg, nil
}
