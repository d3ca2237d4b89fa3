// Package audio provides device enumeration, capture, and the shared
// recording state for the meeting audio core.
package audio

import "fmt"

// DeviceType tags which side of a meeting a stream belongs to.
type DeviceType int

const (
	Microphone DeviceType = iota
	System
)

func (t DeviceType) String() string {
	switch t {
	case Microphone:
		return "microphone"
	case System:
		return "system"
	default:
		return "unknown"
	}
}

// Kind distinguishes input (capture) devices from output (playback/loopback
// source) devices in the registry.
type Kind int

const (
	Input Kind = iota
	Output
)

// AudioDevice is a named device exposed by the registry. Equality is by
// (Name, Kind).
type AudioDevice struct {
	Name string
	Kind Kind
}

func (d AudioDevice) Equal(other AudioDevice) bool {
	return d.Name == other.Name && d.Kind == other.Kind
}

// SampleFormat is the wire format a stream negotiates with the host before
// being normalized to f32 mono.
type SampleFormat int

const (
	FormatF32 SampleFormat = iota
	FormatI16
	FormatI32
	FormatI8
)

// StreamConfig is immutable once a stream is opened.
type StreamConfig struct {
	SampleRateHz uint32
	ChannelCount uint16
	SampleFormat SampleFormat
}

// flushSentinelBase marks the start of the reserved chunk-id range used to
// request an out-of-band flush from the pipeline. chunk_id >= flushSentinelBase
// carries no audio.
const flushSentinelBase = ^uint64(0) - 10

// AudioChunk is a single delivery of mono f32 PCM samples from one device
// stream, tagged with a monotonic per-stream id and a recording-relative
// timestamp. It is produced by an Audio Stream callback and consumed exactly
// once by the pipeline or the saver.
type AudioChunk struct {
	ChunkID       uint64
	DeviceType    DeviceType
	SampleRateHz  uint32
	TimestampSecs float64
	Data          []float32
}

// IsFlushSentinel reports whether this chunk carries no audio and instructs
// a consumer to dispatch whatever it has accumulated.
func (c AudioChunk) IsFlushSentinel() bool {
	return c.ChunkID >= flushSentinelBase
}

// NewFlushSentinel builds a flush sentinel for the given device type. offset
// selects among the small reserved range so multiple sentinels in flight are
// distinguishable in logs.
func NewFlushSentinel(deviceType DeviceType, offset uint64) AudioChunk {
	return AudioChunk{
		ChunkID:    flushSentinelBase + offset,
		DeviceType: deviceType,
	}
}

// AudioError is a typed error carrying one of the taxonomy kinds from the
// error handling design.
type AudioError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AudioError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AudioError) Unwrap() error { return e.Err }

func (e *AudioError) Is(target error) bool {
	other, ok := target.(*AudioError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// ErrorKind enumerates the AudioError taxonomy.
type ErrorKind int

const (
	ErrDeviceDisconnected ErrorKind = iota
	ErrPermissionDenied
	ErrStreamFailed
	ErrChannelClosed
	ErrBufferOverflow
	ErrProcessingFailed
	ErrTranscriptionFailed
	ErrTranscriptionTimeout
	ErrPipelineNotReady
	ErrNoModelAvailable
	ErrModelCorrupted
	ErrSaveFailed
	ErrAlreadyRecording
	ErrNotRecording
	ErrNoDefaultDevice
	ErrDeviceOpenFailed
)

func (k ErrorKind) String() string {
	switch k {
	case ErrDeviceDisconnected:
		return "DeviceDisconnected"
	case ErrPermissionDenied:
		return "PermissionDenied"
	case ErrStreamFailed:
		return "StreamFailed"
	case ErrChannelClosed:
		return "ChannelClosed"
	case ErrBufferOverflow:
		return "BufferOverflow"
	case ErrProcessingFailed:
		return "ProcessingFailed"
	case ErrTranscriptionFailed:
		return "TranscriptionFailed"
	case ErrTranscriptionTimeout:
		return "TranscriptionTimeout"
	case ErrPipelineNotReady:
		return "PipelineNotReady"
	case ErrNoModelAvailable:
		return "NoModelAvailable"
	case ErrModelCorrupted:
		return "ModelCorrupted"
	case ErrSaveFailed:
		return "SaveFailed"
	case ErrAlreadyRecording:
		return "AlreadyRecording"
	case ErrNotRecording:
		return "NotRecording"
	case ErrNoDefaultDevice:
		return "NoDefaultDevice"
	case ErrDeviceOpenFailed:
		return "DeviceOpenFailed"
	default:
		return "Unknown"
	}
}

// fatalKinds are the kinds that the manager surfaces as a fatal event
// requiring the user to restart recording (spec §7).
var fatalKinds = map[ErrorKind]bool{
	ErrDeviceDisconnected: true,
	ErrPermissionDenied:   true,
}

func (k ErrorKind) IsFatal() bool {
	return fatalKinds[k]
}
