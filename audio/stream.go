package audio

import (
	"log"
	"math"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// Gain stages applied per §4.3 step 4. Transcription chunks are boosted
// harder than recording chunks so the VAD and Whisper see a usably loud
// microphone signal while the saved recording keeps a more natural level.
const (
	gainTranscriptionMic    = 5.0
	gainTranscriptionSystem = 1.0
	gainRecordingMic        = 2.5
	gainRecordingSystem     = 1.0
)

// Sink receives the two chunk variants an Audio Stream callback produces.
// RecordingChunk feeds the saver's unbounded queue; TranscriptionChunk
// feeds the pipeline's queue. Implementations must not block the audio callback
// for long; an unbounded channel send is the expected implementation.
type Sink interface {
	RecordingChunk(AudioChunk)
	TranscriptionChunk(AudioChunk)
}

// Stream owns one malgo device and converts its callback into the two
// tagged, gain-staged chunk variants the rest of the pipeline consumes.
type Stream struct {
	deviceType DeviceType
	state      *RecordingState
	sink       Sink

	device *malgo.Device

	mu      sync.Mutex
	chunkID uint64

	diagCount uint64
}

// OpenStream starts capture on the resolved device id with the given
// config and begins delivering chunks to sink. The returned Stream must be
// closed with Stop to terminate the callback.
func OpenStream(ctx *malgo.AllocatedContext, deviceID *malgo.DeviceID, cfg StreamConfig, deviceType DeviceType, state *RecordingState, sink Sink) (*Stream, error) {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = cfg.ChannelCount
	deviceConfig.SampleRate = cfg.SampleRateHz
	deviceConfig.Alsa.NoMMap = 1
	if deviceID != nil {
		deviceConfig.Capture.DeviceID = deviceID.Pointer()
	}

	s := &Stream{deviceType: deviceType, state: state, sink: sink}

	onRecvFrames := func(_, pInputSamples []byte, framecount uint32) {
		s.onFrames(pInputSamples, framecount, deviceConfig.Capture.Channels, cfg.SampleRateHz)
	}

	dev, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		return nil, mapStreamError(err)
	}
	if err := dev.Start(); err != nil {
		return nil, mapStreamError(err)
	}
	s.device = dev
	return s, nil
}

// onFrames implements the per-callback algorithm of §4.3.
func (s *Stream) onFrames(raw []byte, framecount uint32, channels uint16, sampleRateHz uint32) {
	if !s.state.IsRecording() {
		return
	}

	nCh := int(channels)
	sampleCount := int(framecount) * nCh
	if len(raw) != sampleCount*4 {
		return
	}

	mono := make([]float32, int(framecount))
	if nCh == 1 {
		for i := range mono {
			mono[i] = float32FromBytes(raw, i)
		}
	} else {
		for i := 0; i < int(framecount); i++ {
			var sum float32
			for ch := 0; ch < nCh; ch++ {
				sum += float32FromBytes(raw, i*nCh+ch)
			}
			mono[i] = sum / float32(nCh)
		}
	}

	s.mu.Lock()
	chunkID := s.chunkID
	s.chunkID++
	s.mu.Unlock()

	timestamp := s.state.GetRecordingDuration().Seconds()

	gainT, gainR := gainsFor(s.deviceType)
	transcriptionData := scaleAndClamp(mono, gainT)
	recordingData := scaleAndClamp(mono, gainR)

	s.sink.TranscriptionChunk(AudioChunk{
		ChunkID: chunkID, DeviceType: s.deviceType, SampleRateHz: sampleRateHz,
		TimestampSecs: timestamp, Data: transcriptionData,
	})
	s.sink.RecordingChunk(AudioChunk{
		ChunkID: chunkID, DeviceType: s.deviceType, SampleRateHz: sampleRateHz,
		TimestampSecs: timestamp, Data: recordingData,
	})

	if n := atomic.AddUint64(&s.diagCount, 1); n%100 == 0 {
		logDiagnostics(s.deviceType, mono, transcriptionData)
	}
}

func gainsFor(deviceType DeviceType) (transcription, recording float32) {
	if deviceType == Microphone {
		return gainTranscriptionMic, gainRecordingMic
	}
	return gainTranscriptionSystem, gainRecordingSystem
}

func scaleAndClamp(in []float32, gain float32) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		scaled := v * gain
		if scaled > 1 {
			scaled = 1
		} else if scaled < -1 {
			scaled = -1
		}
		out[i] = scaled
	}
	return out
}

// logDiagnostics emits the per-100-chunk RMS/peak summary, including the
// zero-signal microphone warning (§4.3 step 7).
func logDiagnostics(deviceType DeviceType, raw, postGain []float32) {
	rawRMS, rawPeak := rmsPeak(raw)
	gainRMS, gainPeak := rmsPeak(postGain)
	log.Printf("audio[%s] diag raw(rms=%.5f peak=%.5f) post-gain(rms=%.5f peak=%.5f)",
		deviceType, rawRMS, rawPeak, gainRMS, gainPeak)
	if deviceType == Microphone && rawRMS == 0 && rawPeak == 0 {
		log.Printf("audio[%s] WARNING: microphone producing zero audio", deviceType)
	}
}

func rmsPeak(samples []float32) (rms, peak float32) {
	if len(samples) == 0 {
		return 0, 0
	}
	var sumSq float64
	for _, v := range samples {
		a := float64(v)
		sumSq += a * a
		if abs32(v) > peak {
			peak = abs32(v)
		}
	}
	rms = float32(math.Sqrt(sumSq / float64(len(samples))))
	return
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func float32FromBytes(b []byte, sampleIndex int) float32 {
	i := sampleIndex * 4
	bits := uint32(b[i]) | uint32(b[i+1])<<8 | uint32(b[i+2])<<16 | uint32(b[i+3])<<24
	return math.Float32frombits(bits)
}

// Stop terminates the callback and releases the device. Dropping mic then
// system mirrors §4.3's teardown order.
func (s *Stream) Stop() {
	if s.device != nil {
		s.device.Uninit()
		s.device = nil
	}
}

// mapStreamError classifies a platform stream error per §4.3's error
// handling table.
func mapStreamError(err error) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "no longer available"):
		return &AudioError{Kind: ErrDeviceDisconnected, Message: msg, Err: err}
	case strings.Contains(lower, "permission"):
		return &AudioError{Kind: ErrPermissionDenied, Message: msg, Err: err}
	default:
		return &AudioError{Kind: ErrStreamFailed, Message: msg, Err: err}
	}
}
