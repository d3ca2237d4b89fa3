// Package saver accumulates the raw per-device audio and transcript text
// for one recording and, on stop, mixes, writes, and persists them to disk
// (§4.6 Recording Saver).
package saver

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"meetcore/audio"
	"meetcore/pipeline"
	"meetcore/transcribe"
)

const (
	duckThreshold  = 0.01
	duckMicGain    = 0.6
	duckSystemGain = 0.9
	safetyRMSFloor = 0.05
)

type audioRun struct {
	data       []float32
	sampleRate uint32
}

// SaveResult is what stop-and-save produces on success (§4.6 step 9).
type SaveResult struct {
	AudioFile      string
	TranscriptFile string
	MeetingName    string
}

// SaveFailed is the non-fatal failure result of a save attempt (§4.6
// "Failure model").
type SaveFailed struct {
	Reason string
}

func (e *SaveFailed) Error() string { return fmt.Sprintf("save failed: %s", e.Reason) }

// Saver accumulates arrival-ordered chunks for the microphone and system
// devices plus the transcript text, keyed only by device type. Chunks are
// never reordered by timestamp (§4.6 "Accumulation").
type Saver struct {
	mu sync.Mutex

	micRuns    []audioRun
	systemRuns []audioRun

	transcript []Segment
	nextSeqID  uint64

	meetingID    string
	meetingName  string
	micDevice    string
	systemDevice string

	recordingStart time.Time
	active         bool
}

func New(meetingID, meetingName string) *Saver {
	return &Saver{meetingID: meetingID, meetingName: meetingName, recordingStart: time.Now(), active: true}
}

func (s *Saver) SetDevices(mic, system string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.micDevice = mic
	s.systemDevice = system
}

// RecordChunk implements the save-branch of the forwarder (§4.7 step 3):
// every capture chunk that is not a flush sentinel is appended to the
// per-device buffer in arrival order.
func (s *Saver) RecordChunk(chunk audio.AudioChunk) {
	if chunk.IsFlushSentinel() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}

	run := audioRun{data: chunk.Data, sampleRate: chunk.SampleRateHz}
	switch chunk.DeviceType {
	case audio.Microphone:
		s.micRuns = append(s.micRuns, run)
	case audio.System:
		s.systemRuns = append(s.systemRuns, run)
	}
}

// AppendTranscript implements transcribe.TranscriptSink (§4.5 step 7).
func (s *Saver) AppendTranscript(seg transcribe.TranscriptSegment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSeqID++
	s.transcript = append(s.transcript, Segment{
		ID:             s.nextSeqID,
		Text:           seg.Text,
		AudioStartSecs: seg.ChunkStartSecs + seg.Start.Seconds(),
		AudioEndSecs:   seg.ChunkStartSecs + seg.End.Seconds(),
		DurationSecs:   (seg.End - seg.Start).Seconds(),
		DisplayTime:    DisplayTime(seg.ChunkStartSecs + seg.Start.Seconds()),
		SequenceID:     s.nextSeqID,
	})
}

// StopAccumulating halts further RecordChunk/AppendTranscript writes
// (§4.6 step 1). Stop-and-save continues to run against whatever was
// buffered up to this point.
func (s *Saver) StopAccumulating() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
}

// StopAndSave runs the full stop-and-save sequence (§4.6 steps 2-9). A
// save failure is returned as *SaveFailed and must not be treated as a
// fatal error by the caller (§4.6 "Failure model").
func (s *Saver) StopAndSave(prefs Preferences) (*SaveResult, error) {
	s.mu.Lock()
	micRuns := s.micRuns
	systemRuns := s.systemRuns
	transcript := s.transcript
	meetingID := s.meetingID
	meetingName := s.meetingName
	micDevice := s.micDevice
	systemDevice := s.systemDevice
	start := s.recordingStart
	s.mu.Unlock()

	if !prefs.AutoSave {
		log.Printf("saver: auto-save disabled, discarding buffers")
		return nil, nil
	}

	micSamples, micRate := concatenate(micRuns)
	systemSamples, systemRate := concatenate(systemRuns)

	if len(micSamples) == 0 && len(systemSamples) == 0 {
		return nil, &SaveFailed{Reason: "no audio data captured"}
	}

	targetRate := micRate
	if systemRate > targetRate {
		targetRate = systemRate
	}
	if targetRate == 0 {
		targetRate = 48000
	}

	if micRate != targetRate && len(micSamples) > 0 {
		micSamples = pipeline.Resample(micSamples, micRate, targetRate)
	}
	if systemRate != targetRate && len(systemSamples) > 0 {
		systemSamples = pipeline.Resample(systemSamples, systemRate, targetRate)
	}

	mixed := smartDuckingMix(micSamples, systemSamples)
	mixed = applySafetyNormalization(mixed)

	meetingDir, err := EnsureMeetingFolder(prefs.OutputDir, meetingName)
	if err != nil {
		return nil, &SaveFailed{Reason: fmt.Sprintf("create meeting folder: %v", err)}
	}

	completedAt := time.Now()
	timestamp := completedAt
	audioFile, err := writeAudioFile(meetingDir, mixed, int(targetRate), timestamp)
	if err != nil {
		return nil, &SaveFailed{Reason: fmt.Sprintf("write audio file: %v", err)}
	}

	var transcriptFile string
	if len(transcript) > 0 {
		transcriptFile, err = WritePlainTranscript(meetingDir, transcript, timestamp)
		if err != nil {
			log.Printf("saver: failed to write plain transcript: %v", err)
		}
		if _, err := WriteJSONTranscript(meetingDir, transcript, audioFile, targetRate, meetingName,
			float64(len(mixed))/float64(targetRate), timestamp); err != nil {
			log.Printf("saver: failed to write json transcript: %v", err)
		}
	}

	meta := NewMetadata(meetingID, meetingName, Devices{Microphone: micDevice, SystemAudio: systemDevice},
		audioFile, transcriptFile, targetRate, start, completedAt)
	if err := WriteMetadata(meetingDir, meta); err != nil {
		log.Printf("saver: failed to write metadata: %v", err)
	}

	return &SaveResult{AudioFile: audioFile, TranscriptFile: transcriptFile, MeetingName: meetingName}, nil
}

func concatenate(runs []audioRun) ([]float32, uint32) {
	if len(runs) == 0 {
		return nil, 0
	}
	total := 0
	for _, r := range runs {
		total += len(r.data)
	}
	out := make([]float32, 0, total)
	for _, r := range runs {
		out = append(out, r.data...)
	}
	return out, runs[0].sampleRate
}

// smartDuckingMix implements §4.6 step 5: when system audio is active the
// mic is ducked to 60% and the system boosted to 90%, summed and clamped;
// otherwise the mic plays at full strength. The tail of the longer buffer
// is appended unmodified.
func smartDuckingMix(mic, system []float32) []float32 {
	minLen := len(mic)
	if len(system) < minLen {
		minLen = len(system)
	}

	mixed := make([]float32, 0, minLen)
	for i := 0; i < minLen; i++ {
		m, sys := mic[i], system[i]
		var out float32
		if abs32(sys) > duckThreshold {
			out = clamp32(m*duckMicGain+sys*duckSystemGain, -1, 1)
		} else {
			out = m
		}
		mixed = append(mixed, out)
	}

	if len(mic) > minLen {
		mixed = append(mixed, mic[minLen:]...)
	} else if len(system) > minLen {
		mixed = append(mixed, system[minLen:]...)
	}
	return mixed
}

// applySafetyNormalization only rescales the buffer if its RMS is below
// the quiet floor (§4.6 step 6).
func applySafetyNormalization(samples []float32) []float32 {
	if len(samples) == 0 {
		return samples
	}
	rms := rmsOf(samples)
	if rms >= safetyRMSFloor || rms == 0 {
		return samples
	}

	log.Printf("saver: audio extremely quiet (rms=%.6f), applying safety normalization", rms)
	targetRMS := float32(0.15)
	gain := targetRMS / float32(rms)
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = clamp32(s*gain, -1, 1)
	}
	return out
}

func rmsOf(samples []float32) float64 {
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func clamp32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
