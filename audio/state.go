package audio

import (
	"sync"
	"sync/atomic"
	"time"
)

// RecordingStats counts the diagnostics a caller may want to inspect after
// a recording completes.
type RecordingStats struct {
	ChunksReceived  uint64
	ChunksDispatched uint64
	ErrorCount      uint32
}

// ErrorCallback is invoked synchronously from ReportError; it must not
// block.
type ErrorCallback func(*AudioError)

// RecordingState is the single process-wide shared object referenced by
// every other component (registry excepted): the audio streams, the
// pipeline, the saver, and the recording manager. All boolean flags are
// atomic; the sender slot and the error record are guarded by a small
// mutex so readers never block producers for longer than an O(1) update.
type RecordingState struct {
	isRecording atomic.Bool
	isPaused    atomic.Bool

	mu               sync.Mutex
	recordingStart   time.Time
	hasRecordingStart bool
	totalPause       time.Duration
	currentPauseStart time.Time
	hasPauseStart    bool

	audioSender   func(AudioChunk) error
	micDevice     *AudioDevice
	systemDevice  *AudioDevice

	errorCount    uint32
	lastError     *AudioError
	errorCallback ErrorCallback
	hasFatalError atomic.Bool

	stats RecordingStats
}

func NewRecordingState() *RecordingState {
	return &RecordingState{}
}

// StartRecording requires !IsRecording; it resets counters and pause
// accounting and stamps the recording start instant.
func (s *RecordingState) StartRecording() error {
	if s.isRecording.Load() {
		return &AudioError{Kind: ErrAlreadyRecording, Message: "recording already in progress"}
	}
	s.mu.Lock()
	s.recordingStart = time.Now()
	s.hasRecordingStart = true
	s.totalPause = 0
	s.hasPauseStart = false
	s.errorCount = 0
	s.lastError = nil
	s.stats = RecordingStats{}
	s.mu.Unlock()

	s.hasFatalError.Store(false)
	s.isPaused.Store(false)
	s.isRecording.Store(true)
	return nil
}

// Pause requires IsRecording && !IsPaused.
func (s *RecordingState) Pause() error {
	if !s.isRecording.Load() {
		return &AudioError{Kind: ErrNotRecording, Message: "cannot pause: not recording"}
	}
	if s.isPaused.Load() {
		return nil
	}
	s.mu.Lock()
	s.currentPauseStart = time.Now()
	s.hasPauseStart = true
	s.mu.Unlock()
	s.isPaused.Store(true)
	return nil
}

// Resume requires IsPaused.
func (s *RecordingState) Resume() error {
	if !s.isPaused.Load() {
		return &AudioError{Kind: ErrNotRecording, Message: "cannot resume: not paused"}
	}
	s.mu.Lock()
	if s.hasPauseStart {
		s.totalPause += time.Since(s.currentPauseStart)
		s.hasPauseStart = false
	}
	s.mu.Unlock()
	s.isPaused.Store(false)
	return nil
}

// Stop unconditionally clears is_recording/is_paused and drops the sender.
// Counters are preserved for inspection.
func (s *RecordingState) Stop() {
	s.isRecording.Store(false)
	s.isPaused.Store(false)
	s.mu.Lock()
	s.audioSender = nil
	s.hasPauseStart = false
	s.mu.Unlock()
}

func (s *RecordingState) IsRecording() bool { return s.isRecording.Load() }
func (s *RecordingState) IsPaused() bool    { return s.isPaused.Load() }

// SetSender installs the pipeline's send function once it is ready.
// AudioSender.IsSome() <=> pipeline started and not yet torn down.
func (s *RecordingState) SetSender(send func(AudioChunk) error) {
	s.mu.Lock()
	s.audioSender = send
	s.mu.Unlock()
}

func (s *RecordingState) ClearSender() {
	s.mu.Lock()
	s.audioSender = nil
	s.mu.Unlock()
}

// SendAudioChunk routes to the current sender. With no sender installed it
// fails PipelineNotReady; callers downgrade this to a debug log during the
// startup window.
func (s *RecordingState) SendAudioChunk(chunk AudioChunk) error {
	s.mu.Lock()
	send := s.audioSender
	s.mu.Unlock()
	if send == nil {
		return &AudioError{Kind: ErrPipelineNotReady, Message: "pipeline not ready"}
	}
	s.mu.Lock()
	s.stats.ChunksReceived++
	s.mu.Unlock()
	return send(chunk)
}

// ReportError increments the error count, records the last error, invokes
// the registered callback, and flags has_fatal_error on fatal kinds.
func (s *RecordingState) ReportError(err *AudioError) {
	s.mu.Lock()
	s.errorCount++
	s.lastError = err
	cb := s.errorCallback
	s.mu.Unlock()

	if err.Kind.IsFatal() {
		s.hasFatalError.Store(true)
	}
	if cb != nil {
		cb(err)
	}
}

func (s *RecordingState) SetErrorCallback(cb ErrorCallback) {
	s.mu.Lock()
	s.errorCallback = cb
	s.mu.Unlock()
}

func (s *RecordingState) HasFatalError() bool { return s.hasFatalError.Load() }

func (s *RecordingState) LastError() *AudioError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

func (s *RecordingState) ErrorCount() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorCount
}

func (s *RecordingState) SetDevices(mic, system *AudioDevice) {
	s.mu.Lock()
	s.micDevice = mic
	s.systemDevice = system
	s.mu.Unlock()
}

func (s *RecordingState) Devices() (mic, system *AudioDevice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.micDevice, s.systemDevice
}

// GetRecordingDuration = (now - recording_start) - total_pause -
// current_pause_elapsed.
func (s *RecordingState) GetRecordingDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasRecordingStart {
		return 0
	}
	elapsed := time.Since(s.recordingStart) - s.totalPause
	if s.hasPauseStart {
		elapsed -= time.Since(s.currentPauseStart)
	}
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed
}

func (s *RecordingState) TotalPause() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalPause
}

func (s *RecordingState) RecordChunkDispatched() {
	s.mu.Lock()
	s.stats.ChunksDispatched++
	s.mu.Unlock()
}

func (s *RecordingState) Stats() RecordingStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
