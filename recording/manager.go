// Package recording composes the audio, pipeline, transcribe, models, and
// saver packages into the start/stop/pause/resume facade a transport
// layer drives (§4.7 Recording Manager).
package recording

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"meetcore/audio"
	"meetcore/models"
	"meetcore/pipeline"
	"meetcore/saver"
	"meetcore/transcribe"
)

const (
	// chunkQueueCapacity is sized well past anything the documented
	// accumulation window (§4.4 tier bounds, max_ms in the tens of
	// seconds) can fill between consumer wakeups, so the queues behave
	// as the unbounded FIFOs §5 requires in practice. A send that still
	// finds the queue full is reported rather than silently dropped.
	chunkQueueCapacity = 1 << 16
	pipelineReadyDelay = 50 * time.Millisecond
	flushSentinelCount = 3
	flushSentinelDelay = 20 * time.Millisecond
)

// Emitter publishes manager-level lifecycle events alongside the
// dispatcher's transcript events (§6 "Emitted events").
type Emitter interface {
	transcribe.EventEmitter
	EmitRecordingStarted(mic, system string)
	EmitRecordingStopped()
	EmitRecordingSaved(audioFile, transcriptFile, meetingName string)
	EmitSaveFailed(reason string)
}

// Devices names the mic/system devices a caller wants to record from. An
// empty name means "resolve the default".
type Devices struct {
	Microphone string
	System     string
}

// Manager owns the streams, pipeline task, and saver for at most one
// active recording at a time (§3 "Ownership").
type Manager struct {
	registry      *audio.Registry
	modelsManager *models.Manager
	state         *audio.RecordingState
	emitter       Emitter
	configDir     string

	mu             sync.Mutex
	micStream      *audio.Stream
	systemStream   *audio.Stream
	pipe           *pipeline.Pipeline
	dispatcher     *transcribe.Dispatcher
	saver          *saver.Saver
	saveChan       chan audio.AudioChunk
	transcribeChan chan audio.AudioChunk
	pipelineDone   chan struct{}
}

func NewManager(registry *audio.Registry, modelsManager *models.Manager, emitter Emitter, configDir string) *Manager {
	return &Manager{
		registry:      registry,
		modelsManager: modelsManager,
		state:         audio.NewRecordingState(),
		emitter:       emitter,
		configDir:     configDir,
	}
}

func (m *Manager) State() *audio.RecordingState { return m.state }

// RecordingChunk implements audio.Sink: routes a capture chunk to the save
// queue. Per §1/§8 no audio is ever dropped: a full queue is reported
// through the shared state and then blocks, rather than discarding the
// chunk (audio/stream.go's Sink doc: "an unbounded channel send is the
// expected implementation").
func (m *Manager) RecordingChunk(chunk audio.AudioChunk) {
	select {
	case m.saveChan <- chunk:
	default:
		m.state.ReportError(&audio.AudioError{Kind: audio.ErrBufferOverflow, Message: "save queue full, blocking until space frees"})
		m.saveChan <- chunk
	}
}

// TranscriptionChunk implements audio.Sink: routes a capture chunk through
// the shared state's audio sender (§4.2), which is only installed once the
// pipeline has started. Before that, or after teardown, the chunk is
// reported as PipelineNotReady rather than sent.
func (m *Manager) TranscriptionChunk(chunk audio.AudioChunk) {
	if err := m.state.SendAudioChunk(chunk); err != nil {
		if ae, ok := err.(*audio.AudioError); ok && ae.Kind == audio.ErrPipelineNotReady {
			log.Printf("recording: transcription chunk arrived before pipeline was ready, dropping")
			return
		}
		log.Printf("recording: transcription send failed: %v", err)
	}
}

// sendToPipeline is installed via state.SetSender once the pipeline
// goroutine is running; it is the actual enqueue onto transcribeChan. A
// full queue is reported then blocks, mirroring RecordingChunk.
func (m *Manager) sendToPipeline(chunk audio.AudioChunk) error {
	select {
	case m.transcribeChan <- chunk:
		return nil
	default:
		m.state.ReportError(&audio.AudioError{Kind: audio.ErrBufferOverflow, Message: "transcription queue full, blocking until space frees"})
		m.transcribeChan <- chunk
		return nil
	}
}

// Start implements §4.7's 8-step start sequence.
func (m *Manager) Start(devices Devices, meetingName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.IsRecording() {
		return &audio.AudioError{Kind: audio.ErrAlreadyRecording, Message: "recording already in progress"}
	}

	// Step 1: validate model availability.
	if m.modelsManager.Loaded() == nil {
		err := fmt.Errorf("no transcription model loaded")
		m.emitter.EmitTranscriptionError(err, "Load a transcription model before starting a recording.", true)
		return &audio.AudioError{Kind: audio.ErrNoModelAvailable, Message: err.Error()}
	}

	// Step 2: resolve devices.
	micDevice, err := m.resolveMicrophone(devices.Microphone)
	if err != nil {
		return err
	}
	systemDevice, systemRequested := m.resolveSystemAudio(devices.System)

	// Step 3: create queues. Manager implements audio.Sink; the
	// transcription side routes through m.state (set up in step 5).
	m.saveChan = make(chan audio.AudioChunk, chunkQueueCapacity)
	m.transcribeChan = make(chan audio.AudioChunk, chunkQueueCapacity)

	if meetingName == "" {
		meetingName = "Meeting " + time.Now().Format("2006-01-02 15:04:05")
	}
	m.saver = saver.New(uuid.New().String(), meetingName)
	m.saver.SetDevices(micDevice.Name, systemDevice.Name)

	tier := pipeline.DetectTier()
	m.dispatcher = transcribe.NewDispatcher(m.modelsManager, m.saver, m.emitter, nil)
	m.pipe = pipeline.New(pipeline.Config{Bounds: tier.Bounds()}, m.state, m.transcribeChan, m.dispatcher)

	// Step 4: mark state as recording.
	if err := m.state.StartRecording(); err != nil {
		return err
	}
	m.state.SetDevices(&micDevice, deviceOrNil(systemDevice, systemRequested))

	// Step 5: launch the pipeline task and install the audio sender. The
	// invariant audio_sender.is_some() <=> pipeline started (§3) is now
	// live: TranscriptionChunk fails PipelineNotReady until this point.
	m.pipelineDone = make(chan struct{})
	go func() {
		defer close(m.pipelineDone)
		m.pipe.Run()
	}()
	m.state.SetSender(m.sendToPipeline)
	go m.drainSaveQueue()

	// Step 6: let the pipeline settle before opening streams.
	time.Sleep(pipelineReadyDelay)

	// Step 7: open mic stream (must succeed), system stream (best-effort).
	micID, micCfg, err := m.registry.Open(micDevice, audio.Microphone)
	if err != nil {
		m.state.Stop()
		return &audio.AudioError{Kind: audio.ErrDeviceOpenFailed, Message: fmt.Sprintf("open microphone: %v", err), Err: err}
	}
	micStream, err := audio.OpenStream(m.registry.Context(), micID, micCfg, audio.Microphone, m.state, m)
	if err != nil {
		m.state.Stop()
		return err
	}
	m.micStream = micStream

	if systemRequested {
		sysID, sysCfg, err := m.registry.Open(systemDevice, audio.System)
		if err != nil {
			log.Printf("recording: system audio device open failed, continuing mic-only: %v", err)
		} else {
			sysStream, err := audio.OpenStream(m.registry.Context(), sysID, sysCfg, audio.System, m.state, m)
			if err != nil {
				log.Printf("recording: system audio stream failed, continuing mic-only: %v", err)
			} else {
				m.systemStream = sysStream
			}
		}
	}

	// Step 8: launch the transcription dispatcher.
	// The dispatcher is driven synchronously by the pipeline's Dispatch
	// calls, so no separate consumer goroutine is required here.

	m.emitter.EmitRecordingStarted(micDevice.Name, systemDevice.Name)
	return nil
}

func deviceOrNil(d audio.AudioDevice, present bool) *audio.AudioDevice {
	if !present {
		return nil
	}
	return &d
}

func (m *Manager) resolveMicrophone(name string) (audio.AudioDevice, error) {
	if name != "" {
		return audio.AudioDevice{Name: name, Kind: audio.Input}, nil
	}
	dev, err := m.registry.DefaultMicrophone()
	if err != nil {
		return audio.AudioDevice{}, err
	}
	return dev, nil
}

func (m *Manager) resolveSystemAudio(name string) (audio.AudioDevice, bool) {
	if name != "" {
		return audio.AudioDevice{Name: name, Kind: audio.Output}, true
	}
	dev, err := m.registry.DefaultSystemAudio()
	if err != nil {
		return audio.AudioDevice{}, false
	}
	return dev, true
}

// drainSaveQueue is the forwarder's save branch: a single consumer task
// reading the unbounded save queue until Stop closes it (§5 "Saver static
// buffers": one writer, one reader).
func (m *Manager) drainSaveQueue() {
	for chunk := range m.saveChan {
		m.saver.RecordChunk(chunk)
	}
}

// Stop implements §4.7's 8-step stop sequence.
func (m *Manager) Stop() (*saver.SaveResult, error) {
	m.mu.Lock()
	if !m.state.IsRecording() {
		m.mu.Unlock()
		return nil, &audio.AudioError{Kind: audio.ErrNotRecording, Message: "no active recording"}
	}

	// Step 2: clear is_recording and the audio sender together, so no
	// further chunk is routed to a pipeline that's about to be torn down.
	m.state.Stop()
	m.state.ClearSender()

	micStream, systemStream := m.micStream, m.systemStream
	transcribeChan, saveChan := m.transcribeChan, m.saveChan
	sv := m.saver
	m.mu.Unlock()

	if micStream != nil {
		micStream.Stop()
	}
	if systemStream != nil {
		systemStream.Stop()
	}

	// Step 3: force flush with a handful of sentinels.
	for i := 0; i < flushSentinelCount; i++ {
		select {
		case transcribeChan <- audio.NewFlushSentinel(audio.Microphone, uint64(i)):
		default:
		}
		time.Sleep(flushSentinelDelay)
	}

	// Step 4: stop the pipeline and await its task.
	close(transcribeChan)
	<-m.pipelineDone

	// Step 5: await the transcription dispatcher. It runs synchronously
	// inside the pipeline goroutine (each dispatch is a direct call, not
	// a separate queue consumer), so joining the pipeline above already
	// bounds this wait; the per-chunk 30s ceiling lives in
	// transcribe.Dispatcher.transcribeWithTimeout.

	// Step 6: unload the current model.
	m.modelsManager.UnloadModel()

	sv.StopAccumulating()
	close(saveChan)

	// Step 7: run the saver's stop-and-save.
	prefs := saver.LoadPreferences(m.configDir)
	result, err := sv.StopAndSave(prefs)
	if err != nil {
		m.emitter.EmitSaveFailed(err.Error())
	} else if result != nil {
		m.emitter.EmitRecordingSaved(result.AudioFile, result.TranscriptFile, result.MeetingName)
	}

	m.mu.Lock()
	m.micStream = nil
	m.systemStream = nil
	m.pipe = nil
	m.dispatcher = nil
	m.saver = nil
	m.mu.Unlock()

	// Step 8: emit recording-stopped.
	m.emitter.EmitRecordingStopped()

	return result, nil
}

// Pause/Resume are thin wrappers over state transitions (§4.7).
func (m *Manager) Pause() error  { return m.state.Pause() }
func (m *Manager) Resume() error { return m.state.Resume() }
