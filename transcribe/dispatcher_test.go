package transcribe

import (
	"os"
	"path/filepath"
	"testing"

	"meetcore/audio"
	"meetcore/models"
)

type fakeSink struct {
	segments []TranscriptSegment
}

func (s *fakeSink) AppendTranscript(seg TranscriptSegment) {
	s.segments = append(s.segments, seg)
}

type fakeEmitter struct {
	updates []TranscriptUpdate
	errors  int
}

func (e *fakeEmitter) EmitTranscriptUpdate(u TranscriptUpdate) { e.updates = append(e.updates, u) }
func (e *fakeEmitter) EmitTranscriptionError(err error, userMessage string, actionable bool) {
	e.errors++
}

func newTestManager(t *testing.T) *models.Manager {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "models")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	m, err := models.NewManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestDispatcherDropsSilentChunk(t *testing.T) {
	manager := newTestManager(t)
	sink := &fakeSink{}
	emitter := &fakeEmitter{}
	d := NewDispatcher(manager, sink, emitter, nil)

	d.Dispatch(audio.AudioChunk{SampleRateHz: 16000, Data: make([]float32, 16000)})

	if len(sink.segments) != 0 || len(emitter.updates) != 0 || emitter.errors != 0 {
		t.Fatalf("expected silent chunk to be dropped with no events, got segments=%d updates=%d errors=%d",
			len(sink.segments), len(emitter.updates), emitter.errors)
	}
}

func TestDispatcherReportsNoModelAvailable(t *testing.T) {
	manager := newTestManager(t)
	sink := &fakeSink{}
	emitter := &fakeEmitter{}
	d := NewDispatcher(manager, sink, emitter, nil)

	samples := make([]float32, 16000)
	for i := range samples {
		samples[i] = 0.5
	}
	d.Dispatch(audio.AudioChunk{SampleRateHz: 16000, Data: samples})

	if emitter.errors != 1 {
		t.Fatalf("expected exactly one transcription error, got %d", emitter.errors)
	}
}

func TestDispatcherIgnoresFlushSentinel(t *testing.T) {
	manager := newTestManager(t)
	emitter := &fakeEmitter{}
	d := NewDispatcher(manager, nil, emitter, nil)

	d.Dispatch(audio.NewFlushSentinel(audio.Microphone, 0))

	if emitter.errors != 0 {
		t.Fatalf("expected flush sentinel to be a no-op, got %d errors", emitter.errors)
	}
}

func TestPadToMinDuration(t *testing.T) {
	samples := make([]float32, 800)
	padded := padToMinDuration(samples, 16000)
	if len(padded) != 16000 {
		t.Fatalf("expected padding to 1 second at 16kHz (16000 samples), got %d", len(padded))
	}
}

func TestMeanEnergy(t *testing.T) {
	if meanEnergy(nil) != 0 {
		t.Fatal("expected zero energy for empty input")
	}
	samples := []float32{0.5, -0.5, 0.5, -0.5}
	if got := meanEnergy(samples); got != 0.5 {
		t.Fatalf("expected mean energy 0.5, got %f", got)
	}
}
