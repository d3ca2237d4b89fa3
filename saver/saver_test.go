package saver

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"meetcore/audio"
	"meetcore/transcribe"
)

func TestSmartDuckingMixDucksWhenSystemActive(t *testing.T) {
	mic := []float32{1.0, 1.0, 1.0}
	system := []float32{0.5, 0.5, 0.5}

	mixed := smartDuckingMix(mic, system)
	if len(mixed) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(mixed))
	}
	want := float32(0.6*1.0 + 0.9*0.5)
	for i, v := range mixed {
		if math.Abs(float64(v-want)) > 1e-6 {
			t.Errorf("sample %d: got %v want %v", i, v, want)
		}
	}
}

func TestSmartDuckingMixPassesMicThroughWhenSystemQuiet(t *testing.T) {
	mic := []float32{0.4, 0.4}
	system := []float32{0.0, 0.0}

	mixed := smartDuckingMix(mic, system)
	for i, v := range mixed {
		if v != mic[i] {
			t.Errorf("sample %d: got %v want %v", i, v, mic[i])
		}
	}
}

func TestSmartDuckingMixAppendsLongerTail(t *testing.T) {
	mic := []float32{0.1, 0.1, 0.1, 0.1}
	system := []float32{0.0, 0.0}

	mixed := smartDuckingMix(mic, system)
	if len(mixed) != 4 {
		t.Fatalf("expected 4 samples, got %d", len(mixed))
	}
	if mixed[2] != 0.1 || mixed[3] != 0.1 {
		t.Errorf("expected unmodified tail, got %v", mixed[2:])
	}
}

func TestApplySafetyNormalizationSkipsLoudAudio(t *testing.T) {
	samples := []float32{0.5, -0.5, 0.5, -0.5}
	out := applySafetyNormalization(samples)
	for i, v := range out {
		if v != samples[i] {
			t.Errorf("expected unchanged sample at %d, got %v", i, v)
		}
	}
}

func TestApplySafetyNormalizationBoostsQuietAudio(t *testing.T) {
	samples := make([]float32, 100)
	for i := range samples {
		samples[i] = 0.01
	}
	out := applySafetyNormalization(samples)
	if rmsOf(out) <= rmsOf(samples) {
		t.Errorf("expected boosted rms, got %v (was %v)", rmsOf(out), rmsOf(samples))
	}
}

func TestConcatenatePreservesArrivalOrder(t *testing.T) {
	runs := []audioRun{
		{data: []float32{1, 2}, sampleRate: 16000},
		{data: []float32{3, 4}, sampleRate: 16000},
	}
	out, rate := concatenate(runs)
	if rate != 16000 {
		t.Fatalf("expected rate 16000, got %d", rate)
	}
	want := []float32{1, 2, 3, 4}
	for i, v := range out {
		if v != want[i] {
			t.Errorf("index %d: got %v want %v", i, v, want[i])
		}
	}
}

func TestSaverRecordChunkIgnoresFlushSentinel(t *testing.T) {
	s := New("meeting-id-1", "test meeting")
	s.RecordChunk(audio.NewFlushSentinel(audio.Microphone, 0))
	if len(s.micRuns) != 0 {
		t.Fatalf("expected flush sentinel to be ignored, got %d runs", len(s.micRuns))
	}
}

func TestSaverRecordChunkRoutesByDeviceType(t *testing.T) {
	s := New("meeting-id-1", "test meeting")
	s.RecordChunk(audio.AudioChunk{DeviceType: audio.Microphone, SampleRateHz: 16000, Data: []float32{0.1}})
	s.RecordChunk(audio.AudioChunk{DeviceType: audio.System, SampleRateHz: 48000, Data: []float32{0.2}})

	if len(s.micRuns) != 1 || len(s.systemRuns) != 1 {
		t.Fatalf("expected one run in each buffer, got mic=%d system=%d", len(s.micRuns), len(s.systemRuns))
	}
}

func TestSaverRecordChunkStopsAfterStopAccumulating(t *testing.T) {
	s := New("meeting-id-1", "test meeting")
	s.StopAccumulating()
	s.RecordChunk(audio.AudioChunk{DeviceType: audio.Microphone, SampleRateHz: 16000, Data: []float32{0.1}})
	if len(s.micRuns) != 0 {
		t.Fatalf("expected no accumulation after stop, got %d runs", len(s.micRuns))
	}
}

func TestSaverAppendTranscriptAssignsSequenceIDs(t *testing.T) {
	s := New("meeting-id-1", "test meeting")
	s.AppendTranscript(transcribe.TranscriptSegment{Text: "hello", Start: 0, End: time.Second, ChunkStartSecs: 0})
	s.AppendTranscript(transcribe.TranscriptSegment{Text: "world", Start: 0, End: time.Second, ChunkStartSecs: 5})

	if len(s.transcript) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(s.transcript))
	}
	if s.transcript[0].SequenceID != 1 || s.transcript[1].SequenceID != 2 {
		t.Errorf("expected sequence ids 1,2, got %d,%d", s.transcript[0].SequenceID, s.transcript[1].SequenceID)
	}
	if s.transcript[1].DisplayTime != "[00:05]" {
		t.Errorf("expected display time [00:05], got %s", s.transcript[1].DisplayTime)
	}
}

func TestStopAndSaveReturnsNilWhenAutoSaveDisabled(t *testing.T) {
	s := New("meeting-id-1", "test meeting")
	s.RecordChunk(audio.AudioChunk{DeviceType: audio.Microphone, SampleRateHz: 16000, Data: []float32{0.1, 0.2}})

	result, err := s.StopAndSave(Preferences{OutputDir: t.TempDir(), AutoSave: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Fatalf("expected nil result when auto-save disabled, got %+v", result)
	}
}

func TestStopAndSaveFailsWithNoAudioCaptured(t *testing.T) {
	s := New("meeting-id-1", "test meeting")
	result, err := s.StopAndSave(Preferences{OutputDir: t.TempDir(), AutoSave: true})
	if err == nil {
		t.Fatalf("expected error for empty buffers")
	}
	if result != nil {
		t.Fatalf("expected nil result on failure")
	}
	if _, ok := err.(*SaveFailed); !ok {
		t.Fatalf("expected *SaveFailed, got %T", err)
	}
}

func TestStopAndSaveWritesFilesOnSuccess(t *testing.T) {
	dir := t.TempDir()
	s := New("meeting-id-2", "weekly sync")
	s.SetDevices("Built-in Mic", "System Audio")

	samples := make([]float32, 16000)
	for i := range samples {
		samples[i] = float32(0.3 * math.Sin(float64(i)*0.1))
	}
	s.RecordChunk(audio.AudioChunk{DeviceType: audio.Microphone, SampleRateHz: 16000, Data: samples})
	s.AppendTranscript(transcribe.TranscriptSegment{Text: "hello there", Start: 0, End: time.Second})

	result, err := s.StopAndSave(Preferences{OutputDir: dir, AutoSave: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil {
		t.Fatalf("expected non-nil result")
	}

	if _, err := os.Stat(result.AudioFile); err != nil {
		t.Errorf("expected audio file to exist: %v", err)
	}
	if _, err := os.Stat(result.TranscriptFile); err != nil {
		t.Errorf("expected transcript file to exist: %v", err)
	}

	meetingDir := filepath.Join(dir, "weekly sync")
	if _, err := os.Stat(filepath.Join(meetingDir, "metadata.json")); err != nil {
		t.Errorf("expected metadata.json to exist: %v", err)
	}
	if _, err := os.Stat(filepath.Join(meetingDir, ".checkpoints")); err != nil {
		t.Errorf("expected .checkpoints directory to exist: %v", err)
	}
}
