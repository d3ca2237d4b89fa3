package pipeline

import (
	"math"
	"testing"
	"time"

	"meetcore/audio"
)

type recordingDispatcher struct {
	chunks []audio.AudioChunk
}

func (d *recordingDispatcher) Dispatch(c audio.AudioChunk) error {
	d.chunks = append(d.chunks, c)
	return nil
}

func speechLikeSamples(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.3 * math.Sin(float64(i)*0.37))
	}
	return out
}

func TestPipelineDropsSilence(t *testing.T) {
	out := &recordingDispatcher{}
	state := audio.NewRecordingState()
	input := make(chan audio.AudioChunk, 4)
	p := New(Config{Bounds: TierBounds{MinMs: 10, MaxMs: 100}}, state, input, out)

	input <- audio.AudioChunk{ChunkID: 0, SampleRateHz: 16000, Data: make([]float32, 1600)}
	close(input)
	p.Run()

	if len(out.chunks) != 0 {
		t.Fatalf("expected silence to be dropped, got %d dispatches", len(out.chunks))
	}
}

func TestPipelineDispatchesOnFlushSentinel(t *testing.T) {
	out := &recordingDispatcher{}
	state := audio.NewRecordingState()
	input := make(chan audio.AudioChunk, 4)
	p := New(Config{Bounds: TierBounds{MinMs: 10000, MaxMs: 20000}}, state, input, out)

	input <- audio.AudioChunk{ChunkID: 0, SampleRateHz: 16000, Data: speechLikeSamples(1600)}
	input <- audio.NewFlushSentinel(audio.Microphone, 0)
	close(input)
	p.Run()

	if len(out.chunks) != 1 {
		t.Fatalf("expected exactly one dispatch from the flush sentinel, got %d", len(out.chunks))
	}
}

func TestPipelineSkipsDispatchWhilePaused(t *testing.T) {
	out := &recordingDispatcher{}
	state := audio.NewRecordingState()
	_ = state.StartRecording()
	_ = state.Pause()
	input := make(chan audio.AudioChunk, 4)
	p := New(Config{Bounds: TierBounds{MinMs: 1, MaxMs: 5}}, state, input, out)

	input <- audio.AudioChunk{ChunkID: 0, SampleRateHz: 16000, Data: speechLikeSamples(1600), TimestampSecs: 0}
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(input)
	}()
	p.Run()

	if len(out.chunks) != 0 {
		t.Fatalf("expected no dispatch while paused, got %d", len(out.chunks))
	}
}

func TestZeroCrossingRateRejectsDC(t *testing.T) {
	dc := make([]float32, 1000)
	for i := range dc {
		dc[i] = 0.5
	}
	if zcr := zeroCrossingRate(dc); zcr >= zcrThreshold {
		t.Fatalf("expected DC buffer to have near-zero ZCR, got %f", zcr)
	}
}

func TestBufferRMSPeakEmpty(t *testing.T) {
	rms, peak := bufferRMSPeak(nil)
	if rms != 0 || peak != 0 {
		t.Fatalf("expected zero rms/peak for empty buffer, got %f/%f", rms, peak)
	}
}
