package recording

import (
	"testing"

	"meetcore/audio"
)

func TestDeviceOrNilReturnsNilWhenAbsent(t *testing.T) {
	if got := deviceOrNil(audio.AudioDevice{Name: "x"}, false); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestDeviceOrNilReturnsPointerWhenPresent(t *testing.T) {
	dev := audio.AudioDevice{Name: "x", Kind: audio.Output}
	got := deviceOrNil(dev, true)
	if got == nil || *got != dev {
		t.Fatalf("expected pointer to %+v, got %+v", dev, got)
	}
}

func TestResolveMicrophoneUsesExplicitName(t *testing.T) {
	m := &Manager{}
	dev, err := m.resolveMicrophone("Built-in Microphone")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dev.Name != "Built-in Microphone" || dev.Kind != audio.Input {
		t.Errorf("got %+v", dev)
	}
}

func TestResolveSystemAudioUsesExplicitName(t *testing.T) {
	m := &Manager{}
	dev, present := m.resolveSystemAudio("System Audio")
	if !present {
		t.Fatalf("expected present=true")
	}
	if dev.Name != "System Audio" || dev.Kind != audio.Output {
		t.Errorf("got %+v", dev)
	}
}

func TestManagerRecordingChunkRoutesToSaveQueue(t *testing.T) {
	m := &Manager{saveChan: make(chan audio.AudioChunk, 1)}
	chunk := audio.AudioChunk{ChunkID: 1}
	m.RecordingChunk(chunk)

	select {
	case got := <-m.saveChan:
		if got.ChunkID != chunk.ChunkID {
			t.Errorf("got %+v want %+v", got, chunk)
		}
	default:
		t.Fatalf("expected chunk on save queue")
	}
}

func TestManagerRecordingChunkReportsOverflowAndStillDelivers(t *testing.T) {
	m := &Manager{saveChan: make(chan audio.AudioChunk, 1), state: audio.NewRecordingState()}
	m.saveChan <- audio.AudioChunk{ChunkID: 1}

	var reported *audio.AudioError
	m.state.SetErrorCallback(func(e *audio.AudioError) { reported = e })

	done := make(chan struct{})
	go func() {
		m.RecordingChunk(audio.AudioChunk{ChunkID: 2})
		close(done)
	}()

	first := <-m.saveChan
	if first.ChunkID != 1 {
		t.Fatalf("expected chunk 1 first, got %+v", first)
	}
	<-done

	if reported == nil || reported.Kind != audio.ErrBufferOverflow {
		t.Fatalf("expected BufferOverflow report, got %v", reported)
	}

	second := <-m.saveChan
	if second.ChunkID != 2 {
		t.Fatalf("expected chunk 2 delivered after overflow, got %+v", second)
	}
}

func TestManagerTranscriptionChunkRoutesThroughStateSender(t *testing.T) {
	m := &Manager{transcribeChan: make(chan audio.AudioChunk, 1), state: audio.NewRecordingState()}
	m.state.SetSender(m.sendToPipeline)

	chunk := audio.AudioChunk{ChunkID: 7}
	m.TranscriptionChunk(chunk)

	select {
	case got := <-m.transcribeChan:
		if got.ChunkID != chunk.ChunkID {
			t.Errorf("got %+v want %+v", got, chunk)
		}
	default:
		t.Fatalf("expected chunk on transcription queue")
	}
}

func TestManagerTranscriptionChunkDroppedBeforePipelineReady(t *testing.T) {
	m := &Manager{transcribeChan: make(chan audio.AudioChunk, 1), state: audio.NewRecordingState()}

	m.TranscriptionChunk(audio.AudioChunk{ChunkID: 1})

	select {
	case got := <-m.transcribeChan:
		t.Fatalf("expected no chunk before the pipeline installs a sender, got %+v", got)
	default:
	}
}
