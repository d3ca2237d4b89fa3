package audio

import "testing"

func TestRecordingStateLifecycle(t *testing.T) {
	s := NewRecordingState()

	if s.IsRecording() {
		t.Fatal("expected not recording initially")
	}

	if err := s.StartRecording(); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if !s.IsRecording() {
		t.Fatal("expected recording after StartRecording")
	}
	if err := s.StartRecording(); err == nil {
		t.Fatal("expected AlreadyRecording on double start")
	}

	t.Run("pause resume accounting", func(t *testing.T) {
		if err := s.Pause(); err != nil {
			t.Fatalf("Pause: %v", err)
		}
		if !s.IsPaused() {
			t.Fatal("expected paused")
		}
		if err := s.Resume(); err != nil {
			t.Fatalf("Resume: %v", err)
		}
		if s.IsPaused() {
			t.Fatal("expected not paused after resume")
		}
	})

	s.Stop()
	if s.IsRecording() {
		t.Fatal("expected not recording after Stop")
	}
}

func TestRecordingStateSendAudioChunkWithoutSender(t *testing.T) {
	s := NewRecordingState()
	err := s.SendAudioChunk(AudioChunk{ChunkID: 1})
	if err == nil {
		t.Fatal("expected PipelineNotReady when no sender installed")
	}
	ae, ok := err.(*AudioError)
	if !ok || ae.Kind != ErrPipelineNotReady {
		t.Fatalf("expected PipelineNotReady, got %v", err)
	}
}

func TestRecordingStateSendAudioChunkWithSender(t *testing.T) {
	s := NewRecordingState()
	var received []AudioChunk
	s.SetSender(func(c AudioChunk) error {
		received = append(received, c)
		return nil
	})
	if err := s.SendAudioChunk(AudioChunk{ChunkID: 42}); err != nil {
		t.Fatalf("SendAudioChunk: %v", err)
	}
	if len(received) != 1 || received[0].ChunkID != 42 {
		t.Fatalf("unexpected received chunks: %+v", received)
	}
}

func TestRecordingStateReportErrorFatal(t *testing.T) {
	s := NewRecordingState()
	var got *AudioError
	s.SetErrorCallback(func(e *AudioError) { got = e })

	s.ReportError(&AudioError{Kind: ErrTranscriptionFailed, Message: "bad chunk"})
	if s.HasFatalError() {
		t.Fatal("TranscriptionFailed must not be fatal")
	}
	if got == nil || got.Kind != ErrTranscriptionFailed {
		t.Fatalf("callback did not receive the error, got %v", got)
	}

	s.ReportError(&AudioError{Kind: ErrDeviceDisconnected, Message: "unplugged"})
	if !s.HasFatalError() {
		t.Fatal("DeviceDisconnected must be fatal")
	}
	if s.ErrorCount() != 2 {
		t.Fatalf("expected error count 2, got %d", s.ErrorCount())
	}
}

func TestFlushSentinel(t *testing.T) {
	c := NewFlushSentinel(Microphone, 0)
	if !c.IsFlushSentinel() {
		t.Fatal("expected flush sentinel")
	}
	normal := AudioChunk{ChunkID: 12345}
	if normal.IsFlushSentinel() {
		t.Fatal("normal chunk misidentified as flush sentinel")
	}
}
