package saver

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/braheezy/shine-mp3/pkg/mp3"
)

// MP3Writer streams float32 mono samples to an MP3 file through the
// pure-Go shine encoder; no external ffmpeg process is involved.
type MP3Writer struct {
	file       *os.File
	encoder    *mp3.Encoder
	filePath   string
	sampleRate int
	channels   int

	buffer         []int16
	samplesWritten int64
	mu             sync.Mutex
	closed         bool
}

// NewMP3Writer creates a file at filePath and opens a streaming encoder
// for it at sampleRate with channels channels (1 for mono).
func NewMP3Writer(filePath string, sampleRate, channels int) (*MP3Writer, error) {
	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	return &MP3Writer{
		file:       file,
		encoder:    mp3.NewEncoder(sampleRate, channels),
		filePath:   filePath,
		sampleRate: sampleRate,
		channels:   channels,
		buffer:     make([]int16, 0, 8192),
	}, nil
}

// Write appends float32 samples and hands the whole buffer to the encoder
// once it holds at least four MP3 Layer III frames (1152 samples/channel
// each); the buffer passed is not trimmed to a whole number of frames.
func (w *MP3Writer) Write(samples []float32) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("writer is closed")
	}

	for _, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		w.buffer = append(w.buffer, int16(s*32767))
	}
	w.samplesWritten += int64(len(samples))

	minBufferSize := 1152 * w.channels * 4
	if len(w.buffer) >= minBufferSize {
		w.encoder.Write(w.file, w.buffer)
		w.buffer = w.buffer[:0]
	}
	return nil
}

func (w *MP3Writer) SamplesWritten() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.samplesWritten
}

func (w *MP3Writer) Duration() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	frames := w.samplesWritten / int64(w.channels)
	return time.Duration(frames) * time.Second / time.Duration(w.sampleRate)
}

// Close flushes any remaining buffered samples (zero-padded to a whole
// frame) and closes the underlying file.
func (w *MP3Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	if len(w.buffer) > 0 {
		blockSize := 1152 * w.channels
		for len(w.buffer)%blockSize != 0 {
			w.buffer = append(w.buffer, 0)
		}
		w.encoder.Write(w.file, w.buffer)
	}

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	return nil
}

func (w *MP3Writer) FilePath() string { return w.filePath }
