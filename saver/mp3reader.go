package saver

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

// MP3Reader decodes a mono or stereo MP3 back to float32 PCM and reports
// its duration. The saver's stop-and-save path does not call it.
type MP3Reader struct {
	decoder    *mp3.Decoder
	file       *os.File
	sampleRate int
	length     int64
}

func NewMP3Reader(filePath string) (*MP3Reader, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open mp3 file: %w", err)
	}

	decoder, err := mp3.NewDecoder(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("create mp3 decoder: %w", err)
	}

	return &MP3Reader{
		decoder:    decoder,
		file:       file,
		sampleRate: decoder.SampleRate(),
		length:     decoder.Length(),
	}, nil
}

func (r *MP3Reader) SampleRate() int { return r.sampleRate }

// Duration returns the decoded length in seconds. go-mp3 always decodes to
// 16-bit stereo PCM, 4 bytes per sample pair.
func (r *MP3Reader) Duration() float64 {
	samples := r.length / 4
	return float64(samples) / float64(r.sampleRate)
}

// ReadAllMono decodes the whole file and averages the two channels down
// to mono float32 samples in [-1, 1].
func (r *MP3Reader) ReadAllMono() ([]float32, error) {
	pcmData := make([]byte, r.length)
	n, err := io.ReadFull(r.decoder, pcmData)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("read pcm data: %w", err)
	}
	pcmData = pcmData[:n]

	numSamples := n / 4
	mono := make([]float32, numSamples)
	for i := 0; i < numSamples; i++ {
		left := int16(binary.LittleEndian.Uint16(pcmData[i*4:]))
		right := int16(binary.LittleEndian.Uint16(pcmData[i*4+2:]))
		mono[i] = (float32(left) + float32(right)) / 2 / 32768.0
	}
	return mono, nil
}

func (r *MP3Reader) Close() error { return r.file.Close() }
