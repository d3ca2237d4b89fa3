package saver

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

var ffmpegPath string

// resolveFFmpeg searches in the same order as the teacher's session
// package: next to the executable, in the working directory, then PATH.
func resolveFFmpeg() string {
	if ffmpegPath != "" {
		return ffmpegPath
	}

	var searchPaths []string
	if execPath, err := os.Executable(); err == nil {
		execDir := filepath.Dir(execPath)
		searchPaths = append(searchPaths,
			filepath.Join(execDir, "..", "Resources", "ffmpeg"),
			filepath.Join(execDir, "ffmpeg"))
	}
	if cwd, err := os.Getwd(); err == nil {
		searchPaths = append(searchPaths,
			filepath.Join(cwd, "ffmpeg"),
			filepath.Join(cwd, "vendor", "ffmpeg", "ffmpeg"))
	}
	for _, p := range searchPaths {
		if _, err := os.Stat(p); err == nil {
			ffmpegPath = p
			return ffmpegPath
		}
	}
	if p, err := exec.LookPath("ffmpeg"); err == nil {
		ffmpegPath = p
		return ffmpegPath
	}
	return ""
}

// writeAudioFile converts the mono samples to 16-bit PCM and pipes them to
// ffmpeg, which encodes them as AAC in an mp4 container, when ffmpeg is
// available (§9 Open Question 2), falling back to the pure-Go MP3 encoder
// otherwise or when ffmpeg fails. The returned path's extension always reflects what
// was actually written.
func writeAudioFile(meetingDir string, samples []float32, sampleRate int, timestamp time.Time) (string, error) {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(s*32767)))
	}

	if path := resolveFFmpeg(); path != "" {
		outPath := filepath.Join(meetingDir, fmt.Sprintf("recording_%s.mp4", timestamp.Format("2006-01-02_15-04-05")))
		cmd := exec.Command(path,
			"-y",
			"-f", "s16le",
			"-ar", fmt.Sprintf("%d", sampleRate),
			"-ac", "1",
			"-i", "pipe:0",
			"-c:a", "aac",
			outPath,
		)
		cmd.Stdin = bytes.NewReader(pcm)
		if err := cmd.Run(); err == nil {
			return outPath, nil
		}
		log.Printf("saver: ffmpeg mux failed, falling back to mp3 encoder")
	}

	outPath := filepath.Join(meetingDir, fmt.Sprintf("recording_%s.mp3", timestamp.Format("2006-01-02_15-04-05")))
	writer, err := NewMP3Writer(outPath, sampleRate, 1)
	if err != nil {
		return "", err
	}
	if err := writer.Write(samples); err != nil {
		writer.Close()
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}
	return outPath, nil
}
