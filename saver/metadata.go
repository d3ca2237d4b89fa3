package saver

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Devices names the devices a recording captured from (§3 MeetingMetadata).
type Devices struct {
	Microphone string `json:"microphone,omitempty"`
	SystemAudio string `json:"systemAudio,omitempty"`
}

// Metadata is the persisted per-meeting metadata file (§3 MeetingMetadata,
// §6 metadata.json).
type Metadata struct {
	Version        string    `json:"version"`
	MeetingID      string    `json:"meetingId,omitempty"`
	MeetingName    string    `json:"meetingName,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	CompletedAt    time.Time `json:"completedAt"`
	DurationSecs   float64   `json:"durationSecs"`
	Devices        Devices   `json:"devices"`
	AudioFile      string    `json:"audioFile"`
	TranscriptFile string    `json:"transcriptFile"`
	SampleRate     uint32    `json:"sampleRate"`
	Status         string    `json:"status"`
}

const metadataVersion = "1.0"

// NewMetadata builds a Metadata for a completed save.
func NewMetadata(meetingID, meetingName string, devices Devices, audioFile, transcriptFile string, sampleRate uint32, createdAt, completedAt time.Time) Metadata {
	return Metadata{
		Version:        metadataVersion,
		MeetingID:      meetingID,
		MeetingName:    meetingName,
		CreatedAt:      createdAt,
		CompletedAt:    completedAt,
		DurationSecs:   completedAt.Sub(createdAt).Seconds(),
		Devices:        devices,
		AudioFile:      audioFile,
		TranscriptFile: transcriptFile,
		SampleRate:     sampleRate,
		Status:         "completed",
	}
}

// WriteMetadata writes metadata.json into meetingDir.
func WriteMetadata(meetingDir string, meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(meetingDir, "metadata.json"), data, 0644)
}

var reservedChars = regexp.MustCompile(`[/\\:*?"<>|\x00-\x1f]`)

// SanitizeMeetingName maps reserved filesystem characters and control
// characters to underscores, and trims surrounding whitespace (§6 "Filename
// sanitization").
func SanitizeMeetingName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "meeting"
	}
	return reservedChars.ReplaceAllString(name, "_")
}

// EnsureMeetingFolder creates (or reuses) <base>/<sanitized name>/ along
// with the reserved .checkpoints/ subdirectory (§6 on-disk layout), and
// returns its path.
func EnsureMeetingFolder(base, meetingName string) (string, error) {
	dir := filepath.Join(base, SanitizeMeetingName(meetingName))
	if err := os.MkdirAll(filepath.Join(dir, ".checkpoints"), 0755); err != nil {
		return "", err
	}
	return dir, nil
}
