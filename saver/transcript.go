package saver

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Segment is one persisted transcript entry (§3 TranscriptSegment).
type Segment struct {
	ID             uint64  `json:"id"`
	Text           string  `json:"text"`
	AudioStartSecs float64 `json:"audioStartSecs"`
	AudioEndSecs   float64 `json:"audioEndSecs"`
	DurationSecs   float64 `json:"durationSecs"`
	DisplayTime    string  `json:"displayTime"`
	Confidence     float32 `json:"confidence"`
	SequenceID     uint64  `json:"sequenceId"`
}

// DisplayTime formats a "[mm:ss]" timestamp for a segment starting at
// startSecs (§3 TranscriptSegment.display_time).
func DisplayTime(startSecs float64) string {
	total := int64(startSecs)
	minutes := total / 60
	seconds := total % 60
	return fmt.Sprintf("[%02d:%02d]", minutes, seconds)
}

// transcriptDoc is the JSON variant's top-level shape (§6 "Transcript JSON
// schema").
type transcriptDoc struct {
	Version           string    `json:"version"`
	RecordingDuration float64   `json:"recording_duration"`
	AudioFile         string    `json:"audio_file"`
	SampleRate        uint32    `json:"sample_rate"`
	CreatedAt         time.Time `json:"created_at"`
	MeetingName       string    `json:"meeting_name,omitempty"`
	Segments          []Segment `json:"segments"`
}

// WritePlainTranscript joins segment text with newlines into
// transcript_<timestamp>.txt and returns the path written.
func WritePlainTranscript(meetingDir string, segments []Segment, timestamp time.Time) (string, error) {
	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		lines = append(lines, seg.Text)
	}
	name := fmt.Sprintf("transcript_%s.txt", timestamp.Format("2006-01-02_15-04-05"))
	path := filepath.Join(meetingDir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// WriteJSONTranscript writes the structured transcript variant with
// per-segment timings and returns the path written.
func WriteJSONTranscript(meetingDir string, segments []Segment, audioFile string, sampleRate uint32, meetingName string, recordingDuration float64, timestamp time.Time) (string, error) {
	doc := transcriptDoc{
		Version:           "1.0",
		RecordingDuration: recordingDuration,
		AudioFile:         audioFile,
		SampleRate:        sampleRate,
		CreatedAt:         timestamp,
		MeetingName:       meetingName,
		Segments:          segments,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("transcript_%s.json", timestamp.Format("2006-01-02_15-04-05"))
	path := filepath.Join(meetingDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}
