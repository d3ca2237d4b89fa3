package transport

import (
	"meetcore/audio"
	"meetcore/models"
	"meetcore/saver"
)

// Message is the single flat envelope exchanged over both the WebSocket
// and gRPC command surfaces, discriminated by Type (§6 "Command surface",
// "Emitted events").
type Message struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`

	// start_recording / stop_recording
	MicDevice    string `json:"micDevice,omitempty"`
	SystemDevice string `json:"systemDevice,omitempty"`
	MeetingName  string `json:"meetingName,omitempty"`

	// recording-started / recording-stopped / recording-saved
	Devices        []audio.AudioDevice `json:"devices,omitempty"`
	AudioFile      string              `json:"audioFile,omitempty"`
	TranscriptFile string              `json:"transcriptFile,omitempty"`

	// status read-outs
	IsRecording bool `json:"isRecording,omitempty"`
	IsPaused    bool `json:"isPaused,omitempty"`

	// model lifecycle
	Models   []models.State `json:"models,omitempty"`
	ModelID  string         `json:"modelId,omitempty"`
	Progress float64        `json:"progress,omitempty"`

	// recording preferences
	Preferences *saver.Preferences `json:"preferences,omitempty"`

	// transcript-update
	Text           string  `json:"text,omitempty"`
	TimestampDisplay string `json:"timestampDisplay,omitempty"`
	Source         string  `json:"source,omitempty"`
	SequenceID     uint64  `json:"sequenceId,omitempty"`
	ChunkStartTime float64 `json:"chunkStartTime,omitempty"`
	IsPartial      bool    `json:"isPartial,omitempty"`

	// errors
	Error           string `json:"error,omitempty"`
	UserMessage     string `json:"userMessage,omitempty"`
	Actionable      bool   `json:"actionable,omitempty"`
}
