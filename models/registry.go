// Package models manages the set of known Whisper GGML models: which ones
// exist, where they live on disk, and their download/load lifecycle.
package models

// Info describes one known model the core can load.
type Info struct {
	ID          string
	Name        string
	SizeBytes   int64
	Description string
	DownloadURL string
}

// Registry lists every model identifier this core recognizes. Only GGML
// whisper.cpp models are supported; no faster-whisper/CTranslate2 or RNNT
// backends are wired, since only the whisper.cpp engine is in scope.
var Registry = []Info{
	{
		ID:          "ggml-tiny",
		Name:        "Tiny",
		SizeBytes:   77_691_713,
		Description: "Fastest model, lowest accuracy",
		DownloadURL: "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny.bin",
	},
	{
		ID:          "ggml-base",
		Name:        "Base",
		SizeBytes:   147_951_465,
		Description: "Balanced speed and accuracy",
		DownloadURL: "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.bin",
	},
	{
		ID:          "ggml-small",
		Name:        "Small",
		SizeBytes:   487_601_967,
		Description: "Improved recognition quality",
		DownloadURL: "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.bin",
	},
	{
		ID:          "ggml-medium",
		Name:        "Medium",
		SizeBytes:   1_533_774_781,
		Description: "High recognition quality",
		DownloadURL: "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-medium.bin",
	},
	{
		ID:          "ggml-large-v3-turbo",
		Name:        "Large V3 Turbo",
		SizeBytes:   1_624_417_792,
		Description: "Fast model with high accuracy",
		DownloadURL: "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3-turbo.bin",
	},
}

// ByID returns the registry entry for id, or nil if id is unknown.
func ByID(id string) *Info {
	for i := range Registry {
		if Registry[i].ID == id {
			return &Registry[i]
		}
	}
	return nil
}

// StatusKind is the discriminant of Status (§3 ModelInfo).
type StatusKind int

const (
	Available StatusKind = iota
	Missing
	Downloading
	Corrupted
	Error
)

func (k StatusKind) String() string {
	switch k {
	case Available:
		return "available"
	case Missing:
		return "missing"
	case Downloading:
		return "downloading"
	case Corrupted:
		return "corrupted"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Status is the on-disk/lifecycle state of one model, matching the
// Available|Missing|Downloading{progress}|Corrupted{size,expected_min}|Error(msg)
// shape.
type Status struct {
	Kind            StatusKind
	Progress        float64 // valid when Kind == Downloading, 0..100
	Size            int64   // valid when Kind == Corrupted
	ExpectedMinSize int64   // valid when Kind == Corrupted
	Message         string  // valid when Kind == Error
}

// State is a registry entry plus its current on-disk status.
type State struct {
	Info
	Status Status
	Path   string
}

// minValidSize is the lower bound a downloaded model file must clear to be
// considered structurally plausible rather than a truncated/corrupt write.
const minValidSize = 1_000_000
