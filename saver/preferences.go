package saver

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
)

// Preferences controls where and whether the stop-and-save sequence writes
// anything to disk (§4.6 step 2), grounded on the original's
// recording_preferences.rs.
type Preferences struct {
	OutputDir string `json:"outputDir"`
	AutoSave  bool   `json:"autoSave"`
	Format    string `json:"format"`
}

// DefaultPreferences mirrors the original's per-platform default folder
// choice: a "meetcore-recordings" folder under the home directory's Music
// (Windows), Movies (macOS) or Documents (other systems) folder, or in the
// working directory when the home directory is unknown.
func DefaultPreferences() Preferences {
	dir := "meetcore-recordings"
	if home, err := os.UserHomeDir(); err == nil {
		switch runtime.GOOS {
		case "windows":
			dir = filepath.Join(home, "Music", "meetcore-recordings")
		case "darwin":
			dir = filepath.Join(home, "Movies", "meetcore-recordings")
		default:
			dir = filepath.Join(home, "Documents", "meetcore-recordings")
		}
	}
	return Preferences{OutputDir: dir, AutoSave: true, Format: "mp3"}
}

// preferencesPath is where preferences are persisted, inside the base
// config directory the caller supplies (typically os.UserConfigDir()).
func preferencesPath(configDir string) string {
	return filepath.Join(configDir, "recording_preferences.json")
}

// LoadPreferences reads preferences from disk, falling back to defaults if
// the file does not exist or cannot be parsed.
func LoadPreferences(configDir string) Preferences {
	path := preferencesPath(configDir)
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultPreferences()
	}
	var prefs Preferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return DefaultPreferences()
	}
	return prefs
}

// SavePreferences persists preferences to disk, creating configDir and the
// chosen output directory if needed.
func SavePreferences(configDir string, prefs Preferences) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}
	if err := os.MkdirAll(prefs.OutputDir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(preferencesPath(configDir), data, 0644)
}
