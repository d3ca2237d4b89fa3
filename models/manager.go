package models

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"meetcore/transcribe/whisper"
)

// ProgressCallback reports download progress for one model at each 1 MiB
// boundary (§4.5 download_model).
type ProgressCallback func(modelID string, progress float64, status StatusKind, err error)

// Manager owns the models directory, the currently loaded whisper.cpp
// context, and in-flight downloads.
type Manager struct {
	modelsDir string

	mu        sync.RWMutex
	loaded    *whisper.Model
	loadedID  string
	downloads map[string]context.CancelFunc
	onProgress ProgressCallback
}

func NewManager(modelsDir string) (*Manager, error) {
	if err := os.MkdirAll(modelsDir, 0755); err != nil {
		return nil, fmt.Errorf("create models directory: %w", err)
	}
	return &Manager{
		modelsDir: modelsDir,
		downloads: make(map[string]context.CancelFunc),
	}, nil
}

func (m *Manager) SetProgressCallback(cb ProgressCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onProgress = cb
}

func (m *Manager) ModelPath(id string) string {
	if ByID(id) == nil {
		return ""
	}
	return filepath.Join(m.modelsDir, id+".bin")
}

// fileStatus inspects the file on disk for one model and classifies it as
// Missing, Corrupted, or Available.
func (m *Manager) fileStatus(info *Info) Status {
	path := m.ModelPath(info.ID)
	stat, err := os.Stat(path)
	if os.IsNotExist(err) {
		return Status{Kind: Missing}
	}
	if err != nil {
		return Status{Kind: Error, Message: err.Error()}
	}
	if stat.Size() < minValidSize {
		return Status{Kind: Corrupted, Size: stat.Size(), ExpectedMinSize: minValidSize}
	}
	return Status{Kind: Available}
}

// DiscoverModels scans the registry and reports the on-disk status of
// every known model (§4.5 discover_models).
func (m *Manager) DiscoverModels() []State {
	m.mu.RLock()
	downloading := make(map[string]bool, len(m.downloads))
	for id := range m.downloads {
		downloading[id] = true
	}
	m.mu.RUnlock()

	states := make([]State, len(Registry))
	for i := range Registry {
		info := Registry[i]
		status := m.fileStatus(&info)
		if downloading[info.ID] {
			status = Status{Kind: Downloading}
		}
		states[i] = State{Info: info, Status: status, Path: m.ModelPath(info.ID)}
	}
	return states
}

// LoadModel loads the named model's whisper.cpp context, replacing any
// previously loaded one. A no-op if the same model is already loaded
// (§4.5 load_model).
func (m *Manager) LoadModel(id string) error {
	info := ByID(id)
	if info == nil {
		return fmt.Errorf("unknown model: %s", id)
	}

	m.mu.Lock()
	if m.loadedID == id && m.loaded != nil {
		m.mu.Unlock()
		return nil
	}
	prior := m.loaded
	m.mu.Unlock()

	status := m.fileStatus(info)
	if status.Kind != Available {
		return fmt.Errorf("model %s is not available: %s", id, status.Kind)
	}

	ctx, err := whisper.New(m.ModelPath(id))
	if err != nil {
		return fmt.Errorf("load model %s: %w", id, err)
	}

	m.mu.Lock()
	m.loaded = ctx
	m.loadedID = id
	m.mu.Unlock()

	if prior != nil {
		prior.Close()
	}
	log.Printf("models: loaded %s", id)
	return nil
}

// UnloadModel drops the current whisper.cpp context, if any.
func (m *Manager) UnloadModel() {
	m.mu.Lock()
	ctx := m.loaded
	m.loaded = nil
	m.loadedID = ""
	m.mu.Unlock()

	if ctx != nil {
		ctx.Close()
	}
}

// Loaded returns the currently loaded whisper.cpp context, or nil.
func (m *Manager) Loaded() *whisper.Model {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

// LoadedID returns the currently loaded model's identifier, or "".
func (m *Manager) LoadedID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadedID
}

// DownloadModel streams the model file to disk, reporting byte-level
// progress at 1 MiB boundaries (§4.5 download_model).
func (m *Manager) DownloadModel(id string) error {
	info := ByID(id)
	if info == nil {
		return fmt.Errorf("unknown model: %s", id)
	}

	m.mu.Lock()
	if _, exists := m.downloads[id]; exists {
		m.mu.Unlock()
		return fmt.Errorf("model %s is already downloading", id)
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.downloads[id] = cancel
	m.mu.Unlock()

	go func() {
		defer func() {
			m.mu.Lock()
			delete(m.downloads, id)
			m.mu.Unlock()
		}()

		progressCb := func(progress float64) {
			m.notifyProgress(id, progress, Downloading, nil)
		}

		dest := m.ModelPath(id)
		err := DownloadFile(ctx, info.DownloadURL, dest, info.SizeBytes, progressCb)
		if err != nil {
			if ctx.Err() == context.Canceled {
				log.Printf("models: download cancelled for %s", id)
				m.notifyProgress(id, 0, Missing, nil)
			} else {
				log.Printf("models: download failed for %s: %v", id, err)
				m.notifyProgress(id, 0, Error, err)
			}
			os.Remove(dest)
			os.Remove(dest + ".tmp")
			return
		}

		log.Printf("models: download complete for %s", id)
		m.notifyProgress(id, 100, Available, nil)
	}()

	return nil
}

// CancelDownload marks an in-flight download as errored without forcing
// the in-flight HTTP request to abort synchronously (§4.5 cancel_download).
func (m *Manager) CancelDownload(id string) error {
	m.mu.Lock()
	cancel, exists := m.downloads[id]
	m.mu.Unlock()

	if !exists {
		return fmt.Errorf("model %s is not downloading", id)
	}
	cancel()
	m.notifyProgress(id, 0, Error, fmt.Errorf("cancelled"))
	return nil
}

func (m *Manager) notifyProgress(id string, progress float64, kind StatusKind, err error) {
	m.mu.RLock()
	cb := m.onProgress
	m.mu.RUnlock()
	if cb != nil {
		cb(id, progress, kind, err)
	}
}
