// Package transport exposes the recording manager's command surface over
// WebSocket and gRPC, both carrying the same flat Message envelope (§6
// "Command surface", "Emitted events"), grounded on internal/api/server.go.
package transport

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"meetcore/audio"
	"meetcore/models"
	"meetcore/recording"
	"meetcore/saver"
	"meetcore/transcribe"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// client is either a WebSocket connection or a gRPC stream; the broadcaster
// treats both uniformly.
type client interface {
	Send(Message) error
	Close() error
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (c *wsClient) Close() error { return c.conn.Close() }

// Server wires the recording manager, model manager, and device registry
// to the command surface and implements recording.Emitter by broadcasting
// events to every connected client (§4.7, §6).
type Server struct {
	Addr      string
	GRPCAddr  string
	ConfigDir string

	Registry *audio.Registry
	Models   *models.Manager
	Manager  *recording.Manager

	mu      sync.Mutex
	clients map[client]bool
}

func NewServer(addr, grpcAddr, configDir string, registry *audio.Registry, modelsManager *models.Manager) *Server {
	s := &Server{
		Addr:      addr,
		GRPCAddr:  grpcAddr,
		ConfigDir: configDir,
		Registry:  registry,
		Models:    modelsManager,
		clients:   make(map[client]bool),
	}
	s.Manager = recording.NewManager(registry, modelsManager, s, configDir)
	modelsManager.SetProgressCallback(s.onModelProgress)
	return s
}

// Start runs the HTTP/WebSocket listener in the foreground and the gRPC
// listener in a background goroutine, mirroring internal/api/server.go's
// Server.Start.
func (s *Server) Start() error {
	go s.startGRPC()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)

	log.Printf("transport: listening on HTTP %s and gRPC %s", s.Addr, s.GRPCAddr)
	return http.ListenAndServe(s.Addr, mux)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("transport: upgrade failed: %v", err)
		return
	}
	c := &wsClient{conn: conn}
	s.addClient(c)
	defer s.removeClient(c)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		s.handle(c.Send, msg)
	}
}

func (s *Server) addClient(c client) {
	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()
}

func (s *Server) removeClient(c client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	_ = c.Close()
}

func (s *Server) broadcast(msg Message) {
	s.mu.Lock()
	targets := make([]client, 0, len(s.clients))
	for c := range s.clients {
		targets = append(targets, c)
	}
	s.mu.Unlock()

	for _, c := range targets {
		if err := c.Send(msg); err != nil {
			log.Printf("transport: send error: %v", err)
			s.removeClient(c)
		}
	}
}

// handle dispatches one inbound Message to the recording manager, model
// manager, or device registry and replies on send (§6 "Command surface").
func (s *Server) handle(send func(Message) error, msg Message) {
	switch msg.Type {
	case "list_audio_devices":
		send(Message{Type: "devices", Devices: s.Registry.ListDevices()})

	case "start_recording":
		err := s.Manager.Start(recording.Devices{Microphone: msg.MicDevice, System: msg.SystemDevice}, msg.MeetingName)
		if err != nil {
			send(Message{Type: "error", Error: err.Error()})
		}

	case "stop_recording":
		result, err := s.Manager.Stop()
		if err != nil {
			send(Message{Type: "error", Error: err.Error()})
			return
		}
		if result != nil {
			send(Message{Type: "recording-saved", AudioFile: result.AudioFile, TranscriptFile: result.TranscriptFile, MeetingName: result.MeetingName})
		}

	case "pause_recording":
		if err := s.Manager.Pause(); err != nil {
			send(Message{Type: "error", Error: err.Error()})
		}

	case "resume_recording":
		if err := s.Manager.Resume(); err != nil {
			send(Message{Type: "error", Error: err.Error()})
		}

	case "is_recording", "is_recording_paused", "get_recording_state":
		state := s.Manager.State()
		send(Message{Type: "recording_state", IsRecording: state.IsRecording(), IsPaused: state.IsPaused()})

	case "get_recording_preferences":
		prefs := saver.LoadPreferences(s.ConfigDir)
		send(Message{Type: "recording_preferences", Preferences: &prefs})

	case "set_recording_preferences":
		if msg.Preferences == nil {
			send(Message{Type: "error", Error: "preferences payload required"})
			return
		}
		if err := saver.SavePreferences(s.ConfigDir, *msg.Preferences); err != nil {
			send(Message{Type: "error", Error: err.Error()})
			return
		}
		send(Message{Type: "recording_preferences", Preferences: msg.Preferences})

	case "whisper_discover_models":
		send(Message{Type: "models_list", Models: s.Models.DiscoverModels()})

	case "whisper_load_model":
		if err := s.Models.LoadModel(msg.ModelID); err != nil {
			send(Message{Type: "error", Error: err.Error()})
			return
		}
		send(Message{Type: "model_loaded", ModelID: msg.ModelID})

	case "whisper_unload_model":
		s.Models.UnloadModel()
		send(Message{Type: "model_unloaded"})

	case "whisper_download_model":
		if err := s.Models.DownloadModel(msg.ModelID); err != nil {
			send(Message{Type: "error", Error: err.Error()})
			return
		}
		send(Message{Type: "model-download-started", ModelID: msg.ModelID})

	case "whisper_cancel_download":
		if err := s.Models.CancelDownload(msg.ModelID); err != nil {
			send(Message{Type: "error", Error: err.Error()})
		}

	default:
		send(Message{Type: "error", Error: "unknown command: " + msg.Type})
	}
}

func (s *Server) onModelProgress(modelID string, progress float64, status models.StatusKind, err error) {
	switch status {
	case models.Error:
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		s.broadcast(Message{Type: "model-download-error", ModelID: modelID, Error: msg})
	case models.Available:
		if progress >= 100 {
			s.broadcast(Message{Type: "model-download-complete", ModelID: modelID})
			return
		}
		s.broadcast(Message{Type: "model-download-progress", ModelID: modelID, Progress: progress})
	default:
		s.broadcast(Message{Type: "model-download-progress", ModelID: modelID, Progress: progress})
	}
}

// recording.Emitter implementation: translate dispatcher/manager events
// into broadcast Messages (§6 "Emitted events").

func (s *Server) EmitTranscriptUpdate(u transcribe.TranscriptUpdate) {
	s.broadcast(Message{
		Type:             "transcript-update",
		Text:             u.Text,
		TimestampDisplay: u.TimestampDisplay,
		Source:           u.Source,
		SequenceID:       u.SequenceID,
		ChunkStartTime:   u.ChunkStartTime,
		IsPartial:        u.IsPartial,
	})
}

func (s *Server) EmitTranscriptionError(err error, userMessage string, actionable bool) {
	s.broadcast(Message{Type: "transcription-error", Error: err.Error(), UserMessage: userMessage, Actionable: actionable})
}

func (s *Server) EmitRecordingStarted(mic, system string) {
	devices := []audio.AudioDevice{{Name: mic, Kind: audio.Input}}
	if system != "" {
		devices = append(devices, audio.AudioDevice{Name: system, Kind: audio.Output})
	}
	s.broadcast(Message{Type: "recording-started", Devices: devices})
}

func (s *Server) EmitRecordingStopped() {
	s.broadcast(Message{Type: "recording-stopped"})
}

func (s *Server) EmitRecordingSaved(audioFile, transcriptFile, meetingName string) {
	s.broadcast(Message{Type: "recording-saved", AudioFile: audioFile, TranscriptFile: transcriptFile, MeetingName: meetingName})
}

func (s *Server) EmitSaveFailed(reason string) {
	s.broadcast(Message{Type: "recording-error", Error: reason})
}
