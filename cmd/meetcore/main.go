// Command meetcore wires the device registry, model manager, and
// recording manager to the WebSocket/gRPC transport (§2 System Overview),
// grounded on the teacher's root main.go wiring order.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"meetcore/audio"
	"meetcore/internal/config"
	"meetcore/models"
	"meetcore/transport"
)

func main() {
	cfg := config.Load()

	logFile := setupLogging(cfg.TraceLog)
	if logFile != nil {
		defer logFile.Close()
	}

	if err := os.MkdirAll(cfg.ModelsDir, 0755); err != nil {
		log.Fatalf("meetcore: create models directory: %v", err)
	}
	if err := os.MkdirAll(cfg.ConfigDir, 0755); err != nil {
		log.Fatalf("meetcore: create config directory: %v", err)
	}

	registry, err := audio.NewRegistry()
	if err != nil {
		log.Fatalf("meetcore: init audio registry: %v", err)
	}
	defer registry.Close()

	modelsManager, err := models.NewManager(cfg.ModelsDir)
	if err != nil {
		log.Fatalf("meetcore: init model manager: %v", err)
	}

	server := transport.NewServer(cfg.Addr, cfg.GRPCAddr, cfg.ConfigDir, registry, modelsManager)

	log.Printf("meetcore: starting recording core")
	if err := server.Start(); err != nil {
		log.Fatalf("meetcore: server stopped: %v", err)
	}
}

// setupLogging attaches an additional trace log file alongside stdout and
// switches the package-level logger to the teacher's timestamp+microsecond+
// shortfile format. Returns nil (and logs to stdout only) when path is empty
// or the file can't be opened.
func setupLogging(path string) *os.File {
	if path == "" {
		return nil
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open trace log %s: %v\n", path, err)
		return nil
	}

	log.SetOutput(io.MultiWriter(os.Stdout, file))
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Printf("trace log attached: %s", path)

	return file
}
