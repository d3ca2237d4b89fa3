// Package config loads meetcore's process-level configuration from flags
// and environment, grounded on the teacher's internal/config/config.go.
package config

import (
	"flag"
	"os"
	"path/filepath"
	"runtime"
)

// Config is the full set of values cmd/meetcore needs to wire the
// recording core to a transport (§6 "Environment").
type Config struct {
	Addr      string
	GRPCAddr  string
	ModelsDir string
	ConfigDir string
	TraceLog  string
}

// Load parses command-line flags, falling back to the MEETCORE_MODELS_DIR
// build-time/environment override spec §6 describes for the models
// directory, and a platform-appropriate config directory otherwise.
func Load() *Config {
	addr := flag.String("addr", ":8080", "HTTP/WebSocket listen address")
	grpcAddr := flag.String("grpc-addr", defaultGRPCAddress(), "gRPC listen address (unix:/path/to.sock or npipe:////./pipe/meetcore-grpc)")
	modelsDir := flag.String("models", "", "Directory for Whisper models (default: $MEETCORE_MODELS_DIR or ./models)")
	configDir := flag.String("config-dir", "", "Directory for recording preferences (default: os.UserConfigDir()/meetcore)")
	traceLog := flag.String("trace-log", "", "Optional file path to additionally fan log output out to")
	flag.Parse()

	return &Config{
		Addr:      *addr,
		GRPCAddr:  *grpcAddr,
		ModelsDir: resolveModelsDir(*modelsDir),
		ConfigDir: resolveConfigDir(*configDir),
		TraceLog:  *traceLog,
	}
}

func resolveModelsDir(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("MEETCORE_MODELS_DIR"); env != "" {
		return env
	}
	return "models"
}

func resolveConfigDir(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "meetcore")
	}
	return "meetcore-config"
}

func defaultGRPCAddress() string {
	if runtime.GOOS == "windows" {
		return "npipe:\\\\.\\pipe\\meetcore-grpc"
	}
	return "unix:/tmp/meetcore-grpc.sock"
}
