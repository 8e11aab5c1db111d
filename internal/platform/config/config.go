package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Load sets environment variables from .env files. With no paths, ".env" in
// the working directory is read. A missing file is an error that callers may
// ignore to run on the process environment and defaults alone.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvFloat returns the float value of the environment variable named by
// key, or fallback if the variable is unset, empty, or not a valid number.
func GetEnvFloat(key string, fallback float64) float64 {
	if s := os.Getenv(key); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return fallback
}

// Server holds the settings cmd/server reads at startup.
type Server struct {
	Port        string
	LogLevel    string
	LogFormat   string
	SampleRate  float64
	BufferSize  int
	UndoLimit   int
	ProjectFile string
}

// FromEnv reads the server settings, falling back to the defaults for unset
// or malformed values.
func FromEnv() Server {
	return Server{
		Port:        GetEnv("PORT", "8080"),
		LogLevel:    GetEnv("LOG_LEVEL", "info"),
		LogFormat:   GetEnv("LOG_FORMAT", "json"),
		SampleRate:  GetEnvFloat("SAMPLE_RATE", 48000),
		BufferSize:  GetEnvInt("BUFFER_SIZE", 512),
		UndoLimit:   GetEnvInt("UNDO_LIMIT", 100),
		ProjectFile: GetEnv("PROJECT_FILE", "project.yaml"),
	}
}
