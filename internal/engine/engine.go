// Package engine resolves media sources to clip handles and identity strings
// to live transform units.
package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"clip-automation/internal/unit"
)

var (
	// ErrEmptySource is returned when a clip is opened without a source path.
	ErrEmptySource = errors.New("empty media source")

	// ErrSourceNotFound is returned when the media source does not exist.
	ErrSourceNotFound = errors.New("media source not found")
)

// MediaClip is a handle to a decodable media source.
type MediaClip interface {
	Source() string
}

// Engine is the collaborator that turns persisted identities back into
// runtime objects.
type Engine interface {
	OpenClip(source string) (MediaClip, error)
	CreateUnit(identifier string, sampleRate float64, bufferSize int) (unit.Unit, error)
}

// FileClip is a media clip backed by a file on disk.
type FileClip struct {
	path string
	size int64
}

// NewFileClip returns a clip handle for path without touching the disk.
func NewFileClip(path string) *FileClip {
	return &FileClip{path: path}
}

// Source returns the file path.
func (c *FileClip) Source() string { return c.path }

// Size returns the file size observed when the clip was opened.
func (c *FileClip) Size() int64 { return c.size }

// Default resolves units through a Registry and clips through the file system.
type Default struct {
	registry *unit.Registry
	log      *slog.Logger
}

// New returns an engine backed by registry. A nil log discards output.
func New(registry *unit.Registry, log *slog.Logger) *Default {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Default{registry: registry, log: log}
}

// Registry returns the registry used for unit resolution.
func (e *Default) Registry() *unit.Registry {
	return e.registry
}

// OpenClip returns a handle to the file at source.
func (e *Default) OpenClip(source string) (MediaClip, error) {
	if source == "" {
		return nil, ErrEmptySource
	}
	info, err := os.Stat(source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, source)
		}
		return nil, fmt.Errorf("open clip %s: %w", source, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrSourceNotFound, source)
	}
	abs, err := filepath.Abs(source)
	if err != nil {
		abs = source
	}
	return &FileClip{path: abs, size: info.Size()}, nil
}

// CreateUnit instantiates and prepares the unit registered under identifier.
func (e *Default) CreateUnit(identifier string, sampleRate float64, bufferSize int) (unit.Unit, error) {
	u, err := e.registry.Create(identifier)
	if err != nil {
		e.log.Warn("unit resolution failed",
			slog.String("identifier", identifier),
			slog.String("error", err.Error()))
		return nil, err
	}
	u.Prepare(sampleRate, bufferSize)
	e.log.Debug("unit created",
		slog.String("identifier", identifier),
		slog.Float64("sample_rate", sampleRate),
		slog.Int("buffer_size", bufferSize))
	return u, nil
}
