package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetEnvFallbacks(t *testing.T) {
	t.Setenv("CLIP_TEST_STR", "")
	t.Setenv("CLIP_TEST_INT", "not-a-number")
	t.Setenv("CLIP_TEST_FLOAT", "fast")

	if got := GetEnv("CLIP_TEST_STR", "json"); got != "json" {
		t.Errorf("GetEnv = %q, want fallback", got)
	}
	if got := GetEnvInt("CLIP_TEST_INT", 512); got != 512 {
		t.Errorf("GetEnvInt = %d, want fallback", got)
	}
	if got := GetEnvFloat("CLIP_TEST_FLOAT", 48000); got != 48000 {
		t.Errorf("GetEnvFloat = %v, want fallback", got)
	}
}

func TestGetEnvValues(t *testing.T) {
	t.Setenv("CLIP_TEST_STR", "text")
	t.Setenv("CLIP_TEST_INT", "256")
	t.Setenv("CLIP_TEST_FLOAT", "44100.5")

	if got := GetEnv("CLIP_TEST_STR", "json"); got != "text" {
		t.Errorf("GetEnv = %q", got)
	}
	if got := GetEnvInt("CLIP_TEST_INT", 512); got != 256 {
		t.Errorf("GetEnvInt = %d", got)
	}
	if got := GetEnvFloat("CLIP_TEST_FLOAT", 48000); got != 44100.5 {
		t.Errorf("GetEnvFloat = %v", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("CLIP_TEST_RATE=96000\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CLIP_TEST_RATE", "")
	os.Unsetenv("CLIP_TEST_RATE")

	if err := Load(path); err != nil {
		t.Fatal(err)
	}
	if got := GetEnvFloat("CLIP_TEST_RATE", 48000); got != 96000 {
		t.Errorf("rate from file = %v, want 96000", got)
	}
	if err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SAMPLE_RATE", "44100")
	t.Setenv("BUFFER_SIZE", "big")
	t.Setenv("UNDO_LIMIT", "")
	t.Setenv("PROJECT_FILE", "/tmp/song.yaml")

	got := FromEnv()
	want := Server{
		Port:        "8080",
		LogLevel:    "debug",
		LogFormat:   GetEnv("LOG_FORMAT", "json"),
		SampleRate:  44100,
		BufferSize:  512,
		UndoLimit:   100,
		ProjectFile: "/tmp/song.yaml",
	}
	if got != want {
		t.Errorf("FromEnv() = %+v, want %+v", got, want)
	}
}
