package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func TestRequestLogger(t *testing.T) {
	var out bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&out, nil))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Get("/clips/{clip_id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("missing"))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/clips/c1", nil))

	var entry map[string]any
	if err := json.Unmarshal(out.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, out.String())
	}
	if entry["status"] != float64(404) || entry["size"] != float64(7) {
		t.Errorf("status/size = %v / %v", entry["status"], entry["size"])
	}
	if entry["route"] != "/clips/{clip_id}" {
		t.Errorf("route = %v", entry["route"])
	}
	if id, _ := entry["request_id"].(string); id == "" {
		t.Error("expected a request id")
	}
}

func TestNewLevels(t *testing.T) {
	ctx := context.Background()
	if !New("debug", "text").Enabled(ctx, slog.LevelDebug) {
		t.Error("debug logger should enable debug")
	}
	if New("warn", "json").Enabled(ctx, slog.LevelInfo) {
		t.Error("warn logger should not enable info")
	}
	if !New("bogus", "json").Enabled(ctx, slog.LevelInfo) {
		t.Error("unknown level should default to info")
	}
}

func TestNewWithWriter_text(t *testing.T) {
	var out bytes.Buffer
	NewWithWriter(&out, "info", "text").Info("clip restored", slog.String("clip_id", "c1"))
	if !bytes.Contains(out.Bytes(), []byte("clip_id=c1")) {
		t.Errorf("text output = %q", out.String())
	}
}
