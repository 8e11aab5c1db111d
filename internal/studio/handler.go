package studio

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"clip-automation/internal/clip"
	"clip-automation/internal/platform/metrics"
	"clip-automation/internal/playback"
	"clip-automation/internal/timeline"
	"clip-automation/internal/tree"

	"github.com/go-chi/chi/v5"
)

const projectContentType = "application/yaml"

// Handler exposes studio HTTP endpoints using go-chi.
type Handler struct {
	svc     *Service
	player  *playback.Player
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler that uses the given Service, Player, Logger,
// and optional Metrics. player may be nil to disable the transport routes;
// metrics may be nil to disable metric recording (e.g. in tests).
func NewHandler(svc *Service, player *playback.Player, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, player: player, log: log, metrics: m}
}

// Mount registers every studio route on r.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/clips", func(r chi.Router) {
		r.Get("/", h.ListClips)
		r.Post("/", h.CreateClip)
		r.Route("/{clip_id}", func(r chi.Router) {
			r.Get("/", h.GetClip)
			r.Patch("/", h.UpdateClip)
			r.Delete("/", h.DeleteClip)
			r.Post("/processors", h.AddProcessor)
			r.Route("/processors/{index}", func(r chi.Router) {
				r.Delete("/", h.RemoveProcessor)
				r.Put("/parameters/{name}", h.SetParameterValue)
				r.Put("/parameters/{name}/keyframes", h.SetKeyframe)
				r.Delete("/parameters/{name}/keyframes", h.RemoveKeyframes)
			})
		})
	})
	r.Post("/undo", h.Undo)
	r.Post("/redo", h.Redo)
	r.Get("/history", h.History)
	r.Get("/plugins", h.Plugins)
	r.Get("/project", h.GetProject)
	r.Post("/project/save", h.SaveProject)
	if h.player != nil {
		r.Route("/transport", func(r chi.Router) {
			r.Get("/", h.TransportStatus)
			r.Post("/play", h.Play)
			r.Post("/pause", h.Pause)
			r.Post("/seek", h.Seek)
		})
	}
}

// ListClips handles GET /clips.
func (h *Handler) ListClips(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.ListClips())
}

// CreateClip handles POST /clips.
// Body: { "source": "/media/take1.wav", "start": 1.5, "length": 4.0 }.
func (h *Handler) CreateClip(w http.ResponseWriter, r *http.Request) {
	var req CreateClipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid clip body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	v, err := h.svc.CreateClip(req)
	if err != nil {
		h.fail(w, "create clip failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// GetClip handles GET /clips/{clip_id}.
func (h *Handler) GetClip(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.GetClip(chi.URLParam(r, "clip_id"))
	if err != nil {
		h.fail(w, "get clip failed", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// UpdateClip handles PATCH /clips/{clip_id}.
func (h *Handler) UpdateClip(w http.ResponseWriter, r *http.Request) {
	var req UpdateClipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid clip patch", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	v, err := h.svc.UpdateClip(chi.URLParam(r, "clip_id"), req)
	if err != nil {
		h.fail(w, "update clip failed", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// DeleteClip handles DELETE /clips/{clip_id}.
func (h *Handler) DeleteClip(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteClip(chi.URLParam(r, "clip_id")); err != nil {
		h.fail(w, "delete clip failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddProcessor handles POST /clips/{clip_id}/processors.
// Body: { "identifier": "BUILTIN: Gain", "index": 0 }.
func (h *Handler) AddProcessor(w http.ResponseWriter, r *http.Request) {
	var req AddProcessorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid processor body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	v, err := h.svc.AddProcessor(chi.URLParam(r, "clip_id"), req)
	if err != nil {
		if errors.Is(err, ErrUnresolved) && h.metrics != nil {
			h.metrics.IncResolutionFailures()
		}
		h.fail(w, "add processor failed", err)
		return
	}
	if h.metrics != nil {
		h.metrics.IncProcessorAddRequests()
	}
	writeJSON(w, http.StatusCreated, v)
}

// RemoveProcessor handles DELETE /clips/{clip_id}/processors/{index}.
func (h *Handler) RemoveProcessor(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.RemoveProcessor(chi.URLParam(r, "clip_id"), index); err != nil {
		h.fail(w, "remove processor failed", err)
		return
	}
	if h.metrics != nil {
		h.metrics.IncProcessorRemoveRequests()
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetParameterValue handles PUT /clips/{clip_id}/processors/{index}/parameters/{name}.
// Body: { "value": 0.5 }.
func (h *Handler) SetParameterValue(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	var req ParameterValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	v, err := h.svc.SetParameterValue(chi.URLParam(r, "clip_id"), index, chi.URLParam(r, "name"), req)
	if err != nil {
		h.fail(w, "set parameter failed", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// SetKeyframe handles PUT .../parameters/{name}/keyframes.
// Body: { "time": 2.0, "value": 0.8 }.
func (h *Handler) SetKeyframe(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	var req KeyframeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	v, err := h.svc.SetKeyframe(chi.URLParam(r, "clip_id"), index, chi.URLParam(r, "name"), req)
	if err != nil {
		h.fail(w, "set keyframe failed", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// RemoveKeyframes handles DELETE .../parameters/{name}/keyframes. With a
// time query parameter it removes that keyframe; without one it clears the
// whole curve.
func (h *Handler) RemoveKeyframes(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	id, name := chi.URLParam(r, "clip_id"), chi.URLParam(r, "name")

	var (
		v   ProcessorView
		err error
	)
	if raw := r.URL.Query().Get("time"); raw != "" {
		t, perr := strconv.ParseFloat(raw, 64)
		if perr != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		v, err = h.svc.RemoveKeyframe(id, index, name, t)
	} else {
		v, err = h.svc.ClearAutomation(id, index, name)
	}
	if err != nil {
		h.fail(w, "remove keyframe failed", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Undo handles POST /undo.
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Undo()
	if err != nil {
		h.fail(w, "undo failed", err)
		return
	}
	if h.metrics != nil {
		h.metrics.IncHistory("undo")
	}
	writeJSON(w, http.StatusOK, v)
}

// Redo handles POST /redo.
func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Redo()
	if err != nil {
		h.fail(w, "redo failed", err)
		return
	}
	if h.metrics != nil {
		h.metrics.IncHistory("redo")
	}
	writeJSON(w, http.StatusOK, v)
}

// History handles GET /history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.History())
}

// Plugins handles GET /plugins.
func (h *Handler) Plugins(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Plugins())
}

// GetProject handles GET /project and returns the YAML project document.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", projectContentType)
	w.WriteHeader(http.StatusOK)
	if err := h.svc.WriteProject(w); err != nil {
		h.log.Error("write project failed", slog.String("error", err.Error()))
	}
}

// SaveProject handles POST /project/save.
func (h *Handler) SaveProject(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Save(); err != nil {
		h.fail(w, "save project failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TransportStatus handles GET /transport.
func (h *Handler) TransportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.player.Status())
}

// Play handles POST /transport/play.
func (h *Handler) Play(w http.ResponseWriter, r *http.Request) {
	h.player.Play()
	writeJSON(w, http.StatusOK, h.player.Status())
}

// Pause handles POST /transport/pause.
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	h.player.Pause()
	writeJSON(w, http.StatusOK, h.player.Status())
}

// Seek handles POST /transport/seek.
// Body: { "seconds": 12.5 }.
func (h *Handler) Seek(w http.ResponseWriter, r *http.Request) {
	var req SeekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := h.player.Seek(req.Seconds); err != nil {
		h.fail(w, "seek failed", err)
		return
	}
	writeJSON(w, http.StatusOK, h.player.Status())
}

// fail maps err onto a status code and logs it at a level matching its cause.
func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(msg, slog.String("error", err.Error()))
	} else {
		h.log.Info(msg, slog.Int("status", status), slog.String("error", err.Error()))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, timeline.ErrClipNotFound),
		errors.Is(err, clip.ErrKeyframeNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, clip.ErrIndexOutOfRange),
		errors.Is(err, clip.ErrUnknownParameter),
		errors.Is(err, playback.ErrInvalidPosition):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnresolved):
		return http.StatusUnprocessableEntity
	case errors.Is(err, tree.ErrNothingToUndo),
		errors.Is(err, tree.ErrNothingToRedo):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return 0, false
	}
	return index, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
