package viewer

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"multiview-sync/internal/offsetstore"
	"multiview-sync/internal/syncengine"

	"github.com/go-chi/chi/v5"
)

// Controller is the part of the sync engine the viewer drives.
type Controller interface {
	Resync()
	SetVisible(visible bool)
	Visible() bool
	Mode() syncengine.PlaybackMode
	Interval() time.Duration
}

// OverrideEditor edits the user offset overrides.
type OverrideEditor interface {
	Snapshot() map[string]float64
	Set(key string, seconds float64) error
	Delete(key string) error
}

// PlayerServer serves the player connection of one window.
type PlayerServer interface {
	ServeWindow(w http.ResponseWriter, r *http.Request, window syncengine.WindowID)
}

// Handler exposes the viewer HTTP endpoints using go-chi.
type Handler struct {
	svc       *Service
	engine    Controller
	overrides OverrideEditor
	players   PlayerServer
	handles   syncengine.HandleLookup
	log       *slog.Logger
}

// NewHandler returns a Handler serving the layout in svc. handles reports
// which windows have a connected player.
func NewHandler(svc *Service, engine Controller, overrides OverrideEditor, players PlayerServer, handles syncengine.HandleLookup, log *slog.Logger) *Handler {
	return &Handler{
		svc:       svc,
		engine:    engine,
		overrides: overrides,
		players:   players,
		handles:   handles,
		log:       log,
	}
}

// Register mounts the viewer routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/session", h.GetSession)
	r.Route("/windows", func(r chi.Router) {
		r.Get("/", h.ListWindows)
		r.Put("/", h.ReplaceWindows)
		r.Post("/", h.AddWindow)
		r.Delete("/{window_id}", h.RemoveWindow)
		r.Get("/{window_id}/player", h.ServePlayer)
	})
	r.Route("/overrides", func(r chi.Router) {
		r.Get("/", h.ListOverrides)
		r.Put("/{key}", h.SetOverride)
		r.Delete("/{key}", h.DeleteOverride)
	})
	r.Post("/visibility", h.SetVisibility)
	r.Post("/resync", h.Resync)
}

type windowStatus struct {
	syncengine.Window
	Connected bool `json:"connected"`
}

type sessionResponse struct {
	Mode       string         `json:"mode"`
	Visible    bool           `json:"visible"`
	IntervalMS int64          `json:"interval_ms"`
	Windows    []windowStatus `json:"windows"`
}

// GetSession handles GET /session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	windows := h.svc.Windows()
	status := make([]windowStatus, 0, len(windows))
	for _, win := range windows {
		_, ok := h.handles.Handle(win.ID)
		status = append(status, windowStatus{Window: win, Connected: ok})
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Mode:       h.engine.Mode().String(),
		Visible:    h.engine.Visible(),
		IntervalMS: h.engine.Interval().Milliseconds(),
		Windows:    status,
	})
}

// ListWindows handles GET /windows.
func (h *Handler) ListWindows(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Windows())
}

// ReplaceWindows handles PUT /windows.
// Body: [{ "id": "w1", "role": "main" }, { "role": "driver", "driver_id": "44" }].
func (h *Handler) ReplaceWindows(w http.ResponseWriter, r *http.Request) {
	var windows []syncengine.Window
	if err := json.NewDecoder(r.Body).Decode(&windows); err != nil {
		h.log.Debug("invalid windows body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	out, err := h.svc.Replace(windows)
	if err != nil {
		h.writeLayoutError(w, err)
		return
	}

	h.log.Info("window layout replaced", slog.Int("windows", len(out)))
	writeJSON(w, http.StatusOK, out)
}

// AddWindow handles POST /windows.
// Body: { "role": "driver", "driver_id": "44" }.
func (h *Handler) AddWindow(w http.ResponseWriter, r *http.Request) {
	var win syncengine.Window
	if err := json.NewDecoder(r.Body).Decode(&win); err != nil {
		h.log.Debug("invalid window body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	added, err := h.svc.Add(win)
	if err != nil {
		h.writeLayoutError(w, err)
		return
	}

	h.log.Info("window opened",
		slog.String("window_id", string(added.ID)),
		slog.String("role", string(added.Role)))
	writeJSON(w, http.StatusCreated, added)
}

// RemoveWindow handles DELETE /windows/{window_id}.
func (h *Handler) RemoveWindow(w http.ResponseWriter, r *http.Request) {
	id := syncengine.WindowID(chi.URLParam(r, "window_id"))
	if err := h.svc.Remove(id); err != nil {
		h.writeLayoutError(w, err)
		return
	}

	h.log.Info("window closed", slog.String("window_id", string(id)))
	w.WriteHeader(http.StatusNoContent)
}

// ServePlayer handles GET /windows/{window_id}/player, upgrading to the
// player websocket protocol.
func (h *Handler) ServePlayer(w http.ResponseWriter, r *http.Request) {
	id := syncengine.WindowID(chi.URLParam(r, "window_id"))
	if !h.svc.Has(id) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	h.players.ServeWindow(w, r, id)
}

// ListOverrides handles GET /overrides.
func (h *Handler) ListOverrides(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.overrides.Snapshot())
}

type overrideBody struct {
	Seconds *float64 `json:"seconds"`
}

// SetOverride handles PUT /overrides/{key}.
// Body: { "seconds": -1.5 }.
func (h *Handler) SetOverride(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var body overrideBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Seconds == nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.overrides.Set(key, *body.Seconds); err != nil {
		h.writeOverrideError(w, key, err)
		return
	}

	h.log.Info("offset override set", slog.String("key", key), slog.Float64("seconds", *body.Seconds))
	w.WriteHeader(http.StatusNoContent)
}

// DeleteOverride handles DELETE /overrides/{key}.
func (h *Handler) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := h.overrides.Delete(key); err != nil {
		h.writeOverrideError(w, key, err)
		return
	}

	h.log.Info("offset override removed", slog.String("key", key))
	w.WriteHeader(http.StatusNoContent)
}

// SetVisibility handles POST /visibility.
// Body: { "visible": true }.
func (h *Handler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Visible *bool `json:"visible"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Visible == nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.engine.SetVisible(*body.Visible)
	w.WriteHeader(http.StatusNoContent)
}

// Resync handles POST /resync, requesting a forced reconciliation pass.
func (h *Handler) Resync(w http.ResponseWriter, r *http.Request) {
	h.engine.Resync()
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) writeLayoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrWindowNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, ErrMultipleReferences), errors.Is(err, ErrDuplicateWindow):
		h.log.Info("window layout rejected", slog.String("error", err.Error()))
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, ErrUnknownRole), errors.Is(err, ErrMissingDriverID):
		writeError(w, http.StatusBadRequest, err)
	default:
		h.log.Error("window layout update failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (h *Handler) writeOverrideError(w http.ResponseWriter, key string, err error) {
	switch {
	case errors.Is(err, offsetstore.ErrInvalidKey):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, offsetstore.ErrUnknownKey):
		w.WriteHeader(http.StatusNotFound)
	default:
		h.log.Error("offset override update failed", slog.String("key", key), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
