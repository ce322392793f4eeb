package chat

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	sessionService "github.com/mindease/backend/internal/service/session"
	"github.com/mindease/backend/pkg/utils"
)

// Handler exposes chat session control and the event feeds the UI
// subscribes to.
type Handler struct {
	sessions *sessionService.Registry
	upgrader websocket.Upgrader
}

// New creates the chat handler.
func New(sessions *sessionService.Registry) *Handler {
	return &Handler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// RegisterRoutes mounts the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/session", h.handleCreateSession)
	r.Delete("/chat/{sessionID}", h.handleEndSession)
	r.Post("/chat/{sessionID}/messages", h.handleSubmit)
	r.Post("/chat/{sessionID}/retry", h.handleRetry)
	r.Post("/chat/{sessionID}/cancel", h.handleCancel)
	r.Post("/chat/{sessionID}/route", h.handleSwitchRoute)
	r.Get("/chat/{sessionID}/events", h.handleEvents)
	r.Get("/chat/{sessionID}/ws", h.handleWebSocket)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctrl := h.sessions.Create()
	utils.RespondJSON(w, http.StatusCreated, ctrl.Snapshot())
}

func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	h.sessions.Delete(chi.URLParam(r, "sessionID"))
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}

	var payload struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := ctrl.Submit(payload.Content); err != nil {
		respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "submitted"})
}

func (h *Handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := ctrl.Retry(); err != nil {
		respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "retrying"})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := ctrl.Cancel(); err != nil {
		respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "canceled"})
}

func (h *Handler) handleSwitchRoute(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	route, err := ctrl.SwitchRoute()
	if err != nil {
		respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"route": string(route)})
}

// handleEvents streams session events over Server-Sent Events. The
// first frame is a full snapshot; live events follow.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}
	flusher, flushable := w.(http.Flusher)
	if !flushable {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)
	utils.SendSSEChunk(w, flusher, map[string]any{"type": "snapshot", "snapshot": ctrl.Snapshot()})

	subID, events := ctrl.Subscribe()
	defer ctrl.Unsubscribe(subID)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			utils.SendSSEChunk(w, flusher, ev)
		}
	}
}

// handleWebSocket streams the same event feed over a WebSocket, for
// clients that prefer a duplex connection.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.session(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[chat] websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{"type": "snapshot", "snapshot": ctrl.Snapshot()}); err != nil {
		return
	}

	subID, events := ctrl.Subscribe()
	defer ctrl.Unsubscribe(subID)

	// Reads only serve to detect the peer closing.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case ev, open := <-events:
			if !open {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*sessionService.Controller, bool) {
	ctrl, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return ctrl, true
}

func respondSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sessionService.ErrEmptyMessage):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, sessionService.ErrBusy):
		utils.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, sessionService.ErrNotCancelable), errors.Is(err, sessionService.ErrNothingToRetry):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, "chat operation failed")
	}
}
