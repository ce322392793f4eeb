package tracking

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mindease/backend/internal/auth"
	model "github.com/mindease/backend/internal/model/tracking"
	profileService "github.com/mindease/backend/internal/service/profile"
	trackingService "github.com/mindease/backend/internal/service/tracking"
	"github.com/mindease/backend/pkg/utils"
)

// Handler exposes mood and check-in tracking over HTTP.
type Handler struct {
	tracking *trackingService.Service
}

// New creates the tracking handler.
func New(tracking *trackingService.Service) *Handler {
	return &Handler{tracking: tracking}
}

// RegisterRoutes mounts the tracking routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/mood", h.handleSaveMood)
	r.Get("/mood", h.handleListMood)
	r.Post("/checkin", h.handleSaveCheckin)
	r.Get("/checkin", h.handleListCheckins)
}

type moodRequest struct {
	Date string `json:"date"`
	Mood int    `json:"mood"`
	Note string `json:"note"`
}

func (h *Handler) handleSaveMood(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var payload moodRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Date == "" {
		payload.Date = model.Today()
	}

	err := h.tracking.UpsertMood(r.Context(), userID, payload.Date, payload.Mood, payload.Note)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (h *Handler) handleListMood(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	entries, err := h.tracking.ListMood(r.Context(), userID, parseLimit(r))
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "mood history load failed")
		return
	}
	if entries == nil {
		entries = []model.MoodEntry{}
	}
	utils.RespondJSON(w, http.StatusOK, entries)
}

type checkinRequest struct {
	Date       string `json:"date"`
	Gratitude  string `json:"gratitude"`
	Reflection string `json:"reflection"`
	Goals      string `json:"goals"`
}

func (h *Handler) handleSaveCheckin(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var payload checkinRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Date == "" {
		payload.Date = model.Today()
	}

	err := h.tracking.UpsertCheckin(r.Context(), userID, model.CheckinEntry{
		Date:       payload.Date,
		Gratitude:  payload.Gratitude,
		Reflection: payload.Reflection,
		Goals:      payload.Goals,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (h *Handler) handleListCheckins(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	entries, err := h.tracking.ListCheckins(r.Context(), userID, parseLimit(r))
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "checkin history load failed")
		return
	}
	if entries == nil {
		entries = []model.CheckinEntry{}
	}
	utils.RespondJSON(w, http.StatusOK, entries)
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidDate), errors.Is(err, model.ErrInvalidMood):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, profileService.ErrNoCurrentUser):
		utils.RespondError(w, http.StatusNotFound, "no current user")
	default:
		utils.RespondError(w, http.StatusInternalServerError, "save failed")
	}
}

func parseLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}
