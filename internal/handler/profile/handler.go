package profile

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mindease/backend/internal/auth"
	model "github.com/mindease/backend/internal/model/profile"
	profileService "github.com/mindease/backend/internal/service/profile"
	trackingService "github.com/mindease/backend/internal/service/tracking"
	"github.com/mindease/backend/pkg/utils"
)

// Handler exposes the profile lifecycle over HTTP.
type Handler struct {
	profiles *profileService.Service
	tracking *trackingService.Service
	tokens   *auth.Manager
}

// New creates the profile handler.
func New(profiles *profileService.Service, tracking *trackingService.Service, tokens *auth.Manager) *Handler {
	return &Handler{profiles: profiles, tracking: tracking, tokens: tokens}
}

// RegisterPublicRoutes mounts the routes reachable without a token.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
}

// RegisterRoutes mounts the authenticated profile routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/profile", h.handleGet)
	r.Patch("/profile", h.handleUpdate)
	r.Delete("/profile", h.handleDelete)
	r.Get("/profile/export", h.handleExport)
}

type loginRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
}

type loginResponse struct {
	User  model.User `json:"user"`
	Token string     `json:"token"`
}

// handleLogin loads the current profile, or creates one from the
// submitted fields, and issues a session token for it.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.profiles.Login(r.Context(), model.User{
		Name:   payload.Name,
		Email:  payload.Email,
		Avatar: payload.Avatar,
	})
	if err != nil {
		if errors.Is(err, profileService.ErrNameRequired) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "login failed")
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "token issue failed")
		return
	}
	utils.RespondJSON(w, http.StatusOK, loginResponse{User: user, Token: token})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, user)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.currentUser(w, r); !ok {
		return
	}

	var patch model.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.profiles.Update(r.Context(), patch)
	if err != nil {
		if errors.Is(err, profileService.ErrNoCurrentUser) {
			utils.RespondError(w, http.StatusNotFound, "no current user")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "update failed")
		return
	}
	utils.RespondJSON(w, http.StatusOK, user)
}

// handleDelete irreversibly removes the account and every record
// scoped to it. The confirm flag is the single explicit confirmation.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.currentUser(w, r); !ok {
		return
	}
	if r.URL.Query().Get("confirm") != "true" {
		utils.RespondError(w, http.StatusBadRequest, "account deletion requires confirm=true")
		return
	}

	if err := h.profiles.Clear(r.Context()); err != nil {
		if errors.Is(err, profileService.ErrNoCurrentUser) {
			utils.RespondError(w, http.StatusNotFound, "no current user")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "deletion failed")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.currentUser(w, r); !ok {
		return
	}

	bundle, err := h.tracking.Export(r.Context())
	if err != nil {
		if errors.Is(err, profileService.ErrNoCurrentUser) {
			utils.RespondError(w, http.StatusNotFound, "no current user")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="mindease-data.json"`)
	utils.RespondJSON(w, http.StatusOK, bundle)
}

// currentUser resolves the profile and checks it still matches the
// token, guarding against tokens issued for a deleted account.
func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (model.User, bool) {
	tokenUser, _ := auth.UserID(r.Context())
	user, ok, err := h.profiles.LoadCurrent(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "profile load failed")
		return model.User{}, false
	}
	if !ok || user.ID != tokenUser {
		utils.RespondError(w, http.StatusUnauthorized, "session no longer valid")
		return model.User{}, false
	}
	return user, true
}
