package notifications

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pdr/internal/domain/notifications"
	"pdr/internal/transport/http/api"
	"pdr/internal/transport/http/middleware"
	"pdr/internal/transport/http/shared"
)

type Handler struct {
	Notifications *notifications.Service
}

func New(svc *notifications.Service) *Handler {
	return &Handler{Notifications: svc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.List)
			r.Get("/unread-count", h.UnreadCount)
			r.Post("/{id}/read", h.MarkRead)
			r.Post("/read-all", h.MarkAllRead)
			r.With(middleware.RequireRole("CEO")).Get("/settings", h.GetSettings)
			r.With(middleware.RequireRole("CEO")).Put("/settings", h.UpdateSettings)
		})
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	page := shared.ParsePagination(r, 20, 100)
	items, err := h.Notifications.List(r.Context(), user.UserID, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to list notifications", reqID)
		return
	}
	total, err := h.Notifications.Count(r.Context(), user.UserID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to list notifications", reqID)
		return
	}

	api.Success(w, map[string]any{
		"notifications": items,
		"total":         total,
		"limit":         page.Limit,
		"offset":        page.Offset,
	}, reqID)
}

func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	count, err := h.Notifications.UnreadCount(r.Context(), user.UserID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to count notifications", reqID)
		return
	}
	api.Success(w, map[string]int{"unread": count}, reqID)
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	if err := h.Notifications.MarkRead(r.Context(), user.UserID, chi.URLParam(r, "id")); err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to mark notification read", reqID)
		return
	}
	api.Success(w, map[string]string{"status": "read"}, reqID)
}

func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	if err := h.Notifications.MarkAllRead(r.Context(), user.UserID); err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to mark notifications read", reqID)
		return
	}
	api.Success(w, map[string]string{"status": "read"}, reqID)
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	enabled, from, err := h.Notifications.GetSettings(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to load settings", reqID)
		return
	}
	api.Success(w, map[string]any{"emailEnabled": enabled, "emailFrom": from}, reqID)
}

type settingsRequest struct {
	EmailEnabled bool   `json:"emailEnabled"`
	EmailFrom    string `json:"emailFrom"`
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "bad_request", "invalid JSON payload", reqID)
		return
	}

	if err := h.Notifications.UpdateSettings(r.Context(), req.EmailEnabled, req.EmailFrom); err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to update settings", reqID)
		return
	}
	api.Success(w, map[string]any{"emailEnabled": req.EmailEnabled, "emailFrom": req.EmailFrom}, reqID)
}
