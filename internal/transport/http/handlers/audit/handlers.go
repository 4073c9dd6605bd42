package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"pdr/internal/domain/audit"
	"pdr/internal/transport/http/api"
	"pdr/internal/transport/http/middleware"
	"pdr/internal/transport/http/shared"
)

type Handler struct {
	Audit *audit.Service
}

func New(svc *audit.Service) *Handler {
	return &Handler{Audit: svc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireRole("CEO")).Get("/audit", h.List)
}

// List returns the audit trail, newest first. Route-level RBAC restricts
// this to the CEO.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	q := r.URL.Query()
	from, err := shared.ParseDate(q.Get("from"))
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "bad_request", "from must be RFC3339 or YYYY-MM-DD", reqID)
		return
	}
	to, err := shared.ParseDate(q.Get("to"))
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "bad_request", "to must be RFC3339 or YYYY-MM-DD", reqID)
		return
	}
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entityType"),
		EntityID:   q.Get("entityId"),
		ActorUser:  q.Get("actor"),
		From:       from,
		To:         to,
	}
	includeDetails := q.Get("details") == "true"
	page := shared.ParsePagination(r, 50, 200)

	total, err := h.Audit.Count(r.Context(), filter)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to query audit trail", reqID)
		return
	}
	events, err := h.Audit.List(r.Context(), filter, includeDetails, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to query audit trail", reqID)
		return
	}

	api.Success(w, map[string]any{
		"events": events,
		"total":  total,
		"limit":  page.Limit,
		"offset": page.Offset,
	}, reqID)
}
