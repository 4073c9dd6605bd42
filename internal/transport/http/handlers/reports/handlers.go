package reports

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pdr/internal/domain/pdr"
	"pdr/internal/domain/reports"
	"pdr/internal/transport/http/api"
	"pdr/internal/transport/http/middleware"
)

type Handler struct {
	Reports *reports.Service
	PDRs    *pdr.Service
}

func New(reportsSvc *reports.Service, pdrSvc *pdr.Service) *Handler {
	return &Handler{Reports: reportsSvc, PDRs: pdrSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireRole(string(pdr.RoleCEO))).Get("/reports/cycle-summary", h.CycleSummary)
	r.With(middleware.RequireAuth).Get("/reports/pdrs/{id}/document", h.PDRDocument)
}

// CycleSummary reports the review-cycle counters for one financial year.
// Route-level RBAC restricts this to the CEO.
func (h *Handler) CycleSummary(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	fyLabel := r.URL.Query().Get("fy")
	if fyLabel == "" {
		fyLabel = pdr.FYLabel(time.Now())
	}

	summary, err := h.Reports.CycleSummary(r.Context(), fyLabel)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to build cycle summary", reqID)
		return
	}
	api.Success(w, summary, reqID)
}

// PDRDocument renders a PDR as a PDF. The aggregate is redacted for the
// caller first, so an employee download never contains unreleased CEO fields.
func (h *Handler) PDRDocument(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	actor := pdr.Actor{ID: user.UserID, DisplayName: user.Name, Role: pdr.Role(user.Role)}

	p, _, err := h.PDRs.Get(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		api.Fail(w, http.StatusNotFound, "not_found", "pdr not found", reqID)
		return
	}

	redacted := pdr.RedactForActor(p, actor.Role, actor.ID)
	doc, err := h.Reports.GeneratePDRPDF(r.Context(), redacted)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to render document", reqID)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "pdr-"+p.FYLabel+".pdf"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}
