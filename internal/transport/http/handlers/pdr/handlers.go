package pdr

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"pdr/internal/domain/notifications"
	"pdr/internal/domain/pdr"
	"pdr/internal/transport/http/api"
	"pdr/internal/transport/http/middleware"
	"pdr/internal/transport/http/shared"
)

// AuditRecorder is the slice of the audit service these handlers write to.
type AuditRecorder interface {
	Record(ctx context.Context, actorID, action, entityType, entityID, requestID, ip string, before, after any) error
}

type Handler struct {
	PDRs          *pdr.Service
	Notifications *notifications.Service
	Audit         AuditRecorder
}

func New(pdrSvc *pdr.Service, notifSvc *notifications.Service, auditSvc AuditRecorder) *Handler {
	return &Handler{PDRs: pdrSvc, Notifications: notifSvc, Audit: auditSvc}
}

func actorFrom(r *http.Request) (pdr.Actor, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		return pdr.Actor{}, false
	}
	return pdr.Actor{ID: user.UserID, DisplayName: user.Name, Role: pdr.Role(user.Role)}, true
}

// pdrPayload is the read shape: the redacted aggregate plus the caller's
// resolved capabilities, so clients never guess what they may edit.
type pdrPayload struct {
	PDR    *pdr.PDR   `json:"pdr"`
	Access pdr.Access `json:"access"`
}

func (h *Handler) payloadFor(p *pdr.PDR, actor pdr.Actor) pdrPayload {
	redacted := pdr.RedactForActor(p, actor.Role, actor.ID)
	access := pdr.ResolveAccess(p.Status, p.IsLocked, actor.Role, actor.ID == p.UserID)
	return pdrPayload{PDR: redacted, Access: access}
}

// failFromError maps domain errors onto the response envelope. Each sentinel
// keeps its own code so clients can branch without parsing messages: a
// status_conflict means refetch and retry, an already_calibrated means stop.
func failFromError(w http.ResponseWriter, r *http.Request, err error) {
	reqID := middleware.GetRequestID(r.Context())

	var invalid *pdr.InvalidTransitionError
	var validation *pdr.ValidationError
	var forbidden *pdr.ForbiddenError

	switch {
	case errors.As(err, &validation):
		api.FailWithDetails(w, http.StatusBadRequest, "validation_failed", "transition requirements not met",
			map[string]any{"errors": validation.Errors}, reqID)
	case errors.As(err, &invalid):
		api.Fail(w, http.StatusBadRequest, "invalid_state_transition", invalid.Reason, reqID)
	case errors.Is(err, pdr.ErrUnknownAction):
		api.Fail(w, http.StatusBadRequest, "unknown_action", err.Error(), reqID)
	case errors.As(err, &forbidden):
		code := "insufficient_permissions"
		if forbidden.ReadOnly {
			code = "pdr_read_only"
		}
		api.Fail(w, http.StatusForbidden, code, forbidden.Reason, reqID)
	case errors.Is(err, pdr.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "pdr_not_found", err.Error(), reqID)
	case errors.Is(err, pdr.ErrGoalNotFound):
		api.Fail(w, http.StatusNotFound, "goal_not_found", err.Error(), reqID)
	case errors.Is(err, pdr.ErrBehaviorNotFound):
		api.Fail(w, http.StatusNotFound, "behavior_not_found", err.Error(), reqID)
	case errors.Is(err, pdr.ErrPDRExists):
		api.Fail(w, http.StatusConflict, "pdr_exists", err.Error(), reqID)
	case errors.Is(err, pdr.ErrBehaviorExists):
		api.Fail(w, http.StatusConflict, "behavior_exists", err.Error(), reqID)
	case errors.Is(err, pdr.ErrStatusConflict):
		api.Fail(w, http.StatusConflict, "status_conflict", err.Error(), reqID)
	case errors.Is(err, pdr.ErrAlreadyCalibrated):
		api.Fail(w, http.StatusConflict, "already_calibrated", err.Error(), reqID)
	default:
		slog.Error("pdr request failed", "error", err, "path", r.URL.Path, "requestId", reqID)
		api.Fail(w, http.StatusInternalServerError, "internal_error", "request failed", reqID)
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := actorFrom(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	p, err := h.PDRs.Create(r.Context(), actor, time.Now())
	if err != nil {
		failFromError(w, r, err)
		return
	}

	if err := h.Audit.Record(r.Context(), actor.ID, "pdr.create", "pdr", p.ID, reqID, clientIP(r), nil,
		map[string]any{"status": p.Status, "fyLabel": p.FYLabel}); err != nil {
		slog.Warn("audit pdr.create failed", "err", err)
	}
	api.Created(w, h.payloadFor(p, actor), reqID)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := actorFrom(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	items, err := h.PDRs.List(r.Context(), actor)
	if err != nil {
		failFromError(w, r, err)
		return
	}
	api.Success(w, map[string]any{"pdrs": items, "total": len(items)}, reqID)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := actorFrom(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	p, _, err := h.PDRs.Get(r.Context(), chi.URLParam(r, "id"), actor)
	if err != nil {
		failFromError(w, r, err)
		return
	}
	api.Success(w, h.payloadFor(p, actor), reqID)
}

func (h *Handler) CompanyValues(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	values, err := h.PDRs.CompanyValues(r.Context())
	if err != nil {
		failFromError(w, r, err)
		return
	}
	api.Success(w, map[string]any{"companyValues": values}, reqID)
}

type currentStepRequest struct {
	Step int `json:"step"`
}

func (h *Handler) SetCurrentStep(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := actorFrom(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	var req currentStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "bad_request", "invalid JSON payload", reqID)
		return
	}

	p, err := h.PDRs.SetCurrentStep(r.Context(), chi.URLParam(r, "id"), actor, req.Step)
	if err != nil {
		failFromError(w, r, err)
		return
	}
	api.Success(w, h.payloadFor(p, actor), reqID)
}

type goalRequest struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	TargetOutcome   string `json:"targetOutcome"`
	SuccessCriteria string `json:"successCriteria"`
	Priority        string `json:"priority"`
}

func (req goalRequest) validate() *shared.Validator {
	v := &shared.Validator{}
	v.Required("title", req.Title)
	v.MaxLen("title", req.Title, 200)
	v.Enum("priority", req.Priority, string(pdr.PriorityHigh), string(pdr.PriorityMedium), string(pdr.PriorityLow))
	return v
}

func (h *Handler) AddGoal(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := actorFrom(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	var req goalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "bad_request", "invalid JSON payload", reqID)
		return
	}
	if v := req.validate(); v.HasIssues() {
		shared.FailValidation(w, r, v)
		return
	}

	p, err := h.PDRs.AddGoal(r.Context(), chi.URLParam(r, "id"), actor, pdr.Goal{
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		TargetOutcome:   req.TargetOutcome,
		SuccessCriteria: req.SuccessCriteria,
		Priority:        pdr.Priority(req.Priority),
	})
	if err != nil {
		failFromError(w, r, err)
		return
	}
	api.Created(w, h.payloadFor(p, actor), reqID)
}

func (h *Handler) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := actorFrom(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	var req goalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "bad_request", "invalid JSON payload", reqID)
		return
	}
	if v := req.validate(); v.HasIssues() {
		shared.FailValidation(w, r, v)
		return
	}

	p, err := h.PDRs.UpdateGoal(r.Context(), chi.URLParam(r, "id"), actor, pdr.Goal{
		ID:              chi.URLParam(r, "goalId"),
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		TargetOutcome:   req.TargetOutcome,
		SuccessCriteria: req.SuccessCriteria,
		Priority:        pdr.Priority(req.Priority),
	})
	if err != nil {
		failFromError(w, r, err)
		return
	}
	api.Success(w, h.payloadFor(p, actor), reqID)
}

func (h *Handler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := actorFrom(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	p, err := h.PDRs.DeleteGoal(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "goalId"), actor)
	if err != nil {
		failFromError(w, r, err)
		return
	}
	api.Success(w, h.payloadFor(p, actor), reqID)
}

type behaviorRequest struct {
	CompanyValueID string `json:"companyValueId"`
	Description    string `json:"description"`
	Examples       string `json:"examples"`
}

func (h *Handler) AddBehavior(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := actorFrom(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	var req behaviorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "bad_request", "invalid JSON payload", reqID)
		return
	}
	v := &shared.Validator{}
	v.Required("companyValueId", req.CompanyValueID)
	v.Required("description", req.Description)
	if v.HasIssues() {
		shared.FailValidation(w, r, v)
		return
	}

	p, err := h.PDRs.AddBehavior(r.Context(), chi.URLParam(r, "id"), actor, pdr.Behavior{
		CompanyValueID: req.CompanyValueID,
		Description:    req.Description,
		Examples:       req.Examples,
	})
	if err != nil {
		failFromError(w, r, err)
		return
	}
	api.Created(w, h.payloadFor(p, actor), reqID)
}

func (h *Handler) UpdateBehavior(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := actorFrom(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	var req behaviorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "bad_request", "invalid JSON payload", reqID)
		return
	}

	p, err := h.PDRs.UpdateBehavior(r.Context(), chi.URLParam(r, "id"), actor, pdr.Behavior{
		ID:             chi.URLParam(r, "behaviorId"),
		CompanyValueID: req.CompanyValueID,
		Description:    req.Description,
		Examples:       req.Examples,
	})
	if err != nil {
		failFromError(w, r, err)
		return
	}
	api.Success(w, h.payloadFor(p, actor), reqID)
}

func (h *Handler) DeleteBehavior(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := actorFrom(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	p, err := h.PDRs.DeleteBehavior(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "behaviorId"), actor)
	if err != nil {
		failFromError(w, r, err)
		return
	}
	api.Success(w, h.payloadFor(p, actor), reqID)
}

type goalRatingsRequest struct {
	Updates []pdr.GoalRatingUpdate `json:"updates"`
}

// SaveGoalRatings persists a batch of per-goal rating updates. On partial
// failure the response still reports 200 with the per-record breakdown, so
// the client can retry only what failed.
func (h *Handler) SaveGoalRatings(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := actorFrom(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	var req goalRatingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "bad_request", "invalid JSON payload", reqID)
		return
	}
	if len(req.Updates) == 0 {
		api.Fail(w, http.StatusBadRequest, "bad_request", "updates must not be empty", reqID)
		return
	}

	result, p, err := h.PDRs.SaveGoalRatings(r.Context(), chi.URLParam(r, "id"), actor, req.Updates)
	if err != nil {
		failFromError(w, r, err)
		return
	}
	h.writeBatchResult(w, r, actor, result, p, "pdr.goal_ratings")
}

type behaviorRatingsRequest struct {
	Updates []pdr.BehaviorRatingUpdate `json:"updates"`
}

func (h *Handler) SaveBehaviorRatings(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := actorFrom(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	var req behaviorRatingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "bad_request", "invalid JSON payload", reqID)
		return
	}
	if len(req.Updates) == 0 {
		api.Fail(w, http.StatusBadRequest, "bad_request", "updates must not be empty", reqID)
		return
	}

	result, p, err := h.PDRs.SaveBehaviorRatings(r.Context(), chi.URLParam(r, "id"), actor, req.Updates)
	if err != nil {
		failFromError(w, r, err)
		return
	}
	h.writeBatchResult(w, r, actor, result, p, "pdr.behavior_ratings")
}

func (h *Handler) writeBatchResult(w http.ResponseWriter, r *http.Request, actor pdr.Actor, result pdr.BatchResult, p *pdr.PDR, auditAction string) {
	reqID := middleware.GetRequestID(r.Context())
	if err := h.Audit.Record(r.Context(), actor.ID, auditAction, "pdr", p.ID, reqID, clientIP(r), nil,
		map[string]any{"total": result.Total, "saved": len(result.Saved), "failed": len(result.Failed)}); err != nil {
		slog.Warn("audit "+auditAction+" failed", "err", err)
	}

	payload := map[string]any{
		"result": result,
		"pdr":    pdr.RedactForActor(p, actor.Role, actor.ID),
	}
	if !result.AllSaved() {
		payload["message"] = result.Summary()
	}
	api.Success(w, payload, reqID)
}

type midYearRequest struct {
	ProgressSummary  string `json:"progressSummary"`
	EmployeeComments string `json:"employeeComments"`
}

func (h *Handler) WriteMidYear(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := actorFrom(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	var req midYearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "bad_request", "invalid JSON payload", reqID)
		return
	}

	p, err := h.PDRs.WriteMidYear(r.Context(), chi.URLParam(r, "id"), actor, req.ProgressSummary, req.EmployeeComments)
	if err != nil {
		failFromError(w, r, err)
		return
	}
	api.Success(w, h.payloadFor(p, actor), reqID)
}

type endYearRequest struct {
	Achievements     string `json:"achievements"`
	EmployeeComments string `json:"employeeComments"`
}

func (h *Handler) WriteEndYear(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := actorFrom(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	var req endYearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Fail(w, http.StatusBadRequest, "bad_request", "invalid JSON payload", reqID)
		return
	}

	p, err := h.PDRs.WriteEndYear(r.Context(), chi.URLParam(r, "id"), actor, req.Achievements, req.EmployeeComments)
	if err != nil {
		failFromError(w, r, err)
		return
	}
	api.Success(w, h.payloadFor(p, actor), reqID)
}

func clientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		parts := strings.Split(fwd, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}
