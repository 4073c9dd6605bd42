package pdr

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pdr/internal/domain/pdr"
	"pdr/internal/transport/http/api"
	"pdr/internal/transport/http/middleware"
)

// transitionRequest is the shared shape for every lifecycle endpoint. Fields
// that do not apply to a given action are ignored by the evaluator.
type transitionRequest struct {
	ExpectedStatus string `json:"expectedStatus"`
	Feedback       string `json:"feedback"`
	OverallRating  *int   `json:"overallRating"`
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, pdr.ActionSubmitForReview)
}

func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, pdr.ActionSubmitCeoReview)
}

func (h *Handler) BookMeeting(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, pdr.ActionMarkBooked)
}

func (h *Handler) SubmitMidYear(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, pdr.ActionSubmitMidYear)
}

func (h *Handler) ApproveMidYear(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, pdr.ActionApproveMidYear)
}

func (h *Handler) SubmitEndYear(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, pdr.ActionSubmitEndYear)
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, pdr.ActionCompleteReview)
}

func (h *Handler) Calibrate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, pdr.ActionCloseCalibration)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, action pdr.Action) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := actorFrom(r)
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		api.Fail(w, http.StatusBadRequest, "bad_request", "invalid JSON payload", reqID)
		return
	}

	in := pdr.TransitionInput{
		Feedback:      req.Feedback,
		OverallRating: req.OverallRating,
	}
	if req.ExpectedStatus != "" {
		expected := pdr.Status(req.ExpectedStatus)
		in.ExpectedStatus = &expected
	}

	pdrID := chi.URLParam(r, "id")
	before, _, err := h.PDRs.Get(r.Context(), pdrID, actor)
	if err != nil {
		failFromError(w, r, err)
		return
	}

	updated, notes, err := h.PDRs.Transition(r.Context(), pdrID, action, actor, in, time.Now())
	if err != nil {
		failFromError(w, r, err)
		return
	}

	h.dispatch(r, notes)

	if err := h.Audit.Record(r.Context(), actor.ID, "pdr."+string(action), "pdr", updated.ID, reqID, clientIP(r),
		map[string]any{"status": before.Status},
		map[string]any{"status": updated.Status, "isLocked": updated.IsLocked, "calibrated": updated.Calibrated()}); err != nil {
		slog.Warn("audit pdr."+string(action)+" failed", "err", err)
	}

	api.Success(w, h.payloadFor(updated, actor), reqID)
}

// dispatch stores the resolved notifications. Delivery problems are logged
// and never fail the transition that produced them.
func (h *Handler) dispatch(r *http.Request, notes []pdr.Notification) {
	for _, note := range notes {
		if note.RecipientID == "" {
			continue
		}
		if err := h.Notifications.Create(r.Context(), note.RecipientID, note.Type, note.Title, note.Body); err != nil {
			slog.Warn("notification dispatch failed",
				"error", err,
				"recipient", note.RecipientID,
				"type", note.Type,
			)
		}
	}
}
