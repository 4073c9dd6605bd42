package pdr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pdr/internal/domain/pdr"
	"pdr/internal/transport/http/api"
)

type auditRecorderFunc func(ctx context.Context, actorID, action, entityType, entityID, requestID, ip string, before, after any) error

func (f auditRecorderFunc) Record(ctx context.Context, actorID, action, entityType, entityID, requestID, ip string, before, after any) error {
	return f(ctx, actorID, action, entityType, entityID, requestID, ip, before, after)
}

func TestFailFromErrorCodes(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", &pdr.ValidationError{Errors: []string{"At least 1 goal is required"}}, http.StatusBadRequest, "validation_failed"},
		{"invalid transition", &pdr.InvalidTransitionError{Reason: "Cannot submit from COMPLETED"}, http.StatusBadRequest, "invalid_state_transition"},
		{"unknown action", fmt.Errorf("%w: teleport", pdr.ErrUnknownAction), http.StatusBadRequest, "unknown_action"},
		{"permissions", &pdr.ForbiddenError{Reason: "Only the PDR owner can perform this action"}, http.StatusForbidden, "insufficient_permissions"},
		{"read only", &pdr.ForbiddenError{Reason: "PDR is locked and cannot be modified", ReadOnly: true}, http.StatusForbidden, "pdr_read_only"},
		{"pdr not found", pdr.ErrNotFound, http.StatusNotFound, "pdr_not_found"},
		{"goal not found", pdr.ErrGoalNotFound, http.StatusNotFound, "goal_not_found"},
		{"behavior not found", pdr.ErrBehaviorNotFound, http.StatusNotFound, "behavior_not_found"},
		{"pdr exists", pdr.ErrPDRExists, http.StatusConflict, "pdr_exists"},
		{"behavior exists", pdr.ErrBehaviorExists, http.StatusConflict, "behavior_exists"},
		{"status conflict", pdr.ErrStatusConflict, http.StatusConflict, "status_conflict"},
		{"already calibrated", pdr.ErrAlreadyCalibrated, http.StatusConflict, "already_calibrated"},
		{"unmapped", fmt.Errorf("connection reset"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/pdrs/pdr-1/submit", nil)

			failFromError(rec, req, tc.err)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			var env api.Envelope
			if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
				t.Fatalf("decode envelope: %v", err)
			}
			if env.Success {
				t.Fatal("failure envelope must not report success")
			}
			if env.Error == nil || env.Error.Code != tc.wantCode {
				t.Fatalf("error = %+v, want code %q", env.Error, tc.wantCode)
			}
		})
	}
}

func TestFailFromErrorValidationDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/pdrs/pdr-1/submit", nil)

	failFromError(rec, req, &pdr.ValidationError{Errors: []string{
		"At least 1 goal is required",
		"At least 1 behavior is required",
	}})

	var env struct {
		Error struct {
			Details struct {
				Errors []string `json:"errors"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if len(env.Error.Details.Errors) != 2 {
		t.Fatalf("expected both violations in details, got %v", env.Error.Details.Errors)
	}
}

func TestBatchResultAuditFailureIsLoggedNotFatal(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	h := &Handler{Audit: auditRecorderFunc(func(context.Context, string, string, string, string, string, string, any, any) error {
		return fmt.Errorf("insert failed")
	})}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/pdrs/pdr-1/goals/ratings", nil)
	p := &pdr.PDR{ID: "pdr-1", UserID: "emp-1", Status: pdr.StatusPlanLocked, IsLocked: true}
	result := pdr.BatchResult{
		Total:  2,
		Saved:  []string{"g1"},
		Failed: []pdr.BatchFailure{{ID: "g2", Reason: "goal not found"}},
	}

	h.writeBatchResult(rec, req, pdr.Actor{ID: "emp-1", DisplayName: "Alex Chen", Role: pdr.RoleEmployee}, result, p, "pdr.goal_ratings")

	if rec.Code != http.StatusOK {
		t.Fatalf("audit failure must not fail the save, got status %d", rec.Code)
	}
	if !strings.Contains(buf.String(), "audit pdr.goal_ratings failed") {
		t.Fatalf("expected an audit warning in the log, got %q", buf.String())
	}
}
