package pdr

import (
	"errors"
	"testing"
	"time"
)

var (
	testEmployee = Actor{ID: "emp-1", DisplayName: "Alex Chen", Role: RoleEmployee}
	testCEO      = Actor{ID: "ceo-1", DisplayName: "Morgan Reid", Role: RoleCEO}
)

func intPtr(n int) *int { return &n }

// applyDelta mirrors what the store does with a persisted delta, so machine
// tests can walk the whole lifecycle on an in-memory aggregate.
func applyDelta(p *PDR, delta Delta) {
	if delta.Status != nil {
		p.Status = *delta.Status
	}
	if delta.CurrentStep != nil {
		p.CurrentStep = *delta.CurrentStep
	}
	if delta.IsLocked != nil {
		p.IsLocked = *delta.IsLocked
	}
	if delta.LockedAt != nil {
		p.LockedAt = delta.LockedAt
	}
	if delta.LockedBy != nil {
		p.LockedBy = delta.LockedBy
	}
	if delta.MeetingBooked != nil {
		p.MeetingBooked = *delta.MeetingBooked
	}
	if delta.MeetingBookedAt != nil {
		p.MeetingBookedAt = delta.MeetingBookedAt
	}
	if delta.SubmittedAt != nil {
		p.SubmittedAt = delta.SubmittedAt
	}
	if delta.CalibratedAt != nil {
		p.CalibratedAt = delta.CalibratedAt
	}
	if delta.CalibratedBy != nil {
		p.CalibratedBy = delta.CalibratedBy
	}
	if delta.SynthesizedMidYear != nil {
		review := *delta.SynthesizedMidYear
		p.MidYear = &review
	}
	if delta.MidYearFeedback != nil && p.MidYear != nil {
		p.MidYear.CEOFeedback = *delta.MidYearFeedback
	}
	if delta.MidYearSubmittedAt != nil && p.MidYear != nil {
		p.MidYear.SubmittedAt = delta.MidYearSubmittedAt
	}
	if delta.EndYearRating != nil && p.EndYear != nil {
		p.EndYear.CEORating = delta.EndYearRating
	}
	if delta.EndYearSubmittedAt != nil && p.EndYear != nil {
		p.EndYear.SubmittedAt = delta.EndYearSubmittedAt
	}
}

func plannedPDR() *PDR {
	return &PDR{
		ID:          "pdr-1",
		UserID:      testEmployee.ID,
		FYLabel:     "2025-2026",
		Status:      StatusCreated,
		CurrentStep: 1,
		Goals:       []Goal{{ID: "g1", Title: "Ship the billing migration", Priority: PriorityHigh}},
		Behaviors:   []Behavior{{ID: "b1", CompanyValueID: "cv1", CompanyValueName: "Customer First"}},
	}
}

func mustTransition(t *testing.T, m *Machine, p *PDR, action Action, actor Actor, in TransitionInput, now time.Time) []Notification {
	t.Helper()
	delta, notes, err := m.AttemptTransition(p, action, actor, in, now)
	if err != nil {
		t.Fatalf("%s as %s: %v", action, actor.Role, err)
	}
	applyDelta(p, delta)
	return notes
}

func TestFullLifecycle(t *testing.T) {
	m := NewMachine(DefaultRequirementPolicy())
	p := plannedPDR()
	base := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	at := func(day int) time.Time { return base.AddDate(0, 0, day) }

	notes := mustTransition(t, m, p, ActionSubmitForReview, testEmployee, TransitionInput{}, at(0))
	if p.Status != StatusSubmitted || p.CurrentStep != 2 {
		t.Fatalf("after submit: status=%s step=%d", p.Status, p.CurrentStep)
	}
	if p.SubmittedAt == nil || !p.SubmittedAt.Equal(at(0)) {
		t.Fatalf("submittedAt not stamped: %v", p.SubmittedAt)
	}
	if len(notes) != 1 || notes[0].RecipientRole != RoleCEO {
		t.Fatalf("employee action should notify the CEO side: %+v", notes)
	}

	notes = mustTransition(t, m, p, ActionMarkBooked, testCEO, TransitionInput{}, at(1))
	if p.Status != StatusSubmitted {
		t.Fatalf("markBooked must not advance status, got %s", p.Status)
	}
	if !p.MeetingBooked || p.MeetingBookedAt == nil {
		t.Fatal("meeting flag not set")
	}
	if len(notes) != 1 || notes[0].RecipientID != testEmployee.ID {
		t.Fatalf("CEO action should notify the owner: %+v", notes)
	}

	p.Goals[0].CEORating = intPtr(4)
	p.Behaviors[0].CEOComments = "Strong examples"
	mustTransition(t, m, p, ActionSubmitCeoReview, testCEO, TransitionInput{}, at(2))
	if p.Status != StatusPlanLocked || !p.IsLocked {
		t.Fatalf("after plan lock: status=%s locked=%v", p.Status, p.IsLocked)
	}
	if p.LockedBy == nil || *p.LockedBy != testCEO.ID {
		t.Fatalf("lockedBy = %v", p.LockedBy)
	}

	p.MidYear = &MidYearReview{PDRID: p.ID, ProgressSummary: "On track across both goals"}
	mustTransition(t, m, p, ActionSubmitMidYear, testEmployee, TransitionInput{}, at(3))
	if p.Status != StatusMidYearSubmitted {
		t.Fatalf("after mid-year submit: %s", p.Status)
	}
	if p.MidYear.SubmittedAt == nil || !p.MidYear.SubmittedAt.Equal(at(3)) {
		t.Fatalf("mid-year submittedAt not stamped: %v", p.MidYear.SubmittedAt)
	}

	mustTransition(t, m, p, ActionApproveMidYear, testCEO, TransitionInput{Feedback: "Good progress, keep pace"}, at(4))
	if p.Status != StatusMidYearApproved {
		t.Fatalf("after mid-year approval: %s", p.Status)
	}
	if p.MidYear.CEOFeedback != "Good progress, keep pace" {
		t.Fatalf("feedback not recorded: %q", p.MidYear.CEOFeedback)
	}

	p.Goals[0].EmployeeRating = intPtr(4)
	p.Behaviors[0].EmployeeRating = intPtr(3)
	p.EndYear = &EndYearReview{PDRID: p.ID, Achievements: "Billing migration shipped ahead of schedule"}
	mustTransition(t, m, p, ActionSubmitEndYear, testEmployee, TransitionInput{}, at(5))
	if p.Status != StatusEndYearSubmitted {
		t.Fatalf("after end-year submit: %s", p.Status)
	}

	mustTransition(t, m, p, ActionCompleteReview, testCEO, TransitionInput{OverallRating: intPtr(4)}, at(6))
	if p.Status != StatusCompleted || p.CurrentStep != 5 {
		t.Fatalf("after completion: status=%s step=%d", p.Status, p.CurrentStep)
	}
	if p.EndYear.CEORating == nil || *p.EndYear.CEORating != 4 {
		t.Fatalf("overall rating not recorded: %v", p.EndYear.CEORating)
	}

	mustTransition(t, m, p, ActionCloseCalibration, testCEO, TransitionInput{}, at(7))
	if p.Status != StatusCompleted {
		t.Fatalf("calibration must not change status, got %s", p.Status)
	}
	if !p.Calibrated() || p.CalibratedBy == nil || *p.CalibratedBy != testCEO.ID {
		t.Fatal("calibration flag not recorded")
	}

	// Stage timestamps accumulate in order.
	if !p.SubmittedAt.Before(*p.LockedAt) || !p.LockedAt.Before(*p.MidYear.SubmittedAt) ||
		!p.MidYear.SubmittedAt.Before(*p.EndYear.SubmittedAt) || !p.EndYear.SubmittedAt.Before(*p.CalibratedAt) {
		t.Fatal("stage timestamps out of order")
	}
}

func TestMarkBookedIsIdempotent(t *testing.T) {
	m := NewMachine(DefaultRequirementPolicy())
	p := plannedPDR()
	now := time.Now()

	mustTransition(t, m, p, ActionMarkBooked, testCEO, TransitionInput{}, now)
	first := *p.MeetingBookedAt

	delta, notes, err := m.AttemptTransition(p, ActionMarkBooked, testCEO, TransitionInput{}, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("repeat markBooked: %v", err)
	}
	if !delta.NoOp {
		t.Fatal("repeat markBooked should be a no-op")
	}
	if len(notes) != 0 {
		t.Fatalf("no-op must not notify, got %+v", notes)
	}
	applyDelta(p, delta)
	if !p.MeetingBookedAt.Equal(first) {
		t.Fatal("no-op must not restamp the booking time")
	}
}

func TestMarkBookedRepeatStillRequiresCEO(t *testing.T) {
	m := NewMachine(DefaultRequirementPolicy())
	p := plannedPDR()
	p.MeetingBooked = true
	now := time.Now()
	p.MeetingBookedAt = &now

	delta, _, err := m.AttemptTransition(p, ActionMarkBooked, testEmployee, TransitionInput{}, now.Add(time.Hour))
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError for employee, got %v", err)
	}
	if delta.NoOp {
		t.Fatal("an unauthorized repeat must not be treated as a no-op")
	}
}

func TestCloseCalibrationTwiceRequiresCEO(t *testing.T) {
	m := NewMachine(DefaultRequirementPolicy())
	p := plannedPDR()
	p.Status = StatusCompleted
	now := time.Now()
	p.CalibratedAt = &now

	_, _, err := m.AttemptTransition(p, ActionCloseCalibration, testEmployee, TransitionInput{}, now.Add(time.Minute))
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError for employee, got %v", err)
	}
	if errors.Is(err, ErrAlreadyCalibrated) {
		t.Fatal("role rejection must come before the calibrated-state conflict")
	}
}

func TestApproveMidYearSynthesizesReview(t *testing.T) {
	m := NewMachine(DefaultRequirementPolicy())
	p := plannedPDR()
	p.Status = StatusPlanLocked
	p.IsLocked = true

	delta, notes, err := m.AttemptTransition(p, ActionApproveMidYear, testCEO, TransitionInput{Feedback: "Covered in our 1:1"}, time.Now())
	if err != nil {
		t.Fatalf("direct approval: %v", err)
	}
	if delta.SynthesizedMidYear == nil {
		t.Fatal("expected a synthesized mid-year review")
	}
	if delta.SynthesizedMidYear.ProgressSummary == "" {
		t.Fatal("synthesized review needs a placeholder progress summary")
	}
	if delta.SynthesizedMidYear.CEOFeedback != "Covered in our 1:1" {
		t.Fatalf("feedback not carried: %q", delta.SynthesizedMidYear.CEOFeedback)
	}
	if delta.Status == nil || *delta.Status != StatusMidYearApproved {
		t.Fatalf("direct approval should land on MID_YEAR_APPROVED, got %v", delta.Status)
	}
	if len(notes) != 1 || notes[0].Body == "" {
		t.Fatalf("expected an on-your-behalf notification, got %+v", notes)
	}
}

func TestApproveMidYearUpdatesExistingReview(t *testing.T) {
	m := NewMachine(DefaultRequirementPolicy())
	p := plannedPDR()
	p.Status = StatusMidYearSubmitted
	p.IsLocked = true
	p.MidYear = &MidYearReview{PDRID: p.ID, ProgressSummary: "On track"}

	delta, _, err := m.AttemptTransition(p, ActionApproveMidYear, testCEO, TransitionInput{Feedback: "Agreed"}, time.Now())
	if err != nil {
		t.Fatalf("approval: %v", err)
	}
	if delta.SynthesizedMidYear != nil {
		t.Fatal("an existing review must never be replaced by a synthesized one")
	}
	if delta.MidYearFeedback == nil || *delta.MidYearFeedback != "Agreed" {
		t.Fatalf("feedback update missing: %v", delta.MidYearFeedback)
	}
}

func TestExpectedStatusConflict(t *testing.T) {
	m := NewMachine(DefaultRequirementPolicy())
	p := plannedPDR()
	p.Status = StatusSubmitted

	stale := StatusCreated
	_, _, err := m.AttemptTransition(p, ActionSubmitForReview, testEmployee, TransitionInput{ExpectedStatus: &stale}, time.Now())
	if !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict, got %v", err)
	}
}

func TestCloseCalibrationTwice(t *testing.T) {
	m := NewMachine(DefaultRequirementPolicy())
	p := plannedPDR()
	p.Status = StatusCompleted
	now := time.Now()
	p.CalibratedAt = &now

	_, _, err := m.AttemptTransition(p, ActionCloseCalibration, testCEO, TransitionInput{}, now.Add(time.Minute))
	if !errors.Is(err, ErrAlreadyCalibrated) {
		t.Fatalf("expected ErrAlreadyCalibrated, got %v", err)
	}
}

func TestOwnerOnlyActionsRejectOtherEmployees(t *testing.T) {
	m := NewMachine(DefaultRequirementPolicy())
	p := plannedPDR()
	other := Actor{ID: "emp-2", DisplayName: "Sam Ortiz", Role: RoleEmployee}

	_, _, err := m.AttemptTransition(p, ActionSubmitForReview, other, TransitionInput{}, time.Now())
	var forbidden *ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
}

func TestEmployeeCannotLockPlan(t *testing.T) {
	m := NewMachine(DefaultRequirementPolicy())
	p := plannedPDR()
	p.Status = StatusSubmitted

	_, _, err := m.AttemptTransition(p, ActionSubmitCeoReview, testEmployee, TransitionInput{}, time.Now())
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
}

func TestRequirementFailureCarriesEveryViolation(t *testing.T) {
	m := NewMachine(DefaultRequirementPolicy())
	p := plannedPDR()
	p.Goals = nil
	p.Behaviors = nil

	_, _, err := m.AttemptTransition(p, ActionSubmitForReview, testEmployee, TransitionInput{}, time.Now())
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(validation.Errors) != 2 {
		t.Fatalf("expected both violations, got %v", validation.Errors)
	}
}

func TestUnknownAction(t *testing.T) {
	m := NewMachine(DefaultRequirementPolicy())
	p := plannedPDR()

	_, _, err := m.AttemptTransition(p, Action("teleport"), testCEO, TransitionInput{}, time.Now())
	if !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
}
