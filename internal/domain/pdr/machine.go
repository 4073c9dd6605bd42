package pdr

import (
	"fmt"
	"time"
)

// Actor is the authenticated user attempting a transition.
type Actor struct {
	ID          string
	DisplayName string
	Role        Role
}

// Notification is an instruction for the notification outbox. RecipientID is
// set when the recipient is a known user; RecipientRole fans out to every
// user holding that role (employee actions notify the CEO side).
type Notification struct {
	RecipientID   string
	RecipientRole Role
	Type          string
	Title         string
	Body          string
}

// Notification type tags, stored alongside each outbox row.
const (
	NotifyPlanSubmitted    = "pdr_submitted"
	NotifyPlanLocked       = "pdr_plan_locked"
	NotifyMeetingBooked    = "pdr_meeting_booked"
	NotifyMidYearSubmitted = "pdr_mid_year_submitted"
	NotifyMidYearApproved  = "pdr_mid_year_approved"
	NotifyEndYearSubmitted = "pdr_end_year_submitted"
	NotifyReviewCompleted  = "pdr_completed"
	NotifyCalibrated       = "pdr_calibrated"
)

// placeholderProgress is written into a synthesized mid-year review when the
// CEO approves directly from PLAN_LOCKED and the employee never submitted.
const placeholderProgress = "Mid-year check-in completed by the CEO on the employee's behalf."

// Delta is the set of changes a successful transition produces. Nil pointer
// fields are untouched; the caller persists the delta and dispatches the
// notifications.
type Delta struct {
	Status          *Status
	CurrentStep     *int
	IsLocked        *bool
	LockedAt        *time.Time
	LockedBy        *string
	MeetingBooked   *bool
	MeetingBookedAt *time.Time
	SubmittedAt     *time.Time
	CalibratedAt    *time.Time
	CalibratedBy    *string

	// SynthesizedMidYear is set on the direct-approval path when no mid-year
	// review exists yet. At most one mid-year review ever exists per PDR.
	SynthesizedMidYear *MidYearReview
	// MidYearFeedback updates the existing review's CEO feedback.
	MidYearFeedback *string
	// MidYearSubmittedAt stamps the employee's mid-year submission.
	MidYearSubmittedAt *time.Time
	// EndYearRating updates the end-year review's CEO overall rating.
	EndYearRating *int
	// EndYearSubmittedAt stamps the employee's end-year submission.
	EndYearSubmittedAt *time.Time

	// NoOp marks an idempotent re-invocation: nothing to persist, nothing to
	// notify, the unchanged aggregate is the result.
	NoOp bool
}

// Machine evaluates transition attempts. It is pure decision logic: no
// storage, no dispatch, no clock of its own.
type Machine struct {
	Policy RequirementPolicy
}

func NewMachine(policy RequirementPolicy) *Machine {
	return &Machine{Policy: policy}
}

// AttemptTransition decides whether the actor may apply the action to the
// aggregate snapshot and, if so, what changes and notifications result.
// Persistence and dispatch stay with the caller.
func (m *Machine) AttemptTransition(p *PDR, action Action, actor Actor, in TransitionInput, now time.Time) (Delta, []Notification, error) {
	rule, ok := RuleFor(action)
	if !ok {
		return Delta{}, nil, fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}

	if in.ExpectedStatus != nil && *in.ExpectedStatus != p.Status {
		return Delta{}, nil, ErrStatusConflict
	}

	if result := ValidateStateTransition(p.Status, rule.Target(p.Status), action, actor.Role); !result.IsValid {
		return Delta{}, nil, &InvalidTransitionError{Reason: result.Errors[0]}
	}
	if rule.OwnerOnly && actor.ID != p.UserID {
		return Delta{}, nil, &ForbiddenError{Reason: "Only the PDR owner can perform this action"}
	}

	// Side-flag repeats short-circuit only once the actor has cleared the
	// state and role checks, so an unauthorized caller never sees a no-op.
	if action == ActionMarkBooked && p.MeetingBooked {
		return Delta{NoOp: true}, nil, nil
	}
	if action == ActionCloseCalibration && p.Calibrated() {
		return Delta{}, nil, ErrAlreadyCalibrated
	}

	if result := ValidateTransitionRequirements(p, rule, in, m.Policy); !result.IsValid {
		return Delta{}, nil, &ValidationError{Errors: result.Errors}
	}

	delta := m.computeDelta(p, rule, actor, in, now)
	notes := m.computeNotifications(p, action, actor)
	return delta, notes, nil
}

func (m *Machine) computeDelta(p *PDR, rule TransitionRule, actor Actor, in TransitionInput, now time.Time) Delta {
	var delta Delta
	if rule.To != "" {
		to := rule.To
		step := to.Step()
		delta.Status = &to
		delta.CurrentStep = &step
	}

	switch rule.Action {
	case ActionSubmitForReview:
		delta.SubmittedAt = &now

	case ActionSubmitCeoReview:
		locked := true
		delta.IsLocked = &locked
		delta.LockedAt = &now
		delta.LockedBy = &actor.ID

	case ActionMarkBooked:
		booked := true
		delta.MeetingBooked = &booked
		delta.MeetingBookedAt = &now

	case ActionSubmitMidYear:
		delta.MidYearSubmittedAt = &now

	case ActionApproveMidYear:
		feedback := in.Feedback
		if p.MidYear == nil {
			delta.SynthesizedMidYear = &MidYearReview{
				PDRID:           p.ID,
				ProgressSummary: placeholderProgress,
				CEOFeedback:     feedback,
			}
		} else if feedback != "" {
			delta.MidYearFeedback = &feedback
		}

	case ActionSubmitEndYear:
		delta.EndYearSubmittedAt = &now

	case ActionCompleteReview:
		if in.OverallRating != nil {
			delta.EndYearRating = in.OverallRating
		}

	case ActionCloseCalibration:
		delta.CalibratedAt = &now
		delta.CalibratedBy = &actor.ID
	}

	return delta
}

func (m *Machine) computeNotifications(p *PDR, action Action, actor Actor) []Notification {
	note := Notification{}
	if actor.Role == RoleCEO {
		note.RecipientID = p.UserID
	} else {
		note.RecipientRole = RoleCEO
	}

	switch action {
	case ActionSubmitForReview:
		note.Type = NotifyPlanSubmitted
		note.Title = "PDR submitted for review"
		note.Body = fmt.Sprintf("%s submitted their %s PDR for review.", actor.DisplayName, p.FYLabel)
	case ActionSubmitCeoReview:
		note.Type = NotifyPlanLocked
		note.Title = "PDR plan approved"
		note.Body = fmt.Sprintf("%s reviewed and locked your %s PDR plan.", actor.DisplayName, p.FYLabel)
	case ActionMarkBooked:
		note.Type = NotifyMeetingBooked
		note.Title = "Review meeting booked"
		note.Body = fmt.Sprintf("%s booked your PDR review meeting.", actor.DisplayName)
	case ActionSubmitMidYear:
		note.Type = NotifyMidYearSubmitted
		note.Title = "Mid-year check-in submitted"
		note.Body = fmt.Sprintf("%s submitted their mid-year check-in.", actor.DisplayName)
	case ActionApproveMidYear:
		note.Type = NotifyMidYearApproved
		note.Title = "Mid-year check-in approved"
		if p.MidYear == nil {
			note.Body = fmt.Sprintf("%s completed and approved your mid-year check-in on your behalf.", actor.DisplayName)
		} else {
			note.Body = fmt.Sprintf("%s approved your mid-year check-in.", actor.DisplayName)
		}
	case ActionSubmitEndYear:
		note.Type = NotifyEndYearSubmitted
		note.Title = "End-year review submitted"
		note.Body = fmt.Sprintf("%s submitted their end-year review.", actor.DisplayName)
	case ActionCompleteReview:
		note.Type = NotifyReviewCompleted
		note.Title = "Review completed"
		note.Body = fmt.Sprintf("%s completed your %s performance review.", actor.DisplayName, p.FYLabel)
	case ActionCloseCalibration:
		note.Type = NotifyCalibrated
		note.Title = "Review cycle closed"
		note.Body = fmt.Sprintf("%s closed calibration for your %s review.", actor.DisplayName, p.FYLabel)
	default:
		return nil
	}

	return []Notification{note}
}
