package pdr

import (
	"errors"
	"strings"
)

var (
	ErrNotFound          = errors.New("pdr not found")
	ErrPDRExists         = errors.New("a pdr already exists for this financial year")
	ErrGoalNotFound      = errors.New("goal not found")
	ErrBehaviorNotFound  = errors.New("behavior not found")
	ErrBehaviorExists    = errors.New("a behavior already exists for this company value")
	ErrAlreadyCalibrated = errors.New("pdr has already been calibrated")
	ErrStatusConflict    = errors.New("pdr status changed since it was loaded")
	ErrUnknownAction     = errors.New("unknown transition action")
)

// InvalidTransitionError rejects a transition that is not legal from the
// current status or for the acting role. Reason is shown to the caller
// verbatim.
type InvalidTransitionError struct {
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	return e.Reason
}

// ValidationError carries every unmet requirement for a state-legal
// transition, so callers can present the full checklist at once.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Errors, "; ")
}

// ForbiddenError rejects an action the actor lacks role or ownership for.
// ReadOnly marks the cases where the PDR's current state, not the actor's
// identity, is what blocks the write.
type ForbiddenError struct {
	Reason   string
	ReadOnly bool
}

func (e *ForbiddenError) Error() string {
	return e.Reason
}
