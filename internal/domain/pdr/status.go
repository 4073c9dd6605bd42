package pdr

import "fmt"

// Status is the single source of truth for a PDR's workflow position. The
// string values double as the stored/wire labels.
type Status string

const (
	StatusCreated          Status = "CREATED"
	StatusSubmitted        Status = "SUBMITTED"
	StatusPlanLocked       Status = "PLAN_LOCKED"
	StatusMidYearSubmitted Status = "MID_YEAR_SUBMITTED"
	StatusMidYearApproved  Status = "MID_YEAR_APPROVED"
	StatusEndYearSubmitted Status = "END_YEAR_SUBMITTED"
	StatusCompleted        Status = "COMPLETED"
)

var statusOrder = map[Status]int{
	StatusCreated:          0,
	StatusSubmitted:        1,
	StatusPlanLocked:       2,
	StatusMidYearSubmitted: 3,
	StatusMidYearApproved:  4,
	StatusEndYearSubmitted: 5,
	StatusCompleted:        6,
}

func (s Status) Valid() bool {
	_, ok := statusOrder[s]
	return ok
}

func ParseStatus(value string) (Status, error) {
	s := Status(value)
	if !s.Valid() {
		return "", fmt.Errorf("unknown pdr status %q", value)
	}
	return s, nil
}

// Step maps a status onto the 1-5 UI cursor: plan, review, mid-year,
// end-year, done.
func (s Status) Step() int {
	switch s {
	case StatusCreated:
		return 1
	case StatusSubmitted:
		return 2
	case StatusPlanLocked, StatusMidYearSubmitted:
		return 3
	case StatusMidYearApproved, StatusEndYearSubmitted:
		return 4
	case StatusCompleted:
		return 5
	}
	return 1
}

type Role string

const (
	RoleEmployee Role = "EMPLOYEE"
	RoleCEO      Role = "CEO"
)

func (r Role) Valid() bool {
	return r == RoleEmployee || r == RoleCEO
}

// Action names a lifecycle transition request.
type Action string

const (
	ActionSubmitForReview  Action = "submitForReview"
	ActionSubmitCeoReview  Action = "submitCeoReview"
	ActionMarkBooked       Action = "markBooked"
	ActionSubmitMidYear    Action = "submitMidYear"
	ActionApproveMidYear   Action = "approveMidYear"
	ActionSubmitEndYear    Action = "submitEndYear"
	ActionCompleteReview   Action = "completeReview"
	ActionCloseCalibration Action = "closeCalibration"
)
