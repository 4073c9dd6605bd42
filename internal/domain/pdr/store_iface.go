package pdr

import (
	"context"
	"time"
)

// GoalRatingUpdate is one record of a batch rating save. Nil fields are left
// untouched.
type GoalRatingUpdate struct {
	GoalID           string  `json:"goalId"`
	EmployeeProgress *string `json:"employeeProgress,omitempty"`
	EmployeeRating   *int    `json:"employeeRating,omitempty"`
	CEORating        *int    `json:"ceoRating,omitempty"`
	CEOComments      *string `json:"ceoComments,omitempty"`
}

type BehaviorRatingUpdate struct {
	BehaviorID            string  `json:"behaviorId"`
	EmployeeRating        *int    `json:"employeeRating,omitempty"`
	CEORating             *int    `json:"ceoRating,omitempty"`
	CEOAdjustedInitiative *string `json:"ceoAdjustedInitiative,omitempty"`
	CEOComments           *string `json:"ceoComments,omitempty"`
}

type StoreAPI interface {
	CreatePDR(ctx context.Context, p *PDR) (string, error)
	GetPDR(ctx context.Context, pdrID string) (*PDR, error)
	ListPDRs(ctx context.Context) ([]PDR, error)
	ListPDRsByUser(ctx context.Context, userID string) ([]PDR, error)
	UpdateCurrentStep(ctx context.Context, pdrID string, step int) error
	// ApplyTransition persists a transition delta. The root update is guarded
	// by the from-status so a concurrent transition surfaces as
	// ErrStatusConflict rather than a silent double-apply.
	ApplyTransition(ctx context.Context, pdrID string, from Status, delta Delta, now time.Time) error

	CreateGoal(ctx context.Context, g *Goal) (string, error)
	UpdateGoal(ctx context.Context, g *Goal) error
	UpdateGoalRatings(ctx context.Context, pdrID string, upd GoalRatingUpdate) error
	DeleteGoal(ctx context.Context, pdrID, goalID string) error

	CreateBehavior(ctx context.Context, b *Behavior) (string, error)
	UpdateBehavior(ctx context.Context, b *Behavior) error
	UpdateBehaviorRatings(ctx context.Context, pdrID string, upd BehaviorRatingUpdate) error
	DeleteBehavior(ctx context.Context, pdrID, behaviorID string) error

	UpsertMidYear(ctx context.Context, review *MidYearReview) error
	UpsertEndYear(ctx context.Context, review *EndYearReview) error

	ListCompanyValues(ctx context.Context) ([]CompanyValue, error)
	CEOUserIDs(ctx context.Context) ([]string, error)
}
