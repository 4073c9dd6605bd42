package pdr

import (
	"context"
	"fmt"
)

type BatchFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// BatchResult reports exactly which records of a batch save succeeded. A
// partial failure is never collapsed into a silent full success.
type BatchResult struct {
	Total  int            `json:"total"`
	Saved  []string       `json:"saved"`
	Failed []BatchFailure `json:"failed,omitempty"`
}

func (r BatchResult) AllSaved() bool {
	return len(r.Failed) == 0
}

func (r BatchResult) Summary() string {
	return fmt.Sprintf("%d of %d rating updates failed", len(r.Failed), r.Total)
}

// SaveGoalRatings applies a batch of independent per-goal rating updates.
// Each record succeeds or fails on its own; the result lists both sides.
func (s *Service) SaveGoalRatings(ctx context.Context, pdrID string, actor Actor, updates []GoalRatingUpdate) (BatchResult, *PDR, error) {
	p, access, err := s.Get(ctx, pdrID, actor)
	if err != nil {
		return BatchResult{}, nil, err
	}

	result := BatchResult{Total: len(updates)}
	for _, upd := range updates {
		if reason := goalUpdateAllowed(p, access, actor, upd); reason != "" {
			result.Failed = append(result.Failed, BatchFailure{ID: upd.GoalID, Reason: reason})
			continue
		}
		if err := s.store.UpdateGoalRatings(ctx, p.ID, upd); err != nil {
			result.Failed = append(result.Failed, BatchFailure{ID: upd.GoalID, Reason: err.Error()})
			continue
		}
		result.Saved = append(result.Saved, upd.GoalID)
	}

	updated, err := s.store.GetPDR(ctx, p.ID)
	if err != nil {
		return result, nil, err
	}
	return result, updated, nil
}

func (s *Service) SaveBehaviorRatings(ctx context.Context, pdrID string, actor Actor, updates []BehaviorRatingUpdate) (BatchResult, *PDR, error) {
	p, access, err := s.Get(ctx, pdrID, actor)
	if err != nil {
		return BatchResult{}, nil, err
	}

	result := BatchResult{Total: len(updates)}
	for _, upd := range updates {
		if reason := behaviorUpdateAllowed(p, access, actor, upd); reason != "" {
			result.Failed = append(result.Failed, BatchFailure{ID: upd.BehaviorID, Reason: reason})
			continue
		}
		if err := s.store.UpdateBehaviorRatings(ctx, p.ID, upd); err != nil {
			result.Failed = append(result.Failed, BatchFailure{ID: upd.BehaviorID, Reason: err.Error()})
			continue
		}
		result.Saved = append(result.Saved, upd.BehaviorID)
	}

	updated, err := s.store.GetPDR(ctx, p.ID)
	if err != nil {
		return result, nil, err
	}
	return result, updated, nil
}

func goalUpdateAllowed(p *PDR, access Access, actor Actor, upd GoalRatingUpdate) string {
	if p.GoalByID(upd.GoalID) == nil {
		return "goal not found"
	}
	touchesEmployee := upd.EmployeeProgress != nil || upd.EmployeeRating != nil
	touchesCEO := upd.CEORating != nil || upd.CEOComments != nil
	return ratingFieldsAllowed(access, actor, touchesEmployee, touchesCEO)
}

func behaviorUpdateAllowed(p *PDR, access Access, actor Actor, upd BehaviorRatingUpdate) string {
	if p.BehaviorByID(upd.BehaviorID) == nil {
		return "behavior not found"
	}
	touchesEmployee := upd.EmployeeRating != nil
	touchesCEO := upd.CEORating != nil || upd.CEOAdjustedInitiative != nil || upd.CEOComments != nil
	return ratingFieldsAllowed(access, actor, touchesEmployee, touchesCEO)
}

func ratingFieldsAllowed(access Access, actor Actor, touchesEmployee, touchesCEO bool) string {
	if touchesEmployee && !access.CanEditEmployeeFields {
		if actor.Role == RoleCEO {
			return "CEOs cannot set employee self-assessment fields"
		}
		return access.ReadOnlyReason
	}
	if touchesCEO && !access.CanEditCEOFields {
		if actor.Role == RoleEmployee {
			return "Employees cannot set CEO review fields"
		}
		return access.ReadOnlyReason
	}
	if !touchesEmployee && !touchesCEO {
		return "no fields to update"
	}
	return ""
}
