package pdr

import (
	"context"
	"fmt"
	"time"
)

// Service orchestrates the PDR lifecycle: it loads aggregates, runs the pure
// state machine, persists the resulting delta and resolves notification
// recipients. Dispatching notifications and audit records stays with the
// HTTP layer.
type Service struct {
	store   StoreAPI
	machine *Machine
}

func NewService(store StoreAPI, machine *Machine) *Service {
	return &Service{store: store, machine: machine}
}

// Create opens a PDR for the actor's current financial year. At most one PDR
// exists per employee per financial year.
func (s *Service) Create(ctx context.Context, actor Actor, now time.Time) (*PDR, error) {
	if actor.Role != RoleEmployee {
		return nil, &ForbiddenError{Reason: "Only employees can create a PDR"}
	}
	start, end := FYBounds(now)
	p := &PDR{
		UserID:      actor.ID,
		FYLabel:     FYLabel(now),
		FYStartDate: start,
		FYEndDate:   end,
		Status:      StatusCreated,
		CurrentStep: StatusCreated.Step(),
	}
	id, err := s.store.CreatePDR(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.store.GetPDR(ctx, id)
}

// Get loads the aggregate and resolves the actor's capabilities. Non-visible
// PDRs are indistinguishable from missing ones.
func (s *Service) Get(ctx context.Context, pdrID string, actor Actor) (*PDR, Access, error) {
	p, err := s.store.GetPDR(ctx, pdrID)
	if err != nil {
		return nil, Access{}, err
	}
	access := ResolveAccess(p.Status, p.IsLocked, actor.Role, actor.ID == p.UserID)
	if !access.CanView {
		return nil, Access{}, ErrNotFound
	}
	return p, access, nil
}

func (s *Service) List(ctx context.Context, actor Actor) ([]PDR, error) {
	if actor.Role == RoleCEO {
		return s.store.ListPDRs(ctx)
	}
	return s.store.ListPDRsByUser(ctx, actor.ID)
}

func (s *Service) CompanyValues(ctx context.Context) ([]CompanyValue, error) {
	return s.store.ListCompanyValues(ctx)
}

// SetCurrentStep moves the UI cursor. It never changes workflow status.
func (s *Service) SetCurrentStep(ctx context.Context, pdrID string, actor Actor, step int) (*PDR, error) {
	p, access, err := s.Get(ctx, pdrID, actor)
	if err != nil {
		return nil, err
	}
	if !access.CanEdit {
		return nil, &ForbiddenError{Reason: access.ReadOnlyReason, ReadOnly: true}
	}
	if step < 1 || step > 5 {
		return nil, &ValidationError{Errors: []string{"Step must be between 1 and 5"}}
	}
	if err := s.store.UpdateCurrentStep(ctx, p.ID, step); err != nil {
		return nil, err
	}
	return s.store.GetPDR(ctx, p.ID)
}

// canEditPlanItems gates structural goal/behavior changes: the owning
// employee while the plan is unlocked, or the CEO once it is.
func canEditPlanItems(p *PDR, access Access, actor Actor) error {
	if p.IsLocked {
		if actor.Role == RoleCEO && access.CanEdit {
			return nil
		}
		return &ForbiddenError{Reason: "PDR is locked and cannot be modified", ReadOnly: true}
	}
	if actor.Role == RoleEmployee && access.CanEditEmployeeFields {
		return nil
	}
	return &ForbiddenError{Reason: access.ReadOnlyReason, ReadOnly: true}
}

func (s *Service) AddGoal(ctx context.Context, pdrID string, actor Actor, goal Goal) (*PDR, error) {
	p, access, err := s.Get(ctx, pdrID, actor)
	if err != nil {
		return nil, err
	}
	if err := canEditPlanItems(p, access, actor); err != nil {
		return nil, err
	}
	goal.PDRID = p.ID
	if goal.Priority == "" {
		goal.Priority = PriorityMedium
	}
	goal.SortOrder = len(p.Goals)
	if _, err := s.store.CreateGoal(ctx, &goal); err != nil {
		return nil, err
	}
	return s.store.GetPDR(ctx, p.ID)
}

func (s *Service) UpdateGoal(ctx context.Context, pdrID string, actor Actor, goal Goal) (*PDR, error) {
	p, access, err := s.Get(ctx, pdrID, actor)
	if err != nil {
		return nil, err
	}
	if err := canEditPlanItems(p, access, actor); err != nil {
		return nil, err
	}
	if p.GoalByID(goal.ID) == nil {
		return nil, ErrGoalNotFound
	}
	goal.PDRID = p.ID
	if err := s.store.UpdateGoal(ctx, &goal); err != nil {
		return nil, err
	}
	return s.store.GetPDR(ctx, p.ID)
}

func (s *Service) DeleteGoal(ctx context.Context, pdrID, goalID string, actor Actor) (*PDR, error) {
	p, access, err := s.Get(ctx, pdrID, actor)
	if err != nil {
		return nil, err
	}
	if err := canEditPlanItems(p, access, actor); err != nil {
		return nil, err
	}
	if p.GoalByID(goalID) == nil {
		return nil, ErrGoalNotFound
	}
	if err := s.store.DeleteGoal(ctx, p.ID, goalID); err != nil {
		return nil, err
	}
	return s.store.GetPDR(ctx, p.ID)
}

func (s *Service) AddBehavior(ctx context.Context, pdrID string, actor Actor, behavior Behavior) (*PDR, error) {
	p, access, err := s.Get(ctx, pdrID, actor)
	if err != nil {
		return nil, err
	}
	if err := canEditPlanItems(p, access, actor); err != nil {
		return nil, err
	}
	if p.BehaviorForValue(behavior.CompanyValueID) != nil {
		return nil, ErrBehaviorExists
	}
	behavior.PDRID = p.ID
	behavior.SortOrder = len(p.Behaviors)
	if _, err := s.store.CreateBehavior(ctx, &behavior); err != nil {
		return nil, err
	}
	return s.store.GetPDR(ctx, p.ID)
}

func (s *Service) UpdateBehavior(ctx context.Context, pdrID string, actor Actor, behavior Behavior) (*PDR, error) {
	p, access, err := s.Get(ctx, pdrID, actor)
	if err != nil {
		return nil, err
	}
	if err := canEditPlanItems(p, access, actor); err != nil {
		return nil, err
	}
	if p.BehaviorByID(behavior.ID) == nil {
		return nil, ErrBehaviorNotFound
	}
	behavior.PDRID = p.ID
	if err := s.store.UpdateBehavior(ctx, &behavior); err != nil {
		return nil, err
	}
	return s.store.GetPDR(ctx, p.ID)
}

func (s *Service) DeleteBehavior(ctx context.Context, pdrID, behaviorID string, actor Actor) (*PDR, error) {
	p, access, err := s.Get(ctx, pdrID, actor)
	if err != nil {
		return nil, err
	}
	if err := canEditPlanItems(p, access, actor); err != nil {
		return nil, err
	}
	if p.BehaviorByID(behaviorID) == nil {
		return nil, ErrBehaviorNotFound
	}
	if err := s.store.DeleteBehavior(ctx, p.ID, behaviorID); err != nil {
		return nil, err
	}
	return s.store.GetPDR(ctx, p.ID)
}

// WriteMidYear creates or updates the employee-authored part of the mid-year
// check-in before it is submitted.
func (s *Service) WriteMidYear(ctx context.Context, pdrID string, actor Actor, progress, comments string) (*PDR, error) {
	p, access, err := s.Get(ctx, pdrID, actor)
	if err != nil {
		return nil, err
	}
	if actor.Role != RoleEmployee {
		return nil, &ForbiddenError{Reason: "Only the PDR owner writes the mid-year check-in"}
	}
	if !access.CanEditEmployeeFields {
		return nil, &ForbiddenError{Reason: access.ReadOnlyReason, ReadOnly: true}
	}
	review := &MidYearReview{PDRID: p.ID, ProgressSummary: progress, EmployeeComments: comments}
	if p.MidYear != nil {
		review.ID = p.MidYear.ID
		review.CEOFeedback = p.MidYear.CEOFeedback
		review.CEORating = p.MidYear.CEORating
		review.SubmittedAt = p.MidYear.SubmittedAt
	}
	if err := s.store.UpsertMidYear(ctx, review); err != nil {
		return nil, err
	}
	return s.store.GetPDR(ctx, p.ID)
}

func (s *Service) WriteEndYear(ctx context.Context, pdrID string, actor Actor, achievements, comments string) (*PDR, error) {
	p, access, err := s.Get(ctx, pdrID, actor)
	if err != nil {
		return nil, err
	}
	if actor.Role != RoleEmployee {
		return nil, &ForbiddenError{Reason: "Only the PDR owner writes the end-year review"}
	}
	if !access.CanEditEmployeeFields {
		return nil, &ForbiddenError{Reason: access.ReadOnlyReason, ReadOnly: true}
	}
	review := &EndYearReview{PDRID: p.ID, Achievements: achievements, EmployeeComments: comments}
	if p.EndYear != nil {
		review.ID = p.EndYear.ID
		review.CEOFeedback = p.EndYear.CEOFeedback
		review.CEORating = p.EndYear.CEORating
		review.SubmittedAt = p.EndYear.SubmittedAt
	}
	if err := s.store.UpsertEndYear(ctx, review); err != nil {
		return nil, err
	}
	return s.store.GetPDR(ctx, p.ID)
}

// Transition attempts a lifecycle action against a fresh snapshot and, when
// accepted, persists the delta and returns notification instructions with
// recipients resolved to concrete user ids.
func (s *Service) Transition(ctx context.Context, pdrID string, action Action, actor Actor, in TransitionInput, now time.Time) (*PDR, []Notification, error) {
	p, err := s.store.GetPDR(ctx, pdrID)
	if err != nil {
		return nil, nil, err
	}
	access := ResolveAccess(p.Status, p.IsLocked, actor.Role, actor.ID == p.UserID)
	if !access.CanView {
		return nil, nil, ErrNotFound
	}

	delta, notes, err := s.machine.AttemptTransition(p, action, actor, in, now)
	if err != nil {
		return nil, nil, err
	}
	if delta.NoOp {
		return p, nil, nil
	}

	if err := s.store.ApplyTransition(ctx, p.ID, p.Status, delta, now); err != nil {
		return nil, nil, err
	}

	resolved, err := s.resolveRecipients(ctx, notes)
	if err != nil {
		return nil, nil, err
	}
	updated, err := s.store.GetPDR(ctx, p.ID)
	if err != nil {
		return nil, nil, err
	}
	return updated, resolved, nil
}

func (s *Service) resolveRecipients(ctx context.Context, notes []Notification) ([]Notification, error) {
	var resolved []Notification
	for _, note := range notes {
		if note.RecipientID != "" {
			resolved = append(resolved, note)
			continue
		}
		if note.RecipientRole != RoleCEO {
			continue
		}
		ceoIDs, err := s.store.CEOUserIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve notification recipients: %w", err)
		}
		for _, id := range ceoIDs {
			fanned := note
			fanned.RecipientID = id
			fanned.RecipientRole = ""
			resolved = append(resolved, fanned)
		}
	}
	return resolved, nil
}
