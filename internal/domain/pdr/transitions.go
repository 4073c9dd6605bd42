package pdr

import "fmt"

type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors,omitempty"`
}

func valid() ValidationResult {
	return ValidationResult{IsValid: true}
}

func invalid(errs ...string) ValidationResult {
	return ValidationResult{IsValid: false, Errors: errs}
}

// TransitionRule is one row of the lifecycle table: which action moves a PDR
// from where to where, and who may trigger it. A rule with To == "" sets a
// side flag without advancing the status chain.
type TransitionRule struct {
	Action    Action
	From      []Status
	To        Status
	Role      Role
	OwnerOnly bool

	wrongState string
	wrongRole  string
}

var transitionRules = map[Action]TransitionRule{
	ActionSubmitForReview: {
		Action:     ActionSubmitForReview,
		From:       []Status{StatusCreated},
		To:         StatusSubmitted,
		Role:       RoleEmployee,
		OwnerOnly:  true,
		wrongState: "A PDR can only be submitted for review from its planning stage",
		wrongRole:  "Only employees can submit a PDR for review",
	},
	ActionSubmitCeoReview: {
		Action:     ActionSubmitCeoReview,
		From:       []Status{StatusSubmitted},
		To:         StatusPlanLocked,
		Role:       RoleCEO,
		wrongState: "A PDR plan can only be locked after the employee submits it",
		wrongRole:  "Only CEOs can review and lock a PDR plan",
	},
	ActionMarkBooked: {
		Action:     ActionMarkBooked,
		From:       []Status{StatusCreated, StatusSubmitted},
		Role:       RoleCEO,
		wrongState: "A review meeting can only be booked before the plan is locked",
		wrongRole:  "Only CEOs can book a review meeting",
	},
	ActionSubmitMidYear: {
		Action:     ActionSubmitMidYear,
		From:       []Status{StatusPlanLocked},
		To:         StatusMidYearSubmitted,
		Role:       RoleEmployee,
		OwnerOnly:  true,
		wrongState: "A mid-year check-in can only be submitted once the plan is locked",
		wrongRole:  "Only employees can submit a mid-year check-in",
	},
	ActionApproveMidYear: {
		Action: ActionApproveMidYear,
		// PLAN_LOCKED is the direct-approval path: the CEO approves before
		// the employee submitted, and a review record is synthesized.
		From:       []Status{StatusMidYearSubmitted, StatusPlanLocked},
		To:         StatusMidYearApproved,
		Role:       RoleCEO,
		wrongState: "A mid-year review can only be approved after the plan is locked",
		wrongRole:  "Only CEOs can approve mid-year reviews",
	},
	ActionSubmitEndYear: {
		Action:     ActionSubmitEndYear,
		From:       []Status{StatusMidYearApproved},
		To:         StatusEndYearSubmitted,
		Role:       RoleEmployee,
		OwnerOnly:  true,
		wrongState: "An end-year review can only be submitted after the mid-year review is approved",
		wrongRole:  "Only employees can submit an end-year review",
	},
	ActionCompleteReview: {
		Action:     ActionCompleteReview,
		From:       []Status{StatusEndYearSubmitted},
		To:         StatusCompleted,
		Role:       RoleCEO,
		wrongState: "A review can only be completed after the end-year review is submitted",
		wrongRole:  "Only CEOs can complete a review",
	},
	ActionCloseCalibration: {
		Action:     ActionCloseCalibration,
		From:       []Status{StatusCompleted},
		Role:       RoleCEO,
		wrongState: "Calibration can only be closed on a completed review",
		wrongRole:  "Only CEOs can close calibration",
	},
}

func RuleFor(action Action) (TransitionRule, bool) {
	rule, ok := transitionRules[action]
	return rule, ok
}

// Target returns the status the rule moves to from the given source. Side-flag
// rules leave the status unchanged.
func (r TransitionRule) Target(from Status) Status {
	if r.To == "" {
		return from
	}
	return r.To
}

func (r TransitionRule) allowsFrom(from Status) bool {
	for _, s := range r.From {
		if s == from {
			return true
		}
	}
	return false
}

// ValidateStateTransition checks the requested transition against the
// lifecycle table. The first error is a human-readable reason callers surface
// verbatim.
func ValidateStateTransition(from, to Status, action Action, role Role) ValidationResult {
	rule, ok := RuleFor(action)
	if !ok {
		return invalid(fmt.Sprintf("Unknown transition action %q", action))
	}
	if !rule.allowsFrom(from) {
		return invalid(rule.wrongState)
	}
	if role != rule.Role {
		return invalid(rule.wrongRole)
	}
	if to != rule.Target(from) {
		return invalid(fmt.Sprintf("Action %s moves a PDR to %s, not %s", action, rule.Target(from), to))
	}
	return valid()
}

// RequirementPolicy configures which data must be present before each
// transition. Deployments can relax individual checks without code changes;
// defaults match the documented workflow.
type RequirementPolicy struct {
	MinGoals                int
	MinBehaviors            int
	RequireCEOReviewPerItem bool
	RequireMidYearProgress  bool
	RequireMidYearFeedback  bool
	RequireEmployeeRatings  bool
	RequireOverallRating    bool
}

func DefaultRequirementPolicy() RequirementPolicy {
	return RequirementPolicy{
		MinGoals:                1,
		MinBehaviors:            1,
		RequireCEOReviewPerItem: true,
		RequireMidYearProgress:  true,
		RequireMidYearFeedback:  true,
		RequireEmployeeRatings:  true,
		RequireOverallRating:    true,
	}
}

// TransitionInput carries the stage payload accompanying a transition request.
type TransitionInput struct {
	// ExpectedStatus, when set, makes the evaluator fail closed if the loaded
	// snapshot has moved on since the caller last read it.
	ExpectedStatus *Status
	// Feedback is the CEO feedback text for approveMidYear.
	Feedback string
	// OverallRating is the CEO overall rating for completeReview.
	OverallRating *int
}

// ValidateTransitionRequirements checks the aggregate snapshot against the
// rule's data requirements and collects every violation, not just the first.
func ValidateTransitionRequirements(p *PDR, rule TransitionRule, in TransitionInput, policy RequirementPolicy) ValidationResult {
	var errs []string

	switch rule.Action {
	case ActionSubmitForReview:
		if len(p.Goals) < policy.MinGoals {
			errs = append(errs, fmt.Sprintf("A PDR needs at least %d goal(s) before it can be submitted", policy.MinGoals))
		}
		if len(p.Behaviors) < policy.MinBehaviors {
			errs = append(errs, fmt.Sprintf("A PDR needs at least %d behavior(s) before it can be submitted", policy.MinBehaviors))
		}

	case ActionSubmitCeoReview:
		if policy.RequireCEOReviewPerItem {
			for _, g := range p.Goals {
				if !g.ReviewedByCEO() {
					errs = append(errs, fmt.Sprintf("Goal %q has not been reviewed by the CEO", g.Title))
				}
			}
			for _, b := range p.Behaviors {
				if !b.ReviewedByCEO() {
					errs = append(errs, fmt.Sprintf("Behavior for %q has not been reviewed by the CEO", behaviorLabel(b)))
				}
			}
		}

	case ActionSubmitMidYear:
		if p.MidYear == nil {
			errs = append(errs, "A mid-year check-in must be written before it can be submitted")
		} else if policy.RequireMidYearProgress && p.MidYear.ProgressSummary == "" {
			errs = append(errs, "The mid-year check-in needs a progress summary")
		}

	case ActionApproveMidYear:
		if policy.RequireMidYearFeedback {
			feedback := in.Feedback
			if feedback == "" && p.MidYear != nil {
				feedback = p.MidYear.CEOFeedback
			}
			if feedback == "" {
				errs = append(errs, "CEO feedback is required to approve a mid-year review")
			}
		}

	case ActionSubmitEndYear:
		if p.EndYear == nil {
			errs = append(errs, "An end-year review must be written before it can be submitted")
		}
		if policy.RequireEmployeeRatings {
			for _, g := range p.Goals {
				if g.EmployeeRating == nil {
					errs = append(errs, fmt.Sprintf("Goal %q is missing your self-rating", g.Title))
				}
			}
			for _, b := range p.Behaviors {
				if b.EmployeeRating == nil {
					errs = append(errs, fmt.Sprintf("Behavior for %q is missing your self-rating", behaviorLabel(b)))
				}
			}
		}

	case ActionCompleteReview:
		if policy.RequireOverallRating {
			rating := in.OverallRating
			if rating == nil && p.EndYear != nil {
				rating = p.EndYear.CEORating
			}
			if rating == nil {
				errs = append(errs, "A CEO overall rating is required to complete the review")
			}
		}
	}

	if len(errs) > 0 {
		return invalid(errs...)
	}
	return valid()
}

func behaviorLabel(b Behavior) string {
	if b.CompanyValueName != "" {
		return b.CompanyValueName
	}
	return b.CompanyValueID
}
