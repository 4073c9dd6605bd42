package pdr

// RedactForActor returns a copy of the aggregate with the fields the actor
// may not see blanked out, per the capability resolver. The stored aggregate
// is never mutated.
func RedactForActor(p *PDR, role Role, actorID string) *PDR {
	access := ResolveAccess(p.Status, p.IsLocked, role, actorID == p.UserID)
	clone := clonePDR(p)
	if access.CanViewCEOFields {
		return clone
	}

	for i := range clone.Goals {
		clone.Goals[i].CEORating = nil
		clone.Goals[i].CEOComments = ""
	}
	for i := range clone.Behaviors {
		clone.Behaviors[i].CEORating = nil
		clone.Behaviors[i].CEOAdjustedInitiative = ""
		clone.Behaviors[i].CEOComments = ""
	}
	if clone.MidYear != nil {
		clone.MidYear.CEOFeedback = ""
		clone.MidYear.CEORating = nil
	}
	if clone.EndYear != nil {
		clone.EndYear.CEOFeedback = ""
		clone.EndYear.CEORating = nil
	}
	return clone
}

func clonePDR(p *PDR) *PDR {
	clone := *p
	clone.Goals = make([]Goal, len(p.Goals))
	copy(clone.Goals, p.Goals)
	clone.Behaviors = make([]Behavior, len(p.Behaviors))
	copy(clone.Behaviors, p.Behaviors)
	if p.MidYear != nil {
		review := *p.MidYear
		clone.MidYear = &review
	}
	if p.EndYear != nil {
		review := *p.EndYear
		clone.EndYear = &review
	}
	return &clone
}
