package pdr

// Access is the capability set for one actor against one PDR. It gates
// mutation endpoints and decides which sub-fields are serialized back to a
// reader, so both read and write paths consult the same resolver.
type Access struct {
	CanView               bool   `json:"canView"`
	CanEdit               bool   `json:"canEdit"`
	CanViewEmployeeFields bool   `json:"canViewEmployeeFields"`
	CanViewCEOFields      bool   `json:"canViewCeoFields"`
	CanEditEmployeeFields bool   `json:"canEditEmployeeFields"`
	CanEditCEOFields      bool   `json:"canEditCeoFields"`
	ReadOnlyReason        string `json:"readOnlyReason,omitempty"`
}

// employeeEditable is the set of statuses in which the owning employee may
// edit their PDR content: drafting the plan, updating progress after the plan
// locks, and writing the end-year review after mid-year approval.
var employeeEditable = map[Status]bool{
	StatusCreated:         true,
	StatusPlanLocked:      true,
	StatusMidYearApproved: true,
}

// ceoEditable covers every status except a freshly-created plan the employee
// has not yet submitted.
var ceoEditable = map[Status]bool{
	StatusSubmitted:        true,
	StatusPlanLocked:       true,
	StatusMidYearSubmitted: true,
	StatusMidYearApproved:  true,
	StatusEndYearSubmitted: true,
	StatusCompleted:        true,
}

// ResolveAccess returns the capability set for (status, locked, role, owner).
func ResolveAccess(status Status, locked bool, role Role, isOwner bool) Access {
	switch role {
	case RoleCEO:
		return resolveCEO(status)
	case RoleEmployee:
		if !isOwner {
			return Access{ReadOnlyReason: "You do not have access to this PDR"}
		}
		return resolveOwner(status, locked)
	}
	return Access{ReadOnlyReason: "Unknown role"}
}

func resolveCEO(status Status) Access {
	access := Access{
		CanView:               true,
		CanViewEmployeeFields: true,
		CanViewCEOFields:      true,
	}
	if ceoEditable[status] {
		access.CanEdit = true
		access.CanEditCEOFields = true
		return access
	}
	access.ReadOnlyReason = "PDR has not been submitted for review yet"
	return access
}

func resolveOwner(status Status, locked bool) Access {
	access := Access{
		CanView:               true,
		CanViewEmployeeFields: true,
		// CEO ratings and comments stay private until the review cycle
		// completes.
		CanViewCEOFields: status == StatusCompleted,
	}
	if !employeeEditable[status] {
		access.ReadOnlyReason = "PDR status does not allow editing"
		return access
	}
	// Locking only blocks the pre-submission plan stage; later
	// employee-editable stages write progress and reviews, not the plan.
	if status == StatusCreated && locked {
		access.ReadOnlyReason = "PDR is locked and cannot be modified"
		return access
	}
	access.CanEdit = true
	access.CanEditEmployeeFields = true
	return access
}
