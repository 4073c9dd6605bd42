package pdr

import "testing"

func TestResolveAccessOwner(t *testing.T) {
	cases := []struct {
		status       Status
		canEdit      bool
		seesCEOSide  bool
	}{
		{StatusCreated, true, false},
		{StatusSubmitted, false, false},
		{StatusPlanLocked, true, false},
		{StatusMidYearSubmitted, false, false},
		{StatusMidYearApproved, true, false},
		{StatusEndYearSubmitted, false, false},
		{StatusCompleted, false, true},
	}

	for _, tc := range cases {
		access := ResolveAccess(tc.status, false, RoleEmployee, true)
		if !access.CanView || !access.CanViewEmployeeFields {
			t.Fatalf("%s: owner must always view their own PDR", tc.status)
		}
		if access.CanEdit != tc.canEdit {
			t.Errorf("%s: canEdit=%v, want %v", tc.status, access.CanEdit, tc.canEdit)
		}
		if access.CanEditEmployeeFields != tc.canEdit {
			t.Errorf("%s: canEditEmployeeFields=%v, want %v", tc.status, access.CanEditEmployeeFields, tc.canEdit)
		}
		if access.CanEditCEOFields {
			t.Errorf("%s: owner must never edit CEO fields", tc.status)
		}
		if access.CanViewCEOFields != tc.seesCEOSide {
			t.Errorf("%s: canViewCeoFields=%v, want %v", tc.status, access.CanViewCEOFields, tc.seesCEOSide)
		}
		if !access.CanEdit && access.ReadOnlyReason == "" {
			t.Errorf("%s: read-only access needs a reason", tc.status)
		}
	}
}

func TestResolveAccessCEO(t *testing.T) {
	for _, status := range allStatuses {
		access := ResolveAccess(status, status != StatusCreated, RoleCEO, false)
		if !access.CanView || !access.CanViewEmployeeFields || !access.CanViewCEOFields {
			t.Fatalf("%s: CEO must view everything", status)
		}
		wantEdit := status != StatusCreated
		if access.CanEdit != wantEdit || access.CanEditCEOFields != wantEdit {
			t.Errorf("%s: CEO edit=%v, want %v", status, access.CanEdit, wantEdit)
		}
		if access.CanEditEmployeeFields {
			t.Errorf("%s: CEO must never edit employee self-assessment fields", status)
		}
	}
}

func TestResolveAccessNonOwnerEmployee(t *testing.T) {
	access := ResolveAccess(StatusPlanLocked, true, RoleEmployee, false)
	if access.CanView || access.CanEdit || access.CanViewEmployeeFields || access.CanViewCEOFields {
		t.Fatalf("another employee's PDR must be invisible: %+v", access)
	}
}

func TestResolveAccessLockBlocksDraft(t *testing.T) {
	access := ResolveAccess(StatusCreated, true, RoleEmployee, true)
	if access.CanEdit {
		t.Fatal("a locked draft must be read-only for the owner")
	}
	if access.ReadOnlyReason == "" {
		t.Fatal("lock rejection needs a reason")
	}

	// Post-lock stages stay writable; the lock only freezes the plan itself.
	access = ResolveAccess(StatusPlanLocked, true, RoleEmployee, true)
	if !access.CanEdit {
		t.Fatal("the owner writes progress against a locked plan")
	}
}

func TestRedactForActorHidesCEOFields(t *testing.T) {
	rating := 4
	p := plannedPDR()
	p.Status = StatusPlanLocked
	p.Goals[0].CEORating = &rating
	p.Goals[0].CEOComments = "Solid plan"
	p.Behaviors[0].CEORating = &rating
	p.Behaviors[0].CEOAdjustedInitiative = "Own the rollout comms"
	p.MidYear = &MidYearReview{CEOFeedback: "On track", CEORating: &rating}
	p.EndYear = &EndYearReview{CEOFeedback: "Great year", CEORating: &rating}

	redacted := RedactForActor(p, RoleEmployee, p.UserID)
	if redacted.Goals[0].CEORating != nil || redacted.Goals[0].CEOComments != "" {
		t.Fatal("goal CEO fields leaked to the owner")
	}
	if redacted.Behaviors[0].CEORating != nil || redacted.Behaviors[0].CEOAdjustedInitiative != "" {
		t.Fatal("behavior CEO fields leaked to the owner")
	}
	if redacted.MidYear.CEOFeedback != "" || redacted.MidYear.CEORating != nil {
		t.Fatal("mid-year CEO fields leaked to the owner")
	}
	if redacted.EndYear.CEOFeedback != "" || redacted.EndYear.CEORating != nil {
		t.Fatal("end-year CEO fields leaked to the owner")
	}

	// The stored aggregate is untouched.
	if p.Goals[0].CEORating == nil || p.MidYear.CEOFeedback == "" {
		t.Fatal("redaction mutated the source aggregate")
	}
}

func TestRedactForActorKeepsCEOFieldsWhenVisible(t *testing.T) {
	rating := 4
	p := plannedPDR()
	p.Status = StatusCompleted
	p.Goals[0].CEORating = &rating

	if redacted := RedactForActor(p, RoleEmployee, p.UserID); redacted.Goals[0].CEORating == nil {
		t.Fatal("completed reviews are fully visible to the owner")
	}
	p.Status = StatusPlanLocked
	if redacted := RedactForActor(p, RoleCEO, "ceo-1"); redacted.Goals[0].CEORating == nil {
		t.Fatal("the CEO always sees CEO fields")
	}
}
