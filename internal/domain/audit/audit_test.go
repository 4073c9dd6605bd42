package audit

import (
	"strings"
	"testing"
	"time"
)

func TestBuildBaseQueryFilters(t *testing.T) {
	s := &Service{}
	from := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)

	query, args := s.buildBaseQuery("SELECT COUNT(1)", Filter{
		Action:    "pdr.submitForReview",
		ActorUser: "user-1",
		From:      from,
		To:        to,
	})

	for _, clause := range []string{"action = $1", "actor_user_id::text = $2", "created_at >= $3", "created_at <= $4"} {
		if !strings.Contains(query, clause) {
			t.Fatalf("query missing %q: %s", clause, query)
		}
	}
	if len(args) != 4 {
		t.Fatalf("expected 4 args, got %d: %v", len(args), args)
	}
	if args[2] != from || args[3] != to {
		t.Fatalf("time bounds not threaded through: %v", args)
	}
}

func TestBuildBaseQueryNoFilter(t *testing.T) {
	s := &Service{}
	query, args := s.buildBaseQuery("SELECT COUNT(1)", Filter{})
	if query != "SELECT COUNT(1) FROM audit_events WHERE 1=1" {
		t.Fatalf("unexpected query: %s", query)
	}
	if len(args) != 0 {
		t.Fatalf("expected no args, got %v", args)
	}
}
