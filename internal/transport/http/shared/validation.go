package shared

import (
	"net/http"
	"strconv"
	"strings"

	"pdr/internal/transport/http/api"
	"pdr/internal/transport/http/middleware"
)

type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validator accumulates field issues so a response can report every problem
// at once instead of the first one hit.
type Validator struct {
	issues []FieldIssue
}

func (v *Validator) Add(field, message string) {
	v.issues = append(v.issues, FieldIssue{Field: field, Message: message})
}

func (v *Validator) Required(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "is required")
	}
}

func (v *Validator) Enum(field, value string, allowed ...string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	for _, candidate := range allowed {
		if value == candidate {
			return
		}
	}
	v.Add(field, "must be one of: "+strings.Join(allowed, ", "))
}

func (v *Validator) Range(field string, value, min, max int) {
	if value < min || value > max {
		v.Add(field, "must be between "+itoa(min)+" and "+itoa(max))
	}
}

func (v *Validator) MaxLen(field, value string, limit int) {
	if len(value) > limit {
		v.Add(field, "must be at most "+itoa(limit)+" characters")
	}
}

func (v *Validator) HasIssues() bool {
	return len(v.issues) > 0
}

func (v *Validator) Issues() []FieldIssue {
	return v.issues
}

func FailValidation(w http.ResponseWriter, r *http.Request, v *Validator) {
	api.FailWithDetails(w, http.StatusBadRequest, "validation_error", "payload validation failed",
		map[string]any{"fields": v.Issues()}, middleware.GetRequestID(r.Context()))
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
