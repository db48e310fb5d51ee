// Package shared holds request validation used by the HTTP handlers.
// Issues are collected per field and rejected in one response.
package shared

import (
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"payengine/internal/transport/http/api"
)

const dayLayout = "2006-01-02"

type FieldIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type Validator struct {
	issues []FieldIssue
}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) Add(field, reason string) {
	v.issues = append(v.issues, FieldIssue{Field: field, Reason: reason})
}

// Count checks a collection size against an inclusive range.
func (v *Validator) Count(field string, n, minimum, maximum int) {
	switch {
	case n < minimum:
		v.Add(field, "at least "+strconv.Itoa(minimum)+" required")
	case n > maximum:
		v.Add(field, "at most "+strconv.Itoa(maximum)+" allowed")
	}
}

// OneOf accepts an empty value or one of allowed, case-insensitively, and
// returns the value lower-cased.
func (v *Validator) OneOf(field, raw string, allowed []string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" || slices.Contains(allowed, value) {
		return value
	}
	v.Add(field, "must be one of "+strings.Join(allowed, ", "))
	return ""
}

// Year parses a four digit year, or returns fallback when raw is empty.
func (v *Validator) Year(field, raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 1900 || year > 9999 {
		v.Add(field, "must be a four digit year")
		return fallback
	}
	return year
}

// Day parses an optional YYYY-MM-DD value in UTC.
func (v *Validator) Day(field, raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	day, err := time.Parse(dayLayout, strings.TrimSpace(raw))
	if err != nil {
		v.Add(field, "must be a date in YYYY-MM-DD format")
		return time.Time{}
	}
	return day
}

// DayRange flags both ends when from is after to.
func (v *Validator) DayRange(fromField string, from time.Time, toField string, to time.Time) {
	if from.IsZero() || to.IsZero() || !from.After(to) {
		return
	}
	v.Add(fromField, "must be on or before "+toField)
	v.Add(toField, "must be on or after "+fromField)
}

// Page reads limit and offset. Values out of range are issues rather than
// silently clamped.
func (v *Validator) Page(query url.Values, defaultLimit, maxLimit int) Page {
	page := Page{Limit: defaultLimit}
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxLimit {
			v.Add("limit", "must be between 1 and "+strconv.Itoa(maxLimit))
		} else {
			page.Limit = n
		}
	}
	if raw := query.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			v.Add("offset", "must be zero or positive")
		} else {
			page.Offset = n
		}
	}
	return page
}

// Issues returns the collected issues ordered by field.
func (v *Validator) Issues() []FieldIssue {
	out := slices.Clone(v.issues)
	slices.SortStableFunc(out, func(a, b FieldIssue) int { return strings.Compare(a.Field, b.Field) })
	return out
}

// Reject writes a 400 validation_error when any issue was collected.
func (v *Validator) Reject(w http.ResponseWriter, requestID string) bool {
	if len(v.issues) == 0 {
		return false
	}
	api.FailWithDetails(w, http.StatusBadRequest, "validation_error", "request validation failed",
		map[string]any{"fields": v.Issues()}, requestID)
	return true
}
