/*
errors.go - Centralized error types for the staffing engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers (API layer, services) map these onto HTTP status codes.

ERROR CATEGORIES:
  1. Data-integrity errors - malformed attendance data; the entry is
     excluded from aggregate totals until corrected, never coerced
  2. Transition errors - illegal labor-request state changes
  3. Not-found errors - store-level lookups

NOT ERRORS:
  "No positions available" and "no eligible candidates" are valid
  planner outcomes, reported with diagnostic counts. They never surface
  through this file.

USAGE:
  if errors.Is(err, engine.ErrMealBreakOutOfRange) {
      // flag the entry for manual correction
  }
*/
package engine

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidTimeRange is returned when a time entry's clock-out
	// precedes its clock-in. Never silently clamped.
	ErrInvalidTimeRange = errors.New("invalid time range: end before start")

	// ErrMealBreakOutOfRange is returned when a recorded meal break falls
	// outside the clock-in/clock-out window. The break is flagged, not
	// dropped.
	ErrMealBreakOutOfRange = errors.New("meal break outside clock window")

	// ErrInvalidTransition is returned for labor-request state changes the
	// status machine does not define.
	ErrInvalidTransition = errors.New("invalid request transition")

	// ErrDuplicateRequest is returned when a worker already holds an
	// active request against the same requirement.
	ErrDuplicateRequest = errors.New("worker already requested for requirement")

	// Not-found sentinels for store lookups.
	ErrWorkerNotFound      = errors.New("worker not found")
	ErrSkillNotFound       = errors.New("skill not found")
	ErrEventNotFound       = errors.New("event not found")
	ErrCallTimeNotFound    = errors.New("call time not found")
	ErrRequirementNotFound = errors.New("labor requirement not found")
	ErrRequestNotFound     = errors.New("labor request not found")
	ErrTimeEntryNotFound   = errors.New("time entry not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// TimeRangeError reports a clock-out before clock-in.
type TimeRangeError struct {
	EntryID TimeEntryID
	Start   time.Time
	End     time.Time
}

func (e *TimeRangeError) Error() string {
	return fmt.Sprintf("invalid time range for entry %s: end %s before start %s",
		e.EntryID, e.End.Format(time.RFC3339), e.Start.Format(time.RFC3339))
}

func (e *TimeRangeError) Unwrap() error { return ErrInvalidTimeRange }

// MealBreakError reports every break falling outside the clock window.
// All offending breaks are collected so the operator can correct the
// entry in one pass.
type MealBreakError struct {
	EntryID TimeEntryID
	Breaks  []MealBreak
}

func (e *MealBreakError) Error() string {
	return fmt.Sprintf("%d meal break(s) outside clock window for entry %s",
		len(e.Breaks), e.EntryID)
}

func (e *MealBreakError) Unwrap() error { return ErrMealBreakOutOfRange }

// TransitionError reports an illegal request state change.
type TransitionError struct {
	RequestID RequestID
	From      RequestStatus
	Action    string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s request %s from status %q", e.Action, e.RequestID, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsDataIntegrity reports whether the error marks an attendance entry
// needing manual correction.
func IsDataIntegrity(err error) bool {
	return errors.Is(err, ErrInvalidTimeRange) || errors.Is(err, ErrMealBreakOutOfRange)
}

// IsClientError reports whether the error is due to invalid client input.
func IsClientError(err error) bool {
	return IsDataIntegrity(err) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrDuplicateRequest)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkerNotFound) ||
		errors.Is(err, ErrSkillNotFound) ||
		errors.Is(err, ErrEventNotFound) ||
		errors.Is(err, ErrCallTimeNotFound) ||
		errors.Is(err, ErrRequirementNotFound) ||
		errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrTimeEntryNotFound)
}
