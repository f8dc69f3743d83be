/*
Package engine provides the core staffing computation engine.

PURPOSE:
  This package contains the pure decision logic for event staffing:
  converting raw attendance events into billable hour buckets, and
  matching open labor positions against a worker pool. It has no I/O,
  no persistence, and no transport concerns - callers load the data,
  invoke the engine, and persist the results.

KEY CONCEPTS IN THIS FILE (types.go):
  - Worker: A crew member with skills, phones, and consent state
  - Skill: A labor type (rigger, stagehand, forklift, ...)
  - Typed IDs: Strong typing prevents mixing worker/skill/request ids

DESIGN PRINCIPLES:
  1. Purity: Every computation is a function of its inputs
  2. Precision: Uses decimal.Decimal for hour arithmetic
  3. Type Safety: Strong typing for IDs
  4. Reportability: Empty results are outcomes, not errors

SEE ALSO:
  - timesheet.go: TimeAccountant hour computation
  - fulfillment.go: Planner need assessment and auto-fill
  - policy.go: Scoped policy cascade resolution
  - request.go: LaborRequest status machine
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type WorkerID string
type SkillID string
type EventID string
type CallTimeID string
type RequirementID string
type RequestID string
type TimeEntryID string

// =============================================================================
// SKILL - A labor type (many-to-many with workers and requirements)
// =============================================================================

// Skill is a labor type. Name is unique within a company.
type Skill struct {
	ID   SkillID
	Name string
}

// =============================================================================
// WORKER - A crew member
// =============================================================================

// ConsentState tracks whether a worker may legally receive SMS requests.
type ConsentState string

const (
	ConsentNotSent ConsentState = "not_sent" // no consent message ever sent
	ConsentPending ConsentState = "pending"  // consent requested, no reply yet
	ConsentGranted ConsentState = "granted"  // worker opted in
	ConsentBlocked ConsentState = "blocked"  // worker sent STOP
)

// Phone is an additional contact number with a label ("home", "spouse", ...).
type Phone struct {
	Number string
	Label  string
}

// Worker is a crew member referenced immutably by planning.
// Consent and the reliability counters are mutated by external feedback
// (SMS delivery, attendance observation).
type Worker struct {
	ID        WorkerID
	Name      string
	Phone     string  // primary number
	AltPhones []Phone // ordered alternates

	Skills  []SkillID
	Consent ConsentState

	// Reliability counters
	NoShowCount   int // no-call-no-shows recorded against this worker
	CanceledCount int // confirmed requests later canceled
}

// HasSkill reports whether the worker holds the given skill.
func (w Worker) HasSkill(id SkillID) bool {
	for _, s := range w.Skills {
		if s == id {
			return true
		}
	}
	return false
}

// CanReceiveSMS reports whether a request SMS can actually be delivered.
// Workers without granted consent may still be selected by the planner,
// but the caller must surface them as warnings.
func (w Worker) CanReceiveSMS() bool {
	return w.Consent == ConsentGranted
}

// =============================================================================
// DECIMAL HELPERS - All hour values are fixed-point, never float
// =============================================================================

// Hours builds a decimal hour quantity from a float literal.
func Hours(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

// HoursPtr is a convenience for optional policy fields.
func HoursPtr(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

// MinutesPtr is a convenience for optional rounding increments.
func MinutesPtr(n int) *int {
	return &n
}
