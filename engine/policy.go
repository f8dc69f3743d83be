/*
policy.go - Scoped fulfillment policy cascade

PURPOSE:
  A policy value (minimum hours, meal penalty trigger, rounding increment)
  may be overridden at multiple scopes. Resolution is nearest-scope-wins:

    requirement -> call time -> event -> location -> company

  Each scope contributes a PolicyLayer of optional values; the first
  non-nil value for each field wins. This keeps the cascade an explicit
  ordered list instead of scattered conditional fallbacks.

EXAMPLE:
  resolved := engine.ResolvePolicy(
      requirement.Policy,            // nearest
      callTime.Policy,
      event.Policy,
      event.Location.Policy,
      engine.CompanyDefaultPolicy(), // farthest
  )

SEE ALSO:
  - timesheet.go: Consumes ResolvedPolicy
*/
package engine

import "github.com/shopspring/decimal"

// =============================================================================
// POLICY LAYER - One scope's optional overrides
// =============================================================================

// PolicyLayer holds the policy values one scope chooses to override.
// A nil field means "defer to the next scope".
type PolicyLayer struct {
	// MinimumHours is the contracted minimum a worker is paid for a
	// closed shift, even when clocking out early.
	MinimumHours *decimal.Decimal

	// MealPenaltyTriggerHours is how long a worker may work continuously
	// before a missed meal break incurs a one-hour penalty. Zero disables
	// the penalty.
	MealPenaltyTriggerHours *decimal.Decimal

	// RoundUpMinutes is the rounding increment applied to worked hours,
	// in minutes. Zero disables rounding.
	RoundUpMinutes *int
}

// IsZero reports whether the layer overrides nothing.
func (l PolicyLayer) IsZero() bool {
	return l.MinimumHours == nil && l.MealPenaltyTriggerHours == nil && l.RoundUpMinutes == nil
}

// =============================================================================
// RESOLVED POLICY - The effective values after cascade resolution
// =============================================================================

// ResolvedPolicy is the fully-resolved policy applied to one time entry.
type ResolvedPolicy struct {
	MinimumHours            decimal.Decimal
	MealPenaltyTriggerHours decimal.Decimal
	RoundUpMinutes          int
}

// ResolvePolicy resolves the cascade. Layers are ordered nearest scope
// first; the first non-nil value for each field wins. Fields left nil by
// every layer resolve to their zero value (no minimum, no penalty, no
// rounding).
func ResolvePolicy(layers ...PolicyLayer) ResolvedPolicy {
	var resolved ResolvedPolicy
	var haveMin, haveTrigger, haveRound bool

	for _, layer := range layers {
		if !haveMin && layer.MinimumHours != nil {
			resolved.MinimumHours = *layer.MinimumHours
			haveMin = true
		}
		if !haveTrigger && layer.MealPenaltyTriggerHours != nil {
			resolved.MealPenaltyTriggerHours = *layer.MealPenaltyTriggerHours
			haveTrigger = true
		}
		if !haveRound && layer.RoundUpMinutes != nil {
			resolved.RoundUpMinutes = *layer.RoundUpMinutes
			haveRound = true
		}
		if haveMin && haveTrigger && haveRound {
			break
		}
	}
	return resolved
}

// CompanyDefaultPolicy is the outermost cascade layer. Every field is set
// so a fully-unconfigured hierarchy still resolves to usable values.
func CompanyDefaultPolicy() PolicyLayer {
	return PolicyLayer{
		MinimumHours:            HoursPtr(4),
		MealPenaltyTriggerHours: HoursPtr(5),
		RoundUpMinutes:          MinutesPtr(30),
	}
}
