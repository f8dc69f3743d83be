package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestResolvePolicy_NearestScopeWins(t *testing.T) {
	// GIVEN: requirement overrides minimum hours, event overrides the
	//        trigger, location carries rounding
	// THEN: each field resolves from its nearest contributing scope

	requirementLayer := PolicyLayer{MinimumHours: HoursPtr(10)}
	callTimeLayer := PolicyLayer{}
	eventLayer := PolicyLayer{MinimumHours: HoursPtr(8), MealPenaltyTriggerHours: HoursPtr(6)}
	locationLayer := PolicyLayer{RoundUpMinutes: MinutesPtr(15)}

	resolved := ResolvePolicy(requirementLayer, callTimeLayer, eventLayer, locationLayer, CompanyDefaultPolicy())

	assert.True(t, resolved.MinimumHours.Equal(decimal.NewFromInt(10)))
	assert.True(t, resolved.MealPenaltyTriggerHours.Equal(decimal.NewFromInt(6)))
	assert.Equal(t, 15, resolved.RoundUpMinutes)
}

func TestResolvePolicy_FallsThroughToCompanyDefaults(t *testing.T) {
	resolved := ResolvePolicy(PolicyLayer{}, PolicyLayer{}, CompanyDefaultPolicy())
	defaults := CompanyDefaultPolicy()

	assert.True(t, resolved.MinimumHours.Equal(*defaults.MinimumHours))
	assert.True(t, resolved.MealPenaltyTriggerHours.Equal(*defaults.MealPenaltyTriggerHours))
	assert.Equal(t, *defaults.RoundUpMinutes, resolved.RoundUpMinutes)
}

func TestResolvePolicy_ExplicitZeroBeatsOuterValue(t *testing.T) {
	// A scope may explicitly disable a behavior: zero is a value, not an
	// absence.
	resolved := ResolvePolicy(
		PolicyLayer{MealPenaltyTriggerHours: HoursPtr(0), RoundUpMinutes: MinutesPtr(0)},
		CompanyDefaultPolicy(),
	)
	assert.True(t, resolved.MealPenaltyTriggerHours.IsZero())
	assert.Equal(t, 0, resolved.RoundUpMinutes)
}

func TestResolvePolicy_NoLayers_ZeroValues(t *testing.T) {
	resolved := ResolvePolicy()
	assert.True(t, resolved.MinimumHours.IsZero())
	assert.True(t, resolved.MealPenaltyTriggerHours.IsZero())
	assert.Zero(t, resolved.RoundUpMinutes)
}

func TestCallTimeOverlaps(t *testing.T) {
	a := CallTime{StartsAt: at(8, 0), EndsAt: at(16, 0)}
	b := CallTime{StartsAt: at(15, 0), EndsAt: at(23, 0)}
	c := CallTime{StartsAt: at(16, 0), EndsAt: at(23, 0)}

	assert.True(t, a.Overlaps(b))
	assert.True(t, b.Overlaps(a))
	assert.False(t, a.Overlaps(c), "touching windows do not overlap")
}
