/*
timesheet.go - TimeAccountant: raw attendance events to billable hours

PURPOSE:
  Converts one worker's raw clock-in/clock-out/meal-break events plus the
  applicable fulfillment policy into finalized hour buckets:

    normal hours       worked hours, rounded, floored at the contracted
                       minimum
    meal penalty hours one compensation hour per trigger interval worked
                       continuously without a meal break
    total hours        normal + meal penalty

  Pure function, no side effects. Recomputation is idempotent and safe to
  call repeatedly.

ALGORITHM:
  1. Open entry (no clock-out) -> "in progress", no numeric hours
  2. raw = clock-out - clock-in (clock-out before clock-in is an error,
     never a silent clamp)
  3. Subtract in-window meal breaks; a break outside the window is a
     data inconsistency and the entry is excluded from totals
  4. Round worked hours UP to the policy increment - toward the worker's
     benefit, applied once to the final figure, never per-segment
  5. Accrue meal penalties per continuous work segment
  6. Floor at the contracted minimum (closed entries only)

PRECISION:
  All hour values are decimal.Decimal. Floats drift; payroll doesn't.

SEE ALSO:
  - policy.go: ResolvedPolicy consumed here
  - errors.go: TimeRangeError, MealBreakError
*/
package engine

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TIME ENTRY - Raw attendance for one confirmed request
// =============================================================================

// MealBreak is one recorded meal break. Minutes is 30 or 60.
type MealBreak struct {
	At      time.Time
	Minutes int
}

// TimeEntry is the raw attendance record for one confirmed labor request.
// End is nil while the worker is still clocked in. Entries are corrected,
// never deleted.
type TimeEntry struct {
	ID        TimeEntryID
	RequestID RequestID

	Start  time.Time
	End    *time.Time
	Breaks []MealBreak
}

// Open reports whether the worker is still clocked in.
func (e TimeEntry) Open() bool { return e.End == nil }

// =============================================================================
// HOURS RESULT
// =============================================================================

// HoursResult is the computed hour buckets for one time entry.
// When InProgress is set no numeric field is meaningful; the caller must
// render a "working" state, never a number.
type HoursResult struct {
	InProgress bool

	Normal      decimal.Decimal
	MealPenalty decimal.Decimal
	Total       decimal.Decimal
}

// =============================================================================
// TIME ACCOUNTANT
// =============================================================================

var sixty = decimal.NewFromInt(60)

// TimeAccountant computes hour buckets from raw attendance. Stateless.
type TimeAccountant struct{}

// Compute converts one time entry and its resolved policy into an
// HoursResult. Data-integrity failures (inverted range, break outside the
// clock window) are returned as errors; the entry must be excluded from
// aggregate totals until corrected.
func (TimeAccountant) Compute(entry TimeEntry, policy ResolvedPolicy) (HoursResult, error) {
	if entry.Open() {
		return HoursResult{InProgress: true}, nil
	}
	end := *entry.End

	if end.Before(entry.Start) {
		return HoursResult{}, &TimeRangeError{EntryID: entry.ID, Start: entry.Start, End: end}
	}

	raw := hoursBetween(entry.Start, end)

	// Validate breaks before using them. All offenders are collected so
	// the operator corrects the entry in one pass.
	breaks := sortedBreaks(entry.Breaks)
	var outOfRange []MealBreak
	breakHours := decimal.Zero
	for _, b := range breaks {
		breakEnd := b.At.Add(time.Duration(b.Minutes) * time.Minute)
		if b.At.Before(entry.Start) || breakEnd.After(end) {
			outOfRange = append(outOfRange, b)
			continue
		}
		breakHours = breakHours.Add(decimal.NewFromInt(int64(b.Minutes)).Div(sixty))
	}
	if len(outOfRange) > 0 {
		return HoursResult{}, &MealBreakError{EntryID: entry.ID, Breaks: outOfRange}
	}

	worked := raw.Sub(breakHours)
	if worked.IsNegative() {
		worked = decimal.Zero
	}

	// Rounding is applied once, to the final worked figure, and only
	// upward: rounded hours never undercount the worker.
	if policy.RoundUpMinutes > 0 {
		increment := decimal.NewFromInt(int64(policy.RoundUpMinutes)).Div(sixty)
		worked = worked.Div(increment).Ceil().Mul(increment)
	}

	penalty := mealPenaltyHours(entry.Start, end, breaks, policy.MealPenaltyTriggerHours)

	// Minimum-hours floor: a worker clocking out early is still paid the
	// contracted minimum. Open entries never reach this point.
	normal := worked
	if policy.MinimumHours.IsPositive() && normal.LessThan(policy.MinimumHours) {
		normal = policy.MinimumHours
	}

	return HoursResult{
		Normal:      normal,
		MealPenalty: penalty,
		Total:       normal.Add(penalty),
	}, nil
}

// mealPenaltyHours accrues one penalty hour per trigger interval worked
// continuously without a meal break. Each break resets the continuous
// clock; within one stretch, a penalty accrues every time the stretch
// extends strictly past another trigger multiple. Accrual is uncapped.
func mealPenaltyHours(start, end time.Time, breaks []MealBreak, trigger decimal.Decimal) decimal.Decimal {
	if !trigger.IsPositive() {
		return decimal.Zero
	}

	penalty := decimal.Zero
	segStart := start
	for _, b := range breaks {
		penalty = penalty.Add(segmentPenalties(hoursBetween(segStart, b.At), trigger))
		segStart = b.At.Add(time.Duration(b.Minutes) * time.Minute)
	}
	penalty = penalty.Add(segmentPenalties(hoursBetween(segStart, end), trigger))
	return penalty
}

// segmentPenalties counts trigger multiples strictly exceeded by one
// continuous stretch. A stretch of exactly the trigger length incurs
// nothing; one second past it incurs the first penalty hour.
func segmentPenalties(length, trigger decimal.Decimal) decimal.Decimal {
	if length.LessThanOrEqual(trigger) {
		return decimal.Zero
	}
	intervals := length.Div(trigger).Ceil().Sub(decimal.NewFromInt(1))
	if intervals.IsNegative() {
		return decimal.Zero
	}
	return intervals
}

func hoursBetween(a, b time.Time) decimal.Decimal {
	if b.Before(a) {
		return decimal.Zero
	}
	seconds := decimal.NewFromInt(int64(b.Sub(a) / time.Second))
	return seconds.Div(decimal.NewFromInt(3600))
}

func sortedBreaks(breaks []MealBreak) []MealBreak {
	out := make([]MealBreak, len(breaks))
	copy(out, breaks)
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}
