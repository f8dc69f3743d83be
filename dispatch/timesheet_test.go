package dispatch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stagecall/staffing-engine/dispatch"
	"github.com/stagecall/staffing-engine/engine"
)

// tsFixture reuses the fulfillment fixture and adds a timesheet service
// plus one confirmed request ready to clock in.
type tsFixture struct {
	*fixture
	ts        *dispatch.TimesheetService
	confirmed engine.LaborRequest
}

func newTimesheetFixture(t *testing.T) *tsFixture {
	t.Helper()
	f := newFixture(t, 2,
		consentingWorker("w1", skillRigger),
		consentingWorker("w2", skillRigger),
	)
	ctx := context.Background()

	r, err := f.svc.RequestWorker(ctx, f.requirement.ID, "w1", false)
	require.NoError(t, err)
	confirmed, err := f.svc.Confirm(ctx, r.ID)
	require.NoError(t, err)

	ts := dispatch.NewTimesheetService(f.store, zap.NewNop())
	ts.Clock = func() time.Time { return fixedNow }
	return &tsFixture{fixture: f, ts: ts, confirmed: *confirmed}
}

func (f *tsFixture) clockedInEntry(t *testing.T) engine.TimeEntry {
	t.Helper()
	entry, err := f.ts.ClockIn(context.Background(), f.confirmed.ID, fixedNow)
	require.NoError(t, err)
	return *entry
}

// =============================================================================
// CLOCK IN / OUT
// =============================================================================

func TestClockIn_ConfirmedOnly(t *testing.T) {
	f := newTimesheetFixture(t)
	ctx := context.Background()

	entry := f.clockedInEntry(t)
	assert.True(t, entry.Open())
	assert.Equal(t, fixedNow, entry.Start)

	// A pending request cannot clock in.
	pending, err := f.svc.RequestWorker(ctx, f.requirement.ID, "w2", false)
	require.NoError(t, err)
	_, err = f.ts.ClockIn(ctx, pending.ID, fixedNow)
	assert.ErrorIs(t, err, engine.ErrInvalidTransition)
}

func TestClockIn_Twice_ClientError(t *testing.T) {
	f := newTimesheetFixture(t)
	f.clockedInEntry(t)

	_, err := f.ts.ClockIn(context.Background(), f.confirmed.ID, fixedNow.Add(time.Minute))
	assert.ErrorIs(t, err, engine.ErrInvalidTransition)
	assert.True(t, engine.IsClientError(err))
}

func TestClockOut_ClosesAndComputes(t *testing.T) {
	f := newTimesheetFixture(t)
	ctx := context.Background()
	entry := f.clockedInEntry(t)

	// 8.5h shift with a half-hour break at the five hour mark.
	_, err := f.ts.AddBreak(ctx, entry.ID, fixedNow.Add(5*time.Hour), 30)
	require.NoError(t, err)
	closed, err := f.ts.ClockOut(ctx, entry.ID, fixedNow.Add(8*time.Hour+30*time.Minute))
	require.NoError(t, err)
	assert.False(t, closed.Open())

	result, err := f.ts.ComputeEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.False(t, result.InProgress)
	assert.Equal(t, "8", result.Normal.String())
	assert.True(t, result.MealPenalty.IsZero())
	assert.Equal(t, "8", result.Total.String())
}

func TestComputeEntry_OpenEntry_InProgress(t *testing.T) {
	f := newTimesheetFixture(t)
	entry := f.clockedInEntry(t)

	result, err := f.ts.ComputeEntry(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.True(t, result.InProgress)
	assert.True(t, result.Total.IsZero())
}

func TestCorrect_ReplacesAttendanceInPlace(t *testing.T) {
	f := newTimesheetFixture(t)
	ctx := context.Background()
	entry := f.clockedInEntry(t)

	end := fixedNow.Add(2 * time.Hour)
	fixed := entry
	fixed.Start = fixedNow.Add(30 * time.Minute)
	fixed.End = &end
	_, err := f.ts.Correct(ctx, fixed)
	require.NoError(t, err)

	// 1.5h worked, floored to the 4h contracted minimum.
	result, err := f.ts.ComputeEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "4", result.Total.String())
}

// =============================================================================
// POLICY CASCADE THROUGH THE HIERARCHY
// =============================================================================

func TestResolvePolicyFor_RequirementOverridesEverything(t *testing.T) {
	f := newTimesheetFixture(t)
	ctx := context.Background()

	req := f.requirement
	req.Policy = engine.PolicyLayer{MinimumHours: engine.HoursPtr(6)}
	require.NoError(t, f.store.SaveRequirement(ctx, req))

	policy, err := f.ts.ResolvePolicyFor(ctx, f.store, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "6", policy.MinimumHours.String())
	// Unset fields fall through to the company defaults.
	assert.Equal(t, "5", policy.MealPenaltyTriggerHours.String())
	assert.Equal(t, 30, policy.RoundUpMinutes)
}

// =============================================================================
// SHEET AGGREGATION
// =============================================================================

func TestBuildSheet_SumsCleanSkipsWorkingFlagsBroken(t *testing.T) {
	f := newTimesheetFixture(t)
	ctx := context.Background()

	// Row 1: clean closed shift, 09:00-17:30 with a break. 8h.
	e1 := f.clockedInEntry(t)
	_, err := f.ts.AddBreak(ctx, e1.ID, fixedNow.Add(4*time.Hour), 30)
	require.NoError(t, err)
	_, err = f.ts.ClockOut(ctx, e1.ID, fixedNow.Add(8*time.Hour+30*time.Minute))
	require.NoError(t, err)

	// Row 2: still clocked in.
	r2, err := f.svc.RequestWorker(ctx, f.requirement.ID, "w2", false)
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, r2.ID)
	require.NoError(t, err)
	_, err = f.ts.ClockIn(ctx, r2.ID, fixedNow)
	require.NoError(t, err)

	sheet, err := f.ts.BuildSheet(ctx, f.callTime.ID)
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, "8", sheet.TotalHours.String())
	assert.Zero(t, sheet.FlaggedRows)

	byEntry := map[engine.TimeEntryID]dispatch.SheetRow{}
	for _, row := range sheet.Rows {
		byEntry[row.EntryID] = row
	}
	require.NotNil(t, byEntry[e1.ID].Result)
	assert.False(t, byEntry[e1.ID].Working)
	assert.True(t, byEntry["te-"+engine.TimeEntryID(r2.ID)].Working)
}

func TestBuildSheet_BrokenRowFlaggedAndExcludedFromTotals(t *testing.T) {
	f := newTimesheetFixture(t)
	ctx := context.Background()

	entry := f.clockedInEntry(t)
	// Inverted range via manager correction.
	end := fixedNow.Add(-time.Hour)
	bad := entry
	bad.End = &end
	_, err := f.ts.Correct(ctx, bad)
	require.NoError(t, err)

	sheet, err := f.ts.BuildSheet(ctx, f.callTime.ID)
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 1)
	assert.Equal(t, 1, sheet.FlaggedRows)
	assert.NotEmpty(t, sheet.Rows[0].Problem)
	assert.Nil(t, sheet.Rows[0].Result)
	assert.True(t, sheet.TotalHours.IsZero())

	// Correcting the row brings it back into the sum.
	goodEnd := fixedNow.Add(4 * time.Hour)
	good := entry
	good.End = &goodEnd
	_, err = f.ts.Correct(ctx, good)
	require.NoError(t, err)

	sheet, err = f.ts.BuildSheet(ctx, f.callTime.ID)
	require.NoError(t, err)
	assert.Zero(t, sheet.FlaggedRows)
	assert.Equal(t, "4", sheet.TotalHours.String())
}

func TestBuildSheet_EmptyCallTime(t *testing.T) {
	f := newTimesheetFixture(t)
	sheet, err := f.ts.BuildSheet(context.Background(), f.callTime.ID)
	require.NoError(t, err)
	assert.Empty(t, sheet.Rows)
	assert.True(t, sheet.TotalHours.IsZero())
}
