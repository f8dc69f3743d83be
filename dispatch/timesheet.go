/*
timesheet.go - Attendance orchestration over the TimeAccountant

PURPOSE:
  Records clock-in/clock-out/meal-break events against confirmed labor
  requests, resolves the policy cascade for each entry, and aggregates a
  call time's entries into a reviewable sheet.

POLICY RESOLUTION:
  Each entry's effective policy cascades nearest-scope-wins:
  requirement -> call time -> event -> location -> company default.

AGGREGATION RULES:
  - Open entries appear as "working", contribute nothing numeric
  - Entries with data-integrity problems (inverted range, break outside
    the clock window) are flagged and excluded from the totals until an
    operator corrects them - never coerced into the sum
  - Everything else contributes normal/penalty/total hours

CORRECTIONS:
  Entries are corrected in place by manager action and recomputed; they
  are never deleted.
*/
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stagecall/staffing-engine/engine"
)

// TimesheetService records attendance and computes hour buckets.
type TimesheetService struct {
	Store      TxStore
	Accountant engine.TimeAccountant
	Logger     *zap.Logger

	Clock func() time.Time
}

// NewTimesheetService wires a service with production defaults.
func NewTimesheetService(store TxStore, logger *zap.Logger) *TimesheetService {
	return &TimesheetService{Store: store, Logger: logger, Clock: time.Now}
}

func (s *TimesheetService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// =============================================================================
// POLICY CASCADE
// =============================================================================

// ResolvePolicyFor resolves the effective policy for one requirement,
// walking the scope chain up to the company default.
func (s *TimesheetService) ResolvePolicyFor(ctx context.Context, store Store, requirementID engine.RequirementID) (engine.ResolvedPolicy, error) {
	requirement, err := store.GetRequirement(ctx, requirementID)
	if err != nil {
		return engine.ResolvedPolicy{}, err
	}
	callTime, err := store.GetCallTime(ctx, requirement.CallTimeID)
	if err != nil {
		return engine.ResolvedPolicy{}, err
	}
	event, err := store.GetEvent(ctx, callTime.EventID)
	if err != nil {
		return engine.ResolvedPolicy{}, err
	}
	return engine.ResolvePolicy(
		requirement.Policy,
		callTime.Policy,
		event.Policy,
		event.Location.Policy,
		engine.CompanyDefaultPolicy(),
	), nil
}

// =============================================================================
// ATTENDANCE RECORDING
// =============================================================================

// ClockIn opens a time entry for a confirmed request. A request has at
// most one entry; clocking in twice is a client error.
func (s *TimesheetService) ClockIn(ctx context.Context, requestID engine.RequestID, at time.Time) (*engine.TimeEntry, error) {
	var entry engine.TimeEntry
	err := s.Store.WithTx(ctx, func(store Store) error {
		r, err := store.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if r.Status() != engine.StatusConfirmed {
			return &engine.TransitionError{RequestID: requestID, From: r.Status(), Action: "clock in"}
		}
		existing, err := store.GetTimeEntryForRequest(ctx, requestID)
		if err != nil && !errors.Is(err, engine.ErrTimeEntryNotFound) {
			return err
		}
		if existing != nil {
			return &engine.TransitionError{RequestID: requestID, From: r.Status(), Action: "clock in again for"}
		}

		entry = engine.TimeEntry{
			ID:        engine.TimeEntryID("te-" + string(requestID)),
			RequestID: requestID,
			Start:     at,
		}
		return store.SaveTimeEntry(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Debug("time entry opened",
		zap.String("entry_id", string(entry.ID)),
		zap.String("request_id", string(entry.RequestID)))
	return &entry, nil
}

// ClockOut closes an open entry.
func (s *TimesheetService) ClockOut(ctx context.Context, entryID engine.TimeEntryID, at time.Time) (*engine.TimeEntry, error) {
	return s.mutate(ctx, entryID, func(e *engine.TimeEntry) error {
		e.End = &at
		return nil
	})
}

// AddBreak records a meal break against an entry. Break validity against
// the clock window is judged at computation time so corrections stay
// possible in any order.
func (s *TimesheetService) AddBreak(ctx context.Context, entryID engine.TimeEntryID, at time.Time, minutes int) (*engine.TimeEntry, error) {
	return s.mutate(ctx, entryID, func(e *engine.TimeEntry) error {
		e.Breaks = append(e.Breaks, engine.MealBreak{At: at, Minutes: minutes})
		return nil
	})
}

// Correct replaces an entry's raw attendance wholesale (manager edit).
func (s *TimesheetService) Correct(ctx context.Context, entry engine.TimeEntry) (*engine.TimeEntry, error) {
	return s.mutate(ctx, entry.ID, func(e *engine.TimeEntry) error {
		e.Start = entry.Start
		e.End = entry.End
		e.Breaks = entry.Breaks
		return nil
	})
}

func (s *TimesheetService) mutate(ctx context.Context, entryID engine.TimeEntryID, apply func(*engine.TimeEntry) error) (*engine.TimeEntry, error) {
	var updated engine.TimeEntry
	err := s.Store.WithTx(ctx, func(store Store) error {
		e, err := store.GetTimeEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if err := apply(e); err != nil {
			return err
		}
		if err := store.SaveTimeEntry(ctx, *e); err != nil {
			return err
		}
		updated = *e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// =============================================================================
// COMPUTATION
// =============================================================================

// ComputeEntry resolves the cascade and computes one entry's hours.
func (s *TimesheetService) ComputeEntry(ctx context.Context, entryID engine.TimeEntryID) (engine.HoursResult, error) {
	entry, err := s.Store.GetTimeEntry(ctx, entryID)
	if err != nil {
		return engine.HoursResult{}, err
	}
	request, err := s.Store.GetRequest(ctx, entry.RequestID)
	if err != nil {
		return engine.HoursResult{}, err
	}
	policy, err := s.ResolvePolicyFor(ctx, s.Store, request.RequirementID)
	if err != nil {
		return engine.HoursResult{}, err
	}
	return s.Accountant.Compute(*entry, policy)
}

// =============================================================================
// CALL TIME SHEET
// =============================================================================

// SheetRow is one worker's line on a call time's sheet.
type SheetRow struct {
	EntryID    engine.TimeEntryID
	RequestID  engine.RequestID
	WorkerID   engine.WorkerID
	WorkerName string

	Working bool                // still clocked in; no numbers
	Result  *engine.HoursResult // nil when Working or flagged
	Problem string              // data-integrity description; row excluded from totals
}

// Sheet is the aggregate view of one call time's attendance.
type Sheet struct {
	CallTimeID engine.CallTimeID
	Rows       []SheetRow

	TotalNormal  decimal.Decimal
	TotalPenalty decimal.Decimal
	TotalHours   decimal.Decimal
	FlaggedRows  int
}

// BuildSheet computes every entry under a call time and aggregates the
// clean ones. Flagged and in-progress rows are listed but never summed.
func (s *TimesheetService) BuildSheet(ctx context.Context, callTimeID engine.CallTimeID) (*Sheet, error) {
	entries, err := s.Store.ListTimeEntriesForCallTime(ctx, callTimeID)
	if err != nil {
		return nil, err
	}

	sheet := &Sheet{
		CallTimeID:   callTimeID,
		TotalNormal:  decimal.Zero,
		TotalPenalty: decimal.Zero,
		TotalHours:   decimal.Zero,
	}

	for _, entry := range entries {
		request, err := s.Store.GetRequest(ctx, entry.RequestID)
		if err != nil {
			return nil, err
		}
		worker, err := s.Store.GetWorker(ctx, request.WorkerID)
		if err != nil {
			return nil, err
		}
		policy, err := s.ResolvePolicyFor(ctx, s.Store, request.RequirementID)
		if err != nil {
			return nil, err
		}

		row := SheetRow{
			EntryID:    entry.ID,
			RequestID:  request.ID,
			WorkerID:   worker.ID,
			WorkerName: worker.Name,
		}

		result, err := s.Accountant.Compute(entry, policy)
		switch {
		case err != nil && engine.IsDataIntegrity(err):
			row.Problem = err.Error()
			sheet.FlaggedRows++
			s.Logger.Warn("time entry excluded from totals",
				zap.String("entry_id", string(entry.ID)),
				zap.Error(err))
		case err != nil:
			return nil, err
		case result.InProgress:
			row.Working = true
		default:
			row.Result = &result
			sheet.TotalNormal = sheet.TotalNormal.Add(result.Normal)
			sheet.TotalPenalty = sheet.TotalPenalty.Add(result.MealPenalty)
			sheet.TotalHours = sheet.TotalHours.Add(result.Total)
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet, nil
}
