/*
service.go - Fulfillment orchestration: plan, commit, notify

PURPOSE:
  Wraps the pure planner with everything the engine deliberately leaves
  to the caller: loading the requirement and its pool, holding the
  per-requirement transaction so concurrent operators cannot jointly
  overbook, creating the labor requests, dispatching the SMS, and
  announcing the change.

AUTO-FILL FLOW:
  1. WithTx: load requirement, requests, candidate pool (workers
     annotated with requested/reserved flags and scheduling conflicts)
  2. WithTx: plan - need arithmetic, ranking, selection
  3. WithTx: commit - one new request per selected worker
  4. After commit: SMS dispatch per reachable worker, change event

  Steps 1-3 share one transaction: the read-compute-write span for a
  requirement is never interleaved with another auto-fill for the same
  requirement.

POSTCONDITION:
  Every selected worker holds exactly one active request against the
  requirement. Workers the SMS collaborator cannot reach are committed
  anyway and surfaced as warnings - the operator may have a manual
  workaround.

BULK CONFIRM:
  Atomic per id, independent across ids. A bad id never rolls back the
  others; the report lists both sets.

SEE ALSO:
  - engine/fulfillment.go: The decision logic this service commits
  - timesheet.go: The attendance side of the same store
*/
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stagecall/staffing-engine/engine"
)

// FulfillmentService orchestrates planning and request lifecycle.
type FulfillmentService struct {
	Store    TxStore
	Planner  *engine.Planner
	SMS      SMSDispatcher
	Notifier Notifier
	Logger   *zap.Logger

	// Clock is overridable in tests.
	Clock func() time.Time
}

// NewFulfillmentService wires a service with production defaults.
func NewFulfillmentService(store TxStore, sms SMSDispatcher, notifier Notifier, logger *zap.Logger) *FulfillmentService {
	return &FulfillmentService{
		Store:    store,
		Planner:  engine.NewPlanner(),
		SMS:      sms,
		Notifier: notifier,
		Logger:   logger,
		Clock:    time.Now,
	}
}

func (s *FulfillmentService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// =============================================================================
// ASSESSMENT
// =============================================================================

// Assess computes the remaining need for one requirement.
func (s *FulfillmentService) Assess(ctx context.Context, id engine.RequirementID) (engine.NeedAssessment, error) {
	req, err := s.Store.GetRequirement(ctx, id)
	if err != nil {
		return engine.NeedAssessment{}, err
	}
	requests, err := s.Store.ListRequestsForRequirement(ctx, id)
	if err != nil {
		return engine.NeedAssessment{}, err
	}
	return s.Planner.Assess(*req, requests), nil
}

// =============================================================================
// AUTO-FILL
// =============================================================================

// AutoFillReport is the committed outcome of one auto-fill run.
type AutoFillReport struct {
	Assessment engine.NeedAssessment
	Selected   []engine.WorkerID
	Shortfall  int
	Warnings   []engine.CandidateWarning
	Created    []engine.LaborRequest
}

// AutoFill plans and commits requests for one requirement. The plan and
// commit share a transaction; SMS dispatch happens only after commit.
func (s *FulfillmentService) AutoFill(ctx context.Context, id engine.RequirementID) (*AutoFillReport, error) {
	var report AutoFillReport
	var callTime engine.CallTime
	workers := map[engine.WorkerID]engine.Worker{}

	err := s.Store.WithTx(ctx, func(store Store) error {
		requirement, err := store.GetRequirement(ctx, id)
		if err != nil {
			return err
		}
		ct, err := store.GetCallTime(ctx, requirement.CallTimeID)
		if err != nil {
			return err
		}
		callTime = *ct

		requests, err := store.ListRequestsForRequirement(ctx, id)
		if err != nil {
			return err
		}
		candidates, err := s.buildCandidates(ctx, store, *requirement, *ct, requests)
		if err != nil {
			return err
		}
		for _, c := range candidates {
			workers[c.Worker.ID] = c.Worker
		}

		result := s.Planner.AutoFill(*requirement, requests, candidates)
		report.Assessment = result.Assessment
		report.Selected = result.Selected
		report.Shortfall = result.Shortfall
		report.Warnings = result.Warnings

		now := s.now()
		for _, workerID := range result.Selected {
			r := newRequest(id, workerID, now)
			if err := store.SaveRequest(ctx, r); err != nil {
				return err
			}
			report.Created = append(report.Created, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if report.Assessment.Filled() {
		s.Logger.Info("auto-fill: no positions available",
			zap.String("requirement_id", string(id)),
			zap.Int("needed", report.Assessment.NeededLabor),
			zap.Int("confirmed", report.Assessment.ConfirmedCount),
			zap.Int("reserved", report.Assessment.ReservedCount),
			zap.Int("requested", report.Assessment.RequestedCount),
			zap.Int("overbooked_by", report.Assessment.OverbookedBy()),
		)
		return &report, nil
	}

	// Commit is done; deliver outside the transaction.
	for i := range report.Created {
		r := &report.Created[i]
		w := workers[r.WorkerID]
		if !w.CanReceiveSMS() {
			continue
		}
		if err := s.SMS.SendRequest(ctx, w, *r, callTime); err != nil {
			s.Logger.Warn("sms dispatch failed",
				zap.String("request_id", string(r.ID)),
				zap.Error(err))
			continue
		}
		r.SMSSent = true
		if err := s.Store.SaveRequest(ctx, *r); err != nil {
			return nil, err
		}
	}

	if len(report.Created) > 0 {
		s.Notifier.Publish(ctx, ChangeEvent{
			Kind:          ChangeRequestCreated,
			RequirementID: id,
			CallTimeID:    callTime.ID,
			At:            s.now(),
		})
	}

	if report.Shortfall > 0 {
		s.Logger.Warn("auto-fill shortfall",
			zap.String("requirement_id", string(id)),
			zap.Int("shortfall", report.Shortfall))
	}
	return &report, nil
}

// buildCandidates annotates the full worker pool for one requirement:
// existing relationship flags plus scheduling conflicts against any
// overlapping call time, whatever those conflicts' statuses.
func (s *FulfillmentService) buildCandidates(
	ctx context.Context,
	store Store,
	requirement engine.LaborRequirement,
	callTime engine.CallTime,
	existing []engine.LaborRequest,
) ([]engine.Candidate, error) {
	pool, err := store.ListWorkers(ctx)
	if err != nil {
		return nil, err
	}

	related := map[engine.WorkerID]engine.LaborRequest{}
	for _, r := range existing {
		related[r.WorkerID] = r
	}

	callTimes := map[engine.RequirementID]engine.CallTime{requirement.ID: callTime}

	candidates := make([]engine.Candidate, 0, len(pool))
	for _, w := range pool {
		c := engine.Candidate{Worker: w}
		// A declined request frees the slot but still blocks automatic
		// re-selection; only a manager re-requests a worker who said no.
		if r, ok := related[w.ID]; ok && r.Status() != engine.StatusCanceled && r.Status() != engine.StatusNCNS {
			if r.Reserved && !r.Confirmed {
				c.Reserved = true
			} else {
				c.Requested = true
			}
		}

		others, err := store.ListRequestsForWorker(ctx, w.ID)
		if err != nil {
			return nil, err
		}
		for _, other := range others {
			if other.RequirementID == requirement.ID {
				continue
			}
			otherCT, ok := callTimes[other.RequirementID]
			if !ok {
				otherReq, err := store.GetRequirement(ctx, other.RequirementID)
				if err != nil {
					return nil, err
				}
				ct, err := store.GetCallTime(ctx, otherReq.CallTimeID)
				if err != nil {
					return nil, err
				}
				otherCT = *ct
				callTimes[other.RequirementID] = otherCT
			}
			if callTime.Overlaps(otherCT) {
				c.Conflicts = append(c.Conflicts, engine.Conflict{
					RequestID:  other.ID,
					CallTimeID: otherCT.ID,
					Status:     other.Status(),
				})
			}
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func newRequest(requirementID engine.RequirementID, workerID engine.WorkerID, now time.Time) engine.LaborRequest {
	return engine.LaborRequest{
		ID:            engine.RequestID(uuid.NewString()),
		RequirementID: requirementID,
		WorkerID:      workerID,
		Response:      engine.ResponseNone,
		Token:         strings.ReplaceAll(uuid.NewString(), "-", ""),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// =============================================================================
// MANUAL REQUEST / RESERVE
// =============================================================================

// RequestWorker creates a single request (or reservation) by manager
// action, bypassing ranking but not the duplicate check.
func (s *FulfillmentService) RequestWorker(ctx context.Context, requirementID engine.RequirementID, workerID engine.WorkerID, reserve bool) (*engine.LaborRequest, error) {
	var created engine.LaborRequest
	err := s.Store.WithTx(ctx, func(store Store) error {
		if _, err := store.GetRequirement(ctx, requirementID); err != nil {
			return err
		}
		if _, err := store.GetWorker(ctx, workerID); err != nil {
			return err
		}
		existing, err := store.ListRequestsForRequirement(ctx, requirementID)
		if err != nil {
			return err
		}
		for _, r := range existing {
			if r.WorkerID == workerID && r.IsActive() {
				return fmt.Errorf("%w: worker %s, requirement %s",
					engine.ErrDuplicateRequest, workerID, requirementID)
			}
		}

		created = newRequest(requirementID, workerID, s.now())
		if reserve {
			created.Reserved = true
		}
		return store.SaveRequest(ctx, created)
	})
	if err != nil {
		return nil, err
	}

	s.Notifier.Publish(ctx, ChangeEvent{
		Kind:          ChangeRequestCreated,
		RequirementID: requirementID,
		RequestID:     created.ID,
		WorkerID:      workerID,
		At:            s.now(),
	})
	return &created, nil
}

// =============================================================================
// SMS REPLY
// =============================================================================

// RecordReply applies a worker's availability reply, located by the
// opaque token from the SMS link.
func (s *FulfillmentService) RecordReply(ctx context.Context, token string, available bool) (*engine.LaborRequest, error) {
	r, err := s.Store.GetRequestByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := r.RecordReply(available, s.now()); err != nil {
		return nil, err
	}
	if err := s.Store.SaveRequest(ctx, *r); err != nil {
		return nil, err
	}
	s.publishRequestUpdate(ctx, *r)
	return r, nil
}

// =============================================================================
// MANAGER TRANSITIONS
// =============================================================================

// Confirm locks a worker in, including the override paths out of
// canceled and ncns.
func (s *FulfillmentService) Confirm(ctx context.Context, id engine.RequestID) (*engine.LaborRequest, error) {
	return s.transition(ctx, id, func(r *engine.LaborRequest, now time.Time) error {
		return r.Confirm(now)
	})
}

// Decline moves a non-terminal request to declined.
func (s *FulfillmentService) Decline(ctx context.Context, id engine.RequestID) (*engine.LaborRequest, error) {
	return s.transition(ctx, id, func(r *engine.LaborRequest, now time.Time) error {
		return r.Decline(now)
	})
}

// Cancel releases a confirmed worker and bumps their cancellation
// counter.
func (s *FulfillmentService) Cancel(ctx context.Context, id engine.RequestID) (*engine.LaborRequest, error) {
	return s.transitionWithWorker(ctx, id,
		func(r *engine.LaborRequest, now time.Time) error { return r.Cancel(now) },
		func(w *engine.Worker) { w.CanceledCount++ },
	)
}

// MarkNCNS records a no-call-no-show and bumps the worker's counter.
func (s *FulfillmentService) MarkNCNS(ctx context.Context, id engine.RequestID) (*engine.LaborRequest, error) {
	return s.transitionWithWorker(ctx, id,
		func(r *engine.LaborRequest, now time.Time) error { return r.MarkNCNS(now) },
		func(w *engine.Worker) { w.NoShowCount++ },
	)
}

// DeleteRequest removes a request entirely. Hard delete, not a state.
func (s *FulfillmentService) DeleteRequest(ctx context.Context, id engine.RequestID) error {
	r, err := s.Store.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Store.DeleteRequest(ctx, id); err != nil {
		return err
	}
	s.Notifier.Publish(ctx, ChangeEvent{
		Kind:          ChangeRequestDeleted,
		RequirementID: r.RequirementID,
		RequestID:     id,
		WorkerID:      r.WorkerID,
		At:            s.now(),
	})
	return nil
}

func (s *FulfillmentService) transition(ctx context.Context, id engine.RequestID, apply func(*engine.LaborRequest, time.Time) error) (*engine.LaborRequest, error) {
	return s.transitionWithWorker(ctx, id, apply, nil)
}

func (s *FulfillmentService) transitionWithWorker(
	ctx context.Context,
	id engine.RequestID,
	apply func(*engine.LaborRequest, time.Time) error,
	bump func(*engine.Worker),
) (*engine.LaborRequest, error) {
	var updated engine.LaborRequest
	err := s.Store.WithTx(ctx, func(store Store) error {
		r, err := store.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if err := apply(r, s.now()); err != nil {
			return err
		}
		if err := store.SaveRequest(ctx, *r); err != nil {
			return err
		}
		if bump != nil {
			w, err := store.GetWorker(ctx, r.WorkerID)
			if err != nil {
				return err
			}
			bump(w)
			if err := store.SaveWorker(ctx, *w); err != nil {
				return err
			}
		}
		updated = *r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishRequestUpdate(ctx, updated)
	return &updated, nil
}

func (s *FulfillmentService) publishRequestUpdate(ctx context.Context, r engine.LaborRequest) {
	s.Notifier.Publish(ctx, ChangeEvent{
		Kind:          ChangeRequestUpdated,
		RequirementID: r.RequirementID,
		RequestID:     r.ID,
		WorkerID:      r.WorkerID,
		At:            s.now(),
	})
}

// =============================================================================
// BULK CONFIRM
// =============================================================================

// PerIDResult reports the outcome for one id in a bulk operation.
type PerIDResult struct {
	ID  engine.RequestID
	OK  bool
	Err string
}

// BulkConfirm confirms each id independently. A failing id never rolls
// back the ones that succeeded; the report carries both sets.
func (s *FulfillmentService) BulkConfirm(ctx context.Context, ids []engine.RequestID) []PerIDResult {
	results := make([]PerIDResult, 0, len(ids))
	failures := 0
	for _, id := range ids {
		if _, err := s.Confirm(ctx, id); err != nil {
			results = append(results, PerIDResult{ID: id, Err: err.Error()})
			failures++
			continue
		}
		results = append(results, PerIDResult{ID: id, OK: true})
	}
	if failures > 0 {
		s.Logger.Warn("bulk confirm partially failed",
			zap.Int("succeeded", len(ids)-failures),
			zap.Int("failed", failures))
	}
	return results
}

// =============================================================================
// CALL TIME CHANGES
// =============================================================================

// RescheduleCallTime moves a call time. If request SMS already went out,
// the call time is flagged and every confirmed request drops back to
// available so the affected workers re-confirm the new time.
func (s *FulfillmentService) RescheduleCallTime(ctx context.Context, id engine.CallTimeID, startsAt, endsAt time.Time) (*engine.CallTime, error) {
	var updated engine.CallTime
	err := s.Store.WithTx(ctx, func(store Store) error {
		ct, err := store.GetCallTime(ctx, id)
		if err != nil {
			return err
		}
		ct.StartsAt = startsAt
		ct.EndsAt = endsAt

		requirements, err := store.ListRequirements(ctx, id)
		if err != nil {
			return err
		}
		now := s.now()
		for _, requirement := range requirements {
			requests, err := store.ListRequestsForRequirement(ctx, requirement.ID)
			if err != nil {
				return err
			}
			for _, r := range requests {
				if !r.SMSSent {
					continue
				}
				ct.TimeHasChanged = true
				if r.Status() == engine.StatusConfirmed {
					r.RequireReconfirm(now)
					if err := store.SaveRequest(ctx, r); err != nil {
						return err
					}
				}
			}
		}

		if err := store.SaveCallTime(ctx, *ct); err != nil {
			return err
		}
		updated = *ct
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Notifier.Publish(ctx, ChangeEvent{
		Kind:       ChangeCallTimeMoved,
		CallTimeID: id,
		At:         s.now(),
	})
	return &updated, nil
}
