package dispatch_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stagecall/staffing-engine/dispatch"
	"github.com/stagecall/staffing-engine/engine"
	"github.com/stagecall/staffing-engine/store/memory"
)

// =============================================================================
// FIXTURES
// =============================================================================

var fixedNow = time.Date(2026, 4, 20, 9, 0, 0, 0, time.UTC)

func randSource(seed int64) *rand.Rand { return rand.New(rand.NewSource(seed)) }

const skillRigger engine.SkillID = "rigger"

type smsRecorder struct {
	sent []engine.WorkerID
	fail bool
}

func (r *smsRecorder) SendRequest(_ context.Context, w engine.Worker, _ engine.LaborRequest, _ engine.CallTime) error {
	if r.fail {
		return errors.New("gateway unreachable")
	}
	r.sent = append(r.sent, w.ID)
	return nil
}

type fixture struct {
	store   *memory.Store
	svc     *dispatch.FulfillmentService
	sms     *smsRecorder
	bus     *dispatch.Bus
	changes []dispatch.ChangeEvent

	callTime    engine.CallTime
	requirement engine.LaborRequirement
}

// newFixture seeds one event with one call time and one requirement
// needing `needed` riggers, plus the given workers.
func newFixture(t *testing.T, needed int, workers ...engine.Worker) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()

	f := &fixture{store: st, sms: &smsRecorder{}, bus: dispatch.NewBus()}
	f.bus.Subscribe(func(e dispatch.ChangeEvent) { f.changes = append(f.changes, e) })

	require.NoError(t, st.SaveSkill(ctx, engine.Skill{ID: skillRigger, Name: "Rigger"}))
	event := engine.Event{
		ID:    "ev-1",
		Slug:  "load-in",
		Name:  "Arena Load-In",
		Start: fixedNow,
		End:   fixedNow.Add(12 * time.Hour),
	}
	require.NoError(t, st.SaveEvent(ctx, event))

	f.callTime = engine.CallTime{
		ID:       "ct-1",
		EventID:  event.ID,
		Name:     "Morning Call",
		StartsAt: fixedNow,
		EndsAt:   fixedNow.Add(8 * time.Hour),
	}
	require.NoError(t, st.SaveCallTime(ctx, f.callTime))

	f.requirement = engine.LaborRequirement{
		ID:          "rq-1",
		CallTimeID:  f.callTime.ID,
		SkillID:     skillRigger,
		NeededLabor: needed,
	}
	require.NoError(t, st.SaveRequirement(ctx, f.requirement))

	for _, w := range workers {
		require.NoError(t, st.SaveWorker(ctx, w))
	}

	f.svc = dispatch.NewFulfillmentService(st, f.sms, f.bus, zap.NewNop())
	f.svc.Planner = engine.NewPlannerWithRand(randSource(1))
	f.svc.Clock = func() time.Time { return fixedNow }
	return f
}

func consentingWorker(id engine.WorkerID, skills ...engine.SkillID) engine.Worker {
	return engine.Worker{
		ID:      id,
		Name:    "Worker " + string(id),
		Phone:   "+15550" + string(id),
		Skills:  skills,
		Consent: engine.ConsentGranted,
	}
}

// =============================================================================
// AUTO-FILL
// =============================================================================

func TestAutoFill_CommitsRequestsAndDispatchesSMS(t *testing.T) {
	f := newFixture(t, 2,
		consentingWorker("w1", skillRigger),
		consentingWorker("w2", skillRigger),
		consentingWorker("w3"),
	)
	ctx := context.Background()

	report, err := f.svc.AutoFill(ctx, f.requirement.ID)
	require.NoError(t, err)

	assert.Len(t, report.Selected, 2)
	assert.Zero(t, report.Shortfall)
	require.Len(t, report.Created, 2)

	// Skill matches go first, so both riggers were taken.
	assert.ElementsMatch(t, []engine.WorkerID{"w1", "w2"}, report.Selected)

	stored, err := f.store.ListRequestsForRequirement(ctx, f.requirement.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for _, r := range stored {
		assert.Equal(t, engine.StatusPending, r.Status())
		assert.True(t, r.SMSSent, "request %s should be marked sent", r.ID)
		assert.NotEmpty(t, r.Token)
	}
	assert.ElementsMatch(t, []engine.WorkerID{"w1", "w2"}, f.sms.sent)
}

func TestAutoFill_ConsentProblemCommitsWithoutSMS(t *testing.T) {
	blocked := consentingWorker("w1", skillRigger)
	blocked.Consent = engine.ConsentBlocked
	f := newFixture(t, 1, blocked)
	ctx := context.Background()

	report, err := f.svc.AutoFill(ctx, f.requirement.ID)
	require.NoError(t, err)

	require.Len(t, report.Created, 1)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, engine.WorkerID("w1"), report.Warnings[0].WorkerID)

	// Committed anyway, but no delivery and no sent flag.
	assert.Empty(t, f.sms.sent)
	stored, err := f.store.ListRequestsForRequirement(ctx, f.requirement.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.False(t, stored[0].SMSSent)
}

func TestAutoFill_SMSFailureDoesNotRollBackCommit(t *testing.T) {
	f := newFixture(t, 1, consentingWorker("w1", skillRigger))
	f.sms.fail = true
	ctx := context.Background()

	report, err := f.svc.AutoFill(ctx, f.requirement.ID)
	require.NoError(t, err)
	require.Len(t, report.Created, 1)

	stored, err := f.store.ListRequestsForRequirement(ctx, f.requirement.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.False(t, stored[0].SMSSent)
}

func TestAutoFill_FilledRequirement_NoNewRequests(t *testing.T) {
	f := newFixture(t, 1,
		consentingWorker("w1", skillRigger),
		consentingWorker("w2", skillRigger),
	)
	ctx := context.Background()

	_, err := f.svc.RequestWorker(ctx, f.requirement.ID, "w1", false)
	require.NoError(t, err)

	report, err := f.svc.AutoFill(ctx, f.requirement.ID)
	require.NoError(t, err)
	assert.Empty(t, report.Created)
	assert.True(t, report.Assessment.Filled())
	assert.Empty(t, f.sms.sent)
}

func TestAutoFill_EmptyPool_NoCreationEvent(t *testing.T) {
	// Nothing committed means nothing to announce: subscribers must not
	// see a creation event for an auto-fill that created no requests.
	f := newFixture(t, 2)
	ctx := context.Background()

	report, err := f.svc.AutoFill(ctx, f.requirement.ID)
	require.NoError(t, err)
	assert.Empty(t, report.Created)
	assert.Equal(t, 2, report.Shortfall)
	assert.Empty(t, f.changes)
}

func TestAutoFill_SkipsWorkersWithOverlappingCommitments(t *testing.T) {
	f := newFixture(t, 1, consentingWorker("w1", skillRigger))
	ctx := context.Background()

	// Same worker already requested on an overlapping call time.
	other := engine.CallTime{
		ID:       "ct-2",
		EventID:  "ev-1",
		Name:     "Overlapping Call",
		StartsAt: fixedNow.Add(2 * time.Hour),
		EndsAt:   fixedNow.Add(10 * time.Hour),
	}
	require.NoError(t, f.store.SaveCallTime(ctx, other))
	otherReq := engine.LaborRequirement{ID: "rq-2", CallTimeID: other.ID, SkillID: skillRigger, NeededLabor: 1}
	require.NoError(t, f.store.SaveRequirement(ctx, otherReq))
	_, err := f.svc.RequestWorker(ctx, otherReq.ID, "w1", false)
	require.NoError(t, err)

	report, err := f.svc.AutoFill(ctx, f.requirement.ID)
	require.NoError(t, err)
	assert.Empty(t, report.Selected)
	assert.Equal(t, 1, report.Shortfall)
}

func TestAutoFill_UnknownRequirement_NotFound(t *testing.T) {
	f := newFixture(t, 1)
	_, err := f.svc.AutoFill(context.Background(), "nope")
	assert.ErrorIs(t, err, engine.ErrRequirementNotFound)
}

// =============================================================================
// MANUAL REQUEST
// =============================================================================

func TestRequestWorker_DuplicateActiveRejected(t *testing.T) {
	f := newFixture(t, 2, consentingWorker("w1", skillRigger))
	ctx := context.Background()

	first, err := f.svc.RequestWorker(ctx, f.requirement.ID, "w1", false)
	require.NoError(t, err)

	_, err = f.svc.RequestWorker(ctx, f.requirement.ID, "w1", false)
	assert.ErrorIs(t, err, engine.ErrDuplicateRequest)

	// A canceled slot frees the worker for a fresh request.
	_, err = f.svc.Confirm(ctx, first.ID)
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, first.ID)
	require.NoError(t, err)

	_, err = f.svc.RequestWorker(ctx, f.requirement.ID, "w1", false)
	assert.NoError(t, err)
}

func TestRequestWorker_DeclineFreesSlotAndReRequestCountsOnce(t *testing.T) {
	f := newFixture(t, 2, consentingWorker("w1", skillRigger))
	ctx := context.Background()

	first, err := f.svc.RequestWorker(ctx, f.requirement.ID, "w1", false)
	require.NoError(t, err)
	_, err = f.svc.Decline(ctx, first.ID)
	require.NoError(t, err)

	// The decline released the position.
	a, err := f.svc.Assess(ctx, f.requirement.ID)
	require.NoError(t, err)
	assert.Zero(t, a.RequestedCount)
	assert.Equal(t, 2, a.PositionsNeeded)

	// Re-requesting the decliner occupies exactly one slot; the dead
	// declined request must not count alongside the fresh one.
	_, err = f.svc.RequestWorker(ctx, f.requirement.ID, "w1", false)
	require.NoError(t, err)

	a, err = f.svc.Assess(ctx, f.requirement.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, a.RequestedCount)
	assert.Equal(t, 1, a.PositionsNeeded)
}

func TestRequestWorker_Reserve(t *testing.T) {
	f := newFixture(t, 1, consentingWorker("w1", skillRigger))
	r, err := f.svc.RequestWorker(context.Background(), f.requirement.ID, "w1", true)
	require.NoError(t, err)
	assert.True(t, r.Reserved)

	assessment, err := f.svc.Assess(context.Background(), f.requirement.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, assessment.ReservedCount)
	assert.True(t, assessment.Filled())
}

// =============================================================================
// REPLY AND TRANSITIONS
// =============================================================================

func TestRecordReply_ByToken(t *testing.T) {
	f := newFixture(t, 1, consentingWorker("w1", skillRigger))
	ctx := context.Background()

	created, err := f.svc.RequestWorker(ctx, f.requirement.ID, "w1", false)
	require.NoError(t, err)

	replied, err := f.svc.RecordReply(ctx, created.Token, true)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusAvailable, replied.Status())

	_, err = f.svc.RecordReply(ctx, "bogus-token", true)
	assert.ErrorIs(t, err, engine.ErrRequestNotFound)
}

func TestCancel_BumpsWorkerCounter(t *testing.T) {
	f := newFixture(t, 1, consentingWorker("w1", skillRigger))
	ctx := context.Background()

	r, err := f.svc.RequestWorker(ctx, f.requirement.ID, "w1", false)
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, r.ID)
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, r.ID)
	require.NoError(t, err)

	w, err := f.store.GetWorker(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, 1, w.CanceledCount)
	assert.Zero(t, w.NoShowCount)
}

func TestMarkNCNS_BumpsWorkerCounter(t *testing.T) {
	f := newFixture(t, 1, consentingWorker("w1", skillRigger))
	ctx := context.Background()

	r, err := f.svc.RequestWorker(ctx, f.requirement.ID, "w1", false)
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, r.ID)
	require.NoError(t, err)
	_, err = f.svc.MarkNCNS(ctx, r.ID)
	require.NoError(t, err)

	w, err := f.store.GetWorker(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, 1, w.NoShowCount)
}

func TestTransition_InvalidMove_NothingPersisted(t *testing.T) {
	f := newFixture(t, 1, consentingWorker("w1", skillRigger))
	ctx := context.Background()

	r, err := f.svc.RequestWorker(ctx, f.requirement.ID, "w1", false)
	require.NoError(t, err)

	// Cancel requires confirmed; pending must be left untouched.
	_, err = f.svc.Cancel(ctx, r.ID)
	assert.ErrorIs(t, err, engine.ErrInvalidTransition)

	stored, err := f.store.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusPending, stored.Status())

	w, err := f.store.GetWorker(ctx, "w1")
	require.NoError(t, err)
	assert.Zero(t, w.CanceledCount)
}

func TestDeleteRequest_RemovesAndAnnounces(t *testing.T) {
	f := newFixture(t, 1, consentingWorker("w1", skillRigger))
	ctx := context.Background()

	r, err := f.svc.RequestWorker(ctx, f.requirement.ID, "w1", false)
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteRequest(ctx, r.ID))

	_, err = f.store.GetRequest(ctx, r.ID)
	assert.ErrorIs(t, err, engine.ErrRequestNotFound)

	last := f.changes[len(f.changes)-1]
	assert.Equal(t, dispatch.ChangeRequestDeleted, last.Kind)
	assert.Equal(t, r.ID, last.RequestID)
}

// =============================================================================
// BULK CONFIRM
// =============================================================================

func TestBulkConfirm_PartialFailureIsPerID(t *testing.T) {
	f := newFixture(t, 3,
		consentingWorker("w1", skillRigger),
		consentingWorker("w2", skillRigger),
	)
	ctx := context.Background()

	r1, err := f.svc.RequestWorker(ctx, f.requirement.ID, "w1", false)
	require.NoError(t, err)
	r2, err := f.svc.RequestWorker(ctx, f.requirement.ID, "w2", false)
	require.NoError(t, err)

	results := f.svc.BulkConfirm(ctx, []engine.RequestID{r1.ID, "missing", r2.ID})
	require.Len(t, results, 3)
	assert.True(t, results[0].OK)
	assert.False(t, results[1].OK)
	assert.NotEmpty(t, results[1].Err)
	assert.True(t, results[2].OK)

	for _, id := range []engine.RequestID{r1.ID, r2.ID} {
		stored, err := f.store.GetRequest(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, engine.StatusConfirmed, stored.Status())
	}
}

// =============================================================================
// CALL TIME CHANGES
// =============================================================================

func TestRescheduleCallTime_NotifiedWorkersMustReconfirm(t *testing.T) {
	f := newFixture(t, 2,
		consentingWorker("w1", skillRigger),
		consentingWorker("w2", skillRigger),
	)
	ctx := context.Background()

	report, err := f.svc.AutoFill(ctx, f.requirement.ID)
	require.NoError(t, err)
	require.Len(t, report.Created, 2)

	confirmed := report.Created[0]
	_, err = f.svc.Confirm(ctx, confirmed.ID)
	require.NoError(t, err)

	moved, err := f.svc.RescheduleCallTime(ctx, f.callTime.ID,
		fixedNow.Add(time.Hour), fixedNow.Add(9*time.Hour))
	require.NoError(t, err)
	assert.True(t, moved.TimeHasChanged)

	// Confirmed drops back to available; the untouched pending stays pending.
	r, err := f.store.GetRequest(ctx, confirmed.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusAvailable, r.Status())

	other, err := f.store.GetRequest(ctx, report.Created[1].ID)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusPending, other.Status())
}

func TestRescheduleCallTime_NoSMSSent_NoFlagNoDemotion(t *testing.T) {
	f := newFixture(t, 1, consentingWorker("w1", skillRigger))
	ctx := context.Background()

	// Manual request, no SMS ever dispatched.
	r, err := f.svc.RequestWorker(ctx, f.requirement.ID, "w1", false)
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, r.ID)
	require.NoError(t, err)

	moved, err := f.svc.RescheduleCallTime(ctx, f.callTime.ID,
		fixedNow.Add(time.Hour), fixedNow.Add(9*time.Hour))
	require.NoError(t, err)
	assert.False(t, moved.TimeHasChanged)

	stored, err := f.store.GetRequest(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusConfirmed, stored.Status())
}
