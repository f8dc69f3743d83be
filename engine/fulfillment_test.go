package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const skillRigger SkillID = "rigger"

func seededPlanner(seed int64) *Planner {
	return NewPlannerWithRand(rand.New(rand.NewSource(seed)))
}

func worker(id WorkerID, skills ...SkillID) Worker {
	return Worker{ID: id, Name: string(id), Consent: ConsentGranted, Skills: skills}
}

func candidate(w Worker) Candidate {
	return Candidate{Worker: w}
}

func requirement(needed int) LaborRequirement {
	return LaborRequirement{ID: "lr-1", CallTimeID: "ct-1", SkillID: skillRigger, NeededLabor: needed}
}

// =============================================================================
// NEED ASSESSMENT (Step A)
// =============================================================================

func TestAssess_CountsAndConservation(t *testing.T) {
	// GIVEN: needed 5, with 2 confirmed, 1 reserved, 1 requested
	// THEN: one position remains and the counts conserve the headcount

	p := seededPlanner(1)
	requests := []LaborRequest{
		{ID: "a", Confirmed: true},
		{ID: "b", Confirmed: true},
		{ID: "c", Reserved: true},
		{ID: "d", Response: ResponseYes},
	}

	a := p.Assess(requirement(5), requests)
	assert.Equal(t, 2, a.ConfirmedCount)
	assert.Equal(t, 1, a.ReservedCount)
	assert.Equal(t, 1, a.RequestedCount)
	assert.Equal(t, 1, a.PositionsNeeded)
	assert.Equal(t, a.NeededLabor,
		a.PositionsNeeded+a.ConfirmedCount+a.ReservedCount+a.RequestedCount)
}

func TestAssess_CanceledAndNCNSFreeTheirSlots(t *testing.T) {
	p := seededPlanner(1)
	requests := []LaborRequest{
		{ID: "a", Confirmed: true, Canceled: true},
		{ID: "b", Confirmed: true, NCNS: true},
	}

	a := p.Assess(requirement(2), requests)
	assert.Equal(t, 0, a.ConfirmedCount)
	assert.Equal(t, 2, a.PositionsNeeded)
}

func TestAssess_DeclinedFreesSlot(t *testing.T) {
	// A decline releases the position immediately; the request no longer
	// counts as requested.

	p := seededPlanner(1)
	requests := []LaborRequest{
		{ID: "a", Response: ResponseNo},
	}

	a := p.Assess(requirement(2), requests)
	assert.Equal(t, 0, a.RequestedCount)
	assert.Equal(t, 2, a.PositionsNeeded)
}

func TestAssess_DeclineThenReRequest_CountsOnce(t *testing.T) {
	// The same worker asked again after declining: only the fresh pending
	// request occupies a slot, so the need arithmetic agrees with the
	// re-request rule in IsActive.

	p := seededPlanner(1)
	requests := []LaborRequest{
		{ID: "a", WorkerID: "w1", Response: ResponseNo},
		{ID: "b", WorkerID: "w1"},
	}

	a := p.Assess(requirement(2), requests)
	assert.Equal(t, 1, a.RequestedCount)
	assert.Equal(t, 1, a.PositionsNeeded)
}

func TestAssess_Overbooked_ReportedNotSilent(t *testing.T) {
	// GIVEN: needed 3 but 4 confirmed
	// THEN: assessment reports overbooked by 1 and auto-fill is a no-op

	p := seededPlanner(1)
	var requests []LaborRequest
	for _, id := range []RequestID{"a", "b", "c", "d"} {
		requests = append(requests, LaborRequest{ID: id, Confirmed: true})
	}

	a := p.Assess(requirement(3), requests)
	assert.Equal(t, -1, a.PositionsNeeded)
	assert.Equal(t, 1, a.OverbookedBy())
	assert.True(t, a.Filled())

	result := p.AutoFill(requirement(3), requests, []Candidate{candidate(worker("w1", skillRigger))})
	assert.Empty(t, result.Selected)
	assert.Equal(t, -1, result.Assessment.PositionsNeeded)
}

// =============================================================================
// RANKING (Step C)
// =============================================================================

func TestRank_MatchedAlwaysBeforeUnmatched(t *testing.T) {
	// The matched-first invariant must hold regardless of shuffle seed.
	candidates := []Candidate{
		candidate(worker("u1")),
		candidate(worker("m1", skillRigger)),
		candidate(worker("u2")),
		candidate(worker("m2", skillRigger)),
		candidate(worker("u3")),
	}

	for seed := int64(0); seed < 50; seed++ {
		ranked := seededPlanner(seed).Rank(candidates, skillRigger)
		require.Len(t, ranked, 5)

		// Matched keep their input order; every matched id precedes every
		// unmatched id.
		assert.Equal(t, WorkerID("m1"), ranked[0], "seed %d", seed)
		assert.Equal(t, WorkerID("m2"), ranked[1], "seed %d", seed)
		assert.ElementsMatch(t,
			[]WorkerID{"u1", "u2", "u3"}, ranked[2:], "seed %d", seed)
	}
}

func TestRank_UnmatchedOrderVariesAcrossInvocations(t *testing.T) {
	// The shuffle is re-drawn per call - exposure fairness depends on it.
	var candidates []Candidate
	for _, id := range []WorkerID{"a", "b", "c", "d", "e", "f", "g", "h"} {
		candidates = append(candidates, candidate(worker(id)))
	}

	p := seededPlanner(7)
	first := p.Rank(candidates, skillRigger)
	varied := false
	for i := 0; i < 20 && !varied; i++ {
		next := p.Rank(candidates, skillRigger)
		for j := range next {
			if next[j] != first[j] {
				varied = true
				break
			}
		}
	}
	assert.True(t, varied, "repeated ranking never reshuffled the unmatched pool")
}

// =============================================================================
// AUTO-FILL (Steps B + D)
// =============================================================================

func TestAutoFill_SelectsSkillMatchForLastSlot(t *testing.T) {
	// GIVEN: needed 5 with 2 confirmed + 1 reserved + 1 requested -> 1 open
	//        Pool of 3 eligible, one holding the skill
	// THEN: The matched worker is selected; no shortfall

	p := seededPlanner(3)
	requests := []LaborRequest{
		{ID: "a", Confirmed: true},
		{ID: "b", Confirmed: true},
		{ID: "c", Reserved: true},
		{ID: "d", Response: ResponseYes},
	}
	candidates := []Candidate{
		candidate(worker("plain-1")),
		candidate(worker("skilled", skillRigger)),
		candidate(worker("plain-2")),
	}

	result := p.AutoFill(requirement(5), requests, candidates)
	require.Equal(t, 1, result.Assessment.PositionsNeeded)
	assert.Equal(t, []WorkerID{"skilled"}, result.Selected)
	assert.Zero(t, result.Shortfall)
}

func TestAutoFill_NeverSelectsReservedRequestedOrConflicted(t *testing.T) {
	candidates := []Candidate{
		{Worker: worker("reserved", skillRigger), Reserved: true},
		{Worker: worker("requested", skillRigger), Requested: true},
		{Worker: worker("conflicted", skillRigger), Conflicts: []Conflict{
			{RequestID: "other", CallTimeID: "ct-9", Status: StatusPending},
		}},
		candidate(worker("free", skillRigger)),
	}

	for seed := int64(0); seed < 20; seed++ {
		result := seededPlanner(seed).AutoFill(requirement(4), nil, candidates)
		assert.Equal(t, []WorkerID{"free"}, result.Selected, "seed %d", seed)
		assert.Equal(t, 3, result.Shortfall, "seed %d", seed)
	}
}

func TestAutoFill_PendingConflictExcludesLikeConfirmed(t *testing.T) {
	// A merely-pending request on an overlapping call time is still a
	// hard exclusion at this stage.
	c := Candidate{Worker: worker("w", skillRigger), Conflicts: []Conflict{
		{RequestID: "x", CallTimeID: "ct-2", Status: StatusPending},
	}}
	assert.False(t, c.eligible())

	c.Conflicts[0].Status = StatusConfirmed
	assert.False(t, c.eligible())
}

func TestAutoFill_ShortPool_SelectsAllReportsShortfall(t *testing.T) {
	p := seededPlanner(3)
	candidates := []Candidate{
		candidate(worker("only", skillRigger)),
	}

	result := p.AutoFill(requirement(4), nil, candidates)
	assert.Equal(t, []WorkerID{"only"}, result.Selected)
	assert.Equal(t, 3, result.Shortfall)
}

func TestAutoFill_EmptyPool_OutcomeNotError(t *testing.T) {
	p := seededPlanner(3)
	result := p.AutoFill(requirement(2), nil, nil)
	assert.Empty(t, result.Selected)
	assert.Equal(t, 2, result.Shortfall)
}

func TestAutoFill_ConsentProblemsWarnButDoNotFilter(t *testing.T) {
	// Blocked and unconsented workers stay selectable - a manual
	// workaround may exist - but the operator is told.
	blocked := worker("blocked", skillRigger)
	blocked.Consent = ConsentBlocked
	unconsented := worker("silent", skillRigger)
	unconsented.Consent = ConsentNotSent

	p := seededPlanner(3)
	result := p.AutoFill(requirement(2), nil, []Candidate{
		candidate(blocked),
		candidate(unconsented),
	})

	require.Len(t, result.Selected, 2)
	require.Len(t, result.Warnings, 2)
	assert.Equal(t, ConsentBlocked, result.Warnings[0].Consent)
	assert.Equal(t, ConsentNotSent, result.Warnings[1].Consent)
}
