/*
fulfillment.go - Planner: remaining need, candidate ranking, auto-fill

PURPOSE:
  For one labor requirement, determine how many slots remain open, rank
  the candidate pool, and pick the subset to auto-select. The planner
  computes decisions only; creating the requests and sending the SMS is
  the caller's commit step.

NEED ARITHMETIC (Step A):
  Only active requests occupy slots; declined, canceled and ncns free
  their slot immediately (IsActive in request.go).

  confirmed  = active && confirmed
  reserved   = active && reserved && !confirmed
  requested  = the remaining active requests
  positions  = needed - confirmed - reserved - requested

  positions <= 0 is "no positions available": a reportable outcome with
  the counts attached for operator visibility, never a silent no-op.

ELIGIBILITY (Step B):
  Excluded outright: already reserved, already requested, or any
  scheduling conflict (a request against an overlapping call time,
  whatever that conflict's status - a merely-pending conflict excludes
  just like a confirmed one).

  NOT excluded: blocked workers and workers lacking consent. They cannot
  receive the SMS, but a manual workaround may exist, so they surface as
  warnings instead of being filtered.

RANKING (Step C):
  Skill-matched candidates first, in input order - stable, no extra
  tie-break. Unmatched candidates after, shuffled fresh on every call so
  repeated auto-fills spread exposure across unskilled-but-available
  workers instead of always picking the same ones. The random source is
  injectable so tests stay deterministic.

SELECTION (Step D):
  Take the first `positions` candidates. A short pool selects everyone
  and reports the shortfall; shortfall is an outcome, not an error.

SEE ALSO:
  - request.go: Flag semantics behind the Step A counts
  - dispatch: Commit (Step E) and SMS dispatch
*/
package engine

import (
	"math/rand"
	"time"
)

// =============================================================================
// NEED ASSESSMENT
// =============================================================================

// NeedAssessment is the Step A arithmetic for one requirement.
type NeedAssessment struct {
	NeededLabor     int
	ConfirmedCount  int
	ReservedCount   int
	RequestedCount  int
	PositionsNeeded int
}

// Filled reports whether the requirement needs no further action.
func (n NeedAssessment) Filled() bool { return n.PositionsNeeded <= 0 }

// OverbookedBy reports how many slots beyond the target are held.
// Zero when exactly filled or still open.
func (n NeedAssessment) OverbookedBy() int {
	if n.PositionsNeeded >= 0 {
		return 0
	}
	return -n.PositionsNeeded
}

// =============================================================================
// CANDIDATES
// =============================================================================

// Conflict is another request held by a candidate against an overlapping
// call time. Any conflict excludes the candidate from auto-fill,
// regardless of its status.
type Conflict struct {
	RequestID  RequestID
	CallTimeID CallTimeID
	Status     RequestStatus
}

// Candidate is one worker from the pool, annotated by the caller with
// this requirement's existing relationship and scheduling conflicts.
type Candidate struct {
	Worker    Worker
	Requested bool // has a request for this requirement that blocks re-asking
	Reserved  bool // already reserved for this requirement
	Conflicts []Conflict
}

// eligible applies the hard Step B exclusions.
func (c Candidate) eligible() bool {
	return !c.Requested && !c.Reserved && len(c.Conflicts) == 0
}

// CandidateWarning surfaces a selected worker the SMS collaborator
// cannot actually reach.
type CandidateWarning struct {
	WorkerID WorkerID
	Consent  ConsentState
	Reason   string
}

// SelectionResult is the auto-fill outcome.
type SelectionResult struct {
	Assessment NeedAssessment
	Selected   []WorkerID
	Shortfall  int
	Warnings   []CandidateWarning
}

// =============================================================================
// PLANNER
// =============================================================================

// Planner computes need, ranking and selection for labor requirements.
// The random source drives the unmatched-candidate shuffle; it is
// re-drawn on every Rank call, never cached, so repeated fills stay fair.
type Planner struct {
	rng *rand.Rand
}

// NewPlanner returns a planner with a time-seeded shuffle source.
func NewPlanner() *Planner {
	return NewPlannerWithRand(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewPlannerWithRand returns a planner with an injected shuffle source,
// letting tests pin the unmatched ordering.
func NewPlannerWithRand(rng *rand.Rand) *Planner {
	return &Planner{rng: rng}
}

// Assess computes the remaining open slots for one requirement.
func (p *Planner) Assess(req LaborRequirement, requests []LaborRequest) NeedAssessment {
	a := NeedAssessment{NeededLabor: req.NeededLabor}
	for _, r := range requests {
		if !r.IsActive() {
			continue
		}
		switch {
		case r.Confirmed:
			a.ConfirmedCount++
		case r.Reserved:
			a.ReservedCount++
		default:
			a.RequestedCount++
		}
	}
	a.PositionsNeeded = a.NeededLabor - a.ConfirmedCount - a.ReservedCount - a.RequestedCount
	return a
}

// Rank orders candidates for selection: skill-matched first in input
// order, then the rest in a fresh random order.
func (p *Planner) Rank(candidates []Candidate, skill SkillID) []WorkerID {
	var matched, unmatched []WorkerID
	for _, c := range candidates {
		if c.Worker.HasSkill(skill) {
			matched = append(matched, c.Worker.ID)
		} else {
			unmatched = append(unmatched, c.Worker.ID)
		}
	}
	p.rng.Shuffle(len(unmatched), func(i, j int) {
		unmatched[i], unmatched[j] = unmatched[j], unmatched[i]
	})
	return append(matched, unmatched...)
}

// AutoFill filters, ranks and selects workers for one requirement.
// It never errors: an already-filled requirement or an empty pool is
// reported through the assessment, selection and shortfall fields.
func (p *Planner) AutoFill(req LaborRequirement, requests []LaborRequest, candidates []Candidate) SelectionResult {
	result := SelectionResult{Assessment: p.Assess(req, requests)}
	if result.Assessment.Filled() {
		return result
	}

	eligible := make([]Candidate, 0, len(candidates))
	byID := make(map[WorkerID]Candidate, len(candidates))
	for _, c := range candidates {
		if c.eligible() {
			eligible = append(eligible, c)
			byID[c.Worker.ID] = c
		}
	}

	ranked := p.Rank(eligible, req.SkillID)

	take := result.Assessment.PositionsNeeded
	if take > len(ranked) {
		result.Shortfall = take - len(ranked)
		take = len(ranked)
	}
	result.Selected = ranked[:take]

	for _, id := range result.Selected {
		w := byID[id].Worker
		if w.CanReceiveSMS() {
			continue
		}
		reason := "worker has not granted SMS consent"
		if w.Consent == ConsentBlocked {
			reason = "worker has blocked SMS"
		}
		result.Warnings = append(result.Warnings, CandidateWarning{
			WorkerID: id,
			Consent:  w.Consent,
			Reason:   reason,
		})
	}
	return result
}
