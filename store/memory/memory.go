// Package memory provides an in-memory Store implementation for tests
// and local demos. Transactions are simulated with snapshot + rollback.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/stagecall/staffing-engine/dispatch"
	"github.com/stagecall/staffing-engine/engine"
)

// Store keeps everything in maps guarded by one RWMutex.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	workers      map[engine.WorkerID]engine.Worker
	skills       map[engine.SkillID]engine.Skill
	events       map[engine.EventID]engine.Event
	callTimes    map[engine.CallTimeID]engine.CallTime
	requirements map[engine.RequirementID]engine.LaborRequirement
	requests     map[engine.RequestID]engine.LaborRequest
	timeEntries  map[engine.TimeEntryID]engine.TimeEntry
}

var _ dispatch.TxStore = (*Store)(nil)

func New() *Store {
	return &Store{
		workers:      make(map[engine.WorkerID]engine.Worker),
		skills:       make(map[engine.SkillID]engine.Skill),
		events:       make(map[engine.EventID]engine.Event),
		callTimes:    make(map[engine.CallTimeID]engine.CallTime),
		requirements: make(map[engine.RequirementID]engine.LaborRequirement),
		requests:     make(map[engine.RequestID]engine.LaborRequest),
		timeEntries:  make(map[engine.TimeEntryID]engine.TimeEntry),
	}
}

// Reset clears all data.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = make(map[engine.WorkerID]engine.Worker)
	s.skills = make(map[engine.SkillID]engine.Skill)
	s.events = make(map[engine.EventID]engine.Event)
	s.callTimes = make(map[engine.CallTimeID]engine.CallTime)
	s.requirements = make(map[engine.RequirementID]engine.LaborRequirement)
	s.requests = make(map[engine.RequestID]engine.LaborRequest)
	s.timeEntries = make(map[engine.TimeEntryID]engine.TimeEntry)
	return nil
}

// =============================================================================
// WORKERS / SKILLS
// =============================================================================

func (s *Store) GetWorker(_ context.Context, id engine.WorkerID) (*engine.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workers[id]
	if !ok {
		return nil, engine.ErrWorkerNotFound
	}
	return &w, nil
}

func (s *Store) ListWorkers(_ context.Context) ([]engine.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]engine.Worker, 0, len(s.workers))
	for _, w := range s.workers {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveWorker(_ context.Context, w engine.Worker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers[w.ID] = w
	return nil
}

func (s *Store) GetSkill(_ context.Context, id engine.SkillID) (*engine.Skill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sk, ok := s.skills[id]
	if !ok {
		return nil, engine.ErrSkillNotFound
	}
	return &sk, nil
}

func (s *Store) ListSkills(_ context.Context) ([]engine.Skill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]engine.Skill, 0, len(s.skills))
	for _, sk := range s.skills {
		out = append(out, sk)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveSkill(_ context.Context, sk engine.Skill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skills[sk.ID] = sk
	return nil
}

// =============================================================================
// SCHEDULE HIERARCHY
// =============================================================================

func (s *Store) GetEvent(_ context.Context, id engine.EventID) (*engine.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return nil, engine.ErrEventNotFound
	}
	return &e, nil
}

func (s *Store) ListEvents(_ context.Context) ([]engine.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]engine.Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s *Store) SaveEvent(_ context.Context, e engine.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = e
	return nil
}

func (s *Store) GetCallTime(_ context.Context, id engine.CallTimeID) (*engine.CallTime, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ct, ok := s.callTimes[id]
	if !ok {
		return nil, engine.ErrCallTimeNotFound
	}
	return &ct, nil
}

func (s *Store) ListCallTimes(_ context.Context, eventID engine.EventID) ([]engine.CallTime, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []engine.CallTime
	for _, ct := range s.callTimes {
		if ct.EventID == eventID {
			out = append(out, ct)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (s *Store) SaveCallTime(_ context.Context, ct engine.CallTime) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callTimes[ct.ID] = ct
	return nil
}

func (s *Store) GetRequirement(_ context.Context, id engine.RequirementID) (*engine.LaborRequirement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lr, ok := s.requirements[id]
	if !ok {
		return nil, engine.ErrRequirementNotFound
	}
	return &lr, nil
}

func (s *Store) ListRequirements(_ context.Context, callTimeID engine.CallTimeID) ([]engine.LaborRequirement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []engine.LaborRequirement
	for _, lr := range s.requirements {
		if lr.CallTimeID == callTimeID {
			out = append(out, lr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveRequirement(_ context.Context, lr engine.LaborRequirement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requirements[lr.ID] = lr
	return nil
}

// =============================================================================
// LABOR REQUESTS
// =============================================================================

func (s *Store) GetRequest(_ context.Context, id engine.RequestID) (*engine.LaborRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, engine.ErrRequestNotFound
	}
	return &r, nil
}

func (s *Store) GetRequestByToken(_ context.Context, token string) (*engine.LaborRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.requests {
		if r.Token == token {
			r := r
			return &r, nil
		}
	}
	return nil, engine.ErrRequestNotFound
}

func (s *Store) ListRequestsForRequirement(_ context.Context, id engine.RequirementID) ([]engine.LaborRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []engine.LaborRequest
	for _, r := range s.requests {
		if r.RequirementID == id {
			out = append(out, r)
		}
	}
	sortRequests(out)
	return out, nil
}

func (s *Store) ListRequestsForWorker(_ context.Context, id engine.WorkerID) ([]engine.LaborRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []engine.LaborRequest
	for _, r := range s.requests {
		if r.WorkerID == id {
			out = append(out, r)
		}
	}
	sortRequests(out)
	return out, nil
}

func (s *Store) SaveRequest(_ context.Context, r engine.LaborRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.ID] = r
	return nil
}

func (s *Store) DeleteRequest(_ context.Context, id engine.RequestID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[id]; !ok {
		return engine.ErrRequestNotFound
	}
	delete(s.requests, id)
	return nil
}

func sortRequests(rs []engine.LaborRequest) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].ID < rs[j].ID
		}
		return rs[i].CreatedAt.Before(rs[j].CreatedAt)
	})
}

// =============================================================================
// TIME ENTRIES
// =============================================================================

func (s *Store) GetTimeEntry(_ context.Context, id engine.TimeEntryID) (*engine.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.timeEntries[id]
	if !ok {
		return nil, engine.ErrTimeEntryNotFound
	}
	return &e, nil
}

func (s *Store) GetTimeEntryForRequest(_ context.Context, id engine.RequestID) (*engine.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.timeEntries {
		if e.RequestID == id {
			e := e
			return &e, nil
		}
	}
	return nil, engine.ErrTimeEntryNotFound
}

func (s *Store) ListTimeEntriesForCallTime(ctx context.Context, id engine.CallTimeID) ([]engine.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// entry -> request -> requirement -> call time
	inCallTime := map[engine.RequirementID]bool{}
	for _, lr := range s.requirements {
		if lr.CallTimeID == id {
			inCallTime[lr.ID] = true
		}
	}
	var out []engine.TimeEntry
	for _, e := range s.timeEntries {
		r, ok := s.requests[e.RequestID]
		if ok && inCallTime[r.RequirementID] {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveTimeEntry(_ context.Context, e engine.TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeEntries[e.ID] = e
	return nil
}

// =============================================================================
// TRANSACTIONS - snapshot + rollback
// =============================================================================

// WithTx simulates a transaction: state is snapshotted up front and
// restored when fn errors. The store lock is NOT held across fn (fn
// calls back into the store), so memory transactions serialize through
// a dedicated transaction mutex instead.
func (s *Store) WithTx(ctx context.Context, fn func(dispatch.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type memSnapshot struct {
	workers      map[engine.WorkerID]engine.Worker
	skills       map[engine.SkillID]engine.Skill
	events       map[engine.EventID]engine.Event
	callTimes    map[engine.CallTimeID]engine.CallTime
	requirements map[engine.RequirementID]engine.LaborRequirement
	requests     map[engine.RequestID]engine.LaborRequest
	timeEntries  map[engine.TimeEntryID]engine.TimeEntry
}

func (s *Store) snapshot() memSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return memSnapshot{
		workers:      copyMap(s.workers),
		skills:       copyMap(s.skills),
		events:       copyMap(s.events),
		callTimes:    copyMap(s.callTimes),
		requirements: copyMap(s.requirements),
		requests:     copyMap(s.requests),
		timeEntries:  copyMap(s.timeEntries),
	}
}

func (s *Store) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = snap.workers
	s.skills = snap.skills
	s.events = snap.events
	s.callTimes = snap.callTimes
	s.requirements = snap.requirements
	s.requests = snap.requests
	s.timeEntries = snap.timeEntries
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
