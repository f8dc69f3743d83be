/*
store.go - Persistence interfaces for staffing data

PURPOSE:
  Defines the boundary between the dispatch services and the database.
  Different implementations back it with SQLite or in-memory storage.

KEY INTERFACES:
  Store:   Reads and writes for workers, schedule hierarchy, requests
           and time entries
  TxStore: Store plus WithTx for atomic read-compute-write spans

CONCURRENCY CONTRACT:
  Auto-fill computes remaining need and then commits new requests. Two
  operators doing this concurrently for the same requirement would
  jointly overbook, so the whole span runs inside WithTx - the store
  implementation provides the per-requirement mutual exclusion.

NOT-FOUND SEMANTICS:
  Lookups return the engine's not-found sentinels (engine.ErrWorkerNotFound
  and friends), never (nil, nil).

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - store/memory: In-memory for tests and demos
*/
package dispatch

import (
	"context"

	"github.com/stagecall/staffing-engine/engine"
)

// Store handles persistence of all staffing records.
type Store interface {
	// Workers and skills
	GetWorker(ctx context.Context, id engine.WorkerID) (*engine.Worker, error)
	ListWorkers(ctx context.Context) ([]engine.Worker, error)
	SaveWorker(ctx context.Context, w engine.Worker) error
	GetSkill(ctx context.Context, id engine.SkillID) (*engine.Skill, error)
	ListSkills(ctx context.Context) ([]engine.Skill, error)
	SaveSkill(ctx context.Context, s engine.Skill) error

	// Schedule hierarchy
	GetEvent(ctx context.Context, id engine.EventID) (*engine.Event, error)
	ListEvents(ctx context.Context) ([]engine.Event, error)
	SaveEvent(ctx context.Context, e engine.Event) error
	GetCallTime(ctx context.Context, id engine.CallTimeID) (*engine.CallTime, error)
	ListCallTimes(ctx context.Context, eventID engine.EventID) ([]engine.CallTime, error)
	SaveCallTime(ctx context.Context, ct engine.CallTime) error
	GetRequirement(ctx context.Context, id engine.RequirementID) (*engine.LaborRequirement, error)
	ListRequirements(ctx context.Context, callTimeID engine.CallTimeID) ([]engine.LaborRequirement, error)
	SaveRequirement(ctx context.Context, lr engine.LaborRequirement) error

	// Labor requests
	GetRequest(ctx context.Context, id engine.RequestID) (*engine.LaborRequest, error)
	GetRequestByToken(ctx context.Context, token string) (*engine.LaborRequest, error)
	ListRequestsForRequirement(ctx context.Context, id engine.RequirementID) ([]engine.LaborRequest, error)
	ListRequestsForWorker(ctx context.Context, id engine.WorkerID) ([]engine.LaborRequest, error)
	SaveRequest(ctx context.Context, r engine.LaborRequest) error
	// DeleteRequest is the only hard delete in the system ("removed" is
	// not a request state).
	DeleteRequest(ctx context.Context, id engine.RequestID) error

	// Time entries
	GetTimeEntry(ctx context.Context, id engine.TimeEntryID) (*engine.TimeEntry, error)
	GetTimeEntryForRequest(ctx context.Context, id engine.RequestID) (*engine.TimeEntry, error)
	ListTimeEntriesForCallTime(ctx context.Context, id engine.CallTimeID) ([]engine.TimeEntry, error)
	SaveTimeEntry(ctx context.Context, e engine.TimeEntry) error
}

// TxStore wraps Store with transaction support.
// If fn returns an error the transaction rolls back; otherwise it commits.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
