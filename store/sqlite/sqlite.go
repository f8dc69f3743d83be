/*
Package sqlite provides the SQLite-backed implementation of dispatch.TxStore.

PURPOSE:
  Persists the full staffing hierarchy (workers, skills, events, call
  times, requirements, requests, time entries). In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  workers:       Crew members with skills, consent and reliability counters
  skills:        Skill definitions
  events:        Events with embedded location and policy overrides
  call_times:    Reporting windows under an event
  requirements:  Per-call-time labor needs
  requests:      Worker-requirement relationships (the fulfillment state)
  time_entries:  Clock-in/out records with meal breaks

POLICY STORAGE:
  Policy override layers are sparse (most scopes override nothing), so
  each scope row carries one nullable policy_json column instead of
  three nullable value columns per scope.

INDEXES:
  - idx_requests_requirement: Need assessment (hot path)
  - idx_requests_worker: Conflict detection across call times
  - idx_requests_token: SMS reply lookup
  - idx_time_entries_request: One-entry-per-request checks

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/staffing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - dispatch/store.go: Interface definition and lookup contract
  - store/memory: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stagecall/staffing-engine/dispatch"
	"github.com/stagecall/staffing-engine/engine"
)

// Store implements dispatch.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
	q  queries
}

var _ dispatch.TxStore = (*Store)(nil)

// New opens (or creates) a SQLite store at the given path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, q: queries{db: db}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS skills (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS workers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		alt_phones_json TEXT,
		skills_json TEXT,
		consent TEXT NOT NULL DEFAULT 'not_sent',
		no_show_count INTEGER NOT NULL DEFAULT 0,
		canceled_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		slug TEXT NOT NULL,
		name TEXT NOT NULL,
		starts_at TEXT NOT NULL,
		ends_at TEXT NOT NULL,
		location_name TEXT NOT NULL DEFAULT '',
		location_address TEXT NOT NULL DEFAULT '',
		location_policy_json TEXT,
		canceled BOOLEAN NOT NULL DEFAULT FALSE,
		steward_id TEXT,
		policy_json TEXT
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_events_slug ON events(slug);

	CREATE TABLE IF NOT EXISTS call_times (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL REFERENCES events(id),
		name TEXT NOT NULL,
		starts_at TEXT NOT NULL,
		ends_at TEXT NOT NULL,
		time_has_changed BOOLEAN NOT NULL DEFAULT FALSE,
		policy_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_call_times_event ON call_times(event_id);

	CREATE TABLE IF NOT EXISTS requirements (
		id TEXT PRIMARY KEY,
		call_time_id TEXT NOT NULL REFERENCES call_times(id),
		skill_id TEXT NOT NULL,
		needed_labor INTEGER NOT NULL DEFAULT 0,
		policy_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_requirements_call_time ON requirements(call_time_id);

	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		requirement_id TEXT NOT NULL REFERENCES requirements(id),
		worker_id TEXT NOT NULL REFERENCES workers(id),
		response TEXT NOT NULL DEFAULT 'none',
		confirmed BOOLEAN NOT NULL DEFAULT FALSE,
		reserved BOOLEAN NOT NULL DEFAULT FALSE,
		canceled BOOLEAN NOT NULL DEFAULT FALSE,
		ncns BOOLEAN NOT NULL DEFAULT FALSE,
		sms_sent BOOLEAN NOT NULL DEFAULT FALSE,
		token TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_requirement ON requests(requirement_id);
	CREATE INDEX IF NOT EXISTS idx_requests_worker ON requests(worker_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_requests_token ON requests(token);

	CREATE TABLE IF NOT EXISTS time_entries (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL REFERENCES requests(id),
		starts_at TEXT NOT NULL,
		ends_at TEXT,
		breaks_json TEXT
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_time_entries_request ON time_entries(request_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"time_entries", "requests", "requirements", "call_times", "events", "workers", "skills"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn against a database transaction, committing on nil and
// rolling back on error.
func (s *Store) WithTx(ctx context.Context, fn func(store dispatch.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{q: queries{db: sqlTx}}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore is the Store view handed to WithTx callbacks. No mutex: the
// parent write lock is held for the transaction's whole span.
type txStore struct {
	q queries
}

var _ dispatch.Store = (*txStore)(nil)

// =============================================================================
// STORE INTERFACE - root store takes the lock, tx view already holds it
// =============================================================================

func (s *Store) GetWorker(ctx context.Context, id engine.WorkerID) (*engine.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.getWorker(ctx, id)
}

func (s *Store) ListWorkers(ctx context.Context) ([]engine.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.listWorkers(ctx)
}

func (s *Store) SaveWorker(ctx context.Context, w engine.Worker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.saveWorker(ctx, w)
}

func (s *Store) GetSkill(ctx context.Context, id engine.SkillID) (*engine.Skill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.getSkill(ctx, id)
}

func (s *Store) ListSkills(ctx context.Context) ([]engine.Skill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.listSkills(ctx)
}

func (s *Store) SaveSkill(ctx context.Context, sk engine.Skill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.saveSkill(ctx, sk)
}

func (s *Store) GetEvent(ctx context.Context, id engine.EventID) (*engine.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.getEvent(ctx, id)
}

func (s *Store) ListEvents(ctx context.Context) ([]engine.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.listEvents(ctx)
}

func (s *Store) SaveEvent(ctx context.Context, e engine.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.saveEvent(ctx, e)
}

func (s *Store) GetCallTime(ctx context.Context, id engine.CallTimeID) (*engine.CallTime, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.getCallTime(ctx, id)
}

func (s *Store) ListCallTimes(ctx context.Context, eventID engine.EventID) ([]engine.CallTime, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.listCallTimes(ctx, eventID)
}

func (s *Store) SaveCallTime(ctx context.Context, ct engine.CallTime) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.saveCallTime(ctx, ct)
}

func (s *Store) GetRequirement(ctx context.Context, id engine.RequirementID) (*engine.LaborRequirement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.getRequirement(ctx, id)
}

func (s *Store) ListRequirements(ctx context.Context, callTimeID engine.CallTimeID) ([]engine.LaborRequirement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.listRequirements(ctx, callTimeID)
}

func (s *Store) SaveRequirement(ctx context.Context, lr engine.LaborRequirement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.saveRequirement(ctx, lr)
}

func (s *Store) GetRequest(ctx context.Context, id engine.RequestID) (*engine.LaborRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.getRequest(ctx, id)
}

func (s *Store) GetRequestByToken(ctx context.Context, token string) (*engine.LaborRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.getRequestByToken(ctx, token)
}

func (s *Store) ListRequestsForRequirement(ctx context.Context, id engine.RequirementID) ([]engine.LaborRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.listRequestsForRequirement(ctx, id)
}

func (s *Store) ListRequestsForWorker(ctx context.Context, id engine.WorkerID) ([]engine.LaborRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.listRequestsForWorker(ctx, id)
}

func (s *Store) SaveRequest(ctx context.Context, r engine.LaborRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.saveRequest(ctx, r)
}

func (s *Store) DeleteRequest(ctx context.Context, id engine.RequestID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.deleteRequest(ctx, id)
}

func (s *Store) GetTimeEntry(ctx context.Context, id engine.TimeEntryID) (*engine.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.getTimeEntry(ctx, id)
}

func (s *Store) GetTimeEntryForRequest(ctx context.Context, id engine.RequestID) (*engine.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.getTimeEntryForRequest(ctx, id)
}

func (s *Store) ListTimeEntriesForCallTime(ctx context.Context, id engine.CallTimeID) ([]engine.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.listTimeEntriesForCallTime(ctx, id)
}

func (s *Store) SaveTimeEntry(ctx context.Context, e engine.TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.saveTimeEntry(ctx, e)
}

func (ts *txStore) GetWorker(ctx context.Context, id engine.WorkerID) (*engine.Worker, error) {
	return ts.q.getWorker(ctx, id)
}

func (ts *txStore) ListWorkers(ctx context.Context) ([]engine.Worker, error) {
	return ts.q.listWorkers(ctx)
}

func (ts *txStore) SaveWorker(ctx context.Context, w engine.Worker) error {
	return ts.q.saveWorker(ctx, w)
}

func (ts *txStore) GetSkill(ctx context.Context, id engine.SkillID) (*engine.Skill, error) {
	return ts.q.getSkill(ctx, id)
}

func (ts *txStore) ListSkills(ctx context.Context) ([]engine.Skill, error) {
	return ts.q.listSkills(ctx)
}

func (ts *txStore) SaveSkill(ctx context.Context, sk engine.Skill) error {
	return ts.q.saveSkill(ctx, sk)
}

func (ts *txStore) GetEvent(ctx context.Context, id engine.EventID) (*engine.Event, error) {
	return ts.q.getEvent(ctx, id)
}

func (ts *txStore) ListEvents(ctx context.Context) ([]engine.Event, error) {
	return ts.q.listEvents(ctx)
}

func (ts *txStore) SaveEvent(ctx context.Context, e engine.Event) error {
	return ts.q.saveEvent(ctx, e)
}

func (ts *txStore) GetCallTime(ctx context.Context, id engine.CallTimeID) (*engine.CallTime, error) {
	return ts.q.getCallTime(ctx, id)
}

func (ts *txStore) ListCallTimes(ctx context.Context, eventID engine.EventID) ([]engine.CallTime, error) {
	return ts.q.listCallTimes(ctx, eventID)
}

func (ts *txStore) SaveCallTime(ctx context.Context, ct engine.CallTime) error {
	return ts.q.saveCallTime(ctx, ct)
}

func (ts *txStore) GetRequirement(ctx context.Context, id engine.RequirementID) (*engine.LaborRequirement, error) {
	return ts.q.getRequirement(ctx, id)
}

func (ts *txStore) ListRequirements(ctx context.Context, callTimeID engine.CallTimeID) ([]engine.LaborRequirement, error) {
	return ts.q.listRequirements(ctx, callTimeID)
}

func (ts *txStore) SaveRequirement(ctx context.Context, lr engine.LaborRequirement) error {
	return ts.q.saveRequirement(ctx, lr)
}

func (ts *txStore) GetRequest(ctx context.Context, id engine.RequestID) (*engine.LaborRequest, error) {
	return ts.q.getRequest(ctx, id)
}

func (ts *txStore) GetRequestByToken(ctx context.Context, token string) (*engine.LaborRequest, error) {
	return ts.q.getRequestByToken(ctx, token)
}

func (ts *txStore) ListRequestsForRequirement(ctx context.Context, id engine.RequirementID) ([]engine.LaborRequest, error) {
	return ts.q.listRequestsForRequirement(ctx, id)
}

func (ts *txStore) ListRequestsForWorker(ctx context.Context, id engine.WorkerID) ([]engine.LaborRequest, error) {
	return ts.q.listRequestsForWorker(ctx, id)
}

func (ts *txStore) SaveRequest(ctx context.Context, r engine.LaborRequest) error {
	return ts.q.saveRequest(ctx, r)
}

func (ts *txStore) DeleteRequest(ctx context.Context, id engine.RequestID) error {
	return ts.q.deleteRequest(ctx, id)
}

func (ts *txStore) GetTimeEntry(ctx context.Context, id engine.TimeEntryID) (*engine.TimeEntry, error) {
	return ts.q.getTimeEntry(ctx, id)
}

func (ts *txStore) GetTimeEntryForRequest(ctx context.Context, id engine.RequestID) (*engine.TimeEntry, error) {
	return ts.q.getTimeEntryForRequest(ctx, id)
}

func (ts *txStore) ListTimeEntriesForCallTime(ctx context.Context, id engine.CallTimeID) ([]engine.TimeEntry, error) {
	return ts.q.listTimeEntriesForCallTime(ctx, id)
}

func (ts *txStore) SaveTimeEntry(ctx context.Context, e engine.TimeEntry) error {
	return ts.q.saveTimeEntry(ctx, e)
}

// =============================================================================
// QUERIES - shared between the root store and transaction views
// =============================================================================

// dbtx is the subset of *sql.DB and *sql.Tx the queries need.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db dbtx
}

// ----- workers -----

const workerColumns = "id, name, phone, alt_phones_json, skills_json, consent, no_show_count, canceled_count"

func (q queries) getWorker(ctx context.Context, id engine.WorkerID) (*engine.Worker, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+workerColumns+" FROM workers WHERE id = ?", string(id))
	w, err := scanWorker(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrWorkerNotFound
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (q queries) listWorkers(ctx context.Context) ([]engine.Worker, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+workerColumns+" FROM workers ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workers []engine.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		workers = append(workers, *w)
	}
	return workers, rows.Err()
}

func (q queries) saveWorker(ctx context.Context, w engine.Worker) error {
	altPhones, err := json.Marshal(w.AltPhones)
	if err != nil {
		return err
	}
	skills, err := json.Marshal(w.Skills)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO workers (id, name, phone, alt_phones_json, skills_json, consent, no_show_count, canceled_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone,
			alt_phones_json = excluded.alt_phones_json,
			skills_json = excluded.skills_json,
			consent = excluded.consent,
			no_show_count = excluded.no_show_count,
			canceled_count = excluded.canceled_count
	`, string(w.ID), w.Name, w.Phone, string(altPhones), string(skills),
		string(w.Consent), w.NoShowCount, w.CanceledCount)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorker(row rowScanner) (*engine.Worker, error) {
	var w engine.Worker
	var altPhones, skills sql.NullString
	var consent string
	if err := row.Scan(&w.ID, &w.Name, &w.Phone, &altPhones, &skills,
		&consent, &w.NoShowCount, &w.CanceledCount); err != nil {
		return nil, err
	}
	w.Consent = engine.ConsentState(consent)
	if altPhones.Valid && altPhones.String != "" {
		if err := json.Unmarshal([]byte(altPhones.String), &w.AltPhones); err != nil {
			return nil, err
		}
	}
	if skills.Valid && skills.String != "" {
		if err := json.Unmarshal([]byte(skills.String), &w.Skills); err != nil {
			return nil, err
		}
	}
	return &w, nil
}

// ----- skills -----

func (q queries) getSkill(ctx context.Context, id engine.SkillID) (*engine.Skill, error) {
	var sk engine.Skill
	err := q.db.QueryRowContext(ctx,
		"SELECT id, name FROM skills WHERE id = ?", string(id)).Scan(&sk.ID, &sk.Name)
	if err == sql.ErrNoRows {
		return nil, engine.ErrSkillNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sk, nil
}

func (q queries) listSkills(ctx context.Context) ([]engine.Skill, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT id, name FROM skills ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var skills []engine.Skill
	for rows.Next() {
		var sk engine.Skill
		if err := rows.Scan(&sk.ID, &sk.Name); err != nil {
			return nil, err
		}
		skills = append(skills, sk)
	}
	return skills, rows.Err()
}

func (q queries) saveSkill(ctx context.Context, sk engine.Skill) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO skills (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, string(sk.ID), sk.Name)
	return err
}

// ----- events -----

const eventColumns = "id, slug, name, starts_at, ends_at, location_name, location_address, location_policy_json, canceled, steward_id, policy_json"

func (q queries) getEvent(ctx context.Context, id engine.EventID) (*engine.Event, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE id = ?", string(id))
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (q queries) listEvents(ctx context.Context) ([]engine.Event, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM events ORDER BY starts_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []engine.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (q queries) saveEvent(ctx context.Context, e engine.Event) error {
	locationPolicy, err := marshalPolicy(e.Location.Policy)
	if err != nil {
		return err
	}
	policy, err := marshalPolicy(e.Policy)
	if err != nil {
		return err
	}
	var steward sql.NullString
	if e.StewardID != nil {
		steward = sql.NullString{String: string(*e.StewardID), Valid: true}
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO events (id, slug, name, starts_at, ends_at, location_name, location_address, location_policy_json, canceled, steward_id, policy_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			slug = excluded.slug,
			name = excluded.name,
			starts_at = excluded.starts_at,
			ends_at = excluded.ends_at,
			location_name = excluded.location_name,
			location_address = excluded.location_address,
			location_policy_json = excluded.location_policy_json,
			canceled = excluded.canceled,
			steward_id = excluded.steward_id,
			policy_json = excluded.policy_json
	`, string(e.ID), e.Slug, e.Name,
		e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339),
		e.Location.Name, e.Location.Address, locationPolicy,
		e.Canceled, steward, policy)
	return err
}

func scanEvent(row rowScanner) (*engine.Event, error) {
	var e engine.Event
	var start, end string
	var locationPolicy, policy, steward sql.NullString
	if err := row.Scan(&e.ID, &e.Slug, &e.Name, &start, &end,
		&e.Location.Name, &e.Location.Address, &locationPolicy,
		&e.Canceled, &steward, &policy); err != nil {
		return nil, err
	}
	var err error
	if e.Start, err = time.Parse(time.RFC3339, start); err != nil {
		return nil, err
	}
	if e.End, err = time.Parse(time.RFC3339, end); err != nil {
		return nil, err
	}
	if steward.Valid {
		id := engine.WorkerID(steward.String)
		e.StewardID = &id
	}
	if e.Location.Policy, err = unmarshalPolicy(locationPolicy); err != nil {
		return nil, err
	}
	if e.Policy, err = unmarshalPolicy(policy); err != nil {
		return nil, err
	}
	return &e, nil
}

// ----- call times -----

const callTimeColumns = "id, event_id, name, starts_at, ends_at, time_has_changed, policy_json"

func (q queries) getCallTime(ctx context.Context, id engine.CallTimeID) (*engine.CallTime, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+callTimeColumns+" FROM call_times WHERE id = ?", string(id))
	ct, err := scanCallTime(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrCallTimeNotFound
	}
	if err != nil {
		return nil, err
	}
	return ct, nil
}

func (q queries) listCallTimes(ctx context.Context, eventID engine.EventID) ([]engine.CallTime, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+callTimeColumns+" FROM call_times WHERE event_id = ? ORDER BY starts_at",
		string(eventID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var callTimes []engine.CallTime
	for rows.Next() {
		ct, err := scanCallTime(rows)
		if err != nil {
			return nil, err
		}
		callTimes = append(callTimes, *ct)
	}
	return callTimes, rows.Err()
}

func (q queries) saveCallTime(ctx context.Context, ct engine.CallTime) error {
	policy, err := marshalPolicy(ct.Policy)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO call_times (id, event_id, name, starts_at, ends_at, time_has_changed, policy_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			event_id = excluded.event_id,
			name = excluded.name,
			starts_at = excluded.starts_at,
			ends_at = excluded.ends_at,
			time_has_changed = excluded.time_has_changed,
			policy_json = excluded.policy_json
	`, string(ct.ID), string(ct.EventID), ct.Name,
		ct.StartsAt.Format(time.RFC3339), ct.EndsAt.Format(time.RFC3339),
		ct.TimeHasChanged, policy)
	return err
}

func scanCallTime(row rowScanner) (*engine.CallTime, error) {
	var ct engine.CallTime
	var start, end string
	var policy sql.NullString
	if err := row.Scan(&ct.ID, &ct.EventID, &ct.Name, &start, &end,
		&ct.TimeHasChanged, &policy); err != nil {
		return nil, err
	}
	var err error
	if ct.StartsAt, err = time.Parse(time.RFC3339, start); err != nil {
		return nil, err
	}
	if ct.EndsAt, err = time.Parse(time.RFC3339, end); err != nil {
		return nil, err
	}
	if ct.Policy, err = unmarshalPolicy(policy); err != nil {
		return nil, err
	}
	return &ct, nil
}

// ----- requirements -----

const requirementColumns = "id, call_time_id, skill_id, needed_labor, policy_json"

func (q queries) getRequirement(ctx context.Context, id engine.RequirementID) (*engine.LaborRequirement, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+requirementColumns+" FROM requirements WHERE id = ?", string(id))
	lr, err := scanRequirement(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrRequirementNotFound
	}
	if err != nil {
		return nil, err
	}
	return lr, nil
}

func (q queries) listRequirements(ctx context.Context, callTimeID engine.CallTimeID) ([]engine.LaborRequirement, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+requirementColumns+" FROM requirements WHERE call_time_id = ? ORDER BY id",
		string(callTimeID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requirements []engine.LaborRequirement
	for rows.Next() {
		lr, err := scanRequirement(rows)
		if err != nil {
			return nil, err
		}
		requirements = append(requirements, *lr)
	}
	return requirements, rows.Err()
}

func (q queries) saveRequirement(ctx context.Context, lr engine.LaborRequirement) error {
	policy, err := marshalPolicy(lr.Policy)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO requirements (id, call_time_id, skill_id, needed_labor, policy_json)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			call_time_id = excluded.call_time_id,
			skill_id = excluded.skill_id,
			needed_labor = excluded.needed_labor,
			policy_json = excluded.policy_json
	`, string(lr.ID), string(lr.CallTimeID), string(lr.SkillID), lr.NeededLabor, policy)
	return err
}

func scanRequirement(row rowScanner) (*engine.LaborRequirement, error) {
	var lr engine.LaborRequirement
	var policy sql.NullString
	if err := row.Scan(&lr.ID, &lr.CallTimeID, &lr.SkillID, &lr.NeededLabor, &policy); err != nil {
		return nil, err
	}
	var err error
	if lr.Policy, err = unmarshalPolicy(policy); err != nil {
		return nil, err
	}
	return &lr, nil
}

// ----- requests -----

const requestColumns = "id, requirement_id, worker_id, response, confirmed, reserved, canceled, ncns, sms_sent, token, created_at, updated_at"

func (q queries) getRequest(ctx context.Context, id engine.RequestID) (*engine.LaborRequest, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+requestColumns+" FROM requests WHERE id = ?", string(id))
	return requestOrNotFound(scanRequest(row))
}

func (q queries) getRequestByToken(ctx context.Context, token string) (*engine.LaborRequest, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+requestColumns+" FROM requests WHERE token = ?", token)
	return requestOrNotFound(scanRequest(row))
}

func requestOrNotFound(r *engine.LaborRequest, err error) (*engine.LaborRequest, error) {
	if err == sql.ErrNoRows {
		return nil, engine.ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (q queries) listRequestsForRequirement(ctx context.Context, id engine.RequirementID) ([]engine.LaborRequest, error) {
	return q.queryRequests(ctx,
		"SELECT "+requestColumns+" FROM requests WHERE requirement_id = ? ORDER BY created_at, id",
		string(id))
}

func (q queries) listRequestsForWorker(ctx context.Context, id engine.WorkerID) ([]engine.LaborRequest, error) {
	return q.queryRequests(ctx,
		"SELECT "+requestColumns+" FROM requests WHERE worker_id = ? ORDER BY created_at, id",
		string(id))
}

func (q queries) queryRequests(ctx context.Context, query string, args ...any) ([]engine.LaborRequest, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []engine.LaborRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}

func (q queries) saveRequest(ctx context.Context, r engine.LaborRequest) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO requests (id, requirement_id, worker_id, response, confirmed, reserved, canceled, ncns, sms_sent, token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			response = excluded.response,
			confirmed = excluded.confirmed,
			reserved = excluded.reserved,
			canceled = excluded.canceled,
			ncns = excluded.ncns,
			sms_sent = excluded.sms_sent,
			updated_at = excluded.updated_at
	`, string(r.ID), string(r.RequirementID), string(r.WorkerID),
		string(r.Response), r.Confirmed, r.Reserved, r.Canceled, r.NCNS,
		r.SMSSent, r.Token,
		r.CreatedAt.Format(time.RFC3339), r.UpdatedAt.Format(time.RFC3339))
	return err
}

func (q queries) deleteRequest(ctx context.Context, id engine.RequestID) error {
	result, err := q.db.ExecContext(ctx, "DELETE FROM requests WHERE id = ?", string(id))
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return engine.ErrRequestNotFound
	}
	return nil
}

func scanRequest(row rowScanner) (*engine.LaborRequest, error) {
	var r engine.LaborRequest
	var response, createdAt, updatedAt string
	if err := row.Scan(&r.ID, &r.RequirementID, &r.WorkerID, &response,
		&r.Confirmed, &r.Reserved, &r.Canceled, &r.NCNS, &r.SMSSent,
		&r.Token, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	r.Response = engine.AvailabilityResponse(response)
	var err error
	if r.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// ----- time entries -----

const timeEntryColumns = "id, request_id, starts_at, ends_at, breaks_json"

func (q queries) getTimeEntry(ctx context.Context, id engine.TimeEntryID) (*engine.TimeEntry, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+timeEntryColumns+" FROM time_entries WHERE id = ?", string(id))
	return entryOrNotFound(scanTimeEntry(row))
}

func (q queries) getTimeEntryForRequest(ctx context.Context, id engine.RequestID) (*engine.TimeEntry, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT "+timeEntryColumns+" FROM time_entries WHERE request_id = ?", string(id))
	return entryOrNotFound(scanTimeEntry(row))
}

func entryOrNotFound(e *engine.TimeEntry, err error) (*engine.TimeEntry, error) {
	if err == sql.ErrNoRows {
		return nil, engine.ErrTimeEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (q queries) listTimeEntriesForCallTime(ctx context.Context, id engine.CallTimeID) ([]engine.TimeEntry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT e.id, e.request_id, e.starts_at, e.ends_at, e.breaks_json
		FROM time_entries e
		JOIN requests r ON r.id = e.request_id
		JOIN requirements lr ON lr.id = r.requirement_id
		WHERE lr.call_time_id = ?
		ORDER BY e.id
	`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []engine.TimeEntry
	for rows.Next() {
		e, err := scanTimeEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (q queries) saveTimeEntry(ctx context.Context, e engine.TimeEntry) error {
	breaks, err := json.Marshal(e.Breaks)
	if err != nil {
		return err
	}
	var end sql.NullString
	if e.End != nil {
		end = sql.NullString{String: e.End.Format(time.RFC3339), Valid: true}
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO time_entries (id, request_id, starts_at, ends_at, breaks_json)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			starts_at = excluded.starts_at,
			ends_at = excluded.ends_at,
			breaks_json = excluded.breaks_json
	`, string(e.ID), string(e.RequestID),
		e.Start.Format(time.RFC3339), end, string(breaks))
	return err
}

func scanTimeEntry(row rowScanner) (*engine.TimeEntry, error) {
	var e engine.TimeEntry
	var start string
	var end, breaks sql.NullString
	if err := row.Scan(&e.ID, &e.RequestID, &start, &end, &breaks); err != nil {
		return nil, err
	}
	var err error
	if e.Start, err = time.Parse(time.RFC3339, start); err != nil {
		return nil, err
	}
	if end.Valid {
		t, err := time.Parse(time.RFC3339, end.String)
		if err != nil {
			return nil, err
		}
		e.End = &t
	}
	if breaks.Valid && breaks.String != "" && breaks.String != "null" {
		if err := json.Unmarshal([]byte(breaks.String), &e.Breaks); err != nil {
			return nil, err
		}
	}
	return &e, nil
}

// ----- policy json -----

func marshalPolicy(p engine.PolicyLayer) (sql.NullString, error) {
	if p.IsZero() {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalPolicy(s sql.NullString) (engine.PolicyLayer, error) {
	var p engine.PolicyLayer
	if !s.Valid || s.String == "" {
		return p, nil
	}
	err := json.Unmarshal([]byte(s.String), &p)
	return p, err
}
