package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/stagecall/staffing-engine/engine"
)

// =============================================================================
// CHANGE NOTIFICATIONS - Announce state changes to connected clients
// =============================================================================

// ChangeKind names a staffing state change.
type ChangeKind string

const (
	ChangeRequestCreated    ChangeKind = "request_created"
	ChangeRequestUpdated    ChangeKind = "request_updated"
	ChangeRequestDeleted    ChangeKind = "request_deleted"
	ChangeCallTimeMoved     ChangeKind = "call_time_moved"
	ChangeTimeEntryRecorded ChangeKind = "time_entry_recorded"
)

// ChangeEvent is what subscribers receive. Transport (websocket, poll)
// is outside this repository.
type ChangeEvent struct {
	Kind          ChangeKind
	RequirementID engine.RequirementID
	RequestID     engine.RequestID
	WorkerID      engine.WorkerID
	CallTimeID    engine.CallTimeID
	At            time.Time
}

// Notifier announces state changes. Publish must never block the caller.
type Notifier interface {
	Publish(ctx context.Context, event ChangeEvent)
}

// NopNotifier discards everything.
type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, ChangeEvent) {}

// Bus is an in-process fan-out notifier. Subscribers are invoked
// synchronously in subscription order; they must be fast.
type Bus struct {
	mu   sync.RWMutex
	subs []func(ChangeEvent)
}

func NewBus() *Bus { return &Bus{} }

func (b *Bus) Subscribe(fn func(ChangeEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, fn)
}

func (b *Bus) Publish(_ context.Context, event ChangeEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, fn := range b.subs {
		fn(event)
	}
}
