package engine

import "time"

// =============================================================================
// EVENT / CALL TIME / LABOR REQUIREMENT - The scheduling hierarchy
// =============================================================================

// Location is the venue profile attached to an event. Its policy layer
// carries the venue defaults (minimum hours, meal penalty trigger, rounding).
type Location struct {
	Name    string
	Address string
	Policy  PolicyLayer
}

// Event is a staffed production. Single-day events have Start == End.
type Event struct {
	ID       EventID
	Slug     string
	Name     string
	Start    time.Time
	End      time.Time
	Location Location
	Canceled bool

	// Optional delegated on-site supervisor.
	StewardID *WorkerID

	// Event-level policy overrides (above location defaults).
	Policy PolicyLayer
}

// CallTime is one scheduled work session within an event
// (e.g., "Load In, 8:00 AM").
type CallTime struct {
	ID       CallTimeID
	EventID  EventID
	Name     string
	StartsAt time.Time
	EndsAt   time.Time

	// TimeHasChanged is set when the call time is moved after requests
	// were sent. Affected workers must re-confirm.
	TimeHasChanged bool

	// Per-call overrides (typically minimum hours).
	Policy PolicyLayer
}

// Overlaps reports whether two call times occupy overlapping windows.
// A worker with any request on an overlapping call time is a scheduling
// conflict for auto-fill.
func (c CallTime) Overlaps(other CallTime) bool {
	return c.StartsAt.Before(other.EndsAt) && other.StartsAt.Before(c.EndsAt)
}

// LaborRequirement is a needed headcount for one skill at one call time.
// Fulfillment state is always derived from the request set, never stored.
type LaborRequirement struct {
	ID         RequirementID
	CallTimeID CallTimeID
	SkillID    SkillID

	// NeededLabor is the target headcount. Never negative.
	NeededLabor int

	// Requirement-level overrides (nearest scope in the policy cascade).
	Policy PolicyLayer
}
