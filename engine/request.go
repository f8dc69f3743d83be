/*
request.go - Labor request status machine

PURPOSE:
  A LaborRequest joins one worker to one labor requirement for one
  staffing cycle. Its storage shape is a set of booleans (confirmed,
  reserved, canceled, ncns) plus an availability response, but the
  display bucket must be computed consistently everywhere. Status() is
  that single derivation; the transition methods are the only legal
  mutations.

STATUS DERIVATION (exactly one holds):
  ncns      > everything else (a no-show is a no-show even if someone
              also canceled the record; precedence documented here
              because the flags could theoretically both be set)
  canceled  > confirmed/declined/available/pending
  confirmed
  declined    (response = no)
  available   (response = yes, awaiting confirmation)
  pending     (no response yet)

TRANSITIONS (external-action-driven):
  pending            --sms reply--->  available | declined
  available|pending  --confirm---->   confirmed
  any non-terminal   --decline---->   declined
  declined           --confirm---->   confirmed   (declines are reversible)
  confirmed          --cancel----->   canceled
  confirmed          --mark ncns-->   ncns
  canceled|ncns      --confirm---->   confirmed   (manager override:
                                      "showed up" / un-cancel)
  any                --delete----->   hard delete (store concern, not a state)

SEE ALSO:
  - fulfillment.go: Consumes the flags for need assessment
*/
package engine

import "time"

// =============================================================================
// AVAILABILITY RESPONSE
// =============================================================================

// AvailabilityResponse is the worker's SMS reply, if any.
type AvailabilityResponse string

const (
	ResponseNone AvailabilityResponse = "none"
	ResponseYes  AvailabilityResponse = "yes"
	ResponseNo   AvailabilityResponse = "no"
)

// =============================================================================
// LABOR REQUEST
// =============================================================================

// LaborRequest records one worker being asked to fill one requirement.
// The boolean flags are a storage projection; Status() is authoritative.
type LaborRequest struct {
	ID            RequestID
	RequirementID RequirementID
	WorkerID      WorkerID

	Response  AvailabilityResponse
	Confirmed bool
	Reserved  bool
	Canceled  bool
	NCNS      bool

	// SMS bookkeeping
	SMSSent bool
	Token   string // opaque identifier embedded in SMS reply links

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RequestStatus is the derived display bucket.
type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusAvailable RequestStatus = "available"
	StatusConfirmed RequestStatus = "confirmed"
	StatusDeclined  RequestStatus = "declined"
	StatusCanceled  RequestStatus = "canceled"
	StatusNCNS      RequestStatus = "ncns"
)

// Status derives the single display bucket from the stored flags.
// NCNS wins over canceled.
func (r LaborRequest) Status() RequestStatus {
	switch {
	case r.NCNS:
		return StatusNCNS
	case r.Canceled:
		return StatusCanceled
	case r.Confirmed:
		return StatusConfirmed
	case r.Response == ResponseNo:
		return StatusDeclined
	case r.Response == ResponseYes:
		return StatusAvailable
	default:
		return StatusPending
	}
}

// IsActive reports whether the request still occupies a slot in need
// assessment (anything not canceled, not ncns, not declined).
func (r LaborRequest) IsActive() bool {
	s := r.Status()
	return s != StatusCanceled && s != StatusNCNS && s != StatusDeclined
}

// terminal statuses block worker-driven transitions; managers can still
// confirm out of them.
func (r LaborRequest) isTerminal() bool {
	return r.NCNS || r.Canceled
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// RecordReply applies a worker's SMS availability reply.
// Replies are ignored once the request is terminal or already confirmed;
// those require a manager action.
func (r *LaborRequest) RecordReply(available bool, at time.Time) error {
	if r.isTerminal() || r.Confirmed {
		return &TransitionError{RequestID: r.ID, From: r.Status(), Action: "reply to"}
	}
	if available {
		r.Response = ResponseYes
	} else {
		r.Response = ResponseNo
	}
	r.UpdatedAt = at
	return nil
}

// Confirm locks the worker in. Allowed from pending, available and
// declined, and as a manager override from canceled ("un-cancel") and
// ncns ("showed up").
func (r *LaborRequest) Confirm(at time.Time) error {
	if r.Confirmed && !r.isTerminal() {
		return &TransitionError{RequestID: r.ID, From: r.Status(), Action: "confirm"}
	}
	r.Confirmed = true
	r.Canceled = false
	r.NCNS = false
	r.Reserved = false
	r.UpdatedAt = at
	return nil
}

// Decline moves any non-terminal request to declined.
func (r *LaborRequest) Decline(at time.Time) error {
	if r.isTerminal() {
		return &TransitionError{RequestID: r.ID, From: r.Status(), Action: "decline"}
	}
	r.Response = ResponseNo
	r.Confirmed = false
	r.Reserved = false
	r.UpdatedAt = at
	return nil
}

// Cancel releases a confirmed worker. Only confirmed requests cancel;
// unconfirmed ones are declined or deleted instead.
func (r *LaborRequest) Cancel(at time.Time) error {
	if r.Status() != StatusConfirmed {
		return &TransitionError{RequestID: r.ID, From: r.Status(), Action: "cancel"}
	}
	r.Canceled = true
	r.UpdatedAt = at
	return nil
}

// MarkNCNS records that a confirmed worker did not appear and did not
// notify.
func (r *LaborRequest) MarkNCNS(at time.Time) error {
	if r.Status() != StatusConfirmed {
		return &TransitionError{RequestID: r.ID, From: r.Status(), Action: "mark ncns on"}
	}
	r.NCNS = true
	r.UpdatedAt = at
	return nil
}

// Reserve holds a slot for the worker without sending a request SMS.
// Only meaningful before confirmation.
func (r *LaborRequest) Reserve(at time.Time) error {
	if r.isTerminal() || r.Confirmed {
		return &TransitionError{RequestID: r.ID, From: r.Status(), Action: "reserve"}
	}
	r.Reserved = true
	r.UpdatedAt = at
	return nil
}

// RequireReconfirm drops a confirmation after its call time moved.
// The worker returns to the available bucket and must confirm again.
func (r *LaborRequest) RequireReconfirm(at time.Time) {
	if r.Status() != StatusConfirmed {
		return
	}
	r.Confirmed = false
	r.Response = ResponseYes
	r.UpdatedAt = at
}
