package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var txTime = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func pendingRequest() LaborRequest {
	return LaborRequest{ID: "req-1", RequirementID: "lr-1", WorkerID: "w-1", Response: ResponseNone}
}

// =============================================================================
// STATUS DERIVATION
// =============================================================================

func TestStatus_ExactlyOneBucket(t *testing.T) {
	cases := []struct {
		name string
		req  LaborRequest
		want RequestStatus
	}{
		{"fresh", LaborRequest{Response: ResponseNone}, StatusPending},
		{"replied yes", LaborRequest{Response: ResponseYes}, StatusAvailable},
		{"replied no", LaborRequest{Response: ResponseNo}, StatusDeclined},
		{"confirmed", LaborRequest{Response: ResponseYes, Confirmed: true}, StatusConfirmed},
		{"canceled", LaborRequest{Confirmed: true, Canceled: true}, StatusCanceled},
		{"ncns", LaborRequest{Confirmed: true, NCNS: true}, StatusNCNS},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.req.Status())
		})
	}
}

func TestStatus_NCNSWinsOverCanceled(t *testing.T) {
	// Both flags set: the no-show classification wins. A worker who never
	// appeared is an ncns even if someone also canceled the record.
	r := LaborRequest{Confirmed: true, Canceled: true, NCNS: true}
	assert.Equal(t, StatusNCNS, r.Status())
}

// =============================================================================
// SMS REPLY
// =============================================================================

func TestRecordReply_PendingToAvailableOrDeclined(t *testing.T) {
	r := pendingRequest()
	require.NoError(t, r.RecordReply(true, txTime))
	assert.Equal(t, StatusAvailable, r.Status())

	r = pendingRequest()
	require.NoError(t, r.RecordReply(false, txTime))
	assert.Equal(t, StatusDeclined, r.Status())
}

func TestRecordReply_RejectedOnceTerminalOrConfirmed(t *testing.T) {
	confirmed := pendingRequest()
	require.NoError(t, confirmed.Confirm(txTime))
	assert.ErrorIs(t, confirmed.RecordReply(true, txTime), ErrInvalidTransition)

	canceled := pendingRequest()
	canceled.Canceled = true
	assert.ErrorIs(t, canceled.RecordReply(true, txTime), ErrInvalidTransition)
}

// =============================================================================
// MANAGER TRANSITIONS
// =============================================================================

func TestConfirm_FromAvailablePendingAndDeclined(t *testing.T) {
	for _, setup := range []func(*LaborRequest){
		func(r *LaborRequest) {},                                        // pending
		func(r *LaborRequest) { _ = r.RecordReply(true, txTime) },       // available
		func(r *LaborRequest) { _ = r.RecordReply(false, txTime) },      // declined is reversible
	} {
		r := pendingRequest()
		setup(&r)
		require.NoError(t, r.Confirm(txTime))
		assert.Equal(t, StatusConfirmed, r.Status())
	}
}

func TestConfirm_ManagerOverridesFromCanceledAndNCNS(t *testing.T) {
	// "Un-cancel" and "showed up" are explicit manager overrides.
	r := pendingRequest()
	require.NoError(t, r.Confirm(txTime))
	require.NoError(t, r.Cancel(txTime))
	require.NoError(t, r.Confirm(txTime))
	assert.Equal(t, StatusConfirmed, r.Status())

	r = pendingRequest()
	require.NoError(t, r.Confirm(txTime))
	require.NoError(t, r.MarkNCNS(txTime))
	require.NoError(t, r.Confirm(txTime))
	assert.Equal(t, StatusConfirmed, r.Status())
	assert.False(t, r.NCNS, "override must clear the ncns flag")
}

func TestCancel_OnlyFromConfirmed(t *testing.T) {
	r := pendingRequest()
	err := r.Cancel(txTime)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, StatusPending, te.From)
}

func TestMarkNCNS_OnlyFromConfirmed(t *testing.T) {
	r := pendingRequest()
	assert.ErrorIs(t, r.MarkNCNS(txTime), ErrInvalidTransition)

	require.NoError(t, r.Confirm(txTime))
	require.NoError(t, r.MarkNCNS(txTime))
	assert.Equal(t, StatusNCNS, r.Status())
}

func TestDecline_AnyNonTerminal(t *testing.T) {
	r := pendingRequest()
	require.NoError(t, r.Confirm(txTime))
	require.NoError(t, r.Decline(txTime))
	assert.Equal(t, StatusDeclined, r.Status())

	r = pendingRequest()
	r.NCNS = true
	assert.ErrorIs(t, r.Decline(txTime), ErrInvalidTransition)
}

// =============================================================================
// RECONFIRMATION AFTER TIME CHANGE
// =============================================================================

func TestRequireReconfirm_DropsConfirmationToAvailable(t *testing.T) {
	r := pendingRequest()
	require.NoError(t, r.RecordReply(true, txTime))
	require.NoError(t, r.Confirm(txTime))

	r.RequireReconfirm(txTime)
	assert.Equal(t, StatusAvailable, r.Status())

	// Only confirmed requests are touched.
	d := pendingRequest()
	require.NoError(t, d.RecordReply(false, txTime))
	d.RequireReconfirm(txTime)
	assert.Equal(t, StatusDeclined, d.Status())
}
