/*
scenarios_test.go - Tests for demo scenario loading

Verifies each scenario seeds a consistent world: roster, schedule,
pre-made requests, and that load/reset drive the current-scenario state.
*/
package api_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagecall/staffing-engine/api"
)

func TestListScenarios(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]api.ScenarioDTO](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, "arena-load-in", list[0].ID)
	assert.Equal(t, "festival-weekend", list[1].ID)
}

func TestLoadScenario_ArenaLoadIn(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", api.LoadScenarioRequest{ID: "arena-load-in"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	current := decodeBody[api.ScenarioDTO](t, rec)
	assert.Equal(t, "arena-load-in", current.ID)

	rec = ts.do(t, http.MethodGet, "/api/workers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	workers := decodeBody[[]api.WorkerDTO](t, rec)
	assert.Len(t, workers, 6)

	rec = ts.do(t, http.MethodGet, "/api/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decodeBody[[]api.EventDTO](t, rec)
	require.Len(t, events, 1)
	assert.Equal(t, "ev-arena", events[0].ID)

	rec = ts.do(t, http.MethodGet, "/api/events/ev-arena/call-times", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	callTimes := decodeBody[[]api.CallTimeDTO](t, rec)
	assert.Len(t, callTimes, 2)

	// One rigger is pre-confirmed, so the requirement still needs one.
	rec = ts.do(t, http.MethodGet, "/api/requirements/rq-riggers-am/assessment", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assessment := decodeBody[api.AssessmentDTO](t, rec)
	assert.Equal(t, 1, assessment.ConfirmedCount)
	assert.Equal(t, 1, assessment.PositionsNeeded)

	// The stagehand reservation counts toward the need arithmetic.
	rec = ts.do(t, http.MethodGet, "/api/requirements/rq-hands-am/assessment", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assessment = decodeBody[api.AssessmentDTO](t, rec)
	assert.Equal(t, 1, assessment.ReservedCount)
}

func TestLoadScenario_FestivalWeekend(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", api.LoadScenarioRequest{ID: "festival-weekend"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decodeBody[[]api.EventDTO](t, rec)
	assert.Len(t, events, 2)

	// w-cam is requested on the main stage; the overlapping side stage
	// auto-fill must not pick them up.
	rec = ts.do(t, http.MethodPost, "/api/requirements/rq-side-hands/auto-fill", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decodeBody[api.AutoFillResponse](t, rec)
	assert.NotContains(t, report.Selected, "w-cam")
}

func TestLoadScenario_Unknown(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", api.LoadScenarioRequest{ID: "no-such"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoadScenario_ReplacesPreviousWorld(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", api.LoadScenarioRequest{ID: "arena-load-in"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, http.MethodPost, "/api/scenarios/load", api.LoadScenarioRequest{ID: "festival-weekend"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decodeBody[[]api.EventDTO](t, rec)
	for _, e := range events {
		assert.NotEqual(t, "ev-arena", e.ID)
	}
}

func TestResetDatabase(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", api.LoadScenarioRequest{ID: "arena-load-in"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/workers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	workers := decodeBody[[]api.WorkerDTO](t, rec)
	assert.Empty(t, workers)

	rec = ts.do(t, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null\n", rec.Body.String())
}
