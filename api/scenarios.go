/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates skills, workers,
	events, call times and requirements demonstrating specific features.

AVAILABLE SCENARIOS:

	arena-load-in:     One event, two call times, partially filled
	festival-weekend:  Overlapping call times for conflict demos

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create skills and workers
 3. Create an event hierarchy with policy overrides
 4. Create a few requests in interesting states

USAGE VIA API:

	POST /api/scenarios/load
	{"id": "arena-load-in"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Route handlers and helpers
  - server.go: Scenario routes
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/stagecall/staffing-engine/engine"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "arena-load-in",
		Name:        "Arena Load-In",
		Description: "One event, two call times, riggers partially confirmed",
	},
	{
		ID:          "festival-weekend",
		Name:        "Festival Weekend",
		Description: "Two events with overlapping call times for conflict demos",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeValid(w, r, &req) {
		return
	}

	ctx := r.Context()
	if !h.reset(w, ctx) {
		return
	}

	var err error
	switch req.ID {
	case "arena-load-in":
		err = h.loadArenaLoadIn(ctx)
	case "festival-weekend":
		err = h.loadFestivalWeekend(ctx)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario %q", req.ID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ID
	h.Logger.Info("scenario loaded", zap.String("scenario", req.ID))
	writeJSON(w, http.StatusOK, map[string]string{"loaded": req.ID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if !h.reset(w, r.Context()) {
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) reset(w http.ResponseWriter, ctx context.Context) bool {
	resetter, ok := h.Store.(Resetter)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Store does not support reset", nil)
		return false
	}
	if err := resetter.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return false
	}
	h.currentScenario = ""
	return true
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) seedRoster(ctx context.Context) error {
	skills := []engine.Skill{
		{ID: "rigger", Name: "Rigger"},
		{ID: "stagehand", Name: "Stagehand"},
		{ID: "forklift", Name: "Forklift Operator"},
	}
	for _, s := range skills {
		if err := h.Store.SaveSkill(ctx, s); err != nil {
			return err
		}
	}

	workers := []engine.Worker{
		{ID: "w-ana", Name: "Ana Reyes", Phone: "+15550100001",
			Skills: []engine.SkillID{"rigger", "stagehand"}, Consent: engine.ConsentGranted},
		{ID: "w-ben", Name: "Ben Okafor", Phone: "+15550100002",
			Skills: []engine.SkillID{"rigger"}, Consent: engine.ConsentGranted},
		{ID: "w-cam", Name: "Cam Fox", Phone: "+15550100003",
			Skills: []engine.SkillID{"stagehand"}, Consent: engine.ConsentGranted,
			AltPhones: []engine.Phone{{Number: "+15550100033", Label: "home"}}},
		{ID: "w-dee", Name: "Dee Tran", Phone: "+15550100004",
			Skills: []engine.SkillID{"forklift", "stagehand"}, Consent: engine.ConsentPending},
		{ID: "w-eli", Name: "Eli Brandt", Phone: "+15550100005",
			Consent: engine.ConsentGranted, NoShowCount: 2},
		{ID: "w-fay", Name: "Fay Castillo", Phone: "+15550100006",
			Skills: []engine.SkillID{"stagehand"}, Consent: engine.ConsentBlocked},
	}
	for _, worker := range workers {
		if err := h.Store.SaveWorker(ctx, worker); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadArenaLoadIn(ctx context.Context) error {
	if err := h.seedRoster(ctx); err != nil {
		return err
	}

	day := time.Now().AddDate(0, 0, 7).Truncate(24 * time.Hour)
	event := engine.Event{
		ID:    "ev-arena",
		Slug:  "arena-load-in",
		Name:  "Arena Load-In",
		Start: day.Add(6 * time.Hour),
		End:   day.Add(23 * time.Hour),
		Location: engine.Location{
			Name:    "Riverside Arena",
			Address: "1 Arena Plaza",
			Policy:  engine.PolicyLayer{MinimumHours: engine.HoursPtr(5)},
		},
	}
	if err := h.Store.SaveEvent(ctx, event); err != nil {
		return err
	}

	callTimes := []engine.CallTime{
		{ID: "ct-morning", EventID: event.ID, Name: "Morning Load-In",
			StartsAt: day.Add(6 * time.Hour), EndsAt: day.Add(14 * time.Hour)},
		{ID: "ct-evening", EventID: event.ID, Name: "Evening Show Call",
			StartsAt: day.Add(16 * time.Hour), EndsAt: day.Add(23 * time.Hour),
			Policy: engine.PolicyLayer{RoundUpMinutes: engine.MinutesPtr(15)}},
	}
	for _, ct := range callTimes {
		if err := h.Store.SaveCallTime(ctx, ct); err != nil {
			return err
		}
	}

	requirements := []engine.LaborRequirement{
		{ID: "rq-riggers-am", CallTimeID: "ct-morning", SkillID: "rigger", NeededLabor: 2},
		{ID: "rq-hands-am", CallTimeID: "ct-morning", SkillID: "stagehand", NeededLabor: 3},
		{ID: "rq-hands-pm", CallTimeID: "ct-evening", SkillID: "stagehand", NeededLabor: 2},
	}
	for _, lr := range requirements {
		if err := h.Store.SaveRequirement(ctx, lr); err != nil {
			return err
		}
	}

	// One rigger already confirmed, one reserved.
	if _, err := h.Fulfillment.RequestWorker(ctx, "rq-riggers-am", "w-ana", false); err != nil {
		return err
	}
	requests, err := h.Store.ListRequestsForRequirement(ctx, "rq-riggers-am")
	if err != nil {
		return err
	}
	if _, err := h.Fulfillment.Confirm(ctx, requests[0].ID); err != nil {
		return err
	}
	if _, err := h.Fulfillment.RequestWorker(ctx, "rq-hands-am", "w-cam", true); err != nil {
		return err
	}
	return nil
}

func (h *Handler) loadFestivalWeekend(ctx context.Context) error {
	if err := h.seedRoster(ctx); err != nil {
		return err
	}

	day := time.Now().AddDate(0, 0, 14).Truncate(24 * time.Hour)
	events := []engine.Event{
		{ID: "ev-main", Slug: "festival-main", Name: "Festival Main Stage",
			Start: day.Add(8 * time.Hour), End: day.Add(23 * time.Hour),
			Location: engine.Location{Name: "Fairgrounds North"}},
		{ID: "ev-side", Slug: "festival-side", Name: "Festival Side Stage",
			Start: day.Add(10 * time.Hour), End: day.Add(22 * time.Hour),
			Location: engine.Location{Name: "Fairgrounds South"}},
	}
	for _, e := range events {
		if err := h.Store.SaveEvent(ctx, e); err != nil {
			return err
		}
	}

	// The two calls overlap so any worker requested to one is a
	// scheduling conflict for the other.
	callTimes := []engine.CallTime{
		{ID: "ct-main", EventID: "ev-main", Name: "Main Stage Call",
			StartsAt: day.Add(8 * time.Hour), EndsAt: day.Add(18 * time.Hour)},
		{ID: "ct-side", EventID: "ev-side", Name: "Side Stage Call",
			StartsAt: day.Add(12 * time.Hour), EndsAt: day.Add(22 * time.Hour)},
	}
	for _, ct := range callTimes {
		if err := h.Store.SaveCallTime(ctx, ct); err != nil {
			return err
		}
	}

	requirements := []engine.LaborRequirement{
		{ID: "rq-main-hands", CallTimeID: "ct-main", SkillID: "stagehand", NeededLabor: 3},
		{ID: "rq-side-hands", CallTimeID: "ct-side", SkillID: "stagehand", NeededLabor: 2},
	}
	for _, lr := range requirements {
		if err := h.Store.SaveRequirement(ctx, lr); err != nil {
			return err
		}
	}

	if _, err := h.Fulfillment.RequestWorker(ctx, "rq-main-hands", "w-cam", false); err != nil {
		return err
	}
	return nil
}
