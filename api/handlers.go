/*
handlers.go - HTTP API handlers for the staffing engine

PURPOSE:
  Exposes the staffing engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the dispatch
  services.

ENDPOINTS:
  Workers:
    GET    /api/workers                  List all workers
    POST   /api/workers                  Create/update worker
    GET    /api/workers/{id}             Get worker details
    GET    /api/workers/{id}/requests    Worker's request history

  Schedule:
    GET    /api/events                   List events
    POST   /api/events                   Create event
    GET    /api/events/{id}              Get event
    GET    /api/events/{id}/call-times   List call times
    POST   /api/events/{id}/call-times   Create call time
    POST   /api/call-times/{id}/reschedule  Move a call time
    GET    /api/call-times/{id}/requirements
    POST   /api/call-times/{id}/requirements
    GET    /api/call-times/{id}/sheet    Aggregated attendance sheet

  Fulfillment:
    GET    /api/requirements/{id}/assessment  Remaining-need arithmetic
    POST   /api/requirements/{id}/auto-fill   Plan + commit + SMS
    GET    /api/requirements/{id}/requests    List requests
    POST   /api/requirements/{id}/requests    Manual request/reserve
    POST   /api/requests/bulk-confirm
    POST   /api/requests/{id}/confirm|decline|cancel|ncns
    DELETE /api/requests/{id}
    POST   /api/reply/{token}            Worker SMS reply

  Attendance:
    POST   /api/requests/{id}/clock-in
    POST   /api/time-entries/{id}/clock-out
    POST   /api/time-entries/{id}/breaks
    PUT    /api/time-entries/{id}        Manager correction
    GET    /api/time-entries/{id}/hours  Computed pay buckets

ERROR HANDLING:
  Domain errors map to HTTP status via the engine error taxonomy:
  - 400: Validation and client errors (bad transition, bad range)
  - 404: Not-found sentinels
  - 409: Duplicate active request
  - 500: Everything else

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/stagecall/staffing-engine/dispatch"
	"github.com/stagecall/staffing-engine/engine"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Resetter clears all data; implemented by the stores for demo reloads.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       dispatch.TxStore
	Fulfillment *dispatch.FulfillmentService
	Timesheet   *dispatch.TimesheetService
	Logger      *zap.Logger

	currentScenario string
}

// NewHandler wires a handler over the given store and services.
func NewHandler(store dispatch.TxStore, fulfillment *dispatch.FulfillmentService, timesheet *dispatch.TimesheetService, logger *zap.Logger) *Handler {
	return &Handler{
		Store:       store,
		Fulfillment: fulfillment,
		Timesheet:   timesheet,
		Logger:      logger,
	}
}

// =============================================================================
// WORKER HANDLERS
// =============================================================================

// ListWorkers returns all workers.
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := h.Store.ListWorkers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list workers", err)
		return
	}
	dtos := make([]WorkerDTO, len(workers))
	for i, worker := range workers {
		dtos[i] = toWorkerDTO(worker)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetWorker returns a single worker.
func (h *Handler) GetWorker(w http.ResponseWriter, r *http.Request) {
	worker, err := h.Store.GetWorker(r.Context(), engine.WorkerID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get worker", err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkerDTO(*worker))
}

// CreateWorker creates or updates a worker.
func (h *Handler) CreateWorker(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkerRequest
	if !decodeValid(w, r, &req) {
		return
	}

	worker := engine.Worker{
		ID:      engine.WorkerID(req.ID),
		Name:    req.Name,
		Phone:   req.Phone,
		Consent: engine.ConsentNotSent,
	}
	if req.Consent != "" {
		worker.Consent = engine.ConsentState(req.Consent)
	}
	for _, s := range req.Skills {
		worker.Skills = append(worker.Skills, engine.SkillID(s))
	}
	for _, p := range req.AltPhones {
		worker.AltPhones = append(worker.AltPhones, engine.Phone{Number: p.Number, Label: p.Label})
	}

	if err := h.Store.SaveWorker(r.Context(), worker); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save worker", err)
		return
	}
	writeJSON(w, http.StatusCreated, toWorkerDTO(worker))
}

// ListWorkerRequests returns a worker's request history.
func (h *Handler) ListWorkerRequests(w http.ResponseWriter, r *http.Request) {
	id := engine.WorkerID(chi.URLParam(r, "id"))
	if _, err := h.Store.GetWorker(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to get worker", err)
		return
	}
	requests, err := h.Store.ListRequestsForWorker(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requests", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(requests))
}

// =============================================================================
// SKILL HANDLERS
// =============================================================================

// ListSkills returns all skills.
func (h *Handler) ListSkills(w http.ResponseWriter, r *http.Request) {
	skills, err := h.Store.ListSkills(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list skills", err)
		return
	}
	dtos := make([]SkillDTO, len(skills))
	for i, s := range skills {
		dtos[i] = SkillDTO{ID: string(s.ID), Name: s.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateSkill creates or updates a skill.
func (h *Handler) CreateSkill(w http.ResponseWriter, r *http.Request) {
	var req SkillDTO
	if !decodeValid(w, r, &req) {
		return
	}
	skill := engine.Skill{ID: engine.SkillID(req.ID), Name: req.Name}
	if err := h.Store.SaveSkill(r.Context(), skill); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save skill", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

// ListEvents returns all events.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.Store.ListEvents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events", err)
		return
	}
	dtos := make([]EventDTO, len(events))
	for i, e := range events {
		dtos[i] = toEventDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEvent returns a single event.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.Store.GetEvent(r.Context(), engine.EventID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get event", err)
		return
	}
	writeJSON(w, http.StatusOK, toEventDTO(*event))
}

// CreateEvent creates an event.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if !decodeValid(w, r, &req) {
		return
	}
	start, end, ok := parseWindow(w, req.StartsAt, req.EndsAt)
	if !ok {
		return
	}

	event := engine.Event{
		ID:    engine.EventID(req.ID),
		Slug:  req.Slug,
		Name:  req.Name,
		Start: start,
		End:   end,
		Location: engine.Location{
			Name:    req.Location,
			Address: req.Address,
		},
	}
	if err := h.Store.SaveEvent(r.Context(), event); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save event", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEventDTO(event))
}

// ListCallTimes returns an event's call times.
func (h *Handler) ListCallTimes(w http.ResponseWriter, r *http.Request) {
	eventID := engine.EventID(chi.URLParam(r, "id"))
	if _, err := h.Store.GetEvent(r.Context(), eventID); err != nil {
		writeDomainError(w, "Failed to get event", err)
		return
	}
	callTimes, err := h.Store.ListCallTimes(r.Context(), eventID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list call times", err)
		return
	}
	dtos := make([]CallTimeDTO, len(callTimes))
	for i, ct := range callTimes {
		dtos[i] = toCallTimeDTO(ct)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCallTime creates a call time under an event.
func (h *Handler) CreateCallTime(w http.ResponseWriter, r *http.Request) {
	eventID := engine.EventID(chi.URLParam(r, "id"))
	if _, err := h.Store.GetEvent(r.Context(), eventID); err != nil {
		writeDomainError(w, "Failed to get event", err)
		return
	}

	var req CreateCallTimeRequest
	if !decodeValid(w, r, &req) {
		return
	}
	start, end, ok := parseWindow(w, req.StartsAt, req.EndsAt)
	if !ok {
		return
	}

	ct := engine.CallTime{
		ID:       engine.CallTimeID(req.ID),
		EventID:  eventID,
		Name:     req.Name,
		StartsAt: start,
		EndsAt:   end,
	}
	if err := h.Store.SaveCallTime(r.Context(), ct); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save call time", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCallTimeDTO(ct))
}

// RescheduleCallTime moves a call time and demotes notified confirmations.
func (h *Handler) RescheduleCallTime(w http.ResponseWriter, r *http.Request) {
	var req RescheduleCallTimeRequest
	if !decodeValid(w, r, &req) {
		return
	}
	start, end, ok := parseWindow(w, req.StartsAt, req.EndsAt)
	if !ok {
		return
	}

	ct, err := h.Fulfillment.RescheduleCallTime(r.Context(),
		engine.CallTimeID(chi.URLParam(r, "id")), start, end)
	if err != nil {
		writeDomainError(w, "Failed to reschedule call time", err)
		return
	}
	writeJSON(w, http.StatusOK, toCallTimeDTO(*ct))
}

// ListRequirements returns a call time's labor requirements.
func (h *Handler) ListRequirements(w http.ResponseWriter, r *http.Request) {
	callTimeID := engine.CallTimeID(chi.URLParam(r, "id"))
	if _, err := h.Store.GetCallTime(r.Context(), callTimeID); err != nil {
		writeDomainError(w, "Failed to get call time", err)
		return
	}
	requirements, err := h.Store.ListRequirements(r.Context(), callTimeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requirements", err)
		return
	}
	dtos := make([]RequirementDTO, len(requirements))
	for i, lr := range requirements {
		dtos[i] = toRequirementDTO(lr)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRequirement creates a labor requirement under a call time.
func (h *Handler) CreateRequirement(w http.ResponseWriter, r *http.Request) {
	callTimeID := engine.CallTimeID(chi.URLParam(r, "id"))
	if _, err := h.Store.GetCallTime(r.Context(), callTimeID); err != nil {
		writeDomainError(w, "Failed to get call time", err)
		return
	}

	var req CreateRequirementRequest
	if !decodeValid(w, r, &req) {
		return
	}

	lr := engine.LaborRequirement{
		ID:          engine.RequirementID(req.ID),
		CallTimeID:  callTimeID,
		SkillID:     engine.SkillID(req.SkillID),
		NeededLabor: req.NeededLabor,
	}
	if err := h.Store.SaveRequirement(r.Context(), lr); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save requirement", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequirementDTO(lr))
}

// =============================================================================
// FULFILLMENT HANDLERS
// =============================================================================

// GetAssessment returns the remaining-need arithmetic for a requirement.
func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	assessment, err := h.Fulfillment.Assess(r.Context(), engine.RequirementID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to assess requirement", err)
		return
	}
	writeJSON(w, http.StatusOK, toAssessmentDTO(assessment))
}

// AutoFill plans, commits and dispatches requests for a requirement.
func (h *Handler) AutoFill(w http.ResponseWriter, r *http.Request) {
	report, err := h.Fulfillment.AutoFill(r.Context(), engine.RequirementID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Auto-fill failed", err)
		return
	}

	resp := AutoFillResponse{
		Assessment: toAssessmentDTO(report.Assessment),
		Selected:   make([]string, len(report.Selected)),
		Shortfall:  report.Shortfall,
		Created:    toRequestDTOs(report.Created),
	}
	for i, id := range report.Selected {
		resp.Selected[i] = string(id)
	}
	for _, warning := range report.Warnings {
		resp.Warnings = append(resp.Warnings, CandidateWarningDTO{
			WorkerID: string(warning.WorkerID),
			Consent:  string(warning.Consent),
			Reason:   warning.Reason,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListRequirementRequests returns all requests for a requirement.
func (h *Handler) ListRequirementRequests(w http.ResponseWriter, r *http.Request) {
	id := engine.RequirementID(chi.URLParam(r, "id"))
	if _, err := h.Store.GetRequirement(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to get requirement", err)
		return
	}
	requests, err := h.Store.ListRequestsForRequirement(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requests", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(requests))
}

// CreateRequest creates a single request (or reservation) by manager action.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var req CreateRequestRequest
	if !decodeValid(w, r, &req) {
		return
	}

	created, err := h.Fulfillment.RequestWorker(r.Context(),
		engine.RequirementID(chi.URLParam(r, "id")),
		engine.WorkerID(req.WorkerID), req.Reserve)
	if err != nil {
		writeDomainError(w, "Failed to create request", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(*created))
}

// Reply records a worker's availability reply by SMS token.
func (h *Handler) Reply(w http.ResponseWriter, r *http.Request) {
	var req ReplyRequest
	if !decodeValid(w, r, &req) {
		return
	}
	updated, err := h.Fulfillment.RecordReply(r.Context(), chi.URLParam(r, "token"), *req.Available)
	if err != nil {
		writeDomainError(w, "Failed to record reply", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*updated))
}

// ConfirmRequest locks a worker in.
func (h *Handler) ConfirmRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Fulfillment.Confirm)
}

// DeclineRequest marks a request declined.
func (h *Handler) DeclineRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Fulfillment.Decline)
}

// CancelRequest releases a confirmed worker.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Fulfillment.Cancel)
}

// MarkNCNS records a no-call-no-show.
func (h *Handler) MarkNCNS(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Fulfillment.MarkNCNS)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, apply func(context.Context, engine.RequestID) (*engine.LaborRequest, error)) {
	updated, err := apply(r.Context(), engine.RequestID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Transition failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*updated))
}

// DeleteRequest hard-deletes a request.
func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	if err := h.Fulfillment.DeleteRequest(r.Context(), engine.RequestID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, "Failed to delete request", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkConfirm confirms many requests, reporting per-id outcomes.
func (h *Handler) BulkConfirm(w http.ResponseWriter, r *http.Request) {
	var req BulkConfirmRequest
	if !decodeValid(w, r, &req) {
		return
	}

	ids := make([]engine.RequestID, len(req.IDs))
	for i, id := range req.IDs {
		ids[i] = engine.RequestID(id)
	}
	results := h.Fulfillment.BulkConfirm(r.Context(), ids)

	dtos := make([]BulkConfirmResultDTO, len(results))
	for i, res := range results {
		dtos[i] = BulkConfirmResultDTO{ID: string(res.ID), OK: res.OK, Error: res.Err}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

// ClockIn opens a time entry for a confirmed request.
func (h *Handler) ClockIn(w http.ResponseWriter, r *http.Request) {
	var req ClockInRequest
	if !decodeValid(w, r, &req) {
		return
	}
	at, ok := parseTime(w, req.At, "at")
	if !ok {
		return
	}

	entry, err := h.Timesheet.ClockIn(r.Context(), engine.RequestID(chi.URLParam(r, "id")), at)
	if err != nil {
		writeDomainError(w, "Clock-in failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTimeEntryDTO(*entry))
}

// ClockOut closes an open time entry.
func (h *Handler) ClockOut(w http.ResponseWriter, r *http.Request) {
	var req ClockOutRequest
	if !decodeValid(w, r, &req) {
		return
	}
	at, ok := parseTime(w, req.At, "at")
	if !ok {
		return
	}

	entry, err := h.Timesheet.ClockOut(r.Context(), engine.TimeEntryID(chi.URLParam(r, "id")), at)
	if err != nil {
		writeDomainError(w, "Clock-out failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toTimeEntryDTO(*entry))
}

// AddBreak records a meal break on a time entry.
func (h *Handler) AddBreak(w http.ResponseWriter, r *http.Request) {
	var req AddBreakRequest
	if !decodeValid(w, r, &req) {
		return
	}
	at, ok := parseTime(w, req.At, "at")
	if !ok {
		return
	}

	entry, err := h.Timesheet.AddBreak(r.Context(), engine.TimeEntryID(chi.URLParam(r, "id")), at, req.Minutes)
	if err != nil {
		writeDomainError(w, "Failed to add break", err)
		return
	}
	writeJSON(w, http.StatusOK, toTimeEntryDTO(*entry))
}

// CorrectEntry replaces an entry's raw attendance (manager edit).
func (h *Handler) CorrectEntry(w http.ResponseWriter, r *http.Request) {
	var req CorrectEntryRequest
	if !decodeValid(w, r, &req) {
		return
	}
	start, ok := parseTime(w, req.StartsAt, "starts_at")
	if !ok {
		return
	}

	entry := engine.TimeEntry{
		ID:    engine.TimeEntryID(chi.URLParam(r, "id")),
		Start: start,
	}
	if req.EndsAt != nil {
		end, ok := parseTime(w, *req.EndsAt, "ends_at")
		if !ok {
			return
		}
		entry.End = &end
	}
	for _, b := range req.Breaks {
		at, ok := parseTime(w, b.At, "breaks.at")
		if !ok {
			return
		}
		entry.Breaks = append(entry.Breaks, engine.MealBreak{At: at, Minutes: b.Minutes})
	}

	updated, err := h.Timesheet.Correct(r.Context(), entry)
	if err != nil {
		writeDomainError(w, "Correction failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toTimeEntryDTO(*updated))
}

// GetHours returns the computed pay buckets for one entry.
func (h *Handler) GetHours(w http.ResponseWriter, r *http.Request) {
	result, err := h.Timesheet.ComputeEntry(r.Context(), engine.TimeEntryID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to compute hours", err)
		return
	}
	writeJSON(w, http.StatusOK, toHoursDTO(result))
}

// GetSheet returns the aggregated attendance sheet for a call time.
func (h *Handler) GetSheet(w http.ResponseWriter, r *http.Request) {
	id := engine.CallTimeID(chi.URLParam(r, "id"))
	if _, err := h.Store.GetCallTime(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to get call time", err)
		return
	}
	sheet, err := h.Timesheet.BuildSheet(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to build sheet", err)
		return
	}
	writeJSON(w, http.StatusOK, toSheetDTO(sheet))
}

// =============================================================================
// HELPERS
// =============================================================================

// decodeValid decodes and validates a JSON request body. On failure it
// writes the 400 and returns false.
func decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

func parseTime(w http.ResponseWriter, value, field string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+field+" (use RFC 3339)", err)
		return time.Time{}, false
	}
	return t, true
}

func parseWindow(w http.ResponseWriter, startsAt, endsAt string) (time.Time, time.Time, bool) {
	start, ok := parseTime(w, startsAt, "starts_at")
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	end, ok := parseTime(w, endsAt, "ends_at")
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	if !start.Before(end) {
		writeError(w, http.StatusBadRequest, "starts_at must be before ends_at", nil)
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, engine.ErrDuplicateRequest):
		writeError(w, http.StatusConflict, message, err)
	case engine.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
