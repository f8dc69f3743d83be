/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request bodies carry go-playground/validator struct tags and are
  validated by decodeValid in handlers.go before any domain call.

SEE ALSO:
  - handlers.go: Uses these types
  - engine: The domain types these mirror
*/
package api

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/stagecall/staffing-engine/dispatch"
	"github.com/stagecall/staffing-engine/engine"
)

var validate = validator.New()

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// WorkerDTO represents a worker in API responses.
type WorkerDTO struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Phone         string     `json:"phone"`
	AltPhones     []PhoneDTO `json:"alt_phones,omitempty"`
	Skills        []string   `json:"skills"`
	Consent       string     `json:"consent"`
	NoShowCount   int        `json:"no_show_count"`
	CanceledCount int        `json:"canceled_count"`
}

// PhoneDTO is an alternate contact number.
type PhoneDTO struct {
	Number string `json:"number" validate:"required"`
	Label  string `json:"label"`
}

// CreateWorkerRequest is the request to create or update a worker.
type CreateWorkerRequest struct {
	ID        string     `json:"id" validate:"required"`
	Name      string     `json:"name" validate:"required"`
	Phone     string     `json:"phone"`
	AltPhones []PhoneDTO `json:"alt_phones" validate:"dive"`
	Skills    []string   `json:"skills"`
	Consent   string     `json:"consent" validate:"omitempty,oneof=not_sent pending granted blocked"`
}

// SkillDTO represents a skill.
type SkillDTO struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
}

// EventDTO represents an event in API responses.
type EventDTO struct {
	ID        string  `json:"id"`
	Slug      string  `json:"slug"`
	Name      string  `json:"name"`
	StartsAt  string  `json:"starts_at"`
	EndsAt    string  `json:"ends_at"`
	Location  string  `json:"location,omitempty"`
	Address   string  `json:"address,omitempty"`
	Canceled  bool    `json:"canceled"`
	StewardID *string `json:"steward_id,omitempty"`
}

// CreateEventRequest is the request to create an event.
type CreateEventRequest struct {
	ID       string `json:"id" validate:"required"`
	Slug     string `json:"slug" validate:"required"`
	Name     string `json:"name" validate:"required"`
	StartsAt string `json:"starts_at" validate:"required"`
	EndsAt   string `json:"ends_at" validate:"required"`
	Location string `json:"location"`
	Address  string `json:"address"`
}

// CallTimeDTO represents a call time.
type CallTimeDTO struct {
	ID             string `json:"id"`
	EventID        string `json:"event_id"`
	Name           string `json:"name"`
	StartsAt       string `json:"starts_at"`
	EndsAt         string `json:"ends_at"`
	TimeHasChanged bool   `json:"time_has_changed"`
}

// CreateCallTimeRequest is the request to create a call time.
type CreateCallTimeRequest struct {
	ID       string `json:"id" validate:"required"`
	Name     string `json:"name" validate:"required"`
	StartsAt string `json:"starts_at" validate:"required"`
	EndsAt   string `json:"ends_at" validate:"required"`
}

// RescheduleCallTimeRequest moves a call time's window.
type RescheduleCallTimeRequest struct {
	StartsAt string `json:"starts_at" validate:"required"`
	EndsAt   string `json:"ends_at" validate:"required"`
}

// RequirementDTO represents a labor requirement.
type RequirementDTO struct {
	ID          string `json:"id"`
	CallTimeID  string `json:"call_time_id"`
	SkillID     string `json:"skill_id"`
	NeededLabor int    `json:"needed_labor"`
}

// CreateRequirementRequest is the request to create a requirement.
type CreateRequirementRequest struct {
	ID          string `json:"id" validate:"required"`
	SkillID     string `json:"skill_id" validate:"required"`
	NeededLabor int    `json:"needed_labor" validate:"min=0"`
}

// AssessmentDTO is the remaining-need arithmetic for a requirement.
type AssessmentDTO struct {
	NeededLabor     int  `json:"needed_labor"`
	ConfirmedCount  int  `json:"confirmed_count"`
	ReservedCount   int  `json:"reserved_count"`
	RequestedCount  int  `json:"requested_count"`
	PositionsNeeded int  `json:"positions_needed"`
	Filled          bool `json:"filled"`
	OverbookedBy    int  `json:"overbooked_by,omitempty"`
}

// RequestDTO represents a labor request.
type RequestDTO struct {
	ID            string `json:"id"`
	RequirementID string `json:"requirement_id"`
	WorkerID      string `json:"worker_id"`
	Status        string `json:"status"`
	Response      string `json:"response"`
	Reserved      bool   `json:"reserved"`
	SMSSent       bool   `json:"sms_sent"`
	Token         string `json:"token"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// CreateRequestRequest is the manual single-worker request.
type CreateRequestRequest struct {
	WorkerID string `json:"worker_id" validate:"required"`
	Reserve  bool   `json:"reserve"`
}

// AutoFillResponse is the committed outcome of one auto-fill run.
type AutoFillResponse struct {
	Assessment AssessmentDTO          `json:"assessment"`
	Selected   []string               `json:"selected"`
	Shortfall  int                    `json:"shortfall"`
	Warnings   []CandidateWarningDTO  `json:"warnings,omitempty"`
	Created    []RequestDTO           `json:"created"`
}

// CandidateWarningDTO flags a selected worker the SMS gateway cannot reach.
type CandidateWarningDTO struct {
	WorkerID string `json:"worker_id"`
	Consent  string `json:"consent"`
	Reason   string `json:"reason"`
}

// ReplyRequest is a worker's availability reply located by token.
type ReplyRequest struct {
	Available *bool `json:"available" validate:"required"`
}

// BulkConfirmRequest confirms many requests at once.
type BulkConfirmRequest struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}

// BulkConfirmResultDTO reports the outcome for one id.
type BulkConfirmResultDTO struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ClockInRequest opens a time entry for a confirmed request.
type ClockInRequest struct {
	At string `json:"at" validate:"required"`
}

// ClockOutRequest closes an open entry.
type ClockOutRequest struct {
	At string `json:"at" validate:"required"`
}

// AddBreakRequest records a meal break. Break lengths come from the
// union agreement; only half-hour and full-hour breaks exist.
type AddBreakRequest struct {
	At      string `json:"at" validate:"required"`
	Minutes int    `json:"minutes" validate:"required,oneof=30 60"`
}

// CorrectEntryRequest replaces an entry's raw attendance (manager edit).
type CorrectEntryRequest struct {
	StartsAt string          `json:"starts_at" validate:"required"`
	EndsAt   *string         `json:"ends_at"`
	Breaks   []MealBreakDTO  `json:"breaks" validate:"dive"`
}

// MealBreakDTO is one meal break on a time entry.
type MealBreakDTO struct {
	At      string `json:"at" validate:"required"`
	Minutes int    `json:"minutes" validate:"required,oneof=30 60"`
}

// TimeEntryDTO represents a time entry.
type TimeEntryDTO struct {
	ID        string         `json:"id"`
	RequestID string         `json:"request_id"`
	StartsAt  string         `json:"starts_at"`
	EndsAt    *string        `json:"ends_at,omitempty"`
	Breaks    []MealBreakDTO `json:"breaks,omitempty"`
}

// HoursDTO is the computed pay buckets for one entry.
type HoursDTO struct {
	InProgress  bool   `json:"in_progress"`
	Normal      string `json:"normal"`
	MealPenalty string `json:"meal_penalty"`
	Total       string `json:"total"`
}

// SheetRowDTO is one worker's line on a call time sheet.
type SheetRowDTO struct {
	EntryID    string    `json:"entry_id"`
	RequestID  string    `json:"request_id"`
	WorkerID   string    `json:"worker_id"`
	WorkerName string    `json:"worker_name"`
	Working    bool      `json:"working"`
	Hours      *HoursDTO `json:"hours,omitempty"`
	Problem    string    `json:"problem,omitempty"`
}

// SheetDTO is the aggregate attendance view for one call time.
type SheetDTO struct {
	CallTimeID   string        `json:"call_time_id"`
	Rows         []SheetRowDTO `json:"rows"`
	TotalNormal  string        `json:"total_normal"`
	TotalPenalty string        `json:"total_penalty"`
	TotalHours   string        `json:"total_hours"`
	FlaggedRows  int           `json:"flagged_rows"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects the scenario to load.
type LoadScenarioRequest struct {
	ID string `json:"id" validate:"required"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toWorkerDTO(w engine.Worker) WorkerDTO {
	dto := WorkerDTO{
		ID:            string(w.ID),
		Name:          w.Name,
		Phone:         w.Phone,
		Consent:       string(w.Consent),
		NoShowCount:   w.NoShowCount,
		CanceledCount: w.CanceledCount,
		Skills:        make([]string, len(w.Skills)),
	}
	for i, s := range w.Skills {
		dto.Skills[i] = string(s)
	}
	for _, p := range w.AltPhones {
		dto.AltPhones = append(dto.AltPhones, PhoneDTO{Number: p.Number, Label: p.Label})
	}
	return dto
}

func toEventDTO(e engine.Event) EventDTO {
	dto := EventDTO{
		ID:       string(e.ID),
		Slug:     e.Slug,
		Name:     e.Name,
		StartsAt: e.Start.Format(time.RFC3339),
		EndsAt:   e.End.Format(time.RFC3339),
		Location: e.Location.Name,
		Address:  e.Location.Address,
		Canceled: e.Canceled,
	}
	if e.StewardID != nil {
		id := string(*e.StewardID)
		dto.StewardID = &id
	}
	return dto
}

func toCallTimeDTO(ct engine.CallTime) CallTimeDTO {
	return CallTimeDTO{
		ID:             string(ct.ID),
		EventID:        string(ct.EventID),
		Name:           ct.Name,
		StartsAt:       ct.StartsAt.Format(time.RFC3339),
		EndsAt:         ct.EndsAt.Format(time.RFC3339),
		TimeHasChanged: ct.TimeHasChanged,
	}
}

func toRequirementDTO(lr engine.LaborRequirement) RequirementDTO {
	return RequirementDTO{
		ID:          string(lr.ID),
		CallTimeID:  string(lr.CallTimeID),
		SkillID:     string(lr.SkillID),
		NeededLabor: lr.NeededLabor,
	}
}

func toAssessmentDTO(a engine.NeedAssessment) AssessmentDTO {
	return AssessmentDTO{
		NeededLabor:     a.NeededLabor,
		ConfirmedCount:  a.ConfirmedCount,
		ReservedCount:   a.ReservedCount,
		RequestedCount:  a.RequestedCount,
		PositionsNeeded: a.PositionsNeeded,
		Filled:          a.Filled(),
		OverbookedBy:    a.OverbookedBy(),
	}
}

func toRequestDTO(r engine.LaborRequest) RequestDTO {
	return RequestDTO{
		ID:            string(r.ID),
		RequirementID: string(r.RequirementID),
		WorkerID:      string(r.WorkerID),
		Status:        string(r.Status()),
		Response:      string(r.Response),
		Reserved:      r.Reserved,
		SMSSent:       r.SMSSent,
		Token:         r.Token,
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     r.UpdatedAt.Format(time.RFC3339),
	}
}

func toRequestDTOs(rs []engine.LaborRequest) []RequestDTO {
	dtos := make([]RequestDTO, len(rs))
	for i, r := range rs {
		dtos[i] = toRequestDTO(r)
	}
	return dtos
}

func toTimeEntryDTO(e engine.TimeEntry) TimeEntryDTO {
	dto := TimeEntryDTO{
		ID:        string(e.ID),
		RequestID: string(e.RequestID),
		StartsAt:  e.Start.Format(time.RFC3339),
	}
	if e.End != nil {
		s := e.End.Format(time.RFC3339)
		dto.EndsAt = &s
	}
	for _, b := range e.Breaks {
		dto.Breaks = append(dto.Breaks, MealBreakDTO{At: b.At.Format(time.RFC3339), Minutes: b.Minutes})
	}
	return dto
}

func toHoursDTO(h engine.HoursResult) HoursDTO {
	return HoursDTO{
		InProgress:  h.InProgress,
		Normal:      h.Normal.String(),
		MealPenalty: h.MealPenalty.String(),
		Total:       h.Total.String(),
	}
}

func toSheetDTO(s *dispatch.Sheet) SheetDTO {
	dto := SheetDTO{
		CallTimeID:   string(s.CallTimeID),
		TotalNormal:  s.TotalNormal.String(),
		TotalPenalty: s.TotalPenalty.String(),
		TotalHours:   s.TotalHours.String(),
		FlaggedRows:  s.FlaggedRows,
	}
	for _, row := range s.Rows {
		r := SheetRowDTO{
			EntryID:    string(row.EntryID),
			RequestID:  string(row.RequestID),
			WorkerID:   string(row.WorkerID),
			WorkerName: row.WorkerName,
			Working:    row.Working,
			Problem:    row.Problem,
		}
		if row.Result != nil {
			h := toHoursDTO(*row.Result)
			r.Hours = &h
		}
		dto.Rows = append(dto.Rows, r)
	}
	return dto
}
