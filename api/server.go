/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the manager frontend

ROUTE GROUPS:
  /api/workers/*        Crew roster
  /api/skills/*         Skill definitions
  /api/events/*         Events and their call times
  /api/call-times/*     Rescheduling, requirements, attendance sheet
  /api/requirements/*   Need assessment, auto-fill, requests
  /api/requests/*       Request transitions and clock-in
  /api/reply/{token}    Worker SMS replies
  /api/time-entries/*   Attendance recording and computed hours
  /api/scenarios/*      Demo scenarios

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/workers", func(r chi.Router) {
			r.Get("/", h.ListWorkers)
			r.Post("/", h.CreateWorker)
			r.Get("/{id}", h.GetWorker)
			r.Get("/{id}/requests", h.ListWorkerRequests)
		})

		r.Route("/skills", func(r chi.Router) {
			r.Get("/", h.ListSkills)
			r.Post("/", h.CreateSkill)
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", h.ListEvents)
			r.Post("/", h.CreateEvent)
			r.Get("/{id}", h.GetEvent)
			r.Get("/{id}/call-times", h.ListCallTimes)
			r.Post("/{id}/call-times", h.CreateCallTime)
		})

		r.Route("/call-times", func(r chi.Router) {
			r.Post("/{id}/reschedule", h.RescheduleCallTime)
			r.Get("/{id}/requirements", h.ListRequirements)
			r.Post("/{id}/requirements", h.CreateRequirement)
			r.Get("/{id}/sheet", h.GetSheet)
		})

		r.Route("/requirements", func(r chi.Router) {
			r.Get("/{id}/assessment", h.GetAssessment)
			r.Post("/{id}/auto-fill", h.AutoFill)
			r.Get("/{id}/requests", h.ListRequirementRequests)
			r.Post("/{id}/requests", h.CreateRequest)
		})

		r.Route("/requests", func(r chi.Router) {
			r.Post("/bulk-confirm", h.BulkConfirm)
			r.Post("/{id}/confirm", h.ConfirmRequest)
			r.Post("/{id}/decline", h.DeclineRequest)
			r.Post("/{id}/cancel", h.CancelRequest)
			r.Post("/{id}/ncns", h.MarkNCNS)
			r.Post("/{id}/clock-in", h.ClockIn)
			r.Delete("/{id}", h.DeleteRequest)
		})

		r.Post("/reply/{token}", h.Reply)

		r.Route("/time-entries", func(r chi.Router) {
			r.Post("/{id}/clock-out", h.ClockOut)
			r.Post("/{id}/breaks", h.AddBreak)
			r.Put("/{id}", h.CorrectEntry)
			r.Get("/{id}/hours", h.GetHours)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
