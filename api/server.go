/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RequestLogger: One structured log line per request (slog)
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. CORS:          Cross-origin requests for the frontend
  5. RateLimit:     Per-IP limit, when a limiter is configured
  6. Authenticate:  Bearer token, or X-Actor headers in development

ROUTE GROUPS:
  /api/employees/*      Pay profiles, leave balances and requests
  /api/holidays/*       Working-day calendar
  /api/payruns/*        Payrun lifecycle, payslip edits, exports
  /api/leave/*          Leave types, requests, adjustments, accrual
  /api/terminations/*   Termination settlements
  /api/events           Audit trail
  /api/scenarios/*      Demo scenarios
  /healthz              Liveness and database ping (no auth)

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Authentication, rate limiting, request logging
  - cmd/server/main.go: Server startup
*/
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ulule/limiter/v3"

	"github.com/warp/payroll-engine/generic"
)

// RouterOptions configures the middleware stack.
type RouterOptions struct {
	CORSOrigins []string
	JWTSecret   string // empty = header-based actors
	DefaultOrg  generic.OrganizationID
	Limiter     *limiter.Limiter // nil = no rate limit
	Logger      *slog.Logger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Organization-ID", "X-Actor-ID", "X-Actor-Type"},
		AllowCredentials: true,
	}))
	if opts.Limiter != nil {
		r.Use(RateLimit(opts.Limiter))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := h.Store.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(Authenticate(opts.JWTSecret, opts.DefaultOrg))

		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.SaveEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Get("/{id}/leave-balances", h.GetLeaveBalances)
			r.Get("/{id}/leave-requests", h.ListLeaveRequests)
			r.Get("/{id}/leave-transactions", h.ListLeaveTransactions)
			r.Get("/{id}/leave-reconciliation", h.ReconcileLeave)
		})

		// Holiday routes
		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
		})

		// Payrun routes
		r.Route("/payruns", func(r chi.Router) {
			r.Get("/", h.ListPayruns)
			r.Post("/", h.CreatePayrun)
			r.Get("/{id}", h.GetPayrun)
			r.Post("/{id}/run", h.RunPayrun)
			r.Post("/{id}/cancel", h.CancelPayrun)
			r.Post("/{id}/finalize", h.FinalizePayrun)
			r.Get("/{id}/register.xlsx", h.ExportRegister)
			r.Get("/{id}/payslips/{employeeID}", h.GetPayslip) // "{employeeID}.pdf" renders the PDF
			r.Patch("/{id}/payslips/{employeeID}", h.EditPayslip)
		})

		// Leave routes
		r.Route("/leave", func(r chi.Router) {
			r.Get("/types", h.ListLeaveTypes)
			r.Post("/types", h.SaveLeaveType)
			r.Post("/requests", h.CreateLeaveRequest)
			r.Post("/requests/{id}/approve", h.ApproveLeaveRequest)
			r.Post("/requests/{id}/reject", h.RejectLeaveRequest)
			r.Post("/requests/{id}/cancel", h.CancelLeaveRequest)
			r.Post("/adjustments", h.CreateAdjustment)
			r.Post("/accrue", h.AccrueLeave)
		})

		// Termination routes
		r.Route("/terminations", func(r chi.Router) {
			r.Get("/", h.ListTerminations)
			r.Post("/", h.CreateTermination)
			r.Post("/preview", h.PreviewTermination)
			r.Get("/{id}", h.GetTermination)
			r.Post("/{id}/submit", h.SubmitTermination)
			r.Post("/{id}/complete", h.CompleteTermination)
			r.Patch("/{id}/deductions/{code}", h.EditTerminationDeduction)
		})

		r.Get("/events", h.ListEvents)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
