/*
handlers.go - HTTP API handlers for the payroll engine

PURPOSE:
  Exposes payruns, the leave ledger and termination settlements via REST.
  Handles HTTP request/response, JSON serialization, request validation,
  and delegates to the domain services.

ENDPOINTS:
  Employees:
    GET    /api/employees                       List employees
    POST   /api/employees                       Create or replace a pay profile
    GET    /api/employees/{id}                  Get a pay profile
    GET    /api/employees/{id}/leave-balances   Balances per leave type
    GET    /api/employees/{id}/leave-requests   Leave requests
    GET    /api/employees/{id}/leave-transactions Journal entries

  Payruns (payruns.go), Leave (leave.go), Terminations (terminations.go),
  Exports (export.go), Scenarios (scenarios.go).

  Calendar and audit:
    GET    /api/holidays                        List holidays
    POST   /api/holidays                        Add a holiday
    GET    /api/events                          Audit trail

ARCHITECTURE:
  Handler holds the domain services, all backed by one sqlite.Store:
  - Payruns:      payrun.Engine
  - Ledger:       leave.Ledger
  - Requests:     leave.RequestService
  - Terminations: termination.Service
  - Calendar:     roster.Calendar, refreshed after employee/holiday writes

  The organization and acting user come from the request context (see
  middleware.go). Nothing here keeps a "current company".

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed body or failed field validation
  - 401: Missing or invalid token
  - 404: Resource not found (including another organization's records)
  - 409: Invalid transition, concurrent modification, duplicate key
  - 422: Business rule refused (insufficient balance, required line,
         blocking validation errors; codes listed)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/leave"
	"github.com/warp/payroll-engine/payrun"
	"github.com/warp/payroll-engine/payslip"
	"github.com/warp/payroll-engine/roster"
	"github.com/warp/payroll-engine/store/sqlite"
	"github.com/warp/payroll-engine/termination"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Options configures the domain services behind the handler.
type Options struct {
	Currency            generic.Currency
	Tax                 payslip.TaxRules
	Severance           termination.SeverancePolicy
	Definitions         payslip.Definitions
	StandardDayHours    decimal.Decimal
	MaxHoursPerLine     decimal.Decimal
	HighLeavePayoutDays decimal.Decimal
	TaxYearStartMonth   time.Month
	PayrunWorkers       int
	Clock               generic.Clock
	Logger              *slog.Logger
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store        *sqlite.Store
	Payruns      *payrun.Engine
	Ledger       *leave.Ledger
	Requests     *leave.RequestService
	Terminations *termination.Service
	Calendar     *roster.Calendar
	Currency     generic.Currency
	Clock        generic.Clock
	Logger       *slog.Logger

	validate *validator.Validate

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires every domain service onto the store.
func NewHandler(store *sqlite.Store, opts Options) *Handler {
	if opts.Clock == nil {
		opts.Clock = generic.SystemClock
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.StandardDayHours.IsZero() {
		opts.StandardDayHours = decimal.NewFromInt(8)
	}
	if opts.TaxYearStartMonth == 0 {
		opts.TaxYearStartMonth = time.March
	}
	if opts.Definitions.RequiredEarnings == nil && opts.Definitions.RequiredDeductions == nil {
		opts.Definitions = payslip.Definitions{
			RequiredEarnings:   []string{payslip.CodeBasic},
			RequiredDeductions: []string{payslip.CodePAYE, payslip.CodeUIF},
		}
	}

	calendar := roster.NewCalendar(store, store)

	ledger := leave.NewLedger(store, store, store, opts.Clock)
	ledger.Logger = opts.Logger
	requests := &leave.RequestService{
		Ledger:           ledger,
		Types:            store,
		Requests:         store,
		Calendar:         calendar,
		Events:           store,
		Clock:            opts.Clock,
		Logger:           opts.Logger,
		StandardDayHours: opts.StandardDayHours,
	}

	calc := payslip.Calculator{Tax: opts.Tax, Currency: opts.Currency, MaxHoursPerLine: opts.MaxHoursPerLine}
	source := &payrun.RosterSource{Profiles: store, Leave: requests, Definitions: opts.Definitions}
	engine := payrun.NewEngine(calc, source, store, store, opts.Clock)
	engine.Workers = opts.PayrunWorkers
	engine.TaxYearStartMonth = opts.TaxYearStartMonth
	engine.Logger = opts.Logger

	terminations := &termination.Service{
		Calculator: &termination.Calculator{
			Payslip:    calc,
			Leave:      ledger,
			LeaveTypes: store,
			Calendar:   calendar,
			Severance:  opts.Severance,
		},
		Profiles:            store,
		Store:               store,
		Payruns:             engine,
		Events:              store,
		Clock:               opts.Clock,
		Logger:              opts.Logger,
		HighLeavePayoutDays: opts.HighLeavePayoutDays,
	}
	// The final payrun picks up submitted settlements.
	source.Settlements = terminations

	return &Handler{
		Store:        store,
		Payruns:      engine,
		Ledger:       ledger,
		Requests:     requests,
		Terminations: terminations,
		Calendar:     calendar,
		Currency:     opts.Currency,
		Clock:        opts.Clock,
		Logger:       opts.Logger,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RefreshCalendar reloads holidays and employees for an organization.
func (h *Handler) RefreshCalendar(ctx context.Context, org generic.OrganizationID) error {
	return h.Calendar.Refresh(ctx, org)
}

func (h *Handler) today() generic.TimePoint {
	return generic.TimePointOf(h.Clock())
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns the organization's employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	profiles, err := h.Store.ListProfiles(r.Context(), actor.OrganizationID)
	if err != nil {
		writeDomainError(w, r, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, 0, len(profiles))
	for _, p := range profiles {
		dtos = append(dtos, toEmployeeDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns one pay profile.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	p, err := h.Store.GetProfile(r.Context(), actor.OrganizationID, generic.EntityID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, r, "Employee not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(p))
}

// SaveEmployee creates or replaces a pay profile.
func (h *Handler) SaveEmployee(w http.ResponseWriter, r *http.Request) {
	var req EmployeeRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor := actorFrom(r.Context())

	start, _ := generic.ParseTimePoint(req.StartDate)
	p := roster.Profile{
		Employee: generic.Employee{
			ID:             generic.EntityID(req.ID),
			OrganizationID: actor.OrganizationID,
			Name:           req.Name,
			StartDate:      start,
			PayPoint:       req.PayPoint,
		},
		MonthlySalary:     req.MonthlySalary,
		DailyRateOverride: req.DailyRateOverride,
		NoticeDays:        req.NoticeDays,
	}
	for _, a := range req.Allowances {
		p.Allowances = append(p.Allowances, payslip.EarningLine{Code: a.Code, Name: a.Name, Amount: a.Amount, Taxable: a.Taxable})
	}
	for _, d := range req.Deductions {
		p.Deductions = append(p.Deductions, payslip.DeductionLine{Code: d.Code, Name: d.Name, Amount: d.Amount, Required: d.Required})
	}
	for _, d := range req.Debts {
		p.Debts = append(p.Debts, roster.Debt{Code: d.Code, Name: d.Name, Outstanding: d.Outstanding, Required: d.Required})
	}

	// A departed employee keeps their leaving date.
	if existing, err := h.Store.GetProfile(r.Context(), actor.OrganizationID, p.Employee.ID); err == nil {
		p.LeftAt = existing.LeftAt
	}
	if err := p.Validate(); err != nil {
		writeDomainError(w, r, "Invalid employee", err)
		return
	}
	if err := h.Store.SaveProfile(r.Context(), p); err != nil {
		writeDomainError(w, r, "Failed to save employee", err)
		return
	}
	if err := h.RefreshCalendar(r.Context(), actor.OrganizationID); err != nil {
		loggerFrom(r.Context()).Error("refresh calendar", "error", err)
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(p))
}

// employee loads a profile of the acting organization or writes 404.
func (h *Handler) employee(w http.ResponseWriter, r *http.Request, id string) (roster.Profile, bool) {
	actor := actorFrom(r.Context())
	p, err := h.Store.GetProfile(r.Context(), actor.OrganizationID, generic.EntityID(id))
	if err != nil {
		writeDomainError(w, r, "Employee not found", err)
		return roster.Profile{}, false
	}
	return p, true
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

// ListHolidays returns the organization's and global holidays.
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	holidays, err := h.Store.ListHolidays(r.Context(), actor.OrganizationID)
	if err != nil {
		writeDomainError(w, r, "Failed to list holidays", err)
		return
	}
	dtos := make([]HolidayDTO, 0, len(holidays))
	for _, hd := range holidays {
		dtos = append(dtos, toHolidayDTO(hd))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateHoliday adds a holiday and refreshes the working-day calendar.
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req HolidayRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor := actorFrom(r.Context())

	date, _ := generic.ParseTimePoint(req.Date)
	hd := generic.Holiday{Date: date, Name: req.Name, Recurring: req.Recurring}
	if !req.Global {
		hd.OrganizationID = actor.OrganizationID
	}
	if err := h.Store.SaveHoliday(r.Context(), hd); err != nil {
		writeDomainError(w, r, "Failed to save holiday", err)
		return
	}
	if err := h.RefreshCalendar(r.Context(), actor.OrganizationID); err != nil {
		loggerFrom(r.Context()).Error("refresh calendar", "error", err)
	}
	writeJSON(w, http.StatusCreated, toHolidayDTO(hd))
}

// =============================================================================
// AUDIT TRAIL
// =============================================================================

// ListEvents returns audit events, optionally filtered by ?subject= and
// repeated ?kind= parameters.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	filter := generic.EventFilter{
		OrganizationID: actor.OrganizationID,
		Subject:        r.URL.Query().Get("subject"),
	}
	for _, k := range r.URL.Query()["kind"] {
		filter.Kinds = append(filter.Kinds, generic.EventKind(k))
	}

	events, err := h.Store.Query(r.Context(), filter)
	if err != nil {
		writeDomainError(w, r, "Failed to list events", err)
		return
	}
	dtos := make([]EventDTO, 0, len(events))
	for _, ev := range events {
		dtos = append(dtos, toEventDTO(ev))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads a JSON body into dst and runs struct validation. It writes
// the 400 response itself and reports whether the handler may continue.
// An empty body decodes as the zero value.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
			}
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Details: fields})
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return false
	}
	return true
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

// writeDomainError maps the engine's error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, r *http.Request, message string, err error) {
	var (
		vf *generic.ValidationFailedError
		lm *generic.LineModificationError
		ib *generic.InsufficientBalanceError
		tr *generic.TransitionError
	)
	switch {
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.As(err, &tr):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Codes: []string{"INVALID_TRANSITION"}, Details: tr})
	case errors.Is(err, generic.ErrConcurrentModification):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "record was modified concurrently, retry", Codes: []string{"CONCURRENT_MODIFICATION"}})
	case errors.Is(err, generic.ErrDuplicateIdempotencyKey):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Codes: []string{"DUPLICATE_IDEMPOTENCY_KEY"}})
	case errors.As(err, &vf):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Codes: vf.Codes, Details: vf.Messages})
	case errors.As(err, &lm):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Codes: []string{"INVALID_LINE_MODIFICATION"}, Details: lm})
	case errors.As(err, &ib):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: err.Error(),
			Codes: []string{"INSUFFICIENT_BALANCE"},
			Details: map[string]string{
				"available": ib.Available.Value.String(),
				"requested": ib.Requested.Value.String(),
				"shortfall": ib.Shortfall.Value.String(),
			},
		})
	case errors.Is(err, generic.ErrInvalidPeriod):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		loggerFrom(r.Context()).Error(message, "error", err)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
