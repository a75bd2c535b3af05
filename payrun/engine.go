package payrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payslip"
	"github.com/warp/payroll-engine/validation"
)

// Store persists payruns. SavePayrun writes run only if the stored version
// still equals run.Version (zero = create) and returns the saved copy with
// the version bumped. A stale write fails with
// generic.ErrConcurrentModification.
type Store interface {
	GetPayrun(ctx context.Context, org generic.OrganizationID, id string) (Payrun, error)
	ListPayruns(ctx context.Context, org generic.OrganizationID) ([]Payrun, error)
	SavePayrun(ctx context.Context, run Payrun) (Payrun, error)
}

// Engine owns every payrun transition.
type Engine struct {
	Calculator payslip.Calculator
	Source     Source
	Store      Store
	Events     generic.EventSink
	Clock      generic.Clock
	Logger     *slog.Logger

	// Workers bounds the calculation fan-out. Zero = GOMAXPROCS.
	Workers           int
	TaxYearStartMonth time.Month

	locks generic.KeyedMutex
}

func NewEngine(calc payslip.Calculator, source Source, store Store, events generic.EventSink, clock generic.Clock) *Engine {
	if events == nil {
		events = generic.NopSink{}
	}
	if clock == nil {
		clock = generic.SystemClock
	}
	return &Engine{
		Calculator:        calc,
		Source:            source,
		Store:             store,
		Events:            events,
		Clock:             clock,
		Logger:            slog.Default(),
		TaxYearStartMonth: time.March,
	}
}

// =============================================================================
// CREATE
// =============================================================================

type CreateInput struct {
	Period    generic.Period
	PayDate   generic.TimePoint // defaults to the period end
	Frequency Frequency
	PayPoints []string
}

func (e *Engine) Create(ctx context.Context, actor generic.Actor, in CreateInput) (Payrun, error) {
	var findings []validation.Finding
	periodOK := !in.Period.Start.IsZero() && !in.Period.End.IsZero() && in.Period.Validate() == nil
	if !periodOK {
		findings = append(findings, validation.Error("PERIOD_INVALID", "period start and end are required and end cannot precede start"))
	}
	if in.Frequency.PeriodsPerYear() == 0 {
		findings = append(findings, validation.Error("FREQUENCY_INVALID", fmt.Sprintf("unknown frequency %s", in.Frequency)))
	}
	if in.PayDate.IsZero() {
		in.PayDate = in.Period.End
	}
	if periodOK && in.PayDate.Before(in.Period.Start) {
		findings = append(findings, validation.Error("PAY_DATE_INVALID", "pay date cannot precede the period start"))
	}
	if err := validation.FromFindings(findings).Err(); err != nil {
		return Payrun{}, err
	}

	run := Payrun{
		ID:             uuid.NewString(),
		OrganizationID: actor.OrganizationID,
		Period:         in.Period,
		PayDate:        in.PayDate,
		Frequency:      in.Frequency,
		PayPoints:      append([]string(nil), in.PayPoints...),
		Status:         StatusDraft,
		CreatedBy:      actor.UserID,
		CreatedAt:      e.Clock(),
	}
	run.recomputeTotals()

	saved, err := e.Store.SavePayrun(ctx, run)
	if err != nil {
		return Payrun{}, fmt.Errorf("save payrun: %w", err)
	}
	e.emit(ctx, actor, generic.EventPayrunCreated, saved, "", StatusDraft)
	return saved, nil
}

func (e *Engine) Get(ctx context.Context, org generic.OrganizationID, id string) (Payrun, error) {
	return e.Store.GetPayrun(ctx, org, id)
}

func (e *Engine) List(ctx context.Context, org generic.OrganizationID) ([]Payrun, error) {
	return e.Store.ListPayruns(ctx, org)
}

// =============================================================================
// RUN
// =============================================================================

// Run moves a draft run through calculating to ready. The first run
// snapshots inputs from the Source; later runs reuse the stored inputs,
// which carry any edits, and recompute only dirty or uncomputed entries.
// Run blocks until the calculation pass completes.
func (e *Engine) Run(ctx context.Context, actor generic.Actor, id string) (Payrun, error) {
	run, pending, err := e.startRun(ctx, actor, id)
	if err != nil {
		return Payrun{}, err
	}
	results, calcErr := e.calculate(ctx, pending)
	return e.completeRun(ctx, actor, run, results, calcErr)
}

func (e *Engine) startRun(ctx context.Context, actor generic.Actor, id string) (Payrun, []Entry, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	run, err := e.Store.GetPayrun(ctx, actor.OrganizationID, id)
	if err != nil {
		return Payrun{}, nil, err
	}
	if run.Status != StatusDraft {
		return Payrun{}, nil, transitionError(run, "run", "")
	}

	if len(run.Entries) == 0 {
		entries, err := e.snapshot(ctx, run)
		if err != nil {
			return Payrun{}, nil, err
		}
		run.Entries = entries
	}

	var pending []Entry
	for _, en := range run.Entries {
		if !en.computed() {
			pending = append(pending, en)
		}
	}

	run.Status = StatusCalculating
	run.Generation++
	saved, err := e.Store.SavePayrun(ctx, run)
	if err != nil {
		return Payrun{}, nil, e.saveError(ctx, run, "run", err)
	}
	e.emit(ctx, actor, generic.EventPayrunCalculating, saved, StatusDraft.String(), StatusCalculating)
	return saved, pending, nil
}

func (e *Engine) snapshot(ctx context.Context, run Payrun) ([]Entry, error) {
	inputs, err := e.Source.Inputs(ctx, run.OrganizationID, run.Period, run.Frequency, run.PayPoints)
	if err != nil {
		return nil, fmt.Errorf("snapshot inputs: %w", err)
	}
	runs, err := e.Store.ListPayruns(ctx, run.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("list payruns for ytd: %w", err)
	}

	entries := make([]Entry, 0, len(inputs))
	for _, in := range inputs {
		in.PriorYTD = e.priorYTD(runs, in.Employee.ID, run.Period)
		entries = append(entries, Entry{EmployeeID: in.Employee.ID, Input: in, Dirty: true})
	}
	sortEntries(entries)
	return entries, nil
}

// priorYTD sums finalized payslips earlier in the same tax year.
func (e *Engine) priorYTD(runs []Payrun, employeeID generic.EntityID, period generic.Period) payslip.YTD {
	taxYear := generic.TaxYearFor(period.Start, e.TaxYearStartMonth)
	ytd := payslip.YTD{}
	for _, r := range runs {
		if r.Status != StatusFinalized || !r.Period.End.Before(period.Start) || !taxYear.Contains(r.Period.Start) {
			continue
		}
		en, ok := r.Entry(employeeID)
		if !ok || en.Payslip == nil {
			continue
		}
		ytd.Gross = ytd.Gross.Add(en.Payslip.Gross)
		ytd.Tax = ytd.Tax.Add(en.Payslip.Tax())
		ytd.Net = ytd.Net.Add(en.Payslip.Net)
	}
	return ytd
}

// calculate fans the pending entries out over a bounded worker pool.
// Each worker writes only its own slot of the result slice.
func (e *Engine) calculate(ctx context.Context, pending []Entry) ([]payslip.Payslip, error) {
	workers := e.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]payslip.Payslip, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range pending {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.Calculator.Calculate(pending[i].Input)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) completeRun(ctx context.Context, actor generic.Actor, started Payrun, results []payslip.Payslip, calcErr error) (Payrun, error) {
	unlock := e.locks.Lock(started.ID)
	defer unlock()

	// The caller's context may be cancelled; the state change below must
	// still be recorded.
	storeCtx := context.WithoutCancel(ctx)

	run, err := e.Store.GetPayrun(storeCtx, started.OrganizationID, started.ID)
	if err != nil {
		return Payrun{}, err
	}
	if run.Status != StatusCalculating || run.Generation != started.Generation {
		e.logger().Info("discarding stale payrun results",
			"payrun_id", run.ID,
			"generation", started.Generation,
			"current_generation", run.Generation,
			"status", run.Status.String())
		return run, transitionError(run, "complete", "calculation was cancelled; results discarded")
	}

	if calcErr != nil {
		run.Status = StatusDraft
		saved, err := e.Store.SavePayrun(storeCtx, run)
		if err != nil {
			return Payrun{}, fmt.Errorf("revert payrun %s: %w", run.ID, err)
		}
		e.emit(storeCtx, actor, generic.EventPayrunReverted, saved, StatusCalculating.String(), StatusDraft)
		return saved, fmt.Errorf("calculate payrun %s: %w", run.ID, calcErr)
	}

	for _, p := range results {
		p := p
		if i := run.entryIndex(p.EmployeeID); i >= 0 {
			run.Entries[i].Payslip = &p
			run.Entries[i].Dirty = false
		}
	}
	run.recomputeTotals()
	run.Status = StatusReady

	saved, err := e.Store.SavePayrun(storeCtx, run)
	if err != nil {
		return Payrun{}, e.saveError(storeCtx, run, "complete", err)
	}
	e.emit(storeCtx, actor, generic.EventPayrunReady, saved, StatusCalculating.String(), StatusReady)
	return saved, nil
}

// =============================================================================
// EDIT
// =============================================================================

// EditPayslip applies line edits to one entry and recomputes it and the
// run totals. A ready run drops back to draft.
func (e *Engine) EditPayslip(ctx context.Context, actor generic.Actor, id string, employeeID generic.EntityID, edits ...payslip.LineEdit) (Payrun, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	run, err := e.Store.GetPayrun(ctx, actor.OrganizationID, id)
	if err != nil {
		return Payrun{}, err
	}
	switch run.Status {
	case StatusDraft, StatusReady:
	case StatusCalculating, StatusFinalized:
		return Payrun{}, transitionError(run, "edit payslip in", "")
	default:
		return Payrun{}, transitionError(run, "edit payslip in", "unknown status")
	}

	i := run.entryIndex(employeeID)
	if i < 0 {
		return Payrun{}, fmt.Errorf("payslip for %s in payrun %s: %w", employeeID, id, generic.ErrNotFound)
	}
	in, err := e.Calculator.ApplyEdits(run.Entries[i].Input, edits...)
	if err != nil {
		return Payrun{}, err
	}
	p := e.Calculator.Calculate(in)
	run.Entries[i] = Entry{EmployeeID: employeeID, Input: in, Payslip: &p}
	run.recomputeTotals()

	from := run.Status
	run.Status = StatusDraft

	saved, err := e.Store.SavePayrun(ctx, run)
	if err != nil {
		return Payrun{}, e.saveError(ctx, run, "edit payslip in", err)
	}

	ev := generic.NewEvent(actor, generic.EventPayslipEdited, saved.ID, "", "", e.today())
	ev.Payload = map[string]any{
		"employee_id": string(employeeID),
		"edits":       len(edits),
		"net":         p.Net.String(),
		"has_errors":  p.HasErrors,
	}
	e.emitEvent(ctx, ev)
	if from == StatusReady {
		e.emit(ctx, actor, generic.EventPayrunReverted, saved, StatusReady.String(), StatusDraft)
	}
	return saved, nil
}

// =============================================================================
// FINALIZE / CANCEL
// =============================================================================

var finalizeRules = []validation.Rule[Payrun]{
	func(r Payrun) []validation.Finding {
		if len(r.Entries) == 0 {
			return []validation.Finding{validation.Error("PAYRUN_EMPTY", "payrun has no employees")}
		}
		return nil
	},
	func(r Payrun) []validation.Finding {
		var out []validation.Finding
		for _, en := range r.Entries {
			switch {
			case !en.computed():
				out = append(out, validation.Error("PAYSLIP_NOT_CALCULATED:"+string(en.EmployeeID),
					fmt.Sprintf("payslip for %s has not been calculated", en.EmployeeID)))
			case en.Payslip.HasErrors:
				out = append(out, validation.Error("PAYSLIP_HAS_ERRORS:"+string(en.EmployeeID),
					fmt.Sprintf("payslip for %s has %d error(s)", en.EmployeeID, len(en.Payslip.Errors))))
			}
		}
		return out
	},
}

// Finalize freezes a ready run. It fails with ValidationFailed while any
// payslip has errors, leaving the run ready. Of two concurrent calls
// exactly one succeeds; the other observes InvalidTransition.
func (e *Engine) Finalize(ctx context.Context, actor generic.Actor, id string) (Payrun, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	run, err := e.Store.GetPayrun(ctx, actor.OrganizationID, id)
	if err != nil {
		return Payrun{}, err
	}
	if run.Status != StatusReady {
		return Payrun{}, transitionError(run, "finalize", "")
	}
	if err := validation.Validate(run, finalizeRules...).Err(); err != nil {
		return Payrun{}, err
	}

	now := e.Clock()
	run.Status = StatusFinalized
	run.FinalizedBy = actor.UserID
	run.FinalizedAt = &now

	saved, err := e.Store.SavePayrun(ctx, run)
	if err != nil {
		return Payrun{}, e.saveError(ctx, run, "finalize", err)
	}
	e.emit(ctx, actor, generic.EventPayrunFinalized, saved, StatusReady.String(), StatusFinalized)
	return saved, nil
}

// Cancel returns a calculating or ready run to draft. Results of a pass
// still in flight are discarded when it completes.
func (e *Engine) Cancel(ctx context.Context, actor generic.Actor, id string) (Payrun, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	run, err := e.Store.GetPayrun(ctx, actor.OrganizationID, id)
	if err != nil {
		return Payrun{}, err
	}
	switch run.Status {
	case StatusCalculating, StatusReady:
	case StatusDraft, StatusFinalized:
		return Payrun{}, transitionError(run, "cancel", "")
	default:
		return Payrun{}, transitionError(run, "cancel", "unknown status")
	}

	from := run.Status
	run.Status = StatusDraft
	run.Generation++
	saved, err := e.Store.SavePayrun(ctx, run)
	if err != nil {
		return Payrun{}, e.saveError(ctx, run, "cancel", err)
	}
	e.emit(ctx, actor, generic.EventPayrunCancelled, saved, from.String(), StatusDraft)
	return saved, nil
}

// IsFinalized reports whether the run is finalized and carries a payslip
// for the employee.
func (e *Engine) IsFinalized(ctx context.Context, org generic.OrganizationID, id string, employeeID generic.EntityID) (bool, error) {
	run, err := e.Store.GetPayrun(ctx, org, id)
	if err != nil {
		return false, err
	}
	if run.Status != StatusFinalized {
		return false, nil
	}
	en, ok := run.Entry(employeeID)
	return ok && en.Payslip != nil, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func transitionError(run Payrun, action, reason string) error {
	return &generic.TransitionError{
		Aggregate: "payrun",
		ID:        run.ID,
		From:      run.Status.String(),
		Action:    action,
		Reason:    reason,
	}
}

// saveError turns a lost compare-and-set into the transition error the
// winner's new state implies.
func (e *Engine) saveError(ctx context.Context, run Payrun, action string, err error) error {
	if !errors.Is(err, generic.ErrConcurrentModification) {
		return fmt.Errorf("save payrun %s: %w", run.ID, err)
	}
	current, getErr := e.Store.GetPayrun(ctx, run.OrganizationID, run.ID)
	if getErr != nil {
		return fmt.Errorf("save payrun %s: %w", run.ID, err)
	}
	return transitionError(current, action, "payrun was modified concurrently")
}

func (e *Engine) emit(ctx context.Context, actor generic.Actor, kind generic.EventKind, run Payrun, from string, to Status) {
	ev := generic.NewEvent(actor, kind, run.ID, from, to.String(), e.today())
	ev.Payload = map[string]any{
		"version":               run.Version,
		"employee_count":        run.Totals.EmployeeCount,
		"employees_with_errors": run.Totals.EmployeesWithErrors,
		"net":                   run.Totals.Net.String(),
	}
	e.emitEvent(ctx, ev)
}

func (e *Engine) emitEvent(ctx context.Context, ev generic.Event) {
	if err := e.Events.Emit(ctx, ev); err != nil {
		e.logger().Warn("payrun event emit failed", "kind", ev.Kind, "subject", ev.Subject, "error", err)
	}
}

func (e *Engine) today() generic.TimePoint {
	return generic.TimePointOf(e.Clock())
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}
