package termination

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payrun"
	"github.com/warp/payroll-engine/payslip"
	"github.com/warp/payroll-engine/roster"
)

// Store persists terminations with the same compare-and-set contract as
// payrun.Store: SaveTermination refuses a stale Version with
// generic.ErrConcurrentModification and returns the saved copy.
type Store interface {
	GetTermination(ctx context.Context, org generic.OrganizationID, id string) (Termination, error)
	ListTerminations(ctx context.Context, org generic.OrganizationID) ([]Termination, error)
	SaveTermination(ctx context.Context, t Termination) (Termination, error)
}

// PayrunChecker answers whether a payrun has finalized an employee's
// payslip. *payrun.Engine satisfies it.
type PayrunChecker interface {
	IsFinalized(ctx context.Context, org generic.OrganizationID, payrunID string, employeeID generic.EntityID) (bool, error)
}

type Service struct {
	Calculator *Calculator
	Profiles   roster.Store
	Store      Store
	Payruns    PayrunChecker
	Events     generic.EventSink
	Clock      generic.Clock
	Logger     *slog.Logger

	HighLeavePayoutDays decimal.Decimal

	locks generic.KeyedMutex
}

// CreateInput is what HR submits. NoticeDays defaults to the profile's
// notice period.
type CreateInput struct {
	EmployeeID      generic.EntityID
	TerminationDate generic.TimePoint
	LastWorkingDay  generic.TimePoint
	Reason          Reason
	PaidInLieu      bool
	NoticeDays      *int
	Notes           string
	PaidThrough     *generic.TimePoint
}

// =============================================================================
// CREATE / PREVIEW
// =============================================================================

// Create stores a draft. Rule errors do not block creation; they block
// Submit.
func (s *Service) Create(ctx context.Context, actor generic.Actor, in CreateInput) (Termination, error) {
	t, _, err := s.draft(ctx, actor, in)
	if err != nil {
		return Termination{}, err
	}

	open, err := s.Store.ListTerminations(ctx, actor.OrganizationID)
	if err != nil {
		return Termination{}, fmt.Errorf("list terminations: %w", err)
	}
	for _, o := range open {
		if o.EmployeeID == in.EmployeeID && o.Status != StatusCompleted {
			return Termination{}, generic.NewValidationFailed("TERMINATION_EXISTS",
				fmt.Sprintf("employee %s already has termination %s in status %s", in.EmployeeID, o.ID, o.Status))
		}
	}

	saved, err := s.Store.SaveTermination(ctx, t)
	if err != nil {
		return Termination{}, fmt.Errorf("save termination: %w", err)
	}
	s.emit(ctx, actor, generic.EventTerminationCreated, saved, "")
	return saved, nil
}

// Preview computes the settlement for an unsaved termination.
func (s *Service) Preview(ctx context.Context, actor generic.Actor, in CreateInput) (Preview, error) {
	t, profile, err := s.draft(ctx, actor, in)
	if err != nil {
		return Preview{}, err
	}
	return s.evaluate(ctx, t, profile)
}

// Evaluate computes the current settlement of a stored termination.
// A completed termination returns its frozen components.
func (s *Service) Evaluate(ctx context.Context, org generic.OrganizationID, id string) (Preview, error) {
	t, err := s.Store.GetTermination(ctx, org, id)
	if err != nil {
		return Preview{}, err
	}
	profile, err := s.Profiles.GetProfile(ctx, org, t.EmployeeID)
	if err != nil {
		return Preview{}, err
	}
	if t.Status == StatusCompleted && t.Components != nil {
		return Preview{
			Termination: t,
			Components:  *t.Components,
			Validation:  Validate(t, *t.Components, profile, s.HighLeavePayoutDays),
		}, nil
	}
	return s.evaluate(ctx, t, profile)
}

func (s *Service) Get(ctx context.Context, org generic.OrganizationID, id string) (Termination, error) {
	return s.Store.GetTermination(ctx, org, id)
}

func (s *Service) draft(ctx context.Context, actor generic.Actor, in CreateInput) (Termination, roster.Profile, error) {
	profile, err := s.Profiles.GetProfile(ctx, actor.OrganizationID, in.EmployeeID)
	if err != nil {
		return Termination{}, roster.Profile{}, err
	}
	notice := profile.NoticeDays
	if in.NoticeDays != nil {
		notice = *in.NoticeDays
	}
	return Termination{
		ID:              uuid.NewString(),
		OrganizationID:  actor.OrganizationID,
		EmployeeID:      in.EmployeeID,
		TerminationDate: in.TerminationDate,
		LastWorkingDay:  in.LastWorkingDay,
		Reason:          in.Reason,
		Status:          StatusDraft,
		NoticeDays:      notice,
		PaidInLieu:      in.PaidInLieu,
		Notes:           in.Notes,
		PaidThrough:     in.PaidThrough,
		CreatedBy:       actor.UserID,
		CreatedAt:       s.Clock(),
	}, profile, nil
}

func (s *Service) evaluate(ctx context.Context, t Termination, profile roster.Profile) (Preview, error) {
	comp, err := s.Calculator.Compute(ctx, t, profile)
	if err != nil {
		return Preview{}, err
	}
	return Preview{
		Termination: t,
		Components:  comp,
		Validation:  Validate(t, comp, profile, s.HighLeavePayoutDays),
	}, nil
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// Submit moves a draft to pending_payroll when the rules pass and freezes
// the computed components. Warnings come back in the Preview; errors
// return ValidationFailed together with the Preview.
func (s *Service) Submit(ctx context.Context, actor generic.Actor, id string) (Termination, Preview, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	t, profile, err := s.load(ctx, actor, id)
	if err != nil {
		return Termination{}, Preview{}, err
	}
	if t.Status != StatusDraft {
		return Termination{}, Preview{}, transitionError(t, "submit", "")
	}
	pv, err := s.evaluate(ctx, t, profile)
	if err != nil {
		return Termination{}, Preview{}, err
	}
	if err := pv.Validation.Err(); err != nil {
		return t, pv, err
	}

	now := s.Clock()
	t.Status = StatusPendingPayroll
	t.Components = &pv.Components
	t.SubmittedBy = actor.UserID
	t.SubmittedAt = &now
	saved, err := s.save(ctx, t, "submit")
	if err != nil {
		return Termination{}, Preview{}, err
	}

	// Later payruns stop paying a regular salary after the last working day.
	lwd := t.LastWorkingDay
	profile.LeftAt = &lwd
	if err := s.Profiles.SaveProfile(ctx, profile); err != nil {
		s.logger().Warn("termination: profile update failed", "employee_id", t.EmployeeID, "error", err)
	}

	s.emit(ctx, actor, generic.EventTerminationSubmitted, saved, StatusDraft.String())
	pv.Termination = saved
	return saved, pv, nil
}

// Complete closes a pending termination once payrunID has finalized the
// employee's final payslip.
func (s *Service) Complete(ctx context.Context, actor generic.Actor, id, payrunID string) (Termination, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	t, _, err := s.load(ctx, actor, id)
	if err != nil {
		return Termination{}, err
	}
	if t.Status != StatusPendingPayroll {
		return Termination{}, transitionError(t, "complete", "")
	}
	ok, err := s.Payruns.IsFinalized(ctx, actor.OrganizationID, payrunID, t.EmployeeID)
	if err != nil && !generic.IsNotFound(err) {
		return Termination{}, fmt.Errorf("check payrun %s: %w", payrunID, err)
	}
	if !ok {
		return Termination{}, generic.NewValidationFailed("FINAL_PAYRUN_NOT_FINALIZED",
			fmt.Sprintf("payrun %s has not finalized a payslip for %s", payrunID, t.EmployeeID))
	}

	now := s.Clock()
	t.Status = StatusCompleted
	t.FinalPayrunID = payrunID
	t.CompletedBy = actor.UserID
	t.CompletedAt = &now
	saved, err := s.save(ctx, t, "complete")
	if err != nil {
		return Termination{}, err
	}
	s.emit(ctx, actor, generic.EventTerminationCompleted, saved, StatusPendingPayroll.String())
	return saved, nil
}

// EditDeduction changes one settlement deduction. Required and statutory
// lines cannot be skipped or removed. A pending termination has its
// frozen components recomputed.
func (s *Service) EditDeduction(ctx context.Context, actor generic.Actor, id string, edit payslip.LineEdit) (Termination, Preview, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	t, profile, err := s.load(ctx, actor, id)
	if err != nil {
		return Termination{}, Preview{}, err
	}
	switch t.Status {
	case StatusDraft, StatusPendingPayroll:
	case StatusCompleted:
		return Termination{}, Preview{}, transitionError(t, "edit", "completed terminations are immutable")
	default:
		return Termination{}, Preview{}, transitionError(t, "edit", "unknown status")
	}

	edit.Line = payslip.LineDeduction
	t.Edits = append(t.Edits, edit)
	pv, err := s.evaluate(ctx, t, profile)
	if err != nil {
		return Termination{}, Preview{}, err
	}
	if t.Status == StatusPendingPayroll {
		t.Components = &pv.Components
	}

	saved, err := s.save(ctx, t, "edit")
	if err != nil {
		return Termination{}, Preview{}, err
	}
	ev := generic.NewEvent(actor, generic.EventTerminationEdited, saved.ID, saved.Status.String(), saved.Status.String(), generic.TimePointOf(s.Clock()))
	ev.Payload = map[string]any{"code": edit.Code, "action": edit.Action.String(), "net": pv.Components.Summary.Net.String()}
	s.emitEvent(ctx, ev)
	pv.Termination = saved
	return saved, pv, nil
}

// =============================================================================
// PAYRUN SETTLEMENT SOURCE
// =============================================================================

// Settlement implements payrun.Settlements: a pending termination whose
// last working day falls inside period contributes its settlement lines.
// Statutory lines are left to the payrun's own calculation.
func (s *Service) Settlement(ctx context.Context, org generic.OrganizationID, employeeID generic.EntityID, period generic.Period) (payrun.Settlement, bool, error) {
	all, err := s.Store.ListTerminations(ctx, org)
	if err != nil {
		return payrun.Settlement{}, false, err
	}
	for _, t := range all {
		if t.EmployeeID != employeeID || t.Status != StatusPendingPayroll || t.Components == nil || !period.Contains(t.LastWorkingDay) {
			continue
		}
		st := payrun.Settlement{Earnings: append([]payslip.EarningLine(nil), t.Components.Earnings...)}
		for _, d := range t.Components.Deductions {
			if !d.Statutory {
				st.Deductions = append(st.Deductions, d)
			}
		}
		return st, true, nil
	}
	return payrun.Settlement{}, false, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) load(ctx context.Context, actor generic.Actor, id string) (Termination, roster.Profile, error) {
	t, err := s.Store.GetTermination(ctx, actor.OrganizationID, id)
	if err != nil {
		return Termination{}, roster.Profile{}, err
	}
	profile, err := s.Profiles.GetProfile(ctx, actor.OrganizationID, t.EmployeeID)
	if err != nil {
		return Termination{}, roster.Profile{}, err
	}
	return t, profile, nil
}

func (s *Service) save(ctx context.Context, t Termination, action string) (Termination, error) {
	saved, err := s.Store.SaveTermination(ctx, t)
	if errors.Is(err, generic.ErrConcurrentModification) {
		if current, getErr := s.Store.GetTermination(ctx, t.OrganizationID, t.ID); getErr == nil {
			return Termination{}, transitionError(current, action, "termination was modified concurrently")
		}
	}
	if err != nil {
		return Termination{}, fmt.Errorf("save termination %s: %w", t.ID, err)
	}
	return saved, nil
}

func transitionError(t Termination, action, reason string) error {
	return &generic.TransitionError{
		Aggregate: "termination",
		ID:        t.ID,
		From:      t.Status.String(),
		Action:    action,
		Reason:    reason,
	}
}

func (s *Service) emit(ctx context.Context, actor generic.Actor, kind generic.EventKind, t Termination, from string) {
	ev := generic.NewEvent(actor, kind, t.ID, from, t.Status.String(), generic.TimePointOf(s.Clock()))
	ev.Payload = map[string]any{
		"employee_id": string(t.EmployeeID),
		"reason":      t.Reason.String(),
	}
	if t.Components != nil {
		ev.Payload["net"] = t.Components.Summary.Net.String()
	}
	s.emitEvent(ctx, ev)
}

func (s *Service) emitEvent(ctx context.Context, ev generic.Event) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Emit(ctx, ev); err != nil {
		s.logger().Warn("termination event emit failed", "kind", ev.Kind, "subject", ev.Subject, "error", err)
	}
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
