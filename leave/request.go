package leave

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// REQUEST SERVICE - Handles request lifecycle on top of the ledger
// =============================================================================

// RequestStore persists leave requests. GetRequest returns
// generic.ErrNotFound for unknown IDs.
type RequestStore interface {
	GetRequest(ctx context.Context, id string) (Request, error)
	SaveRequest(ctx context.Context, r Request) error
	ListRequests(ctx context.Context, employeeID generic.EntityID) ([]Request, error)
}

type RequestService struct {
	Ledger           *Ledger
	Types            TypeStore
	Requests         RequestStore
	Calendar         generic.Calendar
	Events           generic.EventSink
	Clock            generic.Clock
	Logger           *slog.Logger
	StandardDayHours decimal.Decimal

	locks generic.KeyedMutex
}

// CreateRequestInput is what an employee submits.
type CreateRequestInput struct {
	EmployeeID    generic.EntityID
	LeaveTypeID   generic.PolicyID
	Start         generic.TimePoint
	End           generic.TimePoint
	IsPartialDay  bool
	PartialHours  *decimal.Decimal
	Reason        string
	AttachmentRef string
}

// Create validates the request, counts its days and reserves them.
// The request is stored as pending only once the reservation succeeds; a
// failed save releases the reservation again.
func (s *RequestService) Create(ctx context.Context, actor generic.Actor, in CreateRequestInput) (Request, error) {
	lt, err := s.Types.GetLeaveType(ctx, actor.OrganizationID, in.LeaveTypeID)
	if err != nil {
		return Request{}, fmt.Errorf("leave type %s: %w", in.LeaveTypeID, err)
	}
	if !lt.IsActive {
		return Request{}, generic.NewValidationFailed("LEAVE_TYPE_INACTIVE", fmt.Sprintf("leave type %s is not active", lt.Name))
	}
	if lt.RequiresAttachment && in.AttachmentRef == "" {
		return Request{}, generic.NewValidationFailed("ATTACHMENT_REQUIRED", fmt.Sprintf("leave type %s requires an attachment", lt.Name))
	}

	var partial *decimal.Decimal
	if in.IsPartialDay {
		if in.PartialHours == nil {
			return Request{}, generic.NewValidationFailed("PARTIAL_HOURS_REQUIRED", "a partial-day request needs hours")
		}
		partial = in.PartialHours
	}
	count, err := CountDays(s.Calendar, in.EmployeeID, in.Start, in.End, partial, s.StandardDayHours)
	if err != nil {
		return Request{}, err
	}
	if !count.IsPositive() {
		return Request{}, generic.NewValidationFailed("NO_WORKING_DAYS", "the requested range contains no working days")
	}

	now := s.now()
	req := Request{
		ID:             uuid.NewString(),
		OrganizationID: actor.OrganizationID,
		EmployeeID:     in.EmployeeID,
		LeaveTypeID:    lt.ID,
		Start:          in.Start,
		End:            in.End,
		IsPartialDay:   in.IsPartialDay,
		PartialHours:   partial,
		Days:           count,
		Status:         RequestPending,
		Reason:         in.Reason,
		AttachmentRef:  in.AttachmentRef,
		CreatedBy:      actor.UserID,
		CreatedAt:      now,
	}

	if _, err := s.Ledger.Reserve(ctx, actor, lt, req); err != nil {
		return Request{}, err
	}
	if err := s.Requests.SaveRequest(ctx, req); err != nil {
		if _, rerr := s.Ledger.Commit(ctx, actor, req, OutcomeCancelled); rerr != nil {
			s.logger().Error("leave reservation leaked",
				"request_id", req.ID,
				"employee_id", req.EmployeeID,
				"days", req.Days.String(),
				"error", rerr)
		}
		return Request{}, fmt.Errorf("save request: %w", err)
	}
	s.emit(ctx, actor, generic.EventLeaveRequested, req, "")
	return req, nil
}

// Approve moves a pending request to approved, consuming its days.
func (s *RequestService) Approve(ctx context.Context, actor generic.Actor, id string) (Request, error) {
	return s.decide(ctx, actor, id, "approve", func(req *Request, now time.Time) (Outcome, error) {
		if req.Status != RequestPending {
			return 0, s.transitionError(*req, "approve", "")
		}
		req.Status = RequestApproved
		req.DecidedBy = actor.UserID
		req.DecidedAt = &now
		return OutcomeApproved, nil
	})
}

// Reject moves a pending request to rejected, releasing its days.
func (s *RequestService) Reject(ctx context.Context, actor generic.Actor, id, reason string) (Request, error) {
	return s.decide(ctx, actor, id, "reject", func(req *Request, now time.Time) (Outcome, error) {
		if req.Status != RequestPending {
			return 0, s.transitionError(*req, "reject", "")
		}
		req.Status = RequestRejected
		req.DecidedBy = actor.UserID
		req.DecidedAt = &now
		req.DecisionReason = reason
		return OutcomeRejected, nil
	})
}

// Cancel withdraws a pending request, or an approved one whose leave has
// not started yet. Leave that has already started or passed is corrected
// with a balance adjustment instead.
func (s *RequestService) Cancel(ctx context.Context, actor generic.Actor, id, reason string) (Request, error) {
	return s.decide(ctx, actor, id, "cancel", func(req *Request, now time.Time) (Outcome, error) {
		switch req.Status {
		case RequestPending:
		case RequestApproved:
			if !generic.TimePointOf(now).Before(req.Start) {
				return 0, s.transitionError(*req, "cancel", "leave has already started; use a balance adjustment")
			}
		case RequestRejected, RequestCancelled:
			return 0, s.transitionError(*req, "cancel", "")
		default:
			return 0, s.transitionError(*req, "cancel", "unknown status")
		}
		wasApproved := req.Status == RequestApproved
		req.Status = RequestCancelled
		req.CancelledBy = actor.UserID
		req.CancelledAt = &now
		req.DecisionReason = reason
		if wasApproved {
			return reverseTaken, nil
		}
		return OutcomeCancelled, nil
	})
}

// reverseTaken tells decide to return taken days instead of resolving a
// reservation.
const reverseTaken Outcome = -1

// decide runs one status transition under the request's lock.
func (s *RequestService) decide(ctx context.Context, actor generic.Actor, id, action string, apply func(*Request, time.Time) (Outcome, error)) (Request, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	req, err := s.Requests.GetRequest(ctx, id)
	if err != nil {
		return Request{}, fmt.Errorf("leave request %s: %w", id, err)
	}
	if req.OrganizationID != actor.OrganizationID {
		return Request{}, fmt.Errorf("leave request %s: %w", id, generic.ErrNotFound)
	}

	from := req.Status
	outcome, err := apply(&req, s.now())
	if err != nil {
		return Request{}, err
	}

	if outcome == reverseTaken {
		_, err = s.Ledger.Reverse(ctx, actor, req)
	} else {
		_, err = s.Ledger.Commit(ctx, actor, req, outcome)
	}
	if err != nil {
		return Request{}, fmt.Errorf("%s leave request %s: %w", action, id, err)
	}

	if err := s.Requests.SaveRequest(ctx, req); err != nil {
		return Request{}, fmt.Errorf("save request: %w", err)
	}

	var kind generic.EventKind
	switch req.Status {
	case RequestApproved:
		kind = generic.EventLeaveApproved
	case RequestRejected:
		kind = generic.EventLeaveRejected
	case RequestCancelled:
		kind = generic.EventLeaveCancelled
	case RequestPending:
		kind = generic.EventLeaveRequested
	}
	s.emit(ctx, actor, kind, req, from.String())
	return req, nil
}

func (s *RequestService) transitionError(req Request, action, reason string) error {
	return &generic.TransitionError{
		Aggregate: "leave_request",
		ID:        req.ID,
		From:      req.Status.String(),
		Action:    action,
		Reason:    reason,
	}
}

func (s *RequestService) emit(ctx context.Context, actor generic.Actor, kind generic.EventKind, req Request, from string) {
	if s.Events == nil {
		return
	}
	ev := generic.NewEvent(actor, kind, req.ID, from, req.Status.String(), generic.TimePointOf(s.now()))
	ev.Payload = map[string]any{
		"employee_id":   string(req.EmployeeID),
		"leave_type_id": string(req.LeaveTypeID),
		"days":          req.Days.String(),
	}
	if err := s.Events.Emit(ctx, ev); err != nil {
		s.logger().Warn("leave request event emit failed", "kind", ev.Kind, "request_id", req.ID, "error", err)
	}
}

func (s *RequestService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *RequestService) now() time.Time {
	if s.Clock == nil {
		return generic.SystemClock()
	}
	return s.Clock()
}

// =============================================================================
// PERIOD QUERIES
// =============================================================================

// ApprovedDaysInPeriod sums the working days of approved requests that fall
// inside period, for leave types accepted by include. Partial-day requests
// contribute their fractional day count.
func (s *RequestService) ApprovedDaysInPeriod(ctx context.Context, org generic.OrganizationID, employeeID generic.EntityID, period generic.Period, include func(LeaveType) bool) (decimal.Decimal, error) {
	reqs, err := s.Requests.ListRequests(ctx, employeeID)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	types := make(map[generic.PolicyID]LeaveType)
	for _, r := range reqs {
		if r.Status != RequestApproved || r.End.Before(period.Start) || r.Start.After(period.End) {
			continue
		}
		lt, ok := types[r.LeaveTypeID]
		if !ok {
			lt, err = s.Types.GetLeaveType(ctx, org, r.LeaveTypeID)
			if err != nil {
				return decimal.Zero, err
			}
			types[r.LeaveTypeID] = lt
		}
		if !include(lt) {
			continue
		}

		if r.IsPartialDay {
			total = total.Add(r.Days)
			continue
		}
		from, to := r.Start, r.End
		if from.Before(period.Start) {
			from = period.Start
		}
		if to.After(period.End) {
			to = period.End
		}
		total = total.Add(decimal.NewFromInt(int64(generic.WorkingDaysBetween(s.Calendar, employeeID, from, to))))
	}
	return total, nil
}

// Unpaid selects leave types that are not paid.
func Unpaid(lt LeaveType) bool { return !lt.IsPaid }

// UnpaidDays is the approved unpaid leave inside period. The payrun source
// charges it against the employee's pay.
func (s *RequestService) UnpaidDays(ctx context.Context, org generic.OrganizationID, employeeID generic.EntityID, period generic.Period) (decimal.Decimal, error) {
	return s.ApprovedDaysInPeriod(ctx, org, employeeID, period, Unpaid)
}
