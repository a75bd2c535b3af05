package termination

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/roster"
	"github.com/warp/payroll-engine/validation"
)

// DefaultHighLeavePayoutDays is the payout above which a warning is raised.
var DefaultHighLeavePayoutDays = decimal.NewFromInt(30)

// settlement is what the rules inspect.
type settlement struct {
	T                   Termination
	C                   PayComponents
	Profile             roster.Profile
	HighLeavePayoutDays decimal.Decimal
}

var rules = []validation.Rule[settlement]{
	requireDates,
	requireReason,
	validation.When(
		func(s settlement) bool { return s.T.NoticeDays < 0 },
		func(settlement) validation.Finding {
			return validation.Error("NOTICE_DAYS_NEGATIVE", "notice days cannot be negative")
		},
	),
	validation.When(
		func(s settlement) bool { return s.C.LeavePayoutDays.GreaterThan(s.HighLeavePayoutDays) },
		func(s settlement) validation.Finding {
			return validation.Warning("HIGH_LEAVE_PAYOUT", fmt.Sprintf("leave payout of %s days exceeds %s days", s.C.LeavePayoutDays, s.HighLeavePayoutDays))
		},
	),
	validation.When(
		func(s settlement) bool { return s.T.PaidInLieu && s.T.NoticeDays == 0 },
		func(settlement) validation.Finding {
			return validation.Warning("PAID_IN_LIEU_WITHOUT_NOTICE", "paid in lieu is set but the notice period is zero days")
		},
	),
	validation.When(
		func(s settlement) bool { return s.C.Summary.Net.IsNegative() },
		func(s settlement) validation.Finding {
			return validation.Warning("NEGATIVE_NET", fmt.Sprintf("settlement net is negative (%s)", s.C.Summary.Net))
		},
	),
	validation.When(
		func(s settlement) bool { return s.C.LeaveOverdrawn.IsPositive() },
		func(s settlement) validation.Finding {
			return validation.Warning("LEAVE_OVERDRAWN", fmt.Sprintf("%s days of paid leave are overdrawn and will be recovered", s.C.LeaveOverdrawn))
		},
	),
}

func requireDates(s settlement) []validation.Finding {
	var out []validation.Finding
	if s.T.TerminationDate.IsZero() {
		out = append(out, validation.Error("TERMINATION_DATE_REQUIRED", "termination date is required"))
	}
	if s.T.LastWorkingDay.IsZero() {
		out = append(out, validation.Error("LAST_WORKING_DAY_REQUIRED", "last working day is required"))
	}
	if len(out) > 0 {
		return out
	}
	if s.T.TerminationDate.Before(s.T.LastWorkingDay) {
		out = append(out, validation.Error("TERMINATION_BEFORE_LAST_WORKING_DAY",
			fmt.Sprintf("termination date %s is before last working day %s", s.T.TerminationDate, s.T.LastWorkingDay)))
	}
	if start := s.Profile.Employee.StartDate; !start.IsZero() && s.T.LastWorkingDay.Before(start) {
		out = append(out, validation.Error("LAST_WORKING_DAY_BEFORE_START",
			fmt.Sprintf("last working day %s is before the start date %s", s.T.LastWorkingDay, start)))
	}
	return out
}

func requireReason(s settlement) []validation.Finding {
	if s.T.Reason.valid() {
		return nil
	}
	return []validation.Finding{validation.Error("REASON_INVALID", fmt.Sprintf("unknown reason %s", s.T.Reason))}
}

// Validate runs the settlement rules and folds in the errors the payslip
// calculation already reported.
func Validate(t Termination, c PayComponents, profile roster.Profile, highLeavePayoutDays decimal.Decimal) validation.Result {
	if !highLeavePayoutDays.IsPositive() {
		highLeavePayoutDays = DefaultHighLeavePayoutDays
	}
	res := validation.Validate(settlement{T: t, C: c, Profile: profile, HighLeavePayoutDays: highLeavePayoutDays}, rules...)
	return res.Merge(validation.Result{Errors: c.Errors})
}
