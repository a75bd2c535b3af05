package payslip

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
)

// =============================================================================
// LINE EDITS
// =============================================================================

// EditAction is a closed enum of what an edit does to a line.
type EditAction int

const (
	EditUpdate EditAction = iota + 1
	EditAdd
	EditRemove
)

func (a EditAction) String() string {
	switch a {
	case EditUpdate:
		return "update"
	case EditAdd:
		return "add"
	case EditRemove:
		return "remove"
	}
	return fmt.Sprintf("EditAction(%d)", int(a))
}

// LineEdit changes one line. Nil fields are left as they are.
type LineEdit struct {
	Line   LineKind
	Code   string
	Action EditAction

	Name    *string
	Amount  *decimal.Decimal
	Hours   *decimal.Decimal
	Rate    *decimal.Decimal
	Skip    *bool
	Note    *string
	Taxable *bool
}

// ApplyEdits returns a new input with every edit applied, or the original
// input and an error if any edit is refused. Required lines (statutory
// deductions and configured required codes) may have their amount changed
// but can never be skipped or removed.
func (c Calculator) ApplyEdits(in Input, edits ...LineEdit) (Input, error) {
	out := in.Clone()
	statutory := c.StatutoryCodes(in)

	for _, e := range edits {
		var err error
		switch e.Line {
		case LineEarning:
			err = out.editEarning(e)
		case LineDeduction:
			if contains(statutory, e.Code) {
				err = out.editStatutory(e)
			} else {
				err = out.editDeduction(e)
			}
		default:
			err = fmt.Errorf("edit %s: unknown line kind %s: %w", e.Code, e.Line, generic.ErrValidationFailed)
		}
		if err != nil {
			return in, err
		}
	}
	return out, nil
}

func (in *Input) editEarning(e LineEdit) error {
	if e.Skip != nil && *e.Skip {
		return &generic.LineModificationError{Code: e.Code, Action: "skip earning"}
	}

	idx := -1
	for i, l := range in.Earnings {
		if l.Code == e.Code {
			idx = i
			break
		}
	}

	switch e.Action {
	case EditAdd:
		if idx >= 0 {
			return generic.NewValidationFailed("LINE_EXISTS", fmt.Sprintf("earning %s already exists", e.Code))
		}
		line := EarningLine{Code: e.Code, Name: e.Code, Taxable: true}
		applyEarning(&line, e)
		in.Earnings = append(in.Earnings, line)
		return nil
	case EditRemove:
		if idx < 0 {
			return fmt.Errorf("earning %s: %w", e.Code, generic.ErrNotFound)
		}
		if in.Earnings[idx].Required || in.requiresEarning(e.Code) {
			return &generic.LineModificationError{Code: e.Code, Action: "remove"}
		}
		in.Earnings = append(in.Earnings[:idx], in.Earnings[idx+1:]...)
		return nil
	case EditUpdate:
		if idx < 0 {
			return fmt.Errorf("earning %s: %w", e.Code, generic.ErrNotFound)
		}
		applyEarning(&in.Earnings[idx], e)
		return nil
	}
	return fmt.Errorf("earning %s: unknown action %s: %w", e.Code, e.Action, generic.ErrValidationFailed)
}

func applyEarning(l *EarningLine, e LineEdit) {
	if e.Name != nil {
		l.Name = *e.Name
	}
	if e.Amount != nil {
		l.Amount = *e.Amount
		l.Hours, l.Rate = nil, nil
	}
	if e.Hours != nil {
		h := *e.Hours
		l.Hours = &h
	}
	if e.Rate != nil {
		r := *e.Rate
		l.Rate = &r
	}
	if e.Note != nil {
		l.Note = *e.Note
	}
	if e.Taxable != nil {
		l.Taxable = *e.Taxable
	}
}

func (in *Input) editDeduction(e LineEdit) error {
	idx := -1
	for i, l := range in.Deductions {
		if l.Code == e.Code {
			idx = i
			break
		}
	}
	required := in.requiresDeduction(e.Code) || (idx >= 0 && in.Deductions[idx].Required)

	if e.Skip != nil && *e.Skip && required {
		return &generic.LineModificationError{Code: e.Code, Action: "skip"}
	}

	switch e.Action {
	case EditAdd:
		if idx >= 0 {
			return generic.NewValidationFailed("LINE_EXISTS", fmt.Sprintf("deduction %s already exists", e.Code))
		}
		line := DeductionLine{Code: e.Code, Name: e.Code}
		applyDeduction(&line, e)
		in.Deductions = append(in.Deductions, line)
		return nil
	case EditRemove:
		if idx < 0 {
			return fmt.Errorf("deduction %s: %w", e.Code, generic.ErrNotFound)
		}
		if required {
			return &generic.LineModificationError{Code: e.Code, Action: "remove"}
		}
		in.Deductions = append(in.Deductions[:idx], in.Deductions[idx+1:]...)
		return nil
	case EditUpdate:
		if idx < 0 {
			return fmt.Errorf("deduction %s: %w", e.Code, generic.ErrNotFound)
		}
		applyDeduction(&in.Deductions[idx], e)
		return nil
	}
	return fmt.Errorf("deduction %s: unknown action %s: %w", e.Code, e.Action, generic.ErrValidationFailed)
}

func applyDeduction(l *DeductionLine, e LineEdit) {
	if e.Name != nil {
		l.Name = *e.Name
	}
	if e.Amount != nil {
		l.Amount = *e.Amount
	}
	if e.Skip != nil {
		l.Skipped = *e.Skip
	}
	if e.Note != nil {
		l.Note = *e.Note
	}
}

// editStatutory records an override; statutory lines are always required.
func (in *Input) editStatutory(e LineEdit) error {
	switch e.Action {
	case EditRemove:
		return &generic.LineModificationError{Code: e.Code, Action: "remove"}
	case EditAdd:
		return generic.NewValidationFailed("LINE_EXISTS", fmt.Sprintf("deduction %s already exists", e.Code))
	case EditUpdate:
	default:
		return fmt.Errorf("deduction %s: unknown action %s: %w", e.Code, e.Action, generic.ErrValidationFailed)
	}
	if e.Skip != nil && *e.Skip {
		return &generic.LineModificationError{Code: e.Code, Action: "skip"}
	}

	if in.StatutoryOverrides == nil {
		in.StatutoryOverrides = make(map[string]StatutoryOverride)
	}
	o := in.StatutoryOverrides[e.Code]
	if e.Amount != nil {
		amount := *e.Amount
		o.Amount = &amount
	}
	if e.Note != nil {
		o.Note = *e.Note
	}
	in.StatutoryOverrides[e.Code] = o
	return nil
}
