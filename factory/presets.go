package factory

import (
	"encoding/json"
)

// =============================================================================
// PRESET DEFINITIONS
// =============================================================================
//
// Each preset returns the JSON a client would post, so presets go through
// the same parsing and validation as user-supplied definitions.

// AnnualLeaveJSON returns monthly-accruing paid leave with a carry-over cap.
func AnnualLeaveJSON(id, name string, daysPerYear, maxCarryover float64) string {
	return marshal(map[string]interface{}{
		"id":   id,
		"name": name,
		"accrual": map[string]interface{}{
			"method": "monthly",
			"rate":   daysPerYear / 12,
		},
		"cycle_start_month": 1,
		"carry_over": map[string]interface{}{
			"limit":         maxCarryover,
			"expire_months": 6,
		},
	})
}

// SickLeaveJSON returns a cycle grant that may be overdrawn and never
// carries over.
func SickLeaveJSON(id, name string, daysPerCycle float64) string {
	return marshal(map[string]interface{}{
		"id":   id,
		"name": name,
		"accrual": map[string]interface{}{
			"method": "annual",
			"rate":   daysPerCycle,
		},
		"cycle_start_month":   1,
		"carry_over":          map[string]interface{}{"limit": 0},
		"allow_negative":      true,
		"requires_attachment": true,
	})
}

// FamilyResponsibilityJSON returns a small annual grant without carry-over.
func FamilyResponsibilityJSON(id, name string, days float64) string {
	return marshal(map[string]interface{}{
		"id":   id,
		"name": name,
		"accrual": map[string]interface{}{
			"method": "annual",
			"rate":   days,
		},
		"cycle_start_month": 1,
		"carry_over":        map[string]interface{}{"limit": 0},
	})
}

// UnpaidLeaveJSON returns the non-accruing type payruns deduct for.
func UnpaidLeaveJSON(id, name string) string {
	return marshal(map[string]interface{}{
		"id":             id,
		"name":           name,
		"accrual":        map[string]interface{}{"method": "none"},
		"allow_negative": true,
		"paid":           false,
	})
}

// SouthAfrica2025JSON returns the 2025/26 individual tax table with UIF
// and SDL.
func SouthAfrica2025JSON() string {
	return marshal(map[string]interface{}{
		"name": "ZA 2025",
		"brackets": []map[string]interface{}{
			{"threshold": 0, "base": 0, "rate": 0.18},
			{"threshold": 237100, "base": 42678, "rate": 0.26},
			{"threshold": 370500, "base": 77362, "rate": 0.31},
			{"threshold": 512800, "base": 121475, "rate": 0.36},
			{"threshold": 673000, "base": 179147, "rate": 0.39},
			{"threshold": 857900, "base": 251258, "rate": 0.41},
			{"threshold": 1817000, "base": 644489, "rate": 0.45},
		},
		"rebate": 17235,
		"uif":    map[string]interface{}{"rate": 0.01, "monthly_cap": 177.12},
		"sdl":    map[string]interface{}{"rate": 0.01},
	})
}

// SeverancePerYearJSON returns a days-per-completed-year formula.
func SeverancePerYearJSON(days float64) string {
	return marshal(map[string]interface{}{"type": "days_per_year", "days": days})
}

func marshal(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
