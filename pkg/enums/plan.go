package enums

import "fmt"

// Plan is the billing tier attached to a subscription row.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanWeekly  Plan = "weekly"
	PlanMonthly Plan = "monthly"
)

var validPlans = []Plan{PlanFree, PlanWeekly, PlanMonthly}

// String implements fmt.Stringer.
func (p Plan) String() string {
	return string(p)
}

// IsValid reports whether the value is known.
func (p Plan) IsValid() bool {
	for _, candidate := range validPlans {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsPaid reports whether the plan grants generation entitlement.
func (p Plan) IsPaid() bool {
	return p == PlanWeekly || p == PlanMonthly
}

// HorizonDays is how far ahead of the period start a plan may generate.
func (p Plan) HorizonDays() int {
	switch p {
	case PlanWeekly:
		return 7
	case PlanMonthly:
		return 30
	default:
		return 0
	}
}

// ParsePlan converts raw input into a Plan.
func ParsePlan(value string) (Plan, error) {
	for _, candidate := range validPlans {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan %q", value)
}
