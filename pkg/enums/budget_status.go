package enums

import "fmt"

// BudgetStatus is the decision recorded on a patient budget at creation.
type BudgetStatus string

const (
	BudgetStatusPending  BudgetStatus = "pending"
	BudgetStatusAccepted BudgetStatus = "accepted"
	BudgetStatusRejected BudgetStatus = "rejected"
)

var validBudgetStatuses = []BudgetStatus{
	BudgetStatusPending,
	BudgetStatusAccepted,
	BudgetStatusRejected,
}

// String implements fmt.Stringer.
func (s BudgetStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known BudgetStatus.
func (s BudgetStatus) IsValid() bool {
	for _, candidate := range validBudgetStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseBudgetStatus converts raw input into a BudgetStatus.
func ParseBudgetStatus(value string) (BudgetStatus, error) {
	for _, candidate := range validBudgetStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid budget status %q", value)
}
