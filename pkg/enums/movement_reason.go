package enums

import "fmt"

// MovementReason tags a stock movement with its cause.
type MovementReason string

const (
	MovementReasonSale       MovementReason = "sale"
	MovementReasonReception  MovementReason = "reception"
	MovementReasonInventory  MovementReason = "inventory"
	MovementReasonCorrection MovementReason = "correction"
	MovementReasonInit       MovementReason = "init"
)

var validMovementReasons = []MovementReason{
	MovementReasonSale,
	MovementReasonReception,
	MovementReasonInventory,
	MovementReasonCorrection,
	MovementReasonInit,
}

// IsValid reports whether the value matches the canonical movement reason enum.
func (m MovementReason) IsValid() bool {
	for _, candidate := range validMovementReasons {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMovementReason converts the raw string to MovementReason.
func ParseMovementReason(value string) (MovementReason, error) {
	for _, candidate := range validMovementReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement reason %q", value)
}
