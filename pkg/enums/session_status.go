package enums

import "fmt"

// SessionStatus is the lifecycle state of an inventory session.
// Transitions are monotonic: open -> finalizing -> closed.
type SessionStatus string

const (
	SessionStatusOpen       SessionStatus = "open"
	SessionStatusFinalizing SessionStatus = "finalizing"
	SessionStatusClosed     SessionStatus = "closed"
)

var validSessionStatuses = []SessionStatus{
	SessionStatusOpen,
	SessionStatusFinalizing,
	SessionStatusClosed,
}

// IsValid reports whether the value matches the canonical session status enum.
func (s SessionStatus) IsValid() bool {
	for _, candidate := range validSessionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSessionStatus converts the raw string to SessionStatus.
func ParseSessionStatus(value string) (SessionStatus, error) {
	for _, candidate := range validSessionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid session status %q", value)
}
