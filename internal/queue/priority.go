package queue

import "errors"

// Priority selects which stream a job lands on. Interactive single-record
// jobs go high, standard bulk jobs normal, large backfills low.
type Priority int

const (
	PriorityHigh   Priority = 1
	PriorityNormal Priority = 2
	PriorityLow    Priority = 3
)

// String returns the stream suffix for the priority.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return "normal"
	}
}

// IsValid reports whether the priority is a known level.
func (p Priority) IsValid() bool {
	return p >= PriorityHigh && p <= PriorityLow
}

// ParsePriority converts a priority name to a Priority.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "high":
		return PriorityHigh, nil
	case "normal", "":
		return PriorityNormal, nil
	case "low":
		return PriorityLow, nil
	default:
		return PriorityNormal, errors.New("invalid priority: must be high, normal, or low")
	}
}

// AllPriorities returns the priority levels in precedence order.
func AllPriorities() []Priority {
	return []Priority{PriorityHigh, PriorityNormal, PriorityLow}
}
