package models

import "fmt"

var allowedTransitions = map[ProcessingStatus][]ProcessingStatus{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusFailed:     {StatusPending}, // explicit retry
	StatusCompleted:  nil,
}

// Valid reports whether s is a known processing status.
func (s ProcessingStatus) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// CanTransition reports whether a document may move from s to next.
func (s ProcessingStatus) CanTransition(next ProcessingStatus) bool {
	for _, to := range allowedTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// CheckTransition returns ErrInvalidTransition wrapped with both ends when
// the move is not permitted.
func CheckTransition(from, to ProcessingStatus) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
