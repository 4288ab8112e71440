package order

import "fmt"

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
	StatusFailed     Status = "failed"
	StatusProcessing Status = "processing"
	StatusOnHold     Status = "on_hold"
)

// transitions is the allowed-transition table. Completed, cancelled and
// refunded are terminal. No transition currently leads into refunded; the
// table reproduces the platform's behaviour as-is.
var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusCompleted, StatusCancelled, StatusOnHold},
	StatusProcessing: {StatusConfirmed, StatusFailed, StatusCancelled},
	StatusOnHold:     {StatusConfirmed, StatusCancelled},
	StatusFailed:     {StatusPending, StatusCancelled},
	StatusCompleted:  {},
	StatusCancelled:  {},
	StatusRefunded:   {},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether no transition leads out of s.
func (s Status) IsTerminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// CanModify reports whether whole-order field edits are still allowed.
// Cancelled and completed orders are frozen regardless of the transition
// table.
func CanModify(s Status) bool {
	return s != StatusCancelled && s != StatusCompleted
}

// InvalidTransitionError is returned when a requested status change is not
// in the transition table.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

// UnknownStatusError is returned when a status value is not part of the
// enumeration at all.
type UnknownStatusError struct {
	Status Status
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unknown order status %q", string(e.Status))
}

// Transition validates a status change against the transition table.
// On rejection the caller must not mutate the order's status.
func Transition(current, requested Status) error {
	if !current.Valid() {
		return &UnknownStatusError{Status: current}
	}
	if !requested.Valid() {
		return &UnknownStatusError{Status: requested}
	}
	for _, next := range transitions[current] {
		if next == requested {
			return nil
		}
	}
	return &InvalidTransitionError{From: current, To: requested}
}
