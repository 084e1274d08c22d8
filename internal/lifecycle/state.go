// Package lifecycle describes the session state machine independently of storage.
package lifecycle

// Status is the lifecycle state of a session.
type Status string

const (
	// StatusProposed is the initial state; the host offered candidate windows.
	StatusProposed Status = "proposed"
	// StatusConfirmed indicates one proposed window was selected.
	StatusConfirmed Status = "confirmed"
	// StatusCancelled is terminal and reachable from proposed or confirmed.
	StatusCancelled Status = "cancelled"
	// StatusCompleted is terminal and reachable from confirmed.
	StatusCompleted Status = "completed"
	// StatusNoShow is terminal and reachable from confirmed.
	StatusNoShow Status = "no_show"
)

// Action names a requested change to a session.
type Action string

const (
	ActionConfirm     Action = "confirm"
	ActionCancel      Action = "cancel"
	ActionComplete    Action = "complete"
	ActionMarkNoShow  Action = "mark_no_show"
	ActionDelete      Action = "delete"
	ActionUpdateNotes Action = "update_notes"
)

type rule struct {
	from   []Status
	target Status
}

// An empty target means the action does not change status.
var rules = map[Action]rule{
	ActionConfirm:     {from: []Status{StatusProposed}, target: StatusConfirmed},
	ActionCancel:      {from: []Status{StatusProposed, StatusConfirmed}, target: StatusCancelled},
	ActionComplete:    {from: []Status{StatusConfirmed}, target: StatusCompleted},
	ActionMarkNoShow:  {from: []Status{StatusConfirmed}, target: StatusNoShow},
	ActionDelete:      {from: []Status{StatusProposed, StatusCancelled}},
	ActionUpdateNotes: {from: []Status{StatusConfirmed, StatusCompleted}},
}

// SourceStates returns the statuses from which the action may be applied.
func SourceStates(action Action) []Status {
	r, ok := rules[action]
	if !ok {
		return nil
	}
	out := make([]Status, len(r.from))
	copy(out, r.from)
	return out
}

// Target returns the status a session holds after the action. The second
// return value is false when the action leaves the status untouched or is unknown.
func Target(action Action) (Status, bool) {
	r, ok := rules[action]
	if !ok || r.target == "" {
		return "", false
	}
	return r.target, true
}

// Allowed reports whether the action may be applied to a session in the given status.
func Allowed(from Status, action Action) bool {
	for _, s := range rules[action].from {
		if s == from {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no status-changing action can leave the status.
func IsTerminal(status Status) bool {
	switch status {
	case StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	default:
		return false
	}
}

// Valid reports whether the status is a known lifecycle state.
func Valid(status Status) bool {
	switch status {
	case StatusProposed, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	default:
		return false
	}
}

// Open lists the statuses of sessions that have not yet happened or been abandoned.
func Open() []Status {
	return []Status{StatusProposed, StatusConfirmed}
}

// Closed lists the terminal statuses.
func Closed() []Status {
	return []Status{StatusCompleted, StatusNoShow, StatusCancelled}
}
