package audit

import "time"

// ActorType identifies who performed an action.
type ActorType string

const (
	ActorUser     ActorType = "user"
	ActorOperator ActorType = "operator"
	ActorSystem   ActorType = "system"
)

// Action describes what was done.
type Action string

const (
	ActionText            Action = "text"
	ActionButton          Action = "button"
	ActionIdentified      Action = "identified"
	ActionTicketCreated   Action = "ticket_created"
	ActionTicketUpdated   Action = "ticket_updated"
	ActionTicketAnswered  Action = "ticket_answered"
	ActionTicketClosed    Action = "ticket_closed"
	ActionHandoffRefused  Action = "handoff_refused"
	ActionOperatorToggled Action = "operator_toggled"
	ActionOperatorError   Action = "operator_error"
)

// Entry is a single audit trail record.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	ActorType ActorType `json:"actor_type"`
	ActorID   string    `json:"actor_id"`
	Action    Action    `json:"action"`
	TicketID  string    `json:"ticket_id,omitempty"`
	Summary   string    `json:"summary"`
}
