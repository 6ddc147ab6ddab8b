package tickets

import (
	"errors"
	"time"

	"github.com/ziadkadry99/supportbot/internal/bots"
)

// Status is a ticket's lifecycle position. Transitions only move forward:
// unanswered -> answered -> closed, or unanswered -> closed.
type Status string

const (
	StatusUnanswered Status = "unanswered"
	StatusAnswered   Status = "answered"
	StatusClosed     Status = "closed"
)

// ClosedBy records who closed a ticket.
type ClosedBy string

const (
	ClosedByUser      ClosedBy = "user"
	ClosedByOperator  ClosedBy = "operator"
	ClosedByAbandoned ClosedBy = "abandoned"
)

var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrTicketClosed   = errors.New("ticket already closed")
	ErrNoNotification = errors.New("ticket has no admin notification")
)

// Ticket is a unit of escalated work.
type Ticket struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	ProblemType    string    `json:"problem_type"`
	ProblemDetails string    `json:"problem_details,omitempty"`
	Identity       string    `json:"identity,omitempty"`
	Status         Status    `json:"status"`
	Response       string    `json:"response,omitempty"`
	ClosedBy       ClosedBy  `json:"closed_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Open reports whether the ticket can still be answered.
func (t Ticket) Open() bool { return t.Status != StatusClosed }

// Notification is the administrative message tracking a ticket.
type Notification struct {
	Ref          bots.MessageRef `json:"ref"`
	LastRendered string          `json:"last_rendered"`
}
