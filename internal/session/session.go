package session

import (
	"time"

	"github.com/ziadkadry99/supportbot/internal/bots"
	"github.com/ziadkadry99/supportbot/internal/clock"
	"github.com/ziadkadry99/supportbot/internal/customers"
	"github.com/ziadkadry99/supportbot/internal/ladder"
)

// Session is one end user's conversation. It is only touched by the
// session's own actor goroutine; everything else sees copies.
type Session struct {
	ID             string             `json:"id"`
	State          State              `json:"state"`
	Identity       customers.Identity `json:"identity"`
	Identified     bool               `json:"identified"`
	Ladder         ladder.Progress    `json:"ladder"`
	ProblemDetails string             `json:"problem_details,omitempty"`
	ActiveTicketID string             `json:"active_ticket_id,omitempty"`
	PendingEdit    bots.MessageRef    `json:"pending_edit,omitempty"`
	Waiting        bool               `json:"waiting"`
	CreatedAt      time.Time          `json:"created_at"`
	LastEventAt    time.Time          `json:"last_event_at"`

	wait *pendingWait
}

// pendingWait is the scheduled switch from WaitingOperator to
// OperatorConnected. token ties a timer firing to the wait that armed it.
type pendingWait struct {
	token uint64
	timer clock.Timer
}

func newSession(id string, now time.Time) *Session {
	return &Session{ID: id, State: Start, CreatedAt: now, LastEventAt: now}
}

// ProblemType is the category title recorded on tickets.
func (s *Session) ProblemType() string {
	return s.Ladder.Category.Title()
}

// snapshot returns a copy safe to hand to other goroutines.
func (s *Session) snapshot() Session {
	c := *s
	c.wait = nil
	c.Waiting = s.wait != nil
	if s.Ladder.Attempted != nil {
		c.Ladder.Attempted = append([]string(nil), s.Ladder.Attempted...)
	}
	return c
}
