package tickets

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ziadkadry99/supportbot/internal/bots"
	"github.com/ziadkadry99/supportbot/internal/clock"
)

// Persister is the storage collaborator for tickets. Registry treats every
// call as fire-and-forget: failures are logged and never roll back the
// in-memory state.
type Persister interface {
	Save(ctx context.Context, t Ticket) error
	UpdateStatus(ctx context.Context, id string, status Status, closedBy ClosedBy, at time.Time) error
	UpdateResponse(ctx context.Context, id, response string, at time.Time) error
}

// RegistryConfig wires a Registry to its collaborators.
type RegistryConfig struct {
	AdminChatID    string
	Transport      bots.Transport
	Store          Persister
	Clock          clock.Clock
	Logger         *zap.Logger
	OperatorOnline bool
	// NewID allocates ticket ids. Defaults to random UUIDs.
	NewID func() string
}

// Registry is the authoritative live view of tickets. It owns the
// administrative notification per ticket and the correlation index from
// ticket id to owning session. Every map is guarded by mu; transport calls
// are made without mu held.
type Registry struct {
	adminID   string
	transport bots.Transport
	store     Persister
	clock     clock.Clock
	logger    *zap.Logger
	newID     func() string

	online atomic.Bool

	mu            sync.Mutex
	tickets       map[string]*Ticket
	notifications map[string]*notification
	byRef         map[bots.MessageRef]string
	owners        map[string]string
}

type notification struct {
	// editMu serializes edits of one message so they land in compose order.
	editMu       sync.Mutex
	ref          bots.MessageRef
	lastRendered string
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	r := &Registry{
		adminID:       cfg.AdminChatID,
		transport:     cfg.Transport,
		store:         cfg.Store,
		clock:         cfg.Clock,
		logger:        cfg.Logger,
		newID:         cfg.NewID,
		tickets:       make(map[string]*Ticket),
		notifications: make(map[string]*notification),
		byRef:         make(map[bots.MessageRef]string),
		owners:        make(map[string]string),
	}
	if r.clock == nil {
		r.clock = clock.Real()
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.newID == nil {
		r.newID = func() string { return uuid.New().String() }
	}
	r.online.Store(cfg.OperatorOnline)
	return r
}

// AdminChatID returns the administrative session identifier.
func (r *Registry) AdminChatID() string { return r.adminID }

// OperatorOnline reports whether new hand-offs are accepted.
func (r *Registry) OperatorOnline() bool { return r.online.Load() }

// SetOperatorOnline sets the hand-off gate.
func (r *Registry) SetOperatorOnline(online bool) { r.online.Store(online) }

// ToggleOperatorOnline flips the hand-off gate and returns the new value.
func (r *Registry) ToggleOperatorOnline() bool {
	for {
		old := r.online.Load()
		if r.online.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Create allocates an unanswered ticket owned by sessionID and binds it in
// the correlation index.
func (r *Registry) Create(ctx context.Context, sessionID, problemType, details, identity string) Ticket {
	now := r.clock.Now()
	t := &Ticket{
		ID:             r.newID(),
		SessionID:      sessionID,
		ProblemType:    problemType,
		ProblemDetails: details,
		Identity:       identity,
		Status:         StatusUnanswered,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	r.mu.Lock()
	r.tickets[t.ID] = t
	r.owners[t.ID] = sessionID
	snapshot := *t
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.Save(ctx, snapshot); err != nil {
			r.logger.Error("persisting ticket", zap.String("ticket_id", t.ID), zap.Error(err))
		}
	}
	r.logger.Info("ticket created",
		zap.String("ticket_id", t.ID), zap.String("session_id", sessionID), zap.String("problem_type", problemType))
	return snapshot
}

// NotifyAdmin sends the ticket notification once and records it. A ticket
// that no longer exists or is already closed is skipped with an error.
func (r *Registry) NotifyAdmin(ctx context.Context, id string) error {
	r.mu.Lock()
	t, ok := r.tickets[id]
	if !ok || !t.Open() {
		r.mu.Unlock()
		r.logger.Warn("notify skipped, ticket gone", zap.String("ticket_id", id))
		return fmt.Errorf("notifying admin of %s: %w", id, ErrTicketNotFound)
	}
	if _, sent := r.notifications[id]; sent {
		r.mu.Unlock()
		return nil
	}
	text := Render(*t)
	r.mu.Unlock()

	ref, err := r.transport.Send(ctx, r.adminID, text, nil)
	if err != nil {
		r.logger.Error("sending admin notification", zap.String("ticket_id", id), zap.Error(err))
		return fmt.Errorf("notifying admin of %s: %w", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// The ticket may have closed while the message was in flight.
	if t, ok := r.tickets[id]; !ok || !t.Open() {
		return nil
	}
	r.notifications[id] = &notification{ref: ref, lastRendered: text}
	r.byRef[ref] = id
	return nil
}

// UpdateAdminNotification replaces the notification text. The edit is only
// issued when text differs from what was last rendered.
func (r *Registry) UpdateAdminNotification(ctx context.Context, id, text string) error {
	return r.editNotification(ctx, id, func(string) string { return text })
}

// AppendToNotification adds line to the notification's current text.
func (r *Registry) AppendToNotification(ctx context.Context, id, line string) error {
	return r.editNotification(ctx, id, func(prev string) string { return prev + "\n" + line })
}

func (r *Registry) editNotification(ctx context.Context, id string, compose func(prev string) string) error {
	r.mu.Lock()
	n, ok := r.notifications[id]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("updating notification for %s: %w", id, ErrNoNotification)
	}

	n.editMu.Lock()
	defer n.editMu.Unlock()

	r.mu.Lock()
	if r.notifications[id] != n {
		r.mu.Unlock()
		return fmt.Errorf("updating notification for %s: %w", id, ErrNoNotification)
	}
	prev := n.lastRendered
	next := compose(prev)
	if next == prev {
		r.mu.Unlock()
		return nil
	}
	n.lastRendered = next
	ref := n.ref
	r.mu.Unlock()

	if err := r.transport.Edit(ctx, r.adminID, ref, next, nil); err != nil {
		r.mu.Lock()
		if n.lastRendered == next {
			n.lastRendered = prev
		}
		r.mu.Unlock()
		r.logger.Warn("editing admin notification", zap.String("ticket_id", id), zap.Error(err))
		return fmt.Errorf("updating notification for %s: %w", id, err)
	}
	return nil
}

// RecordResponse stores the operator response and marks the ticket answered.
// A closed ticket is left untouched.
func (r *Registry) RecordResponse(ctx context.Context, id, response string) (Ticket, error) {
	r.mu.Lock()
	t, ok := r.tickets[id]
	if !ok {
		r.mu.Unlock()
		return Ticket{}, fmt.Errorf("recording response for %s: %w", id, ErrTicketNotFound)
	}
	if !t.Open() {
		snapshot := *t
		r.mu.Unlock()
		return snapshot, fmt.Errorf("recording response for %s: %w", id, ErrTicketClosed)
	}
	t.Response = response
	t.Status = StatusAnswered
	t.UpdatedAt = r.clock.Now()
	snapshot := *t
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.UpdateResponse(ctx, id, response, snapshot.UpdatedAt); err != nil {
			r.logger.Error("persisting ticket response", zap.String("ticket_id", id), zap.Error(err))
		}
	}
	return snapshot, nil
}

// Close marks the ticket closed and drops its notification and correlation
// entries. Closing an unknown or already closed ticket changes nothing and
// returns ErrTicketNotFound or ErrTicketClosed.
func (r *Registry) Close(ctx context.Context, id string, by ClosedBy) (Ticket, error) {
	r.mu.Lock()
	t, ok := r.tickets[id]
	if !ok {
		r.mu.Unlock()
		return Ticket{}, fmt.Errorf("closing %s: %w", id, ErrTicketNotFound)
	}
	if !t.Open() {
		snapshot := *t
		r.mu.Unlock()
		return snapshot, fmt.Errorf("closing %s: %w", id, ErrTicketClosed)
	}
	t.Status = StatusClosed
	t.ClosedBy = by
	t.UpdatedAt = r.clock.Now()
	if n, ok := r.notifications[id]; ok {
		delete(r.byRef, n.ref)
		delete(r.notifications, id)
	}
	delete(r.owners, id)
	snapshot := *t
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.UpdateStatus(ctx, id, StatusClosed, by, snapshot.UpdatedAt); err != nil {
			r.logger.Error("persisting ticket close", zap.String("ticket_id", id), zap.Error(err))
		}
	}
	if _, err := r.transport.Send(ctx, r.adminID, closedLine(id, by), nil); err != nil {
		r.logger.Warn("announcing ticket close", zap.String("ticket_id", id), zap.Error(err))
	}
	r.logger.Info("ticket closed", zap.String("ticket_id", id), zap.String("closed_by", string(by)))
	return snapshot, nil
}

func closedLine(id string, by ClosedBy) string {
	if by == ClosedByAbandoned {
		return fmt.Sprintf("Ticket %s closed: the user started a new request.", id)
	}
	return fmt.Sprintf("Ticket %s closed by %s.", id, by)
}

// Owner returns the session bound to an open ticket in the correlation index.
func (r *Registry) Owner(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.owners[id]
	return owner, ok
}

// TicketForMessage maps an administrative message back to its ticket.
func (r *Registry) TicketForMessage(ref bots.MessageRef) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byRef[ref]
	return id, ok
}

// Notification returns the tracked notification for an open ticket.
func (r *Registry) Notification(id string) (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return Notification{}, false
	}
	return Notification{Ref: n.ref, LastRendered: n.lastRendered}, true
}

// Get returns a copy of a ticket, open or closed.
func (r *Registry) Get(id string) (Ticket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return Ticket{}, false
	}
	return *t, true
}

// List returns copies of tickets with any of the given statuses, oldest
// first. No statuses means all tickets.
func (r *Registry) List(statuses ...Status) []Ticket {
	want := make(map[Status]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}

	r.mu.Lock()
	out := make([]Ticket, 0, len(r.tickets))
	for _, t := range r.tickets {
		if len(want) == 0 || want[t.Status] {
			out = append(out, *t)
		}
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// OpenCount returns the number of tickets not yet closed.
func (r *Registry) OpenCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.owners)
}
