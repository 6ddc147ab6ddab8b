// Package session drives each end user's conversation through the support
// dialogue. Every session is served by its own actor goroutine, so events
// for one user are applied strictly in order while different users proceed
// in parallel.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ziadkadry99/supportbot/internal/audit"
	"github.com/ziadkadry99/supportbot/internal/bots"
	"github.com/ziadkadry99/supportbot/internal/clock"
	"github.com/ziadkadry99/supportbot/internal/customers"
	"github.com/ziadkadry99/supportbot/internal/operator"
	"github.com/ziadkadry99/supportbot/internal/tickets"
)

var (
	// ErrEngineClosed is returned for work submitted after Close.
	ErrEngineClosed = errors.New("session engine closed")
	// ErrStaleEditTarget means a transition needed to edit an earlier
	// message but the session no longer remembers one.
	ErrStaleEditTarget = errors.New("no message to edit")
	// ErrSessionNotFound is returned by Snapshot for unknown sessions.
	ErrSessionNotFound = errors.New("session not found")
	// ErrMailboxFull is returned by HandleEvent when the session already has
	// a full queue of unprocessed events. The event is dropped.
	ErrMailboxFull = errors.New("session mailbox full")
)

const defaultMailboxSize = 64

// IdentityStore persists customer identities.
type IdentityStore interface {
	Exists(ctx context.Context, id customers.Identity) (bool, error)
	Save(ctx context.Context, sessionID string, id customers.Identity) error
}

// AuditLog records handled events.
type AuditLog interface {
	Log(ctx context.Context, entry audit.Entry) error
}

// BalanceFunc reports the account balance shown to a session.
type BalanceFunc func(sessionID string) int

// Config wires an Engine to its collaborators. Transport and Registry are
// required; the rest have defaults.
type Config struct {
	// AdminChatID is the session id of the administrative channel. Its
	// events go to the operator gateway instead of the dialogue.
	AdminChatID string
	Transport   bots.Transport
	Registry    *tickets.Registry
	Customers   IdentityStore
	Audit       AuditLog
	Clock       clock.Clock
	Logger      *zap.Logger
	// ConnectDelay is how long a queued user waits before the operator
	// connected prompt. Zero or negative connects immediately.
	ConnectDelay time.Duration
	MailboxSize  int
	Balance      BalanceFunc
}

// Engine owns every session and the administrative actor.
type Engine struct {
	adminID      string
	transport    bots.Transport
	registry     *tickets.Registry
	customers    IdentityStore
	audit        AuditLog
	clock        clock.Clock
	logger       *zap.Logger
	connectDelay time.Duration
	mailboxSize  int
	balance      BalanceFunc
	operator     *operator.Gateway

	waitSeq atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	quit   chan struct{}
	wg     sync.WaitGroup

	mu     sync.Mutex
	actors map[string]*actor
	closed bool
}

// actor serializes work for one session. session is nil for the
// administrative actor.
type actor struct {
	id      string
	mailbox chan envelope
	session *Session
}

// envelope is one unit of actor work: an inbound event or a function run
// against the session. done, when non-nil, receives the result.
type envelope struct {
	event *bots.Event
	fn    func(ctx context.Context, s *Session) error
	done  chan error
}

// New creates an engine. Call Close to stop its actors.
func New(cfg Config) (*Engine, error) {
	if cfg.Transport == nil {
		return nil, errors.New("session engine needs a transport")
	}
	if cfg.Registry == nil {
		return nil, errors.New("session engine needs a ticket registry")
	}
	e := &Engine{
		adminID:      cfg.AdminChatID,
		transport:    cfg.Transport,
		registry:     cfg.Registry,
		customers:    cfg.Customers,
		audit:        cfg.Audit,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		connectDelay: cfg.ConnectDelay,
		mailboxSize:  cfg.MailboxSize,
		balance:      cfg.Balance,
		quit:         make(chan struct{}),
		actors:       make(map[string]*actor),
	}
	if e.clock == nil {
		e.clock = clock.Real()
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.mailboxSize <= 0 {
		e.mailboxSize = defaultMailboxSize
	}
	if e.balance == nil {
		e.balance = func(string) int { return rand.IntN(1000) }
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())

	var opAudit operator.AuditLog
	if cfg.Audit != nil {
		opAudit = cfg.Audit
	}
	e.operator = operator.NewGateway(cfg.Registry, cfg.Transport, e, opAudit, e.clock, e.logger.Named("operator"))
	return e, nil
}

// HandleEvent queues ev on its session's actor and returns without waiting
// for it to be applied. It never blocks: when the session's mailbox is full
// the event is dropped with ErrMailboxFull, so one stuck session cannot hold
// up the caller's other sessions.
func (e *Engine) HandleEvent(_ context.Context, ev bots.Event) error {
	if ev.SessionID == "" {
		return bots.ErrEmptySession
	}
	a, err := e.actorFor(ev.SessionID, true)
	if err != nil {
		return err
	}
	select {
	case a.mailbox <- envelope{event: &ev}:
		return nil
	default:
		e.logger.Warn("dropping event, session mailbox full",
			zap.String("session_id", ev.SessionID),
			zap.String("kind", string(ev.Kind)),
			zap.Int("mailbox_size", e.mailboxSize))
		return ErrMailboxFull
	}
}

// Handle applies ev and waits until the transition, including its storage
// and transport side effects, has completed.
func (e *Engine) Handle(ctx context.Context, ev bots.Event) error {
	done := make(chan error, 1)
	if err := e.post(ctx, ev.SessionID, true, envelope{event: &ev, done: done}); err != nil {
		return err
	}
	return e.wait(ctx, done)
}

// Snapshot returns a copy of a session taken on its actor.
func (e *Engine) Snapshot(ctx context.Context, sessionID string) (Session, error) {
	if sessionID == e.adminID {
		return Session{}, ErrSessionNotFound
	}
	var snap Session
	err := e.run(ctx, sessionID, false, func(_ context.Context, s *Session) error {
		snap = s.snapshot()
		return nil
	})
	return snap, err
}

// Sessions returns the ids of every known session except the
// administrative channel.
func (e *Engine) Sessions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.actors))
	for id, a := range e.actors {
		if a.session != nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// DeliverResponse hands an operator answer to the owning session.
func (e *Engine) DeliverResponse(ctx context.Context, sessionID, ticketID, response string) error {
	return e.run(ctx, sessionID, false, func(ctx context.Context, s *Session) error {
		return e.onOperatorResponse(ctx, s, ticketID, response)
	})
}

// DeliverClose tells the owning session the operator closed its ticket.
func (e *Engine) DeliverClose(ctx context.Context, sessionID, ticketID string) error {
	return e.run(ctx, sessionID, false, func(ctx context.Context, s *Session) error {
		return e.onOperatorClose(ctx, s, ticketID)
	})
}

// Close stops every actor. Queued work that has not started is dropped and
// pending operator waits are cancelled.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.quit)
	e.mu.Unlock()

	e.wg.Wait()
	e.cancel()
	return nil
}

// run executes fn on the session's actor and waits for it.
func (e *Engine) run(ctx context.Context, sessionID string, create bool, fn func(context.Context, *Session) error) error {
	done := make(chan error, 1)
	if err := e.post(ctx, sessionID, create, envelope{fn: fn, done: done}); err != nil {
		return err
	}
	return e.wait(ctx, done)
}

func (e *Engine) wait(ctx context.Context, done <-chan error) error {
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-e.quit:
		return ErrEngineClosed
	}
}

// post queues env on the actor for sessionID. Unknown sessions are created
// only when create is set.
func (e *Engine) post(ctx context.Context, sessionID string, create bool, env envelope) error {
	if sessionID == "" {
		return bots.ErrEmptySession
	}
	a, err := e.actorFor(sessionID, create)
	if err != nil {
		return err
	}
	select {
	case a.mailbox <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.quit:
		return ErrEngineClosed
	}
}

func (e *Engine) actorFor(sessionID string, create bool) (*actor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrEngineClosed
	}
	if a, ok := e.actors[sessionID]; ok {
		return a, nil
	}
	if !create {
		return nil, ErrSessionNotFound
	}
	a := &actor{id: sessionID, mailbox: make(chan envelope, e.mailboxSize)}
	if sessionID != e.adminID {
		a.session = newSession(sessionID, e.clock.Now())
	}
	e.actors[sessionID] = a
	e.wg.Add(1)
	go e.loop(a)
	return a, nil
}

func (e *Engine) loop(a *actor) {
	defer e.wg.Done()
	for {
		select {
		case <-e.quit:
			if a.session != nil {
				e.cancelWait(a.session)
			}
			return
		case env := <-a.mailbox:
			err := e.process(a, env)
			if env.done != nil {
				env.done <- err
			}
		}
	}
}

// process runs one envelope. A panic is logged and reported as an error;
// the actor keeps serving.
func (e *Engine) process(a *actor, env envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("session handler panicked",
				zap.String("session_id", a.id),
				zap.Any("panic", r),
				zap.Stack("stack"))
			err = fmt.Errorf("session %s: panic: %v", a.id, r)
		}
	}()

	ctx := e.ctx
	switch {
	case env.fn != nil:
		if a.session == nil {
			return ErrSessionNotFound
		}
		return env.fn(ctx, a.session)
	case a.session == nil:
		return e.operator.Handle(ctx, *env.event)
	default:
		return e.dispatch(ctx, a.session, *env.event)
	}
}

// dispatch applies one user event through the transition table.
func (e *Engine) dispatch(ctx context.Context, s *Session, ev bots.Event) error {
	s.LastEventAt = e.clock.Now()
	from := s.State

	var err error
	if h := lookup(s.State, ev); h != nil {
		err = h(e, ctx, s, ev)
	} else {
		err = e.invalid(ctx, s)
	}

	e.recordEvent(ctx, s, ev, from)
	if ev.Kind == bots.KindButton && ev.ID != "" {
		if ackErr := e.transport.Acknowledge(ctx, ev.ID); ackErr != nil {
			e.logger.Warn("acknowledging button", zap.String("session_id", s.ID), zap.Error(ackErr))
		}
	}
	// Stale edit targets are logged where they are detected.
	if err != nil && !errors.Is(err, ErrStaleEditTarget) {
		e.logger.Warn("transition failed",
			zap.String("session_id", s.ID),
			zap.String("state", string(from)),
			zap.Error(err))
	}
	return err
}

func (e *Engine) recordEvent(ctx context.Context, s *Session, ev bots.Event, from State) {
	action, input := audit.ActionText, ev.Text
	if ev.Kind == bots.KindButton {
		action, input = audit.ActionButton, ev.Action
	}
	e.record(ctx, s, action, fmt.Sprintf("%s -> %s: %s", from, s.State, input))
}

// record writes an audit entry. Failures are logged only.
func (e *Engine) record(ctx context.Context, s *Session, action audit.Action, summary string) {
	if e.audit == nil {
		return
	}
	err := e.audit.Log(ctx, audit.Entry{
		Timestamp: e.clock.Now(),
		ActorType: audit.ActorUser,
		ActorID:   s.ID,
		Action:    action,
		TicketID:  s.ActiveTicketID,
		Summary:   summary,
	})
	if err != nil {
		e.logger.Warn("writing audit entry", zap.String("session_id", s.ID), zap.Error(err))
	}
}

func (e *Engine) send(ctx context.Context, s *Session, text string, buttons []bots.Button) (bots.MessageRef, error) {
	ref, err := e.transport.Send(ctx, s.ID, text, buttons)
	if err != nil {
		return "", fmt.Errorf("sending to %s: %w", s.ID, err)
	}
	return ref, nil
}

func (e *Engine) edit(ctx context.Context, s *Session, ref bots.MessageRef, text string, buttons []bots.Button) error {
	if err := e.transport.Edit(ctx, s.ID, ref, text, buttons); err != nil {
		return fmt.Errorf("editing message %s for %s: %w", ref, s.ID, err)
	}
	return nil
}
