// Package operator correlates administrative channel messages with the
// tickets they answer.
package operator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ziadkadry99/supportbot/internal/audit"
	"github.com/ziadkadry99/supportbot/internal/bots"
	"github.com/ziadkadry99/supportbot/internal/clock"
	"github.com/ziadkadry99/supportbot/internal/tickets"
)

var (
	ErrMalformedReply = errors.New("malformed reply command")
	ErrHeaderNotFound = errors.New("no ticket header in replied message")
	ErrUnknownCommand = errors.New("unknown operator command")
)

const (
	usageText       = "Use /online to toggle your status, /reply <ticketId> <response>, /close <ticketId>, /tickets, or reply directly to a ticket message."
	replyUsageText  = "Command format: /reply <ticketId> <response>"
	closeUsageText  = "Command format: /close <ticketId>"
	notFoundText    = "Ticket not found."
	noHeaderText    = "Error: the replied message does not reference a ticket."
	responsePrefix  = "Updated by operator: "
	noOpenTickets   = "No open tickets."
	operatorOnline  = "online"
	operatorOffline = "offline"
)

// Deliverer hands operator outcomes to the session owning a ticket. The
// session engine implements it by posting to the owner's actor.
type Deliverer interface {
	DeliverResponse(ctx context.Context, sessionID, ticketID, response string) error
	DeliverClose(ctx context.Context, sessionID, ticketID string) error
}

// AuditLog records operator actions.
type AuditLog interface {
	Log(ctx context.Context, entry audit.Entry) error
}

// Gateway interprets messages from the administrative channel.
type Gateway struct {
	registry  *tickets.Registry
	transport bots.Transport
	deliver   Deliverer
	audit     AuditLog
	clock     clock.Clock
	logger    *zap.Logger
}

// NewGateway wires a Gateway. audit may be nil; clk defaults to the real
// clock.
func NewGateway(reg *tickets.Registry, transport bots.Transport, deliver Deliverer, auditLog AuditLog, clk clock.Clock, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Gateway{
		registry:  reg,
		transport: transport,
		deliver:   deliver,
		audit:     auditLog,
		clock:     clk,
		logger:    logger,
	}
}

// Handle processes one administrative event. Correlation failures are
// reported to the operator and returned; no ticket or session is changed.
func (g *Gateway) Handle(ctx context.Context, ev bots.Event) error {
	cmd := Parse(ev)
	switch cmd.Kind {
	case CommandOnline:
		return g.toggle(ctx)
	case CommandTickets:
		return g.listTickets(ctx)
	case CommandReply:
		if cmd.Malformed {
			g.fail(ctx, "", replyUsageText)
			return ErrMalformedReply
		}
		return g.answer(ctx, cmd.TicketID, cmd.Text)
	case CommandImplicitReply:
		id, err := g.correlate(ev)
		if err != nil {
			g.fail(ctx, "", noHeaderText)
			return err
		}
		return g.answer(ctx, id, cmd.Text)
	case CommandClose:
		if cmd.Malformed {
			g.fail(ctx, "", closeUsageText)
			return ErrMalformedReply
		}
		return g.close(ctx, cmd.TicketID)
	default:
		g.say(ctx, usageText)
		return ErrUnknownCommand
	}
}

// correlate finds the ticket an implicit reply answers: first through the
// native message reference, then by parsing the header of the replied text.
func (g *Gateway) correlate(ev bots.Event) (string, error) {
	if ev.ReplyToRef != "" {
		if id, ok := g.registry.TicketForMessage(ev.ReplyToRef); ok {
			return id, nil
		}
	}
	if id, ok := tickets.ParseHeader(ev.ReplyToText); ok {
		return id, nil
	}
	return "", ErrHeaderNotFound
}

func (g *Gateway) answer(ctx context.Context, id, response string) error {
	owner, ok := g.registry.Owner(id)
	if !ok {
		g.fail(ctx, id, notFoundText)
		return fmt.Errorf("answering %s: %w", id, tickets.ErrTicketNotFound)
	}
	if _, err := g.registry.RecordResponse(ctx, id, response); err != nil {
		// Closed between the lookup and the write.
		g.fail(ctx, id, notFoundText)
		return fmt.Errorf("answering %s: %w", id, err)
	}

	if err := g.deliver.DeliverResponse(ctx, owner, id, response); err != nil {
		g.logger.Warn("delivering operator response",
			zap.String("ticket_id", id), zap.String("session_id", owner), zap.Error(err))
	}
	if err := g.registry.AppendToNotification(ctx, id, responsePrefix+response); err != nil {
		g.logger.Warn("appending response to notification", zap.String("ticket_id", id), zap.Error(err))
	}
	g.record(ctx, audit.ActionTicketAnswered, id, response)
	return nil
}

func (g *Gateway) close(ctx context.Context, id string) error {
	owner, ok := g.registry.Owner(id)
	if !ok {
		g.fail(ctx, id, notFoundText)
		return fmt.Errorf("closing %s: %w", id, tickets.ErrTicketNotFound)
	}
	if _, err := g.registry.Close(ctx, id, tickets.ClosedByOperator); err != nil {
		g.fail(ctx, id, notFoundText)
		return err
	}
	if err := g.deliver.DeliverClose(ctx, owner, id); err != nil {
		g.logger.Warn("delivering operator close",
			zap.String("ticket_id", id), zap.String("session_id", owner), zap.Error(err))
	}
	g.record(ctx, audit.ActionTicketClosed, id, "closed by operator")
	return nil
}

func (g *Gateway) toggle(ctx context.Context) error {
	status := operatorOffline
	if g.registry.ToggleOperatorOnline() {
		status = operatorOnline
	}
	g.say(ctx, "Operator status: "+status)
	g.record(ctx, audit.ActionOperatorToggled, "", status)
	g.logger.Info("operator status changed", zap.String("status", status))
	return nil
}

func (g *Gateway) listTickets(ctx context.Context) error {
	open := g.registry.List(tickets.StatusUnanswered, tickets.StatusAnswered)
	if len(open) == 0 {
		g.say(ctx, noOpenTickets)
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Open tickets (%d):", len(open))
	for _, t := range open {
		fmt.Fprintf(&b, "\n%s [%s] %s, user %s", t.ID, t.Status, t.ProblemType, t.SessionID)
	}
	g.say(ctx, b.String())
	return nil
}

func (g *Gateway) fail(ctx context.Context, ticketID, text string) {
	g.say(ctx, text)
	g.record(ctx, audit.ActionOperatorError, ticketID, text)
}

func (g *Gateway) say(ctx context.Context, text string) {
	if _, err := g.transport.Send(ctx, g.registry.AdminChatID(), text, nil); err != nil {
		g.logger.Warn("replying to operator", zap.Error(err))
	}
}

func (g *Gateway) record(ctx context.Context, action audit.Action, ticketID, summary string) {
	if g.audit == nil {
		return
	}
	err := g.audit.Log(ctx, audit.Entry{
		Timestamp: g.clock.Now(),
		ActorType: audit.ActorOperator,
		ActorID:   g.registry.AdminChatID(),
		Action:    action,
		TicketID:  ticketID,
		Summary:   summary,
	})
	if err != nil {
		g.logger.Warn("writing audit entry", zap.String("action", string(action)), zap.Error(err))
	}
}
