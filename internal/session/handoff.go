package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/ziadkadry99/supportbot/internal/audit"
	"github.com/ziadkadry99/supportbot/internal/tickets"
)

// handOff opens a ticket for the session's problem and queues the user for
// the operator. Every outcome is edited into the pending message. When the
// operator is offline no ticket is created and the pending message is kept
// so the retry edits it again.
func (e *Engine) handOff(ctx context.Context, s *Session, retry bool) error {
	if s.PendingEdit == "" {
		return e.staleTarget(ctx, s)
	}

	if !e.registry.OperatorOnline() {
		text := textOffline
		if retry {
			text = textStillOffline
		}
		e.record(ctx, s, audit.ActionHandoffRefused, "operator offline")
		return e.edit(ctx, s, s.PendingEdit, text, retryButtons)
	}

	if s.ActiveTicketID != "" {
		if _, err := e.registry.Close(ctx, s.ActiveTicketID, tickets.ClosedByAbandoned); err != nil {
			e.logger.Debug("abandoning previous ticket",
				zap.String("ticket_id", s.ActiveTicketID), zap.Error(err))
		}
	}

	t := e.registry.Create(ctx, s.ID, s.ProblemType(), s.ProblemDetails, s.Identity.Display())
	s.ActiveTicketID = t.ID
	if err := e.registry.NotifyAdmin(ctx, t.ID); err != nil {
		e.logger.Warn("notifying operator", zap.String("ticket_id", t.ID), zap.Error(err))
	}
	e.record(ctx, s, audit.ActionTicketCreated, t.ProblemType)

	if err := e.edit(ctx, s, s.PendingEdit, textQueued, backOnly); err != nil {
		e.logger.Warn("showing queue message", zap.String("session_id", s.ID), zap.Error(err))
	}
	s.State = WaitingOperator
	e.startWait(ctx, s)
	return nil
}

// startWait schedules the operator connected prompt. A zero delay connects
// at once.
func (e *Engine) startWait(ctx context.Context, s *Session) {
	e.cancelWait(s)
	if e.connectDelay <= 0 {
		if err := e.connect(ctx, s); err != nil {
			e.logger.Warn("connecting operator", zap.String("session_id", s.ID), zap.Error(err))
		}
		return
	}

	token := e.waitSeq.Add(1)
	id := s.ID
	s.wait = &pendingWait{token: token}
	s.wait.timer = e.clock.AfterFunc(e.connectDelay, func() {
		err := e.post(e.ctx, id, false, envelope{fn: func(ctx context.Context, cur *Session) error {
			return e.onWaitElapsed(ctx, cur, token)
		}})
		if err != nil {
			e.logger.Debug("delivering operator wait", zap.String("session_id", id), zap.Error(err))
		}
	})
}

// cancelWait stops a pending wait. A timer that already fired finds no
// matching wait and does nothing.
func (e *Engine) cancelWait(s *Session) {
	if s.wait == nil {
		return
	}
	if s.wait.timer != nil {
		s.wait.timer.Stop()
	}
	s.wait = nil
}

func (e *Engine) onWaitElapsed(ctx context.Context, s *Session, token uint64) error {
	if s.wait == nil || s.wait.token != token || s.State != WaitingOperator {
		return nil
	}
	s.wait = nil
	return e.connect(ctx, s)
}

func (e *Engine) connect(ctx context.Context, s *Session) error {
	s.State = OperatorConnected
	_, err := e.send(ctx, s, textConnected, connectedButtons)
	return err
}
