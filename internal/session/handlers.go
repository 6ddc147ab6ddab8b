package session

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ziadkadry99/supportbot/internal/audit"
	"github.com/ziadkadry99/supportbot/internal/bots"
	"github.com/ziadkadry99/supportbot/internal/customers"
	"github.com/ziadkadry99/supportbot/internal/ladder"
	"github.com/ziadkadry99/supportbot/internal/tickets"
)

// invalid answers input the current state has no transition for. The state
// does not change.
func (e *Engine) invalid(ctx context.Context, s *Session) error {
	_, err := e.send(ctx, s, textInvalid, reentryButtons(s.State))
	return err
}

// staleTarget reports a transition whose edit target is gone. The state
// does not change.
func (e *Engine) staleTarget(ctx context.Context, s *Session) error {
	e.logger.Warn("no pending edit target",
		zap.String("session_id", s.ID),
		zap.String("state", string(s.State)))
	if _, err := e.send(ctx, s, textStaleEdit, backOnly); err != nil {
		return err
	}
	return ErrStaleEditTarget
}

func (e *Engine) showIdentification(ctx context.Context, s *Session) error {
	s.State = IdentificationMethod
	_, err := e.send(ctx, s, textWelcome, identificationButtons)
	return err
}

// showMainMenu moves to MainMenu. A non-empty lead is sent in the same
// message, above the menu.
func (e *Engine) showMainMenu(ctx context.Context, s *Session, lead string) error {
	s.State = MainMenu
	text := textMainMenu
	if lead != "" {
		text = lead + "\n\n" + textMainMenu
	}
	_, err := e.send(ctx, s, text, mainMenuButtons)
	return err
}

// toMenu returns to the main menu, or to the identification prompt when the
// session has not identified itself yet.
func (e *Engine) toMenu(ctx context.Context, s *Session, lead string) error {
	if !s.Identified {
		if lead != "" {
			if _, err := e.send(ctx, s, lead, nil); err != nil {
				return err
			}
		}
		return e.showIdentification(ctx, s)
	}
	return e.showMainMenu(ctx, s, lead)
}

func (e *Engine) showProblemTypes(ctx context.Context, s *Session) error {
	s.State = ProblemType
	_, err := e.send(ctx, s, textChooseProblem, problemTypeButtons)
	return err
}

func (e *Engine) onStart(ctx context.Context, s *Session, _ bots.Event) error {
	return e.showIdentification(ctx, s)
}

func (e *Engine) onByContract(ctx context.Context, s *Session, _ bots.Event) error {
	s.State = EnterContractNumber
	_, err := e.send(ctx, s, textEnterContract, nil)
	return err
}

func (e *Engine) onByAddress(ctx context.Context, s *Session, _ bots.Event) error {
	s.State = EnterAddress
	_, err := e.send(ctx, s, textEnterAddress, nil)
	return err
}

func (e *Engine) onContractNumber(ctx context.Context, s *Session, ev bots.Event) error {
	return e.identify(ctx, s, customers.ContractIdentity(ev.Text))
}

func (e *Engine) onAddress(ctx context.Context, s *Session, ev bots.Event) error {
	return e.identify(ctx, s, customers.AddressIdentity(ev.Text))
}

// identify records the identity and opens the main menu. Known and new
// identities produce the same transition; a lookup failure is treated as
// unknown.
func (e *Engine) identify(ctx context.Context, s *Session, id customers.Identity) error {
	if id.Kind() == customers.KindNone {
		return e.invalid(ctx, s)
	}
	if e.customers != nil {
		exists, err := e.customers.Exists(ctx, id)
		if err != nil {
			e.logger.Warn("looking up identity", zap.String("session_id", s.ID), zap.Error(err))
		}
		if !exists {
			if err := e.customers.Save(ctx, s.ID, id); err != nil {
				e.logger.Warn("saving identity", zap.String("session_id", s.ID), zap.Error(err))
			}
		}
	}
	s.Identity = id
	s.Identified = true
	e.record(ctx, s, audit.ActionIdentified, id.Display())
	return e.showMainMenu(ctx, s, textIdentified)
}

func (e *Engine) onHelp(ctx context.Context, s *Session, _ bots.Event) error {
	s.State = Help
	_, err := e.send(ctx, s, textHelp, backOnly)
	return err
}

func (e *Engine) onCheckBalance(ctx context.Context, s *Session, _ bots.Event) error {
	s.State = CheckBalance
	_, err := e.send(ctx, s, balanceText(e.balance(s.ID)), backOnly)
	return err
}

// openTicket reports whether the session still owns an open ticket. A stale
// id is dropped.
func (e *Engine) openTicket(s *Session) bool {
	if s.ActiveTicketID == "" {
		return false
	}
	if owner, ok := e.registry.Owner(s.ActiveTicketID); ok && owner == s.ID {
		return true
	}
	s.ActiveTicketID = ""
	return false
}

func (e *Engine) onTechnicalSupport(ctx context.Context, s *Session, _ bots.Event) error {
	if e.openTicket(s) {
		s.State = TechnicalSupport
		_, err := e.send(ctx, s, textOpenTicket, openTicketButtons)
		return err
	}
	return e.showProblemTypes(ctx, s)
}

func (e *Engine) onResumeTicket(ctx context.Context, s *Session, _ bots.Event) error {
	if !e.openTicket(s) {
		return e.showProblemTypes(ctx, s)
	}
	e.cancelWait(s)
	return e.connect(ctx, s)
}

func (e *Engine) onNewProblem(ctx context.Context, s *Session, _ bots.Event) error {
	return e.showProblemTypes(ctx, s)
}

// onCategory starts the remedy ladder of the chosen category.
func (e *Engine) onCategory(ctx context.Context, s *Session, ev bots.Event) error {
	c := categoryActions[ev.Action]
	s.Ladder.Start(c)
	s.ProblemDetails = ""
	s.PendingEdit = ""
	s.State = stateForCategory(c)
	return e.emitIntro(ctx, s)
}

// onLadderRetry re-sends the category intro after a failed send.
func (e *Engine) onLadderRetry(ctx context.Context, s *Session, _ bots.Event) error {
	s.Ladder.Start(s.Ladder.Category)
	return e.emitIntro(ctx, s)
}

// emitIntro sends the message every later remedy is edited into. On failure
// the session stays in the category state.
func (e *Engine) emitIntro(ctx context.Context, s *Session) error {
	ref, err := e.send(ctx, s, introText(s.Ladder.Category), introButtons)
	if err != nil {
		return err
	}
	s.PendingEdit = ref
	s.State = ProblemNotResolved1
	return nil
}

// onNotResolved shows the next remedy in place, or the operator offer once
// the ladder is exhausted.
func (e *Engine) onNotResolved(ctx context.Context, s *Session, _ bots.Event) error {
	if s.PendingEdit == "" {
		return e.staleTarget(ctx, s)
	}
	step := s.Ladder.Next()
	if step.Handoff {
		if err := e.edit(ctx, s, s.PendingEdit, textOfferOperator, offerOperatorButtons); err != nil {
			return err
		}
		s.State = ProblemNotResolved2
		return nil
	}
	if err := e.edit(ctx, s, s.PendingEdit, remedyText(step.Remedy), remedyButtons); err != nil {
		s.Ladder.Attempted = s.Ladder.Attempted[:len(s.Ladder.Attempted)-1]
		return err
	}
	return nil
}

func (e *Engine) onResolved(ctx context.Context, s *Session, _ bots.Event) error {
	s.Ladder.Reset()
	s.ProblemDetails = ""
	if s.PendingEdit != "" {
		if err := e.edit(ctx, s, s.PendingEdit, textProblemSolved, nil); err != nil {
			e.logger.Warn("finalizing remedy message", zap.String("session_id", s.ID), zap.Error(err))
		}
		s.PendingEdit = ""
	}
	if _, err := e.send(ctx, s, textGreat, nil); err != nil {
		return err
	}
	return e.showMainMenu(ctx, s, "")
}

func (e *Engine) onOtherIssue(ctx context.Context, s *Session, _ bots.Event) error {
	s.Ladder.Start(ladder.CategoryOther)
	s.ProblemDetails = ""
	s.PendingEdit = ""
	s.State = OtherIssue
	_, err := e.send(ctx, s, textDescribeProblem, backOnly)
	return err
}

// onDescribeIssue records a free-text description and asks for
// confirmation. Describing again replaces the earlier text.
func (e *Engine) onDescribeIssue(ctx context.Context, s *Session, ev bots.Event) error {
	s.ProblemDetails = ev.Text
	ref, err := e.send(ctx, s, confirmText(ev.Text), confirmButtons)
	if err != nil {
		return err
	}
	s.PendingEdit = ref
	s.State = ConfirmIssue
	return nil
}

func (e *Engine) onCancelIssue(ctx context.Context, s *Session, _ bots.Event) error {
	s.ProblemDetails = ""
	s.PendingEdit = ""
	s.Ladder.Reset()
	return e.showMainMenu(ctx, s, "")
}

func (e *Engine) onToOperator(ctx context.Context, s *Session, _ bots.Event) error {
	return e.handOff(ctx, s, false)
}

func (e *Engine) onRetryOperator(ctx context.Context, s *Session, _ bots.Event) error {
	return e.handOff(ctx, s, true)
}

func (e *Engine) onQueuedText(ctx context.Context, s *Session, _ bots.Event) error {
	_, err := e.send(ctx, s, textQueued, backOnly)
	return err
}

// onOperatorMessage forwards user text to the ticket's admin notification.
func (e *Engine) onOperatorMessage(ctx context.Context, s *Session, ev bots.Event) error {
	if !e.openTicket(s) {
		return e.showMainMenu(ctx, s, textNoTicket)
	}
	line := additionalMessagePre + ev.Text
	err := e.registry.AppendToNotification(ctx, s.ActiveTicketID, line)
	if errors.Is(err, tickets.ErrNoNotification) {
		if err = e.registry.NotifyAdmin(ctx, s.ActiveTicketID); err == nil {
			err = e.registry.AppendToNotification(ctx, s.ActiveTicketID, line)
		}
	}
	if err != nil {
		e.logger.Warn("forwarding message to operator",
			zap.String("session_id", s.ID),
			zap.String("ticket_id", s.ActiveTicketID),
			zap.Error(err))
	}
	e.record(ctx, s, audit.ActionTicketUpdated, ev.Text)
	_, sendErr := e.send(ctx, s, textPassed, connectedButtons)
	return sendErr
}

// onBackToMenu is valid everywhere. Any pending operator wait is cancelled;
// an open ticket stays open.
func (e *Engine) onBackToMenu(ctx context.Context, s *Session, _ bots.Event) error {
	e.cancelWait(s)
	s.Ladder.Resolve()
	s.PendingEdit = ""
	return e.toMenu(ctx, s, "")
}

func (e *Engine) onCloseTicket(ctx context.Context, s *Session, _ bots.Event) error {
	if s.ActiveTicketID == "" {
		return e.invalid(ctx, s)
	}
	id := s.ActiveTicketID
	if _, err := e.registry.Close(ctx, id, tickets.ClosedByUser); err != nil {
		e.logger.Warn("closing ticket", zap.String("ticket_id", id), zap.Error(err))
	}
	e.cancelWait(s)
	e.record(ctx, s, audit.ActionTicketClosed, fmt.Sprintf("ticket %s closed by user", id))
	s.ActiveTicketID = ""
	s.PendingEdit = ""
	return e.toMenu(ctx, s, textTicketClosed)
}

func (e *Engine) onResponseYes(ctx context.Context, s *Session, _ bots.Event) error {
	if !e.openTicket(s) {
		return e.invalid(ctx, s)
	}
	_, err := e.send(ctx, s, textResponseYes, connectedButtons)
	return err
}

func (e *Engine) onResponseNo(ctx context.Context, s *Session, _ bots.Event) error {
	if !e.openTicket(s) {
		return e.invalid(ctx, s)
	}
	e.cancelWait(s)
	s.State = OperatorConnected
	_, err := e.send(ctx, s, textResponseNo, connectedButtons)
	return err
}

// onOperatorResponse shows an operator answer. Responses for a ticket the
// session no longer tracks are dropped.
func (e *Engine) onOperatorResponse(ctx context.Context, s *Session, ticketID, response string) error {
	if s.ActiveTicketID != ticketID {
		e.logger.Info("dropping response for inactive ticket",
			zap.String("session_id", s.ID), zap.String("ticket_id", ticketID))
		return nil
	}
	if s.State == WaitingOperator {
		e.cancelWait(s)
		s.State = OperatorConnected
	}
	_, err := e.send(ctx, s, responseText(response), responseButtons)
	return err
}

func (e *Engine) onOperatorClose(ctx context.Context, s *Session, ticketID string) error {
	if s.ActiveTicketID != ticketID {
		return nil
	}
	e.cancelWait(s)
	s.ActiveTicketID = ""
	s.PendingEdit = ""
	return e.toMenu(ctx, s, textOperatorClosed)
}
