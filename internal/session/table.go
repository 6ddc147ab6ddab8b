package session

import (
	"context"

	"github.com/ziadkadry99/supportbot/internal/bots"
)

// handler applies one transition. It runs on the session's actor.
type handler func(e *Engine, ctx context.Context, s *Session, ev bots.Event) error

// key identifies a transition. Text events use an empty action; anyAction
// matches every button of a state.
type key struct {
	state  State
	kind   bots.EventKind
	action string
}

const anyAction = "*"

func textKey(s State) key {
	return key{state: s, kind: bots.KindText}
}

func buttonKey(s State, action string) key {
	return key{state: s, kind: bots.KindButton, action: action}
}

// transitions is the complete table, built once at init.
var transitions map[key]handler

func init() {
	transitions = buildTransitions()
}

func buildTransitions() map[key]handler {
	t := map[key]handler{
		textKey(Start):              (*Engine).onStart,
		buttonKey(Start, anyAction): (*Engine).onStart,

		buttonKey(anyState, ActionBackToMenu):  (*Engine).onBackToMenu,
		buttonKey(anyState, ActionCloseTicket): (*Engine).onCloseTicket,
		buttonKey(anyState, ActionResponseYes): (*Engine).onResponseYes,
		buttonKey(anyState, ActionResponseNo):  (*Engine).onResponseNo,

		buttonKey(IdentificationMethod, ActionByContract): (*Engine).onByContract,
		buttonKey(IdentificationMethod, ActionByAddress):  (*Engine).onByAddress,
		buttonKey(EnterContractNumber, ActionByAddress):   (*Engine).onByAddress,
		buttonKey(EnterAddress, ActionByContract):         (*Engine).onByContract,
		textKey(EnterContractNumber):                      (*Engine).onContractNumber,
		textKey(EnterAddress):                             (*Engine).onAddress,

		buttonKey(TechnicalSupport, ActionResumeTicket): (*Engine).onResumeTicket,
		buttonKey(TechnicalSupport, ActionNewProblem):   (*Engine).onNewProblem,

		buttonKey(ProblemType, ActionOtherIssue): (*Engine).onOtherIssue,
		textKey(OtherIssue):                      (*Engine).onDescribeIssue,
		textKey(ConfirmIssue):                    (*Engine).onDescribeIssue,

		buttonKey(ConfirmIssue, ActionConfirmIssue):  (*Engine).onToOperator,
		buttonKey(ConfirmIssue, ActionCancelIssue):   (*Engine).onCancelIssue,
		buttonKey(ConfirmIssue, ActionRetryOperator): (*Engine).onRetryOperator,

		buttonKey(ProblemNotResolved1, ActionResolved):    (*Engine).onResolved,
		buttonKey(ProblemNotResolved1, ActionNotResolved): (*Engine).onNotResolved,

		buttonKey(ProblemNotResolved2, ActionResolved):      (*Engine).onResolved,
		buttonKey(ProblemNotResolved2, ActionToOperator):    (*Engine).onToOperator,
		buttonKey(ProblemNotResolved2, ActionRetryOperator): (*Engine).onRetryOperator,

		textKey(WaitingOperator):   (*Engine).onQueuedText,
		textKey(OperatorConnected): (*Engine).onOperatorMessage,
	}

	for _, s := range []State{MainMenu, Help, CheckBalance} {
		t[buttonKey(s, ActionHelp)] = (*Engine).onHelp
		t[buttonKey(s, ActionCheckBalance)] = (*Engine).onCheckBalance
		t[buttonKey(s, ActionTechnicalSupport)] = (*Engine).onTechnicalSupport
	}

	for action := range categoryActions {
		t[buttonKey(ProblemType, action)] = (*Engine).onCategory
	}
	for _, s := range categoryStates {
		if s != OtherIssue {
			t[textKey(s)] = (*Engine).onLadderRetry
		}
	}
	return t
}

// lookup resolves the handler for ev in state s: an exact match first, then
// a state-wide button match, then a transition valid in every state.
func lookup(s State, ev bots.Event) handler {
	k := key{state: s, kind: ev.Kind}
	if ev.Kind == bots.KindButton {
		k.action = ev.Action
	}
	if h, ok := transitions[k]; ok {
		return h
	}
	if ev.Kind == bots.KindButton {
		if h, ok := transitions[buttonKey(s, anyAction)]; ok {
			return h
		}
	}
	k.state = anyState
	if h, ok := transitions[k]; ok {
		return h
	}
	return nil
}
