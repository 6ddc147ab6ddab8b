package session

import "github.com/ziadkadry99/supportbot/internal/ladder"

// State is a conversation position.
type State string

const (
	Start                State = "start"
	IdentificationMethod State = "identification_method"
	EnterContractNumber  State = "enter_contract_number"
	EnterAddress         State = "enter_address"
	MainMenu             State = "main_menu"
	Help                 State = "help"
	CheckBalance         State = "check_balance"
	TechnicalSupport     State = "technical_support"
	ProblemType          State = "problem_type"
	PaymentIssue         State = "payment_issue"
	ConnectionIssue      State = "connection_issue"
	RouterIssue          State = "router_issue"
	SpeedIssue           State = "speed_issue"
	OtherIssue           State = "other_issue"
	ConfirmIssue         State = "confirm_issue"
	WaitingOperator      State = "waiting_operator"
	OperatorConnected    State = "operator_connected"
	ProblemNotResolved1  State = "problem_not_resolved_1"
	ProblemNotResolved2  State = "problem_not_resolved_2"

	// anyState keys transitions valid from every state.
	anyState State = "*"
)

// AllStates lists every conversation state.
var AllStates = []State{
	Start, IdentificationMethod, EnterContractNumber, EnterAddress,
	MainMenu, Help, CheckBalance, TechnicalSupport, ProblemType,
	PaymentIssue, ConnectionIssue, RouterIssue, SpeedIssue, OtherIssue,
	ConfirmIssue, WaitingOperator, OperatorConnected,
	ProblemNotResolved1, ProblemNotResolved2,
}

var categoryStates = map[ladder.Category]State{
	ladder.CategoryPayment:    PaymentIssue,
	ladder.CategoryConnection: ConnectionIssue,
	ladder.CategoryRouter:     RouterIssue,
	ladder.CategorySpeed:      SpeedIssue,
	ladder.CategoryOther:      OtherIssue,
}

func stateForCategory(c ladder.Category) State {
	return categoryStates[c]
}
