package session

import (
	"fmt"

	"github.com/ziadkadry99/supportbot/internal/bots"
	"github.com/ziadkadry99/supportbot/internal/ladder"
)

// Button action codes.
const (
	ActionByContract       = "by_contract"
	ActionByAddress        = "by_address"
	ActionBackToMenu       = "back_to_menu"
	ActionHelp             = "help"
	ActionCheckBalance     = "check_balance"
	ActionTechnicalSupport = "technical_support"
	ActionPaymentIssue     = "payment_issue"
	ActionConnectionIssue  = "connection_issue"
	ActionRouterIssue      = "router_issue"
	ActionSpeedIssue       = "speed_issue"
	ActionOtherIssue       = "other_issue"
	ActionResolved         = "problem_resolved"
	ActionNotResolved      = "problem_not_resolved"
	ActionToOperator       = "to_operator"
	ActionRetryOperator    = "retry_operator"
	ActionConfirmIssue     = "confirm_issue"
	ActionCancelIssue      = "cancel_issue"
	ActionCloseTicket      = "close_ticket"
	ActionResumeTicket     = "resume_ticket"
	ActionNewProblem       = "new_problem"
	ActionResponseYes      = "operator_response_yes"
	ActionResponseNo       = "operator_response_no"
)

var categoryActions = map[string]ladder.Category{
	ActionPaymentIssue:    ladder.CategoryPayment,
	ActionConnectionIssue: ladder.CategoryConnection,
	ActionRouterIssue:     ladder.CategoryRouter,
	ActionSpeedIssue:      ladder.CategorySpeed,
}

const (
	textWelcome          = "Welcome! Please choose how to identify yourself:"
	textEnterContract    = "Enter your contract number:"
	textEnterAddress     = "Enter your address (for example, 10 Central St, apt 5):"
	textIdentified       = "Thank you, you are identified."
	textMainMenu         = "Choose an action:"
	textHelp             = "Help\n\n- Check balance: see the state of your account.\n- Technical support: get help with internet or router problems.\nChoose an action in the main menu."
	textChooseProblem    = "Choose the problem type:"
	textDescribeProblem  = "Describe your problem:"
	textOpenTicket       = "You already have an open ticket. What would you like to do?"
	textInvalid          = "Invalid input. Please use the buttons below."
	textStaleEdit        = "Error: the message to edit was not found."
	textDidItHelp        = "Did this help?"
	textOfferOperator    = "The suggested steps did not help. Would you like to contact an operator?"
	textProblemSolved    = "Problem solved!"
	textGreat            = "Great! The problem is solved."
	textOffline          = "The operator is offline now. Try later or use other options."
	textStillOffline     = "The operator is still offline. Try again?"
	textQueued           = "You're in the queue to connect with an operator. Please wait."
	textConnected        = "Operator connected. Describe your problem to the operator:"
	textPassed           = "Your message was passed to the operator. Please wait for an answer."
	textTicketClosed     = "Ticket closed."
	textNoTicket         = "You have no open ticket."
	textOperatorClosed   = "The operator closed your ticket."
	textResponseYes      = "Great! Do you have any other questions?"
	textResponseNo       = "Sorry that did not help. Try describing the problem to the operator in more detail."
	additionalMessagePre = "Additional message: "
)

func balanceText(balance int) string {
	return fmt.Sprintf("Your balance: %d UAH.", balance)
}

func confirmText(details string) string {
	return fmt.Sprintf("You described the problem: %s. Confirm?", details)
}

func responseText(response string) string {
	return "Operator response: " + response
}

func introText(c ladder.Category) string {
	return c.Title() + ". Try the following:"
}

func remedyText(r ladder.Remedy) string {
	return r.Text + "\n\n" + textDidItHelp
}

var (
	backButton = bots.Button{Label: "Return to main menu", Action: ActionBackToMenu}

	identificationButtons = []bots.Button{
		{Label: "By contract number", Action: ActionByContract},
		{Label: "By address", Action: ActionByAddress},
	}
	mainMenuButtons = []bots.Button{
		{Label: "Help", Action: ActionHelp},
		{Label: "Check balance", Action: ActionCheckBalance},
		{Label: "Technical support", Action: ActionTechnicalSupport},
	}
	problemTypeButtons = []bots.Button{
		{Label: "Payment issue", Action: ActionPaymentIssue},
		{Label: "Connection issue", Action: ActionConnectionIssue},
		{Label: "Router issue", Action: ActionRouterIssue},
		{Label: "Low speed", Action: ActionSpeedIssue},
		{Label: "Other", Action: ActionOtherIssue},
		backButton,
	}
	openTicketButtons = []bots.Button{
		{Label: "Continue with the operator", Action: ActionResumeTicket},
		{Label: "Close ticket", Action: ActionCloseTicket},
		{Label: "Report a new problem", Action: ActionNewProblem},
		backButton,
	}
	introButtons = []bots.Button{
		{Label: "Show a solution", Action: ActionNotResolved},
		backButton,
	}
	remedyButtons = []bots.Button{
		{Label: "Yes", Action: ActionResolved},
		{Label: "No", Action: ActionNotResolved},
		backButton,
	}
	offerOperatorButtons = []bots.Button{
		{Label: "Contact an operator", Action: ActionToOperator},
		{Label: "It's solved", Action: ActionResolved},
		backButton,
	}
	confirmButtons = []bots.Button{
		{Label: "Confirm", Action: ActionConfirmIssue},
		{Label: "Cancel", Action: ActionCancelIssue},
		backButton,
	}
	retryButtons = []bots.Button{
		{Label: "Try again", Action: ActionRetryOperator},
		backButton,
	}
	connectedButtons = []bots.Button{
		{Label: "Close ticket", Action: ActionCloseTicket},
		backButton,
	}
	responseButtons = []bots.Button{
		{Label: "Yes", Action: ActionResponseYes},
		{Label: "No", Action: ActionResponseNo},
		backButton,
	}
	backOnly = []bots.Button{backButton}
)

// reentryButtons are offered with the invalid-input reply so the user can
// continue from the state they are in.
func reentryButtons(s State) []bots.Button {
	switch s {
	case Start, IdentificationMethod:
		return identificationButtons
	case MainMenu, Help, CheckBalance:
		return mainMenuButtons
	case TechnicalSupport:
		return openTicketButtons
	case ProblemType:
		return problemTypeButtons
	case ConfirmIssue:
		return confirmButtons
	case OperatorConnected:
		return connectedButtons
	case ProblemNotResolved1:
		return remedyButtons
	case ProblemNotResolved2:
		return offerOperatorButtons
	default:
		return backOnly
	}
}
