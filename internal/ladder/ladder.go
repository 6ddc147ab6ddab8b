// Package ladder holds the self-service remedy ladders offered before a
// problem is handed to the operator.
package ladder

// Category is a problem type a user can pick.
type Category string

const (
	CategoryNone       Category = ""
	CategoryPayment    Category = "payment"
	CategoryConnection Category = "connection"
	CategoryRouter     Category = "router"
	CategorySpeed      Category = "speed"
	CategoryOther      Category = "other"
)

// Title is the human-readable category name used in prompts and tickets.
func (c Category) Title() string {
	switch c {
	case CategoryPayment:
		return "Payment issue"
	case CategoryConnection:
		return "Connection issue"
	case CategoryRouter:
		return "Router issue"
	case CategorySpeed:
		return "Low speed"
	case CategoryOther:
		return "Other"
	default:
		return "Unknown"
	}
}

// Remedy is one self-service step.
type Remedy struct {
	ID   string
	Text string
}

var ladders = map[Category][]Remedy{
	CategoryPayment: {
		{ID: "check_payment", Text: "Check the payment status in your personal account or repeat the payment."},
		{ID: "pay_now", Text: "Pay using the link: https://example.com/pay"},
	},
	CategoryConnection: {
		{ID: "check_cable", Text: "Check that the cable is connected to the router and the computer."},
		{ID: "restart_router", Text: "Turn the router off for 10 seconds, then turn it back on."},
	},
	CategoryRouter: {
		{ID: "check_leds", Text: "Check that the indicator lights on the router are green."},
		{ID: "reset_router", Text: "Hold the Reset button on the router for 5 seconds."},
	},
	CategorySpeed: {
		{ID: "check_speed", Text: "Measure your speed at speedtest.net."},
		{ID: "optimize_wifi", Text: "Change the Wi-Fi channel in the router settings."},
	},
}

// Remedies returns a copy of the ladder for c. Categories without a ladder
// return nil.
func Remedies(c Category) []Remedy {
	steps := ladders[c]
	if steps == nil {
		return nil
	}
	out := make([]Remedy, len(steps))
	copy(out, steps)
	return out
}

// HasLadder reports whether c offers self-service remedies.
func HasLadder(c Category) bool { return len(ladders[c]) > 0 }

// Step is the outcome of Next: either a remedy to show, or the hand-off offer.
type Step struct {
	Remedy  Remedy
	Handoff bool
}

// Progress tracks which remedies a session has been offered for its current
// category. The zero value has no category.
type Progress struct {
	Category  Category `json:"category"`
	Attempted []string `json:"attempted,omitempty"`
}

// Start switches to category c and forgets every earlier attempt.
func (p *Progress) Start(c Category) {
	p.Category = c
	p.Attempted = nil
}

// Next returns the first remedy of the current ladder not yet attempted and
// records it. Once the ladder is exhausted, or the category has none, it
// returns the hand-off step without recording anything.
func (p *Progress) Next() Step {
	for _, r := range ladders[p.Category] {
		if !p.attempted(r.ID) {
			p.Attempted = append(p.Attempted, r.ID)
			return Step{Remedy: r}
		}
	}
	return Step{Handoff: true}
}

// Resolve clears the attempts. The category stays until a new one is started.
func (p *Progress) Resolve() {
	p.Attempted = nil
}

// Reset clears both the category and the attempts.
func (p *Progress) Reset() {
	p.Category = CategoryNone
	p.Attempted = nil
}

func (p *Progress) attempted(id string) bool {
	for _, a := range p.Attempted {
		if a == id {
			return true
		}
	}
	return false
}
