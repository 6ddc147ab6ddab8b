package tickets

import (
	"fmt"
	"regexp"
	"strings"
)

// HeaderMarker opens every administrative ticket notification.
const HeaderMarker = "📩"

// headerPattern matches the first line of a notification. Bold markers are
// tolerated so messages rendered with markdown still parse.
var headerPattern = regexp.MustCompile(`^\s*` + HeaderMarker + `\s*(?:\*\*)?New ticket \(ID: ([^\s()]+)\)`)

// Header returns the parseable header line embedding id.
func Header(id string) string {
	return fmt.Sprintf("%s New ticket (ID: %s)", HeaderMarker, id)
}

// ParseHeader scans text line by line for a notification header and returns
// the embedded ticket id.
func ParseHeader(text string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		if m := headerPattern.FindStringSubmatch(line); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// Render produces the initial notification text for t.
func Render(t Ticket) string {
	details := t.ProblemDetails
	if details == "" {
		details = "Not specified"
	}
	identity := t.Identity
	if identity == "" {
		identity = "Unidentified"
	}

	var b strings.Builder
	b.WriteString(Header(t.ID))
	fmt.Fprintf(&b, "\nUser: %s", t.SessionID)
	fmt.Fprintf(&b, "\n%s", identity)
	fmt.Fprintf(&b, "\nProblem type: %s", t.ProblemType)
	fmt.Fprintf(&b, "\nDetails: %s", details)
	return b.String()
}
