package operator

import (
	"strings"
	"unicode"

	"github.com/ziadkadry99/supportbot/internal/bots"
)

// CommandKind classifies an administrative message.
type CommandKind int

const (
	CommandUnknown CommandKind = iota
	CommandOnline
	CommandReply
	CommandImplicitReply
	CommandClose
	CommandTickets
)

// Command is a parsed administrative message.
type Command struct {
	Kind     CommandKind
	TicketID string
	Text     string
	// Malformed is set when a known command is missing arguments.
	Malformed bool
}

// Parse classifies an administrative event. Free text attached to an earlier
// message is an implicit reply; slash commands are matched by name with any
// "@botname" suffix dropped.
func Parse(ev bots.Event) Command {
	if ev.Kind != bots.KindText {
		return Command{Kind: CommandUnknown}
	}
	text := strings.TrimSpace(ev.Text)

	if !strings.HasPrefix(text, "/") {
		if ev.IsReply() && text != "" {
			return Command{Kind: CommandImplicitReply, Text: text}
		}
		return Command{Kind: CommandUnknown}
	}

	name, rest := splitWord(text)
	name, _, _ = strings.Cut(name, "@")

	switch strings.ToLower(name) {
	case "/online":
		return Command{Kind: CommandOnline}
	case "/tickets":
		return Command{Kind: CommandTickets}
	case "/reply":
		id, response := splitWord(rest)
		if id == "" || response == "" {
			return Command{Kind: CommandReply, Malformed: true}
		}
		return Command{Kind: CommandReply, TicketID: id, Text: response}
	case "/close":
		id, _ := splitWord(rest)
		if id == "" {
			return Command{Kind: CommandClose, Malformed: true}
		}
		return Command{Kind: CommandClose, TicketID: id}
	}
	return Command{Kind: CommandUnknown}
}

// splitWord returns the first whitespace-delimited word of s and the
// remainder with its surrounding whitespace trimmed. Whitespace inside the
// remainder is preserved.
func splitWord(s string) (word, rest string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}
