package bots

import "context"

// Platform identifies the messaging platform.
type Platform string

const (
	PlatformTelegram Platform = "telegram"
	PlatformConsole  Platform = "console"
)

// EventKind distinguishes free text from button selections.
type EventKind string

const (
	KindText   EventKind = "text"
	KindButton EventKind = "button"
)

// MessageRef is an opaque handle to a message previously sent through a
// Transport. It is only meaningful to the transport that issued it.
type MessageRef string

// Event is a single inbound occurrence scoped to one session.
type Event struct {
	ID        string
	Platform  Platform
	SessionID string
	Kind      EventKind
	// Text is set for KindText.
	Text string
	// Action is the button action code, set for KindButton.
	Action string
	// ReplyToText and ReplyToRef describe the message a text event replies
	// to, when the platform reports one.
	ReplyToText string
	ReplyToRef  MessageRef
	UserName    string
}

// IsReply reports whether the event answers an earlier message.
func (e Event) IsReply() bool {
	return e.ReplyToRef != "" || e.ReplyToText != ""
}

// Button is one selectable choice attached to an outbound message.
type Button struct {
	Label  string
	Action string
}

// Transport delivers outbound messages.
type Transport interface {
	Send(ctx context.Context, sessionID, text string, buttons []Button) (MessageRef, error)
	// Edit replaces the text and buttons of an earlier message. An empty
	// button list removes any buttons.
	Edit(ctx context.Context, sessionID string, ref MessageRef, text string, buttons []Button) error
	// Acknowledge tells the platform a button event was received.
	Acknowledge(ctx context.Context, eventID string) error
}
