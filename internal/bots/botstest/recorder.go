// Package botstest provides a recording Transport for tests.
package botstest

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/ziadkadry99/supportbot/internal/bots"
)

// ErrInjected is returned by a Recorder configured to fail.
var ErrInjected = errors.New("injected transport failure")

// Message is one recorded Send or Edit.
type Message struct {
	SessionID string
	Ref       bots.MessageRef
	Text      string
	Buttons   []bots.Button
	Edit      bool
}

// Actions returns the action codes of the message's buttons.
func (m Message) Actions() []string {
	out := make([]string, len(m.Buttons))
	for i, b := range m.Buttons {
		out[i] = b.Action
	}
	return out
}

// HasAction reports whether the message offers a button with action.
func (m Message) HasAction(action string) bool {
	for _, b := range m.Buttons {
		if b.Action == action {
			return true
		}
	}
	return false
}

// Recorder is an in-memory bots.Transport. It is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	nextRef  int
	log      []Message
	acks     []string
	failSend bool
	failEdit bool
}

var _ bots.Transport = (*Recorder)(nil)

// New returns an empty Recorder.
func New() *Recorder { return &Recorder{} }

// FailSends makes subsequent Send calls fail when fail is true.
func (r *Recorder) FailSends(fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failSend = fail
}

// FailEdits makes subsequent Edit calls fail when fail is true.
func (r *Recorder) FailEdits(fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failEdit = fail
}

func (r *Recorder) Send(_ context.Context, sessionID, text string, buttons []bots.Button) (bots.MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSend {
		return "", ErrInjected
	}
	r.nextRef++
	ref := bots.MessageRef(strconv.Itoa(r.nextRef))
	r.log = append(r.log, Message{SessionID: sessionID, Ref: ref, Text: text, Buttons: copyButtons(buttons)})
	return ref, nil
}

func (r *Recorder) Edit(_ context.Context, sessionID string, ref bots.MessageRef, text string, buttons []bots.Button) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failEdit {
		return ErrInjected
	}
	r.log = append(r.log, Message{SessionID: sessionID, Ref: ref, Text: text, Buttons: copyButtons(buttons), Edit: true})
	return nil
}

func (r *Recorder) Acknowledge(_ context.Context, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acks = append(r.acks, eventID)
	return nil
}

// Messages returns every recorded Send and Edit addressed to sessionID, in
// order. An empty sessionID returns all of them.
func (r *Recorder) Messages(sessionID string) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Message
	for _, m := range r.log {
		if sessionID == "" || m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out
}

// Sends returns only the Send calls to sessionID.
func (r *Recorder) Sends(sessionID string) []Message {
	var out []Message
	for _, m := range r.Messages(sessionID) {
		if !m.Edit {
			out = append(out, m)
		}
	}
	return out
}

// Edits returns only the Edit calls to sessionID.
func (r *Recorder) Edits(sessionID string) []Message {
	var out []Message
	for _, m := range r.Messages(sessionID) {
		if m.Edit {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the most recent message to sessionID.
func (r *Recorder) Last(sessionID string) (Message, bool) {
	msgs := r.Messages(sessionID)
	if len(msgs) == 0 {
		return Message{}, false
	}
	return msgs[len(msgs)-1], true
}

// Contains reports whether any message to sessionID contains substr.
func (r *Recorder) Contains(sessionID, substr string) bool {
	for _, m := range r.Messages(sessionID) {
		if strings.Contains(m.Text, substr) {
			return true
		}
	}
	return false
}

// Acks returns the acknowledged event ids.
func (r *Recorder) Acks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.acks...)
}

// Reset forgets everything recorded so far. Refs keep increasing.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = nil
	r.acks = nil
}

func copyButtons(b []bots.Button) []bots.Button {
	if b == nil {
		return nil
	}
	return append([]bots.Button(nil), b...)
}
