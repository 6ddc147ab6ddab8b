package bots

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// Console is a line-oriented transport for local use. Input lines are read
// as events for the current session:
//
//	hello             free text
//	!check_balance    button with action check_balance
//	>3 some answer    free text replying to message #3
//	/as admin         switch the current session to "admin"
//
// Any other line starting with "/" is passed through as text so operator
// commands work when acting as the administrative session.
type Console struct {
	out io.Writer

	mu       sync.Mutex
	session  string
	nextRef  int
	nextID   int
	messages map[MessageRef]string
}

// NewConsole writes outbound messages to out, starting as session.
func NewConsole(out io.Writer, session string) *Console {
	return &Console{out: out, session: session, messages: make(map[MessageRef]string)}
}

// Run reads in line by line until EOF or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader, gateway *Gateway) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errc:
					return err
				default:
					return nil
				}
			}
			ev, ok := c.parse(line)
			if !ok {
				continue
			}
			if err := gateway.Process(ctx, ev); err != nil {
				c.printf("! %v\n", err)
			}
		}
	}
}

// parse turns one input line into an event.
func (c *Console) parse(line string) (Event, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Event{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if rest, ok := strings.CutPrefix(line, "/as "); ok {
		c.session = strings.TrimSpace(rest)
		fmt.Fprintf(c.out, "(now acting as %s)\n", c.session)
		return Event{}, false
	}

	c.nextID++
	ev := Event{
		ID:        strconv.Itoa(c.nextID),
		Platform:  PlatformConsole,
		SessionID: c.session,
		Kind:      KindText,
		Text:      line,
	}

	switch {
	case strings.HasPrefix(line, "!"):
		ev.Kind = KindButton
		ev.Text = ""
		ev.Action = strings.TrimSpace(line[1:])
	case strings.HasPrefix(line, ">"):
		refStr, text, _ := strings.Cut(line[1:], " ")
		ref := MessageRef(refStr)
		ev.Text = strings.TrimSpace(text)
		ev.ReplyToRef = ref
		ev.ReplyToText = c.messages[ref]
	}
	return ev, true
}

// Send prints a message and remembers its text for later replies.
func (c *Console) Send(_ context.Context, sessionID, text string, buttons []Button) (MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextRef++
	ref := MessageRef(strconv.Itoa(c.nextRef))
	c.messages[ref] = text
	c.render(sessionID, ref, "", text, buttons)
	return ref, nil
}

// Edit reprints a message under its original ref.
func (c *Console) Edit(_ context.Context, sessionID string, ref MessageRef, text string, buttons []Button) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.messages[ref]; !ok {
		return fmt.Errorf("editing %s/%s: no such message", sessionID, ref)
	}
	c.messages[ref] = text
	c.render(sessionID, ref, " (edited)", text, buttons)
	return nil
}

// Acknowledge is a no-op on the console.
func (c *Console) Acknowledge(context.Context, string) error { return nil }

func (c *Console) render(sessionID string, ref MessageRef, note, text string, buttons []Button) {
	fmt.Fprintf(c.out, "[%s] #%s%s\n", sessionID, ref, note)
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(c.out, "  %s\n", line)
	}
	for _, b := range buttons {
		fmt.Fprintf(c.out, "  [!%s] %s\n", b.Action, b.Label)
	}
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}
