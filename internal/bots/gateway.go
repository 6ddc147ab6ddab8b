package bots

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

// ErrEmptySession is returned for events that carry no session identifier.
var ErrEmptySession = errors.New("event has no session id")

// EventHandler consumes inbound events.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev Event) error
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ctx context.Context, ev Event) error

// HandleEvent calls f.
func (f EventHandlerFunc) HandleEvent(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Gateway is the platform-agnostic bot gateway that routes inbound events
// to a handler for processing.
type Gateway struct {
	handler EventHandler
	logger  *zap.Logger
}

// NewGateway creates a new Gateway with the given event handler.
func NewGateway(handler EventHandler, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{handler: handler, logger: logger}
}

// Process normalizes an event and routes it through the handler. Text
// events with no content and button events with no action are dropped.
func (g *Gateway) Process(ctx context.Context, ev Event) error {
	if ev.SessionID == "" {
		return ErrEmptySession
	}
	switch ev.Kind {
	case KindText:
		ev.Text = strings.TrimSpace(ev.Text)
		if ev.Text == "" {
			g.logger.Debug("dropping empty text event", zap.String("session_id", ev.SessionID))
			return nil
		}
	case KindButton:
		if ev.Action == "" {
			g.logger.Debug("dropping button event without action", zap.String("session_id", ev.SessionID))
			return nil
		}
	default:
		g.logger.Debug("dropping event of unknown kind",
			zap.String("session_id", ev.SessionID), zap.String("kind", string(ev.Kind)))
		return nil
	}

	g.logger.Debug("inbound event",
		zap.String("platform", string(ev.Platform)),
		zap.String("session_id", ev.SessionID),
		zap.String("kind", string(ev.Kind)),
		zap.String("action", ev.Action))
	return g.handler.HandleEvent(ctx, ev)
}
