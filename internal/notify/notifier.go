// Package notify delivers lifecycle event notifications. Events are
// dispatched to all registered senders and can be filtered by event type so
// operators receive only the alerts they care about.
package notify

import (
	"context"
	"log/slog"
	"strings"
)

// Sender is the interface each notification channel implements.
type Sender interface {
	// Send delivers one event with its payload.
	Send(ctx context.Context, event string, payload map[string]any) error
	// Name returns a human-readable identifier for the sender.
	Name() string
}

// Notifier dispatches events to one or more Senders, filtered by an allowed
// event set. Delivery is best effort: the engine never blocks a settlement
// on a notification, so callers typically ignore the returned error beyond
// logging.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. Only events
// whose type appears in the events slice are forwarded; an empty slice allows
// all event types.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify sends an event to all senders if its type is in the allowed set.
func (n *Notifier) Notify(ctx context.Context, event string, payload map[string]any) {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", event),
		)
		return
	}

	for _, s := range n.senders {
		if err := s.Send(ctx, event, payload); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("event", event),
		)
	}
}

// Noop is a Notifier that drops everything, used when no webhook is
// configured.
func Noop(logger *slog.Logger) *Notifier {
	return NewNotifier(nil, nil, logger)
}
