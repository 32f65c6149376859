package event

import (
	"context"
	"log/slog"
)

// Consume drains the bus into handle until ctx is done or the bus closes
// the subscription.
func Consume(ctx context.Context, bus Bus, handle func(context.Context, Event)) {
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			handle(ctx, e)
		}
	}
}

// LogEvent writes an account event to the default logger.
func LogEvent(ctx context.Context, e Event) {
	slog.DebugContext(ctx, "account event", "event_id", e.ID, "type", e.Type, "actor_id", e.ActorID)
}
