package dispatcher

import (
	"context"

	"github.com/garyjia/site-qms/internal/domain/event"
)

// Handler processes domain events
type Handler func(ctx context.Context, evt *event.Event) error

// subscription is a named handler bound to one event type
type subscription struct {
	name      string
	eventType event.Type
	handler   Handler
}
