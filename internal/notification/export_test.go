package notification

import (
	"context"

	"github.com/taskdeck/taskdeck/internal/eventbus"
)

// Handle exposes handle to external tests.
func (d *Dispatcher) Handle(ctx context.Context, event *eventbus.Event) {
	d.handle(ctx, event)
}
