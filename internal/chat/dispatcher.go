package chat

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Router sends group events to Group and everything else to Direct. A nil
// Group drops group events.
type Router struct {
	Direct Handler
	Group  Handler
}

// HandleEvent routes ev.
func (r Router) HandleEvent(ctx context.Context, ev Event) {
	if ev.IsGroup && ev.Kind != EventAction {
		if r.Group != nil {
			r.Group.HandleEvent(ctx, ev)
		}
		return
	}
	if r.Direct != nil {
		r.Direct.HandleEvent(ctx, ev)
	}
}

// Dispatch runs h for every event in its own goroutine until events is
// closed or ctx is cancelled, then waits for in-flight handlers. Handler
// panics are logged and do not stop the loop.
func Dispatch(ctx context.Context, events <-chan Event, h Handler) {
	log := zap.L().With(zap.String("component", "chat.dispatch"))

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			wg.Add(1)
			go func(ev Event) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						log.Error("handler panic",
							zap.Any("panic", r),
							zap.Int64("chat_id", ev.ChatID),
							zap.String("kind", string(ev.Kind)),
						)
					}
				}()
				h.HandleEvent(ctx, ev)
			}(ev)
		}
	}
}
