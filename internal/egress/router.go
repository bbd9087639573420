// Package egress fans accepted events out to downstream handlers by event
// type. Routing is deterministic: one table, built once at startup, handlers
// invoked synchronously in registration order.
package egress

import (
	"context"

	"github.com/nirasova/ether-gateway/internal/contract"
)

// Handler consumes one immutable event value. Handlers are side-effect-only
// and must not return an error for expected conditions; a returned error is
// an unexpected fatal failure that aborts the remaining handlers for that
// event.
type Handler func(ctx context.Context, event contract.Envelope) error

// Router is the type→handlers dispatch table. Construct one instance at
// startup and hand it to whoever needs it; there is no package singleton,
// so tests can build isolated routers.
type Router struct {
	routes map[contract.EventType][]Handler
}

// NewRouter returns an empty routing table.
func NewRouter() *Router {
	return &Router{routes: make(map[contract.EventType][]Handler)}
}

// Register appends handler to the ordered list for eventType. Registration
// happens once, at process start, never at request time, so Route needs no
// locking.
func (r *Router) Register(eventType contract.EventType, handler Handler) {
	r.routes[eventType] = append(r.routes[eventType], handler)
}

// Route dispatches event to every handler registered for its type, in
// registration order, passing the same envelope value to each. A type with
// zero handlers is not an error: Route returns (false, nil) and the event
// is silently accepted. The first handler error aborts the remainder.
func (r *Router) Route(ctx context.Context, event contract.Envelope) (bool, error) {
	handlers := r.routes[event.EventType]
	if len(handlers) == 0 {
		return false, nil
	}
	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			return true, err
		}
	}
	return true, nil
}

// HandlerCount reports how many handlers are registered for eventType.
func (r *Router) HandlerCount(eventType contract.EventType) int {
	return len(r.routes[eventType])
}
