package notify

// Event is published on every router transition and delivery. Path is the
// source's position in its tree when the source knows it; Fields carries
// counts such as queue depth or listener totals.
type Event struct {
	Name   string
	Path   string
	Fields map[string]any
}

// Event names published by the router.
const (
	EventTransactionStart = "transaction_start"
	EventTransactionEnd   = "transaction_end"
	EventQueued           = "queued"
	EventDelivered        = "delivered"
	EventListenerPanic    = "listener_panic"
)

// EventPublisher observes a router. Publish runs on the goroutine that
// caused the event, outside the router lock; it must not block or call
// back into the router.
type EventPublisher interface {
	Publish(Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
