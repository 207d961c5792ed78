// Package notify decides when a property change reaches its listeners.
//
// A Router has two states. While active, Fire invokes the listeners of the
// changed source immediately. While a transaction is open, Fire only queues
// the (source, old value) pair; EndTransaction drains the queue in the order
// the changes happened. Listeners always receive the value the source holds
// at invocation time, so a source changed several times inside one
// transaction reports its first old value and its last new value.
//
//   - router.go: Router type, state transitions and delivery.
//   - listener.go: Listener, ChangeFunc and the Source interface.
//   - options.go: functional options and PanicPolicy.
//   - events.go: lifecycle events and publishers.
//   - errors.go: ListenerPanicError and stack capture.
//   - metrics.go: prometheus counters.
//
// Start/End requests are idempotent, not counted: two StartTransaction calls
// followed by one EndTransaction leave the router active with an empty queue.
package notify
