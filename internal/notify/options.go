package notify

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// PanicPolicy controls what happens when a listener panics during fan-out.
type PanicPolicy int

const (
	// PanicContinue recovers, logs and reports the panic, then keeps
	// notifying the remaining listeners and queue entries.
	PanicContinue PanicPolicy = iota
	// PanicPropagate stops the fan-out and re-panics with a
	// *ListenerPanicError in the goroutine that triggered delivery.
	PanicPropagate
)

func (p PanicPolicy) String() string {
	switch p {
	case PanicContinue:
		return "continue"
	case PanicPropagate:
		return "propagate"
	default:
		return fmt.Sprintf("PanicPolicy(%d)", int(p))
	}
}

// ParsePanicPolicy maps "continue" (or "") and "propagate" to a policy.
func ParsePanicPolicy(s string) (PanicPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "continue":
		return PanicContinue, nil
	case "propagate", "abort":
		return PanicPropagate, nil
	default:
		return PanicContinue, fmt.Errorf("unknown panic policy: %q", s)
	}
}

// Option configures a Router.
type Option func(*Router)

// WithLogger installs a structured logger. The default discards output.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Router) { r.log = l }
}

// WithPublisher installs an EventPublisher. nil restores the no-op publisher.
func WithPublisher(p EventPublisher) Option {
	return func(r *Router) {
		if p == nil {
			p = noopPublisher{}
		}
		r.pub = p
	}
}

// WithPanicPolicy selects how listener panics are handled.
func WithPanicPolicy(p PanicPolicy) Option {
	return func(r *Router) { r.policy = p }
}

// WithCoalesce keeps a single queue entry per source inside a transaction.
// The entry keeps the first old value; the new value is still read at drain
// time, so listeners see the same pair as without coalescing but are called
// once instead of once per mutation.
func WithCoalesce(on bool) Option {
	return func(r *Router) { r.coalesce = on }
}
