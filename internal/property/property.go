// Package property implements a single observable value cell.
//
// A Property holds one value, gates every mutation through an equality check
// and an optional validator, and reports each accepted mutation to its
// notify.Router. Rejected mutations are silent: the value simply stays put.
package property

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"modelkit/internal/notify"
)

// Validator decides whether a candidate value may be stored.
type Validator func(candidate any) bool

// Options configure a Property at construction. They are fixed afterwards.
type Options struct {
	// Validator gates mutations; nil accepts every value.
	Validator Validator
	// Router receives change events; nil means notify.Default().
	Router *notify.Router
	// Path names the property in logs and events.
	Path string
}

// SetOptions tune a single Set call.
type SetOptions struct {
	// SuppressNotifications stores the value without reporting the change.
	SuppressNotifications bool
}

// zlog is an optional structured logger for rejected mutations.
var zlog = zerolog.Nop()

// SetLogger installs the logger used by every Property.
func SetLogger(l zerolog.Logger) { zlog = l }

// Property is a mutable, validated, observable value cell.
//
// Listeners run with the property unlocked, so they may read or change it.
type Property struct {
	mu        sync.RWMutex
	value     any
	opts      Options
	router    *notify.Router
	listeners []notify.Listener
}

// New creates a Property holding initial. The initial value is stored as is:
// it is not validated and nothing is notified.
func New(initial any, opts Options) *Property {
	r := opts.Router
	if r == nil {
		r = notify.Default()
	}
	return &Property{value: initial, opts: opts, router: r}
}

// Get returns the current value.
func (p *Property) Get() any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// Set tries to store v and returns the value held afterwards.
//
// A nil v is a plain read. The mutation is dropped without error when v is
// the same value as the current one or when the validator rejects it.
// Otherwise v is stored and, unless so.SuppressNotifications is set, the
// router is told about the change together with the previous value.
func (p *Property) Set(v any, so SetOptions) any {
	if v == nil {
		return p.Get()
	}
	p.mu.Lock()
	old := p.value
	if SameValue(v, old) {
		p.mu.Unlock()
		rejectedTotal.WithLabelValues(reasonEqual).Inc()
		return old
	}
	if p.opts.Validator != nil && !p.opts.Validator(v) {
		p.mu.Unlock()
		rejectedTotal.WithLabelValues(reasonInvalid).Inc()
		zlog.Debug().Str("path", p.opts.Path).Interface("candidate", v).Msg("mutation rejected by validator")
		return old
	}
	p.value = v
	p.mu.Unlock()
	acceptedTotal.Inc()

	if !so.SuppressNotifications {
		p.router.Fire(p, old)
	}
	return p.Get()
}

// Validate reports whether v would pass the validator. It does not check
// equality with the current value.
func (p *Property) Validate(v any) bool {
	return p.opts.Validator == nil || p.opts.Validator(v)
}

// AddChangeCallback appends fn to the listeners under a generated identity
// tag and returns that tag.
func (p *Property) AddChangeCallback(fn notify.ChangeFunc) string {
	id := uuid.NewString()
	p.AddChangeCallbackWithID(id, fn)
	return id
}

// AddChangeCallbackWithID appends fn under an explicit identity tag. The same
// function or tag may be added more than once.
func (p *Property) AddChangeCallbackWithID(id string, fn notify.ChangeFunc) {
	p.mu.Lock()
	p.listeners = append(p.listeners, notify.Listener{ID: id, Fn: fn})
	p.mu.Unlock()
}

// Listeners returns the listeners in registration order.
func (p *Property) Listeners() []notify.Listener {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]notify.Listener, len(p.listeners))
	copy(out, p.listeners)
	return out
}

// ValidatorOptions returns the options given at construction.
func (p *Property) ValidatorOptions() Options { return p.opts }

// Path returns the name given in Options.Path.
func (p *Property) Path() string { return p.opts.Path }

// Router returns the router this property reports to.
func (p *Property) Router() *notify.Router { return p.router }
