package notify

import (
	"reflect"
	"sync"

	"github.com/rs/zerolog"
)

// State is the router's delivery mode.
type State int

const (
	StateActive State = iota
	StateTransaction
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateTransaction:
		return "transaction"
	default:
		return "unknown"
	}
}

type entry struct {
	src      Source
	oldValue any
}

// Router routes change events either straight to listeners or onto a FIFO
// queue. The queue is empty whenever the router is active.
//
// state and queue are guarded by mu; listeners always run with mu released
// so they may change other sources or open a new transaction.
type Router struct {
	mu     sync.Mutex
	state  State
	queue  []entry
	queued map[Source]struct{}

	coalesce bool
	policy   PanicPolicy
	log      zerolog.Logger
	pub      EventPublisher
}

// New constructs an independent router in the active state.
func New(opts ...Option) *Router {
	r := &Router{
		state: StateActive,
		log:   zerolog.Nop(),
		pub:   noopPublisher{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

var (
	defaultOnce   sync.Once
	defaultRouter *Router
)

// Default returns the process-wide router used by properties that were not
// given one explicitly. It is created on first use and lives for the process.
func Default() *Router {
	defaultOnce.Do(func() { defaultRouter = New() })
	return defaultRouter
}

// StartTransaction, EndTransaction and InTransaction act on Default().
func StartTransaction()   { Default().StartTransaction() }
func EndTransaction()     { Default().EndTransaction() }
func InTransaction() bool { return Default().InTransaction() }

// State returns the current delivery mode.
func (r *Router) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// InTransaction reports whether change events are currently being queued.
func (r *Router) InTransaction() bool {
	return r.State() == StateTransaction
}

// Pending returns the number of queued change events.
func (r *Router) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Fire reports that src changed and held oldValue before the change. While
// active every listener of src is invoked now, in registration order; inside
// a transaction the event is queued and nothing is invoked.
func (r *Router) Fire(src Source, oldValue any) {
	r.mu.Lock()
	if r.state == StateTransaction {
		added := r.enqueueLocked(src, oldValue)
		depth := len(r.queue)
		r.mu.Unlock()
		if added {
			queuedTotal.Inc()
			path := sourcePath(src)
			r.log.Debug().Str("path", path).Int("depth", depth).Msg("change queued")
			r.pub.Publish(Event{Name: EventQueued, Path: path, Fields: map[string]any{"depth": depth}})
		}
		return
	}
	r.mu.Unlock()
	r.deliver(src, oldValue)
}

// enqueueLocked appends an entry, or keeps the existing one for src when
// coalescing. Sources whose dynamic type cannot be a map key are never
// coalesced. It reports whether a new entry was added.
func (r *Router) enqueueLocked(src Source, oldValue any) bool {
	if r.coalesce && reflect.TypeOf(src).Comparable() {
		if _, ok := r.queued[src]; ok {
			return false
		}
		if r.queued == nil {
			r.queued = make(map[Source]struct{})
		}
		r.queued[src] = struct{}{}
	}
	r.queue = append(r.queue, entry{src: src, oldValue: oldValue})
	return true
}

// StartTransaction switches to queueing. It is a no-op inside a transaction.
func (r *Router) StartTransaction() {
	r.mu.Lock()
	if r.state == StateTransaction {
		r.mu.Unlock()
		return
	}
	r.state = StateTransaction
	r.mu.Unlock()

	transactionsTotal.WithLabelValues("start").Inc()
	r.log.Debug().Msg("transaction started")
	r.pub.Publish(Event{Name: EventTransactionStart})
}

// EndTransaction switches back to immediate delivery and drains the queue in
// FIFO order. Each entry notifies the listeners its source has at drain time
// with the queued old value and the source's current value. It is a no-op
// while active.
func (r *Router) EndTransaction() {
	r.mu.Lock()
	if r.state == StateActive {
		r.mu.Unlock()
		return
	}
	r.state = StateActive
	pending := r.queue
	r.queue = nil
	r.queued = nil
	r.mu.Unlock()

	transactionsTotal.WithLabelValues("end").Inc()
	r.log.Debug().Int("pending", len(pending)).Msg("transaction ended")
	r.pub.Publish(Event{Name: EventTransactionEnd, Fields: map[string]any{"pending": len(pending)}})
	r.drain(pending)
}

// Transaction runs fn inside a transaction and always ends it, even when fn
// returns an error or panics. Calling it inside an open transaction still
// ends that transaction on return, since transactions do not nest.
func (r *Router) Transaction(fn func() error) error {
	r.StartTransaction()
	defer r.EndTransaction()
	return fn()
}

func (r *Router) drain(pending []entry) {
	done := 0
	defer func() {
		if rec := recover(); rec != nil {
			if dropped := len(pending) - done - 1; dropped > 0 {
				r.log.Error().Int("dropped", dropped).Msg("drain aborted by listener panic")
			}
			panic(rec)
		}
	}()
	for _, e := range pending {
		r.deliver(e.src, e.oldValue)
		done++
	}
}

func (r *Router) deliver(src Source, oldValue any) {
	listeners := src.Listeners()
	for _, l := range listeners {
		r.invoke(src, l, oldValue)
	}
	if len(listeners) > 0 {
		path := sourcePath(src)
		r.log.Debug().Str("path", path).Int("listeners", len(listeners)).Msg("change delivered")
		r.pub.Publish(Event{Name: EventDelivered, Path: path, Fields: map[string]any{"listeners": len(listeners)}})
	}
}

// invoke calls one listener with the value src holds right now.
func (r *Router) invoke(src Source, l Listener, oldValue any) {
	if l.Fn == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.handlePanic(src, l, rec)
		}
	}()
	l.Fn(oldValue, src.Get())
	deliveredTotal.Inc()
}

func (r *Router) handlePanic(src Source, l Listener, rec any) {
	err, nested := rec.(*ListenerPanicError)
	if !nested {
		err = &ListenerPanicError{
			Path:       sourcePath(src),
			ListenerID: l.ID,
			Value:      rec,
			StackTrace: captureStack(),
		}
		listenerPanicsTotal.Inc()
		r.log.Error().
			Str("path", err.Path).
			Str("listener", err.ListenerID).
			Interface("panic", rec).
			Str("stack", err.StackTrace).
			Msg("listener panicked")
		r.pub.Publish(Event{Name: EventListenerPanic, Path: err.Path, Fields: map[string]any{
			"listener": err.ListenerID,
			"policy":   r.policy.String(),
		}})
	}
	if r.policy == PanicPropagate {
		panic(err)
	}
}
