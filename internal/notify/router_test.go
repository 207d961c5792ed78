package notify

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

// cell is a minimal Source used to drive the router without the property
// package.
type cell struct {
	path      string
	value     any
	listeners []Listener
}

func (c *cell) Get() any              { return c.value }
func (c *cell) Listeners() []Listener { return c.listeners }
func (c *cell) Path() string          { return c.path }

func (c *cell) listen(fn ChangeFunc) { c.listeners = append(c.listeners, Listener{Fn: fn}) }

// set mimics an accepted mutation.
func (c *cell) set(r *Router, v any) {
	old := c.value
	c.value = v
	r.Fire(c, old)
}

type call struct{ old, new any }

func record(calls *[]call) ChangeFunc {
	return func(o, n any) { *calls = append(*calls, call{o, n}) }
}

func TestFire_ActiveDeliversImmediately(t *testing.T) {
	r := New()
	c := &cell{value: 1}
	var calls []call
	c.listen(record(&calls))

	c.set(r, 2)
	if len(calls) != 1 || calls[0] != (call{1, 2}) {
		t.Fatalf("expected one call (1,2), got %+v", calls)
	}
	c.set(r, 3)
	if len(calls) != 2 || calls[1] != (call{2, 3}) {
		t.Fatalf("expected second call (2,3), got %+v", calls)
	}
}

func TestFire_ListenerOrderPreserved(t *testing.T) {
	r := New()
	c := &cell{value: "a"}
	var order []string
	for _, name := range []string{"A", "B", "C"} {
		name := name
		c.listen(func(any, any) { order = append(order, name) })
	}
	c.set(r, "b")
	if got := strings.Join(order, ""); got != "ABC" {
		t.Fatalf("expected ABC, got %s", got)
	}

	order = nil
	r.StartTransaction()
	c.set(r, "c")
	r.EndTransaction()
	if got := strings.Join(order, ""); got != "ABC" {
		t.Fatalf("expected ABC at drain, got %s", got)
	}
}

func TestFire_ReadsValueAtInvocation(t *testing.T) {
	r := New()
	c := &cell{value: 1}
	var second any
	// the first listener changes the value behind the router's back
	c.listen(func(any, any) { c.value = 99 })
	c.listen(func(_, n any) { second = n })
	c.set(r, 2)
	if second != 99 {
		t.Fatalf("expected second listener to observe 99, got %v", second)
	}
}

func TestTransaction_QueuesUntilEnd(t *testing.T) {
	r := New()
	c := &cell{value: 1}
	var calls []call
	c.listen(record(&calls))

	r.StartTransaction()
	if !r.InTransaction() {
		t.Fatalf("expected transaction state")
	}
	c.set(r, 2)
	c.set(r, 3)
	if len(calls) != 0 {
		t.Fatalf("no listener may run inside a transaction, got %+v", calls)
	}
	if r.Pending() != 2 {
		t.Fatalf("expected 2 pending, got %d", r.Pending())
	}
	r.EndTransaction()

	// one entry per mutation, each reading the final value
	want := []call{{1, 3}, {2, 3}}
	if len(calls) != len(want) {
		t.Fatalf("expected %d calls, got %+v", len(want), calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("call %d: want %+v got %+v", i, want[i], calls[i])
		}
	}
	if r.InTransaction() || r.Pending() != 0 {
		t.Fatalf("expected active router with empty queue")
	}
}

func TestTransaction_DrainFIFOAcrossSources(t *testing.T) {
	r := New()
	a := &cell{path: "a", value: 0}
	b := &cell{path: "b", value: 0}
	var order []string
	a.listen(func(any, any) { order = append(order, "a") })
	b.listen(func(any, any) { order = append(order, "b") })

	r.StartTransaction()
	b.set(r, 1)
	a.set(r, 1)
	b.set(r, 2)
	r.EndTransaction()

	if got := strings.Join(order, ","); got != "b,a,b" {
		t.Fatalf("expected b,a,b got %s", got)
	}
}

func TestTransaction_IdempotentTransitions(t *testing.T) {
	pub := NewMemoryPublisher()
	r := New(WithPublisher(pub))
	c := &cell{value: 1}
	var calls []call
	c.listen(record(&calls))

	// end while active is a no-op
	r.EndTransaction()
	if r.State() != StateActive {
		t.Fatalf("expected active")
	}

	r.StartTransaction()
	r.StartTransaction()
	c.set(r, 2)
	r.EndTransaction()
	if r.State() != StateActive {
		t.Fatalf("single end must return to active, got %s", r.State())
	}
	if len(calls) != 1 || calls[0] != (call{1, 2}) {
		t.Fatalf("expected flushed call (1,2), got %+v", calls)
	}
	r.EndTransaction()
	if len(calls) != 1 {
		t.Fatalf("second end must not redeliver")
	}

	names := pub.Names()
	starts := 0
	for _, n := range names {
		if n == EventTransactionStart {
			starts++
		}
	}
	if starts != 1 {
		t.Fatalf("expected one transaction_start event, got %v", names)
	}
}

func TestTransaction_ListenerAddedBeforeDrainIsNotified(t *testing.T) {
	r := New()
	c := &cell{value: 1}
	r.StartTransaction()
	c.set(r, 2)
	var calls []call
	c.listen(record(&calls))
	r.EndTransaction()
	if len(calls) != 1 || calls[0] != (call{1, 2}) {
		t.Fatalf("listeners are read at drain time, got %+v", calls)
	}
}

func TestCoalesce_SingleEntryPerSource(t *testing.T) {
	r := New(WithCoalesce(true))
	a := &cell{path: "a", value: 1}
	b := &cell{path: "b", value: 1}
	var calls []call
	a.listen(record(&calls))
	var order []string
	a.listen(func(any, any) { order = append(order, "a") })
	b.listen(func(any, any) { order = append(order, "b") })

	r.StartTransaction()
	a.set(r, 2)
	b.set(r, 2)
	a.set(r, 3)
	if r.Pending() != 2 {
		t.Fatalf("expected 2 coalesced entries, got %d", r.Pending())
	}
	r.EndTransaction()

	if len(calls) != 1 || calls[0] != (call{1, 3}) {
		t.Fatalf("expected single (1,3), got %+v", calls)
	}
	if got := strings.Join(order, ","); got != "a,b" {
		t.Fatalf("expected first-mutation order a,b got %s", got)
	}

	// a fresh transaction starts with an empty coalescing index
	r.StartTransaction()
	a.set(r, 4)
	r.EndTransaction()
	if len(calls) != 2 || calls[1] != (call{3, 4}) {
		t.Fatalf("expected (3,4) after second transaction, got %+v", calls)
	}
}

func TestTransactionHelper_EndsOnError(t *testing.T) {
	r := New()
	c := &cell{value: 1}
	var calls []call
	c.listen(record(&calls))

	boom := errors.New("boom")
	err := r.Transaction(func() error {
		c.set(r, 2)
		if len(calls) != 0 {
			t.Fatalf("delivered inside helper transaction")
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if r.InTransaction() {
		t.Fatalf("transaction left open")
	}
	if len(calls) != 1 {
		t.Fatalf("expected delivery after helper returned, got %+v", calls)
	}
}

func TestReentrantListener_SetsAnotherSource(t *testing.T) {
	r := New()
	a := &cell{value: 1}
	b := &cell{value: 1}
	var got []call
	b.listen(record(&got))
	a.listen(func(_, n any) { b.set(r, n.(int)*10) })

	r.StartTransaction()
	a.set(r, 2)
	r.EndTransaction()

	// router is active during drain, so b's change is delivered immediately
	if len(got) != 1 || got[0] != (call{1, 20}) {
		t.Fatalf("expected (1,20), got %+v", got)
	}
}

func TestPanicContinue_NotifiesRemaining(t *testing.T) {
	var buf bytes.Buffer
	pub := NewMemoryPublisher()
	r := New(WithLogger(zerolog.New(&buf)), WithPublisher(pub))
	c := &cell{path: "root.x", value: 1}
	c.listeners = append(c.listeners, Listener{ID: "bad", Fn: func(any, any) { panic("boom") }})
	var calls []call
	c.listen(record(&calls))

	before := testutil.ToFloat64(listenerPanicsTotal)
	c.set(r, 2)
	if len(calls) != 1 {
		t.Fatalf("listener after the panicking one must still run, got %+v", calls)
	}
	if d := testutil.ToFloat64(listenerPanicsTotal) - before; d != 1 {
		t.Fatalf("expected panic counter +1, got %v", d)
	}
	if !strings.Contains(buf.String(), "listener panicked") || !strings.Contains(buf.String(), "root.x") {
		t.Fatalf("expected panic log with path, got %q", buf.String())
	}
	found := false
	for _, e := range pub.Events() {
		if e.Name == EventListenerPanic && e.Path == "root.x" && e.Fields["listener"] == "bad" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected listener_panic event, got %+v", pub.Events())
	}
}

func TestPanicContinue_DrainKeepsGoing(t *testing.T) {
	r := New()
	a := &cell{value: 1}
	b := &cell{value: 1}
	a.listen(func(any, any) { panic("a") })
	var calls []call
	b.listen(record(&calls))

	r.StartTransaction()
	a.set(r, 2)
	b.set(r, 2)
	r.EndTransaction()
	if len(calls) != 1 {
		t.Fatalf("expected b to be notified, got %+v", calls)
	}
}

func TestPanicPropagate_AbortsFanOut(t *testing.T) {
	r := New(WithPanicPolicy(PanicPropagate))
	c := &cell{path: "p", value: 1}
	c.listeners = append(c.listeners, Listener{ID: "first", Fn: func(any, any) { panic(errors.New("bad")) }})
	var calls []call
	c.listen(record(&calls))

	var rec any
	func() {
		defer func() { rec = recover() }()
		c.set(r, 2)
	}()
	if !IsListenerPanic(rec) {
		t.Fatalf("expected *ListenerPanicError, got %T %v", rec, rec)
	}
	lpe := rec.(*ListenerPanicError)
	if lpe.ListenerID != "first" || lpe.Path != "p" {
		t.Fatalf("unexpected error fields: %+v", lpe)
	}
	if lpe.Unwrap() == nil || lpe.Unwrap().Error() != "bad" {
		t.Fatalf("expected wrapped error, got %v", lpe.Unwrap())
	}
	if len(calls) != 0 {
		t.Fatalf("fan-out must stop, got %+v", calls)
	}
}

func TestPanicPropagate_DrainLeavesRouterConsistent(t *testing.T) {
	r := New(WithPanicPolicy(PanicPropagate))
	a := &cell{value: 1}
	b := &cell{value: 1}
	a.listen(func(any, any) { panic("a") })
	var calls []call
	b.listen(record(&calls))

	r.StartTransaction()
	a.set(r, 2)
	b.set(r, 2)
	func() {
		defer func() { _ = recover() }()
		r.EndTransaction()
	}()
	if r.State() != StateActive || r.Pending() != 0 {
		t.Fatalf("router must be active and empty after aborted drain")
	}
	if len(calls) != 0 {
		t.Fatalf("undelivered entries are dropped, got %+v", calls)
	}
}

func TestParsePanicPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    PanicPolicy
		wantErr bool
	}{
		{"", PanicContinue, false},
		{"continue", PanicContinue, false},
		{"Propagate", PanicPropagate, false},
		{"abort", PanicPropagate, false},
		{"explode", PanicContinue, true},
	}
	for _, tt := range tests {
		got, err := ParsePanicPolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParsePanicPolicy(%q) err=%v wantErr=%v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("ParsePanicPolicy(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestMetrics_QueuedAndTransactions(t *testing.T) {
	r := New()
	c := &cell{value: 1}
	c.listen(func(any, any) {})

	q0 := testutil.ToFloat64(queuedTotal)
	s0 := testutil.ToFloat64(transactionsTotal.WithLabelValues("start"))
	e0 := testutil.ToFloat64(transactionsTotal.WithLabelValues("end"))
	d0 := testutil.ToFloat64(deliveredTotal)

	r.StartTransaction()
	c.set(r, 2)
	c.set(r, 3)
	r.EndTransaction()

	if d := testutil.ToFloat64(queuedTotal) - q0; d != 2 {
		t.Fatalf("queued delta = %v, want 2", d)
	}
	if d := testutil.ToFloat64(transactionsTotal.WithLabelValues("start")) - s0; d != 1 {
		t.Fatalf("start delta = %v, want 1", d)
	}
	if d := testutil.ToFloat64(transactionsTotal.WithLabelValues("end")) - e0; d != 1 {
		t.Fatalf("end delta = %v, want 1", d)
	}
	if d := testutil.ToFloat64(deliveredTotal) - d0; d != 2 {
		t.Fatalf("delivered delta = %v, want 2", d)
	}
}

func TestDefaultRouterShorthands(t *testing.T) {
	if Default() != Default() {
		t.Fatalf("Default must return a single router")
	}
	StartTransaction()
	if !InTransaction() {
		t.Fatalf("expected default router in transaction")
	}
	EndTransaction()
	if InTransaction() {
		t.Fatalf("expected default router active")
	}
}

func TestConcurrentFireOrderingPerGoroutine(t *testing.T) {
	r := New()
	var mu sync.Mutex
	seen := map[string][]any{}
	var wg sync.WaitGroup
	for _, name := range []string{"x", "y", "z"} {
		c := &cell{path: name, value: 0}
		c.listen(func(_, n any) {
			mu.Lock()
			seen[c.path] = append(seen[c.path], n)
			mu.Unlock()
		})
		wg.Add(1)
		go func(c *cell) {
			defer wg.Done()
			for i := 1; i <= 50; i++ {
				old := c.value
				c.value = i
				r.Fire(c, old)
			}
		}(c)
	}
	wg.Wait()
	for name, vals := range seen {
		if len(vals) != 50 {
			t.Fatalf("%s: expected 50 deliveries, got %d", name, len(vals))
		}
		for i, v := range vals {
			if v != i+1 {
				t.Fatalf("%s: delivery %d saw %v", name, i, v)
			}
		}
	}
}

// history is a Source with a slice field, so it cannot be a map key.
type history struct {
	values    []any
	listeners []Listener
}

func (h history) Get() any              { return h.values[len(h.values)-1] }
func (h history) Listeners() []Listener { return h.listeners }

func TestCoalesce_NonComparableSourceIsQueuedAsIs(t *testing.T) {
	r := New(WithCoalesce(true))
	n := 0
	h := history{values: []any{1, 2}, listeners: []Listener{{Fn: func(any, any) { n++ }}}}

	r.StartTransaction()
	r.Fire(h, 1)
	r.Fire(h, 1)
	if r.Pending() != 2 {
		t.Fatalf("expected 2 uncoalesced entries, got %d", r.Pending())
	}
	r.EndTransaction()
	if n != 2 {
		t.Fatalf("expected 2 deliveries, got %d", n)
	}
}

func TestIsListenerPanic_Wrapped(t *testing.T) {
	err := &ListenerPanicError{Path: "p", Value: "boom"}
	if !IsListenerPanic(err) || !IsListenerPanic(fmt.Errorf("set: %w", err)) {
		t.Fatalf("expected wrapped listener panic to be detected")
	}
	if IsListenerPanic("boom") || IsListenerPanic(errors.New("boom")) {
		t.Fatalf("plain values are not listener panics")
	}
}

func TestMemoryPublisher_ForPathAndReset(t *testing.T) {
	pub := NewMemoryPublisher()
	r := New(WithPublisher(pub))
	a := &cell{path: "root.a", value: 1}
	b := &cell{path: "root.b", value: 1}
	a.listen(func(any, any) {})
	b.listen(func(any, any) {})

	r.StartTransaction()
	a.set(r, 2)
	b.set(r, 2)
	r.EndTransaction()

	got := pub.ForPath("root.a")
	if len(got) != 2 || got[0].Name != EventQueued || got[1].Name != EventDelivered {
		t.Fatalf("unexpected events for root.a: %+v", got)
	}
	if got[0].Fields["depth"] != 1 {
		t.Fatalf("expected queue depth 1, got %v", got[0].Fields["depth"])
	}
	pub.Reset()
	if len(pub.Events()) != 0 {
		t.Fatalf("expected no events after Reset")
	}
}
