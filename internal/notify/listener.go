package notify

// ChangeFunc is called with the value a source held before a change and the
// value it holds at the moment of the call.
type ChangeFunc func(oldValue, newValue any)

// Listener is a registered ChangeFunc plus an optional identity tag. The
// router never looks at ID except for logs and events; higher layers use it
// to recognise their own subscriptions.
type Listener struct {
	ID string
	Fn ChangeFunc
}

// Source is what the router needs from an observable cell. Coalescing keys
// the queue on the source itself, so it only applies to comparable
// implementations such as pointer types.
type Source interface {
	Get() any
	Listeners() []Listener
}

// pather is implemented by sources that know their position in a tree.
type pather interface {
	Path() string
}

func sourcePath(src Source) string {
	if p, ok := src.(pather); ok {
		return p.Path()
	}
	return ""
}
