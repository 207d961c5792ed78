// Package model builds trees of observable properties from plain JSON
// objects.
//
// Every nested object becomes a child *Model; every other value (numbers,
// strings, bools, arrays, null) becomes a *property.Property. All properties
// of a tree report to the same notify.Router, so one transaction covers the
// whole tree.
package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"modelkit/internal/notify"
	"modelkit/internal/property"
)

// DefaultName is the name of a root model built without Options.Name.
const DefaultName = "root"

const sep = "."

// Options configure a model tree.
type Options struct {
	// Name of the root model; DefaultName when empty.
	Name string
	// Router shared by every property in the tree; nil means notify.Default().
	Router *notify.Router
	// Validators keyed by property path relative to the root, e.g.
	// "address.zip".
	Validators map[string]property.Validator
}

// ChangeFunc receives the full path of the changed property.
type ChangeFunc func(path string, oldValue, newValue any)

// Model is a named node holding properties and child models.
type Model struct {
	mu     sync.RWMutex
	name   string
	parent *Model
	router *notify.Router
	props  map[string]*property.Property
	models map[string]*Model
	order  []string
}

// New builds a tree from data.
func New(data map[string]any, opts Options) (*Model, error) {
	name := opts.Name
	if name == "" {
		name = DefaultName
	}
	if err := checkName(name); err != nil {
		return nil, err
	}
	r := opts.Router
	if r == nil {
		r = notify.Default()
	}
	m := newNode(name, nil, r)
	if err := m.fill(data, "", opts.Validators); err != nil {
		return nil, err
	}
	return m, nil
}

// FromJSON builds a tree from a JSON object.
func FromJSON(b []byte, opts Options) (*Model, error) {
	var data map[string]any
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if data == nil {
		return nil, fmt.Errorf("decode model: top-level value must be an object")
	}
	return New(data, opts)
}

func newNode(name string, parent *Model, r *notify.Router) *Model {
	return &Model{
		name:   name,
		parent: parent,
		router: r,
		props:  make(map[string]*property.Property),
		models: make(map[string]*Model),
	}
}

// fill adds data's entries in key order. rel is the path of m relative to
// the root, used to look up validators.
func (m *Model) fill(data map[string]any, rel string, validators map[string]property.Validator) error {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := checkName(k); err != nil {
			return err
		}
		childRel := joinPath(rel, k)
		if sub, ok := data[k].(map[string]any); ok {
			child := newNode(k, m, m.router)
			if err := child.fill(sub, childRel, validators); err != nil {
				return err
			}
			m.models[k] = child
		} else {
			if _, ok := data[k].(*Model); ok {
				return invalidValueError{path: m.childPath(k), msg: "a model cannot be a property value"}
			}
			m.props[k] = m.newProperty(k, data[k], validators[childRel])
		}
		m.order = append(m.order, k)
	}
	return nil
}

func (m *Model) newProperty(name string, v any, validator property.Validator) *property.Property {
	return property.New(Normalize(v), property.Options{
		Validator: validator,
		Router:    m.router,
		Path:      m.childPath(name),
	})
}

// Name returns the model's own name.
func (m *Model) Name() string { return m.name }

// Parent returns the enclosing model, or nil for a root.
func (m *Model) Parent() *Model { return m.parent }

// Router returns the router shared by the tree.
func (m *Model) Router() *notify.Router { return m.router }

// Path returns the dot-joined names from the root down to m.
func (m *Model) Path() string {
	if m.parent == nil {
		return m.name
	}
	return m.parent.Path() + sep + m.name
}

func (m *Model) childPath(name string) string { return m.Path() + sep + name }

// Property returns the direct child property called name, or nil.
func (m *Model) Property(name string) *property.Property {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.props[name]
}

// Submodel returns the direct child model called name, or nil.
func (m *Model) Submodel(name string) *Model {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.models[name]
}

// PropertyNames returns the names of direct child properties in order.
func (m *Model) PropertyNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for _, n := range m.order {
		if _, ok := m.props[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

// SubmodelNames returns the names of direct child models in order.
func (m *Model) SubmodelNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for _, n := range m.order {
		if _, ok := m.models[n]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Lookup resolves a dotted path relative to m to a property.
func (m *Model) Lookup(path string) (*property.Property, error) {
	parts := strings.Split(path, sep)
	cur := m
	for _, part := range parts[:len(parts)-1] {
		next := cur.Submodel(part)
		if next == nil {
			return nil, ErrNotFound(m.childPath(path))
		}
		cur = next
	}
	p := cur.Property(parts[len(parts)-1])
	if p == nil {
		return nil, ErrNotFound(m.childPath(path))
	}
	return p, nil
}

// LookupModel resolves a dotted path relative to m to a child model. An
// empty path returns m.
func (m *Model) LookupModel(path string) (*Model, error) {
	if path == "" {
		return m, nil
	}
	cur := m
	for _, part := range strings.Split(path, sep) {
		next := cur.Submodel(part)
		if next == nil {
			return nil, ErrNotFound(m.childPath(path))
		}
		cur = next
	}
	return cur, nil
}

// Get reads the property at path.
func (m *Model) Get(path string) (any, error) {
	p, err := m.Lookup(path)
	if err != nil {
		return nil, err
	}
	return p.Get(), nil
}

// Set writes v to the property at path and returns the value it holds
// afterwards. Numbers are normalised first, so an int equal to the stored
// float64 is not a change. Rejected mutations are not errors; only
// unresolved paths and model values are.
func (m *Model) Set(path string, v any, so property.SetOptions) (any, error) {
	p, err := m.Lookup(path)
	if err != nil {
		return nil, err
	}
	if _, ok := v.(*Model); ok {
		return p.Get(), invalidValueError{path: p.Path(), msg: "a model cannot be a property value"}
	}
	return p.Set(Normalize(v), so), nil
}

// AddProperty adds a child property holding v, with numbers normalised.
func (m *Model) AddProperty(name string, v any, validator property.Validator) (*property.Property, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if _, ok := v.(*Model); ok {
		return nil, invalidValueError{path: m.childPath(name), msg: "a model cannot be a property value"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hasLocked(name) {
		return nil, conflictError{path: m.childPath(name)}
	}
	p := m.newProperty(name, v, validator)
	m.props[name] = p
	m.order = append(m.order, name)
	return p, nil
}

// AddModel adds a child model built from data.
func (m *Model) AddModel(name string, data map[string]any) (*Model, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	child := newNode(name, m, m.router)
	if err := child.fill(data, "", nil); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hasLocked(name) {
		return nil, conflictError{path: m.childPath(name)}
	}
	m.models[name] = child
	m.order = append(m.order, name)
	return child, nil
}

// Remove detaches the child called name. Its listeners are dropped with it;
// queued changes for it are still delivered when a transaction ends.
func (m *Model) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasLocked(name) {
		return ErrNotFound(m.childPath(name))
	}
	delete(m.props, name)
	delete(m.models, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Model) hasLocked(name string) bool {
	_, p := m.props[name]
	_, c := m.models[name]
	return p || c
}

// Walk calls fn for every property in the subtree, depth first, in child
// order.
func (m *Model) Walk(fn func(p *property.Property)) {
	m.mu.RLock()
	order := append([]string(nil), m.order...)
	props := make(map[string]*property.Property, len(m.props))
	for k, v := range m.props {
		props[k] = v
	}
	models := make(map[string]*Model, len(m.models))
	for k, v := range m.models {
		models[k] = v
	}
	m.mu.RUnlock()

	for _, n := range order {
		if p, ok := props[n]; ok {
			fn(p)
		} else if c, ok := models[n]; ok {
			c.Walk(fn)
		}
	}
}

// OnChange registers fn on every property currently in the subtree. The
// listeners are tagged with the model's path. Properties added later are not
// covered.
func (m *Model) OnChange(fn ChangeFunc) {
	id := "model:" + m.Path()
	m.Walk(func(p *property.Property) {
		path := p.Path()
		p.AddChangeCallbackWithID(id, func(o, n any) { fn(path, o, n) })
	})
}

// ToMap returns the tree as plain nested maps.
func (m *Model) ToMap() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]any, len(m.order))
	for _, n := range m.order {
		if p, ok := m.props[n]; ok {
			out[n] = p.Get()
		} else if c, ok := m.models[n]; ok {
			out[n] = c.ToMap()
		}
	}
	return out
}

// ToJSON serializes the tree. Function values make it fail.
func (m *Model) ToJSON() ([]byte, error) {
	b, err := json.Marshal(m.ToMap())
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Path(), err)
	}
	return b, nil
}

// MarshalJSON lets a Model be embedded in other JSON documents.
func (m *Model) MarshalJSON() ([]byte, error) { return m.ToJSON() }

// Clone copies the subtree into a new root. Values are copied (nested JSON
// arrays and objects deeply) and validators kept; listeners are not. A nil
// opts.Router keeps m's router and an empty opts.Name keeps m's name.
// opts.Validators is ignored.
func (m *Model) Clone(opts Options) (*Model, error) {
	name := opts.Name
	if name == "" {
		name = m.name
	}
	if err := checkName(name); err != nil {
		return nil, err
	}
	r := opts.Router
	if r == nil {
		r = m.router
	}
	out := newNode(name, nil, r)
	m.cloneInto(out)
	return out, nil
}

func (m *Model) cloneInto(dst *Model) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, n := range m.order {
		if p, ok := m.props[n]; ok {
			dst.props[n] = dst.newProperty(n, copyValue(p.Get()), p.ValidatorOptions().Validator)
		} else if c, ok := m.models[n]; ok {
			child := newNode(n, dst, dst.router)
			c.cloneInto(child)
			dst.models[n] = child
		}
		dst.order = append(dst.order, n)
	}
}

// copyValue deep-copies the JSON container types; other values are returned
// as is.
func copyValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = copyValue(e)
		}
		return out
	default:
		return v
	}
}

func checkName(name string) error {
	if name == "" || strings.Contains(name, sep) {
		return invalidNameError{name: name}
	}
	return nil
}

func joinPath(rel, name string) string {
	if rel == "" {
		return name
	}
	return rel + sep + name
}
