package notification

import (
	"errors"
	"fmt"
	"sync"
)

// ErrMisconfiguredType is returned when a type that must reconcile has no
// reconciling handler.
var ErrMisconfiguredType = errors.New("notification: misconfigured notification type")

// Constructor builds a handler for t. Handlers are built per call and never
// cached, so a constructor must be cheap and side-effect free.
type Constructor func(t Type, emit Emitter) TypeHandler

type typeRange struct {
	first, last Type
	ctor        Constructor
}

// Registry maps notification types, or contiguous type ranges, to handler
// constructors.
type Registry struct {
	mu     sync.RWMutex
	exact  map[Type]Constructor
	ranges []typeRange
}

func NewRegistry() *Registry {
	return &Registry{exact: make(map[Type]Constructor)}
}

// Register binds a single type. Exact bindings win over ranges.
func (r *Registry) Register(t Type, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exact[t] = ctor
}

// RegisterRange binds every type in [first, last].
func (r *Registry) RegisterRange(first, last Type, ctor Constructor) {
	if last < first {
		first, last = last, first
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ranges = append(r.ranges, typeRange{first: first, last: last, ctor: ctor})
}

func (r *Registry) lookup(t Type) (Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ctor, ok := r.exact[t]; ok {
		return ctor, true
	}
	for _, rng := range r.ranges {
		if t >= rng.first && t <= rng.last {
			return rng.ctor, true
		}
	}
	return nil, false
}

// Resolve returns the handler for t, or a DefaultHandler when none is
// registered.
func (r *Registry) Resolve(t Type, emit Emitter) TypeHandler {
	if ctor, ok := r.lookup(t); ok {
		if h := ctor(t, emit); h != nil {
			return h
		}
	}
	return DefaultHandler{}
}

// Reconciler returns the reconciling handler for t.
func (r *Registry) Reconciler(t Type, emit Emitter) (Reconciler, error) {
	ctor, ok := r.lookup(t)
	if !ok {
		return nil, fmt.Errorf("%w: no handler for %s", ErrMisconfiguredType, t)
	}
	rec, ok := ctor(t, emit).(Reconciler)
	if !ok {
		return nil, fmt.Errorf("%w: handler for %s does not reconcile", ErrMisconfiguredType, t)
	}
	return rec, nil
}
