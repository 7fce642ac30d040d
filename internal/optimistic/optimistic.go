// Package optimistic applies a change locally before the backend confirms it
// and restores the prior value when the backend rejects it.
package optimistic

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// State of a transition.
type State string

const (
	StatePending    State = "pending"
	StateCommitted  State = "committed"
	StateRolledBack State = "rolled_back"
)

// ErrSettled is returned when a settled transition is settled again.
var ErrSettled = errors.New("optimistic: transition already settled")

// Transition holds the prior and optimistic value of one in-flight change.
type Transition[T any] struct {
	mu      sync.Mutex
	id      string
	prior   T
	next    T
	state   State
	failure error
}

// Begin records prior and returns a pending transition showing next.
func Begin[T any](prior, next T) *Transition[T] {
	return &Transition[T]{
		id:    uuid.NewString(),
		prior: prior,
		next:  next,
		state: StatePending,
	}
}

// ID identifies the transition in logs.
func (t *Transition[T]) ID() string {
	return t.id
}

// Settle commits the transition when err is nil and rolls it back otherwise.
// Only the first call has any effect.
func (t *Transition[T]) Settle(err error) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StatePending {
		return t.currentLocked(), ErrSettled
	}
	if err != nil {
		t.state = StateRolledBack
		t.failure = err
	} else {
		t.state = StateCommitted
	}
	return t.currentLocked(), nil
}

// Current returns the value to display: next while pending or committed,
// prior after a rollback.
func (t *Transition[T]) Current() T {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentLocked()
}

// State returns the lifecycle state.
func (t *Transition[T]) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Err returns the rejection that rolled the transition back.
func (t *Transition[T]) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failure
}

func (t *Transition[T]) currentLocked() T {
	if t.state == StateRolledBack {
		return t.prior
	}
	return t.next
}

// Ledger tracks at most one pending transition per key so a second toggle of
// the same row waits for the first to settle.
type Ledger[K comparable, T any] struct {
	mu      sync.Mutex
	pending map[K]*Transition[T]
}

// ErrBusy is returned when a key already has a pending transition.
var ErrBusy = errors.New("optimistic: change already pending")

// NewLedger constructs an empty Ledger.
func NewLedger[K comparable, T any]() *Ledger[K, T] {
	return &Ledger[K, T]{pending: make(map[K]*Transition[T])}
}

// Begin starts a transition for key.
func (l *Ledger[K, T]) Begin(key K, prior, next T) (*Transition[T], error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.pending[key]; busy {
		return nil, ErrBusy
	}
	tr := Begin(prior, next)
	l.pending[key] = tr
	return tr, nil
}

// Settle settles the pending transition of key and releases it.
func (l *Ledger[K, T]) Settle(key K, err error) (T, State, error) {
	l.mu.Lock()
	tr, ok := l.pending[key]
	delete(l.pending, key)
	l.mu.Unlock()
	if !ok {
		var zero T
		return zero, "", ErrSettled
	}
	v, serr := tr.Settle(err)
	return v, tr.State(), serr
}

// Pending reports whether key has a transition in flight.
func (l *Ledger[K, T]) Pending(key K) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.pending[key]
	return ok
}
