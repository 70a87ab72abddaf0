// Package subscription brokers "something changed" notifications between a
// single publisher and an open set of subscribers.
//
// Delivery is synchronous and in registration order. A subscriber that
// returns an error or panics is isolated: the remaining subscribers still
// receive the value and the failure is reported back to the publisher.
package subscription

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// Func receives one published value.
type Func[T any] func(T) error

// Registry holds the open set of subscribers for values of type T.
// The zero value is not usable; call NewRegistry.
type Registry[T any] struct {
	mu     sync.RWMutex
	subs   map[uint64]Func[T]
	nextID atomic.Uint64
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{
		subs: make(map[uint64]Func[T]),
	}
}

// Subscribe registers fn and returns the handle that removes it.
func (r *Registry[T]) Subscribe(fn Func[T]) *Subscription[T] {
	id := r.nextID.Add(1)

	r.mu.Lock()
	r.subs[id] = fn
	r.mu.Unlock()

	return &Subscription[T]{id: id, registry: r}
}

// Len returns the number of registered subscribers.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Notify delivers v to every subscriber registered at the time of the call.
// It returns the joined failures of individual subscribers, each wrapped in
// a *CallbackError; a nil result means every subscriber accepted v.
//
// Subscribers may unsubscribe from inside their callback.
func (r *Registry[T]) Notify(v T) error {
	r.mu.RLock()
	ids := make([]uint64, 0, len(r.subs))
	for id := range r.subs {
		ids = append(ids, id)
	}
	fns := make(map[uint64]Func[T], len(ids))
	for _, id := range ids {
		fns[id] = r.subs[id]
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var errs []error
	for _, id := range ids {
		if err := invoke(fns[id], v); err != nil {
			errs = append(errs, &CallbackError{SubscriberID: id, Err: err})
		}
	}
	return errors.Join(errs...)
}

func (r *Registry[T]) remove(id uint64) {
	r.mu.Lock()
	delete(r.subs, id)
	r.mu.Unlock()
}

func invoke[T any](fn Func[T], v T) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("subscriber panicked: %v", p)
		}
	}()
	return fn(v)
}

// Subscription is the handle returned by Subscribe.
type Subscription[T any] struct {
	id       uint64
	registry *Registry[T]
	once     sync.Once
}

// ID identifies the subscriber in logs and in CallbackError.
func (s *Subscription[T]) ID() uint64 {
	return s.id
}

// Unsubscribe permanently removes the subscriber. Repeated calls are no-ops.
func (s *Subscription[T]) Unsubscribe() {
	s.once.Do(func() {
		s.registry.remove(s.id)
	})
}

// CallbackError reports a failed delivery to one subscriber.
type CallbackError struct {
	SubscriberID uint64
	Err          error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("subscriber %d: %v", e.SubscriberID, e.Err)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}
