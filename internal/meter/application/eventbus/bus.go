package eventbus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// Handler handles a published event.
type Handler func(ctx context.Context, event any) error

// ErrNilEvent is returned when a nil event is published.
var ErrNilEvent = errors.New("eventbus: nil event")

// ErrInvalidEventType is returned when a handler receives an unexpected event.
var ErrInvalidEventType = errors.New("eventbus: invalid event type")

type subscription struct {
	name    string
	handler Handler
}

// Bus is a synchronous in-process bus. Handlers run in subscription order on
// the publishing goroutine.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]subscription
}

// New constructs an empty bus.
func New() *Bus {
	return &Bus{handlers: make(map[string][]subscription)}
}

// Publish delivers event to every handler of its type. All handlers run; the
// returned error joins the individual failures, each prefixed by handler name.
func (b *Bus) Publish(ctx context.Context, event any) error {
	if event == nil {
		return ErrNilEvent
	}
	key := TypeOf(event)

	b.mu.RLock()
	subs := append([]subscription(nil), b.handlers[key]...)
	b.mu.RUnlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.handler(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sub.name, err))
		}
	}
	return errors.Join(errs...)
}

// Subscribe registers a typed handler for events of type T.
func Subscribe[T any](b *Bus, name string, fn func(ctx context.Context, event T) error) {
	if b == nil || fn == nil {
		return
	}
	handler := func(ctx context.Context, event any) error {
		typed, ok := event.(T)
		if !ok {
			return ErrInvalidEventType
		}
		return fn(ctx, typed)
	}
	key := TypeOf((*T)(nil))

	b.mu.Lock()
	b.handlers[key] = append(b.handlers[key], subscription{name: name, handler: handler})
	b.mu.Unlock()
}

// TypeOf returns the fully-qualified type name, dereferencing pointers.
func TypeOf(event any) string {
	t := reflect.TypeOf(event)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	return t.String()
}
