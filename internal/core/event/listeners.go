package event

import "sync"

// Listeners is an observer list for one event type. Handlers run synchronously
// in subscription order on the emitting goroutine.
type Listeners[T any] struct {
	mu       sync.Mutex // only protects registration
	nextID   uint64
	handlers []handler[T]
}

type handler[T any] struct {
	id uint64
	fn func(T)
}

// Subscribe registers fn and returns a function that removes it again.
// Calling the returned function more than once is harmless.
func (l *Listeners[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	id := l.nextID
	l.handlers = append(l.handlers, handler[T]{id: id, fn: fn})
	return func() { l.remove(id) }
}

// Emit delivers ev to every handler subscribed at the time of the call.
func (l *Listeners[T]) Emit(ev T) {
	l.mu.Lock()
	snapshot := make([]handler[T], len(l.handlers))
	copy(snapshot, l.handlers)
	l.mu.Unlock()
	for _, h := range snapshot {
		h.fn(ev)
	}
}

func (l *Listeners[T]) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.handlers)
}

func (l *Listeners[T]) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, h := range l.handlers {
		if h.id == id {
			l.handlers = append(l.handlers[:i], l.handlers[i+1:]...)
			return
		}
	}
}
