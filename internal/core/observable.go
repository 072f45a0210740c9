package core

import "sync"

// Value holds the latest value of something observable. Subscribers receive
// the current value on subscription and every change after it. Get and all
// subscribers share the stored value, so slices and maps held in a Value are
// read-only.
type Value[T any] struct {
	mu    sync.RWMutex
	cur   T
	equal func(a, b T) bool
	subs  map[chan T]struct{}
}

// NewValue creates a Value. When equal is nil every Set publishes.
func NewValue[T any](initial T, equal func(a, b T) bool) *Value[T] {
	return &Value[T]{
		cur:   initial,
		equal: equal,
		subs:  make(map[chan T]struct{}),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.cur
}

// Set stores next and publishes it unless it equals the current value.
func (v *Value[T]) Set(next T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.equal != nil && v.equal(v.cur, next) {
		return
	}
	v.cur = next
	for ch := range v.subs {
		offerLatest(ch, next)
	}
}

// Subscribe registers a listener. The returned cancel func unsubscribes and
// closes the channel; it is safe to call more than once.
func (v *Value[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, 1)

	v.mu.Lock()
	ch <- v.cur
	v.subs[ch] = struct{}{}
	v.mu.Unlock()

	cancel := func() {
		v.mu.Lock()
		if _, ok := v.subs[ch]; ok {
			delete(v.subs, ch)
			close(ch)
		}
		v.mu.Unlock()
	}
	return ch, cancel
}

// offerLatest replaces a stale pending value so slow readers always end up
// with the newest one. Callers hold the write lock, so there is one sender.
func offerLatest[T any](ch chan T, val T) {
	select {
	case ch <- val:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- val:
	default:
	}
}

// Feed fans out a stream of values to subscribers.
type Feed[T any] struct {
	mu     sync.RWMutex
	buffer int
	subs   map[chan T]struct{}
	closed bool
}

// NewFeed creates a feed whose subscriber channels hold buffer pending values.
func NewFeed[T any](buffer int) *Feed[T] {
	if buffer < 1 {
		buffer = 1
	}
	return &Feed[T]{
		buffer: buffer,
		subs:   make(map[chan T]struct{}),
	}
}

// Publish delivers val to every subscriber without blocking.
func (f *Feed[T]) Publish(val T) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for ch := range f.subs {
		select {
		case ch <- val:
		default:
			// Drop if slow consumer.
		}
	}
}

// Subscribe registers a listener and returns its channel and cancel func.
func (f *Feed[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, f.buffer)

	f.mu.Lock()
	if f.closed {
		close(ch)
		f.mu.Unlock()
		return ch, func() {}
	}
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subs[ch]; ok {
			delete(f.subs, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Close closes every subscriber channel. Later subscribers get a closed channel.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for ch := range f.subs {
		delete(f.subs, ch)
		close(ch)
	}
	f.closed = true
}
