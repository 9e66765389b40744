package storage

import (
	"context"
	"sort"
	"sync"
)

// notifier fans changes out to subscribers in the order they were produced.
// The queue is unbounded so a writer never blocks on a slow subscriber.
type notifier struct {
	mu      sync.Mutex
	subs    map[int]func(Change)
	nextId  int
	pending []Change
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

func newNotifier() *notifier {
	n := &notifier{
		subs: make(map[int]func(Change)),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go n.run()
	return n
}

func (n *notifier) subscribe(fn func(Change)) func() {
	n.mu.Lock()
	id := n.nextId
	n.nextId++
	n.subs[id] = fn
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

func (n *notifier) notify(c Change) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.pending = append(n.pending, c)
	n.mu.Unlock()

	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *notifier) run() {
	for {
		select {
		case <-n.wake:
		case <-n.done:
			return
		}
		for {
			c, subs, ok := n.next()
			if !ok {
				break
			}
			for _, fn := range subs {
				fn(c)
			}
		}
	}
}

func (n *notifier) next() (Change, []func(Change), bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.pending) == 0 || n.closed {
		return Change{}, nil, false
	}
	c := n.pending[0]
	n.pending = n.pending[1:]

	ids := make([]int, 0, len(n.subs))
	for id := range n.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, n.subs[id])
	}
	return c, subs, true
}

func (n *notifier) close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	n.pending = nil
	close(n.done)
}

// keyLocks is an in-process lock per key, honoring context cancellation while waiting.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func (k *keyLocks) acquire(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]chan struct{})
	}
	ch, ok := k.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		k.locks[key] = ch
	}
	k.mu.Unlock()

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() { once.Do(func() { <-ch }) }, nil
}
