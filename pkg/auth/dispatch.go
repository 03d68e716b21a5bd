package auth

import (
	"context"
	"sort"
)

// taskQueueSize bounds the deferred work waiting for the dispatch loop.
const taskQueueSize = 256

// Start runs the dispatch loop that executes deferred work such as role
// lookups and subscriber callbacks. It returns when ctx is cancelled or the
// service is closed.
func (s *Service) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.done:
			return nil
		case task := <-s.tasks:
			task()
		}
	}
}

// Close stops the dispatch loop. Work still queued is dropped.
func (s *Service) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// Settle waits until all work posted before the call has run.
func (s *Service) Settle(ctx context.Context) error {
	ch := make(chan struct{})
	if !s.post(func() { close(ch) }) {
		return ErrClosed
	}
	select {
	case <-ch:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues task for the dispatch loop. It reports false once the service
// is closed.
func (s *Service) post(task func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.tasks <- task:
		return true
	case <-s.done:
		return false
	}
}

// Subscribe registers fn to be called, from the dispatch loop, after every
// authentication state change. The returned function unregisters it.
func (s *Service) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSub++
	id := s.nextSub
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// publish notifies subscribers of evt on the dispatch loop.
func (s *Service) publish(evt Event) {
	s.post(func() {
		s.mu.Lock()
		ids := make([]int, 0, len(s.subs))
		for id := range s.subs {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		fns := make([]func(Event), 0, len(ids))
		for _, id := range ids {
			fns = append(fns, s.subs[id])
		}
		s.mu.Unlock()

		for _, fn := range fns {
			fn(evt)
		}
	})
}
