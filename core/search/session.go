package search

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSuperseded is returned by Wait when a newer query replaced the one
// being waited for.
var ErrSuperseded = errors.New("search superseded by a newer query")

// Fetcher gathers the merge input for query. It should honor ctx; a
// cancelled fetch is discarded regardless of what it returns.
type Fetcher func(ctx context.Context, query string) (Input, error)

// PublishFunc observes every published result in generation order. It is
// called with the session lock held and must not call back into the Session.
type PublishFunc func(generation uint64, res Result, err error)

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithDebounce delays each fetch by d; a newer Submit within d cancels it.
func WithDebounce(d time.Duration) SessionOption {
	return func(s *Session) { s.debounce = d }
}

// WithPublish registers fn to observe published results.
func WithPublish(fn PublishFunc) SessionOption {
	return func(s *Session) { s.onPublish = fn }
}

// Session runs one search at a time per logical query box. Each Submit
// supersedes the previous one: its context is cancelled and its result, if
// it still finishes, is dropped. Only the newest generation is published.
type Session struct {
	fetch     Fetcher
	debounce  time.Duration
	onPublish PublishFunc

	base     context.Context
	stop     context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	gen      uint64
	cancel   context.CancelFunc
	pubGen   uint64
	pubRes   Result
	pubErr   error
	changed  chan struct{}
	finished bool
}

// NewSession returns a Session that fetches inputs with fetch.
func NewSession(fetch Fetcher, opts ...SessionOption) *Session {
	base, stop := context.WithCancel(context.Background())
	s := &Session{
		fetch:   fetch,
		base:    base,
		stop:    stop,
		changed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit starts a search for query and returns its generation. A blank
// query publishes an empty result immediately.
func (s *Session) Submit(query string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	gen := s.gen

	if s.finished {
		return gen
	}
	if IsUnset(query) {
		s.publishLocked(gen, Result{}, nil)
		return gen
	}

	ctx, cancel := context.WithCancel(s.base)
	s.cancel = cancel
	s.notifyLocked()

	s.wg.Add(1)
	go s.run(ctx, gen, query)
	return gen
}

func (s *Session) run(ctx context.Context, gen uint64, query string) {
	defer s.wg.Done()

	if s.debounce > 0 {
		t := time.NewTimer(s.debounce)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}

	in, err := s.fetch(ctx, query)
	var res Result
	if err == nil {
		in.Query = query
		res, err = MergeContext(ctx, in)
	}
	if ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.cancel = nil
	s.publishLocked(gen, res, err)
}

func (s *Session) publishLocked(gen uint64, res Result, err error) {
	s.pubGen, s.pubRes, s.pubErr = gen, res, err
	if s.onPublish != nil {
		s.onPublish(gen, res, err)
	}
	s.notifyLocked()
}

func (s *Session) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// Latest returns the most recently published result and its generation.
// Before the first publish it returns a zero Result (no summary) and 0.
func (s *Session) Latest() (Result, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pubRes, s.pubGen, s.pubErr
}

// Wait blocks until generation gen is published, a newer Submit supersedes
// it (ErrSuperseded), or ctx is done.
func (s *Session) Wait(ctx context.Context, gen uint64) (Result, error) {
	for {
		s.mu.Lock()
		if s.pubGen == gen {
			res, err := s.pubRes, s.pubErr
			s.mu.Unlock()
			return res, err
		}
		if s.gen > gen || s.finished {
			s.mu.Unlock()
			return Result{}, ErrSuperseded
		}
		ch := s.changed
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-ch:
		}
	}
}

// Close cancels any in-flight search and waits for its goroutine to exit.
func (s *Session) Close() {
	s.mu.Lock()
	s.finished = true
	s.stop()
	s.notifyLocked()
	s.mu.Unlock()
	s.wg.Wait()
}
