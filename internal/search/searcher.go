package search

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/odyssey-erp/odyssey-desk/internal/listing"
)

const (
	// DefaultDelay is the pause in typing before a lookup is issued.
	DefaultDelay = 300 * time.Millisecond
	// DefaultMinLength is the shortest query sent to the backend, in runes.
	DefaultMinLength = 2
)

// Lookup queries the backend for matches.
type Lookup func(ctx context.Context, query string) ([]listing.Record, error)

// Result is delivered for the latest query only.
type Result struct {
	Query string
	Items []listing.Record
	Err   error
	Token uint64
}

// Config tunes a Searcher.
type Config struct {
	Delay     time.Duration
	MinLength int
	After     AfterFunc
	// OnResult receives every delivered result, one call at a time. It must
	// not call back into the Searcher.
	OnResult func(Result)
	// OnSuperseded is told about every lookup whose response was dropped.
	OnSuperseded func(query string)
	Logger       *slog.Logger
}

// Searcher debounces keystrokes into lookups with last-write-wins semantics:
// each keystroke bumps a request token and only the response carrying the
// latest token reaches OnResult.
//
// Deliveries are serialised by deliver, which is always taken before mu. The
// token is checked again under deliver, so a result never reaches OnResult
// after a result of a later keystroke.
type Searcher struct {
	deliver   sync.Mutex
	mu        sync.Mutex
	lookup    Lookup
	sched     *Scheduler
	delay     time.Duration
	minLength int
	onResult  func(Result)
	onStale   func(string)
	logger    *slog.Logger

	token  uint64
	cancel context.CancelFunc
	latest Result
	closed bool
}

// NewSearcher constructs a Searcher.
func NewSearcher(lookup Lookup, cfg Config) *Searcher {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultMinLength
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Searcher{
		lookup:    lookup,
		sched:     NewScheduler(cfg.After),
		delay:     cfg.Delay,
		minLength: cfg.MinLength,
		onResult:  cfg.OnResult,
		onStale:   cfg.OnSuperseded,
		logger:    cfg.Logger,
	}
}

// Input handles a keystroke producing query. Queries shorter than the minimum
// length clear the results without a lookup.
func (s *Searcher) Input(ctx context.Context, query string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.token++
	token := s.token
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if utf8.RuneCountInString(strings.TrimSpace(query)) < s.minLength {
		s.sched.Cancel()
		s.mu.Unlock()
		s.deliverResult(Result{Query: query, Token: token}, false)
		return
	}
	s.sched.Schedule(s.delay, func() { s.run(ctx, query, token) })
	s.mu.Unlock()
}

// Latest returns the most recently delivered result.
func (s *Searcher) Latest() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Close cancels the pending timer and any in-flight lookup. It waits for a
// delivery in progress, and nothing reaches OnResult once it returns.
func (s *Searcher) Close() {
	s.deliver.Lock()
	defer s.deliver.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.token++
	s.sched.Cancel()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Searcher) run(ctx context.Context, query string, token uint64) {
	s.mu.Lock()
	if token != s.token {
		s.mu.Unlock()
		s.stale(query)
		return
	}
	lookupCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	items, err := s.lookup(lookupCtx, strings.TrimSpace(query))
	cancel()

	s.deliverResult(Result{Query: query, Items: items, Err: err, Token: token}, true)
}

// deliverResult hands res to OnResult unless a later keystroke or Close
// superseded it. Dropped lookups are reported to OnSuperseded.
func (s *Searcher) deliverResult(res Result, lookedUp bool) {
	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	if s.closed || res.Token != s.token {
		s.mu.Unlock()
		if lookedUp {
			s.stale(res.Query)
		}
		return
	}
	s.cancel = nil
	s.latest = res
	s.mu.Unlock()

	if res.Err != nil {
		s.logger.Warn("search lookup", slog.String("query", res.Query), slog.Any("error", res.Err))
	}
	if s.onResult != nil {
		s.onResult(res)
	}
}

func (s *Searcher) stale(query string) {
	if s.onStale != nil {
		s.onStale(query)
	}
}
