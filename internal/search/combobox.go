package search

import (
	"context"
	"sync"

	"github.com/odyssey-erp/odyssey-desk/internal/listing"
)

// Combobox ties a Searcher to a Cursor over the latest results.
type Combobox struct {
	mu       sync.Mutex
	searcher *Searcher
	cursor   *Cursor
	results  []listing.Record
	query    string
	err      error
	open     bool
	selected listing.Record
	token    uint64
}

// NewCombobox constructs a Combobox. cfg.OnResult, when set, still runs after
// the combobox has stored the result.
func NewCombobox(lookup Lookup, cfg Config, mode NavMode) *Combobox {
	cb := &Combobox{cursor: NewCursor(mode)}
	next := cfg.OnResult
	cfg.OnResult = func(res Result) {
		cb.accept(res)
		if next != nil {
			next(res)
		}
	}
	cb.searcher = NewSearcher(lookup, cfg)
	return cb
}

// Type feeds the current text of the input.
func (cb *Combobox) Type(ctx context.Context, query string) {
	cb.mu.Lock()
	cb.query = query
	cb.mu.Unlock()
	cb.searcher.Input(ctx, query)
}

// Key applies a navigation key. On commit the chosen record is returned and
// the dropdown closes. A closed dropdown only answers Escape and Tab.
func (cb *Combobox) Key(k Key) (listing.Record, Action) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if !cb.open && k != KeyEscape && k != KeyTab {
		return nil, ActionNone
	}
	action, idx := cb.cursor.Handle(k)
	switch action {
	case ActionCommit:
		if idx < 0 || idx >= len(cb.results) {
			return nil, ActionNone
		}
		cb.selected = cb.results[idx]
		cb.open = false
		cb.cursor.Reset(len(cb.results))
		return cb.selected, action
	case ActionDismiss:
		cb.open = false
	}
	return nil, action
}

// Results returns the latest results and the highlighted index.
func (cb *Combobox) Results() ([]listing.Record, int) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	out := make([]listing.Record, len(cb.results))
	copy(out, cb.results)
	return out, cb.cursor.Index()
}

// Open reports whether the dropdown is shown.
func (cb *Combobox) Open() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.open
}

// Err returns the error of the latest lookup.
func (cb *Combobox) Err() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.err
}

// Selected returns the last committed record.
func (cb *Combobox) Selected() listing.Record {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.selected
}

// Close stops pending work.
func (cb *Combobox) Close() {
	cb.searcher.Close()
}

func (cb *Combobox) accept(res Result) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if res.Token < cb.token {
		return
	}
	cb.token = res.Token
	cb.err = res.Err
	if res.Err != nil {
		cb.results = nil
	} else {
		cb.results = res.Items
	}
	cb.cursor.Reset(len(cb.results))
	cb.open = len(cb.results) > 0
}
