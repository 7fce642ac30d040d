// Package listing holds the list state every list view shares: the records from
// the last successful fetch, the user's filter state and the pagination derived
// from both.
package listing

import (
	"strings"

	"github.com/odyssey-erp/odyssey-desk/internal/format"
)

// StatusAll disables the status filter.
const StatusAll = "ALL"

// Record is a backend row. Its shape varies per list; only "id" is shared.
type Record map[string]any

// ID returns the server identifier of the record as text.
func (r Record) ID() string {
	return format.Text(r["id"])
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Fields designates which record fields the filter engine reads.
type Fields struct {
	Search []string `yaml:"search" json:"search"`
	Date   string   `yaml:"date" json:"date,omitempty"`
	Status string   `yaml:"status" json:"status,omitempty"`
}

// DateRange bounds records by date, both ends inclusive and optional.
type DateRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// IsZero reports whether neither bound is set.
func (d DateRange) IsZero() bool {
	return strings.TrimSpace(d.Start) == "" && strings.TrimSpace(d.End) == ""
}

// FilterState is the set of user-chosen predicates narrowing a list.
type FilterState struct {
	Search string    `json:"search,omitempty"`
	Dates  DateRange `json:"dates"`
	Status string    `json:"status,omitempty"`
}

// Active reports whether any predicate is set.
func (s FilterState) Active() bool {
	return strings.TrimSpace(s.Search) != "" || !s.Dates.IsZero() || statusEnabled(s.Status)
}

func statusEnabled(status string) bool {
	return status != "" && status != StatusAll
}

// Apply returns the records matching state. It allocates a new slice and never
// modifies items, so equal inputs always give equal outputs.
func Apply(items []Record, fields Fields, state FilterState) []Record {
	m := newMatcher(fields, state)
	out := make([]Record, 0, len(items))
	for _, item := range items {
		if m.match(item) {
			out = append(out, item)
		}
	}
	return out
}

// Match reports whether a single record satisfies state.
func Match(record Record, fields Fields, state FilterState) bool {
	return newMatcher(fields, state).match(record)
}

type matcher struct {
	fields Fields
	term   string
	dated  bool
	start  string
	end    string
	// broken marks a malformed date bound; nothing matches then.
	broken bool
	status string
}

func newMatcher(fields Fields, state FilterState) matcher {
	m := matcher{
		fields: fields,
		term:   strings.ToLower(strings.TrimSpace(state.Search)),
	}
	if statusEnabled(state.Status) && fields.Status != "" {
		m.status = state.Status
	}
	if !state.Dates.IsZero() {
		m.dated = true
		m.start, m.broken = bound(state.Dates.Start, m.broken)
		m.end, m.broken = bound(state.Dates.End, m.broken)
	}
	return m
}

func bound(raw string, broken bool) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", broken
	}
	iso, ok := format.ISODate(raw)
	if !ok {
		return "", true
	}
	return iso, broken
}

func (m matcher) match(r Record) bool {
	if r == nil {
		return false
	}
	if m.term != "" && !m.matchTerm(r) {
		return false
	}
	if m.status != "" && format.Text(r[m.fields.Status]) != m.status {
		return false
	}
	if m.dated {
		if m.broken {
			return false
		}
		date, ok := format.ISODate(r[m.fields.Date])
		if !ok {
			return false
		}
		if m.start != "" && date < m.start {
			return false
		}
		if m.end != "" && date > m.end {
			return false
		}
	}
	return true
}

func (m matcher) matchTerm(r Record) bool {
	for _, field := range m.fields.Search {
		if strings.Contains(strings.ToLower(format.Text(r[field])), m.term) {
			return true
		}
	}
	return false
}
