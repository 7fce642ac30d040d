package listing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/odyssey-erp/odyssey-desk/internal/notify"
	"github.com/odyssey-erp/odyssey-desk/internal/prefs"
	"github.com/odyssey-erp/odyssey-desk/internal/shared"
)

// ErrStale is returned by Refresh when a newer refresh or Close superseded it.
var ErrStale = errors.New("listing: fetch superseded")

// ErrNoSource is returned by Refresh when the controller has nothing to fetch from.
var ErrNoSource = errors.New("listing: source not configured")

// Mode selects where pagination happens.
type Mode string

const (
	// ModeClient fetches the whole list once and filters and slices locally.
	ModeClient Mode = "client"
	// ModeServer sends filters and page to the backend on every fetch.
	ModeServer Mode = "server"
)

// Query is what a Source receives. Page and PerPage are zero in client mode.
type Query struct {
	Page    int
	PerPage int
	Filter  FilterState
}

// Result is a fetched list with the backend's total count.
type Result struct {
	Items []Record `json:"items"`
	Total int      `json:"total"`
}

// Source fetches list data.
type Source interface {
	Fetch(ctx context.Context, q Query) (Result, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, q Query) (Result, error)

// Fetch implements Source.
func (f SourceFunc) Fetch(ctx context.Context, q Query) (Result, error) {
	return f(ctx, q)
}

// UserMessager is implemented by errors carrying a message meant for the user.
type UserMessager interface {
	UserMessage() string
}

// FetchFailedMessage is shown when a fetch fails without a user-facing message.
const FetchFailedMessage = "No se pudo cargar el listado. Se muestran los últimos datos disponibles."

// Config wires a Controller. Page and Filter restore a list state, for
// example from a URL; Page is clamped once data arrives.
type Config struct {
	Fields   Fields
	Mode     Mode
	Source   Source
	PerPage  int
	Page     int
	Filter   FilterState
	PrefKey  string
	Prefs    prefs.Store
	Notifier notify.Notifier
	Logger   *slog.Logger
}

// View is the render-ready state of a list.
type View struct {
	Mode       Mode                `json:"mode"`
	Items      []Record            `json:"items"`
	Pagination shared.Pagination   `json:"pagination"`
	Markers    []shared.PageMarker `json:"markers"`
	Filter     FilterState         `json:"filter"`
}

// Empty reports whether the list has no data to show.
func (v View) Empty() bool {
	return v.Pagination.Empty()
}

// Controller owns the state of one list view from mount to unmount.
// It is safe for concurrent use: fetch completions may arrive from any goroutine.
type Controller struct {
	mu       sync.Mutex
	fields   Fields
	mode     Mode
	source   Source
	prefKey  string
	prefs    prefs.Store
	notifier notify.Notifier
	logger   *slog.Logger

	items   []Record
	total   int
	filter  FilterState
	page    int
	perPage int

	gen    uint64
	cancel context.CancelFunc
}

// NewController constructs a Controller with an empty list.
func NewController(cfg Config) *Controller {
	mode := cfg.Mode
	if mode != ModeServer {
		mode = ModeClient
	}
	perPage := cfg.PerPage
	if perPage <= 0 {
		perPage = shared.DefaultPerPage
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.Discard{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	page := cfg.Page
	if page < 1 {
		page = 1
	}
	return &Controller{
		fields:   cfg.Fields,
		mode:     mode,
		source:   cfg.Source,
		prefKey:  cfg.PrefKey,
		prefs:    cfg.Prefs,
		notifier: notifier,
		logger:   logger,
		filter:   cfg.Filter,
		page:     page,
		perPage:  perPage,
	}
}

// Mode returns where pagination happens.
func (c *Controller) Mode() Mode {
	return c.mode
}

// SetItems replaces the authoritative list after a successful fetch.
func (c *Controller) SetItems(items []Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = items
	c.total = len(items)
	c.reclampLocked()
}

// Items returns the authoritative list as last fetched.
func (c *Controller) Items() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items
}

// SetSearchTerm updates the free-text filter.
func (c *Controller) SetSearchTerm(term string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter.Search = term
	c.reclampLocked()
}

// SetDateRange updates the date bounds; empty strings leave that side open.
func (c *Controller) SetDateRange(start, end string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter.Dates = DateRange{Start: start, End: end}
	c.reclampLocked()
}

// SetStatusFilter sets an exact status match; StatusAll disables it.
func (c *Controller) SetStatusFilter(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter.Status = status
	c.reclampLocked()
}

// SetFilter replaces the whole filter state.
func (c *Controller) SetFilter(state FilterState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = state
	c.reclampLocked()
}

// Filter returns the current filter state.
func (c *Controller) Filter() FilterState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// Clear resets every filter and returns to page 1.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = FilterState{}
	c.page = 1
}

// SetCurrentPage moves to page, clamped into range, and returns the page shown.
func (c *Controller) SetCurrentPage(page int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.page = page
	c.reclampLocked()
	return c.page
}

// Page returns the current page.
func (c *Controller) Page() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// PerPage returns the current page size.
func (c *Controller) PerPage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.perPage
}

// SetPageSize applies a new page size. Non-positive sizes are ignored and
// report false. A valid size is persisted under the list key and resets the
// current page to 1.
func (c *Controller) SetPageSize(ctx context.Context, size int) bool {
	if size <= 0 {
		return false
	}
	c.mu.Lock()
	c.perPage = size
	c.page = 1
	store, key := c.prefs, c.prefKey
	c.mu.Unlock()

	if store != nil && key != "" {
		if err := store.Set(ctx, key, size); err != nil {
			c.logger.Warn("persist page size", slog.String("key", key), slog.Any("error", err))
		}
	}
	return true
}

// EditPageSize applies raw text typed in the page-size box. Input that is not
// a positive integer reverts silently to the previous size. It returns the
// effective size and whether the input was applied.
func (c *Controller) EditPageSize(ctx context.Context, raw string) (int, bool) {
	size, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || !c.SetPageSize(ctx, size) {
		return c.PerPage(), false
	}
	return size, true
}

// Refresh fetches from the source. Any previous in-flight fetch is cancelled
// and its result discarded. On failure the last good state stays in place and
// the user gets a toast.
func (c *Controller) Refresh(ctx context.Context) error {
	if c.source == nil {
		return ErrNoSource
	}
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	c.gen++
	gen := c.gen
	c.cancel = cancel
	q := c.queryLocked()
	c.mu.Unlock()

	res, err := c.source.Fetch(fetchCtx, q)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		cancel()
		return ErrStale
	}
	c.cancel = nil
	cancel()
	if err != nil {
		c.mu.Unlock()
		c.notifier.Notify(ctx, notify.KindWarning, userMessage(err))
		return fmt.Errorf("listing: refresh: %w", err)
	}
	c.applyLocked(res)
	// The requested page vanished (rows deleted elsewhere); the clamp moved us
	// to the last page, which still has to be fetched.
	refetch := c.mode == ModeServer && len(res.Items) == 0 && c.total > 0 && c.page != q.Page
	c.mu.Unlock()

	if refetch {
		return c.Refresh(ctx)
	}
	return nil
}

// Close cancels any in-flight fetch. Results arriving afterwards are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// View derives the visible page from the current list and filter state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode == ModeServer {
		p := shared.NewPagination(c.page, c.perPage, c.total)
		return View{
			Mode:       c.mode,
			Items:      c.items,
			Pagination: p,
			Markers:    p.Window(),
			Filter:     c.filter,
		}
	}

	filtered := Apply(c.items, c.fields, c.filter)
	p := shared.NewPagination(c.page, c.perPage, len(filtered))
	c.page = p.Page
	return View{
		Mode:       c.mode,
		Items:      shared.PageSlice(filtered, p.Page, p.PerPage),
		Pagination: p,
		Markers:    p.Window(),
		Filter:     c.filter,
	}
}

func (c *Controller) queryLocked() Query {
	if c.mode == ModeClient {
		return Query{}
	}
	return Query{Page: c.page, PerPage: c.perPage, Filter: c.filter}
}

func (c *Controller) applyLocked(res Result) {
	c.items = res.Items
	if c.mode == ModeClient || res.Total < len(res.Items) {
		c.total = len(res.Items)
	} else {
		c.total = res.Total
	}
	c.reclampLocked()
}

// reclampLocked keeps the page inside the range the current data allows.
func (c *Controller) reclampLocked() {
	total := c.total
	if c.mode == ModeClient {
		total = len(Apply(c.items, c.fields, c.filter))
	}
	c.page = shared.ClampPage(c.page, shared.TotalPages(total, c.perPage))
}

func userMessage(err error) string {
	var um UserMessager
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}
	return FetchFailedMessage
}
