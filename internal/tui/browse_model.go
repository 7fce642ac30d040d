// Package tui is the terminal desk: a bubbletea program browsing one list
// view with the same controller, preferences and lookups as the web desk.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/odyssey-erp/odyssey-desk/internal/format"
	"github.com/odyssey-erp/odyssey-desk/internal/listing"
	"github.com/odyssey-erp/odyssey-desk/internal/notify"
	"github.com/odyssey-erp/odyssey-desk/internal/search"
	"github.com/odyssey-erp/odyssey-desk/internal/views"
)

// DefaultScope is the preference scope of the terminal desk.
const DefaultScope = "terminal"

const (
	defaultPageSizeStep = 5
	resultBuffer        = 8
)

// Lists is the part of the views service the terminal desk uses.
type Lists interface {
	Controller(ctx context.Context, entity, scope string, notifier notify.Notifier) (*listing.Controller, views.Definition, error)
	Rows(def views.Definition, items []listing.Record) []views.Row
	Lookup(entity string) search.Lookup
}

// Options tunes a BrowseModel. Zero values pick the defaults.
type Options struct {
	Scope           string
	SearchDelay     time.Duration
	SearchMinLength int
	After           search.AfterFunc
	PageSizeStep    int
	Logger          *slog.Logger
}

type focus int

const (
	focusTable focus = iota
	focusFilter
	focusLookup
)

type fetchedMsg struct {
	err error
}

type lookupMsg struct {
	result search.Result
}

// BrowseModel is the bubbletea model of one list view.
type BrowseModel struct {
	ctx     context.Context
	lists   Lists
	def     views.Definition
	ctrl    *listing.Controller
	notices *notify.Center
	table   table.Model
	combo   *search.Combobox
	results chan search.Result
	closing *sync.Once
	filter  textinput.Model
	lookup  textinput.Model
	focus   focus
	step    int
	loading bool
	status  string
	toast   *notify.Toast
	width   int
	height  int
}

// NewBrowseModel mounts entity for the terminal desk.
func NewBrowseModel(ctx context.Context, lists Lists, entity string, opts Options) (BrowseModel, error) {
	if opts.Scope == "" {
		opts.Scope = DefaultScope
	}
	if opts.PageSizeStep <= 0 {
		opts.PageSizeStep = defaultPageSizeStep
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notices := notify.NewCenter(notify.DefaultCapacity, logger)
	ctrl, def, err := lists.Controller(ctx, entity, opts.Scope, notices)
	if err != nil {
		return BrowseModel{}, fmt.Errorf("tui: mount %s: %w", entity, err)
	}

	filter := textinput.New()
	filter.Prompt = "Filtrar: "
	filter.Placeholder = "texto"
	filter.CharLimit = 200

	m := BrowseModel{
		ctx:     ctx,
		lists:   lists,
		def:     def,
		ctrl:    ctrl,
		notices: notices,
		table:   newPageTable(def),
		closing: &sync.Once{},
		filter:  filter,
		step:    opts.PageSizeStep,
		loading: true,
	}
	if def.Searchable() {
		lookup := textinput.New()
		lookup.Prompt = "Buscar: "
		lookup.Placeholder = "mínimo " + fmt.Sprint(max(opts.SearchMinLength, search.DefaultMinLength)) + " caracteres"
		m.lookup = lookup
		m.results = make(chan search.Result, resultBuffer)
		results := m.results
		m.combo = search.NewCombobox(lists.Lookup(def.Name), search.Config{
			Delay:     opts.SearchDelay,
			MinLength: opts.SearchMinLength,
			After:     opts.After,
			Logger:    logger,
			OnResult: func(res search.Result) {
				select {
				case results <- res:
				default:
				}
			},
		}, search.NavClamp)
	}
	return m, nil
}

// Init starts the first fetch.
func (m BrowseModel) Init() tea.Cmd {
	if m.combo != nil {
		return tea.Batch(m.fetch(), m.waitLookup())
	}
	return m.fetch()
}

// Close cancels in-flight work of the model and releases a pending lookup
// wait. It is safe to call more than once.
func (m BrowseModel) Close() {
	m.closing.Do(func() {
		m.ctrl.Close()
		if m.combo != nil {
			m.combo.Close()
			close(m.results)
		}
	})
}

// Update handles messages (bubbletea interface).
func (m BrowseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case fetchedMsg:
		return m.handleFetched(msg), nil
	case lookupMsg:
		if msg.result.Err != nil {
			m.toast = &notify.Toast{Kind: notify.KindWarning, Message: listing.FetchFailedMessage}
		}
		return m, m.waitLookup()
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch m.focus {
		case focusFilter:
			return m.handleFilterKey(msg)
		case focusLookup:
			return m.handleLookupKey(msg)
		default:
			return m.handleTableKey(msg)
		}
	}
	return m, nil
}

func (m BrowseModel) handleFetched(msg fetchedMsg) BrowseModel {
	if errors.Is(msg.err, listing.ErrStale) {
		return m
	}
	m.loading = false
	if toasts := m.notices.Drain(); len(toasts) > 0 {
		last := toasts[len(toasts)-1]
		m.toast = &last
	} else if msg.err == nil {
		m.toast = nil
	}
	m.syncTable()
	return m
}

func (m BrowseModel) handleTableKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		items := m.ctrl.View().Items
		if idx := m.table.Cursor(); idx >= 0 && idx < len(items) {
			m.status = "Fila: " + m.label(items[idx])
		}
		return m, nil
	case tea.KeyEsc:
		m.table.GotoTop()
		m.status = ""
		return m, nil
	case tea.KeyRunes:
	default:
		return m.updateTable(msg)
	}

	switch string(msg.Runes) {
	case "q":
		return m, tea.Quit
	case "/":
		m.focus = focusFilter
		m.filter.SetValue(m.ctrl.Filter().Search)
		return m, m.filter.Focus()
	case "s":
		if m.combo == nil {
			m.status = "Esta vista no tiene búsqueda remota."
			return m, nil
		}
		m.focus = focusLookup
		return m, m.lookup.Focus()
	case "]":
		return m.goToPage(m.ctrl.Page() + 1)
	case "[":
		return m.goToPage(m.ctrl.Page() - 1)
	case "+":
		return m.resize(m.ctrl.PerPage() + m.step)
	case "-":
		return m.resize(max(1, m.ctrl.PerPage()-m.step))
	case "c":
		m.ctrl.Clear()
		m.filter.SetValue("")
		return m.afterFilterChange()
	case "r":
		m.loading = true
		return m, m.fetch()
	}
	return m.updateTable(msg)
}

// updateTable hands the key to the table, which owns row navigation.
func (m BrowseModel) updateTable(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// syncTable loads the visible page into the table and puts the cursor on its
// first row.
func (m *BrowseModel) syncTable() {
	columns, rows := pageGrid(m.def, m.lists.Rows(m.def, m.ctrl.View().Items))
	m.table.SetRows(nil)
	m.table.SetColumns(columns)
	m.table.SetRows(rows)
	m.table.SetHeight(len(rows) + 1)
	m.table.SetCursor(0)
}

func (m BrowseModel) goToPage(page int) (tea.Model, tea.Cmd) {
	before := m.ctrl.Page()
	if m.ctrl.Mode() == listing.ModeServer {
		// the backend clamps on the next fetch
		total := m.ctrl.View().Pagination.TotalPages
		if page < 1 || page > total {
			return m, nil
		}
		m.ctrl.SetCurrentPage(page)
	} else if m.ctrl.SetCurrentPage(page) == before {
		return m, nil
	}
	return m.afterPageChange()
}

func (m BrowseModel) resize(size int) (tea.Model, tea.Cmd) {
	if !m.ctrl.SetPageSize(m.ctx, size) {
		return m, nil
	}
	m.status = fmt.Sprintf("Filas por página: %d", size)
	return m.afterPageChange()
}

func (m BrowseModel) afterPageChange() (tea.Model, tea.Cmd) {
	if m.ctrl.Mode() == listing.ModeServer {
		m.loading = true
		return m, m.fetch()
	}
	m.syncTable()
	return m, nil
}

func (m BrowseModel) afterFilterChange() (tea.Model, tea.Cmd) {
	if m.ctrl.Mode() == listing.ModeServer {
		m.ctrl.SetCurrentPage(1)
		m.loading = true
		return m, m.fetch()
	}
	m.syncTable()
	return m, nil
}

func (m BrowseModel) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter, tea.KeyEsc:
		m.focus = focusTable
		m.filter.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	if m.filter.Value() == m.ctrl.Filter().Search {
		return m, cmd
	}
	m.ctrl.SetSearchTerm(m.filter.Value())
	next, fetch := m.afterFilterChange()
	return next, tea.Batch(cmd, fetch)
}

func (m BrowseModel) handleLookupKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var key search.Key
	switch msg.Type {
	case tea.KeyUp:
		key = search.KeyUp
	case tea.KeyDown:
		key = search.KeyDown
	case tea.KeyEnter:
		key = search.KeyEnter
	case tea.KeyEsc:
		key = search.KeyEscape
	case tea.KeyTab:
		key = search.KeyTab
	default:
		var cmd tea.Cmd
		before := m.lookup.Value()
		m.lookup, cmd = m.lookup.Update(msg)
		if m.lookup.Value() != before {
			m.combo.Type(m.ctx, m.lookup.Value())
		}
		return m, cmd
	}

	rec, action := m.combo.Key(key)
	switch action {
	case search.ActionCommit:
		m.status = "Seleccionado: " + m.label(rec)
		m.leaveLookup()
	case search.ActionDismiss:
		m.leaveLookup()
	}
	return m, nil
}

func (m *BrowseModel) leaveLookup() {
	m.focus = focusTable
	m.lookup.Blur()
}

func (m BrowseModel) fetch() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return fetchedMsg{err: ctrl.Refresh(ctx)}
	}
}

func (m BrowseModel) waitLookup() tea.Cmd {
	results := m.results
	if results == nil {
		return nil
	}
	return func() tea.Msg {
		res, ok := <-results
		if !ok {
			return nil
		}
		return lookupMsg{result: res}
	}
}

// label names a record by its first column, falling back to the id.
func (m BrowseModel) label(rec listing.Record) string {
	id := rec.ID()
	if len(m.def.Columns) == 0 {
		return id
	}
	text := format.Text(rec[m.def.Columns[0].Key])
	if text == "" || text == id {
		return id
	}
	return id + " " + text
}
