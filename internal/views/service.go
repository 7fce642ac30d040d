package views

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/odyssey-desk/internal/backend"
	"github.com/odyssey-erp/odyssey-desk/internal/format"
	"github.com/odyssey-erp/odyssey-desk/internal/listing"
	"github.com/odyssey-erp/odyssey-desk/internal/notify"
	"github.com/odyssey-erp/odyssey-desk/internal/prefs"
	"github.com/odyssey-erp/odyssey-desk/internal/search"
	"github.com/odyssey-erp/odyssey-desk/internal/shared"
)

// ErrNotSearchable is returned by Search for views without a lookup endpoint.
var ErrNotSearchable = errors.New("views: view has no search endpoint")

const warmConcurrency = 4

// Backend is the part of the backend client the service needs.
type Backend interface {
	List(ctx context.Context, path string, q listing.Query) (listing.Result, error)
	Search(ctx context.Context, path, term string) ([]listing.Record, error)
	Settings(ctx context.Context) (backend.Settings, error)
}

// Config wires a Service.
type Config struct {
	Registry        *Registry
	Backend         Backend
	Cache           *Cache
	Prefs           *prefs.Resolver
	Logger          *slog.Logger
	SearchMinLength int
	Locale          language.Tag
}

// Service builds list pages for the HTTP and terminal desks.
type Service struct {
	registry  *Registry
	backend   Backend
	cache     *Cache
	prefs     *prefs.Resolver
	logger    *slog.Logger
	minLength int
	locale    language.Tag
}

// NewService constructs a Service.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	minLength := cfg.SearchMinLength
	if minLength <= 0 {
		minLength = search.DefaultMinLength
	}
	locale := cfg.Locale
	if locale == language.Und {
		locale = format.DefaultLocale
	}
	resolver := cfg.Prefs
	if resolver == nil {
		resolver = prefs.NewResolver(prefs.NewMemoryStore(), nil, shared.DefaultPerPage, logger)
	}
	return &Service{
		registry:  cfg.Registry,
		backend:   cfg.Backend,
		cache:     cfg.Cache,
		prefs:     resolver,
		logger:    logger,
		minLength: minLength,
		locale:    locale,
	}
}

// PageRequest selects a page of a list view.
type PageRequest struct {
	Page int
	// PerPage overrides the stored page size for this request only.
	PerPage int
	Filter  listing.FilterState
	// Scope is the desk whose page-size preference applies.
	Scope string
}

// Row is a record rendered for display.
type Row struct {
	ID     string         `json:"id"`
	Cells  []string       `json:"cells"`
	Record listing.Record `json:"record"`
}

// Page is a render-ready list page.
type Page struct {
	Definition Definition     `json:"view"`
	List       listing.View   `json:"list"`
	Rows       []Row          `json:"rows"`
	Notices    []notify.Toast `json:"notices,omitempty"`
}

// Definitions returns every registered view.
func (s *Service) Definitions() []Definition {
	return s.registry.All()
}

// Definition returns the view called entity.
func (s *Service) Definition(entity string) (Definition, error) {
	def, ok := s.registry.Get(entity)
	if !ok {
		return Definition{}, fmt.Errorf("views: %q: %w", entity, shared.ErrUnknownView)
	}
	return def, nil
}

// Page fetches, filters and paginates one list view.
func (s *Service) Page(ctx context.Context, entity string, req PageRequest) (Page, error) {
	def, err := s.Definition(entity)
	if err != nil {
		return Page{}, err
	}
	resolver := s.resolverFor(req.Scope)
	key := prefs.Key(def.Name)
	perPage := req.PerPage
	if perPage <= 0 {
		perPage = resolver.PageSize(ctx, key)
	}

	center := notify.NewCenter(4, s.logger)
	ctrl := listing.NewController(listing.Config{
		Fields:   def.Fields,
		Mode:     def.Mode,
		Source:   s.Source(def),
		PerPage:  perPage,
		Page:     req.Page,
		Filter:   req.Filter,
		PrefKey:  key,
		Prefs:    resolver.Store(),
		Notifier: center,
		Logger:   s.logger,
	})
	defer ctrl.Close()

	if err := ctrl.Refresh(ctx); err != nil {
		return Page{Definition: def, Notices: center.Drain()}, fmt.Errorf("views: page %s: %w", def.Name, err)
	}
	v := ctrl.View()
	return Page{
		Definition: def,
		List:       v,
		Rows:       s.Rows(def, v.Items),
		Notices:    center.Drain(),
	}, nil
}

// Controller builds a long-lived controller for one desk, such as a terminal
// screen. The caller owns it and must Close it.
func (s *Service) Controller(ctx context.Context, entity, scope string, notifier notify.Notifier) (*listing.Controller, Definition, error) {
	def, err := s.Definition(entity)
	if err != nil {
		return nil, Definition{}, err
	}
	resolver := s.resolverFor(scope)
	key := prefs.Key(def.Name)
	ctrl := listing.NewController(listing.Config{
		Fields:   def.Fields,
		Mode:     def.Mode,
		Source:   s.Source(def),
		PerPage:  resolver.PageSize(ctx, key),
		PrefKey:  key,
		Prefs:    resolver.Store(),
		Notifier: notifier,
		Logger:   s.logger,
	})
	return ctrl, def, nil
}

// Rows formats records by the view's columns.
func (s *Service) Rows(def Definition, items []listing.Record) []Row {
	rows := make([]Row, 0, len(items))
	for _, rec := range items {
		cells := make([]string, len(def.Columns))
		for i, col := range def.Columns {
			cells[i] = format.Cell(rec[col.Key], col.Kind, def.Currency, s.locale)
		}
		rows = append(rows, Row{ID: rec.ID(), Cells: cells, Record: rec})
	}
	return rows
}

// SetPageSize applies raw page-size input for a desk. Input that is not a
// positive integer leaves the stored value alone; the returned size is then
// the previous one and applied is false.
func (s *Service) SetPageSize(ctx context.Context, entity, scope, raw string) (int, bool, error) {
	def, err := s.Definition(entity)
	if err != nil {
		return 0, false, err
	}
	resolver := s.resolverFor(scope)
	key := prefs.Key(def.Name)
	ctrl := listing.NewController(listing.Config{
		Fields:  def.Fields,
		Mode:    def.Mode,
		PerPage: resolver.PageSize(ctx, key),
		PrefKey: key,
		Prefs:   resolver.Store(),
		Logger:  s.logger,
	})
	size, applied := ctrl.EditPageSize(ctx, raw)
	return size, applied, nil
}

// PageSize returns the page size a desk would get for entity.
func (s *Service) PageSize(ctx context.Context, entity, scope string) (int, error) {
	def, err := s.Definition(entity)
	if err != nil {
		return 0, err
	}
	return s.resolverFor(scope).PageSize(ctx, prefs.Key(def.Name)), nil
}

// Search runs a lookup for entity. Terms shorter than the minimum length
// return no results without calling the backend.
func (s *Service) Search(ctx context.Context, entity, term string) ([]listing.Record, error) {
	def, err := s.Definition(entity)
	if err != nil {
		return nil, err
	}
	if !def.Searchable() {
		return nil, fmt.Errorf("views: %s: %w", def.Name, ErrNotSearchable)
	}
	term = strings.TrimSpace(term)
	if utf8.RuneCountInString(term) < s.minLength {
		return []listing.Record{}, nil
	}
	items, err := s.backend.Search(ctx, def.SearchPath, term)
	if err != nil {
		return nil, fmt.Errorf("views: search %s: %w", def.Name, err)
	}
	return items, nil
}

// Lookup adapts Search to a searcher lookup.
func (s *Service) Lookup(entity string) search.Lookup {
	return func(ctx context.Context, term string) ([]listing.Record, error) {
		return s.Search(ctx, entity, term)
	}
}

// Source returns the list source of def. Client-mode lists go through the cache.
func (s *Service) Source(def Definition) listing.Source {
	if def.Mode == listing.ModeServer {
		return listing.SourceFunc(func(ctx context.Context, q listing.Query) (listing.Result, error) {
			return s.backend.List(ctx, def.Path, q)
		})
	}
	return listing.SourceFunc(func(ctx context.Context, _ listing.Query) (listing.Result, error) {
		return s.loadAll(ctx, def)
	})
}

// Invalidate drops every cached list.
func (s *Service) Invalidate(ctx context.Context) error {
	if err := s.cache.Bump(ctx); err != nil {
		return fmt.Errorf("views: invalidate: %w", err)
	}
	return nil
}

// Warm loads the client-mode lists into the cache and reports how many it
// loaded. With names only those views are warmed.
func (s *Service) Warm(ctx context.Context, names ...string) (int, error) {
	only := make(map[string]bool, len(names))
	for _, name := range names {
		only[strings.ToLower(name)] = true
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(warmConcurrency)
	var warmed atomic.Int64
	for _, def := range s.registry.All() {
		if def.Mode != listing.ModeClient || (len(only) > 0 && !only[def.Name]) {
			continue
		}
		g.Go(func() error {
			if _, err := s.loadAll(gctx, def); err != nil {
				return fmt.Errorf("views: warm %s: %w", def.Name, err)
			}
			warmed.Add(1)
			return nil
		})
	}
	err := g.Wait()
	return int(warmed.Load()), err
}

// DefaultPageSize returns a prefs.DefaultFunc reading the backend setting
// through the cache.
func (s *Service) DefaultPageSize() prefs.DefaultFunc {
	return func(ctx context.Context) (int, error) {
		key, err := s.cache.BuildKey(ctx, "settings")
		if err != nil {
			return 0, err
		}
		var settings backend.Settings
		err = s.cache.FetchJSON(ctx, key, &settings, func(ctx context.Context) (any, error) {
			return s.backend.Settings(ctx)
		})
		if err != nil {
			return 0, err
		}
		return settings.ItemsPerPage, nil
	}
}

// UsePrefs replaces the page-size resolver.
func (s *Service) UsePrefs(resolver *prefs.Resolver) {
	if resolver != nil {
		s.prefs = resolver
	}
}

func (s *Service) resolverFor(scope string) *prefs.Resolver {
	if scope == "" {
		return s.prefs
	}
	return s.prefs.WithStore(prefs.Scoped(s.prefs.Store(), scope))
}

func (s *Service) loadAll(ctx context.Context, def Definition) (listing.Result, error) {
	key, err := s.cache.BuildKey(ctx, "list", def.Name)
	if err != nil {
		s.logger.Warn("list cache key", slog.String("view", def.Name), slog.Any("error", err))
		return s.backend.List(ctx, def.Path, listing.Query{})
	}
	value, err, _ := singleflightLoad(ctx, key, func(ctx context.Context) (any, error) {
		var res listing.Result
		err := s.cache.FetchJSON(ctx, key, &res, func(ctx context.Context) (any, error) {
			return s.backend.List(ctx, def.Path, listing.Query{})
		})
		return res, err
	})
	if err != nil {
		return listing.Result{}, err
	}
	res, _ := value.(listing.Result)
	return res, nil
}
