package viewshttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-desk/internal/backend"
	"github.com/odyssey-erp/odyssey-desk/internal/listing"
	"github.com/odyssey-erp/odyssey-desk/internal/notify"
	"github.com/odyssey-erp/odyssey-desk/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-desk/internal/shared"
	"github.com/odyssey-erp/odyssey-desk/internal/view"
	"github.com/odyssey-erp/odyssey-desk/internal/views"
)

// Service defines the list view operations used by the handler.
type Service interface {
	Definitions() []views.Definition
	Page(ctx context.Context, entity string, req views.PageRequest) (views.Page, error)
	SetPageSize(ctx context.Context, entity, scope, raw string) (int, bool, error)
	Search(ctx context.Context, entity, term string) ([]listing.Record, error)
}

// Handler serves list views as HTML pages or JSON.
type Handler struct {
	logger      *slog.Logger
	service     Service
	templates   *view.Engine
	validate    *validator.Validate
	searchLimit int
	superseded  func(entity string)
}

// NewHandler constructs the list view HTTP handler. searchLimit caps search
// requests per desk per minute.
func NewHandler(logger *slog.Logger, service Service, templates *view.Engine, searchLimit int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if searchLimit <= 0 {
		searchLimit = defaultSearchLimit
	}
	return &Handler{
		logger:      logger,
		service:     service,
		templates:   templates,
		validate:    validator.New(),
		searchLimit: searchLimit,
	}
}

// OnSuperseded registers fn to be told about searches the client abandoned,
// typically because a newer keystroke replaced them.
func (h *Handler) OnSuperseded(fn func(entity string)) {
	h.superseded = fn
}

// listQuery is the decoded query string of a list page.
type listQuery struct {
	Page    int    `validate:"gte=0"`
	PerPage int    `validate:"gte=0,lte=500"`
	Search  string `validate:"max=200"`
	From    string `validate:"omitempty,datetime=2006-01-02"`
	To      string `validate:"omitempty,datetime=2006-01-02"`
	Status  string `validate:"max=64"`
}

func (q listQuery) request(scope string) views.PageRequest {
	return views.PageRequest{
		Page:    q.Page,
		PerPage: q.PerPage,
		Filter: listing.FilterState{
			Search: q.Search,
			Dates:  listing.DateRange{Start: q.From, End: q.To},
			Status: q.Status,
		},
		Scope: scope,
	}
}

// listVM is the data of pages/list.html.
type listVM struct {
	Page  views.Page
	Base  string
	query url.Values
}

// PageHref links to page n keeping the current filters.
func (vm listVM) PageHref(n int) string {
	q := url.Values{}
	for k, v := range vm.query {
		if k == "page" {
			continue
		}
		q[k] = v
	}
	q.Set("page", strconv.Itoa(n))
	return vm.Base + "?" + q.Encode()
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	defs := h.service.Definitions()
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"views": defs})
		return
	}
	h.render(w, r, http.StatusOK, "pages/index.html", "Listados", nil, defs)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	q := h.parseQuery(r)
	page, err := h.service.Page(r.Context(), entity, q.request(shared.DeskFromContext(r.Context())))
	if err != nil {
		if !httpx.WantsJSON(r) && isBackendFailure(err) {
			h.logger.Warn("load list", slog.String("view", entity), slog.Any("error", err))
			vm := listVM{Page: page, Base: "/views/" + page.Definition.Name, query: r.URL.Query()}
			h.render(w, r, http.StatusBadGateway, "pages/list.html", page.Definition.Title, page.Notices, vm)
			return
		}
		h.respondError(w, "load list", err)
		return
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, page)
		return
	}
	vm := listVM{Page: page, Base: "/views/" + page.Definition.Name, query: r.URL.Query()}
	h.render(w, r, http.StatusOK, "pages/list.html", page.Definition.Title, page.Notices, vm)
}

type pageSizeRequest struct {
	PerPage any `json:"per_page"`
}

type pageSizeResponse struct {
	PerPage int  `json:"per_page"`
	Applied bool `json:"applied"`
}

func (h *Handler) handlePageSize(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	raw, err := pageSizeInput(r)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	size, applied, err := h.service.SetPageSize(r.Context(), entity, shared.DeskFromContext(r.Context()), raw)
	if err != nil {
		h.respondError(w, "set page size", err)
		return
	}
	if httpx.WantsJSON(r) || isJSONBody(r) {
		httpx.JSON(w, http.StatusOK, pageSizeResponse{PerPage: size, Applied: applied})
		return
	}
	http.Redirect(w, r, "/views/"+url.PathEscape(strings.ToLower(entity)), http.StatusSeeOther)
}

type searchResponse struct {
	Query string           `json:"query"`
	Items []listing.Record `json:"items"`
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	term := r.URL.Query().Get("q")
	items, err := h.service.Search(r.Context(), entity, term)
	if err != nil {
		if errors.Is(err, context.Canceled) && h.superseded != nil {
			h.superseded(entity)
		}
		h.respondError(w, "search", err)
		return
	}
	httpx.JSON(w, http.StatusOK, searchResponse{Query: term, Items: items})
}

// parseQuery decodes the list query string. Invalid values are dropped, never
// rejected: a bad link still shows the list.
func (h *Handler) parseQuery(r *http.Request) listQuery {
	values := r.URL.Query()
	q := listQuery{
		Page:    atoi(values.Get("page")),
		PerPage: atoi(values.Get("per_page")),
		Search:  strings.TrimSpace(values.Get("search")),
		From:    strings.TrimSpace(values.Get("from")),
		To:      strings.TrimSpace(values.Get("to")),
		Status:  strings.TrimSpace(values.Get("status")),
	}
	err := h.validate.Struct(q)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return q
	}
	for _, fe := range verrs {
		switch fe.Field() {
		case "Page":
			q.Page = 0
		case "PerPage":
			q.PerPage = 0
		case "Search":
			q.Search = ""
		case "From":
			q.From = ""
		case "To":
			q.To = ""
		case "Status":
			q.Status = ""
		}
	}
	h.logger.Debug("dropped invalid list query fields", slog.Int("count", len(verrs)))
	return q
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name, title string, notices []notify.Toast, data any) {
	td := view.TemplateData{
		Title:       title,
		Desk:        shared.DeskFromContext(r.Context()),
		CurrentPath: r.URL.Path,
		Notices:     notices,
		Data:        data,
	}
	if err := h.templates.RenderStatus(w, status, name, td); err != nil {
		h.logger.Error("render "+name, slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case isBackendFailure(err):
		h.logger.Warn(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Bad Gateway", listing.FetchFailedMessage)
	case errors.Is(err, views.ErrNotSearchable):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrUnknownView), backend.IsRejection(err):
		httpx.RespondError(w, err)
	case errors.Is(err, context.Canceled):
		// client went away
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func isBackendFailure(err error) bool {
	return errors.Is(err, backend.ErrUnavailable) || errors.Is(err, backend.ErrUpstream) || errors.Is(err, backend.ErrDecode)
}

func isJSONBody(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

func pageSizeInput(r *http.Request) (string, error) {
	if isJSONBody(r) {
		var body pageSizeRequest
		if err := httpx.DecodeJSON(r, &body); err != nil {
			return "", err
		}
		switch v := body.PerPage.(type) {
		case nil:
			return "", nil
		case string:
			return v, nil
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		default:
			return fmt.Sprint(v), nil
		}
	}
	if err := r.ParseForm(); err != nil {
		return "", err
	}
	return r.PostFormValue("per_page"), nil
}

func atoi(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return n
}
