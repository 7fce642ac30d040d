package viewshttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-desk/internal/backend"
	"github.com/odyssey-erp/odyssey-desk/internal/listing"
	"github.com/odyssey-erp/odyssey-desk/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-desk/internal/shared"
	"github.com/odyssey-erp/odyssey-desk/internal/view"
	"github.com/odyssey-erp/odyssey-desk/internal/views"
)

const registryYAML = `
views:
  - name: checks
    title: Cheques
    path: /api/cheques
    mode: client
    fields: {search: [numero], date: fecha}
    columns:
      - {key: numero, label: Número}
  - name: invoices
    title: Facturas
    path: /api/facturas
    search_path: /api/facturas/buscar
    mode: server
    columns:
      - {key: numero, label: Número}
`

type fakeBackend struct {
	mu    sync.Mutex
	items []listing.Record
	err   error
	last  listing.Query
}

func (b *fakeBackend) List(_ context.Context, _ string, q listing.Query) (listing.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = q
	if b.err != nil {
		return listing.Result{}, b.err
	}
	return listing.Result{Items: b.items, Total: len(b.items)}, nil
}

func (b *fakeBackend) Search(_ context.Context, _ string, term string) ([]listing.Record, error) {
	return []listing.Record{{"id": 1, "numero": term}}, nil
}

func (b *fakeBackend) Settings(context.Context) (backend.Settings, error) {
	return backend.Settings{}, nil
}

func rows(n int) []listing.Record {
	out := make([]listing.Record, n)
	for i := range out {
		out[i] = listing.Record{"id": i + 1, "numero": fmt.Sprintf("CH-%03d", i+1), "fecha": "2024-05-01"}
	}
	return out
}

func newRouter(t *testing.T, be *fakeBackend) http.Handler {
	t.Helper()
	reg, err := views.ParseRegistry([]byte(registryYAML))
	require.NoError(t, err)
	engine, err := view.NewEngine()
	require.NoError(t, err)
	svc := views.NewService(views.Config{Registry: reg, Backend: be})
	h := NewHandler(nil, svc, engine, 5)

	desks := shared.NewDeskManager("odyssey_desk", time.Hour, false)
	r := chi.NewRouter()
	r.Use(desks.Middleware)
	r.Route("/views", h.MountRoutes)
	return r
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	req.Header.Set(shared.DeskHeader, "desk-test")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestIndexListsViews(t *testing.T) {
	h := newRouter(t, &fakeBackend{})
	rr := do(t, h, httptest.NewRequest(http.MethodGet, "/views/?format=json", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Views []views.Definition `json:"views"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.Len(t, body.Views, 2)
	assert.Equal(t, "checks", body.Views[0].Name)

	rr = do(t, h, httptest.NewRequest(http.MethodGet, "/views/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `href="/views/invoices"`)
}

func TestListRendersPaginationControls(t *testing.T) {
	h := newRouter(t, &fakeBackend{items: rows(35)})
	rr := do(t, h, httptest.NewRequest(http.MethodGet, "/views/checks?page=2", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "<h1>Cheques</h1>")
	assert.Contains(t, body, `class="pagination"`)
	assert.Contains(t, body, `aria-current="page">2</span>`)
	assert.Contains(t, body, "CH-011")
	assert.NotContains(t, body, "CH-021")
}

func TestEmptyListHasNoPageControls(t *testing.T) {
	h := newRouter(t, &fakeBackend{})
	rr := do(t, h, httptest.NewRequest(http.MethodGet, "/views/checks", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "No hay registros")
	assert.NotContains(t, body, `class="pagination"`)
	assert.NotContains(t, body, "page-size")
}

func TestInvalidQueryFieldsAreDropped(t *testing.T) {
	be := &fakeBackend{items: rows(3)}
	h := newRouter(t, be)
	rr := do(t, h, httptest.NewRequest(http.MethodGet, "/views/invoices?format=json&page=abc&per_page=-2&from=2024-13-45&to=2024-06-30", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var page views.Page
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&page))
	assert.Equal(t, 1, page.List.Pagination.Page)
	assert.Equal(t, shared.DefaultPerPage, page.List.Pagination.PerPage)
	assert.Equal(t, "", be.last.Filter.Dates.Start)
	assert.Equal(t, "2024-06-30", be.last.Filter.Dates.End)
}

func TestPageSizeEditPersistsPerDesk(t *testing.T) {
	h := newRouter(t, &fakeBackend{items: rows(60)})

	post := func(body string) pageSizeResponse {
		req := httptest.NewRequest(http.MethodPost, "/views/checks/page-size", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rr := do(t, h, req)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var res pageSizeResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		return res
	}

	res := post(`{"per_page":"0"}`)
	assert.False(t, res.Applied)
	assert.Equal(t, shared.DefaultPerPage, res.PerPage)

	res = post(`{"per_page":"abc"}`)
	assert.False(t, res.Applied)

	res = post(`{"per_page":25}`)
	assert.True(t, res.Applied)
	assert.Equal(t, 25, res.PerPage)

	rr := do(t, h, httptest.NewRequest(http.MethodGet, "/views/checks?format=json", nil))
	var page views.Page
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&page))
	assert.Equal(t, 25, page.List.Pagination.PerPage)
	assert.Equal(t, 3, page.List.Pagination.TotalPages)
}

func TestPageSizeFormRedirects(t *testing.T) {
	h := newRouter(t, &fakeBackend{items: rows(5)})
	form := url.Values{"per_page": {"20"}}
	req := httptest.NewRequest(http.MethodPost, "/views/checks/page-size", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := do(t, h, req)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/views/checks", rr.Header().Get("Location"))
}

func TestSearchEndpoint(t *testing.T) {
	h := newRouter(t, &fakeBackend{})

	rr := do(t, h, httptest.NewRequest(http.MethodGet, "/views/invoices/search?q=a", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var res searchResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.Empty(t, res.Items)

	rr = do(t, h, httptest.NewRequest(http.MethodGet, "/views/invoices/search?q=0042", nil))
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	require.Len(t, res.Items, 1)
	assert.Equal(t, "0042", res.Items[0]["numero"])

	rr = do(t, h, httptest.NewRequest(http.MethodGet, "/views/checks/search?q=0042", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSearchIsRateLimited(t *testing.T) {
	h := newRouter(t, &fakeBackend{})
	var last int
	for i := 0; i < 6; i++ {
		last = do(t, h, httptest.NewRequest(http.MethodGet, "/views/invoices/search?q=abc", nil)).Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestUnknownViewIsNotFound(t *testing.T) {
	h := newRouter(t, &fakeBackend{})
	rr := do(t, h, httptest.NewRequest(http.MethodGet, "/views/payroll?format=json", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBackendFailure(t *testing.T) {
	h := newRouter(t, &fakeBackend{err: fmt.Errorf("%w: refused", backend.ErrUnavailable)})

	rr := do(t, h, httptest.NewRequest(http.MethodGet, "/views/invoices?format=json", nil))
	require.Equal(t, http.StatusBadGateway, rr.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&problem))
	assert.Equal(t, listing.FetchFailedMessage, problem.Detail)

	rr = do(t, h, httptest.NewRequest(http.MethodGet, "/views/invoices", nil))
	require.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "No se pudo cargar el listado")
}

func TestBackendRejectionKeepsStatusAndMessage(t *testing.T) {
	h := newRouter(t, &fakeBackend{err: &backend.RejectionError{Status: http.StatusForbidden, Message: "Sin permiso"}})
	rr := do(t, h, httptest.NewRequest(http.MethodGet, "/views/invoices?format=json", nil))
	require.Equal(t, http.StatusForbidden, rr.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&problem))
	assert.Equal(t, "Sin permiso", problem.Detail)
}

type cancelledSearch struct {
	Service
}

func (cancelledSearch) Search(context.Context, string, string) ([]listing.Record, error) {
	return nil, context.Canceled
}

func TestAbandonedSearchIsReportedAsSuperseded(t *testing.T) {
	engine, err := view.NewEngine()
	require.NoError(t, err)
	h := NewHandler(nil, cancelledSearch{}, engine, 5)
	var superseded []string
	h.OnSuperseded(func(entity string) { superseded = append(superseded, entity) })

	r := chi.NewRouter()
	r.Route("/views", h.MountRoutes)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/views/invoices/search?q=ab", nil))
	assert.Equal(t, []string{"invoices"}, superseded)
}
