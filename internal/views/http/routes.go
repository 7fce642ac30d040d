package viewshttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/odyssey-desk/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-desk/internal/shared"
)

const (
	defaultSearchLimit = 120
	rateWindow         = time.Minute
)

// MountRoutes registers the list view endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(h.searchLimit, rateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests), "")
		}),
	)
	r.Get("/", h.handleIndex)
	r.Get("/{entity}", h.handleList)
	r.Post("/{entity}/page-size", h.handlePageSize)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Get("/{entity}/search", h.handleSearch)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if desk := shared.DeskFromContext(r.Context()); desk != "" {
		return "desk:" + desk, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
