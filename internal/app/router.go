package app

import (
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/odyssey-desk/internal/observability"
	"github.com/odyssey-erp/odyssey-desk/internal/reconcile"
	"github.com/odyssey-erp/odyssey-desk/internal/shared"
	viewshttp "github.com/odyssey-erp/odyssey-desk/internal/views/http"
	"github.com/odyssey-erp/odyssey-desk/jobs"
	"github.com/odyssey-erp/odyssey-desk/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	DeskManager      *shared.DeskManager
	ViewsHandler     *viewshttp.Handler
	ReconcileHandler *reconcile.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with desk defaults.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:      logger,
		Config:      params.Config,
		DeskManager: params.DeskManager,
		Metrics:     params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/views", http.StatusSeeOther)
	})

	if params.ViewsHandler != nil {
		r.Route("/views", params.ViewsHandler.MountRoutes)
	}
	if params.ReconcileHandler != nil {
		r.Route("/reconciliation", params.ReconcileHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	registerStaticTypes(logger)
	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler caches static assets for one hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}

var staticTypesOnce sync.Once

// registerStaticTypes makes sure the file server labels the desk assets even
// on hosts without a mime.types database.
func registerStaticTypes(logger *slog.Logger) {
	staticTypesOnce.Do(func() {
		for ext, typ := range map[string]string{
			".css": "text/css; charset=utf-8",
			".js":  "text/javascript; charset=utf-8",
			".svg": "image/svg+xml",
		} {
			if mime.TypeByExtension(ext) != "" {
				continue
			}
			if err := mime.AddExtensionType(ext, typ); err != nil {
				logger.Warn("register mime type", slog.String("ext", ext), slog.Any("error", err))
			}
		}
	})
}
