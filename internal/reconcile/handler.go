package reconcile

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-desk/internal/backend"
	"github.com/odyssey-erp/odyssey-desk/internal/listing"
	"github.com/odyssey-erp/odyssey-desk/internal/notify"
	"github.com/odyssey-erp/odyssey-desk/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-desk/internal/shared"
	"github.com/odyssey-erp/odyssey-desk/internal/view"
)

const pathParamRule = "required,max=64,excludesall=/?#"

// Handler manages reconciliation endpoints.
type Handler struct {
	boards    *Boards
	templates *view.Engine
	validate  *validator.Validate
	currency  string
	logger    *slog.Logger
}

// NewHandler creates a reconciliation handler. Amounts render in currency.
func NewHandler(boards *Boards, templates *view.Engine, currency string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if currency == "" {
		currency = "ARS"
	}
	return &Handler{boards: boards, templates: templates, validate: validator.New(), currency: currency, logger: logger}
}

// MountRoutes registers reconciliation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{account}", h.board)
	r.Post("/{account}/movements/{id}/toggle", h.toggle)
}

type boardVM struct {
	Account   string         `json:"account"`
	Currency  string         `json:"currency"`
	Movements []Movement     `json:"movements"`
	Summary   Summary        `json:"summary"`
	Notices   []notify.Toast `json:"notices,omitempty"`
}

func (h *Handler) board(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	if err := h.validate.Var(account, pathParamRule); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	board, err := h.boards.Get(r.Context(), account, r.URL.Query().Get("refresh") == "1")
	vm := boardVM{Account: account, Currency: h.currency}
	status := http.StatusOK
	if err != nil {
		h.logger.Warn("load reconciliation board", slog.String("account", account), slog.Any("error", err))
		if httpx.WantsJSON(r) {
			h.respondError(w, err)
			return
		}
		status = http.StatusBadGateway
	}
	vm.Movements = board.Movements()
	vm.Summary = board.Summary()
	vm.Notices = board.Notices()

	if httpx.WantsJSON(r) {
		httpx.JSON(w, status, vm)
		return
	}
	data := view.TemplateData{
		Title:       "Conciliación " + account,
		Desk:        shared.DeskFromContext(r.Context()),
		CurrentPath: r.URL.Path,
		Notices:     vm.Notices,
		Data:        vm,
	}
	if err := h.templates.RenderStatus(w, status, "pages/reconciliation.html", data); err != nil {
		h.logger.Error("render reconciliation", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type toggleResponse struct {
	Movement Movement `json:"movement"`
	Summary  Summary  `json:"summary"`
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	id := chi.URLParam(r, "id")
	if h.validate.Var(account, pathParamRule) != nil || h.validate.Var(id, pathParamRule) != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	board, ok := h.boards.Lookup(account)
	if !ok {
		var err error
		board, err = h.boards.Get(r.Context(), account, false)
		if err != nil {
			h.respondError(w, err)
			return
		}
	}
	movement, err := board.Toggle(r.Context(), id)
	if !httpx.WantsJSON(r) {
		http.Redirect(w, r, "/reconciliation/"+url.PathEscape(account), http.StatusSeeOther)
		return
	}
	if err != nil {
		// the rollback toast is returned as the problem detail
		board.Notices()
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toggleResponse{Movement: movement, Summary: board.Summary()})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnknownMovement):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrBusy):
		httpx.Problem(w, http.StatusConflict, "Conflict", "El movimiento tiene un cambio en curso.")
	case backend.IsRejection(err):
		httpx.RespondError(w, err)
	case errors.Is(err, ErrLoadFailed):
		httpx.Problem(w, http.StatusBadGateway, "Bad Gateway", listing.FetchFailedMessage)
	case errors.Is(err, backend.ErrUnavailable), errors.Is(err, backend.ErrUpstream), errors.Is(err, backend.ErrDecode):
		httpx.Problem(w, http.StatusBadGateway, "Bad Gateway", RollbackMessage)
	default:
		h.logger.Error("reconciliation", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
