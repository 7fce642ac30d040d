// Package reconcile implements the bank reconciliation board: movements of one
// bank account whose reconciled flag is toggled optimistically.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-desk/internal/format"
	"github.com/odyssey-erp/odyssey-desk/internal/listing"
	"github.com/odyssey-erp/odyssey-desk/internal/notify"
	"github.com/odyssey-erp/odyssey-desk/internal/optimistic"
)

var (
	// ErrUnknownMovement is returned when toggling a movement the board does not hold.
	ErrUnknownMovement = errors.New("reconcile: unknown movement")
	// ErrBusy is returned when the movement already has a toggle in flight.
	ErrBusy = optimistic.ErrBusy
	// ErrLoadFailed wraps failures to fetch the movements.
	ErrLoadFailed = errors.New("reconcile: load failed")
)

// RollbackMessage is shown when a toggle fails without a backend message.
const RollbackMessage = "No se pudo confirmar el cambio. Se restauró el estado anterior."

// Backend is the part of the backend client the board needs.
type Backend interface {
	List(ctx context.Context, path string, q listing.Query) (listing.Result, error)
	SetReconciled(ctx context.Context, account, movement string, reconciled bool) error
}

// Invalidator drops cached lists after a committed change.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Movement is one bank movement.
type Movement struct {
	ID          string          `json:"id"`
	Date        string          `json:"fecha"`
	Description string          `json:"descripcion"`
	Reference   string          `json:"referencia"`
	Amount      decimal.Decimal `json:"importe"`
	Reconciled  bool            `json:"conciliado"`
}

// Summary totals the board.
type Summary struct {
	Reconciled      decimal.Decimal `json:"reconciled"`
	Pending         decimal.Decimal `json:"pending"`
	ReconciledCount int             `json:"reconciled_count"`
	PendingCount    int             `json:"pending_count"`
}

// Config wires a Board. OnRollback, when set, is told about every rolled
// back toggle.
type Config struct {
	Backend     Backend
	Invalidator Invalidator
	Logger      *slog.Logger
	OnRollback  func()
}

// Board holds the movements of one account from the last successful load.
type Board struct {
	mu        sync.Mutex
	account   string
	cfg       Config
	logger    *slog.Logger
	notices   *notify.Center
	ledger    *optimistic.Ledger[string, Movement]
	movements []Movement
	index     map[string]int
	loadGen   uint64
}

// NewBoard constructs an empty board for account.
func NewBoard(account string, cfg Config) *Board {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("account", account))
	return &Board{
		account: account,
		cfg:     cfg,
		logger:  logger,
		notices: notify.NewCenter(notify.DefaultCapacity, logger),
		ledger:  optimistic.NewLedger[string, Movement](),
		index:   map[string]int{},
	}
}

// Account returns the bank account of the board.
func (b *Board) Account() string {
	return b.account
}

// Load fetches the movements. On failure the previous movements stay.
func (b *Board) Load(ctx context.Context) error {
	res, err := b.cfg.Backend.List(ctx, b.path(), listing.Query{})
	if err != nil {
		b.notices.Notify(ctx, notify.KindWarning, listing.FetchFailedMessage)
		return fmt.Errorf("%w: %s: %w", ErrLoadFailed, b.account, err)
	}
	movements := make([]Movement, 0, len(res.Items))
	for _, rec := range res.Items {
		movements = append(movements, movementFromRecord(rec))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.movements = movements
	b.index = make(map[string]int, len(movements))
	for i, m := range movements {
		b.index[m.ID] = i
	}
	b.loadGen++
	return nil
}

// Movements returns a copy of the movements as currently shown.
func (b *Board) Movements() []Movement {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Movement, len(b.movements))
	copy(out, b.movements)
	return out
}

// Summary totals reconciled and pending amounts.
func (b *Board) Summary() Summary {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := Summary{Reconciled: decimal.Zero, Pending: decimal.Zero}
	for _, m := range b.movements {
		if m.Reconciled {
			s.Reconciled = s.Reconciled.Add(m.Amount)
			s.ReconciledCount++
		} else {
			s.Pending = s.Pending.Add(m.Amount)
			s.PendingCount++
		}
	}
	return s
}

// Notices drains the toasts raised by the board.
func (b *Board) Notices() []notify.Toast {
	return b.notices.Drain()
}

// Pending reports whether a toggle of id is in flight.
func (b *Board) Pending(id string) bool {
	return b.ledger.Pending(id)
}

// Toggle flips the reconciled flag of movement id at once and confirms it with
// the backend. When the backend rejects the change the exact prior movement is
// restored and the backend message is raised as an error toast.
func (b *Board) Toggle(ctx context.Context, id string) (Movement, error) {
	b.mu.Lock()
	idx, ok := b.index[id]
	if !ok {
		b.mu.Unlock()
		return Movement{}, fmt.Errorf("%w: %s", ErrUnknownMovement, id)
	}
	prior := b.movements[idx]
	next := prior
	next.Reconciled = !prior.Reconciled
	tr, err := b.ledger.Begin(id, prior, next)
	if err != nil {
		b.mu.Unlock()
		return prior, fmt.Errorf("reconcile: toggle %s: %w", id, err)
	}
	b.movements[idx] = next
	gen := b.loadGen
	b.mu.Unlock()

	logger := b.logger.With(slog.String("movement", id), slog.String("transition", tr.ID()))
	confirmErr := b.cfg.Backend.SetReconciled(ctx, b.account, id, next.Reconciled)
	current, state, _ := b.ledger.Settle(id, confirmErr)

	b.mu.Lock()
	if gen == b.loadGen {
		b.movements[idx] = current
	}
	b.mu.Unlock()

	if state == optimistic.StateRolledBack {
		logger.Warn("toggle rolled back", slog.Any("error", confirmErr))
		b.notices.Notify(ctx, notify.KindError, rollbackMessage(confirmErr))
		if b.cfg.OnRollback != nil {
			b.cfg.OnRollback()
		}
		return current, fmt.Errorf("reconcile: toggle %s: %w", id, confirmErr)
	}

	if b.cfg.Invalidator != nil {
		if err := b.cfg.Invalidator.Invalidate(ctx); err != nil {
			logger.Warn("invalidate list cache", slog.Any("error", err))
		}
	}
	logger.Info("toggle committed", slog.Bool("reconciled", current.Reconciled))
	return current, nil
}

func (b *Board) path() string {
	return "/api/bancos/" + url.PathEscape(b.account) + "/movimientos"
}

type userMessager interface {
	UserMessage() string
}

func rollbackMessage(err error) string {
	var um userMessager
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}
	return RollbackMessage
}

func movementFromRecord(rec listing.Record) Movement {
	amount, ok := format.Amount(rec["importe"])
	if !ok {
		amount = decimal.Zero
	}
	date, _ := format.ISODate(rec["fecha"])
	reconciled, _ := rec["conciliado"].(bool)
	return Movement{
		ID:          rec.ID(),
		Date:        date,
		Description: format.Text(rec["descripcion"]),
		Reference:   format.Text(rec["referencia"]),
		Amount:      amount,
		Reconciled:  reconciled,
	}
}

// Boards keeps one board per account.
type Boards struct {
	mu     sync.Mutex
	cfg    Config
	boards map[string]*Board
}

// NewBoards constructs an empty set of boards sharing cfg.
func NewBoards(cfg Config) *Boards {
	return &Boards{cfg: cfg, boards: map[string]*Board{}}
}

// Get returns the board of account, loading it on first use or when refresh is set.
func (bs *Boards) Get(ctx context.Context, account string, refresh bool) (*Board, error) {
	bs.mu.Lock()
	board, ok := bs.boards[account]
	if !ok {
		board = NewBoard(account, bs.cfg)
		bs.boards[account] = board
	}
	bs.mu.Unlock()
	if ok && !refresh {
		return board, nil
	}
	if err := board.Load(ctx); err != nil {
		if !ok {
			bs.mu.Lock()
			delete(bs.boards, account)
			bs.mu.Unlock()
		}
		return board, err
	}
	return board, nil
}

// Lookup returns the board of account if it was loaded before.
func (bs *Boards) Lookup(account string) (*Board, bool) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	board, ok := bs.boards[account]
	return board, ok
}
