// Package notify carries transient user-facing notices (toasts) next to the
// list state they describe.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a toast.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// DefaultCapacity bounds how many undelivered toasts a Center keeps.
const DefaultCapacity = 32

// Toast is a one-time notification for the user.
type Toast struct {
	ID      string    `json:"id"`
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier receives side-channel notices.
type Notifier interface {
	Notify(ctx context.Context, kind Kind, message string)
}

// Discard drops every notice.
type Discard struct{}

// Notify implements Notifier.
func (Discard) Notify(context.Context, Kind, string) {}

// Center queues toasts until the view drains them. The oldest toast is dropped
// once capacity is reached.
type Center struct {
	mu       sync.Mutex
	toasts   []Toast
	capacity int
	logger   *slog.Logger
	now      func() time.Time
}

// NewCenter constructs a Center. A nil logger disables logging.
func NewCenter(capacity int, logger *slog.Logger) *Center {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Center{capacity: capacity, logger: logger, now: time.Now}
}

// Notify implements Notifier.
func (c *Center) Notify(ctx context.Context, kind Kind, message string) {
	if c == nil || message == "" {
		return
	}
	toast := Toast{ID: uuid.NewString(), Kind: kind, Message: message, At: c.now()}

	c.mu.Lock()
	if len(c.toasts) >= c.capacity {
		c.toasts = c.toasts[1:]
	}
	c.toasts = append(c.toasts, toast)
	c.mu.Unlock()

	if c.logger != nil {
		level := slog.LevelInfo
		switch kind {
		case KindWarning:
			level = slog.LevelWarn
		case KindError:
			level = slog.LevelError
		}
		c.logger.Log(ctx, level, "toast", slog.String("kind", string(kind)), slog.String("message", message))
	}
}

// Drain returns and clears the queued toasts, oldest first.
func (c *Center) Drain() []Toast {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.toasts
	c.toasts = nil
	return out
}

// Len reports the number of queued toasts.
func (c *Center) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.toasts)
}
