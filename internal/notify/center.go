// Package notify holds the transient, auto-dismissing messages shown to the reader.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Level is the severity of a notification
type Level string

const (
	Info  Level = "info"
	Warn  Level = "warning"
	Error Level = "error"
)

// DefaultTTL is how long a notification stays visible
const DefaultTTL = 3 * time.Second

// Notification is one message for the reader
type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Center collects notifications until they expire
type Center struct {
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger

	mu    sync.Mutex
	items []Notification
}

// Option customizes a Center
type Option func(*Center)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *Center) { c.now = now }
}

// NewCenter creates a notification center; a non-positive ttl means DefaultTTL
func NewCenter(ttl time.Duration, logger zerolog.Logger, opts ...Option) *Center {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Center{ttl: ttl, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Notify queues a message and logs it at the matching level
func (c *Center) Notify(level Level, message string) Notification {
	now := c.now()
	n := Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}

	switch level {
	case Error:
		c.logger.Error().Str("notification", n.ID).Msg(message)
	case Warn:
		c.logger.Warn().Str("notification", n.ID).Msg(message)
	default:
		c.logger.Info().Str("notification", n.ID).Msg(message)
	}

	c.mu.Lock()
	c.pruneLocked(now)
	c.items = append(c.items, n)
	c.mu.Unlock()
	return n
}

// Active returns the notifications that have not expired, oldest first
func (c *Center) Active() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked(c.now())
	out := make([]Notification, len(c.items))
	copy(out, c.items)
	return out
}

// Dismiss removes a notification before it expires
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, n := range c.items {
		if n.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Center) pruneLocked(now time.Time) {
	kept := c.items[:0]
	for _, n := range c.items {
		if now.Before(n.ExpiresAt) {
			kept = append(kept, n)
		}
	}
	c.items = kept
}
