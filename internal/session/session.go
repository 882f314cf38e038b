// Package session keeps conversation histories keyed by an opaque session id.
// Sessions live for a fixed TTL measured from their creation, not from their
// last activity.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/comigor/campbot/internal/chat"
	"github.com/comigor/campbot/internal/logger"
)

// DefaultTTL is the session lifetime used when none is configured.
const DefaultTTL = 2 * time.Hour

// ErrNotFound is returned for unknown or already evicted sessions.
var ErrNotFound = errors.New("session not found")

// Session is a snapshot of a conversation.
type Session struct {
	ID        string
	Turns     []chat.Turn
	CreatedAt time.Time
}

// Store persists sessions. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns a snapshot of the session or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)
	// Create starts an empty session with a fresh unique id.
	Create(ctx context.Context) (*Session, error)
	// Append adds turns to the end of the session history.
	Append(ctx context.Context, id string, turns ...chat.Turn) error
	// Sweep evicts sessions created more than the TTL before now and returns
	// how many were removed.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Option customizes a store.
type Option func(*options)

type options struct {
	ttl   time.Duration
	clock func() time.Time
	newID func() string
}

// WithTTL sets the session lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithClock replaces time.Now for creation timestamps.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

func buildOptions(opts []Option) options {
	o := options{
		ttl:   DefaultTTL,
		clock: time.Now,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// expired reports whether a session created at createdAt is past ttl at now.
func expired(createdAt, now time.Time, ttl time.Duration) bool {
	return now.Sub(createdAt) > ttl
}

// RunSweeper evicts expired sessions every interval until ctx is done.
func RunSweeper(ctx context.Context, store Store, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := store.Sweep(ctx, now)
			if err != nil {
				logger.L.Warn("session sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				logger.L.Info("expired sessions evicted", "count", removed)
			}
		}
	}
}
