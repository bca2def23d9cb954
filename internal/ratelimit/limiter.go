// Package ratelimit implements a persisted sliding-window request counter.
//
// Every accepted request is recorded as its own row; a check counts the rows
// for (identity, endpoint) inside the trailing window. Rows live in a shared
// store so limits survive instance recycling on a stateless host.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DefaultRetention is how long entries are kept before Sweep removes them.
const DefaultRetention = 2 * time.Hour

// Store is the persistence contract the limiter needs.
type Store interface {
	CountSince(ctx context.Context, identity, endpoint string, since time.Time) (int, error)
	Record(ctx context.Context, identity, endpoint string, at time.Time) error
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Rule describes one independent window.
type Rule struct {
	MaxRequests int
	Window      time.Duration
	Endpoint    string
}

// Result is the outcome of a check.
type Result struct {
	Allowed   bool
	Remaining int
	// Endpoint names the rule that produced the result.
	Endpoint string
}

type Limiter struct {
	store     Store
	logger    *slog.Logger
	retention time.Duration
	now       func() time.Time
}

type Option func(*Limiter)

func WithLogger(l *slog.Logger) Option {
	return func(lim *Limiter) {
		if l != nil {
			lim.logger = l
		}
	}
}

// WithRetention sets the sweep horizon. Values shorter than DefaultRetention
// are ignored.
func WithRetention(d time.Duration) Option {
	return func(lim *Limiter) {
		if d > lim.retention {
			lim.retention = d
		}
	}
}

// WithRules raises the sweep horizon to cover the longest window among rules.
func WithRules(rules ...Rule) Option {
	return func(lim *Limiter) {
		for _, r := range rules {
			if r.Window > lim.retention {
				lim.retention = r.Window
			}
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(lim *Limiter) { lim.now = now }
}

func New(store Store, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("ratelimit: store must not be nil")
	}
	l := &Limiter{
		store:     store,
		logger:    slog.Default(),
		retention: DefaultRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Check counts prior entries for identity within the rule window and, when
// under the cap, records this request. A failed count lets the request
// through.
func (l *Limiter) Check(ctx context.Context, identity string, rule Rule) (Result, error) {
	if err := rule.validate(); err != nil {
		return Result{}, err
	}
	identity = normalizeIdentity(identity)
	now := l.now().UTC()

	count, err := l.store.CountSince(ctx, identity, rule.Endpoint, now.Add(-rule.Window))
	if err != nil {
		l.logger.ErrorContext(ctx, "rate limit count failed, allowing request",
			"endpoint", rule.Endpoint, "err", err)
		return Result{Allowed: true, Remaining: rule.MaxRequests, Endpoint: rule.Endpoint}, nil
	}
	if count >= rule.MaxRequests {
		return Result{Allowed: false, Remaining: 0, Endpoint: rule.Endpoint}, nil
	}

	if err := l.store.Record(ctx, identity, rule.Endpoint, now); err != nil {
		l.logger.ErrorContext(ctx, "rate limit record failed",
			"endpoint", rule.Endpoint, "err", err)
	}
	return Result{Allowed: true, Remaining: rule.MaxRequests - count - 1, Endpoint: rule.Endpoint}, nil
}

// CheckAll evaluates rules in order and returns the first rejection, or the
// result of the last rule when every window allows the request.
func (l *Limiter) CheckAll(ctx context.Context, identity string, rules ...Rule) (Result, error) {
	if len(rules) == 0 {
		return Result{}, errors.New("ratelimit: at least one rule is required")
	}
	var last Result
	for _, rule := range rules {
		res, err := l.Check(ctx, identity, rule)
		if err != nil {
			return Result{}, err
		}
		if !res.Allowed {
			return res, nil
		}
		last = res
	}
	return last, nil
}

// Sweep deletes entries older than the retention horizon.
func (l *Limiter) Sweep(ctx context.Context) (int, error) {
	cutoff := l.now().UTC().Add(-l.retention)
	n, err := l.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return n, fmt.Errorf("ratelimit: sweep: %w", err)
	}
	return n, nil
}

// Retention reports the active sweep horizon.
func (l *Limiter) Retention() time.Duration {
	return l.retention
}

func (r Rule) validate() error {
	if r.MaxRequests <= 0 {
		return fmt.Errorf("ratelimit: rule %q: max requests must be positive", r.Endpoint)
	}
	if r.Window <= 0 {
		return fmt.Errorf("ratelimit: rule %q: window must be positive", r.Endpoint)
	}
	if strings.TrimSpace(r.Endpoint) == "" {
		return errors.New("ratelimit: rule endpoint must not be empty")
	}
	return nil
}

func normalizeIdentity(identity string) string {
	identity = strings.ToLower(strings.TrimSpace(identity))
	if identity == "" {
		return "unknown"
	}
	return identity
}
