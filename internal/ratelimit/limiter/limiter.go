// Package limiter bounds the number of expensive analysis actions a single
// client can trigger within a rolling window. The limit is advisory (UX
// level): check and record are deliberately separate, non-atomic operations,
// so two racing requests can over- or under-count by one. A hard limiter
// would replace them with a single atomic increment-and-check on the store.
package limiter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"careergate/internal/platform/metrics"
	"careergate/internal/ratelimit/models"
	dErrors "careergate/pkg/domain-errors"
	"careergate/pkg/kvstore"
)

const (
	// DefaultMaxRequests and DefaultWindow mirror the product limits for
	// resume analyses. Both are configuration, not business logic.
	DefaultMaxRequests = 20
	DefaultWindow      = 24 * time.Hour
)

type Limiter struct {
	store   kvstore.Store
	max     int
	window  time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Limiter)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

// WithLimits overrides the default max requests and window duration.
func WithLimits(max int, window time.Duration) Option {
	return func(l *Limiter) {
		l.max = max
		l.window = window
	}
}

// WithClock injects the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

func New(store kvstore.Store, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("kv store is required")
	}

	l := &Limiter{
		store:  store,
		max:    DefaultMaxRequests,
		window: DefaultWindow,
		logger: slog.Default(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.max <= 0 {
		return nil, errors.New("max requests must be positive")
	}
	if l.window <= 0 {
		return nil, errors.New("window duration must be positive")
	}

	return l, nil
}

// Limit returns the configured maximum number of requests per window.
func (l *Limiter) Limit() int {
	return l.max
}

// CheckLimit reports whether the client may perform another analysis. An
// expired window is cleared as a side effect (idempotent cleanup). CheckLimit
// never blocks the caller on a denial; it only reports it.
func (l *Limiter) CheckLimit(ctx context.Context, clientID string) (*models.Result, error) {
	window, err := l.load(ctx, clientID)
	if err != nil {
		return nil, err
	}

	now := l.now()
	if window == nil {
		return &models.Result{Allowed: true, Limit: l.max, Remaining: l.max}, nil
	}

	if window.Expired(l.window, now) {
		if err := l.store.Delete(ctx, models.WindowKey(clientID)); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear expired rate-limit window")
		}
		return &models.Result{Allowed: true, Limit: l.max, Remaining: l.max}, nil
	}

	remaining := l.max - window.Count()
	if remaining <= 0 {
		timeLeft := ceilSeconds(window.ExpiresAt(l.window).Sub(now))
		if l.metrics != nil {
			l.metrics.IncrementRateLimitDenials()
		}
		l.logger.InfoContext(ctx, "rate limit reached",
			"client_id", clientID,
			"time_left_seconds", timeLeft,
		)
		return &models.Result{Allowed: false, Limit: l.max, Remaining: 0, TimeLeftSeconds: timeLeft}, nil
	}

	return &models.Result{Allowed: true, Limit: l.max, Remaining: remaining}, nil
}

// RecordRequest appends the current instant to the client's window, starting
// a fresh window when none applies. Callers must have confirmed the action
// with CheckLimit first.
func (l *Limiter) RecordRequest(ctx context.Context, clientID string) error {
	window, err := l.load(ctx, clientID)
	if err != nil {
		return err
	}

	now := l.now()
	if window == nil || window.Expired(l.window, now) {
		window = &models.Window{WindowStart: now}
	}
	window.RequestTimestamps = append(window.RequestTimestamps, now)

	return l.persist(ctx, clientID, window)
}

// Window returns the client's current persisted window, or nil when none
// exists. Used by the admin surface.
func (l *Limiter) Window(ctx context.Context, clientID string) (*models.Window, error) {
	return l.load(ctx, clientID)
}

// Reset clears the client's window unconditionally.
func (l *Limiter) Reset(ctx context.Context, clientID string) error {
	if err := l.store.Delete(ctx, models.WindowKey(clientID)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset rate-limit window")
	}
	return nil
}

func (l *Limiter) load(ctx context.Context, clientID string) (*models.Window, error) {
	raw, ok, err := l.store.Get(ctx, models.WindowKey(clientID))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load rate-limit window")
	}
	if !ok {
		return nil, nil
	}

	var window models.Window
	if err := json.Unmarshal(raw, &window); err != nil {
		// A corrupt record would otherwise lock the client out forever.
		l.logger.WarnContext(ctx, "discarding corrupt rate-limit window",
			"client_id", clientID,
			"error", err,
		)
		_ = l.store.Delete(ctx, models.WindowKey(clientID))
		return nil, nil
	}
	return &window, nil
}

func (l *Limiter) persist(ctx context.Context, clientID string, window *models.Window) error {
	raw, err := json.Marshal(window)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode rate-limit window")
	}

	// TTL matches the window expiry so the store drops stale records on its
	// own in Redis deployments.
	ttl := window.ExpiresAt(l.window).Sub(l.now())
	if ttl <= 0 {
		ttl = time.Second
	}
	if err := l.store.Set(ctx, models.WindowKey(clientID), raw, ttl); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist rate-limit window")
	}
	return nil
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
