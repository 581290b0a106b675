// Package provider gathers external credit data for an entity from bureau
// and alternative-data sources.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/metrics"
)

// BureauProvider fetches a credit bureau report. A nil report with a nil
// error means the bureau holds no file for the entity.
type BureauProvider interface {
	Name() string
	FetchBureau(ctx context.Context, entity domain.Entity) (*domain.CreditBureauData, error)
}

// AlternativeProvider fetches alternative-data points.
type AlternativeProvider interface {
	Name() string
	FetchAlternative(ctx context.Context, entity domain.Entity) ([]domain.AlternativeDataPoint, error)
}

// ExternalData is everything gathered for one entity.
type ExternalData struct {
	Bureau      *domain.CreditBureauData
	Alternative []domain.AlternativeDataPoint
}

// Aggregator calls every configured source concurrently. Each attempt runs
// under its own timeout and failed attempts are retried with exponential
// backoff; a source that never answers contributes no data.
type Aggregator struct {
	bureau      BureauProvider
	alternative []AlternativeProvider

	timeout    time.Duration
	maxRetries int
	backoff    time.Duration

	metrics *metrics.Manager
	logger  *slog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithBureau sets the bureau source.
func WithBureau(p BureauProvider) Option {
	return func(a *Aggregator) { a.bureau = p }
}

// WithAlternative adds alternative-data sources.
func WithAlternative(p ...AlternativeProvider) Option {
	return func(a *Aggregator) { a.alternative = append(a.alternative, p...) }
}

// WithMetrics instruments the aggregator.
func WithMetrics(m *metrics.Manager) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAggregator creates an aggregator.
func NewAggregator(cfg domain.ProviderConfig, opts ...Option) *Aggregator {
	a := &Aggregator{
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
		logger:     slog.Default(),
	}
	if a.timeout <= 0 {
		a.timeout = 10 * time.Second
	}
	if a.maxRetries < 0 {
		a.maxRetries = 0
	}
	if a.backoff <= 0 {
		a.backoff = 200 * time.Millisecond
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "provider_aggregator")
	return a
}

// Gather fetches bureau and alternative data concurrently. It never fails;
// unavailable sources are logged and left out.
func (a *Aggregator) Gather(ctx context.Context, entity domain.Entity) ExternalData {
	var (
		wg     sync.WaitGroup
		data   ExternalData
		perAlt = make([][]domain.AlternativeDataPoint, len(a.alternative))
	)

	if a.bureau != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := fetchWithRetry(ctx, a, a.bureau.Name(), func(ctx context.Context) (*domain.CreditBureauData, error) {
				return a.bureau.FetchBureau(ctx, entity)
			})
			if err != nil {
				a.degrade(a.bureau.Name(), entity, err)
				return
			}
			data.Bureau = report
		}()
	}

	for i, p := range a.alternative {
		wg.Add(1)
		go func(idx int, p AlternativeProvider) {
			defer wg.Done()
			points, err := fetchWithRetry(ctx, a, p.Name(), func(ctx context.Context) ([]domain.AlternativeDataPoint, error) {
				return p.FetchAlternative(ctx, entity)
			})
			if err != nil {
				a.degrade(p.Name(), entity, err)
				return
			}
			perAlt[idx] = points
		}(i, p)
	}

	wg.Wait()

	for _, points := range perAlt {
		data.Alternative = append(data.Alternative, points...)
	}
	return data
}

func (a *Aggregator) degrade(source string, entity domain.Entity, err error) {
	a.logger.Warn("external source unavailable, continuing without it",
		"source", source,
		"entity_id", entity.EntityID(),
		"error", err,
	)
	a.metrics.RecordProviderFailure(source)
}

// fetchWithRetry calls fn with exponential backoff and jitter between attempts.
func fetchWithRetry[T any](ctx context.Context, a *Aggregator, source string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := a.backoff * time.Duration(1<<uint(attempt-1))
			jitter := time.Duration(rand.Int64N(int64(backoff)/2 + 1))
			timer := time.NewTimer(backoff + jitter)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, a.timeout)
		out, err := fn(attemptCtx)
		cancel()
		if err == nil {
			return out, nil
		}
		lastErr = err
		a.logger.Debug("external source attempt failed",
			"source", source,
			"attempt", attempt+1,
			"error", err,
		)
	}

	return zero, fmt.Errorf("%s: exhausted %d retries: %w", source, a.maxRetries, lastErr)
}
