// Package worker consumes fraud response messages and records them in the fraud store.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/metrics"
)

// Store is the slice of the repository the worker writes to.
type Store interface {
	SaveBlacklistEntry(ctx context.Context, entry *domain.BlacklistEntry) error
	SaveAlert(ctx context.Context, alert *domain.Alert) error
	SaveCase(ctx context.Context, c *domain.InvestigationCase) error
}

// Worker subscribes to the blacklist, alert and case topics.
type Worker struct {
	bus     domain.EventBus
	store   Store
	metrics *metrics.Manager
	logger  *slog.Logger

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// Option configures a Worker.
type Option func(*Worker)

// WithMetrics records persistence failures.
func WithMetrics(m *metrics.Manager) Option {
	return func(w *Worker) { w.metrics = m }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWorker creates a worker. Call Start to begin consuming.
func NewWorker(bus domain.EventBus, store Store, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		bus:    bus,
		store:  store,
		logger: slog.Default(),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start subscribes to every fraud response topic. A failed subscription
// unwinds the ones already made.
func (w *Worker) Start() error {
	handlers := []struct {
		topic   string
		handler domain.MessageHandler
	}{
		{domain.TopicBlacklist, decodeInto(w.saveBlacklist)},
		{domain.TopicAlert, decodeInto(w.saveAlert)},
		{domain.TopicCase, decodeInto(w.saveCase)},
	}

	for _, h := range handlers {
		sub, err := w.bus.Subscribe(w.ctx, h.topic, w.guard(h.topic, h.handler))
		if err != nil {
			w.unsubscribeAll()
			return fmt.Errorf("subscribe %s: %w", h.topic, err)
		}
		w.subscriptions = append(w.subscriptions, sub)
	}

	w.logger.Info("fraud response worker started", "topics", len(w.subscriptions))
	return nil
}

// guard logs and counts handler failures so one bad message never stops the subscription.
func (w *Worker) guard(topic string, handler domain.MessageHandler) domain.MessageHandler {
	return func(ctx context.Context, msg *domain.Message) error {
		if err := handler(ctx, msg); err != nil {
			w.logger.Error("failed to record fraud response",
				"topic", topic,
				"message_id", msg.ID,
				"error", err,
			)
			w.metrics.RecordSideEffectFailure(topic)
			return err
		}
		return nil
	}
}

// decodeInto adapts a typed save function to a message handler.
func decodeInto[T any](save func(context.Context, *T) error) domain.MessageHandler {
	return func(ctx context.Context, msg *domain.Message) error {
		var v T
		if err := json.Unmarshal(msg.Payload, &v); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return save(ctx, &v)
	}
}

func (w *Worker) saveBlacklist(ctx context.Context, entry *domain.BlacklistEntry) error {
	if err := w.store.SaveBlacklistEntry(ctx, entry); err != nil {
		return err
	}
	w.logger.Warn("entity blacklisted",
		"entity_id", entry.EntityID,
		"expires_at", entry.ExpiresAt,
	)
	return nil
}

func (w *Worker) saveAlert(ctx context.Context, alert *domain.Alert) error {
	if err := w.store.SaveAlert(ctx, alert); err != nil {
		return err
	}
	w.logger.Info("fraud alert recorded",
		"entity_id", alert.EntityID,
		"assessment_id", alert.AssessmentID,
		"risk_level", alert.RiskLevel,
	)
	return nil
}

func (w *Worker) saveCase(ctx context.Context, c *domain.InvestigationCase) error {
	if err := w.store.SaveCase(ctx, c); err != nil {
		return err
	}
	w.logger.Info("investigation case opened",
		"entity_id", c.EntityID,
		"case_id", c.ID,
		"priority", c.Priority,
	)
	return nil
}

// Stop unsubscribes and cancels in-flight handlers.
func (w *Worker) Stop() error {
	w.cancel()
	w.unsubscribeAll()
	w.logger.Info("fraud response worker stopped")
	return nil
}

func (w *Worker) unsubscribeAll() {
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscription_count"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
