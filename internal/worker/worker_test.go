package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/bus"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/metrics"
	"github.com/opensource-finance/harrier/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
)

func newTestRepo(t *testing.T) *repository.SQLRepository {
	t.Helper()
	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func publish(t *testing.T, b domain.EventBus, topic string, v any) {
	t.Helper()
	payload, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if err := b.Publish(context.Background(), topic, payload); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWorkerLifecycle(t *testing.T) {
	eventBus := bus.NewChannelBus(16)
	defer eventBus.Close()

	w := NewWorker(eventBus, newTestRepo(t))
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	stats := w.GetStats()
	if stats.SubscriptionCount != 3 {
		t.Errorf("expected 3 subscriptions, got %d", stats.SubscriptionCount)
	}
	want := map[string]bool{domain.TopicBlacklist: true, domain.TopicAlert: true, domain.TopicCase: true}
	for _, topic := range stats.Topics {
		if !want[topic] {
			t.Errorf("unexpected topic %q", topic)
		}
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if n := w.GetStats().SubscriptionCount; n != 0 {
		t.Errorf("expected 0 subscriptions after stop, got %d", n)
	}
}

func TestWorkerRecordsResponses(t *testing.T) {
	eventBus := bus.NewChannelBus(16)
	defer eventBus.Close()
	repo := newTestRepo(t)

	w := NewWorker(eventBus, repo)
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	now := time.Now().UTC().Truncate(time.Second)
	ctx := context.Background()

	t.Run("Blacklist", func(t *testing.T) {
		publish(t, eventBus, domain.TopicBlacklist, &domain.BlacklistEntry{
			ID:        "bl-1",
			EntityID:  "ind-1",
			Reason:    "national ID shared with another applicant",
			CreatedAt: now,
			ExpiresAt: now.Add(24 * time.Hour),
		})

		eventually(t, func() bool {
			ok, err := repo.IsBlacklisted(ctx, "ind-1", now)
			return err == nil && ok
		})

		ok, err := repo.IsBlacklisted(ctx, "ind-1", now.Add(25*time.Hour))
		if err != nil {
			t.Fatalf("IsBlacklisted failed: %v", err)
		}
		if ok {
			t.Error("expected blacklist entry to expire")
		}
	})

	t.Run("Case", func(t *testing.T) {
		publish(t, eventBus, domain.TopicCase, &domain.InvestigationCase{
			ID:           "case-1",
			EntityID:     "ind-2",
			AssessmentID: "fa-1",
			Priority:     domain.CasePriorityHigh,
			Status:       "open",
			Summary:      "impossible travel",
			CreatedAt:    now,
		})

		var cases []*domain.InvestigationCase
		eventually(t, func() bool {
			var err error
			cases, err = repo.ListCases(ctx, "ind-2")
			return err == nil && len(cases) == 1
		})

		if cases[0].Priority != domain.CasePriorityHigh {
			t.Errorf("expected priority high, got %s", cases[0].Priority)
		}
		if cases[0].AssessmentID != "fa-1" {
			t.Errorf("expected assessment fa-1, got %s", cases[0].AssessmentID)
		}
	})
}

// alertFailures reads the side effect failure counter for the alert topic.
func alertFailures(t *testing.T, reg *prometheus.Registry) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "test_fraud_side_effect_failures_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "topic" && label.GetValue() == domain.TopicAlert {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

type stubStore struct {
	alerts atomic.Int32
	err    error
}

func (s *stubStore) SaveBlacklistEntry(context.Context, *domain.BlacklistEntry) error { return s.err }
func (s *stubStore) SaveCase(context.Context, *domain.InvestigationCase) error        { return s.err }
func (s *stubStore) SaveAlert(context.Context, *domain.Alert) error {
	s.alerts.Add(1)
	return s.err
}

func TestWorkerCountsFailures(t *testing.T) {
	eventBus := bus.NewChannelBus(16)
	defer eventBus.Close()

	reg := prometheus.NewRegistry()
	m := metrics.NewManager(metrics.WithNamespace("test"), metrics.WithRegistry(reg))
	store := &stubStore{err: errors.New("disk full")}

	w := NewWorker(eventBus, store, WithMetrics(m))
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	publish(t, eventBus, domain.TopicAlert, &domain.Alert{ID: "al-1", EntityID: "ind-3"})

	eventually(t, func() bool {
		return alertFailures(t, reg) == 1
	})
	if n := store.alerts.Load(); n != 1 {
		t.Errorf("expected 1 alert save attempt, got %d", n)
	}

	// A malformed payload fails decoding and never reaches the store.
	if err := eventBus.Publish(context.Background(), domain.TopicAlert, []byte("{")); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	eventually(t, func() bool {
		return alertFailures(t, reg) == 2
	})
	if n := store.alerts.Load(); n != 1 {
		t.Errorf("expected store untouched by malformed payload, got %d calls", n)
	}
}
