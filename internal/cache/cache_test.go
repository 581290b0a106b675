package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

func TestLRUCache(t *testing.T) {
	cache := NewLRUCache(100)
	ctx := context.Background()
	ns := "scoring"

	t.Run("SetAndGet", func(t *testing.T) {
		if err := cache.Set(ctx, ns, "key1", []byte("value1"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		val, err := cache.Get(ctx, ns, "key1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(val) != "value1" {
			t.Errorf("expected 'value1', got '%s'", string(val))
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		val, err := cache.Get(ctx, ns, "nonexistent")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected nil for cache miss, got: %v", val)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = cache.Set(ctx, ns, "key2", []byte("value2"), time.Minute)

		if err := cache.Delete(ctx, ns, "key2"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		val, _ := cache.Get(ctx, ns, "key2")
		if val != nil {
			t.Error("expected nil after delete")
		}
	})

	t.Run("TTLCheckedAtRead", func(t *testing.T) {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		clocked := NewLRUCache(10).WithClock(func() time.Time { return now })

		_ = clocked.Set(ctx, ns, "expiring", []byte("temp"), 5*time.Minute)

		now = now.Add(4 * time.Minute)
		if val, _ := clocked.Get(ctx, ns, "expiring"); val == nil {
			t.Error("expected value before expiration")
		}

		now = now.Add(time.Minute)
		if val, _ := clocked.Get(ctx, ns, "expiring"); val != nil {
			t.Error("expected nil at expiration")
		}

		size, _ := clocked.Stats()
		if size != 0 {
			t.Errorf("expected expired entry to be dropped on read, size %d", size)
		}
	})

	t.Run("LRUEviction", func(t *testing.T) {
		smallCache := NewLRUCache(3)

		_ = smallCache.Set(ctx, ns, "a", []byte("1"), time.Minute)
		_ = smallCache.Set(ctx, ns, "b", []byte("2"), time.Minute)
		_ = smallCache.Set(ctx, ns, "c", []byte("3"), time.Minute)

		// Touch 'a' so 'b' becomes the oldest
		_, _ = smallCache.Get(ctx, ns, "a")
		_ = smallCache.Set(ctx, ns, "d", []byte("4"), time.Minute)

		if val, _ := smallCache.Get(ctx, ns, "b"); val != nil {
			t.Error("expected 'b' to be evicted")
		}
		if val, _ := smallCache.Get(ctx, ns, "a"); val == nil {
			t.Error("expected 'a' to still exist")
		}
	})

	t.Run("NamespaceIsolation", func(t *testing.T) {
		_ = cache.Set(ctx, "scoring", "shared-key", []byte("score"), time.Minute)
		_ = cache.Set(ctx, "other", "shared-key", []byte("other"), time.Minute)

		val1, _ := cache.Get(ctx, "scoring", "shared-key")
		val2, _ := cache.Get(ctx, "other", "shared-key")

		if string(val1) != "score" {
			t.Errorf("expected 'score', got '%s'", string(val1))
		}
		if string(val2) != "other" {
			t.Errorf("expected 'other', got '%s'", string(val2))
		}
	})

	t.Run("RequiresNamespace", func(t *testing.T) {
		err := cache.Set(ctx, "", "key", []byte("value"), time.Minute)
		if !errors.Is(err, ErrNamespaceRequired) {
			t.Errorf("expected ErrNamespaceRequired, got %v", err)
		}

		_, err = cache.Get(ctx, "", "key")
		if !errors.Is(err, ErrNamespaceRequired) {
			t.Errorf("expected ErrNamespaceRequired, got %v", err)
		}
	})

	t.Run("LastWriterWins", func(t *testing.T) {
		_ = cache.Set(ctx, ns, "lww", []byte("first"), time.Minute)
		_ = cache.Set(ctx, ns, "lww", []byte("second"), time.Minute)

		val, _ := cache.Get(ctx, ns, "lww")
		if string(val) != "second" {
			t.Errorf("expected 'second', got '%s'", string(val))
		}
	})

	t.Run("ScoringResult", func(t *testing.T) {
		result := &domain.ScoringResult{
			EntityID:   "ind-001",
			EntityType: domain.KindIndividual,
			Score:      712,
			RiskLevel:  domain.RiskLow,
			Factors: []domain.AssessmentFactor{
				{Category: "payment_history", Weight: 0.35, Score: 0.91, Impact: domain.ImpactPositive},
			},
			LoanAmountRange: domain.LoanRange{Min: 3600, Max: 36000},
			Confidence:      0.83,
		}

		if err := cache.SetScoringResult(ctx, "ind-001|1", result, time.Minute); err != nil {
			t.Fatalf("SetScoringResult failed: %v", err)
		}

		got, err := cache.GetScoringResult(ctx, "ind-001|1")
		if err != nil {
			t.Fatalf("GetScoringResult failed: %v", err)
		}
		if got == nil {
			t.Fatal("expected cached result")
		}
		if got.Score != 712 || got.RiskLevel != domain.RiskLow {
			t.Errorf("unexpected result: %+v", got)
		}
		if got.Factors[0].Score != 0.91 {
			t.Errorf("expected factor score 0.91, got %v", got.Factors[0].Score)
		}

		miss, err := cache.GetScoringResult(ctx, "ind-001|2")
		if err != nil || miss != nil {
			t.Errorf("expected clean miss, got %v, %v", miss, err)
		}
	})

	t.Run("Stats", func(t *testing.T) {
		statsCache := NewLRUCache(50)
		_ = statsCache.Set(ctx, ns, "k1", []byte("v1"), time.Minute)
		_ = statsCache.Set(ctx, ns, "k2", []byte("v2"), time.Minute)

		size, capacity := statsCache.Stats()
		if size != 2 {
			t.Errorf("expected size 2, got %d", size)
		}
		if capacity != 50 {
			t.Errorf("expected capacity 50, got %d", capacity)
		}
	})

	t.Run("Close", func(t *testing.T) {
		testCache := NewLRUCache(10)
		_ = testCache.Set(ctx, ns, "k", []byte("v"), time.Minute)

		if err := testCache.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
		if val, _ := testCache.Get(ctx, ns, "k"); val != nil {
			t.Error("expected cache to be cleared after close")
		}
	})
}

func TestNewCache(t *testing.T) {
	t.Run("MemoryType", func(t *testing.T) {
		cache, err := New(domain.CacheConfig{Type: "memory", LocalMaxSize: 100})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer cache.Close()

		if _, ok := cache.(*LRUCache); !ok {
			t.Error("expected LRUCache for memory type")
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		if _, err := New(domain.CacheConfig{Type: "memcached"}); err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}
