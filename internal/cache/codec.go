package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

type byteStore interface {
	Get(ctx context.Context, namespace string, key string) ([]byte, error)
	Set(ctx context.Context, namespace string, key string, value []byte, ttl time.Duration) error
}

func getScoringResult(ctx context.Context, s byteStore, key string) (*domain.ScoringResult, error) {
	data, err := s.Get(ctx, domain.CacheNamespaceScoring, key)
	if err != nil || data == nil {
		return nil, err
	}

	var result domain.ScoringResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode cached scoring result: %w", err)
	}
	return &result, nil
}

func setScoringResult(ctx context.Context, s byteStore, key string, result *domain.ScoringResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode scoring result: %w", err)
	}
	return s.Set(ctx, domain.CacheNamespaceScoring, key, data, ttl)
}
