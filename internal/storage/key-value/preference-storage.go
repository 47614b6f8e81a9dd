package key_value

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iamvkosarev/hablaya/internal/model"
	"github.com/redis/go-redis/v9"
)

// PreferenceStorage keeps preferences as plain redis strings under a common
// prefix. A zero ttl keeps them forever.
type PreferenceStorage struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewPreferenceStorage(rdb redis.UniversalClient, prefix string, ttl time.Duration) *PreferenceStorage {
	return &PreferenceStorage{
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (p *PreferenceStorage) Get(ctx context.Context, key string) (string, error) {
	value, err := p.rdb.Get(ctx, p.preferenceKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", model.ErrPreferenceNotFound
		}
		return "", fmt.Errorf("failed to get preference %s: %w", key, err)
	}
	return value, nil
}

func (p *PreferenceStorage) Set(ctx context.Context, key, value string) error {
	if err := p.rdb.Set(ctx, p.preferenceKey(key), value, p.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save preference %s: %w", key, err)
	}
	return nil
}

func (p *PreferenceStorage) preferenceKey(key string) string {
	return fmt.Sprintf("%spref_%s", p.prefix, key)
}
