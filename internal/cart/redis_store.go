package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-shop-checkout.git/internal/redisx"
)

// RedisStore keeps one hash per session: field = product id, value = line JSON.
// The TTL is refreshed on every write so active carts survive, abandoned ones
// expire with the session.
type RedisStore struct {
	R *redis.Client
}

func (s *RedisStore) key(sessionID string) string {
	return fmt.Sprintf(redisx.KeyCart, sessionID)
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (map[int64]Line, error) {
	raw, err := s.R.HGetAll(ctx, s.key(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("cart hgetall: %w", err)
	}

	lines := make(map[int64]Line, len(raw))
	for field, val := range raw {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue // skip corrupt fields rather than failing the whole cart
		}
		var line Line
		if err := json.Unmarshal([]byte(val), &line); err != nil {
			continue
		}
		lines[id] = line
	}
	return lines, nil
}

func (s *RedisStore) SetLine(ctx context.Context, sessionID string, productID int64, line Line) error {
	b, err := json.Marshal(line)
	if err != nil {
		return err
	}
	key := s.key(sessionID)
	if err := s.R.HSet(ctx, key, strconv.FormatInt(productID, 10), b).Err(); err != nil {
		return fmt.Errorf("cart hset: %w", err)
	}
	return s.R.Expire(ctx, key, redisx.TTLCart).Err()
}

func (s *RedisStore) DeleteLine(ctx context.Context, sessionID string, productID int64) error {
	return s.R.HDel(ctx, s.key(sessionID), strconv.FormatInt(productID, 10)).Err()
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	return s.R.Del(ctx, s.key(sessionID)).Err()
}
