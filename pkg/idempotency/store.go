package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pendingMarker = "pending"

	// DefaultPendingTTL bounds how long an unfinished claim blocks retries
	// if its holder never saves or releases it.
	DefaultPendingTTL = time.Minute
)

// Response is a completed HTTP response kept for replay.
type Response struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type Store struct {
	rdb        redis.Cmdable
	ttl        time.Duration
	pendingTTL time.Duration
}

type StoreOption func(*Store)

func WithPendingTTL(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.pendingTTL = d
		}
	}
}

// NewStore keeps completed responses for ttl. Claims expire after the
// pending TTL, never later than ttl.
func NewStore(rdb redis.Cmdable, ttl time.Duration, opts ...StoreOption) *Store {
	s := &Store{rdb: rdb, ttl: ttl, pendingTTL: DefaultPendingTTL}
	for _, opt := range opts {
		opt(s)
	}
	if s.pendingTTL > ttl {
		s.pendingTTL = ttl
	}
	return s
}

// Claim reserves key for the caller. It reports false when another request
// already holds or completed the key.
func (s *Store) Claim(ctx context.Context, key string) (bool, error) {
	return s.rdb.SetNX(ctx, key, pendingMarker, s.pendingTTL).Result()
}

// Load returns the stored response for key. A nil response with a nil error
// means the key is claimed but the original request has not finished.
func (s *Store) Load(ctx context.Context, key string) (*Response, error) {
	raw, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) || raw == pendingMarker {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var resp Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *Store) Save(ctx context.Context, key string, resp Response) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, raw, s.ttl).Err()
}

func (s *Store) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
