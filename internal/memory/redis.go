package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rendis/flowcore/pkg/schema"
)

const (
	// DefaultTTL is how long an idle conversation is kept.
	DefaultTTL         = 60 * time.Minute
	conversationPrefix = "conversation:"
)

// RedisStore keeps each session as a capped Redis list of JSON turns.
type RedisStore struct {
	client    redis.UniversalClient
	ttl       time.Duration
	maxStored int
	now       func() time.Time
}

// RedisOption customizes a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets the idle expiry of a session key.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

// WithMaxStored caps the retained turns per session.
func WithMaxStored(n int) RedisOption {
	return func(s *RedisStore) {
		if n > 0 {
			s.maxStored = n
		}
	}
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, ttl: DefaultTTL, maxStored: DefaultMaxStored, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// DialRedis parses a redis:// URL, connects, and pings the server.
func DialRedis(ctx context.Context, url string, opts ...RedisOption) (*RedisStore, error) {
	ro, err := redis.ParseURL(url)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeConfiguration, "invalid redis url").WithCause(err)
	}
	client := redis.NewClient(ro)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, schema.NewError(schema.ErrCodeStore, "connect to redis").WithCause(err)
	}
	return NewRedisStore(client, opts...), nil
}

func (s *RedisStore) key(sessionID string) string {
	return conversationPrefix + sessionID
}

func (s *RedisStore) GetHistory(ctx context.Context, sessionID string, maxTurns int) ([]Turn, error) {
	start := int64(0)
	if maxTurns > 0 {
		start = -int64(maxTurns)
	}
	raw, err := s.client.LRange(ctx, s.key(sessionID), start, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "read conversation %s", sessionID).WithCause(err)
	}
	turns := make([]Turn, 0, len(raw))
	for _, r := range raw {
		var t Turn
		if err := json.Unmarshal([]byte(r), &t); err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore, "decode conversation %s", sessionID).WithCause(err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (s *RedisStore) Append(ctx context.Context, sessionID, role, content string) error {
	data, err := json.Marshal(Turn{Role: role, Content: content, At: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}
	key := s.key(sessionID)
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key, data)
		p.LTrim(ctx, key, -int64(s.maxStored), -1)
		if s.ttl > 0 {
			p.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "append conversation %s", sessionID).WithCause(err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "clear conversation %s", sessionID).WithCause(err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
