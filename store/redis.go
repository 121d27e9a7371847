package store

import (
	"context"
	"path"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcphost/pkg/llms"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcphost", "store")

// DefaultTTL bounds how long a run transcript stays available for inspection.
const DefaultTTL = 24 * time.Hour

// The redis store mirrors run transcripts in Redis so they can be inspected
// out of process. Keys are structured as `/<prefix>/runstore/<runID>` and
// carry a TTL; nothing outlives operational inspection.
type redisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a MessageStore backed by Redis. A zero ttl gets
// DefaultTTL.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) MessageStore {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &redisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (m *redisStore) key(runID string) string {
	return path.Join(m.prefix, "runstore", runID)
}

func (m *redisStore) Messages(ctx context.Context, runID string) ([]llms.Message, error) {
	data, err := m.client.LRange(ctx, m.key(runID), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read run transcript from Redis")
	}

	var messages []llms.Message
	for _, item := range data {
		msg, err := llms.UnmarshalMessage([]byte(item))
		if err != nil {
			logger.ContextKV(ctx, xlog.ERROR, "reason", "unmarshal message", "run_id", runID, "err", err.Error())
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (m *redisStore) Add(ctx context.Context, runID string, msgs ...llms.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	key := m.key(runID)
	items := make([]any, 0, len(msgs))
	for _, msg := range msgs {
		data, err := llms.MarshalMessage(msg)
		if err != nil {
			return err
		}
		items = append(items, data)
	}

	pipe := m.client.Pipeline()
	pipe.RPush(ctx, key, items...)
	pipe.Expire(ctx, key, m.ttl)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to store run transcript in Redis")
	}
	return nil
}

func (m *redisStore) Reset(ctx context.Context, runID string) error {
	err := m.client.Del(ctx, m.key(runID)).Err()
	if err != nil {
		return errors.Wrap(err, "failed to reset run transcript in Redis")
	}
	return nil
}
