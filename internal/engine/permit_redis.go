package engine

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// redisPermit backs the job permit with a SETNX-style distributed lock, for
// deployments where more than one process might race to run a job (spec
// §4.G names a single process-wide permit; a Redis lock generalizes that
// guarantee across processes the way the teacher's job-dispatch code used
// Redis as its coordination point).
type redisPermit struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	token  string
}

// NewRedisPermit wires a Redis-backed permit. ttl bounds how long a permit
// survives a crashed holder before another process may reclaim it.
func NewRedisPermit(client *redis.Client, key string, ttl time.Duration) Permit {
	return &redisPermit{client: client, key: key, ttl: ttl}
}

func (p *redisPermit) TryAcquire(holder string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ok, err := p.client.SetNX(ctx, p.key, holder, p.ttl).Result()
	if err != nil {
		log.Warn().Err(err).Str("key", p.key).Msg("redis permit acquire failed, treating as unavailable")
		return false
	}
	return ok
}

func (p *redisPermit) Release() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.client.Del(ctx, p.key).Err(); err != nil {
		log.Warn().Err(err).Str("key", p.key).Msg("redis permit release failed")
	}
}
