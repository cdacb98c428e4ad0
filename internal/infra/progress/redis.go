package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/bryanwahyu/synthpanel/internal/domain/runs"
	"github.com/bryanwahyu/synthpanel/internal/logger"
)

const keyPrefix = "synthpanel:progress:"

// Key is the Redis key (and pub/sub channel) of a run's progress entry.
func Key(id runs.RunID) string { return keyPrefix + string(id) }

// Redis keeps progress entries as JSON values with a TTL and publishes every
// update on the entry's channel.
type Redis struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func NewRedis(ctx context.Context, opt RedisOptions, log *logger.Logger) (*Redis, error) {
	if opt.Addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	if log == nil {
		log = logger.Nop()
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opt.Addr,
		Password:    opt.Password,
		DB:          opt.DB,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{log: log.With("service", "RedisProgress"), rdb: rdb, ttl: opt.TTL}, nil
}

func (r *Redis) Set(ctx context.Context, id runs.RunID, p runs.Progress) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, Key(id), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set progress: %w", err)
	}
	if err := r.rdb.Publish(ctx, Key(id), raw).Err(); err != nil {
		r.log.Warn("progress publish failed", "run_id", id, "error", err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, id runs.RunID) (runs.Progress, bool, error) {
	raw, err := r.rdb.Get(ctx, Key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return runs.Progress{}, false, nil
	}
	if err != nil {
		return runs.Progress{}, false, fmt.Errorf("redis get progress: %w", err)
	}
	p, err := decode(raw)
	if err != nil {
		return runs.Progress{}, false, err
	}
	return p, true, nil
}

func (r *Redis) Remove(ctx context.Context, id runs.RunID) error {
	return r.rdb.Del(ctx, Key(id)).Err()
}

// Ping reports whether Redis is reachable. Used by the readiness check.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

func decode(raw []byte) (runs.Progress, error) {
	var p runs.Progress
	if err := json.Unmarshal(raw, &p); err != nil {
		return runs.Progress{}, fmt.Errorf("decode progress: %w", err)
	}
	return p, nil
}

var _ runs.ProgressStore = (*Redis)(nil)
