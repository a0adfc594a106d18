// Package redisrepo keeps the session snapshot in Redis so several hosts can
// share one session.
package redisrepo

import (
	"context"
	"encoding/json"
	"time"

	errs "github.com/jrsteele09/school-portal/internal/errors"
	"github.com/jrsteele09/school-portal/sessions"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Cmdable is the subset of redis commands the repo needs. *redis.Client
// satisfies it.
type Cmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ sessions.Repo = (*RedisSessionRepo)(nil)

type RedisSessionRepo struct {
	client Cmdable
	key    string
	ttl    time.Duration
}

type Option func(*RedisSessionRepo)

// WithPrefix namespaces the storage key.
func WithPrefix(prefix string) Option {
	return func(r *RedisSessionRepo) {
		r.key = prefix + sessions.StorageKey
	}
}

// WithTTL expires the stored snapshot after ttl. Zero keeps it forever.
func WithTTL(ttl time.Duration) Option {
	return func(r *RedisSessionRepo) {
		r.ttl = ttl
	}
}

func New(client Cmdable, options ...Option) *RedisSessionRepo {
	r := &RedisSessionRepo{
		client: client,
		key:    sessions.StorageKey,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Dial connects to the Redis server at url (redis://host:port/db).
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "redisrepo.Dial ParseURL")
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "redisrepo.Dial Ping")
	}
	return client, nil
}

func (r *RedisSessionRepo) Key() string {
	return r.key
}

func (r *RedisSessionRepo) Load(ctx context.Context) (*sessions.Snapshot, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "RedisSessionRepo.Load Get")
	}

	var snapshot sessions.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, errs.Wrapf(errs.ErrMalformedSnapshot, "RedisSessionRepo.Load %s: %v", r.key, err)
	}
	return &snapshot, nil
}

func (r *RedisSessionRepo) Save(ctx context.Context, snapshot *sessions.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "RedisSessionRepo.Save Marshal")
	}
	if err := r.client.Set(ctx, r.key, data, r.ttl).Err(); err != nil {
		return errors.Wrap(err, "RedisSessionRepo.Save Set")
	}
	return nil
}

func (r *RedisSessionRepo) Delete(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return errors.Wrap(err, "RedisSessionRepo.Delete Del")
	}
	return nil
}
