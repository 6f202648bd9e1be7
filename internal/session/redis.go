package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix    = "mathpad:session:"
	redisLockPrefix   = "mathpad:lock:"
	redisUploadPrefix = "mathpad:upload:"
)

// releaseScript deletes a lock only if it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

const (
	defaultLockTTL = 2 * time.Minute
	lockMargin     = 30 * time.Second
	unboundedLock  = 15 * time.Minute
)

// LockTTL returns how long an action lock has to live so that it outlasts
// a model call bounded by callTimeout. A zero callTimeout means calls are
// unbounded.
func LockTTL(callTimeout time.Duration) time.Duration {
	if callTimeout <= 0 {
		return unboundedLock
	}
	return max(callTimeout+lockMargin, defaultLockTTL)
}

// RedisStore keeps sessions in Redis so they survive restarts and can be
// shared by several server processes.
type RedisStore struct {
	rdb     *goredis.Client
	ttl     time.Duration
	lockTTL time.Duration
}

// NewRedisStore connects to the Redis server at url
// (redis://[:password@]host:port/db). lockTTL bounds how long a crashed
// action can keep a session busy.
func NewRedisStore(ctx context.Context, url string, ttl, lockTTL time.Duration) (*RedisStore, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStoreFromClient(rdb, ttl, lockTTL), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(rdb *goredis.Client, ttl, lockTTL time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl, lockTTL: lockTTL}
}

func (r *RedisStore) Load(ctx context.Context, id string) (*State, error) {
	b, err := r.rdb.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return decode(b)
}

func (r *RedisStore) Save(ctx context.Context, s *State) error {
	b, err := encode(s)
	if err != nil {
		return err
	}
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, redisKeyPrefix+s.ID, b, r.ttl)
	pipe.Expire(ctx, redisUploadPrefix+s.ID, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, redisKeyPrefix+id, redisUploadPrefix+id).Err(); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// SaveUpload stores the upload as a hash {id, png} next to the session.
func (r *RedisStore) SaveUpload(ctx context.Context, id, uploadID string, png []byte) error {
	key := redisUploadPrefix + id
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, key, "id", uploadID, "png", png)
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving upload: %w", err)
	}
	return nil
}

func (r *RedisStore) LoadUpload(ctx context.Context, id, uploadID string) ([]byte, error) {
	vals, err := r.rdb.HMGet(ctx, redisUploadPrefix+id, "id", "png").Result()
	if err != nil {
		return nil, fmt.Errorf("loading upload: %w", err)
	}
	storedID, _ := vals[0].(string)
	png, _ := vals[1].(string)
	if storedID != uploadID || png == "" {
		return nil, ErrNotFound
	}
	return []byte(png), nil
}

func (r *RedisStore) Acquire(ctx context.Context, id string) (func(), error) {
	key := redisLockPrefix + id
	token := uuid.NewString()
	ok, err := r.rdb.SetNX(ctx, key, token, r.lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("locking session: %w", err)
	}
	if !ok {
		return nil, ErrBusy
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, r.rdb, []string{key}, token).Err()
	}, nil
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}
