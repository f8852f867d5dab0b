package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockScript は所有者トークンが一致する場合のみキーを削除する。
var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// RedisLocker はSET NXとトークン照合による分散ロック。
// TTLを超えて処理が続いた場合、ロックは自動的に失効する。
type RedisLocker struct {
	client     redis.UniversalClient
	ttl        time.Duration
	retryDelay time.Duration
}

// NewRedisLocker はRedisLockerを生成する。ttlが0以下の場合は5分を使用する。
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisLocker{
		client:     client,
		ttl:        ttl,
		retryDelay: 100 * time.Millisecond,
	}
}

// NewRedisClient はREDIS_URL形式の接続文字列からクライアントを生成する。
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("REDIS_URLの解析に失敗しました: %w", err)
	}
	return redis.NewClient(opts), nil
}

type redisRelease struct {
	client redis.UniversalClient
	key    string
	token  string
}

func (r *redisRelease) Unlock(ctx context.Context) error {
	res, err := unlockScript.Run(ctx, r.client, []string{r.key}, r.token).Int64()
	if err != nil {
		return fmt.Errorf("ロックの解放に失敗しました: %w", err)
	}
	if res == 0 {
		return ErrNotHeld
	}
	return nil
}

// TryLock はSET NXでロックの取得を一度だけ試みる。
func (l *RedisLocker) TryLock(ctx context.Context, key string) (Releaser, bool, error) {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("ロックの取得に失敗しました: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return &redisRelease{client: l.client, key: key, token: token}, true, nil
}

// Lock はロックを取得できるまでretryDelay間隔で再試行する。
func (l *RedisLocker) Lock(ctx context.Context, key string) (Releaser, error) {
	for {
		r, ok, err := l.TryLock(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			return r, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryDelay):
		}
	}
}

// compile-time interface check
var _ Locker = (*RedisLocker)(nil)
