package maintenance

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lock file names under the storage root.
const (
	ReindexLockFile  = "periodic_reindex.lock"
	OptimizeLockFile = "periodic_optimization.lock"
)

// Locker is an advisory lock shared between processes.
type Locker interface {
	// TryLock acquires the lock without waiting. It returns false when the
	// lock is held elsewhere.
	TryLock(ctx context.Context) (bool, error)

	// Unlock releases a lock acquired by TryLock.
	Unlock(ctx context.Context) error
}

// FileLock is a Locker backed by flock(2) on a file. It excludes other
// processes on the same host, and other FileLocks in this process.
type FileLock struct {
	path string
	fl   *flock.Flock

	// held is set while this FileLock is acquired; flock alone would
	// grant the same handle twice.
	held atomic.Bool
}

var _ Locker = (*FileLock)(nil)

// NewFileLock returns a lock on path. The file is created on first use.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path, fl: flock.New(path)}
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.path
}

func (l *FileLock) TryLock(ctx context.Context) (bool, error) {
	if !l.held.CompareAndSwap(false, true) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		l.held.Store(false)
		return false, fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := l.fl.TryLock()
	if err != nil || !ok {
		l.held.Store(false)
	}
	return ok, err
}

func (l *FileLock) Unlock(ctx context.Context) error {
	if !l.held.Load() {
		return nil
	}
	err := l.fl.Unlock()
	l.held.Store(false)
	return err
}

// unlockScript deletes the key only while it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLock is a Locker backed by a Redis key, for deployments whose
// processes do not share a filesystem. The key expires after ttl so a crashed
// holder cannot keep the lock forever.
type RedisLock struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration

	mu    sync.Mutex
	token string
}

var _ Locker = (*RedisLock)(nil)

// NewRedisLock returns a lock on key.
func NewRedisLock(client redis.UniversalClient, key string, ttl time.Duration) *RedisLock {
	return &RedisLock{client: client, key: key, ttl: ttl}
}

func (l *RedisLock) TryLock(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire redis lock %q: %w", l.key, err)
	}
	if ok {
		l.mu.Lock()
		l.token = token
		l.mu.Unlock()
	}
	return ok, nil
}

func (l *RedisLock) Unlock(ctx context.Context) error {
	l.mu.Lock()
	token := l.token
	l.token = ""
	l.mu.Unlock()
	if token == "" {
		return nil
	}
	if err := unlockScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
		return fmt.Errorf("release redis lock %q: %w", l.key, err)
	}
	return nil
}
