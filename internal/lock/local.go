package lock

import (
	"context"
	"sync"
	"time"
)

// LocalLocker はプロセス内で完結するキー単位のロック。
// 単一プロセスでworkerとserveを動かす構成で使用する。
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]chan struct{}
	poll time.Duration
}

// NewLocalLocker はLocalLockerを生成する。
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		held: make(map[string]chan struct{}),
		poll: 50 * time.Millisecond,
	}
}

type localRelease struct {
	l    *LocalLocker
	key  string
	ch   chan struct{}
	once sync.Once
}

func (r *localRelease) Unlock(_ context.Context) error {
	err := ErrNotHeld
	r.once.Do(func() {
		r.l.mu.Lock()
		defer r.l.mu.Unlock()
		if cur, ok := r.l.held[r.key]; ok && cur == r.ch {
			delete(r.l.held, r.key)
			close(r.ch)
			err = nil
		}
	})
	return err
}

// TryLock はキーが空いていれば即座にロックを取得する。
func (l *LocalLocker) TryLock(_ context.Context, key string) (Releaser, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, false, nil
	}
	ch := make(chan struct{})
	l.held[key] = ch
	return &localRelease{l: l, key: key, ch: ch}, true, nil
}

// Lock はキーが解放されるまで待機してからロックを取得する。
func (l *LocalLocker) Lock(ctx context.Context, key string) (Releaser, error) {
	for {
		r, ok, err := l.TryLock(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			return r, nil
		}

		l.mu.Lock()
		wait := l.held[key]
		l.mu.Unlock()
		if wait == nil {
			continue
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		case <-time.After(l.poll):
		}
	}
}

// compile-time interface check
var _ Locker = (*LocalLocker)(nil)
