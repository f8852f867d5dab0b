// Package lock は組織単位のリマインダー実行を直列化するロックを提供する。
// REDIS_URLが設定されている場合はRedisによる分散ロック、
// 未設定の場合はプロセス内のキー単位ミューテックスを使用する。
package lock

import (
	"context"
	"errors"
)

// ErrNotHeld はロックを保持していない所有者が解放しようとした場合のエラー。
var ErrNotHeld = errors.New("lock not held by this owner")

// Releaser は取得済みロックを解放する。
type Releaser interface {
	Unlock(ctx context.Context) error
}

// Locker はキー単位の排他ロックを取得するインターフェース。
type Locker interface {
	// TryLock はロックの取得を一度だけ試みる。取得できなかった場合はnil, false, nilを返す。
	TryLock(ctx context.Context, key string) (Releaser, bool, error)

	// Lock はロックを取得するまで待機する。ctxがキャンセルされた場合はctx.Err()を返す。
	Lock(ctx context.Context, key string) (Releaser, error)
}

// OrganizationKey は組織のリマインダー実行用ロックキーを返す。
func OrganizationKey(organizationID string) string {
	return "reminder:org:" + organizationID
}
