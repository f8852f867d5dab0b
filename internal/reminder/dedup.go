package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/shaho/internal/model"
	"github.com/hitoshi/shaho/internal/repository"
)

// Gate は通知履歴と照合してリマインダー通知の重複送信を抑止する。
//
// 同一の(宛先ユーザー, 申請ID（なければ従業員ID）, 作成日, 区分)の通知が
// 既に存在する場合は重複とみなす。作成日は組織のタイムゾーンで判定するため、
// 期限超過の通知は1日1回まで繰り返し送信される。
// 履歴の参照と通知の作成はトランザクションではないため、
// 同一組織の並行実行では重複が発生し得る（組織ロックで直列化する）。
type Gate struct {
	notifications repository.NotificationRepository
	loc           *time.Location
}

// NewGate はGateを生成する。locがnilの場合はUTCを使用する。
func NewGate(notifications repository.NotificationRepository, loc *time.Location) *Gate {
	if loc == nil {
		loc = time.UTC
	}
	return &Gate{notifications: notifications, loc: loc}
}

// ShouldSend は候補の通知を作成してよいかを返す。
// skipDuplicateCheckがtrueの場合は履歴を参照せずに常にtrueを返す。
func (g *Gate) ShouldSend(ctx context.Context, candidate *model.Notification, category Category, now time.Time, skipDuplicateCheck bool) (bool, error) {
	if skipDuplicateCheck {
		return true, nil
	}

	from, to := g.dayBounds(now)
	history, err := g.notifications.ListByUser(ctx, candidate.UserID, candidate.OrganizationID, model.NotificationFilter{
		CreatedFrom: from,
		CreatedTo:   to,
	})
	if err != nil {
		return false, fmt.Errorf("通知履歴の取得に失敗しました: %w", err)
	}

	for _, n := range history {
		if n.CreatedAt.Before(from) || !n.CreatedAt.Before(to) {
			continue
		}
		if !sameSubject(n, candidate) {
			continue
		}
		if categoryOf(n) == category {
			return false, nil
		}
	}
	return true, nil
}

// dayBounds はnowを含む現地日付の開始時刻と翌日の開始時刻を返す。
func (g *Gate) dayBounds(now time.Time) (time.Time, time.Time) {
	local := now.In(g.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, g.loc)
	return start, start.AddDate(0, 0, 1)
}

// sameSubject は2つの通知が同じ申請（申請がなければ同じ従業員）を対象としているかを返す。
func sameSubject(a, b *model.Notification) bool {
	if b.ApplicationID != nil {
		return a.ApplicationID != nil && *a.ApplicationID == *b.ApplicationID
	}
	if a.ApplicationID != nil {
		return false
	}
	return a.EmployeeID != nil && b.EmployeeID != nil && *a.EmployeeID == *b.EmployeeID
}
