// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/shaho/internal/model"
)

// ApplicationRepository は申請データの永続化インターフェース。
type ApplicationRepository interface {
	// FindByID は指定IDの申請を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Application, error)

	// ListByOrganization は組織の申請一覧を取得する。
	// filterのゼロ値フィールドは絞り込み条件に含めない。
	ListByOrganization(ctx context.Context, organizationID string, filter model.ApplicationFilter) ([]*model.Application, error)

	// UpdateDeadlines は算出した法定期限と、対象者ごとの期限を書き込んだ申請データを保存する。
	// 管理者が設定した期限（deadline列）は変更しない。
	UpdateDeadlines(ctx context.Context, id string, legalDeadline *time.Time, payload model.Payload) error
}

// EmployeeRepository は従業員データの永続化インターフェース。
type EmployeeRepository interface {
	// FindByID は指定IDの従業員を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Employee, error)

	// ListByOrganization は組織の全従業員を取得する。
	ListByOrganization(ctx context.Context, organizationID string) ([]*model.Employee, error)
}

// OrganizationRepository は組織設定の永続化インターフェース。
type OrganizationRepository interface {
	// FindConfig は組織の申請種別とリマインダー設定を取得する。
	// 組織が存在しない場合はnilを返す。リマインダー設定が未登録の場合はReminderSettingsがnil。
	FindConfig(ctx context.Context, organizationID string) (*model.OrganizationConfig, error)

	// ListIDsWithReminderSettings はリマインダー設定が登録された組織のIDを返す。
	ListIDsWithReminderSettings(ctx context.Context) ([]string, error)
}

// NotificationRepository は通知の永続化インターフェース。
// 重複送信判定のための通知履歴の検索も担う。
type NotificationRepository interface {
	// Create は通知を作成する。
	Create(ctx context.Context, notification *model.Notification) error

	// ListByUser は指定ユーザー・組織の通知をcreated_at昇順で取得する。
	ListByUser(ctx context.Context, userID, organizationID string, filter model.NotificationFilter) ([]*model.Notification, error)
}

// NotificationPurger は保持期間を過ぎた通知を削除するインターフェース。
type NotificationPurger interface {
	// DeleteReadBefore はbefore より前に作成された既読通知を削除し、削除件数を返す。
	// 未読の通知は削除しない。
	DeleteReadBefore(ctx context.Context, before time.Time) (int64, error)
}

// UserDirectory はユーザーの解決を行うインターフェース。
type UserDirectory interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindUserIDByEmployeeID は従業員に紐付くユーザーIDを返す。見つからない場合は空文字を返す。
	FindUserIDByEmployeeID(ctx context.Context, employeeID string) (string, error)

	// ListAdminUserIDs は組織の管理者（owner/admin）のユーザーIDを返す。
	ListAdminUserIDs(ctx context.Context, organizationID string) ([]string, error)
}

// SessionRepository はセッションデータの参照インターフェース。
// セッションの発行・削除は外部の認証基盤が行う。
type SessionRepository interface {
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
}
