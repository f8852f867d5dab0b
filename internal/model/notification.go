package model

import "time"

// NotificationType は通知の種類を表す。
// リマインダー通知はカテゴリ（期限前/当日/超過）ごとに種類が分かれる。
type NotificationType string

const (
	NotificationDeadlineApproaching NotificationType = "deadline_approaching"
	NotificationDeadlineToday       NotificationType = "deadline_today"
	NotificationDeadlineOverdue     NotificationType = "deadline_overdue"
)

// NotificationPriority は通知の優先度。
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityMedium NotificationPriority = "medium"
	PriorityHigh   NotificationPriority = "high"
)

// Notification はユーザー宛ての通知を表す。
// エンジンが作成した通知は、重複送信判定のための履歴としても参照される。
// 申請が未登録の従業員に対する通知はApplicationIDがnilでEmployeeIDを持つ。
type Notification struct {
	ID             string
	UserID         string
	OrganizationID string
	ApplicationID  *string
	EmployeeID     *string
	Type           NotificationType
	Title          string
	Message        string
	Read           bool
	Priority       NotificationPriority
	CreatedAt      time.Time
}

// NotificationFilter は通知履歴の検索条件。
// CreatedFrom/CreatedToはゼロ値の場合は条件に含めない（CreatedToは排他的上限）。
type NotificationFilter struct {
	CreatedFrom time.Time
	CreatedTo   time.Time
}
