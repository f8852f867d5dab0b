package model

import "time"

// Employee は組織に所属する従業員を表す。
// JoinDateやRetirementDateの変更は、申請登録前の期限評価のトリガーになる。
type Employee struct {
	ID             string
	OrganizationID string
	Name           string
	JoinDate       *time.Time
	RetirementDate *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
