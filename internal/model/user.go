package model

import "time"

// Role は組織内でのユーザーの権限。
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// User はサービス利用ユーザーを表す。
// 従業員本人のアカウントはEmployeeIDで従業員と紐付く。
type User struct {
	ID             string
	OrganizationID string
	EmployeeID     *string
	Email          string
	Name           string
	Role           Role
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsAdmin は組織の管理者（owner/admin）かどうかを返す。
func (u *User) IsAdmin() bool {
	return u.Role == RoleOwner || u.Role == RoleAdmin
}

// Session はユーザーのログインセッションを表す。
// セッションの発行は外部の認証基盤が行う。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
