// Package model はドメインモデルを定義する。
package model

import "time"

// Category は申請種別のカテゴリを表す。
type Category string

const (
	// CategoryInternal は社内手続き（社内承認のみで完結する申請）。
	CategoryInternal Category = "internal"
	// CategoryExternal は行政機関への届出が必要な申請。
	CategoryExternal Category = "external"
)

// ApplicationStatus は申請の状態を表す。
type ApplicationStatus string

const (
	StatusDraft              ApplicationStatus = "draft"
	StatusPending            ApplicationStatus = "pending"
	StatusPendingReceived    ApplicationStatus = "pending_received"
	StatusPendingNotReceived ApplicationStatus = "pending_not_received"
	StatusApproved           ApplicationStatus = "approved"
	StatusRejected           ApplicationStatus = "rejected"
	StatusWithdrawn          ApplicationStatus = "withdrawn"
)

// AwaitingStatuses はリマインダー評価の対象となる対応待ちステータスの一覧。
var AwaitingStatuses = []ApplicationStatus{
	StatusPending,
	StatusPendingReceived,
	StatusPendingNotReceived,
}

// ExternalStatusSent は外部申請が行政機関へ送信済みであることを示す。
const ExternalStatusSent = "sent"

// 申請種別コード
const (
	TypeInsuranceAcquisition    = "INSURANCE_ACQUISITION"
	TypeInsuranceLoss           = "INSURANCE_LOSS"
	TypeDependentChangeExternal = "DEPENDENT_CHANGE_EXTERNAL"
	TypeRewardBase              = "REWARD_BASE"
	TypeRewardChange            = "REWARD_CHANGE"
	TypeBonusPayment            = "BONUS_PAYMENT"
	TypeAddressChangeExternal   = "ADDRESS_CHANGE_EXTERNAL"
	TypeNameChangeExternal      = "NAME_CHANGE_EXTERNAL"
)

// ApplicationType は組織設定で定義された申請種別を表す。
// どの期限ルールを適用するかはCodeで決まる。
type ApplicationType struct {
	ID       string   `json:"id"`
	Code     string   `json:"code"`
	Category Category `json:"category"`
	Name     string   `json:"name"`
}

// Application は従業員の申請を表す。
// Deadlineは管理者が設定する期限、LegalDeadlineは期限ルールから算出した法定期限。
// 対象者ごとの期限はPayload内の各エントリが保持し、その場合LegalDeadlineはnilのまま。
type Application struct {
	ID                            string
	OrganizationID                string
	EmployeeID                    string
	TypeCode                      string
	Category                      Category
	Status                        ApplicationStatus
	Payload                       Payload
	Deadline                      *time.Time
	LegalDeadline                 *time.Time
	ExternalApplicationStatus     string
	RelatedInternalApplicationIDs []string
	CreatedAt                     time.Time
	UpdatedAt                     time.Time
}

// IsAwaiting は申請がリマインダー評価の対象ステータスかどうかを返す。
func (a *Application) IsAwaiting() bool {
	for _, s := range AwaitingStatuses {
		if a.Status == s {
			return true
		}
	}
	return false
}

// IsExternalSent は外部申請が送信済みかどうかを返す。
func (a *Application) IsExternalSent() bool {
	return a.ExternalApplicationStatus == ExternalStatusSent
}

// HasRelatedInternalApplications は関連する社内申請が紐付いているかどうかを返す。
func (a *Application) HasRelatedInternalApplications() bool {
	return len(a.RelatedInternalApplicationIDs) > 0
}

// ApplicationFilter は申請一覧取得時の絞り込み条件。
// ゼロ値のフィールドは条件に含めない。
type ApplicationFilter struct {
	Statuses   []ApplicationStatus
	Category   Category
	EmployeeID string
}
