package model

// ReminderSettings は組織のリマインダー通知ポリシー。
type ReminderSettings struct {
	NotifyBeforeDeadline            bool `json:"notifyBeforeDeadline"`
	AdminDaysBeforeLegalDeadline    int  `json:"adminDaysBeforeLegalDeadline"`
	EmployeeDaysBeforeAdminDeadline int  `json:"employeeDaysBeforeAdminDeadline"`
	NotifyOnDeadlineDay             bool `json:"notifyOnDeadlineDay"`
	NotifyOnOverdue                 bool `json:"notifyOnOverdue"`
}

// OrganizationConfig は組織ごとの設定（申請種別とリマインダー設定）を表す。
// ReminderSettingsがnilの組織はリマインダー評価の対象外。
type OrganizationConfig struct {
	OrganizationID   string
	Name             string
	ApplicationTypes []ApplicationType
	ReminderSettings *ReminderSettings
}

// TypeByCode は申請種別コードに一致する申請種別を返す。見つからない場合はnilを返す。
func (c *OrganizationConfig) TypeByCode(code string) *ApplicationType {
	for i := range c.ApplicationTypes {
		if c.ApplicationTypes[i].Code == code {
			return &c.ApplicationTypes[i]
		}
	}
	return nil
}

// ExternalTypes は外部申請カテゴリの申請種別のみを返す。
func (c *OrganizationConfig) ExternalTypes() []ApplicationType {
	var types []ApplicationType
	for _, t := range c.ApplicationTypes {
		if t.Category == CategoryExternal {
			types = append(types, t)
		}
	}
	return types
}
