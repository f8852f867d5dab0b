package reminder

import (
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/shaho/internal/model"
)

// 通知タイトルに付与する区分マーカー。重複判定でも参照する。
const (
	markerPreDeadline = "【期限前】"
	markerDayOf       = "【本日期限】"
	markerOverdue     = "【期限超過】"
)

const messageDateLayout = "2006年1月2日"

// Marker は区分に対応するタイトルマーカーを返す。
func (c Category) Marker() string {
	switch c {
	case CategoryPreDeadline:
		return markerPreDeadline
	case CategoryDayOf:
		return markerDayOf
	case CategoryOverdue:
		return markerOverdue
	}
	return ""
}

// NotificationType は区分に対応する通知種別を返す。
func (c Category) NotificationType() model.NotificationType {
	switch c {
	case CategoryDayOf:
		return model.NotificationDeadlineToday
	case CategoryOverdue:
		return model.NotificationDeadlineOverdue
	}
	return model.NotificationDeadlineApproaching
}

// Priority は区分に対応する通知の優先度を返す。
func (c Category) Priority() model.NotificationPriority {
	if c == CategoryPreDeadline {
		return model.PriorityMedium
	}
	return model.PriorityHigh
}

// categoryOf は通知種別または本文のマーカーから区分を判定する。
// 判定できない場合は空文字を返す。
func categoryOf(n *model.Notification) Category {
	switch n.Type {
	case model.NotificationDeadlineApproaching:
		return CategoryPreDeadline
	case model.NotificationDeadlineToday:
		return CategoryDayOf
	case model.NotificationDeadlineOverdue:
		return CategoryOverdue
	}
	for _, c := range []Category{CategoryPreDeadline, CategoryDayOf, CategoryOverdue} {
		if strings.Contains(n.Title, c.Marker()) || strings.Contains(n.Message, c.Marker()) {
			return c
		}
	}
	return ""
}

// composeTitle は通知タイトルを組み立てる。
func composeTitle(s Subject, r Reminder) string {
	if r.Audience == AudienceAdmin && s.EmployeeName != "" {
		return fmt.Sprintf("%s%s（%s）", r.Category.Marker(), s.TypeName, s.EmployeeName)
	}
	return r.Category.Marker() + s.TypeName
}

// composeMessage は通知本文を組み立てる。
func composeMessage(s Subject, r Reminder) string {
	who := "あなた"
	if r.Audience == AudienceAdmin {
		who = s.EmployeeName + "さん"
		if s.EmployeeName == "" {
			who = "従業員"
		}
	}
	date := formatDate(r.Deadline)

	var body string
	switch r.Category {
	case CategoryPreDeadline:
		kind := "法定期限"
		if r.Audience == AudienceEmployee {
			kind = "提出期限"
		}
		body = fmt.Sprintf("%sの「%s」の%s（%s）まで残り%d日です。", who, s.TypeName, kind, date, r.DaysUntil)
	case CategoryDayOf:
		body = fmt.Sprintf("%sの「%s」は本日（%s）が期限です。", who, s.TypeName, date)
	case CategoryOverdue:
		body = fmt.Sprintf("%sの「%s」の期限（%s）を%d日超過しています。", who, s.TypeName, date, -r.DaysUntil)
	}
	if s.Virtual {
		body += "申請がまだ作成されていません。"
	}
	return body
}

func formatDate(d time.Time) string {
	return d.Format(messageDateLayout)
}
