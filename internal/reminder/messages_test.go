package reminder

import (
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/shaho/internal/model"
)

func TestCategory_NotificationAttributes(t *testing.T) {
	tests := []struct {
		category Category
		marker   string
		typ      model.NotificationType
		priority model.NotificationPriority
	}{
		{CategoryPreDeadline, "【期限前】", model.NotificationDeadlineApproaching, model.PriorityMedium},
		{CategoryDayOf, "【本日期限】", model.NotificationDeadlineToday, model.PriorityHigh},
		{CategoryOverdue, "【期限超過】", model.NotificationDeadlineOverdue, model.PriorityHigh},
	}
	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			if got := tt.category.Marker(); got != tt.marker {
				t.Errorf("Marker = %q, want %q", got, tt.marker)
			}
			if got := tt.category.NotificationType(); got != tt.typ {
				t.Errorf("NotificationType = %q, want %q", got, tt.typ)
			}
			if got := tt.category.Priority(); got != tt.priority {
				t.Errorf("Priority = %q, want %q", got, tt.priority)
			}
		})
	}
}

func TestCompose_Admin(t *testing.T) {
	s := Subject{TypeName: "資格取得届", EmployeeName: "山田太郎"}
	r := Reminder{Audience: AudienceAdmin, Category: CategoryOverdue, Deadline: *date(2024, time.April, 8), DaysUntil: -2}

	title := composeTitle(s, r)
	if title != "【期限超過】資格取得届（山田太郎）" {
		t.Errorf("title = %q", title)
	}
	msg := composeMessage(s, r)
	if msg != "山田太郎さんの「資格取得届」の期限（2024年4月8日）を2日超過しています。" {
		t.Errorf("message = %q", msg)
	}
}

func TestCompose_EmployeePreDeadline(t *testing.T) {
	s := Subject{TypeName: "住所変更", EmployeeName: "山田太郎"}
	r := Reminder{Audience: AudienceEmployee, Category: CategoryPreDeadline, Deadline: *date(2024, time.April, 10), DaysUntil: 2}

	if title := composeTitle(s, r); title != "【期限前】住所変更" {
		t.Errorf("title = %q", title)
	}
	msg := composeMessage(s, r)
	if !strings.HasPrefix(msg, "あなたの「住所変更」の提出期限（2024年4月10日）まで残り2日です。") {
		t.Errorf("message = %q", msg)
	}
}

func TestCompose_VirtualMentionsMissingApplication(t *testing.T) {
	s := Subject{TypeName: "資格取得届", EmployeeName: "山田太郎", Virtual: true}
	r := Reminder{Audience: AudienceAdmin, Category: CategoryDayOf, Deadline: *date(2024, time.April, 8)}

	if msg := composeMessage(s, r); !strings.Contains(msg, "申請がまだ作成されていません") {
		t.Errorf("message = %q", msg)
	}
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		name string
		n    model.Notification
		want Category
	}{
		{"種別から判定", model.Notification{Type: model.NotificationDeadlineToday}, CategoryDayOf},
		{"タイトルのマーカーから判定", model.Notification{Type: "info", Title: "【期限前】資格取得届"}, CategoryPreDeadline},
		{"本文のマーカーから判定", model.Notification{Type: "info", Message: "【期限超過】です"}, CategoryOverdue},
		{"判定不可", model.Notification{Type: "info", Title: "お知らせ"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := categoryOf(&tt.n); got != tt.want {
				t.Errorf("categoryOf = %q, want %q", got, tt.want)
			}
		})
	}
}
