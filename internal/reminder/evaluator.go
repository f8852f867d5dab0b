// Package reminder は申請の期限リマインダーを判定し、通知を作成する。
//
// Evaluator が当日発火すべきリマインダーを分類し、Gate が通知履歴と照合して
// 重複を抑止し、Orchestrator が組織単位の評価パスを駆動する。
package reminder

import (
	"time"

	"github.com/hitoshi/shaho/internal/calendar"
	"github.com/hitoshi/shaho/internal/deadline"
	"github.com/hitoshi/shaho/internal/model"
)

// DefaultDayOfHour は当日リマインダーを発火する最も早い時刻（現地時間）。
const DefaultDayOfHour = 10

// Category はリマインダーの区分。
type Category string

const (
	CategoryPreDeadline Category = "pre_deadline"
	CategoryDayOf       Category = "day_of"
	CategoryOverdue     Category = "overdue"
)

// Audience はリマインダーの宛先区分。
type Audience string

const (
	AudienceAdmin    Audience = "admin"
	AudienceEmployee Audience = "employee"
)

// Subject はリマインダー評価の対象。
// 保存済みの申請と、従業員情報から合成した仮想申請の両方を表す。
type Subject struct {
	Application *model.Application
	// Virtual は申請が未登録の従業員から合成した仮想申請かどうか。
	Virtual bool
	// LegalDeadline は期限ルールから算出した法定期限。
	// 対象者ごとに期限を持つ申請種別では最も早い対象者の期限。
	LegalDeadline *time.Time
	TypeName      string
	EmployeeName  string
}

// Reminder は当日発火すべきリマインダー1件を表す。
type Reminder struct {
	Audience  Audience
	Category  Category
	Deadline  time.Time
	DaysUntil int
}

// Evaluator はリマインダー設定と現在時刻から発火すべきリマインダーを判定する。
type Evaluator struct {
	calc      *deadline.Calculator
	loc       *time.Location
	dayOfHour int
}

// NewEvaluator はEvaluatorを生成する。locがnilの場合はUTCを使用する。
func NewEvaluator(calc *deadline.Calculator, loc *time.Location, dayOfHour int) *Evaluator {
	if loc == nil {
		loc = time.UTC
	}
	return &Evaluator{calc: calc, loc: loc, dayOfHour: dayOfHour}
}

// EffectiveDeadline はリマインダー判定に用いる期限を返す。
// 法定期限を過ぎていて関連する社内申請がある場合は短縮期限に置き換える。
// 法定期限がなければ管理者設定の期限を使い、どちらもなければnilを返す。
func (e *Evaluator) EffectiveDeadline(s Subject, today time.Time) *time.Time {
	app := s.Application
	if s.LegalDeadline != nil {
		if s.LegalDeadline.Before(today) && app.HasRelatedInternalApplications() {
			d := e.calc.OverdueDeadline(app)
			return &d
		}
		d := calendar.Truncate(*s.LegalDeadline)
		return &d
	}
	if app.Deadline != nil {
		d := calendar.Truncate(*app.Deadline)
		return &d
	}
	return nil
}

// Evaluate は対象について当日発火すべきリマインダーを宛先ごとに最大1件返す。
// 対応待ちステータス以外の申請は評価しない。
func (e *Evaluator) Evaluate(s Subject, settings model.ReminderSettings, now time.Time) []Reminder {
	app := s.Application
	if app == nil || !app.IsAwaiting() {
		return nil
	}

	today := calendar.Today(now, e.loc)
	afterDayOfHour := now.In(e.loc).Hour() >= e.dayOfHour

	var reminders []Reminder

	effective := e.EffectiveDeadline(s, today)
	if effective != nil {
		days := calendar.DaysBetween(today, *effective)
		if r, ok := e.classify(days, *effective, settings, afterDayOfHour); ok {
			r.Audience = AudienceAdmin
			reminders = append(reminders, r)
		} else if s.LegalDeadline != nil && settings.NotifyBeforeDeadline &&
			days > 0 && days == settings.AdminDaysBeforeLegalDeadline {
			reminders = append(reminders, Reminder{
				Audience:  AudienceAdmin,
				Category:  CategoryPreDeadline,
				Deadline:  *effective,
				DaysUntil: days,
			})
		}
	}

	if s.Virtual || app.Category != model.CategoryInternal {
		return reminders
	}

	if effective != nil {
		days := calendar.DaysBetween(today, *effective)
		if r, ok := e.classify(days, *effective, settings, afterDayOfHour); ok {
			r.Audience = AudienceEmployee
			return append(reminders, r)
		}
	}
	if app.Deadline != nil {
		adminDeadline := calendar.Truncate(*app.Deadline)
		days := calendar.DaysBetween(today, adminDeadline)
		if days > 0 && days == settings.EmployeeDaysBeforeAdminDeadline {
			reminders = append(reminders, Reminder{
				Audience:  AudienceEmployee,
				Category:  CategoryPreDeadline,
				Deadline:  adminDeadline,
				DaysUntil: days,
			})
		}
	}
	return reminders
}

// classify は当日・期限超過のリマインダーを判定する。
func (e *Evaluator) classify(days int, effective time.Time, settings model.ReminderSettings, afterDayOfHour bool) (Reminder, bool) {
	switch {
	case days < 0 && settings.NotifyOnOverdue:
		return Reminder{Category: CategoryOverdue, Deadline: effective, DaysUntil: days}, true
	case days == 0 && settings.NotifyOnDeadlineDay && afterDayOfHour:
		return Reminder{Category: CategoryDayOf, Deadline: effective, DaysUntil: days}, true
	}
	return Reminder{}, false
}
