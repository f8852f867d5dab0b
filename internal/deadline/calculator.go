// Package deadline は申請種別ごとの法定期限ルールを提供する。
// 期限は営業日調整済みの日付（UTC 0時）として算出する。
// 計算に必要なデータが欠けている場合はエラーではなく「期限なし」として扱う。
package deadline

import (
	"time"

	"github.com/hitoshi/shaho/internal/calendar"
	"github.com/hitoshi/shaho/internal/model"
)

// DefaultChangeNoticeDays は住所・氏名変更届の期限日数のデフォルト値。
const DefaultChangeNoticeDays = 14

// filingDays は事実発生日から届出期限までの日数（資格取得・喪失、被扶養者異動、賞与支払）。
const filingDays = 5

// Options は期限計算の設定。
type Options struct {
	// ChangeNoticeDays は住所・氏名変更届の期限日数（申請作成日起算）。0以下の場合はデフォルト値を使う。
	ChangeNoticeDays int
	// Location は申請作成日時を暦日に変換する際のタイムゾーン。nilの場合はUTC。
	Location *time.Location
}

// Calculator は申請種別ごとの期限ルールを適用する。
type Calculator struct {
	changeNoticeDays int
	loc              *time.Location
}

// NewCalculator はCalculatorを生成する。
func NewCalculator(opts Options) *Calculator {
	if opts.ChangeNoticeDays <= 0 {
		opts.ChangeNoticeDays = DefaultChangeNoticeDays
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Calculator{
		changeNoticeDays: opts.ChangeNoticeDays,
		loc:              opts.Location,
	}
}

// Result は期限計算の結果。
type Result struct {
	// LegalDeadline は申請単位の法定期限。対象者ごとに期限を持つ申請種別ではnil。
	LegalDeadline *time.Time
	// Payload は対象者ごとの期限を書き込んだ新しい申請データ。
	Payload model.Payload
}

// ItemDeadlines は申請データ内の対象者ごとの期限を返す。
func (r Result) ItemDeadlines() []time.Time {
	var deadlines []time.Time
	add := func(d *time.Time) {
		if d != nil {
			deadlines = append(deadlines, *d)
		}
	}
	switch p := r.Payload.(type) {
	case model.InsuranceAcquisitionData:
		for _, ip := range p.InsuredPersons {
			add(ip.Deadline)
		}
	case model.InsuranceLossData:
		for _, ip := range p.InsuredPersons {
			add(ip.Deadline)
		}
	case model.RewardBaseData:
		for _, rp := range p.RewardBasePersons {
			add(rp.Deadline)
		}
	case model.BonusPaymentData:
		for _, bp := range p.InsuredPersons {
			add(bp.Deadline)
		}
	}
	return deadlines
}

// EffectiveLegalDeadline はリマインダー判定に使う法定期限を返す。
// 申請単位の期限があればそれを、なければ対象者ごとの期限のうち最も早いものを返す。
func (r Result) EffectiveLegalDeadline() *time.Time {
	if r.LegalDeadline != nil {
		return r.LegalDeadline
	}
	var earliest *time.Time
	for _, d := range r.ItemDeadlines() {
		d := d
		if earliest == nil || d.Before(*earliest) {
			earliest = &d
		}
	}
	return earliest
}

// Compute は申請種別コードに応じた期限ルールで期限を算出する。
// 入力の申請データは変更せず、期限を書き込んだコピーをResult.Payloadとして返す。
// appTypeがnilの場合は申請自体のカテゴリと種別コードで判定する。
func (c *Calculator) Compute(app *model.Application, appType *model.ApplicationType) Result {
	code, category := app.TypeCode, app.Category
	if appType != nil {
		code, category = appType.Code, appType.Category
	}

	result := Result{Payload: app.Payload}
	if category == model.CategoryInternal {
		return result
	}

	switch code {
	case model.TypeInsuranceAcquisition:
		if p, ok := app.Payload.(model.InsuranceAcquisitionData); ok {
			result.Payload = model.InsuranceAcquisitionData{
				InsuredPersons: c.insuredPersonDeadlines(p.InsuredPersons, func(ip model.InsuredPerson) *model.DateInput {
					return ip.AcquisitionDate
				}),
			}
		}
	case model.TypeInsuranceLoss:
		if p, ok := app.Payload.(model.InsuranceLossData); ok {
			result.Payload = model.InsuranceLossData{
				InsuredPersons: c.insuredPersonDeadlines(p.InsuredPersons, func(ip model.InsuredPerson) *model.DateInput {
					return ip.LossDate
				}),
			}
		}
	case model.TypeDependentChangeExternal:
		if p, ok := app.Payload.(model.DependentChangeData); ok {
			result.LegalDeadline = c.dependentChangeDeadline(app, p)
		}
	case model.TypeRewardBase:
		if p, ok := app.Payload.(model.RewardBaseData); ok {
			result.Payload = c.rewardBaseDeadlines(p)
		}
	case model.TypeRewardChange:
		if p, ok := app.Payload.(model.RewardChangeData); ok {
			result.LegalDeadline = rewardChangeDeadline(p)
		}
	case model.TypeBonusPayment:
		if p, ok := app.Payload.(model.BonusPaymentData); ok {
			result.Payload = c.bonusPaymentDeadlines(p)
		}
	case model.TypeAddressChangeExternal, model.TypeNameChangeExternal:
		d := calendar.AdjustToBusinessDay(calendar.AddDays(c.createdDate(app), c.changeNoticeDays))
		result.LegalDeadline = &d
	}

	return result
}

// OverdueDeadline は法定期限を過ぎた申請に適用する短縮期限（申請日の翌日、営業日調整済み）を返す。
// リマインダー判定専用で、保存される期限は変更しない。
func (c *Calculator) OverdueDeadline(app *model.Application) time.Time {
	return calendar.AdjustToBusinessDay(calendar.AddDays(c.createdDate(app), 1))
}

func (c *Calculator) createdDate(app *model.Application) time.Time {
	return calendar.Today(app.CreatedAt, c.loc)
}

// filingDeadline は事実発生日から5日後（営業日調整済み）を返す。
func filingDeadline(anchor time.Time) time.Time {
	return calendar.AdjustToBusinessDay(calendar.AddDays(anchor, filingDays))
}

func (c *Calculator) insuredPersonDeadlines(persons []model.InsuredPerson, anchorOf func(model.InsuredPerson) *model.DateInput) []model.InsuredPerson {
	if persons == nil {
		return nil
	}
	out := make([]model.InsuredPerson, len(persons))
	for i, ip := range persons {
		ip.Deadline = nil
		if anchor, ok := calendar.ResolveDate(anchorOf(ip)); ok {
			d := filingDeadline(anchor)
			ip.Deadline = &d
		}
		out[i] = ip
	}
	return out
}

// dependentChangeDeadline は配偶者とその他被扶養者の異動日のうち最も早い日を起算日とする。
func (c *Calculator) dependentChangeDeadline(app *model.Application, p model.DependentChangeData) *time.Time {
	dependents := make([]model.Dependent, 0, len(p.OtherDependents)+1)
	if p.Spouse != nil {
		dependents = append(dependents, *p.Spouse)
	}
	dependents = append(dependents, p.OtherDependents...)

	var earliest *time.Time
	for _, dep := range dependents {
		anchor, ok := c.dependentAnchor(app, p, dep)
		if !ok {
			continue
		}
		if earliest == nil || anchor.Before(*earliest) {
			a := anchor
			earliest = &a
		}
	}
	if earliest == nil {
		return nil
	}

	d := filingDeadline(*earliest)
	return &d
}

func (c *Calculator) dependentAnchor(app *model.Application, p model.DependentChangeData, dep model.Dependent) (time.Time, bool) {
	switch dep.ChangeType {
	case model.ChangeTypeChange:
		if d, ok := calendar.ResolveDate(p.SubmissionDate); ok {
			return d, true
		}
		// 提出日が未入力の場合は申請作成日を提出日とみなす
		return c.createdDate(app), true
	case model.ChangeTypeApplicable:
		return calendar.ResolveDate(dep.StartDate)
	case model.ChangeTypeNotApplicable:
		return calendar.ResolveDate(dep.EndDate)
	}
	return time.Time{}, false
}

// rewardBaseDeadlines は対象年の7月10日を各対象者の期限とする。
func (c *Calculator) rewardBaseDeadlines(p model.RewardBaseData) model.RewardBaseData {
	if p.RewardBasePersons == nil {
		return p
	}
	out := make([]model.RewardBasePerson, len(p.RewardBasePersons))
	for i, rp := range p.RewardBasePersons {
		rp.Deadline = nil
		if year, ok := calendar.ResolveYear(rp.TargetDate); ok {
			d := calendar.AdjustToBusinessDay(calendar.Date(year, time.July, 10))
			rp.Deadline = &d
		}
		out[i] = rp
	}
	return model.RewardBaseData{RewardBasePersons: out}
}

// rewardChangeDeadline は先頭の対象者の変更年月の翌月末日を期限とする。
// 2人目以降の対象者は参照しない。
func rewardChangeDeadline(p model.RewardChangeData) *time.Time {
	persons := p.RewardChangePersons
	if len(persons) == 0 {
		persons = p.InsuredPersons
	}
	if len(persons) == 0 {
		return nil
	}

	year, month, ok := calendar.ResolveYearMonth(persons[0].ChangeDate)
	if !ok {
		return nil
	}
	d := calendar.AdjustToBusinessDay(calendar.EndOfMonth(year, month+1))
	return &d
}

// bonusPaymentDeadlines は各対象者の賞与支払日（未入力の場合は共通の支払日）から5日後を期限とする。
func (c *Calculator) bonusPaymentDeadlines(p model.BonusPaymentData) model.BonusPaymentData {
	out := model.BonusPaymentData{CommonBonusPaymentDate: p.CommonBonusPaymentDate}
	if p.InsuredPersons == nil {
		return out
	}
	out.InsuredPersons = make([]model.BonusInsuredPerson, len(p.InsuredPersons))
	for i, bp := range p.InsuredPersons {
		bp.Deadline = nil
		paymentDate, ok := calendar.ResolveDate(bp.BonusPaymentDate)
		if !ok {
			paymentDate, ok = calendar.ResolveDate(p.CommonBonusPaymentDate)
		}
		if ok {
			d := filingDeadline(paymentDate)
			bp.Deadline = &d
		}
		out.InsuredPersons[i] = bp
	}
	return out
}
