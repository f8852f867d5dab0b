package deadline

import (
	"testing"
	"time"

	"github.com/hitoshi/shaho/internal/calendar"
	"github.com/hitoshi/shaho/internal/model"
)

func gregorian(y int, m time.Month, d int) *model.DateInput {
	t := calendar.Date(y, m, d)
	return &model.DateInput{Gregorian: &t}
}

func externalType(code string) *model.ApplicationType {
	return &model.ApplicationType{ID: "type-" + code, Code: code, Category: model.CategoryExternal}
}

func assertDate(t *testing.T, label string, got *time.Time, want time.Time) {
	t.Helper()
	if got == nil {
		t.Fatalf("%s = nil, want %s", label, want.Format(model.DateLayout))
	}
	if !got.Equal(want) {
		t.Errorf("%s = %s, want %s", label, got.Format(model.DateLayout), want.Format(model.DateLayout))
	}
}

func TestCompute_InsuranceAcquisition_PerItemDeadline(t *testing.T) {
	c := NewCalculator(Options{})
	app := &model.Application{
		TypeCode: model.TypeInsuranceAcquisition,
		Category: model.CategoryExternal,
		Payload: model.InsuranceAcquisitionData{
			InsuredPersons: []model.InsuredPerson{
				{Name: "山田太郎", AcquisitionDate: gregorian(2024, time.April, 1)},
			},
		},
	}

	res := c.Compute(app, externalType(model.TypeInsuranceAcquisition))

	if res.LegalDeadline != nil {
		t.Errorf("LegalDeadline = %s, want nil (対象者ごとの期限)", res.LegalDeadline)
	}
	p, ok := res.Payload.(model.InsuranceAcquisitionData)
	if !ok {
		t.Fatalf("Payload の型 = %T", res.Payload)
	}
	// 2024-04-01 + 5日 = 2024-04-06（土）→ 2024-04-08（月）
	assertDate(t, "InsuredPersons[0].Deadline", p.InsuredPersons[0].Deadline, calendar.Date(2024, time.April, 8))
}

func TestCompute_DoesNotMutateInput(t *testing.T) {
	c := NewCalculator(Options{})
	persons := []model.InsuredPerson{{Name: "山田太郎", LossDate: gregorian(2024, time.May, 1)}}
	app := &model.Application{
		TypeCode: model.TypeInsuranceLoss,
		Category: model.CategoryExternal,
		Payload:  model.InsuranceLossData{InsuredPersons: persons},
	}

	res := c.Compute(app, externalType(model.TypeInsuranceLoss))

	if persons[0].Deadline != nil {
		t.Error("入力の申請データが変更された")
	}
	p := res.Payload.(model.InsuranceLossData)
	// 2024-05-01 + 5日 = 2024-05-06（月）
	assertDate(t, "Deadline", p.InsuredPersons[0].Deadline, calendar.Date(2024, time.May, 6))
}

func TestCompute_InsuranceAcquisition_EraDateAndUnconvertible(t *testing.T) {
	c := NewCalculator(Options{})
	app := &model.Application{
		TypeCode: model.TypeInsuranceAcquisition,
		Category: model.CategoryExternal,
		Payload: model.InsuranceAcquisitionData{
			InsuredPersons: []model.InsuredPerson{
				{Name: "和暦", AcquisitionDate: &model.DateInput{Era: &model.EraDate{Era: model.EraReiwa, Year: 6, Month: 4, Day: 1}}},
				{Name: "日なし", AcquisitionDate: &model.DateInput{Era: &model.EraDate{Era: model.EraReiwa, Year: 6, Month: 4}}},
				{Name: "未入力"},
			},
		},
	}

	p := c.Compute(app, nil).Payload.(model.InsuranceAcquisitionData)

	assertDate(t, "和暦", p.InsuredPersons[0].Deadline, calendar.Date(2024, time.April, 8))
	if p.InsuredPersons[1].Deadline != nil {
		t.Error("変換不能な日付から期限が算出された")
	}
	if p.InsuredPersons[2].Deadline != nil {
		t.Error("未入力の日付から期限が算出された")
	}
}

func TestCompute_DependentChange_EarliestAnchor(t *testing.T) {
	c := NewCalculator(Options{})
	app := &model.Application{
		TypeCode: model.TypeDependentChangeExternal,
		Category: model.CategoryExternal,
		Payload: model.DependentChangeData{
			Spouse: &model.Dependent{
				Name:       "配偶者",
				ChangeType: model.ChangeTypeApplicable,
				StartDate:  gregorian(2024, time.June, 20),
			},
			OtherDependents: []model.Dependent{
				{Name: "子", ChangeType: model.ChangeTypeNotApplicable, EndDate: gregorian(2024, time.June, 10)},
			},
		},
	}

	res := c.Compute(app, externalType(model.TypeDependentChangeExternal))

	// 2024-06-10 + 5日 = 2024-06-15（土）→ 2024-06-17（月）
	assertDate(t, "LegalDeadline", res.LegalDeadline, calendar.Date(2024, time.June, 17))
}

func TestCompute_DependentChange_ChangeTypeUsesSubmissionDate(t *testing.T) {
	c := NewCalculator(Options{})
	app := &model.Application{
		TypeCode:  model.TypeDependentChangeExternal,
		Category:  model.CategoryExternal,
		CreatedAt: time.Date(2024, time.July, 1, 9, 0, 0, 0, time.UTC),
		Payload: model.DependentChangeData{
			SubmissionDate: gregorian(2024, time.July, 2),
			OtherDependents: []model.Dependent{
				{Name: "子", ChangeType: model.ChangeTypeChange},
			},
		},
	}

	res := c.Compute(app, nil)

	// 2024-07-02 + 5日 = 2024-07-07（日）→ 2024-07-08（月）
	assertDate(t, "LegalDeadline", res.LegalDeadline, calendar.Date(2024, time.July, 8))
}

func TestCompute_DependentChange_NoAnchor(t *testing.T) {
	c := NewCalculator(Options{})
	app := &model.Application{
		TypeCode: model.TypeDependentChangeExternal,
		Category: model.CategoryExternal,
		Payload: model.DependentChangeData{
			OtherDependents: []model.Dependent{
				{Name: "子", ChangeType: model.ChangeTypeApplicable},
			},
		},
	}

	if res := c.Compute(app, nil); res.LegalDeadline != nil {
		t.Errorf("LegalDeadline = %s, want nil", res.LegalDeadline)
	}
}

func TestCompute_RewardBase_July10OfTargetYear(t *testing.T) {
	c := NewCalculator(Options{})
	app := &model.Application{
		TypeCode: model.TypeRewardBase,
		Category: model.CategoryExternal,
		Payload: model.RewardBaseData{
			RewardBasePersons: []model.RewardBasePerson{
				{Name: "西暦", TargetDate: gregorian(2024, time.April, 1)},
				{Name: "和暦年のみ", TargetDate: &model.DateInput{Era: &model.EraDate{Era: model.EraReiwa, Year: 7}}},
			},
		},
	}

	res := c.Compute(app, nil)
	p := res.Payload.(model.RewardBaseData)

	if res.LegalDeadline != nil {
		t.Error("算定基礎届は対象者ごとの期限のみを持つ")
	}
	// 2024-07-10 は水曜日
	assertDate(t, "2024年", p.RewardBasePersons[0].Deadline, calendar.Date(2024, time.July, 10))
	// 2025-07-10 は木曜日
	assertDate(t, "令和7年", p.RewardBasePersons[1].Deadline, calendar.Date(2025, time.July, 10))
}

func TestCompute_RewardBase_WeekendAdjusted(t *testing.T) {
	c := NewCalculator(Options{})
	app := &model.Application{
		TypeCode: model.TypeRewardBase,
		Category: model.CategoryExternal,
		Payload: model.RewardBaseData{
			RewardBasePersons: []model.RewardBasePerson{{Name: "2021年", TargetDate: gregorian(2021, time.January, 1)}},
		},
	}

	p := c.Compute(app, nil).Payload.(model.RewardBaseData)

	// 2021-07-10 は土曜日 → 2021-07-12（月）
	assertDate(t, "2021年", p.RewardBasePersons[0].Deadline, calendar.Date(2021, time.July, 12))
}

func TestCompute_RewardChange_EndOfFollowingMonth(t *testing.T) {
	c := NewCalculator(Options{})
	app := &model.Application{
		TypeCode: model.TypeRewardChange,
		Category: model.CategoryExternal,
		Payload: model.RewardChangeData{
			RewardChangePersons: []model.RewardChangePerson{
				{Name: "先頭", ChangeDate: &model.DateInput{Era: &model.EraDate{Era: model.EraReiwa, Year: 6, Month: 7}}},
				{Name: "2人目", ChangeDate: gregorian(2024, time.January, 1)},
			},
		},
	}

	res := c.Compute(app, nil)

	// 2024年7月 → 翌月末 2024-08-31（土）→ 2024-09-02（月）
	assertDate(t, "LegalDeadline", res.LegalDeadline, calendar.Date(2024, time.September, 2))
}

func TestCompute_RewardChange_FallsBackToInsuredPersons(t *testing.T) {
	c := NewCalculator(Options{})
	app := &model.Application{
		TypeCode: model.TypeRewardChange,
		Category: model.CategoryExternal,
		Payload: model.RewardChangeData{
			InsuredPersons: []model.RewardChangePerson{{Name: "被保険者", ChangeDate: gregorian(2024, time.December, 15)}},
		},
	}

	res := c.Compute(app, nil)

	// 2024年12月 → 翌月末 2025-01-31（金）
	assertDate(t, "LegalDeadline", res.LegalDeadline, calendar.Date(2025, time.January, 31))
}

func TestCompute_BonusPayment_PrefersOwnDate(t *testing.T) {
	c := NewCalculator(Options{})
	app := &model.Application{
		TypeCode: model.TypeBonusPayment,
		Category: model.CategoryExternal,
		Payload: model.BonusPaymentData{
			CommonBonusPaymentDate: gregorian(2024, time.June, 28),
			InsuredPersons: []model.BonusInsuredPerson{
				{Name: "個別", BonusPaymentDate: gregorian(2024, time.July, 10)},
				{Name: "共通"},
			},
		},
	}

	p := c.Compute(app, nil).Payload.(model.BonusPaymentData)

	// 2024-07-10 + 5日 = 2024-07-15（月）
	assertDate(t, "個別", p.InsuredPersons[0].Deadline, calendar.Date(2024, time.July, 15))
	// 2024-06-28 + 5日 = 2024-07-03（水）
	assertDate(t, "共通", p.InsuredPersons[1].Deadline, calendar.Date(2024, time.July, 3))
}

func TestCompute_AddressAndNameChange(t *testing.T) {
	created := time.Date(2024, time.April, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		opts Options
		code string
		want time.Time
	}{
		// 2024-04-01 + 14日 = 2024-04-15（月）
		{"住所変更 デフォルト14日", Options{}, model.TypeAddressChangeExternal, calendar.Date(2024, time.April, 15)},
		// 2024-04-01 + 5日 = 2024-04-06（土）→ 2024-04-08（月）
		{"氏名変更 5日設定", Options{ChangeNoticeDays: 5}, model.TypeNameChangeExternal, calendar.Date(2024, time.April, 8)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCalculator(tt.opts)
			payload, _ := model.DecodePayload(tt.code, nil)
			app := &model.Application{TypeCode: tt.code, Category: model.CategoryExternal, CreatedAt: created, Payload: payload}
			assertDate(t, "LegalDeadline", c.Compute(app, nil).LegalDeadline, tt.want)
		})
	}
}

func TestCompute_InternalAndUnknownTypes(t *testing.T) {
	c := NewCalculator(Options{})

	internal := &model.Application{
		TypeCode:  model.TypeAddressChangeExternal,
		Category:  model.CategoryInternal,
		CreatedAt: time.Now(),
		Payload:   model.AddressChangeData{},
	}
	if res := c.Compute(internal, &model.ApplicationType{Code: "ADDRESS_CHANGE_INTERNAL", Category: model.CategoryInternal}); res.LegalDeadline != nil {
		t.Error("社内申請に法定期限が算出された")
	}

	unknown := &model.Application{
		TypeCode:  "COMMUTE_ALLOWANCE",
		Category:  model.CategoryExternal,
		CreatedAt: time.Now(),
		Payload:   model.GenericData{Code: "COMMUTE_ALLOWANCE"},
	}
	res := c.Compute(unknown, nil)
	if res.LegalDeadline != nil || res.EffectiveLegalDeadline() != nil {
		t.Error("期限ルールのない申請種別に法定期限が算出された")
	}
}

func TestOverdueDeadline_NextBusinessDayAfterCreation(t *testing.T) {
	c := NewCalculator(Options{Location: time.FixedZone("JST", 9*60*60)})
	// JST 2024-04-05（金）10:00 作成 → 翌日 04-06（土）→ 04-08（月）
	app := &model.Application{CreatedAt: time.Date(2024, time.April, 5, 1, 0, 0, 0, time.UTC)}

	got := c.OverdueDeadline(app)

	if !got.Equal(calendar.Date(2024, time.April, 8)) {
		t.Errorf("OverdueDeadline = %s, want 2024-04-08", got.Format(model.DateLayout))
	}
}

func TestResult_EffectiveLegalDeadline_EarliestItem(t *testing.T) {
	c := NewCalculator(Options{})
	app := &model.Application{
		TypeCode: model.TypeInsuranceAcquisition,
		Category: model.CategoryExternal,
		Payload: model.InsuranceAcquisitionData{
			InsuredPersons: []model.InsuredPerson{
				{Name: "後", AcquisitionDate: gregorian(2024, time.May, 1)},
				{Name: "先", AcquisitionDate: gregorian(2024, time.April, 1)},
			},
		},
	}

	res := c.Compute(app, nil)

	assertDate(t, "EffectiveLegalDeadline", res.EffectiveLegalDeadline(), calendar.Date(2024, time.April, 8))
}
