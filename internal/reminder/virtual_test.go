package reminder

import (
	"testing"
	"time"

	"github.com/hitoshi/shaho/internal/calendar"
	"github.com/hitoshi/shaho/internal/model"
)

func TestNewVirtualApplication_Acquisition(t *testing.T) {
	emp := &model.Employee{ID: "emp-1", OrganizationID: "org-1", Name: "山田太郎", JoinDate: date(2024, time.April, 1)}
	appType := model.ApplicationType{Code: model.TypeInsuranceAcquisition, Category: model.CategoryExternal}
	now := at(2024, time.April, 2, 9)

	app := NewVirtualApplication(emp, appType, now)
	if app == nil {
		t.Fatal("入社日がある従業員から資格取得届を合成するべき")
	}
	if app.ID != "" || app.EmployeeID != "emp-1" || app.Status != model.StatusPending {
		t.Errorf("app = %+v", app)
	}
	p, ok := app.Payload.(model.InsuranceAcquisitionData)
	if !ok || len(p.InsuredPersons) != 1 {
		t.Fatalf("Payload = %#v", app.Payload)
	}
	got, ok := calendar.ResolveDate(p.InsuredPersons[0].AcquisitionDate)
	if !ok || !got.Equal(*date(2024, time.April, 1)) {
		t.Errorf("AcquisitionDate = %v, want 2024-04-01", got)
	}
}

func TestNewVirtualApplication_LossDateIsDayAfterRetirement(t *testing.T) {
	emp := &model.Employee{ID: "emp-1", OrganizationID: "org-1", RetirementDate: date(2024, time.March, 31)}
	appType := model.ApplicationType{Code: model.TypeInsuranceLoss, Category: model.CategoryExternal}

	app := NewVirtualApplication(emp, appType, at(2024, time.April, 2, 9))
	if app == nil {
		t.Fatal("退職日がある従業員から資格喪失届を合成するべき")
	}
	p := app.Payload.(model.InsuranceLossData)
	got, ok := calendar.ResolveDate(p.InsuredPersons[0].LossDate)
	if !ok || !got.Equal(*date(2024, time.April, 1)) {
		t.Errorf("LossDate = %v, want 2024-04-01", got)
	}
}

func TestNewVirtualApplication_NotApplicable(t *testing.T) {
	emp := &model.Employee{ID: "emp-1", OrganizationID: "org-1"}
	now := at(2024, time.April, 2, 9)

	cases := []model.ApplicationType{
		{Code: model.TypeInsuranceAcquisition, Category: model.CategoryExternal},
		{Code: model.TypeInsuranceLoss, Category: model.CategoryExternal},
		{Code: model.TypeBonusPayment, Category: model.CategoryExternal},
		{Code: model.TypeInsuranceAcquisition, Category: model.CategoryInternal},
	}
	for _, appType := range cases {
		if app := NewVirtualApplication(emp, appType, now); app != nil {
			t.Errorf("%s/%s: nilであるべき: %+v", appType.Code, appType.Category, app)
		}
	}
}
