package reminder

import (
	"time"

	"github.com/hitoshi/shaho/internal/calendar"
	"github.com/hitoshi/shaho/internal/model"
)

// virtualKey は(従業員, 申請種別コード)の組を表す。
type virtualKey struct {
	employeeID string
	typeCode   string
}

// NewVirtualApplication は申請が未登録の従業員について、従業員情報から仮想申請を合成する。
// 入社日があれば資格取得届、退職日があれば資格喪失届（喪失日は退職日の翌日）を合成する。
// 該当しない申請種別や日付が未設定の場合はnilを返す。
func NewVirtualApplication(emp *model.Employee, appType model.ApplicationType, now time.Time) *model.Application {
	if appType.Category != model.CategoryExternal {
		return nil
	}

	var payload model.Payload
	switch appType.Code {
	case model.TypeInsuranceAcquisition:
		if emp.JoinDate == nil {
			return nil
		}
		joinDate := calendar.Truncate(*emp.JoinDate)
		payload = model.InsuranceAcquisitionData{
			InsuredPersons: []model.InsuredPerson{{
				Name:            emp.Name,
				AcquisitionDate: &model.DateInput{Gregorian: &joinDate},
			}},
		}
	case model.TypeInsuranceLoss:
		if emp.RetirementDate == nil {
			return nil
		}
		lossDate := calendar.AddDays(calendar.Truncate(*emp.RetirementDate), 1)
		payload = model.InsuranceLossData{
			InsuredPersons: []model.InsuredPerson{{
				Name:     emp.Name,
				LossDate: &model.DateInput{Gregorian: &lossDate},
			}},
		}
	default:
		return nil
	}

	return &model.Application{
		OrganizationID: emp.OrganizationID,
		EmployeeID:     emp.ID,
		TypeCode:       appType.Code,
		Category:       model.CategoryExternal,
		Status:         model.StatusPending,
		Payload:        payload,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
