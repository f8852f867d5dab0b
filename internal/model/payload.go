package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Era は和暦の元号を表す。
type Era string

const (
	EraReiwa  Era = "reiwa"
	EraHeisei Era = "heisei"
	EraShowa  Era = "showa"
	EraTaisho Era = "taisho"
)

// EraDate は和暦で入力された日付。フォーム入力のまま保持し、変更しない。
// 未入力のフィールドはゼロ値。
type EraDate struct {
	Era   Era `json:"era"`
	Year  int `json:"year"`
	Month int `json:"month,omitempty"`
	Day   int `json:"day,omitempty"`
}

// DateInput は申請フォームの日付項目。
// 西暦日付（"2006-01-02"）か和暦オブジェクトのどちらかで入力される。
type DateInput struct {
	Gregorian *time.Time
	Era       *EraDate
}

// UnmarshalJSON は西暦文字列・和暦オブジェクトの両方を受け付ける。
// 解釈できない入力はエラーにせず未入力として扱い、期限は算出しない。
func (d *DateInput) UnmarshalJSON(b []byte) error {
	*d = DateInput{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}

	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil || s == "" {
			return nil
		}
		if t, ok := parseDateString(s); ok {
			d.Gregorian = &t
		}
	case '{':
		var era EraDate
		if err := json.Unmarshal(b, &era); err != nil {
			return nil
		}
		d.Era = &era
	}
	return nil
}

// MarshalJSON は入力された形式のまま出力する。
func (d DateInput) MarshalJSON() ([]byte, error) {
	switch {
	case d.Gregorian != nil:
		return json.Marshal(d.Gregorian.Format(DateLayout))
	case d.Era != nil:
		return json.Marshal(d.Era)
	default:
		return []byte("null"), nil
	}
}

// DateLayout は日付のみを表す文字列フォーマット。
const DateLayout = "2006-01-02"

// parseDateString は "2006-01-02" またはRFC3339の文字列をUTCの日付に変換する。
func parseDateString(s string) (time.Time, bool) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, true
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
}

// formatDeadline はエントリ期限を日付文字列に変換する。
func formatDeadline(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}

// parseDeadline は保存済みのエントリ期限を読み取る。解釈できない値は未算出とみなす。
func parseDeadline(raw json.RawMessage) *time.Time {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return nil
	}
	t, ok := parseDateString(s)
	if !ok {
		return nil
	}
	return &t
}

// Payload は申請種別ごとの申請データ。
// 申請種別コードをタグとする直和型で、期限ルールが必要とする項目だけを持つ。
type Payload interface {
	TypeCode() string
}

// InsuredPerson は資格取得届・資格喪失届の被保険者エントリ。
type InsuredPerson struct {
	Name            string     `json:"name"`
	AcquisitionDate *DateInput `json:"acquisitionDate,omitempty"`
	LossDate        *DateInput `json:"lossDate,omitempty"`
	Deadline        *time.Time `json:"deadline,omitempty"`
}

// MarshalJSON は期限を日付文字列で出力する。
func (p InsuredPerson) MarshalJSON() ([]byte, error) {
	type plain InsuredPerson
	return json.Marshal(struct {
		plain
		Deadline *string `json:"deadline,omitempty"`
	}{plain(p), formatDeadline(p.Deadline)})
}

func (p *InsuredPerson) UnmarshalJSON(b []byte) error {
	type plain InsuredPerson
	aux := struct {
		*plain
		Deadline json.RawMessage `json:"deadline"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	p.Deadline = parseDeadline(aux.Deadline)
	return nil
}

// InsuranceAcquisitionData は INSURANCE_ACQUISITION の申請データ。
type InsuranceAcquisitionData struct {
	InsuredPersons []InsuredPerson `json:"insuredPersons"`
}

func (InsuranceAcquisitionData) TypeCode() string { return TypeInsuranceAcquisition }

// InsuranceLossData は INSURANCE_LOSS の申請データ。
type InsuranceLossData struct {
	InsuredPersons []InsuredPerson `json:"insuredPersons"`
}

func (InsuranceLossData) TypeCode() string { return TypeInsuranceLoss }

// ChangeType は被扶養者異動の区分。
type ChangeType string

const (
	ChangeTypeChange        ChangeType = "change"
	ChangeTypeApplicable    ChangeType = "applicable"
	ChangeTypeNotApplicable ChangeType = "not_applicable"
)

// Dependent は被扶養者（配偶者・その他）の異動エントリ。
type Dependent struct {
	Name       string     `json:"name"`
	ChangeType ChangeType `json:"changeType"`
	StartDate  *DateInput `json:"startDate,omitempty"`
	EndDate    *DateInput `json:"endDate,omitempty"`
}

// DependentChangeData は DEPENDENT_CHANGE_EXTERNAL の申請データ。
type DependentChangeData struct {
	SubmissionDate  *DateInput  `json:"submissionDate,omitempty"`
	Spouse          *Dependent  `json:"spouse,omitempty"`
	OtherDependents []Dependent `json:"otherDependents"`
}

func (DependentChangeData) TypeCode() string { return TypeDependentChangeExternal }

// RewardBasePerson は算定基礎届の対象者エントリ。
type RewardBasePerson struct {
	Name       string     `json:"name"`
	TargetDate *DateInput `json:"targetDate,omitempty"`
	Deadline   *time.Time `json:"deadline,omitempty"`
}

// MarshalJSON は期限を日付文字列で出力する。
func (p RewardBasePerson) MarshalJSON() ([]byte, error) {
	type plain RewardBasePerson
	return json.Marshal(struct {
		plain
		Deadline *string `json:"deadline,omitempty"`
	}{plain(p), formatDeadline(p.Deadline)})
}

func (p *RewardBasePerson) UnmarshalJSON(b []byte) error {
	type plain RewardBasePerson
	aux := struct {
		*plain
		Deadline json.RawMessage `json:"deadline"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	p.Deadline = parseDeadline(aux.Deadline)
	return nil
}

// RewardBaseData は REWARD_BASE の申請データ。
type RewardBaseData struct {
	RewardBasePersons []RewardBasePerson `json:"rewardBasePersons"`
}

func (RewardBaseData) TypeCode() string { return TypeRewardBase }

// RewardChangePerson は月額変更届の対象者エントリ。
type RewardChangePerson struct {
	Name       string     `json:"name"`
	ChangeDate *DateInput `json:"changeDate,omitempty"`
}

// RewardChangeData は REWARD_CHANGE の申請データ。
// rewardChangePersonsが空の場合はinsuredPersonsを参照する。
type RewardChangeData struct {
	RewardChangePersons []RewardChangePerson `json:"rewardChangePersons"`
	InsuredPersons      []RewardChangePerson `json:"insuredPersons,omitempty"`
}

func (RewardChangeData) TypeCode() string { return TypeRewardChange }

// BonusInsuredPerson は賞与支払届の被保険者エントリ。
type BonusInsuredPerson struct {
	Name             string     `json:"name"`
	BonusPaymentDate *DateInput `json:"bonusPaymentDate,omitempty"`
	Deadline         *time.Time `json:"deadline,omitempty"`
}

// MarshalJSON は期限を日付文字列で出力する。
func (p BonusInsuredPerson) MarshalJSON() ([]byte, error) {
	type plain BonusInsuredPerson
	return json.Marshal(struct {
		plain
		Deadline *string `json:"deadline,omitempty"`
	}{plain(p), formatDeadline(p.Deadline)})
}

func (p *BonusInsuredPerson) UnmarshalJSON(b []byte) error {
	type plain BonusInsuredPerson
	aux := struct {
		*plain
		Deadline json.RawMessage `json:"deadline"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	p.Deadline = parseDeadline(aux.Deadline)
	return nil
}

// BonusPaymentData は BONUS_PAYMENT の申請データ。
type BonusPaymentData struct {
	CommonBonusPaymentDate *DateInput           `json:"commonBonusPaymentDate,omitempty"`
	InsuredPersons         []BonusInsuredPerson `json:"insuredPersons"`
}

func (BonusPaymentData) TypeCode() string { return TypeBonusPayment }

// AddressChangeData は ADDRESS_CHANGE_EXTERNAL の申請データ。
type AddressChangeData struct {
	NewAddress string `json:"newAddress"`
}

func (AddressChangeData) TypeCode() string { return TypeAddressChangeExternal }

// NameChangeData は NAME_CHANGE_EXTERNAL の申請データ。
type NameChangeData struct {
	NewName string `json:"newName"`
}

func (NameChangeData) TypeCode() string { return TypeNameChangeExternal }

// GenericData は期限ルールを持たない申請種別（社内申請など）の申請データ。
// 内容は解釈せずそのまま保持する。
type GenericData struct {
	Code string
	Raw  json.RawMessage
}

func (g GenericData) TypeCode() string { return g.Code }

// MarshalJSON は保持している生データをそのまま出力する。
func (g GenericData) MarshalJSON() ([]byte, error) {
	if len(g.Raw) == 0 {
		return []byte("{}"), nil
	}
	return g.Raw, nil
}

// DecodePayload は申請種別コードに応じて申請データをデコードする。
// 空データの場合は該当種別のゼロ値を返す。
func DecodePayload(code string, raw []byte) (Payload, error) {
	var p Payload
	switch code {
	case TypeInsuranceAcquisition:
		p = &InsuranceAcquisitionData{}
	case TypeInsuranceLoss:
		p = &InsuranceLossData{}
	case TypeDependentChangeExternal:
		p = &DependentChangeData{}
	case TypeRewardBase:
		p = &RewardBaseData{}
	case TypeRewardChange:
		p = &RewardChangeData{}
	case TypeBonusPayment:
		p = &BonusPaymentData{}
	case TypeAddressChangeExternal:
		p = &AddressChangeData{}
	case TypeNameChangeExternal:
		p = &NameChangeData{}
	default:
		return GenericData{Code: code, Raw: append(json.RawMessage(nil), raw...)}, nil
	}

	if len(bytes.TrimSpace(raw)) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("申請データのデコードに失敗しました (%s): %w", code, err)
		}
	}
	return derefPayload(p), nil
}

// EncodePayload は申請データをJSONにエンコードする。nilの場合は空オブジェクトを返す。
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("申請データのエンコードに失敗しました: %w", err)
	}
	return b, nil
}

// derefPayload はデコード用のポインタを値型に戻す。
func derefPayload(p Payload) Payload {
	switch v := p.(type) {
	case *InsuranceAcquisitionData:
		return *v
	case *InsuranceLossData:
		return *v
	case *DependentChangeData:
		return *v
	case *RewardBaseData:
		return *v
	case *RewardChangeData:
		return *v
	case *BonusPaymentData:
		return *v
	case *AddressChangeData:
		return *v
	case *NameChangeData:
		return *v
	}
	return p
}

// itemDeadlines は申請データのエントリ配列のキーと、各エントリの期限を返す。
// エントリ期限を持たない申請種別は空のキーを返す。
func itemDeadlines(p Payload) (string, []*time.Time) {
	var out []*time.Time
	switch v := p.(type) {
	case InsuranceAcquisitionData:
		for _, ip := range v.InsuredPersons {
			out = append(out, ip.Deadline)
		}
		return "insuredPersons", out
	case InsuranceLossData:
		for _, ip := range v.InsuredPersons {
			out = append(out, ip.Deadline)
		}
		return "insuredPersons", out
	case RewardBaseData:
		for _, rp := range v.RewardBasePersons {
			out = append(out, rp.Deadline)
		}
		return "rewardBasePersons", out
	case BonusPaymentData:
		for _, bp := range v.InsuredPersons {
			out = append(out, bp.Deadline)
		}
		return "insuredPersons", out
	}
	return "", nil
}

// MergeItemDeadlines は保存済みの申請データにエントリ期限だけを書き戻す。
// 期限ルールが参照しない項目（エントリ内・トップレベルとも）はそのまま残す。
func MergeItemDeadlines(raw []byte, p Payload) ([]byte, error) {
	doc := map[string]json.RawMessage{}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("申請データの読み込みに失敗しました: %w", err)
		}
	}

	key, deadlines := itemDeadlines(p)
	if key == "" || len(deadlines) == 0 {
		return json.Marshal(doc)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(doc[key], &entries); err != nil {
		// 配列として読めない場合は期限を書き戻さない
		return json.Marshal(doc)
	}
	for i := range entries {
		if i >= len(deadlines) {
			break
		}
		var entry map[string]json.RawMessage
		if err := json.Unmarshal(entries[i], &entry); err != nil || entry == nil {
			continue
		}
		if s := formatDeadline(deadlines[i]); s != nil {
			entry["deadline"], _ = json.Marshal(*s)
		} else {
			delete(entry, "deadline")
		}
		b, err := json.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("申請データのエンコードに失敗しました: %w", err)
		}
		entries[i] = b
	}

	b, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("申請データのエンコードに失敗しました: %w", err)
	}
	doc[key] = b
	return json.Marshal(doc)
}
