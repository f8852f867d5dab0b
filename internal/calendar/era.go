// Package calendar は和暦変換と営業日調整を提供する。
// いずれも副作用のない純粋関数で、日付はUTCの0時として扱う。
package calendar

import (
	"time"

	"github.com/hitoshi/shaho/internal/model"
)

// eraOffsets は元号ごとの西暦への加算年数。
var eraOffsets = map[model.Era]int{
	model.EraReiwa:  2018,
	model.EraHeisei: 1988,
	model.EraShowa:  1925,
	model.EraTaisho: 1911,
}

// GregorianYear は元号と和暦年から西暦年を返す。
// 未知の元号や年が0以下の場合はfalseを返す。
func GregorianYear(era model.Era, year int) (int, bool) {
	offset, ok := eraOffsets[era]
	if !ok || year <= 0 {
		return 0, false
	}
	return year + offset, true
}

// ConvertEra は和暦日付を西暦の日付に変換する。
// 元号・年・月・日のいずれかが欠けている、または存在しない日付の場合は変換不能としてfalseを返す。
func ConvertEra(d model.EraDate) (time.Time, bool) {
	year, ok := GregorianYear(d.Era, d.Year)
	if !ok {
		return time.Time{}, false
	}
	if d.Month < 1 || d.Month > 12 || d.Day < 1 || d.Day > 31 {
		return time.Time{}, false
	}
	t := Date(year, time.Month(d.Month), d.Day)
	// 2月30日のような繰り上がりは変換不能とする
	if t.Month() != time.Month(d.Month) {
		return time.Time{}, false
	}
	return t, true
}

// ResolveDate はフォームの日付入力を西暦の日付に解決する。
func ResolveDate(in *model.DateInput) (time.Time, bool) {
	if in == nil {
		return time.Time{}, false
	}
	if in.Gregorian != nil {
		return Truncate(*in.Gregorian), true
	}
	if in.Era != nil {
		return ConvertEra(*in.Era)
	}
	return time.Time{}, false
}

// ResolveYear はフォームの日付入力から西暦年のみを解決する。
// 和暦の場合は月日が未入力でも年があれば解決できる。
func ResolveYear(in *model.DateInput) (int, bool) {
	if in == nil {
		return 0, false
	}
	if in.Gregorian != nil {
		return in.Gregorian.Year(), true
	}
	if in.Era != nil {
		return GregorianYear(in.Era.Era, in.Era.Year)
	}
	return 0, false
}

// ResolveYearMonth はフォームの日付入力から西暦の年月を解決する。
func ResolveYearMonth(in *model.DateInput) (int, time.Month, bool) {
	if in == nil {
		return 0, 0, false
	}
	if in.Gregorian != nil {
		return in.Gregorian.Year(), in.Gregorian.Month(), true
	}
	if in.Era != nil {
		year, ok := GregorianYear(in.Era.Era, in.Era.Year)
		if !ok || in.Era.Month < 1 || in.Era.Month > 12 {
			return 0, 0, false
		}
		return year, time.Month(in.Era.Month), true
	}
	return 0, 0, false
}
