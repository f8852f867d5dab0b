package calendar

import "time"

// Date は指定した年月日のUTC 0時を返す。
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Truncate は時刻成分を切り捨て、同じ暦日のUTC 0時を返す。
func Truncate(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// Today は指定タイムゾーンでの現在日付をUTC 0時として返す。
func Today(now time.Time, loc *time.Location) time.Time {
	return Truncate(now.In(loc))
}

// AddDays は日付にn日を加算する。
func AddDays(d time.Time, n int) time.Time {
	return d.AddDate(0, 0, n)
}

// DaysBetween は2つの日付の暦日差（to - from）を返す。
func DaysBetween(from, to time.Time) int {
	return int(Truncate(to).Sub(Truncate(from)).Hours() / 24)
}

// EndOfMonth は指定年月の末日を返す。
func EndOfMonth(year int, month time.Month) time.Time {
	return Date(year, month+1, 1).AddDate(0, 0, -1)
}

// AdjustToBusinessDay は土日を翌月曜日に繰り下げる。
// 祝日は考慮しない。
func AdjustToBusinessDay(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return AddDays(d, 2)
	case time.Sunday:
		return AddDays(d, 1)
	default:
		return d
	}
}
