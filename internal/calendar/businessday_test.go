package calendar

import (
	"testing"
	"time"
)

func TestAdjustToBusinessDay(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"土曜日は月曜日へ", Date(2024, time.April, 6), Date(2024, time.April, 8)},
		{"日曜日は月曜日へ", Date(2024, time.April, 7), Date(2024, time.April, 8)},
		{"月曜日はそのまま", Date(2024, time.April, 8), Date(2024, time.April, 8)},
		{"金曜日はそのまま", Date(2024, time.April, 5), Date(2024, time.April, 5)},
		{"月をまたぐ土曜日", Date(2024, time.August, 31), Date(2024, time.September, 2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AdjustToBusinessDay(tt.in)
			if !got.Equal(tt.want) {
				t.Errorf("AdjustToBusinessDay(%s) = %s, want %s", tt.in.Format("2006-01-02 Mon"), got.Format("2006-01-02 Mon"), tt.want.Format("2006-01-02 Mon"))
			}
		})
	}
}

func TestAdjustToBusinessDay_NeverWeekend(t *testing.T) {
	d := Date(2023, time.January, 1)
	for i := 0; i < 800; i++ {
		got := AdjustToBusinessDay(d)
		if got.Weekday() == time.Saturday || got.Weekday() == time.Sunday {
			t.Fatalf("AdjustToBusinessDay(%s) が週末 %s を返した", d.Format("2006-01-02"), got.Weekday())
		}
		d = AddDays(d, 1)
	}
}

func TestEndOfMonth(t *testing.T) {
	if got := EndOfMonth(2024, time.February); !got.Equal(Date(2024, time.February, 29)) {
		t.Errorf("EndOfMonth(2024, 2) = %s", got)
	}
	if got := EndOfMonth(2024, time.December); !got.Equal(Date(2024, time.December, 31)) {
		t.Errorf("EndOfMonth(2024, 12) = %s", got)
	}
}

func TestToday_UsesLocation(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	// UTC 2024-03-31 20:00 は JST 2024-04-01 05:00
	now := time.Date(2024, time.March, 31, 20, 0, 0, 0, time.UTC)
	if got := Today(now, jst); !got.Equal(Date(2024, time.April, 1)) {
		t.Errorf("Today = %s, want 2024-04-01", got)
	}
}

func TestDaysBetween(t *testing.T) {
	from := Date(2024, time.April, 1)
	if got := DaysBetween(from, Date(2024, time.April, 8)); got != 7 {
		t.Errorf("DaysBetween = %d, want 7", got)
	}
	if got := DaysBetween(from, Date(2024, time.March, 30)); got != -2 {
		t.Errorf("DaysBetween = %d, want -2", got)
	}
}
