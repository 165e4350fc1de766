package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"lottery-bot/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 15, 30, 0, 0, Zone)
}

func TestWindowFor_Daily(t *testing.T) {
	w := WindowFor(model.TierDaily, date(2024, time.February, 15))
	assert.Equal(t, Window{Start: "2024-02-15", End: "2024-02-15"}, w)
}

func TestWindowFor_Weekly(t *testing.T) {
	tests := []struct {
		name  string
		now   time.Time
		start string
		end   string
	}{
		{"monday", date(2024, time.February, 12), "2024-02-12", "2024-02-18"},
		{"midweek", date(2024, time.February, 15), "2024-02-12", "2024-02-18"},
		{"sunday", date(2024, time.February, 18), "2024-02-12", "2024-02-18"},
		{"crosses month boundary", date(2024, time.January, 31), "2024-01-29", "2024-02-04"},
		{"crosses year boundary", date(2024, time.December, 31), "2024-12-30", "2025-01-05"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := WindowFor(model.TierWeekly, tt.now)
			assert.Equal(t, tt.start, w.Start)
			assert.Equal(t, tt.end, w.End)
		})
	}
}

func TestWindowFor_Monthly(t *testing.T) {
	tests := []struct {
		name  string
		now   time.Time
		start string
		end   string
	}{
		{"leap february", date(2024, time.February, 15), "2024-02-01", "2024-02-29"},
		{"plain february", date(2023, time.February, 28), "2023-02-01", "2023-02-28"},
		{"thirty days", date(2024, time.April, 1), "2024-04-01", "2024-04-30"},
		{"thirty one days", date(2024, time.July, 31), "2024-07-01", "2024-07-31"},
		{"december", date(2024, time.December, 5), "2024-12-01", "2024-12-31"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := WindowFor(model.TierMonthly, tt.now)
			assert.Equal(t, tt.start, w.Start)
			assert.Equal(t, tt.end, w.End)
		})
	}
}

// Every day of a month must map to the same monthly window, and its bounds
// must match the real calendar.
func TestWindowFor_MonthlyCoversWholeCalendar(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		year := rapid.IntRange(2020, 2030).Draw(t, "year")
		month := time.Month(rapid.IntRange(1, 12).Draw(t, "month"))
		first := time.Date(year, month, 1, 0, 0, 0, 0, Zone)
		daysInMonth := first.AddDate(0, 1, -1).Day()
		day := rapid.IntRange(1, daysInMonth).Draw(t, "day")

		w := WindowFor(model.TierMonthly, date(year, month, day))
		if w.Start != first.Format(DateFormat) {
			t.Fatalf("start = %s, want %s", w.Start, first.Format(DateFormat))
		}
		wantEnd := first.AddDate(0, 1, -1).Format(DateFormat)
		if w.End != wantEnd {
			t.Fatalf("end = %s, want %s", w.End, wantEnd)
		}
	})
}

// Any instant inside a weekly window must produce that same window, and the
// window must span exactly seven days starting on a Monday.
func TestWindowFor_WeeklySpansSevenDays(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := time.Date(2024, time.January, 1, 0, 0, 0, 0, Zone)
		offset := rapid.IntRange(0, 800).Draw(t, "dayOffset")
		now := base.AddDate(0, 0, offset)

		w := WindowFor(model.TierWeekly, now)
		start, err := time.ParseInLocation(DateFormat, w.Start, Zone)
		if err != nil {
			t.Fatalf("bad start %q: %v", w.Start, err)
		}
		end, err := time.ParseInLocation(DateFormat, w.End, Zone)
		if err != nil {
			t.Fatalf("bad end %q: %v", w.End, err)
		}
		if start.Weekday() != time.Monday {
			t.Fatalf("window starts on %s, want Monday", start.Weekday())
		}
		if end.Sub(start) != 6*24*time.Hour {
			t.Fatalf("window spans %v, want 6 days", end.Sub(start))
		}
		if !w.Contains(now.Format(DateFormat)) {
			t.Fatalf("window %v does not contain %s", w, now.Format(DateFormat))
		}
	})
}

func TestWindowContains(t *testing.T) {
	w := Window{Start: "2024-02-01", End: "2024-02-29"}
	assert.True(t, w.Contains("2024-02-01"))
	assert.True(t, w.Contains("2024-02-29"))
	assert.True(t, w.Contains("2024-02-15"))
	assert.False(t, w.Contains("2024-01-31"))
	assert.False(t, w.Contains("2024-03-01"))
}

func TestNextTrigger(t *testing.T) {
	tests := []struct {
		name string
		tier model.Tier
		now  time.Time
		want time.Time
	}{
		{
			"daily before noon",
			model.TierDaily,
			time.Date(2024, time.February, 15, 9, 0, 0, 0, Zone),
			time.Date(2024, time.February, 15, 12, 0, 0, 0, Zone),
		},
		{
			"daily after noon rolls over",
			model.TierDaily,
			time.Date(2024, time.February, 15, 13, 0, 0, 0, Zone),
			time.Date(2024, time.February, 16, 12, 0, 0, 0, Zone),
		},
		{
			"weekly lands on friday",
			model.TierWeekly,
			time.Date(2024, time.February, 14, 9, 0, 0, 0, Zone), // Wednesday
			time.Date(2024, time.February, 16, 12, 0, 0, 0, Zone),
		},
		{
			"weekly on friday afternoon rolls a week",
			model.TierWeekly,
			time.Date(2024, time.February, 16, 13, 0, 0, 0, Zone),
			time.Date(2024, time.February, 23, 12, 0, 0, 0, Zone),
		},
		{
			"monthly before the first's noon",
			model.TierMonthly,
			time.Date(2024, time.March, 1, 9, 0, 0, 0, Zone),
			time.Date(2024, time.March, 1, 12, 0, 0, 0, Zone),
		},
		{
			"monthly mid-month rolls to next month",
			model.TierMonthly,
			time.Date(2024, time.March, 15, 9, 0, 0, 0, Zone),
			time.Date(2024, time.April, 1, 12, 0, 0, 0, Zone),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextTrigger(tt.tier, tt.now)
			require.True(t, got.After(tt.now))
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}
}
