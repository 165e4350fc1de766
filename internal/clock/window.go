// Package clock computes draw windows and the bot's local time.
//
// Every timestamp the system compares against a window must come from the
// same fixed UTC+3 zone; mixing sources with different offsets would make
// window membership inconsistent.
package clock

import (
	"time"

	"lottery-bot/internal/model"
)

// DateFormat is the storage format for purchase and window dates.
// Dates in this format compare correctly as strings.
const DateFormat = "2006-01-02"

// Zone is the fixed local zone all window arithmetic uses.
var Zone = time.FixedZone("UTC+3", 3*60*60)

// Now returns the current time in the bot's fixed zone.
func Now() time.Time {
	return time.Now().In(Zone)
}

// Window is the inclusive date range a tier accumulates tickets over.
// Start and End are DateFormat strings; membership is string comparison.
type Window struct {
	Start string
	End   string
}

// Contains reports whether a DateFormat date falls inside the window.
func (w Window) Contains(date string) bool {
	return date >= w.Start && date <= w.End
}

// WindowFor returns the window the given instant belongs to for a tier.
func WindowFor(tier model.Tier, now time.Time) Window {
	switch tier {
	case model.TierDaily:
		d := now.Format(DateFormat)
		return Window{Start: d, End: d}
	case model.TierWeekly:
		// ISO week: Monday through Sunday.
		offset := int(now.Weekday()-time.Monday+7) % 7
		start := now.AddDate(0, 0, -offset)
		end := start.AddDate(0, 0, 6)
		return Window{Start: start.Format(DateFormat), End: end.Format(DateFormat)}
	case model.TierMonthly:
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		// Day 28 plus four days always lands in the next month, for every
		// month length including leap Februaries.
		last := time.Date(now.Year(), now.Month(), 28, 0, 0, 0, 0, now.Location()).
			AddDate(0, 0, 4)
		last = time.Date(last.Year(), last.Month(), 1, 0, 0, 0, 0, last.Location()).
			AddDate(0, 0, -1)
		return Window{Start: first.Format(DateFormat), End: last.Format(DateFormat)}
	}
	panic("clock: unhandled tier " + tier.String())
}

// NextTrigger returns the next scheduled draw instant for a tier after now.
// Draws fire at DrawHour local time: daily every day, weekly on Friday,
// monthly on the first of the month.
func NextTrigger(tier model.Tier, now time.Time) time.Time {
	at := time.Date(now.Year(), now.Month(), now.Day(), DrawHour, 0, 0, 0, now.Location())
	switch tier {
	case model.TierDaily:
		if !at.After(now) {
			at = at.AddDate(0, 0, 1)
		}
		return at
	case model.TierWeekly:
		days := int(DrawWeekday-now.Weekday()+7) % 7
		at = at.AddDate(0, 0, days)
		if !at.After(now) {
			at = at.AddDate(0, 0, 7)
		}
		return at
	case model.TierMonthly:
		at = time.Date(now.Year(), now.Month(), 1, DrawHour, 0, 0, 0, now.Location())
		if !at.After(now) {
			at = at.AddDate(0, 1, 0)
		}
		return at
	}
	panic("clock: unhandled tier " + tier.String())
}

// Draw schedule anchors shared by NextTrigger and the cron scheduler.
const (
	DrawHour    = 12
	DrawWeekday = time.Friday
)
