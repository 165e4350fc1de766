package draw

import (
	"fmt"
	"strings"
)

const progressSegments = 10

// keycap digits for the countdown clock.
var emojiDigits = map[rune]string{
	'0': "0\u20e3",
	'1': "1\u20e3",
	'2': "2\u20e3",
	'3': "3\u20e3",
	'4': "4\u20e3",
	'5': "5\u20e3",
	'6': "6\u20e3",
	'7': "7\u20e3",
	'8': "8\u20e3",
	'9': "9\u20e3",
	':': "⏱️",
}

// EmojiClock renders remaining seconds as an MM:SS emoji clock.
func EmojiClock(sec int) string {
	timeStr := fmt.Sprintf("%02d:%02d", sec/60, sec%60)
	var b strings.Builder
	b.WriteString("⏱️ ")
	for _, r := range timeStr {
		b.WriteString(emojiDigits[r])
	}
	return b.String()
}

// RenderCountdown produces the countdown message body for one tick.
// The progress bar drains as time passes and the final ten seconds switch
// to the fire banner.
func RenderCountdown(title string, sec, total int) string {
	if total < 1 {
		total = 1
	}
	remaining := progressSegments * sec / total
	bar := strings.Repeat("🟢", progressSegments-remaining) + strings.Repeat("⚪", remaining)

	if sec <= 10 {
		fire := strings.Repeat("🔥", 11-sec)
		return fmt.Sprintf(
			"%s Final countdown! %s\n\n"+
				"Time left until the %s:\n"+
				"%s\n\n"+
				"%s\n\n"+
				"The prize is waiting for one lucky winner!",
			fire, fire, title, EmojiClock(sec), bar,
		)
	}

	return fmt.Sprintf(
		"The countdown for the %s is on!\n\n"+
			"Time left:\n"+
			"%s\n\n"+
			"%s\n\n"+
			"The prize is waiting for one lucky winner!",
		title, EmojiClock(sec), bar,
	)
}
