package draw

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestEmojiClock(t *testing.T) {
	tests := []struct {
		sec  int
		want string
	}{
		{0, "⏱️ 0⃣0⃣⏱️0⃣0⃣"},
		{9, "⏱️ 0⃣0⃣⏱️0⃣9⃣"},
		{60, "⏱️ 0⃣1⃣⏱️0⃣0⃣"},
		{125, "⏱️ 0⃣2⃣⏱️0⃣5⃣"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EmojiClock(tt.sec))
	}
}

func TestRenderCountdownBar(t *testing.T) {
	// Full time left: bar fully pending.
	text := RenderCountdown("Daily Draw", 60, 60)
	assert.Contains(t, text, strings.Repeat("⚪", 10))
	assert.NotContains(t, text, "🔥")

	// Expired: bar fully drained.
	text = RenderCountdown("Daily Draw", 0, 60)
	assert.Contains(t, text, strings.Repeat("🟢", 10))

	// Halfway.
	text = RenderCountdown("Daily Draw", 30, 60)
	assert.Contains(t, text, strings.Repeat("🟢", 5)+strings.Repeat("⚪", 5))
}

func TestRenderCountdownFinalStretch(t *testing.T) {
	assert.NotContains(t, RenderCountdown("Weekly Draw", 11, 60), "🔥")

	ten := RenderCountdown("Weekly Draw", 10, 60)
	assert.Contains(t, ten, "🔥")
	assert.Contains(t, ten, "Final countdown")

	// The fire banner intensifies toward zero.
	one := RenderCountdown("Weekly Draw", 1, 60)
	assert.Greater(t, strings.Count(one, "🔥"), strings.Count(ten, "🔥"))
}

func TestRenderCountdownProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		total := rapid.IntRange(1, 600).Draw(t, "total")
		sec := rapid.IntRange(0, total).Draw(t, "sec")

		text := RenderCountdown("Monthly Draw", sec, total)

		assert.Contains(t, text, "Monthly Draw")
		assert.Contains(t, text, EmojiClock(sec))
		bar := strings.Count(text, "🟢") + strings.Count(text, "⚪")
		assert.Equal(t, progressSegments, bar)
	})
}
