package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPrizeAmount(t *testing.T) {
	tests := []struct {
		count int
		want  int64
	}{
		{0, 0},
		{1, 4250},
		{2, 8500},
		{100, 425000},
		{3, 12750},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PrizeAmount(tt.count), "count=%d", tt.count)
	}
}

func TestPrizeAmountNeverExceedsRevenue(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		count := rapid.IntRange(0, 1_000_000).Draw(t, "count")
		prize := PrizeAmount(count)
		revenue := int64(count) * TicketPrice
		assert.GreaterOrEqual(t, prize, int64(0))
		assert.LessOrEqual(t, prize, revenue)
	})
}

func TestParseTierRoundTrip(t *testing.T) {
	for _, tier := range AllTiers() {
		parsed, err := ParseTier(tier.String())
		require.NoError(t, err)
		assert.Equal(t, tier, parsed)
		assert.NotEmpty(t, tier.Title())
	}

	_, err := ParseTier("hourly")
	assert.Error(t, err)
	_, err = ParseTier("")
	assert.Error(t, err)
}

func TestPaymentMethods(t *testing.T) {
	methods := PaymentMethods()
	assert.Equal(t, []string{PaymentShamCash, PaymentSyriatelCash}, methods)
}
