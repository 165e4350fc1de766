package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlertsEnabled(t *testing.T) {
	// The stored switch is "1"/"0". Anything else, including a missing
	// row, keeps alerts flowing.
	assert.True(t, alertsEnabled(""))
	assert.True(t, alertsEnabled("1"))
	assert.False(t, alertsEnabled("0"))
	assert.True(t, alertsEnabled("garbage"))
}
