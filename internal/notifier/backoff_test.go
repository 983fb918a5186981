package notifier

import "testing"

import "github.com/stretchr/testify/assert"

func TestBackoffSeconds_DoublesThenCaps(t *testing.T) {
	assert.Equal(t, int64(1), backoffSeconds(1))
	assert.Equal(t, int64(2), backoffSeconds(2))
	assert.Equal(t, int64(4), backoffSeconds(3))
	assert.Equal(t, int64(8), backoffSeconds(4))
	assert.Equal(t, int64(300), backoffSeconds(20))
	assert.Equal(t, int64(300), backoffSeconds(63))
}

func TestBackoffSeconds_ClampsBelowOne(t *testing.T) {
	assert.Equal(t, int64(1), backoffSeconds(0))
	assert.Equal(t, int64(1), backoffSeconds(-5))
}

func TestSeverityWarrantsSend(t *testing.T) {
	assert.True(t, severityWarrantsSend("IMPORTANT"))
	assert.True(t, severityWarrantsSend("CRITICAL"))
	assert.False(t, severityWarrantsSend("INFO"))
	assert.False(t, severityWarrantsSend(""))
}
