package marketdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissingBarCloseTimes_NoPriorBarReturnsNil(t *testing.T) {
	missing, err := missingBarCloseTimes("1h", 0, 1_000)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMissingBarCloseTimes_NoGapReturnsEmpty(t *testing.T) {
	stride := int64(60 * 60 * 1000)
	missing, err := missingBarCloseTimes("1h", 1000*stride, 1001*stride)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestMissingBarCloseTimes_FindsEachMissingBar(t *testing.T) {
	stride := int64(60 * 60 * 1000)
	missing, err := missingBarCloseTimes("1h", 1000*stride, 1004*stride)
	require.NoError(t, err)
	require.Len(t, missing, 3)
	assert.Equal(t, 1001*stride, missing[0])
	assert.Equal(t, 1002*stride, missing[1])
	assert.Equal(t, 1003*stride, missing[2])
}

func TestMissingBarCloseTimes_UnknownTimeframe(t *testing.T) {
	_, err := missingBarCloseTimes("bogus", 1000, 2000)
	assert.Error(t, err)
}
