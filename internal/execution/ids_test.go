package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaperID_IsDeterministicAndPrefixed(t *testing.T) {
	a := paperID("entry", "idem-1")
	b := paperID("entry", "idem-1")
	assert.Equal(t, a, b)
	assert.Regexp(t, `^paper-entry-[0-9a-f]{12}$`, a)

	c := paperID("tp1", "idem-1")
	assert.NotEqual(t, a, c, "different purpose must produce a different id")
}

func TestOrderLinkID_JoinsIdemAndPurpose(t *testing.T) {
	assert.Equal(t, "idem-1:tp2", orderLinkID("idem-1", "tp2"))
}
