package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateRunID_Is16HexChars(t *testing.T) {
	id := generateRunID("BTCUSDT", "1h")
	assert.Len(t, id, 16)
	for _, r := range id {
		assert.True(t, (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f'))
	}
}

func TestGenerateRunID_DiffersAcrossSymbols(t *testing.T) {
	a := generateRunID("BTCUSDT", "1h")
	b := generateRunID("ETHUSDT", "1h")
	assert.NotEqual(t, a, b)
}
