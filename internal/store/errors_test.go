package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestIsNoRows(t *testing.T) {
	assert.True(t, isNoRows(pgx.ErrNoRows))
	assert.True(t, isNoRows(fmt.Errorf("wrapped: %w", pgx.ErrNoRows)))
	assert.False(t, isNoRows(errors.New("some other failure")))
	assert.False(t, isNoRows(nil))
}
