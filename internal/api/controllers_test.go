package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func ginTestContext(url string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, url, nil)
	return c, w
}

func TestQueryLimit_DefaultsWhenUnset(t *testing.T) {
	c, _ := ginTestContext("/orders")
	assert.Equal(t, defaultLimit, queryLimit(c))
}

func TestQueryLimit_UsesProvidedValue(t *testing.T) {
	c, _ := ginTestContext("/orders?limit=5")
	assert.Equal(t, 5, queryLimit(c))
}

func TestQueryLimit_ClampsAboveMax(t *testing.T) {
	c, _ := ginTestContext("/orders?limit=999999")
	assert.Equal(t, maxLimit, queryLimit(c))
}

func TestQueryLimit_IgnoresNonPositiveOrInvalid(t *testing.T) {
	c, _ := ginTestContext("/orders?limit=-5")
	assert.Equal(t, defaultLimit, queryLimit(c))

	c, _ = ginTestContext("/orders?limit=not-a-number")
	assert.Equal(t, defaultLimit, queryLimit(c))
}
