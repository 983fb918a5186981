package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseAdminToken_RoundTrips(t *testing.T) {
	tok, err := generateAdminToken("s3cr3t", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.NoError(t, parseAdminToken(tok, "s3cr3t"))
}

func TestParseAdminToken_RejectsWrongSecret(t *testing.T) {
	tok, err := generateAdminToken("s3cr3t", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Error(t, parseAdminToken(tok, "other-secret"))
}

func TestParseAdminToken_RejectsExpired(t *testing.T) {
	tok, err := generateAdminToken("s3cr3t", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Error(t, parseAdminToken(tok, "s3cr3t"))
}

func newTestRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", AuthMiddleware(secret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestAuthMiddleware_RejectsMissingHeader(t *testing.T) {
	r := newTestRouter("s3cr3t")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_RejectsMalformedHeader(t *testing.T) {
	r := newTestRouter("s3cr3t")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "NotBearer abc")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_AcceptsValidToken(t *testing.T) {
	r := newTestRouter("s3cr3t")
	tok, err := generateAdminToken("s3cr3t", time.Now().Add(time.Hour))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
