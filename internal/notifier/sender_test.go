package notifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSender_EmptyURLIsNoop(t *testing.T) {
	s := NewHTTPSender("")
	assert.NoError(t, s.Send(context.Background(), "IMPORTANT", "hello"))
}

func TestHTTPSender_PostsJSONAndSucceedsOn2xx(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL)
	err := s.Send(context.Background(), "CRITICAL", "drawdown hit")
	require.NoError(t, err)
	assert.Contains(t, gotBody, "drawdown hit")
	assert.Contains(t, gotBody, "CRITICAL")
}

func TestHTTPSender_NonTwoXXIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL)
	err := s.Send(context.Background(), "IMPORTANT", "x")
	assert.Error(t, err)
}
