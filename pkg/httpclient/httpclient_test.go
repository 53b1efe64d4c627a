package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSendsCookiesAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := r.Cookie("session-id")
		if err != nil || session.Value != "abc" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		assert.Equal(t, "application/pdf,*/*", r.Header.Get("Accept"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	client, err := New(Options{Timeout: 5 * time.Second, UserAgent: "test-agent"}, log.Default())
	require.NoError(t, err)

	client.SetCookies([]*http.Cookie{{Name: "session-id", Value: "abc", Domain: "127.0.0.1", Path: "/"}})

	res, err := client.Get(context.Background(), srv.URL+"/invoice", map[string]string{"Accept": "application/pdf,*/*"})
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, "application/pdf", res.ContentType())
	assert.Equal(t, "%PDF-1.4", string(res.Body))
}

func TestGetWithoutCookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("session-id"); err != nil {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := New(Options{}, log.Default())
	require.NoError(t, err)

	res, err := client.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestGetCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := New(Options{}, log.Default())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.Get(ctx, srv.URL, nil)
	require.Error(t, err)
}
