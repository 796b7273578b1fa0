package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnifex/identity/session"
	"github.com/omnifex/identity/theme"
)

func TestRouter_Callback(t *testing.T) {
	t.Parallel()

	newManager := func(t *testing.T, tr session.Transport) *session.Manager {
		t.Helper()
		cfg, err := session.NewConfig("https://issuer.example.com", "test-rp", "http://localhost:3000/callback")
		require.NoError(t, err)
		m, err := session.NewManager(cfg, tr)
		require.NoError(t, err)
		t.Cleanup(m.Destroy)
		select {
		case <-m.Initialized():
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for initialization")
		}
		return m
	}

	t.Run("redirects-to-return-url", func(t *testing.T) {
		assert := assert.New(t)
		tr := session.NewTestTransport()
		tr.CompleteLoginFn = func(context.Context, string) (*session.User, string, error) {
			return &session.User{Subject: "alice@example.com"}, "/dashboard", nil
		}
		mgr := newManager(t, tr)
		tm := theme.NewManager(theme.NewMemoryStore(), theme.NewStaticSignal(false))
		defer tm.Destroy()

		rec := httptest.NewRecorder()
		newRouter(mgr, tm).ServeHTTP(rec, httptest.NewRequest("GET", "/callback?state=st_1&code=c", nil))
		assert.Equal(http.StatusFound, rec.Code)
		assert.Equal("/dashboard", rec.Header().Get("Location"))
	})
	t.Run("empty-return-url-falls-back-to-root", func(t *testing.T) {
		assert := assert.New(t)
		tr := session.NewTestTransport()
		tr.CompleteLoginFn = func(context.Context, string) (*session.User, string, error) {
			return &session.User{Subject: "alice@example.com"}, "", nil
		}
		mgr := newManager(t, tr)
		tm := theme.NewManager(theme.NewMemoryStore(), theme.NewStaticSignal(false))
		defer tm.Destroy()

		rec := httptest.NewRecorder()
		newRouter(mgr, tm).ServeHTTP(rec, httptest.NewRequest("GET", "/callback?state=st_1&code=c", nil))
		assert.Equal(http.StatusFound, rec.Code)
		assert.Equal("/", rec.Header().Get("Location"))
	})
}
