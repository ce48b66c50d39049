package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/portal/domain"
)

func requestWithCookies(t *testing.T, rec *httptest.ResponseRecorder) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, cookie := range rec.Result().Cookies() {
		req.AddCookie(cookie)
	}
	return req
}

func TestManager_IssueSetsCookie(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Stop()
	manager := NewManager(store, time.Hour)

	rec := httptest.NewRecorder()
	sess, err := manager.Issue(context.Background(), rec)
	require.NoError(t, err)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Equal(t, sess.ID, cookies[0].Value)
	assert.Equal(t, 3600, cookies[0].MaxAge)
	assert.True(t, cookies[0].HttpOnly)
}

func TestManager_TransientCookieHasNoMaxAge(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Stop()
	manager := NewManager(store, 0)

	rec := httptest.NewRecorder()
	_, err := manager.Issue(context.Background(), rec)
	require.NoError(t, err)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Zero(t, cookies[0].MaxAge)
}

func TestManager_FromRequestRoundTrip(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Stop()
	manager := NewManager(store, 0)

	rec := httptest.NewRecorder()
	issued, err := manager.Issue(context.Background(), rec)
	require.NoError(t, err)

	loaded, err := manager.FromRequest(requestWithCookies(t, rec))
	require.NoError(t, err)
	assert.Equal(t, issued.ID, loaded.ID)
}

func TestManager_FromRequestWithoutCookie(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Stop()
	manager := NewManager(store, 0)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := manager.FromRequest(req)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_DestroyInvalidatesStaleCookie(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Stop()
	manager := NewManager(store, 0)

	rec := httptest.NewRecorder()
	_, err := manager.Issue(context.Background(), rec)
	require.NoError(t, err)

	logoutRec := httptest.NewRecorder()
	require.NoError(t, manager.Destroy(requestWithCookies(t, rec), logoutRec))

	// A follow-up request presenting the stale cookie is unauthenticated.
	_, err = manager.FromRequest(requestWithCookies(t, rec))
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	cookies := logoutRec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}
