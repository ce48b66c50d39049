package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.pilab.hu/portal/domain"
)

// CookieName carries the opaque session identifier.
const CookieName = "portal_sid"

// Manager ties the Store to the session cookie on the wire. The cookie holds
// only the opaque session ID; all state lives server-side.
type Manager struct {
	store Store

	// cookieMaxAge > 0 makes the cookie persistent with that lifetime,
	// derived from the configured session age when the durable backend is
	// selected. Zero means a browser-session cookie.
	cookieMaxAge time.Duration
}

// NewManager wraps store with cookie handling.
func NewManager(store Store, cookieMaxAge time.Duration) *Manager {
	return &Manager{store: store, cookieMaxAge: cookieMaxAge}
}

// FromRequest resolves the request's session cookie against the store.
// Requests without a cookie resolve to domain.ErrSessionNotFound; store
// failures propagate unchanged.
func (m *Manager) FromRequest(r *http.Request) (*domain.Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, domain.ErrSessionNotFound
	}
	return m.store.Load(r.Context(), cookie.Value)
}

// Issue creates a fresh session and sets its cookie on the response.
func (m *Manager) Issue(ctx context.Context, w http.ResponseWriter) (*domain.Session, error) {
	sess, err := m.store.Create(ctx)
	if err != nil {
		return nil, err
	}

	cookie := &http.Cookie{
		Name:     CookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if m.cookieMaxAge > 0 {
		cookie.MaxAge = int(m.cookieMaxAge.Seconds())
	}
	http.SetCookie(w, cookie)

	return sess, nil
}

// Save persists updated session state.
func (m *Manager) Save(ctx context.Context, sess *domain.Session) error {
	return m.store.Save(ctx, sess)
}

// Destroy removes the request's session from the store and expires the
// cookie. A following request presenting the stale cookie is unauthenticated.
func (m *Manager) Destroy(r *http.Request, w http.ResponseWriter) error {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	destroyErr := m.store.Destroy(r.Context(), cookie.Value)

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	if destroyErr != nil && !errors.Is(destroyErr, domain.ErrSessionNotFound) {
		return destroyErr
	}
	return nil
}
