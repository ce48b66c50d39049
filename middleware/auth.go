package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/portal/directory"
	"go.pilab.hu/portal/domain"
	"go.pilab.hu/portal/internal/metrics"
	"go.pilab.hu/portal/session"
	"go.pilab.hu/portal/verifier"
)

// userContextKey is where the resolved user is stashed on the echo context.
const userContextKey = "auth.user"

// loginPath is where denied requests are redirected. API routes get the same
// redirect instead of a structured error body; that asymmetry is deliberate.
const loginPath = "/login"

// Auth is the access-control decision layer. Every protected route funnels
// through RequireSession or RequireSessionOrToken.
type Auth struct {
	sessions *session.Manager
	dir      directory.Directory
	verifier verifier.Verifier
}

// NewAuth wires the decision layer.
func NewAuth(sessions *session.Manager, dir directory.Directory, v verifier.Verifier) *Auth {
	return &Auth{sessions: sessions, dir: dir, verifier: v}
}

// CurrentUser resolves the request's session cookie to a directory record.
// Absence (no cookie, stale session, unauthenticated session, unregistered
// subject) maps to domain.ErrSessionNotFound; storage failures propagate.
func (a *Auth) CurrentUser(c echo.Context) (*domain.User, error) {
	sess, err := a.sessions.FromRequest(c.Request())
	if err != nil {
		return nil, err
	}
	if !sess.Authenticated() {
		return nil, domain.ErrSessionNotFound
	}

	user, err := a.dir.FindBySubjectID(c.Request().Context(), sess.SubjectID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	return user, nil
}

// RequireSession continues when the session resolves to a user and redirects
// to /login otherwise. Store failures are request-level failures, not
// denials.
func (a *Auth) RequireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := a.CurrentUser(c)
		if err != nil {
			if errors.Is(err, domain.ErrSessionNotFound) {
				return c.Redirect(http.StatusFound, loginPath)
			}
			return err
		}

		c.Set(userContextKey, user)
		return next(c)
	}
}

// RequireSessionOrToken tries the bearer-token shortcut first. A token that
// verifies for the requested resource skips the session entirely; a token
// that is rejected, or whose verification errors, falls back to the session
// check rather than denying outright. No token means session check directly.
func (a *Auth) RequireSessionOrToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := c.QueryParam("access_token")
		if token != "" {
			err := a.verifier.Verify(c.Request().Context(), c.Param("id"), token)
			if err == nil {
				metrics.TokenVerifiedTotal.Inc()
				return next(c)
			}

			metrics.TokenRejectedTotal.Inc()
			log.Warn().Err(err).
				Str("resource_id", c.Param("id")).
				Msg("Token verification failed, falling back to session")
		}

		return a.RequireSession(next)(c)
	}
}

// UserFromContext returns the user resolved by RequireSession, if any.
func UserFromContext(c echo.Context) (*domain.User, bool) {
	user, ok := c.Get(userContextKey).(*domain.User)
	return user, ok
}
