package echo

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/portal/directory"
	"go.pilab.hu/portal/domain"
	"go.pilab.hu/portal/internal/metrics"
	"go.pilab.hu/portal/middleware"
	"go.pilab.hu/portal/notify"
	"go.pilab.hu/portal/session"
)

// Handshake is the two-method capability the identity provider client
// exposes to the route layer: initiate and complete.
type Handshake interface {
	Begin(w http.ResponseWriter) (string, error)
	Complete(r *http.Request, w http.ResponseWriter) (*domain.User, error)
	SuccessRedirect() string
	FailureRedirect() string
}

// PortalAPI holds the route layer's collaborators.
type PortalAPI struct {
	handshake          Handshake
	sessions           *session.Manager
	dir                directory.Directory
	sender             notify.Sender
	auth               *middleware.Auth
	postLogoutRedirect string
}

// NewPortalAPI initializes the portal route layer.
func NewPortalAPI(
	handshake Handshake,
	sessions *session.Manager,
	dir directory.Directory,
	sender notify.Sender,
	auth *middleware.Auth,
	postLogoutRedirect string,
) *PortalAPI {
	if postLogoutRedirect == "" {
		postLogoutRedirect = "/"
	}
	return &PortalAPI{
		handshake:          handshake,
		sessions:           sessions,
		dir:                dir,
		sender:             sender,
		auth:               auth,
		postLogoutRedirect: postLogoutRedirect,
	}
}

// RegisterRoutes binds the portal routes.
func (a *PortalAPI) RegisterRoutes(e *echo.Echo) {
	e.GET("/login", a.LoginHandler)
	e.GET("/auth/openid/return", a.CallbackHandler)
	e.POST("/auth/openid/return", a.CallbackHandler)
	e.GET("/logout", a.LogoutHandler)

	e.GET("/", a.IndexHandler)
	e.GET("/profile/:id", a.ProfileHandler, a.auth.RequireSessionOrToken)

	e.GET("/api/profiles", a.ProfilesHandler, a.auth.RequireSession)
	e.PUT("/api/notify", a.NotifyHandler, a.auth.RequireSession)
	e.POST("/api/notify", a.NotifyHandler, a.auth.RequireSession)

	e.Static("/public", "public")
}

// LoginHandler initiates the provider handshake. No session is required.
func (a *PortalAPI) LoginHandler(c echo.Context) error {
	authURL, err := a.handshake.Begin(c.Response())
	if err != nil {
		log.Warn().Err(err).Msg("Could not initiate provider handshake")
		metrics.LoginFailureTotal.Inc()
		return c.Redirect(http.StatusFound, a.handshake.FailureRedirect())
	}
	return c.Redirect(http.StatusFound, authURL)
}

// CallbackHandler completes the provider handshake. On success the subject
// is auto-registered (first login only) and bound to a session; any failure
// redirects to the configured fallback without touching session or directory.
func (a *PortalAPI) CallbackHandler(c echo.Context) error {
	ctx := c.Request().Context()

	profile, err := a.handshake.Complete(c.Request(), c.Response())
	if err != nil {
		log.Warn().Err(err).Msg("Provider handshake failed")
		metrics.LoginFailureTotal.Inc()
		return c.Redirect(http.StatusFound, a.handshake.FailureRedirect())
	}

	user, err := a.dir.FindBySubjectID(ctx, profile.SubjectID)
	switch {
	case err == nil:
		// Returning subject: the original record wins, claims are not
		// refreshed.
	case errors.Is(err, domain.ErrUserNotFound):
		user, err = a.dir.FindOrRegister(ctx, profile)
		if err != nil {
			log.Error().Err(err).Msg("Auto-registration failed")
			metrics.LoginFailureTotal.Inc()
			return c.Redirect(http.StatusFound, a.handshake.FailureRedirect())
		}
		metrics.UserRegisteredTotal.Inc()
	default:
		// Directory storage failure aborts authentication, it is not
		// "user not found".
		log.Error().Err(err).Msg("Directory lookup failed during handshake")
		metrics.LoginFailureTotal.Inc()
		return c.Redirect(http.StatusFound, a.handshake.FailureRedirect())
	}

	sess, err := a.sessions.FromRequest(c.Request())
	if err != nil {
		sess, err = a.sessions.Issue(ctx, c.Response())
		if err != nil {
			return err
		}
	}
	sess.SubjectID = user.SubjectID
	if err := a.sessions.Save(ctx, sess); err != nil {
		return err
	}

	metrics.LoginSuccessTotal.Inc()
	metrics.ActiveSessionsGauge.Inc()
	log.Info().Str("subject_id", user.SubjectID).Msg("Handshake completed")

	return c.Redirect(http.StatusFound, a.handshake.SuccessRedirect())
}

// LogoutHandler destroys the session and redirects to the configured
// post-logout location.
func (a *PortalAPI) LogoutHandler(c echo.Context) error {
	if sess, err := a.sessions.FromRequest(c.Request()); err == nil && sess.Authenticated() {
		metrics.ActiveSessionsGauge.Dec()
	}

	if err := a.sessions.Destroy(c.Request(), c.Response()); err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, a.postLogoutRedirect)
}

// IndexHandler is public and renders the authenticated or anonymous view.
func (a *PortalAPI) IndexHandler(c echo.Context) error {
	user, err := a.auth.CurrentUser(c)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return c.JSON(http.StatusOK, echo.Map{"user": nil})
		}
		return err
	}

	profiles, err := a.dir.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user":     user,
		"profiles": profiles,
	})
}

// ProfileHandler shows one profile. Reached via session or bearer token.
func (a *PortalAPI) ProfileHandler(c echo.Context) error {
	user, err := a.dir.FindBySubjectID(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "profile not found"})
		}
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// ProfilesHandler lists the directory-visible profiles.
func (a *PortalAPI) ProfilesHandler(c echo.Context) error {
	profiles, err := a.dir.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profiles)
}

// NotifyHandler relays a notification through the external sender.
func (a *PortalAPI) NotifyHandler(c echo.Context) error {
	var n notify.Notification
	if err := c.Bind(&n); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed notification"})
	}
	if n.SubjectID == "" {
		if user, ok := middleware.UserFromContext(c); ok {
			n.SubjectID = user.SubjectID
		}
	}

	if err := a.sender.Send(c.Request().Context(), n); err != nil {
		log.Error().Err(err).Msg("Notification delivery failed")
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "notification delivery failed"})
	}
	return c.JSON(http.StatusAccepted, echo.Map{"status": "sent"})
}
