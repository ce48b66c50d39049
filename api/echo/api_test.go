package echo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/portal/directory"
	"go.pilab.hu/portal/domain"
	"go.pilab.hu/portal/middleware"
	"go.pilab.hu/portal/notify"
	"go.pilab.hu/portal/session"
)

// --- Mock Implementations ---

type fakeHandshake struct {
	authURL  string
	beginErr error
	user     *domain.User
	err      error
}

func (f *fakeHandshake) Begin(http.ResponseWriter) (string, error) {
	return f.authURL, f.beginErr
}

func (f *fakeHandshake) Complete(*http.Request, http.ResponseWriter) (*domain.User, error) {
	return f.user, f.err
}

func (f *fakeHandshake) SuccessRedirect() string { return "/" }
func (f *fakeHandshake) FailureRedirect() string { return "/" }

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, resourceID, token string) error {
	args := m.Called(ctx, resourceID, token)
	return args.Error(0)
}

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, n notify.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

type portalFixture struct {
	echo      *echo.Echo
	handshake *fakeHandshake
	dir       *directory.Memory
	sender    *MockSender
	verifier  *MockVerifier
}

func newPortal(t *testing.T) *portalFixture {
	t.Helper()

	store := session.NewMemoryStore(time.Minute)
	t.Cleanup(store.Stop)

	sessions := session.NewManager(store, 0)
	dir := directory.NewMemory()
	handshake := &fakeHandshake{authURL: "https://idp.example.com/authorize"}
	sender := new(MockSender)
	mockVerifier := new(MockVerifier)

	auth := middleware.NewAuth(sessions, dir, mockVerifier)
	api := NewPortalAPI(handshake, sessions, dir, sender, auth, "/")

	e := echo.New()
	api.RegisterRoutes(e)

	return &portalFixture{
		echo:      e,
		handshake: handshake,
		dir:       dir,
		sender:    sender,
		verifier:  mockVerifier,
	}
}

func (f *portalFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	return rec
}

// login runs the full callback flow and returns the session cookie.
func (f *portalFixture) login(t *testing.T, subjectID string) *http.Cookie {
	t.Helper()
	f.handshake.user = &domain.User{SubjectID: subjectID}
	f.handshake.err = nil

	rec := f.do(httptest.NewRequest(http.MethodPost, "/auth/openid/return", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	for _, cookie := range cookies {
		if cookie.Name == session.CookieName {
			return cookie
		}
	}
	t.Fatal("no session cookie issued")
	return nil
}

func TestLogin_RedirectsToProvider(t *testing.T) {
	f := newPortal(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/login", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://idp.example.com/authorize", rec.Header().Get(echo.HeaderLocation))
}

func TestCallback_AutoRegistersAndEstablishesSession(t *testing.T) {
	f := newPortal(t)
	f.handshake.user = &domain.User{SubjectID: "abc123"}

	rec := f.do(httptest.NewRequest(http.MethodPost, "/auth/openid/return", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get(echo.HeaderLocation))

	users, err := f.dir.List(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "abc123", users[0].SubjectID)

	// The issued cookie opens the protected API.
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	apiReq := httptest.NewRequest(http.MethodGet, "/api/profiles", nil)
	for _, cookie := range cookies {
		apiReq.AddCookie(cookie)
	}
	apiRec := f.do(apiReq)
	assert.Equal(t, http.StatusOK, apiRec.Code)
	assert.Contains(t, apiRec.Body.String(), "abc123")
}

func TestCallback_SecondLoginDoesNotDuplicate(t *testing.T) {
	f := newPortal(t)

	f.login(t, "abc123")
	f.login(t, "abc123")

	users, err := f.dir.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestCallback_HandshakeFailureRedirectsWithoutSideEffects(t *testing.T) {
	f := newPortal(t)
	f.handshake.err = domain.ErrMissingSubjectID

	rec := f.do(httptest.NewRequest(http.MethodPost, "/auth/openid/return", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get(echo.HeaderLocation))

	users, err := f.dir.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)

	for _, cookie := range rec.Result().Cookies() {
		assert.NotEqual(t, session.CookieName, cookie.Name)
	}
}

func TestLogout_StaleCookieIsUnauthenticated(t *testing.T) {
	f := newPortal(t)
	cookie := f.login(t, "abc123")

	logoutReq := httptest.NewRequest(http.MethodGet, "/logout", nil)
	logoutReq.AddCookie(cookie)
	logoutRec := f.do(logoutReq)
	assert.Equal(t, http.StatusFound, logoutRec.Code)

	// Same cookie, immediately afterwards: denied.
	apiReq := httptest.NewRequest(http.MethodGet, "/api/profiles", nil)
	apiReq.AddCookie(cookie)
	apiRec := f.do(apiReq)
	assert.Equal(t, http.StatusFound, apiRec.Code)
	assert.Equal(t, "/login", apiRec.Header().Get(echo.HeaderLocation))
}

func TestProfiles_WithoutSessionRedirects(t *testing.T) {
	f := newPortal(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/profiles", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))
}

func TestProfile_BadTokenNoSessionRedirects(t *testing.T) {
	f := newPortal(t)
	f.verifier.On("Verify", mock.Anything, "42", "BAD").
		Return(context.DeadlineExceeded)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/profile/42?access_token=BAD", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))
}

func TestProfile_ValidTokenWithoutSession(t *testing.T) {
	f := newPortal(t)
	f.login(t, "abc123")
	f.verifier.On("Verify", mock.Anything, "abc123", "GOOD").Return(nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/profile/abc123?access_token=GOOD", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "abc123")
}

func TestIndex_AnonymousAndAuthenticated(t *testing.T) {
	f := newPortal(t)

	anon := f.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, anon.Code)
	assert.Contains(t, anon.Body.String(), `"user":null`)

	cookie := f.login(t, "abc123")
	authedReq := httptest.NewRequest(http.MethodGet, "/", nil)
	authedReq.AddCookie(cookie)
	authed := f.do(authedReq)
	assert.Equal(t, http.StatusOK, authed.Code)
	assert.Contains(t, authed.Body.String(), `"profiles"`)
	assert.Contains(t, authed.Body.String(), "abc123")
}

func TestNotify_DelegatesToSender(t *testing.T) {
	f := newPortal(t)
	cookie := f.login(t, "abc123")

	f.sender.On("Send", mock.Anything, notify.Notification{
		SubjectID: "abc123",
		Message:   "sighting reported",
	}).Return(nil)

	body := strings.NewReader(`{"subject_id":"abc123","message":"sighting reported"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/notify", body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.AddCookie(cookie)

	rec := f.do(req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	f.sender.AssertExpectations(t)
}

func TestNotify_WithoutSessionRedirects(t *testing.T) {
	f := newPortal(t)

	req := httptest.NewRequest(http.MethodPost, "/api/notify", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := f.do(req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))
	f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}
