package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dklatt/gatehouse/internal/handlers"
	"github.com/dklatt/gatehouse/internal/models"
	"github.com/dklatt/gatehouse/internal/session"
	pkghttp "github.com/dklatt/gatehouse/pkg/http"
)

func testAuthHandler(service handlers.LoginServiceInterface) *handlers.AuthHandler {
	return handlers.NewAuthHandler(service, session.CookieConfig{SameSite: "strict"}, pkghttp.IPConfig{}, time.Hour)
}

func cookieByName(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLogin_Success(t *testing.T) {
	user := &models.User{ID: "user-1", Username: "alice", Email: "alice@example.com"}
	mockService := &handlers.MockLoginService{
		AttemptFunc: func(ctx context.Context, sess session.Store, username, password, requestUserAgent, clientIP string, now time.Time) (*models.User, error) {
			sess.Set("user_id", user.ID)
			return user, nil
		},
	}

	handler := testAuthHandler(mockService)
	store := handlers.NewStubStore()
	req := handlers.WithSession(handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Username: "alice",
		Password: "Sup3r$ecretPwd",
	}), store)

	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp handlers.UserResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "user-1", resp.ID)
	assert.Equal(t, "alice", resp.Username)

	sessionCookie := cookieByName(t, w, session.SessionCookieName)
	require.NotNil(t, sessionCookie, "login must set the session cookie")
	assert.Equal(t, store.ID(), sessionCookie.Value)
	assert.True(t, sessionCookie.HttpOnly)

	csrfCookie := cookieByName(t, w, "csrf_token")
	require.NotNil(t, csrfCookie, "login must set the CSRF cookie")
	assert.False(t, csrfCookie.HttpOnly)
	csrfToken, ok := session.CSRFToken(store)
	assert.True(t, ok)
	assert.Equal(t, csrfToken, csrfCookie.Value)
	assert.GreaterOrEqual(t, store.Saves, 1, "CSRF token must be persisted")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	mockService := &handlers.MockLoginService{
		AttemptFunc: func(ctx context.Context, sess session.Store, username, password, requestUserAgent, clientIP string, now time.Time) (*models.User, error) {
			return nil, models.ErrInvalidCredentials
		},
	}

	handler := testAuthHandler(mockService)
	req := handlers.WithSession(handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Username: "alice",
		Password: "wrongpassword",
	}), handlers.NewStubStore())

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
	assert.Nil(t, cookieByName(t, w, session.SessionCookieName), "failed login must not set cookies")
}

func TestLogin_Throttled(t *testing.T) {
	mockService := &handlers.MockLoginService{
		AttemptFunc: func(ctx context.Context, sess session.Store, username, password, requestUserAgent, clientIP string, now time.Time) (*models.User, error) {
			return nil, &models.ThrottledError{MinutesRemaining: 3}
		},
	}

	handler := testAuthHandler(mockService)
	req := handlers.WithSession(handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Username: "alice",
		Password: "Sup3r$ecretPwd",
	}), handlers.NewStubStore())

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 429, "too_many_failed_logins")
	assert.Equal(t, "180", w.Header().Get("Retry-After"))
}

func TestLogin_ClientIPReachesService(t *testing.T) {
	var seenIP string
	mockService := &handlers.MockLoginService{
		AttemptFunc: func(ctx context.Context, sess session.Store, username, password, requestUserAgent, clientIP string, now time.Time) (*models.User, error) {
			seenIP = clientIP
			return nil, models.ErrInvalidCredentials
		},
	}

	handler := handlers.NewAuthHandler(mockService, session.CookieConfig{SameSite: "strict"},
		pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8"}}, time.Hour)

	t.Run("direct connection", func(t *testing.T) {
		req := handlers.WithSession(handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
			Username: "alice",
			Password: "wrongpassword",
		}), handlers.NewStubStore())
		req.RemoteAddr = "198.51.100.9:44822"

		handler.Login(httptest.NewRecorder(), req)
		assert.Equal(t, "198.51.100.9", seenIP)
	})

	t.Run("behind trusted proxy", func(t *testing.T) {
		req := handlers.WithSession(handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
			Username: "alice",
			Password: "wrongpassword",
		}), handlers.NewStubStore())
		req.RemoteAddr = "10.0.0.4:39120"
		req.Header.Set("X-Forwarded-For", "203.0.113.7")

		handler.Login(httptest.NewRecorder(), req)
		assert.Equal(t, "203.0.113.7", seenIP)
	})
}

func TestLogin_MissingFields(t *testing.T) {
	handler := testAuthHandler(&handlers.MockLoginService{})

	tests := []struct {
		name string
		body handlers.LoginRequest
	}{
		{name: "missing username", body: handlers.LoginRequest{Password: "x"}},
		{name: "missing password", body: handlers.LoginRequest{Username: "alice"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := handlers.WithSession(handlers.NewTestRequest(t, "POST", "/auth/login", tt.body), handlers.NewStubStore())
			w := httptest.NewRecorder()
			handler.Login(w, req)

			handlers.AssertErrorResponse(t, w, 400, "bad_request")
		})
	}
}

func TestLogin_InvalidBody(t *testing.T) {
	handler := testAuthHandler(&handlers.MockLoginService{})
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req = handlers.WithSession(req, handlers.NewStubStore())

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestLogin_NoSessionLoaded(t *testing.T) {
	handler := testAuthHandler(&handlers.MockLoginService{})
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Username: "alice",
		Password: "Sup3r$ecretPwd",
	})

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, 500, "internal_error")
}

func TestLogout_Success(t *testing.T) {
	mockService := &handlers.MockLoginService{
		LogoutFunc: func(ctx context.Context, sess session.Store, clientIP string) error {
			return sess.Destroy(ctx)
		},
	}

	handler := testAuthHandler(mockService)
	store := handlers.NewStubStore()
	store.Values["user_id"] = "user-1"
	req := handlers.WithSession(handlers.NewTestRequest(t, "POST", "/auth/logout", nil), store)

	w := httptest.NewRecorder()
	handler.Logout(w, req)

	var resp map[string]string
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.True(t, store.Destroyed)

	sessionCookie := cookieByName(t, w, session.SessionCookieName)
	require.NotNil(t, sessionCookie)
	assert.Negative(t, sessionCookie.MaxAge, "logout must clear the session cookie")
}

func TestMe_Success(t *testing.T) {
	user := &models.User{ID: "user-1", Username: "alice", Email: "alice@example.com"}
	mockService := &handlers.MockLoginService{
		CurrentUserFunc: func(ctx context.Context, sess session.Store) (*models.User, error) {
			return user, nil
		},
	}

	handler := testAuthHandler(mockService)
	store := handlers.NewStubStore()
	store.Values["user_id"] = user.ID
	req := handlers.WithSession(handlers.NewTestRequest(t, "GET", "/auth/me", nil), store)

	w := httptest.NewRecorder()
	handler.Me(w, req)

	var resp handlers.UserResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "alice", resp.Username)
	assert.Equal(t, "alice@example.com", resp.Email)
}

func TestMe_NotLoggedIn(t *testing.T) {
	handler := testAuthHandler(&handlers.MockLoginService{})
	req := handlers.WithSession(handlers.NewTestRequest(t, "GET", "/auth/me", nil), handlers.NewStubStore())

	w := httptest.NewRecorder()
	handler.Me(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestRegister_Success(t *testing.T) {
	mockService := &handlers.MockLoginService{
		RegisterFunc: func(ctx context.Context, username, email, password string) (*models.User, error) {
			return &models.User{ID: "new-id", Username: username, Email: email}, nil
		},
	}

	handler := testAuthHandler(mockService)
	req := handlers.NewTestRequest(t, "POST", "/auth/register", handlers.RegisterRequest{
		Username: "bob",
		Email:    "bob@example.com",
		Password: "An0ther$ecretPwd",
	})

	w := httptest.NewRecorder()
	handler.Register(w, req)

	var resp handlers.UserResponse
	handlers.AssertJSONResponse(t, w, 201, &resp)
	assert.Equal(t, "new-id", resp.ID)
	assert.Equal(t, "bob", resp.Username)
}

func TestRegister_Conflict(t *testing.T) {
	mockService := &handlers.MockLoginService{
		RegisterFunc: func(ctx context.Context, username, email, password string) (*models.User, error) {
			return nil, models.ErrConflict
		},
	}

	handler := testAuthHandler(mockService)
	req := handlers.NewTestRequest(t, "POST", "/auth/register", handlers.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "An0ther$ecretPwd",
	})

	w := httptest.NewRecorder()
	handler.Register(w, req)

	handlers.AssertErrorResponse(t, w, 409, "conflict")
}

func TestRegister_WeakPassword(t *testing.T) {
	mockService := &handlers.MockLoginService{
		RegisterFunc: func(ctx context.Context, username, email, password string) (*models.User, error) {
			return nil, models.ErrBadRequest
		},
	}

	handler := testAuthHandler(mockService)
	req := handlers.NewTestRequest(t, "POST", "/auth/register", handlers.RegisterRequest{
		Username: "bob",
		Email:    "bob@example.com",
		Password: "weak",
	})

	w := httptest.NewRecorder()
	handler.Register(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestRegister_InvalidEmail(t *testing.T) {
	handler := testAuthHandler(&handlers.MockLoginService{})
	req := handlers.NewTestRequest(t, "POST", "/auth/register", handlers.RegisterRequest{
		Username: "bob",
		Email:    "not-an-email",
		Password: "An0ther$ecretPwd",
	})

	w := httptest.NewRecorder()
	handler.Register(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}
