package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dklatt/gatehouse/internal/models"
	"github.com/dklatt/gatehouse/internal/session"
	pkghttp "github.com/dklatt/gatehouse/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithSession injects a session store into the request context, as the
// session loader middleware would
func WithSession(req *http.Request, s session.Store) *http.Request {
	return req.WithContext(session.NewContext(req.Context(), s))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockLoginService implements LoginServiceInterface for testing
type MockLoginService struct {
	AttemptFunc     func(ctx context.Context, sess session.Store, username, password, requestUserAgent, clientIP string, now time.Time) (*models.User, error)
	LogoutFunc      func(ctx context.Context, sess session.Store, clientIP string) error
	CurrentUserFunc func(ctx context.Context, sess session.Store) (*models.User, error)
	RegisterFunc    func(ctx context.Context, username, email, password string) (*models.User, error)
}

func (m *MockLoginService) Attempt(ctx context.Context, sess session.Store, username, password, requestUserAgent, clientIP string, now time.Time) (*models.User, error) {
	if m.AttemptFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.AttemptFunc(ctx, sess, username, password, requestUserAgent, clientIP, now)
}

func (m *MockLoginService) Logout(ctx context.Context, sess session.Store, clientIP string) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx, sess, clientIP)
}

func (m *MockLoginService) CurrentUser(ctx context.Context, sess session.Store) (*models.User, error) {
	if m.CurrentUserFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.CurrentUserFunc(ctx, sess)
}

func (m *MockLoginService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	if m.RegisterFunc == nil {
		return nil, models.ErrConflict
	}
	return m.RegisterFunc(ctx, username, email, password)
}

// StubStore is a minimal in-memory session.Store for handler tests
type StubStore struct {
	SessionID string
	Values    map[string]string
	Destroyed bool
	Saves     int
}

func NewStubStore() *StubStore {
	return &StubStore{SessionID: "test-session", Values: make(map[string]string)}
}

func (s *StubStore) ID() string { return s.SessionID }

func (s *StubStore) Get(key string) (string, bool) {
	v, ok := s.Values[key]
	return v, ok
}

func (s *StubStore) Set(key, value string) { s.Values[key] = value }

func (s *StubStore) Unset(key string) { delete(s.Values, key) }

func (s *StubStore) RegenerateID(ctx context.Context) error {
	s.SessionID = "regenerated-session"
	return nil
}

func (s *StubStore) Destroy(ctx context.Context) error {
	s.Destroyed = true
	s.Values = make(map[string]string)
	return nil
}

func (s *StubStore) Save(ctx context.Context) error {
	s.Saves++
	return nil
}
