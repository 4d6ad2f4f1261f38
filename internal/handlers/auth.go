package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dklatt/gatehouse/internal/models"
	"github.com/dklatt/gatehouse/internal/session"
	pkgauth "github.com/dklatt/gatehouse/pkg/auth"
	pkghttp "github.com/dklatt/gatehouse/pkg/http"
)

// LoginServiceInterface defines the interface for login business logic
type LoginServiceInterface interface {
	Attempt(ctx context.Context, sess session.Store, username, password, requestUserAgent, clientIP string, now time.Time) (*models.User, error)
	Logout(ctx context.Context, sess session.Store, clientIP string) error
	CurrentUser(ctx context.Context, sess session.Store) (*models.User, error)
	Register(ctx context.Context, username, email, password string) (*models.User, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service      LoginServiceInterface
	cookieConfig session.CookieConfig
	ipConfig     pkghttp.IPConfig
	sessionTTL   time.Duration
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service LoginServiceInterface, cookieConfig session.CookieConfig, ipConfig pkghttp.IPConfig, sessionTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		service:      service,
		cookieConfig: cookieConfig,
		ipConfig:     ipConfig,
		sessionTTL:   sessionTTL,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserResponse is the public view of a user account
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}
}

// Login authenticates a username/password pair and establishes a session.
// The session cookie carries the regenerated session identifier, and a
// fresh CSRF token is issued alongside it.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	sess := session.FromContext(r)
	if sess == nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	userAgent := pkghttp.ExtractUserAgent(r)
	clientIP := pkghttp.ExtractClientIP(r, &h.ipConfig)

	user, err := h.service.Attempt(r.Context(), sess, req.Username, req.Password, userAgent, clientIP, time.Now())
	if err != nil {
		var throttled *models.ThrottledError
		switch {
		case errors.As(err, &throttled):
			pkghttp.WriteThrottled(w, throttled.MinutesRemaining*60,
				throttled.Error())
		case errors.Is(err, models.ErrInvalidCredentials):
			// Same response for unknown usernames and wrong passwords
			pkghttp.WriteUnauthorized(w, "Authentication failed")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	csrfToken, err := pkgauth.RandomString(32)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}
	session.SetCSRFToken(sess, csrfToken)
	if err := sess.Save(r.Context()); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	maxAge := int(h.sessionTTL.Seconds())
	session.SetSessionCookie(w, sess.ID(), maxAge, h.cookieConfig)
	session.SetCSRFCookie(w, csrfToken, maxAge, h.cookieConfig)

	pkghttp.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// Logout tears down the current session and clears its cookies. Safe to
// call without an active login.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r)
	if sess == nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	if err := h.service.Logout(r.Context(), sess, pkghttp.ExtractClientIP(r, &h.ipConfig)); err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	session.ClearSessionCookie(w, h.cookieConfig)
	session.ClearCSRFCookie(w, h.cookieConfig)

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Logged out",
	})
}

// Me returns the account behind the current session
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r)
	if sess == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	user, err := h.service.CurrentUser(r.Context(), sess)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			pkghttp.WriteUnauthorized(w, "Authentication required")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toUserResponse(user))
}

// Register creates a new user account
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.service.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "Username already taken")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Password must be at least 12 characters and contain upper case, lower case, a digit, and a symbol")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}
