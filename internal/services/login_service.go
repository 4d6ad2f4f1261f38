package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dklatt/gatehouse/internal/models"
	"github.com/dklatt/gatehouse/internal/session"
	pkgauth "github.com/dklatt/gatehouse/pkg/auth"
	pkglogger "github.com/dklatt/gatehouse/pkg/logger"
)

// UserRepository defines the interface for user lookups and writes
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
}

// FailedLoginThrottle answers whether an account is locked out and records
// new failures
type FailedLoginThrottle interface {
	MinutesRemaining(ctx context.Context, username string) (int, error)
	RecordFailure(ctx context.Context, username string) (int, error)
	Threshold() int
	LockoutMinutes() int
}

// LockoutNotifier tells an account owner their account has been locked
type LockoutNotifier interface {
	SendLockoutEmail(ctx context.Context, email, username string, lockoutMinutes int) error
}

// LoginConfig holds credential-handling knobs
type LoginConfig struct {
	BcryptCost int
}

// LoginService orchestrates login attempts: throttle check, credential
// verification, and session establishment.
type LoginService struct {
	users       UserRepository
	throttle    FailedLoginThrottle
	sessions    *session.Manager
	notifier    LockoutNotifier // nil disables lockout emails
	timingDelay *pkgauth.TimingDelay
	config      LoginConfig
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewLoginService creates a new LoginService
func NewLoginService(
	users UserRepository,
	throttle FailedLoginThrottle,
	sessions *session.Manager,
	notifier LockoutNotifier,
	timingDelay *pkgauth.TimingDelay,
	config LoginConfig,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *LoginService {
	return &LoginService{
		users:       users,
		throttle:    throttle,
		sessions:    sessions,
		notifier:    notifier,
		timingDelay: timingDelay,
		config:      config,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Attempt processes one login attempt. The throttle is consulted before
// credentials are touched; a locked account returns ThrottledError without
// revealing whether the password was correct. Unknown usernames and wrong
// passwords share a single failure path (ErrInvalidCredentials) and both
// count toward the lockout, so the responses cannot be used to enumerate
// accounts.
func (s *LoginService) Attempt(ctx context.Context, sess session.Store, username, password, requestUserAgent, clientIP string, now time.Time) (*models.User, error) {
	started := time.Now()

	if username = strings.ToLower(strings.TrimSpace(username)); username == "" || password == "" {
		s.logger.Warn("login attempt with empty credentials")
		return nil, models.ErrInvalidCredentials
	}

	minutes, err := s.throttle.MinutesRemaining(ctx, username)
	if err != nil {
		s.logger.Error("failed to check login throttle", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if minutes > 0 {
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_throttled",
			Username:      username,
			IPAddress:     clientIP,
			UserAgent:     requestUserAgent,
			FailureReason: "account_locked",
			Success:       false,
		})
		return nil, &models.ThrottledError{MinutesRemaining: minutes}
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to get user by username", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// Unknown user and wrong password are indistinguishable from here on.
	if user == nil || pkgauth.ComparePassword(user.PasswordHash, password) != nil {
		if err := s.recordFailure(ctx, username, user); err != nil {
			s.logger.Error("failed to record failed login", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}

		s.logger.Info("login failed: invalid credentials")
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			Username:      username,
			IPAddress:     clientIP,
			UserAgent:     requestUserAgent,
			FailureReason: "invalid_credentials",
			Success:       false,
		})

		s.timingDelay.WaitFrom(started, false)
		return nil, models.ErrInvalidCredentials
	}

	if err := s.sessions.Login(ctx, sess, user.ID, requestUserAgent, now); err != nil {
		s.logger.Error("failed to establish login session",
			slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		Username:  username,
		IPAddress: clientIP,
		UserAgent: requestUserAgent,
		Success:   true,
	})

	s.timingDelay.WaitFrom(started, true)
	return user, nil
}

// Logout tears down the login session.
func (s *LoginService) Logout(ctx context.Context, sess session.Store, clientIP string) error {
	userID, _ := session.UserID(sess)

	if err := s.sessions.Logout(ctx, sess); err != nil {
		s.logger.Error("failed to log out", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "logout",
		UserID:    userID,
		IPAddress: clientIP,
		Success:   true,
	})
	return nil
}

// CurrentUser resolves the logged-in user for a validated session.
func (s *LoginService) CurrentUser(ctx context.Context, sess session.Store) (*models.User, error) {
	userID, ok := session.UserID(sess)
	if !ok {
		return nil, models.ErrUnauthorized
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user by id", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return user, nil
}

// Register creates a new user account with a hashed password.
func (s *LoginService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	email = strings.ToLower(strings.TrimSpace(email))

	if username == "" {
		return nil, fmt.Errorf("username is required: %w", models.ErrBadRequest)
	}
	if email == "" {
		return nil, fmt.Errorf("email is required: %w", models.ErrBadRequest)
	}
	if !pkgauth.HasValidPasswordFormat(password) {
		return nil, fmt.Errorf("password does not meet format requirements: %w", models.ErrBadRequest)
	}

	_, err := s.users.GetByUsername(ctx, username)
	if err == nil {
		s.logger.Info("registration failed: user already exists")
		return nil, models.ErrConflict
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check if user exists", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	hashedPassword, err := pkgauth.HashPassword(password, s.config.BcryptCost)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
	}

	createdUser, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user registered", slog.String("user_id", createdUser.ID))
	s.auditLogger.LogAccountAction("user_registered", createdUser.ID, nil)

	return createdUser, nil
}

// recordFailure persists the failed attempt and, when the account just
// crossed the lockout threshold, notifies its owner. Email failures are
// logged, never surfaced: the attacker-facing response must not change.
func (s *LoginService) recordFailure(ctx context.Context, username string, user *models.User) error {
	count, err := s.throttle.RecordFailure(ctx, username)
	if err != nil {
		return err
	}

	if count == s.throttle.Threshold() && s.notifier != nil && user != nil {
		if err := s.notifier.SendLockoutEmail(ctx, user.Email, username, s.throttle.LockoutMinutes()); err != nil {
			s.logger.Error("failed to send lockout notification",
				slog.String("user_id", user.ID), slog.Any("error", err))
		}
	}

	return nil
}
