package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	pkglogger "github.com/dklatt/gatehouse/pkg/logger"
)

// AWSSESNotifier sends account security emails using AWS SES
type AWSSESNotifier struct {
	sesClient   *ses.Client
	fromAddress string
	logger      *slog.Logger
}

// NewAWSSESNotifier creates a new AWS SES notifier
func NewAWSSESNotifier(region, fromAddress string, logger *slog.Logger) (*AWSSESNotifier, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESNotifier{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

// SendLockoutEmail tells an account owner their account was temporarily
// locked after repeated failed login attempts.
func (s *AWSSESNotifier) SendLockoutEmail(ctx context.Context, email, username string, lockoutMinutes int) error {
	textBody := fmt.Sprintf(`Your account was temporarily locked

There have been several failed attempts to sign in to the account %q.
To protect the account, sign-in is blocked for the next %d minutes.

If this was you, wait a few minutes and try again. If you have forgotten
your password, use the password reset once the lock expires.

If this was NOT you, someone may be trying to guess your password. No one
has gained access to your account, but we recommend changing your password
once the lock expires.

This is an automated message. Please do not reply to this email.
`, username, lockoutMinutes)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Your account was temporarily locked"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send lockout email via SES",
			slog.String("username", username),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("lockout notification sent",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.String("message_id", *result.MessageId))

	return nil
}
