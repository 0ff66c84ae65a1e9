package auth

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Mailer delivers out-of-band tokens. Delivery transport is outside this
// service; the raw token exists only in memory between issuance and send.
type Mailer interface {
	SendVerification(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}

// LogMailer is the development Mailer; it logs instead of sending.
type LogMailer struct{}

// SendVerification logs the verification token at debug level.
func (LogMailer) SendVerification(_ context.Context, email, token string) error {
	log.WithFields(log.Fields{"email": email, "token": token}).Debug("mailer: verification token issued")
	return nil
}

// SendPasswordReset logs the reset token at debug level.
func (LogMailer) SendPasswordReset(_ context.Context, email, token string) error {
	log.WithFields(log.Fields{"email": email, "token": token}).Debug("mailer: password reset token issued")
	return nil
}
