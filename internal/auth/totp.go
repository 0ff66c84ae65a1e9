package auth

import (
	"context"
	"fmt"

	"github.com/linkhubapp/linkhub/internal/settings"
	"github.com/pquerna/otp/totp"
)

// PrepareTOTP generates a pending TOTP secret for the user and returns the
// secret and its otpauth provisioning URL. The secret only takes effect
// once ConfirmTOTP sees a valid code for it.
func (s *Service) PrepareTOTP(ctx context.Context, userID uint64) (secret, url string, err error) {
	user, errGet := s.GetUser(ctx, userID)
	if errGet != nil {
		return "", "", errGet
	}

	key, errGen := totp.Generate(totp.GenerateOpts{
		Issuer:      settings.DefaultSiteName,
		AccountName: user.Email,
	})
	if errGen != nil {
		return "", "", fmt.Errorf("auth: generate totp secret: %w", errGen)
	}
	return key.Secret(), key.URL(), nil
}

// ConfirmTOTP enables the second factor after the user proves possession
// of the secret with a valid code.
func (s *Service) ConfirmTOTP(ctx context.Context, userID uint64, secret, code string) error {
	user, errGet := s.GetUser(ctx, userID)
	if errGet != nil {
		return errGet
	}
	if !totp.Validate(code, secret) {
		return ErrAuthFailed
	}
	if errUpdate := s.db.WithContext(ctx).Model(user).Update("totp_secret", secret).Error; errUpdate != nil {
		return fmt.Errorf("auth: enable totp: %w", errUpdate)
	}
	return nil
}

// DisableTOTP removes the second factor after a current-code check.
func (s *Service) DisableTOTP(ctx context.Context, userID uint64, code string) error {
	user, errGet := s.GetUser(ctx, userID)
	if errGet != nil {
		return errGet
	}
	if user.TOTPSecret == "" {
		return nil
	}
	if !totp.Validate(code, user.TOTPSecret) {
		return ErrAuthFailed
	}
	if errUpdate := s.db.WithContext(ctx).Model(user).Update("totp_secret", "").Error; errUpdate != nil {
		return fmt.Errorf("auth: disable totp: %w", errUpdate)
	}
	return nil
}
