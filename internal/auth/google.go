package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	dbutil "github.com/linkhubapp/linkhub/internal/db"
	"github.com/linkhubapp/linkhub/internal/models"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/idtoken"
	"gorm.io/gorm"
)

// GoogleProfile is the verified claim set extracted from an ID token.
type GoogleProfile struct {
	Subject    string
	Email      string
	Verified   bool
	Name       string
	PictureURL string
}

// IDTokenVerifier verifies a federated ID token against an audience and
// returns the claims. Injectable so tests do not call Google.
type IDTokenVerifier func(ctx context.Context, rawToken, audience string) (*GoogleProfile, error)

// GoogleIDTokenVerifier returns the production verifier backed by Google's
// public keys.
func GoogleIDTokenVerifier() IDTokenVerifier {
	return func(ctx context.Context, rawToken, audience string) (*GoogleProfile, error) {
		payload, err := idtoken.Validate(ctx, rawToken, audience)
		if err != nil {
			return nil, fmt.Errorf("auth: verify google token: %w", err)
		}
		profile := &GoogleProfile{Subject: payload.Subject}
		if email, ok := payload.Claims["email"].(string); ok {
			profile.Email = email
		}
		if verified, ok := payload.Claims["email_verified"].(bool); ok {
			profile.Verified = verified
		}
		if name, ok := payload.Claims["name"].(string); ok {
			profile.Name = name
		}
		if picture, ok := payload.Claims["picture"].(string); ok {
			profile.PictureURL = picture
		}
		return profile, nil
	}
}

// AuthenticateGoogle verifies a Google ID token and logs the user in,
// provisioning or linking the account as needed.
func (s *Service) AuthenticateGoogle(ctx context.Context, rawToken string) (*Result, error) {
	profile, errVerify := s.verifyIDToken(ctx, rawToken, s.googleClientID)
	if errVerify != nil {
		return nil, ErrAuthFailed
	}
	if strings.TrimSpace(profile.Subject) == "" || strings.TrimSpace(profile.Email) == "" || !profile.Verified {
		return nil, ErrIncompleteProfile
	}

	email := NormalizeEmail(profile.Email)
	sub := profile.Subject

	// A subject already bound to some account always wins the lookup.
	var bound models.User
	errBound := s.db.WithContext(ctx).Where("google_id = ?", sub).First(&bound).Error
	switch {
	case errBound == nil:
		if bound.Email != email {
			return nil, ErrGoogleIDConflict
		}
		return s.finishGoogleLogin(ctx, &bound, false)
	case !errors.Is(errBound, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("auth: google lookup: %w", errBound)
	}

	var user models.User
	errFind := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		// First federated login: provision a verified, passwordless account.
		user = models.User{
			Email:      email,
			FullName:   strings.TrimSpace(profile.Name),
			GoogleID:   &sub,
			PictureURL: profile.PictureURL,
			Verified:   true,
		}
		if errCreate := s.db.WithContext(ctx).Create(&user).Error; errCreate != nil {
			if dbutil.IsUniqueViolation(errCreate) {
				return nil, ErrGoogleIDConflict
			}
			return nil, fmt.Errorf("auth: google provision: %w", errCreate)
		}
		return s.finishGoogleLogin(ctx, &user, true)
	}
	if errFind != nil {
		return nil, fmt.Errorf("auth: google lookup: %w", errFind)
	}

	if user.GoogleID != nil && *user.GoogleID != sub {
		return nil, ErrGoogleIDConflict
	}

	if user.GoogleID == nil {
		// Implicit account merge: link the identity to the existing
		// password account. Audit-logged.
		updates := map[string]any{
			"google_id": sub,
			"verified":  true,
		}
		if user.PictureURL == "" && profile.PictureURL != "" {
			updates["picture_url"] = profile.PictureURL
		}
		if errLink := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; errLink != nil {
			if dbutil.IsUniqueViolation(errLink) {
				return nil, ErrGoogleIDConflict
			}
			return nil, fmt.Errorf("auth: google link: %w", errLink)
		}
		log.WithFields(log.Fields{
			"user_id": user.ID,
			"email":   user.Email,
		}).Info("auth: linked google identity to existing account")
		user.GoogleID = &sub
		user.Verified = true
	}

	return s.finishGoogleLogin(ctx, &user, false)
}

// finishGoogleLogin stamps the login time and issues a session token.
func (s *Service) finishGoogleLogin(ctx context.Context, user *models.User, isNew bool) (*Result, error) {
	now := s.now().UTC()
	if errUpdate := s.db.WithContext(ctx).Model(user).Updates(map[string]any{
		"login_attempts": 0,
		"lock_until":     nil,
		"last_login_at":  now,
	}).Error; errUpdate != nil {
		return nil, fmt.Errorf("auth: google login: %w", errUpdate)
	}
	user.LastLoginAt = &now

	token, errToken := s.issueToken(user)
	if errToken != nil {
		return nil, errToken
	}
	return &Result{User: user, Token: token, IsNewUser: isNew}, nil
}
