// Package auth implements registration, login, lockout, federated login,
// and the password and token lifecycle.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/linkhubapp/linkhub/internal/models"
	"github.com/linkhubapp/linkhub/internal/security"
	"github.com/pquerna/otp/totp"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	dbutil "github.com/linkhubapp/linkhub/internal/db"
)

// Token expiries for out-of-band flows.
const (
	// VerifyTokenLifetime bounds email verification tokens.
	VerifyTokenLifetime = 24 * time.Hour
	// ResetTokenLifetime bounds password reset tokens.
	ResetTokenLifetime = time.Hour
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Service carries the dependencies of every auth operation.
type Service struct {
	db            *gorm.DB
	hasher        *security.BcryptHasher
	secret        []byte
	tokenLifetime time.Duration
	mailer        Mailer
	now           func() time.Time

	googleClientID string
	verifyIDToken  IDTokenVerifier
}

// NewService constructs an auth Service.
func NewService(db *gorm.DB, secret []byte, tokenLifetime time.Duration, googleClientID string, mailer Mailer) *Service {
	if tokenLifetime <= 0 {
		tokenLifetime = security.DefaultTokenLifetime
	}
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &Service{
		db:             db,
		hasher:         security.NewBcryptHasher(),
		secret:         secret,
		tokenLifetime:  tokenLifetime,
		mailer:         mailer,
		now:            time.Now,
		googleClientID: googleClientID,
		verifyIDToken:  GoogleIDTokenVerifier(),
	}
}

// Result is a successful authentication outcome.
type Result struct {
	User      *models.User
	Token     string
	IsNewUser bool
}

// NormalizeEmail lowercases and trims an email for case-insensitive compare.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether the address has a plausible mailbox shape.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// issueToken signs a session token for the user's current token version.
func (s *Service) issueToken(user *models.User) (string, error) {
	return security.IssueSessionToken(s.secret, user.ID, user.Email, user.TokenVersion, s.tokenLifetime)
}

// TokenFor signs a fresh session token for an already authenticated user.
// Handlers use it after operations that bump the token version.
func (s *Service) TokenFor(user *models.User) (string, error) {
	return s.issueToken(user)
}

// Register creates a password account and signs the first session token.
func (s *Service) Register(ctx context.Context, fullName, email, password string) (*Result, error) {
	email = NormalizeEmail(email)
	if !ValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if !security.ValidPassword(password) {
		return nil, ErrWeakPassword
	}

	hash, errHash := s.hasher.Hash(password)
	if errHash != nil {
		return nil, errHash
	}

	user := models.User{
		Email:        email,
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: hash,
	}
	if errCreate := s.db.WithContext(ctx).Create(&user).Error; errCreate != nil {
		if dbutil.IsUniqueViolation(errCreate) {
			return nil, ErrEmailInUse
		}
		return nil, fmt.Errorf("auth: register: %w", errCreate)
	}

	if errVerify := s.beginEmailVerification(ctx, &user); errVerify != nil {
		log.WithError(errVerify).WithField("user_id", user.ID).Warn("auth: issue verification token failed")
	}

	token, errToken := s.issueToken(&user)
	if errToken != nil {
		return nil, errToken
	}
	return &Result{User: &user, Token: token, IsNewUser: true}, nil
}

// Authenticate verifies a password login, driving the lockout state
// machine. When the account has a second factor enabled, totpCode must be a
// currently valid code.
func (s *Service) Authenticate(ctx context.Context, email, password, totpCode string) (*Result, error) {
	email = NormalizeEmail(email)

	var user models.User
	errFind := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			// Burn a hash comparison so unknown emails cost the same
			// as wrong passwords.
			s.hasher.VerifyDummy(password)
			return nil, ErrAuthFailed
		}
		return nil, fmt.Errorf("auth: authenticate: %w", errFind)
	}

	now := s.now().UTC()
	if user.Locked(now) {
		return nil, &LockedError{Until: *user.LockUntil}
	}
	if user.LockUntil != nil {
		// Expired lock: clear the counter before this attempt is judged,
		// so a fresh failure counts from zero.
		if errReset := s.db.WithContext(ctx).Model(&user).Updates(map[string]any{
			"login_attempts": 0,
			"lock_until":     nil,
		}).Error; errReset != nil {
			return nil, fmt.Errorf("auth: clear expired lock: %w", errReset)
		}
		user.LoginAttempts = 0
		user.LockUntil = nil
	}

	if user.PasswordHash == "" || !s.hasher.Verify(password, user.PasswordHash) {
		if user.PasswordHash == "" {
			s.hasher.VerifyDummy(password)
		}
		return nil, s.recordFailedAttempt(ctx, &user, now)
	}

	if user.TOTPSecret != "" {
		if strings.TrimSpace(totpCode) == "" {
			return nil, ErrTOTPRequired
		}
		if !totp.Validate(totpCode, user.TOTPSecret) {
			return nil, s.recordFailedAttempt(ctx, &user, now)
		}
	}

	if errUpdate := s.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"login_attempts": 0,
		"lock_until":     nil,
		"last_login_at":  now,
	}).Error; errUpdate != nil {
		return nil, fmt.Errorf("auth: reset attempts: %w", errUpdate)
	}
	user.LoginAttempts = 0
	user.LockUntil = nil
	user.LastLoginAt = &now

	token, errToken := s.issueToken(&user)
	if errToken != nil {
		return nil, errToken
	}
	return &Result{User: &user, Token: token}, nil
}

// recordFailedAttempt bumps the failure counter with a relative update,
// so concurrent failures against the same account all land, and locks the
// account once the threshold is reached. The returned error is what the
// caller should surface.
func (s *Service) recordFailedAttempt(ctx context.Context, user *models.User, now time.Time) error {
	var lockUntil *time.Time
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errBump := tx.Model(&models.User{}).Where("id = ?", user.ID).
			UpdateColumn("login_attempts", gorm.Expr("login_attempts + 1")).Error; errBump != nil {
			return errBump
		}
		var attempts int
		if errRead := tx.Model(&models.User{}).Where("id = ?", user.ID).
			Select("login_attempts").Scan(&attempts).Error; errRead != nil {
			return errRead
		}
		user.LoginAttempts = attempts
		if attempts < models.LoginAttemptThreshold {
			return nil
		}
		until := now.Add(models.LockoutWindow)
		if errLock := tx.Model(&models.User{}).Where("id = ?", user.ID).
			UpdateColumn("lock_until", until).Error; errLock != nil {
			return errLock
		}
		lockUntil = &until
		return nil
	})
	if errTx != nil {
		log.WithError(errTx).WithField("user_id", user.ID).Error("auth: record failed attempt")
	}
	if lockUntil != nil {
		user.LockUntil = lockUntil
		log.WithFields(log.Fields{"user_id": user.ID, "until": lockUntil}).Warn("auth: account locked after repeated failures")
		return &LockedError{Until: *lockUntil}
	}
	return ErrAuthFailed
}

// Refresh exchanges a valid, version-current token for a fresh one.
func (s *Service) Refresh(ctx context.Context, tokenString string) (*Result, error) {
	claims, errParse := security.ParseSessionToken(s.secret, tokenString)
	if errParse != nil {
		return nil, ErrAuthFailed
	}
	userID, errID := claims.UserID()
	if errID != nil {
		return nil, ErrAuthFailed
	}

	var user models.User
	if errFind := s.db.WithContext(ctx).First(&user, userID).Error; errFind != nil {
		return nil, ErrAuthFailed
	}
	if claims.TokenVersion != user.TokenVersion {
		return nil, ErrAuthFailed
	}

	token, errToken := s.issueToken(&user)
	if errToken != nil {
		return nil, errToken
	}
	return &Result{User: &user, Token: token}, nil
}

// GetUser loads a user by ID.
func (s *Service) GetUser(ctx context.Context, id uint64) (*models.User, error) {
	var user models.User
	if errFind := s.db.WithContext(ctx).First(&user, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("auth: get user: %w", errFind)
	}
	return &user, nil
}

// UpdateProfile applies profile field edits.
func (s *Service) UpdateProfile(ctx context.Context, id uint64, fullName, pictureURL *string) (*models.User, error) {
	user, errGet := s.GetUser(ctx, id)
	if errGet != nil {
		return nil, errGet
	}

	updates := map[string]any{}
	if fullName != nil {
		updates["full_name"] = strings.TrimSpace(*fullName)
	}
	if pictureURL != nil {
		updates["picture_url"] = strings.TrimSpace(*pictureURL)
	}
	if len(updates) == 0 {
		return user, nil
	}
	if errUpdate := s.db.WithContext(ctx).Model(user).Updates(updates).Error; errUpdate != nil {
		return nil, fmt.Errorf("auth: update profile: %w", errUpdate)
	}
	return s.GetUser(ctx, id)
}

// ChangePassword verifies the current password, enforces the reuse policy,
// rotates the hash, and bumps the token version so earlier tokens die.
func (s *Service) ChangePassword(ctx context.Context, userID uint64, currentPassword, newPassword string) (*models.User, error) {
	user, errGet := s.GetUser(ctx, userID)
	if errGet != nil {
		return nil, errGet
	}

	if newPassword == currentPassword {
		return nil, ErrSamePassword
	}
	if user.PasswordHash == "" || !s.hasher.Verify(currentPassword, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !security.ValidPassword(newPassword) {
		return nil, ErrWeakPassword
	}

	history := decodeHistory(user.PasswordHistory)
	for _, entry := range history {
		if s.hasher.Verify(newPassword, entry.Hash) {
			return nil, ErrPasswordReused
		}
	}

	return s.rotatePassword(ctx, user, newPassword, history)
}

// rotatePassword stores the new hash, appends the old one to history (cap
// enforced), and increments the token version. Shared by change and reset.
func (s *Service) rotatePassword(ctx context.Context, user *models.User, newPassword string, history []models.PasswordHistoryEntry) (*models.User, error) {
	newHash, errHash := s.hasher.Hash(newPassword)
	if errHash != nil {
		return nil, errHash
	}

	if user.PasswordHash != "" {
		history = append(history, models.PasswordHistoryEntry{
			Hash:      user.PasswordHash,
			ChangedAt: s.now().UTC(),
		})
	}
	if len(history) > models.PasswordHistoryLimit {
		history = history[len(history)-models.PasswordHistoryLimit:]
	}
	encoded, errEncode := json.Marshal(history)
	if errEncode != nil {
		return nil, fmt.Errorf("auth: encode history: %w", errEncode)
	}

	if errUpdate := s.db.WithContext(ctx).Model(user).Updates(map[string]any{
		"password_hash":      newHash,
		"password_history":   encoded,
		"token_version":      gorm.Expr("token_version + 1"),
		"reset_token_hash":   "",
		"reset_token_expiry": nil,
	}).Error; errUpdate != nil {
		return nil, fmt.Errorf("auth: rotate password: %w", errUpdate)
	}
	return s.GetUser(ctx, user.ID)
}

// decodeHistory parses the stored history JSON, tolerating empty columns.
func decodeHistory(raw []byte) []models.PasswordHistoryEntry {
	if len(raw) == 0 {
		return nil
	}
	var history []models.PasswordHistoryEntry
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil
	}
	return history
}

// beginEmailVerification issues a fresh verification token and hands it to
// the mailer.
func (s *Service) beginEmailVerification(ctx context.Context, user *models.User) error {
	raw, digest, errToken := security.NewOpaqueToken()
	if errToken != nil {
		return errToken
	}
	expiry := s.now().UTC().Add(VerifyTokenLifetime)
	if errUpdate := s.db.WithContext(ctx).Model(user).Updates(map[string]any{
		"verify_token_hash":   digest,
		"verify_token_expiry": expiry,
	}).Error; errUpdate != nil {
		return fmt.Errorf("auth: store verify token: %w", errUpdate)
	}
	return s.mailer.SendVerification(ctx, user.Email, raw)
}

// VerifyEmail consumes a verification token and marks the account verified.
func (s *Service) VerifyEmail(ctx context.Context, rawToken string) error {
	digest := security.HashOpaqueToken(rawToken)

	var user models.User
	errFind := s.db.WithContext(ctx).
		Where("verify_token_hash = ? AND verify_token_expiry > ?", digest, s.now().UTC()).
		First(&user).Error
	if errFind != nil {
		return ErrInvalidToken
	}

	if errUpdate := s.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"verified":            true,
		"verify_token_hash":   "",
		"verify_token_expiry": nil,
	}).Error; errUpdate != nil {
		return fmt.Errorf("auth: verify email: %w", errUpdate)
	}
	return nil
}

// ForgotPassword issues a reset token when the account exists. It reports
// success either way so the endpoint carries no enumeration signal.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = NormalizeEmail(email)

	var user models.User
	errFind := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("auth: forgot password: %w", errFind)
	}

	raw, digest, errToken := security.NewOpaqueToken()
	if errToken != nil {
		return errToken
	}
	expiry := s.now().UTC().Add(ResetTokenLifetime)
	if errUpdate := s.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"reset_token_hash":   digest,
		"reset_token_expiry": expiry,
	}).Error; errUpdate != nil {
		return fmt.Errorf("auth: store reset token: %w", errUpdate)
	}
	return s.mailer.SendPasswordReset(ctx, user.Email, raw)
}

// ResetPassword consumes a reset token and sets a new password under the
// same reuse policy as ChangePassword.
func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	digest := security.HashOpaqueToken(rawToken)

	var user models.User
	errFind := s.db.WithContext(ctx).
		Where("reset_token_hash = ? AND reset_token_expiry > ?", digest, s.now().UTC()).
		First(&user).Error
	if errFind != nil {
		return ErrInvalidToken
	}

	if !security.ValidPassword(newPassword) {
		return ErrWeakPassword
	}
	history := decodeHistory(user.PasswordHistory)
	if user.PasswordHash != "" && s.hasher.Verify(newPassword, user.PasswordHash) {
		return ErrPasswordReused
	}
	for _, entry := range history {
		if s.hasher.Verify(newPassword, entry.Hash) {
			return ErrPasswordReused
		}
	}

	_, errRotate := s.rotatePassword(ctx, &user, newPassword, history)
	return errRotate
}
