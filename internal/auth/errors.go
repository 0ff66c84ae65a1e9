package auth

import (
	"errors"
	"fmt"
	"time"
)

// Errors returned by the authentication service. Credential failures share
// ErrAuthFailed so responses carry no enumeration hints.
var (
	// ErrInvalidEmail indicates a malformed email address.
	ErrInvalidEmail = errors.New("auth: invalid email")
	// ErrWeakPassword indicates a password below the strength policy.
	ErrWeakPassword = errors.New("auth: password too weak")
	// ErrEmailInUse indicates the email is already registered. The same
	// message covers any internal conflict on the email index.
	ErrEmailInUse = errors.New("auth: email already in use")
	// ErrAuthFailed covers unknown emails, wrong passwords, and bad
	// second-factor codes alike.
	ErrAuthFailed = errors.New("auth: authentication failed")
	// ErrInvalidCredentials indicates the current password check failed
	// on a password change.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrSamePassword indicates the new password equals the current one.
	ErrSamePassword = errors.New("auth: new password matches current password")
	// ErrPasswordReused indicates the new password matches one of the
	// retained historical hashes.
	ErrPasswordReused = errors.New("auth: password was used recently")
	// ErrIncompleteProfile indicates a federated token missing required
	// claims.
	ErrIncompleteProfile = errors.New("auth: federated profile incomplete")
	// ErrGoogleIDConflict indicates the federated subject is already
	// bound to a different account.
	ErrGoogleIDConflict = errors.New("auth: google identity bound to another account")
	// ErrInvalidToken indicates an expired or unknown opaque token.
	ErrInvalidToken = errors.New("auth: invalid or expired token")
	// ErrUserNotFound indicates no user matches the lookup.
	ErrUserNotFound = errors.New("auth: user not found")
	// ErrTOTPRequired indicates the account has a second factor enabled
	// and no code was supplied.
	ErrTOTPRequired = errors.New("auth: totp code required")
)

// LockedError indicates a login attempt against a locked account. Until
// tells the client precisely how long to wait.
type LockedError struct {
	Until time.Time
}

// Error implements the error interface.
func (e *LockedError) Error() string {
	return fmt.Sprintf("auth: account locked until %s", e.Until.Format(time.RFC3339))
}
