package shared

import "errors"

var (
	// ErrNotFound indicates the referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates missing or malformed required input.
	ErrValidation = errors.New("validation failed")
	// ErrEmailTaken indicates a registration conflict on the email column.
	ErrEmailTaken = errors.New("account with this email already exists")
	// ErrNoMatchingAccount indicates no user matched the email+role pair.
	ErrNoMatchingAccount = errors.New("no matching account found")
	// ErrWrongPassword indicates the password check failed for a known account.
	ErrWrongPassword = errors.New("wrong password")
	// ErrTokenMissing indicates no token arrived via cookie or bearer header.
	ErrTokenMissing = errors.New("token missing")
	// ErrTokenInvalid indicates the token could not be decoded.
	ErrTokenInvalid = errors.New("token malformed")
	// ErrTokenExpired indicates the token aged past its lifetime.
	ErrTokenExpired = errors.New("token expired")
	// ErrUserGone indicates a decodable token whose user no longer exists.
	ErrUserGone = errors.New("user not found")
	// ErrThrottled indicates too many failed login attempts in the window.
	ErrThrottled = errors.New("too many failed attempts")
)
