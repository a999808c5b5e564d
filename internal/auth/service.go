package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/dabir-id/dabir-id/internal/accounts"
	"github.com/dabir-id/dabir-id/internal/shared"
)

// AccountSource is the read surface the gateway needs from storage.
type AccountSource interface {
	FindForLogin(ctx context.Context, email string, role accounts.Role) (*accounts.User, error)
	FindByID(ctx context.Context, id string) (*accounts.User, error)
}

// Service composes credential verification, token lifecycle and session
// checks behind the operations external callers use.
type Service struct {
	source   AccountSource
	hasher   Hasher
	codec    *TokenCodec
	throttle *LoginThrottle
	audit    *shared.AuditLogger
	logger   *slog.Logger
	group    singleflight.Group
}

// NewService constructs a Service. Throttle and audit may be nil.
func NewService(source AccountSource, hasher Hasher, codec *TokenCodec, throttle *LoginThrottle, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{
		source:   source,
		hasher:   hasher,
		codec:    codec,
		throttle: throttle,
		audit:    audit,
		logger:   logger,
	}
}

// Codec exposes the token codec for middleware that only needs decoding.
func (s *Service) Codec() *TokenCodec {
	return s.codec
}

// LoginInput carries credentials plus the role the caller claims to hold.
type LoginInput struct {
	Email    string
	Password string
	Role     string
}

// LoginResult is the success payload of a login.
type LoginResult struct {
	Token string
	User  *accounts.User
}

// Login verifies credentials against the (email, role) pair and issues a
// token. A correct email under a different role reads exactly like an
// unknown email, so failed logins never reveal which roles an address holds.
func (s *Service) Login(ctx context.Context, input LoginInput, clientAddr string) (*LoginResult, error) {
	if strings.TrimSpace(input.Email) == "" || input.Password == "" || strings.TrimSpace(input.Role) == "" {
		return nil, fmt.Errorf("%w: email, password and role are required", shared.ErrValidation)
	}

	key := s.throttle.Key(input.Email, clientAddr)
	if !s.throttle.Allow(ctx, key) {
		return nil, shared.ErrThrottled
	}

	role, ok := accounts.ParseRole(input.Role)
	if !ok {
		s.failLogin(ctx, key, input.Email, "unknown role")
		return nil, shared.ErrNoMatchingAccount
	}

	user, err := s.source.FindForLogin(ctx, input.Email, role)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.failLogin(ctx, key, input.Email, "no match")
			return nil, shared.ErrNoMatchingAccount
		}
		return nil, err
	}

	if !s.hasher.Verify(input.Password, user.PasswordHash) {
		s.failLogin(ctx, key, input.Email, "bad password")
		return nil, shared.ErrWrongPassword
	}

	s.throttle.Reset(ctx, key)
	s.recordAudit(ctx, shared.AuditLog{
		ActorID:  user.ID,
		Action:   shared.AuditLoginSuccess,
		Entity:   "user",
		EntityID: user.ID,
	})

	return &LoginResult{Token: s.codec.Issue(user.ID), User: user}, nil
}

// CheckSession re-validates a token and re-fetches the live user, extension
// profile included. A deleted user invalidates every outstanding token for
// that user; that lookup is the only revocation mechanism there is.
// Concurrent checks for the same user share one storage round trip.
func (s *Service) CheckSession(ctx context.Context, token string) (*accounts.User, error) {
	if token == "" {
		return nil, shared.ErrTokenMissing
	}
	claims, err := s.codec.Validate(token)
	if err != nil {
		return nil, err
	}

	value, err, _ := s.group.Do(claims.UserID, func() (any, error) {
		return s.source.FindByID(ctx, claims.UserID)
	})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrUserGone
		}
		return nil, err
	}
	return value.(*accounts.User), nil
}

// ValidateToken decodes a token and enforces freshness without touching
// storage.
func (s *Service) ValidateToken(token string) (Claims, error) {
	if token == "" {
		return Claims{}, shared.ErrTokenMissing
	}
	return s.codec.Validate(token)
}

func (s *Service) failLogin(ctx context.Context, key, email, reason string) {
	s.throttle.RecordFailure(ctx, key)
	s.recordAudit(ctx, shared.AuditLog{
		Action:   shared.AuditLoginFailure,
		Entity:   "user",
		EntityID: email,
		Meta:     map[string]any{"reason": reason},
	})
}

func (s *Service) recordAudit(ctx context.Context, log shared.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, log); err != nil && s.logger != nil {
		s.logger.Warn("record audit", slog.Any("error", err))
	}
}
