package accounts

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dabir-id/dabir-id/internal/shared"
)

// RepositoryPort defines data access methods for accounts.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	FindForLogin(ctx context.Context, email string, role Role) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

// PasswordHasher produces one-way digests for storage.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
}

// AuditRecorder persists security audit events.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service provisions accounts and their role-specific extension records.
type Service struct {
	repo   RepositoryPort
	hasher PasswordHasher
	audit  AuditRecorder
	logger *slog.Logger
}

// NewService builds a Service instance. Audit and logger may be nil.
func NewService(repo RepositoryPort, hasher PasswordHasher, audit AuditRecorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, hasher: hasher, audit: audit, logger: logger}
}

// RegisterInput carries the registration form. Only email, password,
// display name and role are required; the rest feed the extension record.
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
	Role        string
	FirstName   string
	LastName    string
	NationalID  string
	Phone       string
	Address     string
	BirthDate   string
}

// Register creates the User and, when applicable, its extension record in a
// single transaction. A STUDENT registration without both name fields
// creates the user with no profile; the extension can be completed later.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*User, error) {
	role, err := validateRegister(input)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.EmailExists(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.ErrEmailTaken
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &User{
		ID:           uuid.NewString(),
		Email:        input.Email,
		PasswordHash: hash,
		DisplayName:  input.DisplayName,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		switch role {
		case RoleStudent:
			if input.FirstName == "" || input.LastName == "" {
				return nil
			}
			profile := &StudentProfile{
				UserID:     user.ID,
				FirstName:  input.FirstName,
				LastName:   input.LastName,
				NationalID: optional(input.NationalID),
				Phone:      optional(input.Phone),
				Address:    optional(input.Address),
				BirthDate:  optional(input.BirthDate),
			}
			if err := tx.CreateStudentProfile(ctx, profile); err != nil {
				return err
			}
			user.StudentProfile = profile
		case RoleParent:
			profile := &ParentProfile{
				UserID: user.ID,
				Phone:  optional(input.Phone),
			}
			if err := tx.CreateParentProfile(ctx, profile); err != nil {
				return err
			}
			user.ParentProfile = profile
		}
		return nil
	})
	if err != nil {
		user.StudentProfile = nil
		user.ParentProfile = nil
		return nil, err
	}

	s.recordAudit(ctx, shared.AuditLog{
		ActorID:  user.ID,
		Action:   shared.AuditAccountRegister,
		Entity:   "user",
		EntityID: user.ID,
		Meta:     map[string]any{"role": string(role)},
	})
	return user, nil
}

// ProfilePatch carries a partial update. Empty fields are left untouched.
type ProfilePatch struct {
	DisplayName string
	FirstName   string
	LastName    string
	NationalID  string
	Phone       string
	Address     string
	BirthDate   string
}

// UpdateProfile applies the provided fields to the user and, when an
// extension record exists, to it as well, under one transaction.
func (s *Service) UpdateProfile(ctx context.Context, userID string, patch ProfilePatch) (*User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrUserGone
		}
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateUser(ctx, user.ID, optional(patch.DisplayName)); err != nil {
			return err
		}
		if user.StudentProfile != nil {
			err := tx.UpdateStudentProfile(ctx, user.ID, StudentPatch{
				FirstName:  optional(patch.FirstName),
				LastName:   optional(patch.LastName),
				NationalID: optional(patch.NationalID),
				Phone:      optional(patch.Phone),
				Address:    optional(patch.Address),
				BirthDate:  optional(patch.BirthDate),
			})
			if err != nil {
				return err
			}
		}
		if user.ParentProfile != nil {
			if err := tx.UpdateParentProfile(ctx, user.ID, optional(patch.Phone)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, shared.AuditLog{
		ActorID:  userID,
		Action:   shared.AuditAccountUpdate,
		Entity:   "user",
		EntityID: userID,
	})
	return s.repo.FindByID(ctx, userID)
}

func (s *Service) recordAudit(ctx context.Context, log shared.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, log); err != nil && s.logger != nil {
		s.logger.Warn("record audit", slog.Any("error", err))
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
