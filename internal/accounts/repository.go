package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dabir-id/dabir-id/internal/platform/db"
	"github.com/dabir-id/dabir-id/internal/shared"
)

// queryer is satisfied by both pgxpool.Pool and pgx.Tx so the same scan
// helpers serve plain reads and transactional writes.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxRepository exposes the write operations that must share one transaction.
type TxRepository interface {
	CreateUser(ctx context.Context, user *User) error
	CreateStudentProfile(ctx context.Context, profile *StudentProfile) error
	CreateParentProfile(ctx context.Context, profile *ParentProfile) error
	UpdateUser(ctx context.Context, userID string, displayName *string) error
	UpdateStudentProfile(ctx context.Context, userID string, patch StudentPatch) error
	UpdateParentProfile(ctx context.Context, userID string, phone *string) error
}

// StudentPatch carries the optional extension fields of a profile update.
// Nil fields are left untouched.
type StudentPatch struct {
	FirstName  *string
	LastName   *string
	NationalID *string
	Phone      *string
	Address    *string
	BirthDate  *string
}

// Repository provides PostgreSQL backed persistence for accounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside a single transaction; either every write in fn
// commits or none do.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{q: tx})
	})
}

// FindForLogin matches on both email and role simultaneously. A correct
// email under a different role reads as not found.
func (r *Repository) FindForLogin(ctx context.Context, email string, role Role) (*User, error) {
	return findUser(ctx, r.pool,
		`SELECT id, email, password_hash, display_name, role, created_at, updated_at FROM users WHERE email = $1 AND role = $2`,
		email, string(role))
}

// FindByID fetches a user and its extension profile by primary key.
func (r *Repository) FindByID(ctx context.Context, id string) (*User, error) {
	return findUser(ctx, r.pool,
		`SELECT id, email, password_hash, display_name, role, created_at, updated_at FROM users WHERE id = $1`,
		id)
}

// EmailExists reports whether any user already holds the email.
func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	return exists, err
}

func findUser(ctx context.Context, q queryer, query string, args ...any) (*User, error) {
	var user User
	err := q.QueryRow(ctx, query, args...).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.DisplayName, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if err := attachProfiles(ctx, q, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func attachProfiles(ctx context.Context, q queryer, user *User) error {
	switch user.Role {
	case RoleStudent:
		var p StudentProfile
		err := q.QueryRow(ctx,
			`SELECT user_id, first_name, last_name, national_id, phone, address, birth_date FROM student_profiles WHERE user_id = $1`,
			user.ID).Scan(&p.UserID, &p.FirstName, &p.LastName, &p.NationalID, &p.Phone, &p.Address, &p.BirthDate)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}
		user.StudentProfile = &p
	case RoleParent:
		var p ParentProfile
		err := q.QueryRow(ctx,
			`SELECT user_id, phone, student_id FROM parent_profiles WHERE user_id = $1`,
			user.ID).Scan(&p.UserID, &p.Phone, &p.StudentID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}
		user.ParentProfile = &p
	}
	return nil
}

type txRepo struct {
	q queryer
}

func (t *txRepo) CreateUser(ctx context.Context, user *User) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, display_name, role, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Email, user.PasswordHash, user.DisplayName, string(user.Role), user.CreatedAt, user.UpdatedAt)
	return mapUniqueViolation(err)
}

func (t *txRepo) CreateStudentProfile(ctx context.Context, profile *StudentProfile) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO student_profiles (user_id, first_name, last_name, national_id, phone, address, birth_date) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		profile.UserID, profile.FirstName, profile.LastName, profile.NationalID, profile.Phone, profile.Address, profile.BirthDate)
	return err
}

func (t *txRepo) CreateParentProfile(ctx context.Context, profile *ParentProfile) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO parent_profiles (user_id, phone, student_id) VALUES ($1, $2, $3)`,
		profile.UserID, profile.Phone, profile.StudentID)
	return err
}

func (t *txRepo) UpdateUser(ctx context.Context, userID string, displayName *string) error {
	_, err := t.q.Exec(ctx,
		`UPDATE users SET display_name = COALESCE($2, display_name), updated_at = NOW() WHERE id = $1`,
		userID, displayName)
	return err
}

func (t *txRepo) UpdateStudentProfile(ctx context.Context, userID string, patch StudentPatch) error {
	_, err := t.q.Exec(ctx,
		`UPDATE student_profiles SET
			first_name = COALESCE($2, first_name),
			last_name = COALESCE($3, last_name),
			national_id = COALESCE($4, national_id),
			phone = COALESCE($5, phone),
			address = COALESCE($6, address),
			birth_date = COALESCE($7, birth_date)
		WHERE user_id = $1`,
		userID, patch.FirstName, patch.LastName, patch.NationalID, patch.Phone, patch.Address, patch.BirthDate)
	return err
}

func (t *txRepo) UpdateParentProfile(ctx context.Context, userID string, phone *string) error {
	_, err := t.q.Exec(ctx,
		`UPDATE parent_profiles SET phone = COALESCE($2, phone) WHERE user_id = $1`,
		userID, phone)
	return err
}

// mapUniqueViolation converts a 23505 on the users email index into the
// domain conflict error so concurrent registrations stay race-safe.
func mapUniqueViolation(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrEmailTaken
	}
	return err
}

var _ TxRepository = (*txRepo)(nil)
