package accounts

import (
	"strings"
	"time"
)

// Role is the access level assigned to a user at creation. It never changes
// afterwards and is authoritative for all access decisions.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleTeacher Role = "TEACHER"
	RoleStudent Role = "STUDENT"
	RoleParent  Role = "PARENT"
)

// ParseRole normalizes a role string and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleTeacher, RoleStudent, RoleParent:
		return r, true
	default:
		return "", false
	}
}

// User is the identity root. The password hash never serializes.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"displayName"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	StudentProfile *StudentProfile `json:"studentProfile,omitempty"`
	ParentProfile  *ParentProfile  `json:"parentProfile,omitempty"`
}

// StudentProfile is the extension record for a STUDENT user, lifetime-bound
// to exactly one User.
type StudentProfile struct {
	UserID     string  `json:"userId"`
	FirstName  string  `json:"firstName"`
	LastName   string  `json:"lastName"`
	NationalID *string `json:"nationalId,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Address    *string `json:"address,omitempty"`
	BirthDate  *string `json:"birthDate,omitempty"`
}

// ParentProfile is the extension record for a PARENT user. StudentID stays
// unset at creation; a later linking step resolves it.
type ParentProfile struct {
	UserID    string  `json:"userId"`
	Phone     *string `json:"phone,omitempty"`
	StudentID *string `json:"studentId,omitempty"`
}
