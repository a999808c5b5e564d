package accounts

import (
	"fmt"
	"strings"

	"github.com/dabir-id/dabir-id/internal/shared"
)

func validateRegister(input RegisterInput) (Role, error) {
	if strings.TrimSpace(input.Email) == "" {
		return "", fmt.Errorf("%w: email is required", shared.ErrValidation)
	}
	if input.Password == "" {
		return "", fmt.Errorf("%w: password is required", shared.ErrValidation)
	}
	if strings.TrimSpace(input.DisplayName) == "" {
		return "", fmt.Errorf("%w: display name is required", shared.ErrValidation)
	}
	role, ok := ParseRole(input.Role)
	if !ok {
		return "", fmt.Errorf("%w: unknown role", shared.ErrValidation)
	}
	return role, nil
}
