package httpx

import (
	"errors"
	"net/http"

	"github.com/dabir-id/dabir-id/internal/shared"
)

// RespondError maps domain errors to a stable status and user-facing
// message. Nothing below this boundary leaks storage or hashing internals.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		Message(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, shared.ErrEmailTaken):
		Message(w, http.StatusConflict, err.Error())
	case errors.Is(err, shared.ErrNoMatchingAccount),
		errors.Is(err, shared.ErrWrongPassword),
		errors.Is(err, shared.ErrTokenMissing),
		errors.Is(err, shared.ErrTokenInvalid),
		errors.Is(err, shared.ErrTokenExpired),
		errors.Is(err, shared.ErrUserGone):
		Message(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, shared.ErrThrottled):
		Message(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Message(w, http.StatusNotFound, err.Error())
	default:
		Message(w, http.StatusInternalServerError, "internal server error")
	}
}
