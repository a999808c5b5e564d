package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/dabir-id/dabir-id/internal/accounts"
	"github.com/dabir-id/dabir-id/internal/observability"
	"github.com/dabir-id/dabir-id/internal/platform/httpx"
	"github.com/dabir-id/dabir-id/internal/shared"
)

// Cookie names shared with the presentation layer. The role cookie is a
// client-held claim, not a verified value; the route guard reads it as-is.
const (
	TokenCookie = "token"
	RoleCookie  = "userRole"
)

// TokenFromRequest pulls the bearer token from the cookie or the
// Authorization header, cookie first.
func TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(TokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// WelcomeEnqueuer schedules the post-registration welcome email.
type WelcomeEnqueuer interface {
	EnqueueWelcome(ctx context.Context, email, displayName string) error
}

// Handler wires the HTTP surface for the account and session operations.
type Handler struct {
	logger        *slog.Logger
	service       *Service
	accounts      *accounts.Service
	metrics       *observability.Metrics
	welcome       WelcomeEnqueuer
	validator     *validator.Validate
	secureCookies bool
}

// NewHandler constructs a Handler instance. Metrics and welcome may be nil.
func NewHandler(logger *slog.Logger, service *Service, accountsService *accounts.Service, metrics *observability.Metrics, welcome WelcomeEnqueuer, secureCookies bool) *Handler {
	return &Handler{
		logger:        logger,
		service:       service,
		accounts:      accountsService,
		metrics:       metrics,
		welcome:       welcome,
		validator:     validator.New(),
		secureCookies: secureCookies,
	}
}

// MountRoutes registers the /api/auth routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/", h.handleRegister)
	r.Get("/", h.handleCheck)
	r.Put("/", h.handleUpdate)
	r.Delete("/", h.handleLogout)
	r.Post("/logout", h.handleLogout)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required"`
}

type loginResponse struct {
	Message string         `json:"message"`
	Token   string         `json:"token"`
	User    *accounts.User `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "email, password and role are required")
		return
	}

	result, err := h.service.Login(r.Context(), LoginInput(req), r.RemoteAddr)
	if err != nil {
		h.metrics.ObserveLogin("failure")
		httpx.RespondError(w, err)
		return
	}
	h.metrics.ObserveLogin("success")
	httpx.JSON(w, http.StatusOK, loginResponse{
		Message: "login successful",
		Token:   result.Token,
		User:    result.User,
	})
}

type registerRequest struct {
	Email       string `json:"email" validate:"required"`
	Password    string `json:"password" validate:"required"`
	DisplayName string `json:"displayName" validate:"required"`
	Role        string `json:"role" validate:"required"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	NationalID  string `json:"nationalId"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	BirthDate   string `json:"birthDate"`
}

type userResponse struct {
	Message string         `json:"message"`
	User    *accounts.User `json:"user"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "all required fields must be filled")
		return
	}

	user, err := h.accounts.Register(r.Context(), accounts.RegisterInput(req))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.metrics.ObserveRegistration(string(user.Role))
	if h.welcome != nil {
		if err := h.welcome.EnqueueWelcome(r.Context(), user.Email, user.DisplayName); err != nil && h.logger != nil {
			h.logger.Warn("enqueue welcome email", slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusOK, userResponse{Message: "user created", User: user})
}

type sessionResponse struct {
	Authenticated bool           `json:"authenticated"`
	User          *accounts.User `json:"user,omitempty"`
	Message       string         `json:"message"`
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.CheckSession(r.Context(), TokenFromRequest(r))
	if err != nil {
		h.metrics.ObserveSessionCheck("rejected")
		status := http.StatusUnauthorized
		message := err.Error()
		if !isSessionError(err) {
			status = http.StatusInternalServerError
			message = "internal server error"
		}
		httpx.JSON(w, status, sessionResponse{Authenticated: false, Message: message})
		return
	}
	h.metrics.ObserveSessionCheck("ok")
	httpx.JSON(w, http.StatusOK, sessionResponse{Authenticated: true, User: user, Message: "session valid"})
}

func isSessionError(err error) bool {
	for _, target := range []error{shared.ErrTokenMissing, shared.ErrTokenInvalid, shared.ErrTokenExpired, shared.ErrUserGone} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

type updateRequest struct {
	DisplayName string `json:"displayName"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	NationalID  string `json:"nationalId"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	BirthDate   string `json:"birthDate"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	claims, err := h.service.ValidateToken(TokenFromRequest(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.accounts.UpdateProfile(r.Context(), claims.UserID, accounts.ProfilePatch(req))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, userResponse{Message: "profile updated", User: user})
}

// handleLogout clears the client-held token and role cookies. There is no
// server-side session state to revoke, so this always succeeds.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	for _, name := range []string{TokenCookie, RoleCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			Secure:   h.secureCookies,
			SameSite: http.SameSiteStrictMode,
		})
	}
	httpx.Message(w, http.StatusOK, "logged out")
}
