package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/dabir-id/dabir-id/internal/accounts"
	"github.com/dabir-id/dabir-id/internal/auth"
	"github.com/dabir-id/dabir-id/internal/shared"
	_ "github.com/dabir-id/dabir-id/testing"
)

// memRepo is an in-memory stand-in for the Postgres repository. It backs
// both the provisioning service and the credential lookup.
type memRepo struct {
	mu    sync.Mutex
	users map[string]*accounts.User
}

func newMemRepo() *memRepo {
	return &memRepo{users: map[string]*accounts.User{}}
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, accounts.TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, (*memTx)(m))
}

func (m *memRepo) FindForLogin(ctx context.Context, email string, role accounts.Role) (*accounts.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email && user.Role == role {
			return user, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memRepo) FindByID(ctx context.Context, id string) (*accounts.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return user, nil
}

func (m *memRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

type memTx memRepo

func (t *memTx) CreateUser(ctx context.Context, user *accounts.User) error {
	copied := *user
	t.users[user.ID] = &copied
	return nil
}

func (t *memTx) CreateStudentProfile(ctx context.Context, profile *accounts.StudentProfile) error {
	copied := *profile
	t.users[profile.UserID].StudentProfile = &copied
	return nil
}

func (t *memTx) CreateParentProfile(ctx context.Context, profile *accounts.ParentProfile) error {
	copied := *profile
	t.users[profile.UserID].ParentProfile = &copied
	return nil
}

func (t *memTx) UpdateUser(ctx context.Context, userID string, displayName *string) error {
	if displayName != nil {
		t.users[userID].DisplayName = *displayName
	}
	return nil
}

func (t *memTx) UpdateStudentProfile(ctx context.Context, userID string, patch accounts.StudentPatch) error {
	profile := t.users[userID].StudentProfile
	if patch.FirstName != nil {
		profile.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		profile.LastName = *patch.LastName
	}
	if patch.NationalID != nil {
		profile.NationalID = patch.NationalID
	}
	if patch.Phone != nil {
		profile.Phone = patch.Phone
	}
	if patch.Address != nil {
		profile.Address = patch.Address
	}
	if patch.BirthDate != nil {
		profile.BirthDate = patch.BirthDate
	}
	return nil
}

func (t *memTx) UpdateParentProfile(ctx context.Context, userID string, phone *string) error {
	if phone != nil {
		t.users[userID].ParentProfile.Phone = phone
	}
	return nil
}

func newTestRouter(t *testing.T) (http.Handler, *memRepo) {
	t.Helper()
	repo := newMemRepo()
	hasher := auth.NewHasher(bcrypt.MinCost)
	codec := auth.NewTokenCodec(time.Hour)
	accountsService := accounts.NewService(repo, hasher, nil, nil)
	authService := auth.NewService(repo, hasher, codec, nil, nil, nil)
	handler := auth.NewHandler(nil, authService, accountsService, nil, nil, false)

	r := chi.NewRouter()
	r.Route("/api/auth", handler.MountRoutes)
	return r, repo
}

func doJSON(t *testing.T, router http.Handler, method, path, body string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if mutate != nil {
		mutate(req)
	}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

const studentBody = `{
	"email": "sara@example.com",
	"password": "pass1234",
	"displayName": "Sara",
	"role": "STUDENT",
	"firstName": "Sara",
	"lastName": "Moradi",
	"phone": "0912000000"
}`

func TestRegisterAndDuplicate(t *testing.T) {
	router, _ := newTestRouter(t)

	res := doJSON(t, router, http.MethodPost, "/api/auth/", studentBody, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if strings.Contains(res.Body.String(), "passwordHash") || strings.Contains(res.Body.String(), "pass1234") {
		t.Fatal("response must not leak password material")
	}
	var payload struct {
		Message string `json:"message"`
		User    struct {
			Role           string                   `json:"role"`
			StudentProfile *accounts.StudentProfile `json:"studentProfile"`
		} `json:"user"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Message != "user created" {
		t.Fatalf("unexpected message %q", payload.Message)
	}
	if payload.User.StudentProfile == nil || payload.User.StudentProfile.FirstName != "Sara" {
		t.Fatalf("expected student profile, got %+v", payload.User.StudentProfile)
	}

	res = doJSON(t, router, http.MethodPost, "/api/auth/", studentBody, nil)
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d", res.Code)
	}
}

func TestRegisterStudentWithoutNamesSkipsProfile(t *testing.T) {
	router, repo := newTestRouter(t)

	body := `{"email":"ali@example.com","password":"pw","displayName":"Ali","role":"STUDENT"}`
	res := doJSON(t, router, http.MethodPost, "/api/auth/", body, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	for _, user := range repo.users {
		if user.StudentProfile != nil {
			t.Fatal("student without both names must have no profile")
		}
	}
}

func TestRegisterMissingRequiredFields(t *testing.T) {
	router, _ := newTestRouter(t)
	res := doJSON(t, router, http.MethodPost, "/api/auth/", `{"email":"x@y.z"}`, nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func login(t *testing.T, router http.Handler, email, password, role string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "password": password, "role": role})
	return doJSON(t, router, http.MethodPost, "/api/auth/login", string(body), nil)
}

func TestLoginEndToEnd(t *testing.T) {
	router, _ := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/api/auth/", studentBody, nil)

	res := login(t, router, "sara@example.com", "pass1234", "STUDENT")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Token == "" {
		t.Fatal("expected a token in the login response")
	}

	res = login(t, router, "sara@example.com", "wrong", "STUDENT")
	if res.Code != http.StatusUnauthorized || !strings.Contains(res.Body.String(), "wrong password") {
		t.Fatalf("expected 401 wrong password, got %d: %s", res.Code, res.Body.String())
	}

	res = login(t, router, "sara@example.com", "pass1234", "TEACHER")
	if res.Code != http.StatusUnauthorized || !strings.Contains(res.Body.String(), "no matching account found") {
		t.Fatalf("wrong role must read like unknown account, got %d: %s", res.Code, res.Body.String())
	}
}

func TestSessionCheckCookieAndBearer(t *testing.T) {
	router, _ := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/api/auth/", studentBody, nil)

	res := login(t, router, "sara@example.com", "pass1234", "STUDENT")
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}

	res = doJSON(t, router, http.MethodGet, "/api/auth/", "", func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: auth.TokenCookie, Value: payload.Token})
	})
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), `"authenticated":true`) {
		t.Fatalf("cookie check failed: %d %s", res.Code, res.Body.String())
	}

	res = doJSON(t, router, http.MethodGet, "/api/auth/", "", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+payload.Token)
	})
	if res.Code != http.StatusOK {
		t.Fatalf("bearer check failed: %d %s", res.Code, res.Body.String())
	}

	res = doJSON(t, router, http.MethodGet, "/api/auth/", "", nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("missing token must be 401, got %d", res.Code)
	}

	res = doJSON(t, router, http.MethodGet, "/api/auth/", "", func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: auth.TokenCookie, Value: "not-a-token"})
	})
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("malformed token must be 401, got %d", res.Code)
	}
}

func TestPartialUpdateLeavesOtherFields(t *testing.T) {
	router, repo := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/api/auth/", studentBody, nil)

	res := login(t, router, "sara@example.com", "pass1234", "STUDENT")
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}

	res = doJSON(t, router, http.MethodPut, "/api/auth/", `{"phone":"0935111111"}`, func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: auth.TokenCookie, Value: payload.Token})
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	for _, user := range repo.users {
		profile := user.StudentProfile
		if profile == nil {
			t.Fatal("profile missing after update")
		}
		if profile.Phone == nil || *profile.Phone != "0935111111" {
			t.Fatalf("phone not updated: %+v", profile.Phone)
		}
		if profile.FirstName != "Sara" || profile.LastName != "Moradi" {
			t.Fatalf("untouched fields changed: %+v", profile)
		}
	}
}

func TestUpdateWithoutToken(t *testing.T) {
	router, _ := newTestRouter(t)
	res := doJSON(t, router, http.MethodPut, "/api/auth/", `{"phone":"1"}`, nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestLogoutClearsCookies(t *testing.T) {
	router, _ := newTestRouter(t)

	res := doJSON(t, router, http.MethodPost, "/api/auth/logout", "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	cleared := map[string]bool{}
	for _, cookie := range res.Result().Cookies() {
		if cookie.MaxAge < 0 && cookie.Value == "" {
			cleared[cookie.Name] = true
		}
	}
	if !cleared[auth.TokenCookie] || !cleared[auth.RoleCookie] {
		t.Fatalf("expected both cookies cleared, got %v", cleared)
	}
}
