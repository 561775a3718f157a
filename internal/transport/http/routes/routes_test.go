package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/avolkov/identity-auth/internal/core/domain"
	"github.com/avolkov/identity-auth/internal/infra/config"
	"github.com/avolkov/identity-auth/internal/infra/security"
	"github.com/avolkov/identity-auth/internal/repository"
	httproutes "github.com/avolkov/identity-auth/internal/transport/http/routes"
	"github.com/avolkov/identity-auth/internal/usecase"
)

type memIdentityRepo struct {
	identities map[string]domain.Identity
	profiles   map[string]domain.Profile
}

func newMemIdentityRepo() *memIdentityRepo {
	return &memIdentityRepo{
		identities: map[string]domain.Identity{},
		profiles:   map[string]domain.Profile{},
	}
}

func (r *memIdentityRepo) CreateWithProfile(_ context.Context, identity domain.Identity, profile domain.Profile) error {
	for _, existing := range r.identities {
		if existing.Email == identity.Email {
			return repository.ErrDuplicateEmail
		}
	}
	r.identities[identity.ID] = identity
	r.profiles[profile.IdentityID] = profile
	return nil
}

func (r *memIdentityRepo) GetByID(_ context.Context, id string) (*domain.Identity, error) {
	if identity, ok := r.identities[id]; ok {
		copy := identity
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memIdentityRepo) GetByEmail(_ context.Context, email string) (*domain.Identity, error) {
	for _, identity := range r.identities {
		if identity.Email == email {
			copy := identity
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memIdentityRepo) GetProfile(_ context.Context, identityID string) (*domain.Profile, error) {
	if profile, ok := r.profiles[identityID]; ok {
		copy := profile
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memIdentityRepo) SetVerified(_ context.Context, id string, verified bool) error {
	identity, ok := r.identities[id]
	if !ok {
		return repository.ErrNotFound
	}
	identity.Verified = verified
	r.identities[id] = identity
	return nil
}

type memCodeStore struct {
	records map[string]domain.TwoFactorCode
}

func (s *memCodeStore) Replace(_ context.Context, identityID, code string, ttl time.Duration) (*domain.TwoFactorCode, error) {
	now := time.Now().UTC()
	record := domain.TwoFactorCode{
		IdentityID: identityID,
		Code:       code,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
	s.records[identityID] = record
	return &record, nil
}

func (s *memCodeStore) Get(_ context.Context, identityID string) (*domain.TwoFactorCode, error) {
	if record, ok := s.records[identityID]; ok {
		copy := record
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

type memNotifier struct {
	codes map[string]string
	links map[string]string
}

func (n *memNotifier) SendTwoFactorCode(_ context.Context, email, code string) error {
	n.codes[email] = code
	return nil
}

func (n *memNotifier) SendVerificationLink(_ context.Context, email, link string) error {
	n.links[email] = link
	return nil
}

type testServer struct {
	engine   *gin.Engine
	notifier *memNotifier
}

func newTestServer(t *testing.T, requireVerified, twoFactorDefault bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.AppConfig{}
	cfg.App.Env = "test"
	cfg.Verification.RequireVerified = requireVerified
	cfg.Verification.BaseURL = "http://localhost:8080"
	cfg.TwoFactor.DefaultEnabled = twoFactorDefault

	codec, err := security.NewTokenCodec([]byte("routes-test-secret"))
	if err != nil {
		t.Fatalf("failed to create token codec: %v", err)
	}
	issuer, err := security.NewTokenIssuer(codec, security.DefaultTokenTTLs())
	if err != nil {
		t.Fatalf("failed to create token issuer: %v", err)
	}
	hasher, err := security.NewPasswordHasher(security.Argon2Config{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  8,
		KeyLength:   16,
	})
	if err != nil {
		t.Fatalf("failed to create password hasher: %v", err)
	}

	repo := newMemIdentityRepo()
	notifier := &memNotifier{codes: map[string]string{}, links: map[string]string{}}
	twoFactor := usecase.NewTwoFactorService(&memCodeStore{records: map[string]domain.TwoFactorCode{}}, 5*time.Minute)

	auth := usecase.NewAuthService(repo, hasher, issuer, twoFactor, notifier, nil, zap.NewNop(), requireVerified)
	registration := usecase.NewRegistrationService(cfg, repo, hasher, issuer, notifier, nil, zap.NewNop())

	engine := httproutes.Register(httproutes.Dependencies{
		Config: cfg,
		Logger: zap.NewNop(),
		Services: httproutes.ServiceSet{
			Auth:         auth,
			Registration: registration,
		},
		Issuer: issuer,
	})

	return &testServer{engine: engine, notifier: notifier}
}

func (s *testServer) postJSON(t *testing.T, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.engine.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) post(t *testing.T, path, bearer string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	s.engine.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) get(t *testing.T, path, bearer string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	s.engine.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t, false, false)

	rr := server.get(t, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t, false, false)

	rr := server.get(t, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestRegisterLoginAndProfileFlow(t *testing.T) {
	server := newTestServer(t, false, false)

	rr := server.postJSON(t, "/api/v1/auth/register", map[string]string{
		"email":    "a@x.com",
		"password": "Passw0rd",
		"name":     "Ann",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register: expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = server.postJSON(t, "/api/v1/auth/login", map[string]string{
		"email":    "a@x.com",
		"password": "Passw0rd",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login: expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var login struct {
		RequiresTwoFactor bool   `json:"requires_2fa"`
		AccessToken       string `json:"access_token"`
		RefreshToken      string `json:"refresh_token"`
	}
	decodeJSON(t, rr, &login)
	if login.RequiresTwoFactor {
		t.Fatalf("expected single-factor login")
	}
	if login.AccessToken == "" || login.RefreshToken == "" {
		t.Fatalf("expected both tokens, got %+v", login)
	}

	rr = server.get(t, "/api/v1/me", login.AccessToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("me: expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var profile struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	decodeJSON(t, rr, &profile)
	if profile.Email != "a@x.com" || profile.Name != "Ann" {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	// A refresh token never unlocks protected routes.
	rr = server.get(t, "/api/v1/me", login.RefreshToken)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for refresh token, got %d", rr.Code)
	}

	rr = server.post(t, "/api/v1/auth/refresh", login.RefreshToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh: expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var refreshed struct {
		AccessToken string `json:"access_token"`
	}
	decodeJSON(t, rr, &refreshed)
	if rr := server.get(t, "/api/v1/me", refreshed.AccessToken); rr.Code != http.StatusOK {
		t.Fatalf("me with refreshed token: expected status 200, got %d", rr.Code)
	}
}

func TestRefreshTokenBearerContract(t *testing.T) {
	server := newTestServer(t, false, false)

	rr := server.postJSON(t, "/api/v1/auth/register", map[string]string{
		"email":    "a@x.com",
		"password": "Passw0rd",
		"name":     "Ann",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register: expected status 201, got %d", rr.Code)
	}

	rr = server.postJSON(t, "/api/v1/auth/login", map[string]string{
		"email":    "a@x.com",
		"password": "Passw0rd",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login: expected status 200, got %d", rr.Code)
	}

	var login struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	decodeJSON(t, rr, &login)

	// The refresh token rides in the Authorization header; no body required.
	rr = server.post(t, "/api/v1/auth/refresh", login.RefreshToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh: expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = server.post(t, "/api/v1/auth/refresh", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("missing header: expected status 401, got %d", rr.Code)
	}
	if got := rr.Header().Get("WWW-Authenticate"); got != "Bearer" {
		t.Fatalf("expected WWW-Authenticate Bearer, got %q", got)
	}

	// An access token presented as a refresh token is rejected.
	rr = server.post(t, "/api/v1/auth/refresh", login.AccessToken)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("access token as refresh: expected status 401, got %d", rr.Code)
	}
}

func TestTwoFactorLoginFlow(t *testing.T) {
	server := newTestServer(t, false, true)

	rr := server.postJSON(t, "/api/v1/auth/register", map[string]string{
		"email":    "b@x.com",
		"password": "Passw0rd",
		"name":     "Bea",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register: expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = server.postJSON(t, "/api/v1/auth/login", map[string]string{
		"email":    "b@x.com",
		"password": "Passw0rd",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login: expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var login struct {
		RequiresTwoFactor bool   `json:"requires_2fa"`
		PartialToken      string `json:"partial_token"`
		AccessToken       string `json:"access_token"`
	}
	decodeJSON(t, rr, &login)
	if !login.RequiresTwoFactor || login.PartialToken == "" {
		t.Fatalf("expected pending second factor, got %+v", login)
	}
	if login.AccessToken != "" {
		t.Fatalf("expected no access token before confirmation")
	}

	// The partial token must not pass as an access token.
	if rr := server.get(t, "/api/v1/me", login.PartialToken); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for partial token, got %d", rr.Code)
	}

	code, ok := server.notifier.codes["b@x.com"]
	if !ok {
		t.Fatalf("expected delivered second-factor code")
	}

	rr = server.postJSON(t, "/api/v1/auth/login/2fa", map[string]string{
		"partial_token": login.PartialToken,
		"code":          "WRONG1",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong code: expected status 401, got %d", rr.Code)
	}

	rr = server.postJSON(t, "/api/v1/auth/login/2fa", map[string]string{
		"partial_token": login.PartialToken,
		"code":          code,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("2fa confirm: expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var confirmed struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	decodeJSON(t, rr, &confirmed)
	if confirmed.AccessToken == "" || confirmed.RefreshToken == "" {
		t.Fatalf("expected terminal tokens, got %+v", confirmed)
	}

	rr = server.get(t, "/api/v1/me", confirmed.AccessToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("me: expected status 200, got %d", rr.Code)
	}

	var profile struct {
		Email            string `json:"email"`
		RequireTwoFactor bool   `json:"require_2fa"`
	}
	decodeJSON(t, rr, &profile)
	if profile.Email != "b@x.com" || !profile.RequireTwoFactor {
		t.Fatalf("expected profile with require_2fa set, got %+v", profile)
	}
}

func TestLoginFailureStatuses(t *testing.T) {
	server := newTestServer(t, true, false)

	rr := server.postJSON(t, "/api/v1/auth/register", map[string]string{
		"email":    "c@x.com",
		"password": "Passw0rd",
		"name":     "Cam",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register: expected status 201, got %d", rr.Code)
	}

	// Unknown email is a lookup miss, not an auth failure.
	rr = server.postJSON(t, "/api/v1/auth/login", map[string]string{
		"email":    "ghost@x.com",
		"password": "Passw0rd",
	})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown email: expected status 404, got %d", rr.Code)
	}

	rr = server.postJSON(t, "/api/v1/auth/login", map[string]string{
		"email":    "c@x.com",
		"password": "wrong-password",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: expected status 401, got %d", rr.Code)
	}
	if got := rr.Header().Get("WWW-Authenticate"); got != "Bearer" {
		t.Fatalf("expected WWW-Authenticate Bearer, got %q", got)
	}

	// Verification is mandatory and the identity is still unverified.
	rr = server.postJSON(t, "/api/v1/auth/login", map[string]string{
		"email":    "c@x.com",
		"password": "Passw0rd",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unverified: expected status 401, got %d", rr.Code)
	}

	rr = server.postJSON(t, "/api/v1/auth/register", map[string]string{
		"email":    "c@x.com",
		"password": "Other1Pass",
		"name":     "Copy",
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate email: expected status 409, got %d", rr.Code)
	}
}

func TestVerifyEmailFlow(t *testing.T) {
	server := newTestServer(t, true, false)

	rr := server.postJSON(t, "/api/v1/auth/register", map[string]string{
		"email":    "d@x.com",
		"password": "Passw0rd",
		"name":     "Dee",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register: expected status 201, got %d", rr.Code)
	}

	link, ok := server.notifier.links["d@x.com"]
	if !ok {
		t.Fatalf("expected verification link delivery")
	}
	idx := strings.Index(link, "/api/v1/auth/verify-email")
	if idx < 0 {
		t.Fatalf("unexpected verification link: %s", link)
	}

	rr = server.get(t, link[idx:], "")
	if rr.Code != http.StatusOK {
		t.Fatalf("verify: expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	// Idempotent on repeat.
	rr = server.get(t, link[idx:], "")
	if rr.Code != http.StatusOK {
		t.Fatalf("repeat verify: expected status 200, got %d", rr.Code)
	}

	var verified struct {
		Message string `json:"message"`
	}
	decodeJSON(t, rr, &verified)
	if verified.Message != "email already verified" {
		t.Fatalf("expected already-verified message, got %q", verified.Message)
	}

	// Login now succeeds.
	rr = server.postJSON(t, "/api/v1/auth/login", map[string]string{
		"email":    "d@x.com",
		"password": "Passw0rd",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login after verify: expected status 200, got %d", rr.Code)
	}

	// Garbage token is a bad request.
	rr = server.get(t, "/api/v1/auth/verify-email?token=garbage", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("garbage token: expected status 400, got %d", rr.Code)
	}
}
