package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/avolkov/identity-auth/internal/core/domain"
	"github.com/avolkov/identity-auth/internal/infra/config"
)

type registrationFixture struct {
	cfg       *config.AppConfig
	repo      *testIdentityRepo
	notifier  *testNotifier
	publisher *testPublisher
	service   *RegistrationService
}

func newRegistrationFixture(t *testing.T, requireVerified, twoFactorDefault bool) *registrationFixture {
	t.Helper()

	cfg := &config.AppConfig{}
	cfg.Verification.RequireVerified = requireVerified
	cfg.Verification.BaseURL = "http://localhost:8080"
	cfg.TwoFactor.DefaultEnabled = twoFactorDefault

	repo := newTestIdentityRepo()
	notifier := newTestNotifier()
	publisher := &testPublisher{}

	service := NewRegistrationService(
		cfg,
		repo,
		newTestHasher(t),
		newTestIssuer(t),
		notifier,
		publisher,
		nil,
	)

	return &registrationFixture{
		cfg:       cfg,
		repo:      repo,
		notifier:  notifier,
		publisher: publisher,
		service:   service,
	}
}

func TestRegistrationService_Register(t *testing.T) {
	f := newRegistrationFixture(t, false, false)

	identity, err := f.service.Register(context.Background(), "a@x.com", "Passw0rd", "Ann")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if identity.Verified {
		t.Fatalf("expected new identity to start unverified")
	}
	if identity.RequireTwoFactor {
		t.Fatalf("expected second factor disabled by default")
	}
	if identity.PasswordHash == "" || identity.PasswordHash == "Passw0rd" {
		t.Fatalf("expected hashed password, got %q", identity.PasswordHash)
	}

	stored, ok := f.repo.identities[identity.ID]
	if !ok {
		t.Fatalf("expected identity to be persisted")
	}
	if stored.Email != "a@x.com" {
		t.Fatalf("expected stored email a@x.com, got %s", stored.Email)
	}
	profile, ok := f.repo.profiles[identity.ID]
	if !ok {
		t.Fatalf("expected profile to be persisted alongside identity")
	}
	if profile.Name != "Ann" {
		t.Fatalf("expected profile name Ann, got %s", profile.Name)
	}

	if len(f.publisher.registered) != 1 {
		t.Fatalf("expected one registered event, got %d", len(f.publisher.registered))
	}
}

func TestRegistrationService_RegisterTwoFactorDefault(t *testing.T) {
	f := newRegistrationFixture(t, false, true)

	identity, err := f.service.Register(context.Background(), "a@x.com", "Passw0rd", "Ann")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if !identity.RequireTwoFactor {
		t.Fatalf("expected second factor enabled per configuration")
	}
}

func TestRegistrationService_RegisterDuplicateEmail(t *testing.T) {
	f := newRegistrationFixture(t, false, false)
	ctx := context.Background()

	if _, err := f.service.Register(ctx, "a@x.com", "Passw0rd", "Ann"); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if _, err := f.service.Register(ctx, "a@x.com", "Other1Pass", "Bob"); !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Fatalf("expected ErrEmailAlreadyRegistered, got %v", err)
	}
}

func TestRegistrationService_RegisterSendsVerificationLink(t *testing.T) {
	f := newRegistrationFixture(t, true, false)

	if _, err := f.service.Register(context.Background(), "a@x.com", "Passw0rd", "Ann"); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	link, ok := f.notifier.links["a@x.com"]
	if !ok {
		t.Fatalf("expected verification link delivery")
	}
	if !strings.HasPrefix(link, "http://localhost:8080/api/v1/auth/verify-email?token=") {
		t.Fatalf("unexpected verification link: %s", link)
	}

	token := strings.TrimPrefix(link, "http://localhost:8080/api/v1/auth/verify-email?token=")
	claims, err := newTestIssuer(t).Validate(token, domain.TokenKindEmailVerify)
	if err != nil {
		t.Fatalf("embedded token failed validation: %v", err)
	}
	if claims.Email != "a@x.com" {
		t.Fatalf("embedded token carries wrong email: %s", claims.Email)
	}
}

func TestRegistrationService_RegisterDeliveryFailureSwallowed(t *testing.T) {
	f := newRegistrationFixture(t, true, false)
	f.notifier.fail = errors.New("smtp down")

	identity, err := f.service.Register(context.Background(), "a@x.com", "Passw0rd", "Ann")
	if err != nil {
		t.Fatalf("Register must succeed despite delivery failure, got %v", err)
	}
	if _, ok := f.repo.identities[identity.ID]; !ok {
		t.Fatalf("expected identity persisted despite delivery failure")
	}
}

func TestRegistrationService_VerifyEmail(t *testing.T) {
	f := newRegistrationFixture(t, true, false)
	ctx := context.Background()

	identity, err := f.service.Register(ctx, "a@x.com", "Passw0rd", "Ann")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	token, err := newTestIssuer(t).Issue(domain.TokenKindEmailVerify, identity.ID, identity.Email)
	if err != nil {
		t.Fatalf("failed to issue verification token: %v", err)
	}

	result, err := f.service.VerifyEmail(ctx, token)
	if err != nil {
		t.Fatalf("VerifyEmail returned error: %v", err)
	}
	if result.AlreadyVerified {
		t.Fatalf("expected first verification to report fresh success")
	}
	if !f.repo.identities[identity.ID].Verified {
		t.Fatalf("expected identity to be verified")
	}
	if len(f.publisher.verified) != 1 {
		t.Fatalf("expected one verified event, got %d", len(f.publisher.verified))
	}

	// Verifying again succeeds idempotently.
	again, err := f.service.VerifyEmail(ctx, token)
	if err != nil {
		t.Fatalf("repeat VerifyEmail returned error: %v", err)
	}
	if !again.AlreadyVerified {
		t.Fatalf("expected repeat verification to report already verified")
	}
	if len(f.publisher.verified) != 1 {
		t.Fatalf("expected no additional verified event, got %d", len(f.publisher.verified))
	}
}

func TestRegistrationService_VerifyEmailInvalidToken(t *testing.T) {
	f := newRegistrationFixture(t, true, false)
	ctx := context.Background()

	if _, err := f.service.VerifyEmail(ctx, "not-a-token"); !errors.Is(err, ErrVerifyTokenInvalid) {
		t.Fatalf("expected ErrVerifyTokenInvalid, got %v", err)
	}

	// A token of any other kind is rejected the same way.
	access, err := newTestIssuer(t).Issue(domain.TokenKindAccess, "id", "a@x.com")
	if err != nil {
		t.Fatalf("failed to issue access token: %v", err)
	}
	if _, err := f.service.VerifyEmail(ctx, access); !errors.Is(err, ErrVerifyTokenInvalid) {
		t.Fatalf("expected ErrVerifyTokenInvalid for wrong kind, got %v", err)
	}
}

func TestRegistrationService_VerifyEmailUnknownIdentity(t *testing.T) {
	f := newRegistrationFixture(t, true, false)

	token, err := newTestIssuer(t).Issue(domain.TokenKindEmailVerify, "id", "ghost@x.com")
	if err != nil {
		t.Fatalf("failed to issue verification token: %v", err)
	}

	if _, err := f.service.VerifyEmail(context.Background(), token); !errors.Is(err, ErrIdentityNotFound) {
		t.Fatalf("expected ErrIdentityNotFound, got %v", err)
	}
}
