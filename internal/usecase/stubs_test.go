package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/avolkov/identity-auth/internal/core/domain"
	"github.com/avolkov/identity-auth/internal/infra/security"
	"github.com/avolkov/identity-auth/internal/repository"
)

func newTestHasher(t *testing.T) *security.PasswordHasher {
	t.Helper()

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

	return hasher
}

func newTestIssuer(t *testing.T) *security.TokenIssuer {
	t.Helper()

	codec, err := security.NewTokenCodec([]byte("unit-test-secret"))
	if err != nil {
		t.Fatalf("failed to create token codec: %v", err)
	}

	issuer, err := security.NewTokenIssuer(codec, security.DefaultTokenTTLs())
	if err != nil {
		t.Fatalf("failed to create token issuer: %v", err)
	}

	return issuer
}

type testIdentityRepo struct {
	identities map[string]domain.Identity
	profiles   map[string]domain.Profile
}

func newTestIdentityRepo() *testIdentityRepo {
	return &testIdentityRepo{
		identities: map[string]domain.Identity{},
		profiles:   map[string]domain.Profile{},
	}
}

func (r *testIdentityRepo) CreateWithProfile(_ context.Context, identity domain.Identity, profile domain.Profile) error {
	for _, existing := range r.identities {
		if existing.Email == identity.Email {
			return repository.ErrDuplicateEmail
		}
	}
	r.identities[identity.ID] = identity
	r.profiles[profile.IdentityID] = profile
	return nil
}

func (r *testIdentityRepo) GetByID(_ context.Context, id string) (*domain.Identity, error) {
	if identity, ok := r.identities[id]; ok {
		copy := identity
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (r *testIdentityRepo) GetByEmail(_ context.Context, email string) (*domain.Identity, error) {
	for _, identity := range r.identities {
		if identity.Email == email {
			copy := identity
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *testIdentityRepo) GetProfile(_ context.Context, identityID string) (*domain.Profile, error) {
	if profile, ok := r.profiles[identityID]; ok {
		copy := profile
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (r *testIdentityRepo) SetVerified(_ context.Context, id string, verified bool) error {
	identity, ok := r.identities[id]
	if !ok {
		return repository.ErrNotFound
	}
	identity.Verified = verified
	r.identities[id] = identity
	return nil
}

type testCodeStore struct {
	records map[string]domain.TwoFactorCode
	now     func() time.Time
}

func newTestCodeStore() *testCodeStore {
	return &testCodeStore{
		records: map[string]domain.TwoFactorCode{},
		now:     time.Now,
	}
}

func (s *testCodeStore) Replace(_ context.Context, identityID, code string, ttl time.Duration) (*domain.TwoFactorCode, error) {
	now := s.now().UTC()
	record := domain.TwoFactorCode{
		IdentityID: identityID,
		Code:       code,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
	s.records[identityID] = record
	return &record, nil
}

func (s *testCodeStore) Get(_ context.Context, identityID string) (*domain.TwoFactorCode, error) {
	if record, ok := s.records[identityID]; ok {
		copy := record
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

type testNotifier struct {
	codes map[string]string
	links map[string]string
	fail  error
}

func newTestNotifier() *testNotifier {
	return &testNotifier{
		codes: map[string]string{},
		links: map[string]string{},
	}
}

func (n *testNotifier) SendTwoFactorCode(_ context.Context, email, code string) error {
	if n.fail != nil {
		return n.fail
	}
	n.codes[email] = code
	return nil
}

func (n *testNotifier) SendVerificationLink(_ context.Context, email, link string) error {
	if n.fail != nil {
		return n.fail
	}
	n.links[email] = link
	return nil
}

type testPublisher struct {
	registered []domain.IdentityRegisteredEvent
	verified   []domain.EmailVerifiedEvent
	logins     []domain.LoginSucceededEvent
	pending    []domain.TwoFactorPendingEvent
	refreshed  []domain.TokenRefreshedEvent
}

func (p *testPublisher) PublishIdentityRegistered(_ context.Context, event domain.IdentityRegisteredEvent) error {
	p.registered = append(p.registered, event)
	return nil
}

func (p *testPublisher) PublishEmailVerified(_ context.Context, event domain.EmailVerifiedEvent) error {
	p.verified = append(p.verified, event)
	return nil
}

func (p *testPublisher) PublishLoginSucceeded(_ context.Context, event domain.LoginSucceededEvent) error {
	p.logins = append(p.logins, event)
	return nil
}

func (p *testPublisher) PublishTwoFactorPending(_ context.Context, event domain.TwoFactorPendingEvent) error {
	p.pending = append(p.pending, event)
	return nil
}

func (p *testPublisher) PublishTokenRefreshed(_ context.Context, event domain.TokenRefreshedEvent) error {
	p.refreshed = append(p.refreshed, event)
	return nil
}
