package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/avolkov/identity-auth/internal/core/domain"
	"github.com/avolkov/identity-auth/internal/core/port"
	"github.com/avolkov/identity-auth/internal/repository"
)

const (
	defaultTwoFactorPrefix = "twofactor"

	fieldCode      = "code"
	fieldCreatedAt = "created_at"
	fieldExpiresAt = "expires_at"
)

// TwoFactorCodeStore persists the single live second-factor code per identity
// in Redis. One key per identity means writing a fresh code atomically retires
// the previous one.
type TwoFactorCodeStore struct {
	client *red.Client
	prefix string
	now    func() time.Time
}

// NewTwoFactorCodeStore constructs a code store with the provided Redis client and key prefix.
func NewTwoFactorCodeStore(client *red.Client, keyPrefix string) *TwoFactorCodeStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultTwoFactorPrefix
	}

	return &TwoFactorCodeStore{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// Replace stores a fresh code for the identity with the supplied TTL,
// overwriting any prior code in the same write.
func (s *TwoFactorCodeStore) Replace(ctx context.Context, identityID, code string, ttl time.Duration) (*domain.TwoFactorCode, error) {
	identityID = strings.TrimSpace(identityID)
	code = strings.TrimSpace(code)

	switch {
	case identityID == "":
		return nil, errors.New("identity id is required")
	case code == "":
		return nil, errors.New("code is required")
	case ttl <= 0:
		return nil, errors.New("ttl must be positive")
	}

	now := s.now().UTC()
	expiresAt := now.Add(ttl)

	key := s.key(identityID)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		fieldCode:      code,
		fieldCreatedAt: strconv.FormatInt(now.Unix(), 10),
		fieldExpiresAt: strconv.FormatInt(expiresAt.Unix(), 10),
	})
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis store two-factor code: %w", err)
	}

	return &domain.TwoFactorCode{
		IdentityID: identityID,
		Code:       code,
		CreatedAt:  now,
		ExpiresAt:  expiresAt,
	}, nil
}

// Get retrieves the live code record for the identity.
func (s *TwoFactorCodeStore) Get(ctx context.Context, identityID string) (*domain.TwoFactorCode, error) {
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return nil, errors.New("identity id is required")
	}

	values, err := s.client.HGetAll(ctx, s.key(identityID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall two-factor code: %w", err)
	}
	if len(values) == 0 {
		return nil, repository.ErrNotFound
	}

	code := strings.TrimSpace(values[fieldCode])
	if code == "" {
		return nil, repository.ErrNotFound
	}

	createdAt, err := parseUnix(values[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	expiresAt, err := parseUnix(values[fieldExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}

	return &domain.TwoFactorCode{
		IdentityID: identityID,
		Code:       code,
		CreatedAt:  createdAt,
		ExpiresAt:  expiresAt,
	}, nil
}

// Delete removes the code record if present. The login flow never consumes
// codes, so this exists for operational invalidation only.
func (s *TwoFactorCodeStore) Delete(ctx context.Context, identityID string) error {
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return errors.New("identity id is required")
	}

	if err := s.client.Del(ctx, s.key(identityID)).Err(); err != nil {
		return fmt.Errorf("redis delete two-factor code: %w", err)
	}

	return nil
}

// WithClock overrides the internal clock, used in tests.
func (s *TwoFactorCodeStore) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

func (s *TwoFactorCodeStore) key(identityID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, identityID)
}

func parseUnix(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(v, 0).UTC(), nil
}

var _ port.TwoFactorCodeStore = (*TwoFactorCodeStore)(nil)
