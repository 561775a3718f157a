package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avolkov/identity-auth/internal/core/domain"
	"github.com/avolkov/identity-auth/internal/core/port"
	"github.com/avolkov/identity-auth/internal/repository"
)

const uniqueViolationCode = "23505"

// IdentityRepository implements port.IdentityRepository using PostgreSQL.
type IdentityRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewIdentityRepository wires a PostgreSQL-backed identity repository.
func NewIdentityRepository(pool *pgxpool.Pool) *IdentityRepository {
	return &IdentityRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *IdentityRepository) WithTx(tx pgx.Tx) *IdentityRepository {
	if tx == nil {
		return r
	}
	return &IdentityRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// CreateWithProfile inserts the identity and its profile in one transaction.
// Either both rows exist afterwards or neither does.
func (r *IdentityRepository) CreateWithProfile(ctx context.Context, identity domain.Identity, profile domain.Profile) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		txRepo := r.WithTx(tx)
		if err := txRepo.create(ctx, identity); err != nil {
			return err
		}
		return txRepo.createProfile(ctx, profile)
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return repository.ErrDuplicateEmail
		}
		return err
	}

	return nil
}

func (r *IdentityRepository) create(ctx context.Context, identity domain.Identity) error {
	stmt, args, err := r.builder.Insert("auth.identities").
		Columns(
			"id",
			"email",
			"password_hash",
			"verified",
			"require_two_factor",
			"created_at",
		).
		Values(
			identity.ID,
			identity.Email,
			identity.PasswordHash,
			identity.Verified,
			identity.RequireTwoFactor,
			identity.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert identity sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert identity: %w", err)
	}

	return nil
}

func (r *IdentityRepository) createProfile(ctx context.Context, profile domain.Profile) error {
	stmt, args, err := r.builder.Insert("auth.profiles").
		Columns("identity_id", "name", "created_at").
		Values(profile.IdentityID, profile.Name, profile.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert profile sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}

	return nil
}

// GetByID retrieves an identity by identifier.
func (r *IdentityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	stmt, args, err := r.selectIdentity().
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select identity sql: %w", err)
	}

	return r.scanIdentity(r.exec.QueryRow(ctx, stmt, args...))
}

// GetByEmail retrieves an identity by its email address.
func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	stmt, args, err := r.selectIdentity().
		Where(squirrel.Eq{"email": email}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select identity by email sql: %w", err)
	}

	return r.scanIdentity(r.exec.QueryRow(ctx, stmt, args...))
}

func (r *IdentityRepository) selectIdentity() squirrel.SelectBuilder {
	return r.builder.Select(
		"id",
		"email",
		"password_hash",
		"verified",
		"require_two_factor",
		"created_at",
	).From("auth.identities")
}

func (r *IdentityRepository) scanIdentity(row pgx.Row) (*domain.Identity, error) {
	var identity domain.Identity
	if err := row.Scan(
		&identity.ID,
		&identity.Email,
		&identity.PasswordHash,
		&identity.Verified,
		&identity.RequireTwoFactor,
		&identity.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan identity: %w", err)
	}

	return &identity, nil
}

// GetProfile retrieves the profile created alongside an identity.
func (r *IdentityRepository) GetProfile(ctx context.Context, identityID string) (*domain.Profile, error) {
	stmt, args, err := r.builder.Select("identity_id", "name", "created_at").
		From("auth.profiles").
		Where(squirrel.Eq{"identity_id": identityID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select profile sql: %w", err)
	}

	var profile domain.Profile
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&profile.IdentityID,
		&profile.Name,
		&profile.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}

	return &profile, nil
}

// SetVerified updates the verification flag for an identity.
func (r *IdentityRepository) SetVerified(ctx context.Context, id string, verified bool) error {
	stmt, args, err := r.builder.Update("auth.identities").
		Set("verified", verified).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update verified sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update verified: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ port.IdentityRepository = (*IdentityRepository)(nil)
