// Package auth_repo provides PostgreSQL implementations for auth repositories.
package auth_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"provision/internal/core/apperror"
	"provision/internal/core/id"
	"provision/internal/domain/auth"
	"provision/internal/infrastructure/storage/postgres"
)

const (
	usersTable         = "users"
	userLocationsTable = "user_locations"
)

var userColumns = []string{
	"id", "email", "password_hash", "first_name", "last_name",
	"role", "is_active", "last_login_at", "failed_login_attempts",
	"locked_until", "created_at", "updated_at", "version",
}

var _ auth.UserRepository = (*UserRepo)(nil)

// UserRepo implements auth.UserRepository.
type UserRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewUserRepo creates a new user repository.
func NewUserRepo(txManager *postgres.TxManager) *UserRepo {
	return &UserRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *UserRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// Create creates a new user.
func (r *UserRepo) Create(ctx context.Context, user *auth.User) error {
	query := `
		INSERT INTO users (
			id, email, password_hash, first_name, last_name,
			role, is_active, created_at, updated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.querier(ctx).Exec(ctx, query,
		user.ID, user.Email, user.PasswordHash,
		user.FirstName, user.LastName, user.Role, user.IsActive,
		user.CreatedAt, user.UpdatedAt, user.Version,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.NewDuplicate(usersTable, "email", user.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, userID id.ID) (*auth.User, error) {
	return r.getOne(ctx, squirrel.Eq{"id": userID}, userID.String())
}

// GetByEmail retrieves a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.getOne(ctx, squirrel.Eq{"email": email}, email)
}

func (r *UserRepo) getOne(ctx context.Context, cond squirrel.Sqlizer, key string) (*auth.User, error) {
	q := r.builder.Select(userColumns...).
		From(usersTable).
		Where(cond)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var user auth.User
	if err := pgxscan.Get(ctx, r.querier(ctx), &user, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("user", key)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &user, nil
}

// Update updates user data with optimistic locking.
func (r *UserRepo) Update(ctx context.Context, user *auth.User) error {
	query := `
		UPDATE users
		SET email = $2, password_hash = $3, first_name = $4, last_name = $5,
		    role = $6, is_active = $7, last_login_at = $8,
		    failed_login_attempts = $9, locked_until = $10,
		    updated_at = NOW(), version = version + 1
		WHERE id = $1 AND version = $11
	`

	result, err := r.querier(ctx).Exec(ctx, query,
		user.ID, user.Email, user.PasswordHash,
		user.FirstName, user.LastName, user.Role, user.IsActive,
		user.LastLoginAt, user.FailedLoginAttempts, user.LockedUntil,
		user.Version,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(usersTable, user.ID)
	}

	return nil
}

// List retrieves users with filtering.
func (r *UserRepo) List(ctx context.Context, filter auth.UserFilter) ([]auth.User, int, error) {
	q := r.builder.Select(userColumns...).From(usersTable)

	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"email": pattern},
			squirrel.ILike{"first_name": pattern},
			squirrel.ILike{"last_name": pattern},
		})
	}
	if filter.IsActive != nil {
		q = q.Where(squirrel.Eq{"is_active": *filter.IsActive})
	}
	if filter.Role != "" {
		q = q.Where(squirrel.Eq{"role": filter.Role})
	}

	countQ := r.builder.Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count: %w", err)
	}

	var total int
	if err := r.querier(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	q = q.OrderBy("email")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build query: %w", err)
	}

	var users []auth.User
	if err := pgxscan.Select(ctx, r.querier(ctx), &users, sql, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	return users, total, nil
}

// Exists checks if an email is taken.
func (r *UserRepo) Exists(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`

	var exists bool
	if err := r.querier(ctx).QueryRow(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}

	return exists, nil
}

// SetRole changes a user's role.
func (r *UserRepo) SetRole(ctx context.Context, userID id.ID, role string) error {
	query := `
		UPDATE users
		SET role = $2, updated_at = NOW(), version = version + 1
		WHERE id = $1
	`

	result, err := r.querier(ctx).Exec(ctx, query, userID, role)
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("user", userID.String())
	}

	return nil
}

// LoadLocationGrants loads the IDs of locations granted to a user.
func (r *UserRepo) LoadLocationGrants(ctx context.Context, userID id.ID) ([]string, error) {
	query := `
		SELECT location_id
		FROM user_locations
		WHERE user_id = $1
		ORDER BY location_id
	`

	rows, err := r.querier(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("load grants: %w", err)
	}
	defer rows.Close()

	var grants []string
	for rows.Next() {
		var locationID id.ID
		if err := rows.Scan(&locationID); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		grants = append(grants, locationID.String())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grants: %w", err)
	}

	return grants, nil
}

// GrantLocation grants a user access to a location. Idempotent.
func (r *UserRepo) GrantLocation(ctx context.Context, userID, locationID id.ID, grantedBy id.ID) error {
	query := `
		INSERT INTO user_locations (user_id, location_id, granted_by, granted_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, location_id) DO NOTHING
	`

	if _, err := r.querier(ctx).Exec(ctx, query, userID, locationID, grantedBy); err != nil {
		return fmt.Errorf("grant location: %w", err)
	}

	return nil
}

// RevokeLocation revokes a location grant.
func (r *UserRepo) RevokeLocation(ctx context.Context, userID, locationID id.ID) error {
	query := `DELETE FROM user_locations WHERE user_id = $1 AND location_id = $2`

	if _, err := r.querier(ctx).Exec(ctx, query, userID, locationID); err != nil {
		return fmt.Errorf("revoke location: %w", err)
	}

	return nil
}
