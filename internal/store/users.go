package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/suriekke/shopeasy2-sub000/internal/apperrors"
	"github.com/suriekke/shopeasy2-sub000/internal/database"
	"github.com/suriekke/shopeasy2-sub000/internal/models"
)

const userColumns = `id, phone, email, name, role, created_at, updated_at`

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Phone,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

type userRepo struct {
	q database.Querier
}

func (r *userRepo) GetUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := scanUser(r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("user")
		}
		return nil, database.MapError(err, "get user")
	}
	return user, nil
}

// FindOrCreateByPhone relies on the no-op conflict update so RETURNING yields the
// existing row as well as a new one.
func (r *userRepo) FindOrCreateByPhone(ctx context.Context, phone string) (*models.User, error) {
	query := `
		INSERT INTO users (phone, role, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (phone) DO UPDATE SET phone = EXCLUDED.phone
		RETURNING ` + userColumns

	user, err := scanUser(r.q.QueryRowContext(ctx, query, phone, models.RoleCustomer))
	if err != nil {
		return nil, database.MapError(err, "find or create user")
	}
	return user, nil
}

// CreateUser inserts a user with an explicit role; used by seeding and tests.
func (s *Store) CreateUser(ctx context.Context, phone, name, role string) (*models.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx,
		`INSERT INTO users (phone, name, role, created_at, updated_at)
		 VALUES ($1, $2, $3, NOW(), NOW())
		 RETURNING `+userColumns,
		phone, name, role))
	if err != nil {
		return nil, database.MapError(err, "create user")
	}
	return user, nil
}
