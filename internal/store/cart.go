package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/suriekke/shopeasy2-sub000/internal/apperrors"
	"github.com/suriekke/shopeasy2-sub000/internal/database"
	"github.com/suriekke/shopeasy2-sub000/internal/models"
	"github.com/suriekke/shopeasy2-sub000/internal/validation"
)

const cartColumns = `user_id, product_id, quantity, created_at, updated_at`

func scanCartEntry(row rowScanner) (*models.CartEntry, error) {
	entry := &models.CartEntry{}
	err := row.Scan(&entry.UserID, &entry.ProductID, &entry.Quantity, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

type cartRepo struct {
	q database.Querier
}

func (r *cartRepo) Increment(ctx context.Context, userID, productID int64, qty int) (*models.CartEntry, error) {
	query := `
		INSERT INTO cart_entries (user_id, product_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_entries.quantity + EXCLUDED.quantity,
		              updated_at = NOW()
		WHERE cart_entries.quantity + EXCLUDED.quantity <= $4
		RETURNING ` + cartColumns

	entry, err := scanCartEntry(r.q.QueryRowContext(ctx, query, userID, productID, qty, validation.MaxQuantity))
	if errors.Is(err, sql.ErrNoRows) {
		// the conflicting row exists but the sum would pass the cap
		return nil, apperrors.Validation("quantity", "exceeds the maximum allowed quantity")
	}
	if err != nil {
		return nil, database.MapError(err, "increment cart entry")
	}
	return entry, nil
}

func (r *cartRepo) Set(ctx context.Context, userID, productID int64, qty int) (*models.CartEntry, error) {
	query := `
		INSERT INTO cart_entries (user_id, product_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = EXCLUDED.quantity,
		              updated_at = NOW()
		RETURNING ` + cartColumns

	entry, err := scanCartEntry(r.q.QueryRowContext(ctx, query, userID, productID, qty))
	if err != nil {
		return nil, database.MapError(err, "set cart entry")
	}
	return entry, nil
}

func (r *cartRepo) Delete(ctx context.Context, userID, productID int64) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM cart_entries WHERE user_id = $1 AND product_id = $2`,
		userID, productID)
	if err != nil {
		return database.MapError(err, "delete cart entry")
	}
	return nil
}

func (r *cartRepo) List(ctx context.Context, userID int64) ([]models.CartEntry, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+cartColumns+`
		 FROM cart_entries
		 WHERE user_id = $1
		 ORDER BY created_at, product_id`,
		userID)
	if err != nil {
		return nil, database.MapError(err, "list cart entries")
	}
	defer rows.Close()

	entries := []models.CartEntry{}
	for rows.Next() {
		entry, err := scanCartEntry(rows)
		if err != nil {
			return nil, database.MapError(err, "scan cart entry")
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, database.MapError(err, "list cart entries")
	}

	return entries, nil
}

func (r *cartRepo) Clear(ctx context.Context, userID int64) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM cart_entries WHERE user_id = $1`, userID); err != nil {
		return database.MapError(err, "clear cart")
	}
	return nil
}
