package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/suriekke/shopeasy2-sub000/internal/apperrors"
	"github.com/suriekke/shopeasy2-sub000/internal/database"
	"github.com/suriekke/shopeasy2-sub000/internal/models"
	"github.com/suriekke/shopeasy2-sub000/internal/repository"
)

const productColumns = `id, sku, name, description, category_id, price, stock_quantity, is_active, created_at, updated_at, version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	product := &models.Product{}
	var categoryID sql.NullInt64
	err := row.Scan(
		&product.ID,
		&product.SKU,
		&product.Name,
		&product.Description,
		&categoryID,
		&product.Price,
		&product.StockQuantity,
		&product.IsActive,
		&product.CreatedAt,
		&product.UpdatedAt,
		&product.Version,
	)
	if err != nil {
		return nil, err
	}
	if categoryID.Valid {
		id := categoryID.Int64
		product.CategoryID = &id
	}
	return product, nil
}

type catalogRepo struct {
	q database.Querier
}

func (r *catalogRepo) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("product")
		}
		return nil, database.MapError(err, "get product")
	}

	return product, nil
}

func (r *catalogRepo) GetProducts(ctx context.Context, ids []int64) (map[int64]*models.Product, error) {
	products := make(map[int64]*models.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`
	rows, err := r.q.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, database.MapError(err, "get products")
	}
	defer rows.Close()

	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, database.MapError(err, "scan product")
		}
		products[product.ID] = product
	}
	if err := rows.Err(); err != nil {
		return nil, database.MapError(err, "get products")
	}

	return products, nil
}

func (r *catalogRepo) ListProducts(ctx context.Context, filter repository.ProductFilter, page, pageSize int) (*repository.ProductPage, error) {
	where := `WHERE ($1::bigint IS NULL OR category_id = $1) AND (NOT $2 OR is_active)`
	var categoryID sql.NullInt64
	if filter.CategoryID != nil {
		categoryID = sql.NullInt64{Int64: *filter.CategoryID, Valid: true}
	}

	var total int64
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM products `+where, categoryID, filter.ActiveOnly).Scan(&total)
	if err != nil {
		return nil, database.MapError(err, "count products")
	}

	offset := (page - 1) * pageSize
	query := `SELECT ` + productColumns + ` FROM products ` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`

	rows, err := r.q.QueryContext(ctx, query, categoryID, filter.ActiveOnly, pageSize, offset)
	if err != nil {
		return nil, database.MapError(err, "list products")
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, database.MapError(err, "scan product")
		}
		products = append(products, *product)
	}
	if err := rows.Err(); err != nil {
		return nil, database.MapError(err, "list products")
	}

	return &repository.ProductPage{
		Items:      products,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: repository.TotalPages(total, pageSize),
	}, nil
}

func (r *catalogRepo) CreateProduct(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (sku, name, description, category_id, price, stock_quantity, is_active, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW(), 1)
		RETURNING ` + productColumns

	created, err := scanProduct(r.q.QueryRowContext(ctx, query,
		product.SKU, product.Name, product.Description, product.CategoryID,
		product.Price, product.StockQuantity, product.IsActive))
	if err != nil {
		return database.MapError(err, "create product")
	}

	*product = *created
	return nil
}

func (r *catalogRepo) UpdateProduct(ctx context.Context, product *models.Product) error {
	query := `
		UPDATE products
		SET name = $1, description = $2, category_id = $3, price = $4, stock_quantity = $5,
		    is_active = $6, version = version + 1, updated_at = NOW()
		WHERE id = $7 AND version = $8
		RETURNING ` + productColumns

	updated, err := scanProduct(r.q.QueryRowContext(ctx, query,
		product.Name, product.Description, product.CategoryID, product.Price,
		product.StockQuantity, product.IsActive, product.ID, product.Version))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return database.MapError(err, "update product")
		}
		if _, getErr := r.GetProduct(ctx, product.ID); getErr != nil {
			return getErr
		}
		return apperrors.ConcurrentModification("product")
	}

	*product = *updated
	return nil
}

func (r *catalogRepo) DecrementStock(ctx context.Context, id int64, qty int) (bool, error) {
	result, err := r.q.ExecContext(ctx,
		`UPDATE products
		 SET stock_quantity = stock_quantity - $1,
		     version = version + 1,
		     updated_at = NOW()
		 WHERE id = $2
		   AND stock_quantity >= $1`,
		qty, id)
	if err != nil {
		return false, database.MapError(err, "decrement stock")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, database.MapError(err, "decrement stock rows affected")
	}

	return rowsAffected == 1, nil
}

func (r *catalogRepo) IncrementStock(ctx context.Context, id int64, qty int) error {
	result, err := r.q.ExecContext(ctx,
		`UPDATE products
		 SET stock_quantity = stock_quantity + $1,
		     version = version + 1,
		     updated_at = NOW()
		 WHERE id = $2`,
		qty, id)
	if err != nil {
		return database.MapError(err, "increment stock")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return database.MapError(err, "increment stock rows affected")
	}
	if rowsAffected == 0 {
		return apperrors.NotFound("product")
	}

	return nil
}

func (r *catalogRepo) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, name, slug, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, database.MapError(err, "list categories")
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt); err != nil {
			return nil, database.MapError(err, "scan category")
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, database.MapError(err, "list categories")
	}

	return categories, nil
}

func (r *catalogRepo) CreateCategory(ctx context.Context, category *models.Category) error {
	err := r.q.QueryRowContext(ctx,
		`INSERT INTO categories (name, slug, created_at)
		 VALUES ($1, $2, NOW())
		 RETURNING id, created_at`,
		category.Name, category.Slug).Scan(&category.ID, &category.CreatedAt)
	if err != nil {
		return database.MapError(err, fmt.Sprintf("create category %q", category.Slug))
	}
	return nil
}
