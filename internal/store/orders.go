package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/suriekke/shopeasy2-sub000/internal/apperrors"
	"github.com/suriekke/shopeasy2-sub000/internal/database"
	"github.com/suriekke/shopeasy2-sub000/internal/models"
	"github.com/suriekke/shopeasy2-sub000/internal/repository"
)

const orderColumns = `id, order_number, user_id, status, subtotal, tax, shipping_cost, total, shipping_address, created_at, updated_at`

func scanOrder(row rowScanner) (*models.Order, error) {
	order := &models.Order{}
	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.UserID,
		&order.Status,
		&order.Subtotal,
		&order.Tax,
		&order.ShippingCost,
		&order.Total,
		&order.ShippingAddress,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}

type orderRepo struct {
	q database.Querier
}

func (r *orderRepo) Create(ctx context.Context, order *models.Order) error {
	err := r.q.QueryRowContext(ctx,
		`INSERT INTO orders (id, order_number, user_id, status, subtotal, tax, shipping_cost, total, shipping_address, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		 RETURNING created_at, updated_at`,
		order.ID, order.OrderNumber, order.UserID, order.Status,
		order.Subtotal, order.Tax, order.ShippingCost, order.Total,
		order.ShippingAddress, order.CreatedAt,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return database.MapError(err, "create order")
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		_, err = r.q.ExecContext(ctx,
			`INSERT INTO order_items (order_id, product_id, name, quantity, unit_price, line_total)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			item.OrderID, item.ProductID, item.Name, item.Quantity, item.UnitPrice, item.LineTotal)
		if err != nil {
			return database.MapError(err, "create order item")
		}
	}

	return nil
}

func (r *orderRepo) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.get(ctx, id, false)
}

func (r *orderRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.get(ctx, id, true)
}

func (r *orderRepo) get(ctx context.Context, id uuid.UUID, forUpdate bool) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	order, err := scanOrder(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("order")
		}
		return nil, database.MapError(err, "get order")
	}

	rows, err := r.q.QueryContext(ctx,
		`SELECT order_id, product_id, name, quantity, unit_price, line_total
		 FROM order_items
		 WHERE order_id = $1
		 ORDER BY product_id`,
		id)
	if err != nil {
		return nil, database.MapError(err, "get order items")
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(&item.OrderID, &item.ProductID, &item.Name, &item.Quantity, &item.UnitPrice, &item.LineTotal)
		if err != nil {
			return nil, database.MapError(err, "scan order item")
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, database.MapError(err, "get order items")
	}

	return order, nil
}

func (r *orderRepo) List(ctx context.Context, filter repository.OrderFilter) ([]models.Order, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.UserID != nil {
		conds = append(conds, "user_id = "+arg(*filter.UserID))
	}
	if filter.Status != nil {
		conds = append(conds, "status = "+arg(string(*filter.Status)))
	}
	if !filter.BeforeCreatedAt.IsZero() {
		conds = append(conds, fmt.Sprintf("(created_at, id) < (%s, %s)", arg(filter.BeforeCreatedAt), arg(filter.BeforeID)))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ` + arg(filter.Limit)

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, database.MapError(err, "list orders")
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, database.MapError(err, "scan order")
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, database.MapError(err, "list orders")
	}

	return orders, nil
}

func (r *orderRepo) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus, at time.Time) (bool, error) {
	result, err := r.q.ExecContext(ctx,
		`UPDATE orders
		 SET status = $3, updated_at = $4
		 WHERE id = $1 AND status = $2`,
		id, string(from), string(to), at)
	if err != nil {
		return false, database.MapError(err, "update order status")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, database.MapError(err, "update order status rows affected")
	}

	return rowsAffected == 1, nil
}
