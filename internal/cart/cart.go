// Package cart is the per-user ledger of product quantities awaiting checkout.
package cart

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/suriekke/shopeasy2-sub000/internal/apperrors"
	"github.com/suriekke/shopeasy2-sub000/internal/logger"
	"github.com/suriekke/shopeasy2-sub000/internal/models"
	"github.com/suriekke/shopeasy2-sub000/internal/repository"
	"github.com/suriekke/shopeasy2-sub000/internal/validation"
)

type Service struct {
	store repository.Store
	log   *logger.Logger
	now   func() time.Time
}

func NewService(store repository.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{store: store, log: log, now: time.Now}
}

// AddItem adds quantity to the user's line for productID, creating it if needed.
// A zero quantity means one.
func (s *Service) AddItem(ctx context.Context, userID, productID int64, quantity int) (*models.CartEntry, error) {
	if quantity == 0 {
		quantity = 1
	}
	if err := validateLine(userID, productID, quantity); err != nil {
		return nil, err
	}
	if err := s.requireActive(ctx, productID); err != nil {
		return nil, err
	}

	entry, err := s.store.Cart().Increment(ctx, userID, productID, quantity)
	if err != nil {
		return nil, err
	}

	s.log.Info(s.log.WithFields(ctx, map[string]any{
		"user_id":    userID,
		"product_id": productID,
		"quantity":   entry.Quantity,
	}), "cart.item_added")
	return entry, nil
}

// SetQuantity overwrites the line. A quantity of zero or less removes it and returns nil.
func (s *Service) SetQuantity(ctx context.Context, userID, productID int64, quantity int) (*models.CartEntry, error) {
	if quantity <= 0 {
		return nil, s.RemoveItem(ctx, userID, productID)
	}
	if err := validateLine(userID, productID, quantity); err != nil {
		return nil, err
	}
	if err := s.requireActive(ctx, productID); err != nil {
		return nil, err
	}
	return s.store.Cart().Set(ctx, userID, productID, quantity)
}

func (s *Service) RemoveItem(ctx context.Context, userID, productID int64) error {
	if err := validation.ID("user_id", userID); err != nil {
		return err
	}
	if err := validation.ID("product_id", productID); err != nil {
		return err
	}
	return s.store.Cart().Delete(ctx, userID, productID)
}

func (s *Service) Clear(ctx context.Context, userID int64) error {
	if err := validation.ID("user_id", userID); err != nil {
		return err
	}
	return s.store.Cart().Clear(ctx, userID)
}

// Snapshot reads the cart without changing it.
func (s *Service) Snapshot(ctx context.Context, userID int64) (*models.CartSnapshot, error) {
	if err := validation.ID("user_id", userID); err != nil {
		return nil, err
	}
	return BuildSnapshot(ctx, s.store.Cart(), s.store.Catalog(), userID, s.now())
}

func (s *Service) requireActive(ctx context.Context, productID int64) error {
	product, err := s.store.Catalog().GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if !product.IsActive {
		return apperrors.NotFound("product")
	}
	return nil
}

// BuildSnapshot resolves every cart entry against the product as it is now.
// Lines keep the ledger's order; the subtotal counts active lines only.
// An entry whose product no longer exists stays in as an inactive line with no
// stock, so checkout rejects it by product id instead of dropping it.
func BuildSnapshot(ctx context.Context, entries repository.CartEntries, catalog repository.Catalog, userID int64, at time.Time) (*models.CartSnapshot, error) {
	list, err := entries.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(list))
	for _, e := range list {
		ids = append(ids, e.ProductID)
	}
	products, err := catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	snapshot := &models.CartSnapshot{
		UserID:     userID,
		Lines:      make([]models.CartLine, 0, len(list)),
		Subtotal:   decimal.Zero,
		CapturedAt: at,
	}
	for _, e := range list {
		product, ok := products[e.ProductID]
		if !ok {
			snapshot.Lines = append(snapshot.Lines, models.CartLine{
				ProductID: e.ProductID,
				Quantity:  e.Quantity,
				UnitPrice: decimal.Zero,
				LineTotal: decimal.Zero,
				AddedAt:   e.CreatedAt,
			})
			continue
		}
		line := models.CartLine{
			ProductID:     product.ID,
			Name:          product.Name,
			Quantity:      e.Quantity,
			UnitPrice:     product.Price,
			LineTotal:     product.Price.Mul(decimal.NewFromInt(int64(e.Quantity))),
			IsActive:      product.IsActive,
			StockQuantity: product.StockQuantity,
			AddedAt:       e.CreatedAt,
		}
		if line.IsActive {
			snapshot.Subtotal = snapshot.Subtotal.Add(line.LineTotal)
		}
		snapshot.Lines = append(snapshot.Lines, line)
	}
	return snapshot, nil
}

func validateLine(userID, productID int64, quantity int) error {
	if err := validation.ID("user_id", userID); err != nil {
		return err
	}
	if err := validation.ID("product_id", productID); err != nil {
		return err
	}
	return validation.Quantity("quantity", quantity)
}
