package catalog

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suriekke/shopeasy2-sub000/internal/apperrors"
	"github.com/suriekke/shopeasy2-sub000/internal/models"
	"github.com/suriekke/shopeasy2-sub000/internal/repository"
	"github.com/suriekke/shopeasy2-sub000/internal/store/memory"
)

func TestCreateCategoryValidatesSlug(t *testing.T) {
	svc := NewService(memory.New().Catalog(), nil)
	ctx := context.Background()

	_, err := svc.CreateCategory(ctx, "Fresh Fruit", "Fresh Fruit")
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))

	cat, err := svc.CreateCategory(ctx, "Fresh Fruit", "fresh-fruit")
	require.NoError(t, err)
	assert.NotZero(t, cat.ID)

	_, err = svc.CreateCategory(ctx, "Fresh Fruit", "fresh-fruit")
	assert.Equal(t, apperrors.CodeConflict, apperrors.CodeOf(err))
}

func TestCreateProductValidatesMoneyAndStock(t *testing.T) {
	svc := NewService(memory.New().Catalog(), nil)
	ctx := context.Background()

	_, err := svc.CreateProduct(ctx, ProductInput{SKU: "A", Name: "A", Price: decimal.RequireFromString("-1")})
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))

	_, err = svc.CreateProduct(ctx, ProductInput{SKU: "A", Name: "A", Price: decimal.RequireFromString("1.005")})
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))

	_, err = svc.CreateProduct(ctx, ProductInput{SKU: "A", Name: "A", Price: decimal.NewFromInt(1), StockQuantity: -1})
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))

	p, err := svc.CreateProduct(ctx, ProductInput{SKU: " A ", Name: "Apple", Price: decimal.RequireFromString("12.50"), StockQuantity: 3, IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, "A", p.SKU)
	assert.Equal(t, 1, p.Version)
}

func TestUpdateProductOptimisticLocking(t *testing.T) {
	svc := NewService(memory.New().Catalog(), nil)
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, ProductInput{SKU: "A", Name: "Apple", Price: decimal.NewFromInt(10), StockQuantity: 50, IsActive: true})
	require.NoError(t, err)

	stock := 40
	updated, err := svc.UpdateProduct(ctx, p.ID, ProductPatch{Version: p.Version, StockQuantity: &stock})
	require.NoError(t, err)
	assert.Equal(t, 40, updated.StockQuantity)
	assert.Equal(t, 2, updated.Version)

	stock = 30
	_, err = svc.UpdateProduct(ctx, p.ID, ProductPatch{Version: p.Version, StockQuantity: &stock})
	assert.ErrorIs(t, err, apperrors.ErrConcurrentModification)

	_, err = svc.UpdateProduct(ctx, p.ID, ProductPatch{})
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
}

// checkoutAfterRead decrements stock right after every product read, the way a
// checkout committing between an admin's read and write would.
type checkoutAfterRead struct {
	repository.Catalog
	qty int
}

func (c checkoutAfterRead) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	p, err := c.Catalog.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := c.Catalog.DecrementStock(ctx, id, c.qty); err != nil {
		return nil, err
	}
	return p, nil
}

func TestUpdateProductDoesNotUndoCheckoutDecrement(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	p, err := NewService(store.Catalog(), nil).CreateProduct(ctx, ProductInput{SKU: "A", Name: "Apple", Price: decimal.NewFromInt(10), StockQuantity: 10, IsActive: true})
	require.NoError(t, err)

	svc := NewService(checkoutAfterRead{Catalog: store.Catalog(), qty: 3}, nil)
	name := "Green Apple"
	_, err = svc.UpdateProduct(ctx, p.ID, ProductPatch{Version: p.Version, Name: &name})
	assert.ErrorIs(t, err, apperrors.ErrConcurrentModification)

	got, err := store.Catalog().GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.StockQuantity)
	assert.Equal(t, "Apple", got.Name)
}

func TestInactiveProductsAreHiddenFromShoppers(t *testing.T) {
	svc := NewService(memory.New().Catalog(), nil)
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, ProductInput{SKU: "A", Name: "Apple", Price: decimal.NewFromInt(10)})
	require.NoError(t, err)

	_, err = svc.GetProduct(ctx, p.ID, false)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	got, err := svc.GetProduct(ctx, p.ID, true)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	page, err := svc.ListProducts(ctx, nil, false, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, DefaultPageSize, page.PageSize)

	page, err = svc.ListProducts(ctx, nil, true, 1, 500)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, MaxPageSize, page.PageSize)
}
