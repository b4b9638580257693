// Package catalog serves product and category reads to shoppers and edits to operators.
package catalog

import (
	"context"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/suriekke/shopeasy2-sub000/internal/apperrors"
	"github.com/suriekke/shopeasy2-sub000/internal/logger"
	"github.com/suriekke/shopeasy2-sub000/internal/models"
	"github.com/suriekke/shopeasy2-sub000/internal/repository"
	"github.com/suriekke/shopeasy2-sub000/internal/validation"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

type ProductInput struct {
	SKU           string
	Name          string
	Description   string
	CategoryID    *int64
	Price         decimal.Decimal
	StockQuantity int
	IsActive      bool
}

// ProductPatch carries the fields an operator changes. Version must match the stored row.
type ProductPatch struct {
	Version       int
	Name          *string
	Description   *string
	CategoryID    *int64
	Price         *decimal.Decimal
	StockQuantity *int
	IsActive      *bool
}

type Service struct {
	catalog repository.Catalog
	log     *logger.Logger
}

func NewService(catalog repository.Catalog, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{catalog: catalog, log: log}
}

func (s *Service) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.catalog.ListCategories(ctx)
}

func (s *Service) CreateCategory(ctx context.Context, name, slug string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	slug = strings.TrimSpace(slug)
	if name == "" {
		return nil, apperrors.Validation("name", "is required")
	}
	if !slugPattern.MatchString(slug) {
		return nil, apperrors.Validation("slug", "must be lowercase letters, digits and single hyphens")
	}

	category := &models.Category{Name: name, Slug: slug}
	if err := s.catalog.CreateCategory(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// ListProducts pages through products, newest first. Shoppers see active products only.
func (s *Service) ListProducts(ctx context.Context, categoryID *int64, includeInactive bool, page, pageSize int) (*repository.ProductPage, error) {
	if categoryID != nil {
		if err := validation.ID("category_id", *categoryID); err != nil {
			return nil, err
		}
	}
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return s.catalog.ListProducts(ctx, repository.ProductFilter{CategoryID: categoryID, ActiveOnly: !includeInactive}, page, pageSize)
}

// GetProduct hides inactive products unless includeInactive is set.
func (s *Service) GetProduct(ctx context.Context, id int64, includeInactive bool) (*models.Product, error) {
	if err := validation.ID("product_id", id); err != nil {
		return nil, err
	}
	product, err := s.catalog.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !product.IsActive && !includeInactive {
		return nil, apperrors.NotFound("product")
	}
	return product, nil
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	if strings.TrimSpace(in.SKU) == "" {
		return nil, apperrors.Validation("sku", "is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperrors.Validation("name", "is required")
	}
	if err := validation.Money("price", in.Price); err != nil {
		return nil, err
	}
	if err := validation.StockLevel("stock_quantity", in.StockQuantity); err != nil {
		return nil, err
	}
	if in.CategoryID != nil {
		if err := validation.ID("category_id", *in.CategoryID); err != nil {
			return nil, err
		}
	}

	product := &models.Product{
		SKU:           strings.TrimSpace(in.SKU),
		Name:          strings.TrimSpace(in.Name),
		Description:   in.Description,
		CategoryID:    in.CategoryID,
		Price:         in.Price,
		StockQuantity: in.StockQuantity,
		IsActive:      in.IsActive,
	}
	if err := s.catalog.CreateProduct(ctx, product); err != nil {
		return nil, err
	}

	s.log.Info(s.log.WithFields(ctx, map[string]any{"product_id": product.ID, "sku": product.SKU}), "catalog.product_created")
	return product, nil
}

// UpdateProduct applies patch on top of the stored product. A stale Version fails with
// a concurrent modification conflict.
func (s *Service) UpdateProduct(ctx context.Context, id int64, patch ProductPatch) (*models.Product, error) {
	if err := validation.ID("product_id", id); err != nil {
		return nil, err
	}
	if patch.Version <= 0 {
		return nil, apperrors.Validation("version", "is required")
	}

	product, err := s.catalog.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.Version != patch.Version {
		return nil, apperrors.ConcurrentModification("product")
	}

	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return nil, apperrors.Validation("name", "must not be blank")
		}
		product.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		product.Description = *patch.Description
	}
	if patch.CategoryID != nil {
		if err := validation.ID("category_id", *patch.CategoryID); err != nil {
			return nil, err
		}
		product.CategoryID = patch.CategoryID
	}
	if patch.Price != nil {
		if err := validation.Money("price", *patch.Price); err != nil {
			return nil, err
		}
		product.Price = *patch.Price
	}
	if patch.StockQuantity != nil {
		if err := validation.StockLevel("stock_quantity", *patch.StockQuantity); err != nil {
			return nil, err
		}
		product.StockQuantity = *patch.StockQuantity
	}
	if patch.IsActive != nil {
		product.IsActive = *patch.IsActive
	}

	if err := s.catalog.UpdateProduct(ctx, product); err != nil {
		return nil, err
	}

	s.log.Info(s.log.WithFields(ctx, map[string]any{"product_id": product.ID, "version": product.Version}), "catalog.product_updated")
	return product, nil
}
