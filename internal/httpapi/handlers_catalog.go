package httpapi

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/suriekke/shopeasy2-sub000/internal/catalog"
	"github.com/suriekke/shopeasy2-sub000/internal/logger"
)

type createCategoryRequest struct {
	Name string `json:"name" validate:"required,max=120"`
	Slug string `json:"slug" validate:"required,max=120"`
}

type createProductRequest struct {
	SKU           string          `json:"sku" validate:"required,max=64"`
	Name          string          `json:"name" validate:"required,max=200"`
	Description   string          `json:"description" validate:"max=2000"`
	CategoryID    *int64          `json:"category_id" validate:"omitempty,gt=0"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity" validate:"gte=0"`
	IsActive      *bool           `json:"is_active"`
}

type updateProductRequest struct {
	Version       int              `json:"version" validate:"required,gt=0"`
	Name          *string          `json:"name" validate:"omitempty,max=200"`
	Description   *string          `json:"description" validate:"omitempty,max=2000"`
	CategoryID    *int64           `json:"category_id" validate:"omitempty,gt=0"`
	Price         *decimal.Decimal `json:"price"`
	StockQuantity *int             `json:"stock_quantity" validate:"omitempty,gte=0"`
	IsActive      *bool            `json:"is_active"`
}

func CategoryList(svc *catalog.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categories, err := svc.ListCategories(r.Context())
		if err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}
		WriteSuccess(w, categories)
	}
}

func ProductList(svc *catalog.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categoryID, err := queryInt64Ptr(r, "category_id")
		if err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}
		page, err := queryInt(r, "page", 1, 1, 100000)
		if err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}
		pageSize, err := queryInt(r, "page_size", catalog.DefaultPageSize, 1, catalog.MaxPageSize)
		if err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}

		result, err := svc.ListProducts(r.Context(), categoryID, false, page, pageSize)
		if err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}
		WriteSuccess(w, result)
	}
}

func ProductGet(svc *catalog.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathInt64(r, "id")
		if err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}
		product, err := svc.GetProduct(r.Context(), id, false)
		if err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}
		WriteSuccess(w, product)
	}
}

func AdminCategoryCreate(svc *catalog.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createCategoryRequest
		if err := DecodeJSONBody(w, r, &payload); err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}
		category, err := svc.CreateCategory(r.Context(), payload.Name, payload.Slug)
		if err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}
		WriteSuccessStatus(w, http.StatusCreated, category)
	}
}

func AdminProductCreate(svc *catalog.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createProductRequest
		if err := DecodeJSONBody(w, r, &payload); err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}

		active := true
		if payload.IsActive != nil {
			active = *payload.IsActive
		}
		product, err := svc.CreateProduct(r.Context(), catalog.ProductInput{
			SKU:           payload.SKU,
			Name:          payload.Name,
			Description:   payload.Description,
			CategoryID:    payload.CategoryID,
			Price:         payload.Price,
			StockQuantity: payload.StockQuantity,
			IsActive:      active,
		})
		if err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}
		WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

func AdminProductUpdate(svc *catalog.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathInt64(r, "id")
		if err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}
		var payload updateProductRequest
		if err := DecodeJSONBody(w, r, &payload); err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}

		product, err := svc.UpdateProduct(r.Context(), id, catalog.ProductPatch{
			Version:       payload.Version,
			Name:          payload.Name,
			Description:   payload.Description,
			CategoryID:    payload.CategoryID,
			Price:         payload.Price,
			StockQuantity: payload.StockQuantity,
			IsActive:      payload.IsActive,
		})
		if err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}
		WriteSuccess(w, product)
	}
}
