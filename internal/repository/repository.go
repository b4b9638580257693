// Package repository declares the storage contracts the cart ledger and order engine
// depend on. Implementations live in internal/store (Postgres) and internal/store/memory.
//
// Implementations return apperrors values: NotFound for missing rows,
// ConcurrentModification for lost optimistic writes, Infrastructure for everything
// the backing store could not do.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/suriekke/shopeasy2-sub000/internal/models"
)

type ProductFilter struct {
	CategoryID *int64
	ActiveOnly bool
}

type ProductPage struct {
	Items      []models.Product `json:"items"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalPages int              `json:"total_pages"`
}

type OrderFilter struct {
	UserID *int64
	Status *models.OrderStatus
	// Keyset position; zero values start from the newest order.
	BeforeCreatedAt time.Time
	BeforeID        uuid.UUID
	Limit           int
}

type Catalog interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	// GetProducts returns the products that exist, keyed by id.
	GetProducts(ctx context.Context, ids []int64) (map[int64]*models.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter, page, pageSize int) (*ProductPage, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	// UpdateProduct writes name, description, category, price, stock and active flag when
	// product.Version still matches, then bumps the version.
	UpdateProduct(ctx context.Context, product *models.Product) error
	// DecrementStock subtracts qty only if that leaves stock non-negative.
	DecrementStock(ctx context.Context, id int64, qty int) (bool, error)
	IncrementStock(ctx context.Context, id int64, qty int) error
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, category *models.Category) error
}

type CartEntries interface {
	// Increment adds qty to the entry, creating it when absent, as one atomic write.
	Increment(ctx context.Context, userID, productID int64, qty int) (*models.CartEntry, error)
	Set(ctx context.Context, userID, productID int64, qty int) (*models.CartEntry, error)
	Delete(ctx context.Context, userID, productID int64) error
	// List returns entries ordered by creation time, then product id.
	List(ctx context.Context, userID int64) ([]models.CartEntry, error)
	Clear(ctx context.Context, userID int64) error
}

type Orders interface {
	// Create inserts the order and all of its items.
	Create(ctx context.Context, order *models.Order) error
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// GetForUpdate loads the order and holds it until the transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]models.Order, error)
	// CompareAndSetStatus moves the order from -> to and returns false when the stored
	// status is no longer from.
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus, at time.Time) (bool, error)
}

type Users interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	FindOrCreateByPhone(ctx context.Context, phone string) (*models.User, error)
}

// Tx is the set of repositories bound to one transaction.
type Tx interface {
	Catalog() Catalog
	Cart() CartEntries
	Orders() Orders
	// LockUser serialises work for one user until the transaction ends.
	LockUser(ctx context.Context, userID int64) error
}

// Store is the top-level storage handle.
type Store interface {
	Catalog() Catalog
	Cart() CartEntries
	Orders() Orders
	Users() Users
	// Atomic runs fn in a transaction; all of fn's writes commit together or not at all.
	Atomic(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}
