// Package memory is an in-process implementation of the repository contracts.
//
// Every call runs under one mutex. Atomic works on a copy of the state and swaps it
// in only when fn returns nil, so a failed transaction leaves nothing behind.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/suriekke/shopeasy2-sub000/internal/apperrors"
	"github.com/suriekke/shopeasy2-sub000/internal/models"
	"github.com/suriekke/shopeasy2-sub000/internal/repository"
	"github.com/suriekke/shopeasy2-sub000/internal/validation"
)

type cartKey struct {
	userID    int64
	productID int64
}

type state struct {
	products       map[int64]models.Product
	categories     map[int64]models.Category
	cart           map[cartKey]models.CartEntry
	orders         map[uuid.UUID]models.Order
	users          map[int64]models.User
	nextProductID  int64
	nextCategoryID int64
	nextUserID     int64
}

func newState() *state {
	return &state{
		products:   map[int64]models.Product{},
		categories: map[int64]models.Category{},
		cart:       map[cartKey]models.CartEntry{},
		orders:     map[uuid.UUID]models.Order{},
		users:      map[int64]models.User{},
	}
}

func (s *state) clone() *state {
	c := &state{
		products:       make(map[int64]models.Product, len(s.products)),
		categories:     make(map[int64]models.Category, len(s.categories)),
		cart:           make(map[cartKey]models.CartEntry, len(s.cart)),
		orders:         make(map[uuid.UUID]models.Order, len(s.orders)),
		users:          make(map[int64]models.User, len(s.users)),
		nextProductID:  s.nextProductID,
		nextCategoryID: s.nextCategoryID,
		nextUserID:     s.nextUserID,
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.cart {
		c.cart[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	return c
}

type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{state: newState(), now: time.Now}
}

// view runs fn against the committed state under the store lock.
func (s *Store) view(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

func (s *Store) Catalog() repository.Catalog  { return catalog{s: s, run: s.view} }
func (s *Store) Cart() repository.CartEntries { return cart{s: s, run: s.view} }
func (s *Store) Orders() repository.Orders    { return orders{s: s, run: s.view} }
func (s *Store) Users() repository.Users      { return users{s: s, run: s.view} }

func (s *Store) Atomic(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return apperrors.Infrastructure(err, "transaction")
	}

	working := s.state.clone()
	run := func(f func(st *state) error) error { return f(working) }
	if err := fn(&tx{s: s, run: run}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return apperrors.Infrastructure(err, "commit transaction")
	}
	s.state = working
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }
func (s *Store) Close() error                   { return nil }

// CreateUser adds a user with an explicit role.
func (s *Store) CreateUser(phone, name, role string) *models.User {
	var user models.User
	_ = s.view(func(st *state) error {
		st.nextUserID++
		now := s.now()
		user = models.User{ID: st.nextUserID, Phone: phone, Name: name, Role: role, CreatedAt: now, UpdatedAt: now}
		st.users[user.ID] = user
		return nil
	})
	return &user
}

type tx struct {
	s   *Store
	run func(func(st *state) error) error
}

func (t *tx) Catalog() repository.Catalog  { return catalog{s: t.s, run: t.run} }
func (t *tx) Cart() repository.CartEntries { return cart{s: t.s, run: t.run} }
func (t *tx) Orders() repository.Orders    { return orders{s: t.s, run: t.run} }

// LockUser is a no-op: Atomic already holds the store lock.
func (t *tx) LockUser(ctx context.Context, userID int64) error { return nil }

type catalog struct {
	s   *Store
	run func(func(st *state) error) error
}

func (c catalog) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var out *models.Product
	err := c.run(func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return apperrors.NotFound("product")
		}
		out = &p
		return nil
	})
	return out, err
}

func (c catalog) GetProducts(ctx context.Context, ids []int64) (map[int64]*models.Product, error) {
	out := make(map[int64]*models.Product, len(ids))
	err := c.run(func(st *state) error {
		for _, id := range ids {
			if p, ok := st.products[id]; ok {
				out[id] = &p
			}
		}
		return nil
	})
	return out, err
}

func (c catalog) ListProducts(ctx context.Context, filter repository.ProductFilter, page, pageSize int) (*repository.ProductPage, error) {
	var matched []models.Product
	err := c.run(func(st *state) error {
		for _, p := range st.products {
			if filter.ActiveOnly && !p.IsActive {
				continue
			}
			if filter.CategoryID != nil && (p.CategoryID == nil || *p.CategoryID != *filter.CategoryID) {
				continue
			}
			matched = append(matched, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := (page - 1) * pageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}

	return &repository.ProductPage{
		Items:      append([]models.Product{}, matched[start:end]...),
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: repository.TotalPages(total, pageSize),
	}, nil
}

func (c catalog) CreateProduct(ctx context.Context, product *models.Product) error {
	return c.run(func(st *state) error {
		for _, p := range st.products {
			if p.SKU == product.SKU {
				return apperrors.New(apperrors.CodeConflict, "create product: duplicate value")
			}
		}
		st.nextProductID++
		now := c.s.now()
		product.ID = st.nextProductID
		product.CreatedAt = now
		product.UpdatedAt = now
		product.Version = 1
		st.products[product.ID] = *product
		return nil
	})
}

func (c catalog) UpdateProduct(ctx context.Context, product *models.Product) error {
	return c.run(func(st *state) error {
		current, ok := st.products[product.ID]
		if !ok {
			return apperrors.NotFound("product")
		}
		if current.Version != product.Version {
			return apperrors.ConcurrentModification("product")
		}
		current.Name = product.Name
		current.Description = product.Description
		current.CategoryID = product.CategoryID
		current.Price = product.Price
		current.StockQuantity = product.StockQuantity
		current.IsActive = product.IsActive
		current.Version++
		current.UpdatedAt = c.s.now()
		st.products[current.ID] = current
		*product = current
		return nil
	})
}

func (c catalog) DecrementStock(ctx context.Context, id int64, qty int) (bool, error) {
	var ok bool
	err := c.run(func(st *state) error {
		p, found := st.products[id]
		if !found || p.StockQuantity < qty {
			return nil
		}
		p.StockQuantity -= qty
		p.Version++
		p.UpdatedAt = c.s.now()
		st.products[id] = p
		ok = true
		return nil
	})
	return ok, err
}

func (c catalog) IncrementStock(ctx context.Context, id int64, qty int) error {
	return c.run(func(st *state) error {
		p, found := st.products[id]
		if !found {
			return apperrors.NotFound("product")
		}
		p.StockQuantity += qty
		p.Version++
		p.UpdatedAt = c.s.now()
		st.products[id] = p
		return nil
	})
}

func (c catalog) ListCategories(ctx context.Context) ([]models.Category, error) {
	out := []models.Category{}
	err := c.run(func(st *state) error {
		for _, cat := range st.categories {
			out = append(out, cat)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func (c catalog) CreateCategory(ctx context.Context, category *models.Category) error {
	return c.run(func(st *state) error {
		for _, existing := range st.categories {
			if existing.Slug == category.Slug || existing.Name == category.Name {
				return apperrors.New(apperrors.CodeConflict, "create category: duplicate value")
			}
		}
		st.nextCategoryID++
		category.ID = st.nextCategoryID
		category.CreatedAt = c.s.now()
		st.categories[category.ID] = *category
		return nil
	})
}

type cart struct {
	s   *Store
	run func(func(st *state) error) error
}

func (c cart) Increment(ctx context.Context, userID, productID int64, qty int) (*models.CartEntry, error) {
	var out models.CartEntry
	err := c.run(func(st *state) error {
		if _, ok := st.products[productID]; !ok {
			return apperrors.New(apperrors.CodeValidation, "increment cart entry: constraint violated")
		}
		key := cartKey{userID, productID}
		now := c.s.now()
		entry, ok := st.cart[key]
		if !ok {
			entry = models.CartEntry{UserID: userID, ProductID: productID, CreatedAt: now}
		}
		if entry.Quantity+qty > validation.MaxQuantity {
			return apperrors.Validation("quantity", "exceeds the maximum allowed quantity")
		}
		entry.Quantity += qty
		entry.UpdatedAt = now
		st.cart[key] = entry
		out = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c cart) Set(ctx context.Context, userID, productID int64, qty int) (*models.CartEntry, error) {
	var out models.CartEntry
	err := c.run(func(st *state) error {
		if _, ok := st.products[productID]; !ok {
			return apperrors.New(apperrors.CodeValidation, "set cart entry: constraint violated")
		}
		key := cartKey{userID, productID}
		now := c.s.now()
		entry, ok := st.cart[key]
		if !ok {
			entry = models.CartEntry{UserID: userID, ProductID: productID, CreatedAt: now}
		}
		entry.Quantity = qty
		entry.UpdatedAt = now
		st.cart[key] = entry
		out = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c cart) Delete(ctx context.Context, userID, productID int64) error {
	return c.run(func(st *state) error {
		delete(st.cart, cartKey{userID, productID})
		return nil
	})
}

func (c cart) List(ctx context.Context, userID int64) ([]models.CartEntry, error) {
	out := []models.CartEntry{}
	err := c.run(func(st *state) error {
		for key, entry := range st.cart {
			if key.userID == userID {
				out = append(out, entry)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, err
}

func (c cart) Clear(ctx context.Context, userID int64) error {
	return c.run(func(st *state) error {
		for key := range st.cart {
			if key.userID == userID {
				delete(st.cart, key)
			}
		}
		return nil
	})
}

type orders struct {
	s   *Store
	run func(func(st *state) error) error
}

func copyOrder(o models.Order) *models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	return &o
}

func (o orders) Create(ctx context.Context, order *models.Order) error {
	return o.run(func(st *state) error {
		if _, exists := st.orders[order.ID]; exists {
			return apperrors.New(apperrors.CodeConflict, "create order: duplicate value")
		}
		order.UpdatedAt = order.CreatedAt
		for i := range order.Items {
			order.Items[i].OrderID = order.ID
		}
		st.orders[order.ID] = *copyOrder(*order)
		return nil
	})
}

func (o orders) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var out *models.Order
	err := o.run(func(st *state) error {
		order, ok := st.orders[id]
		if !ok {
			return apperrors.NotFound("order")
		}
		out = copyOrder(order)
		return nil
	})
	return out, err
}

func (o orders) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return o.Get(ctx, id)
}

func (o orders) List(ctx context.Context, filter repository.OrderFilter) ([]models.Order, error) {
	var matched []models.Order
	err := o.run(func(st *state) error {
		for _, order := range st.orders {
			if filter.UserID != nil && order.UserID != *filter.UserID {
				continue
			}
			if filter.Status != nil && order.Status != *filter.Status {
				continue
			}
			if !filter.BeforeCreatedAt.IsZero() && !before(order, filter.BeforeCreatedAt, filter.BeforeID) {
				continue
			}
			order.Items = nil
			matched = append(matched, order)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(matched, func(i, j int) bool {
		return before(matched[j], matched[i].CreatedAt, matched[i].ID)
	})
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	if matched == nil {
		matched = []models.Order{}
	}
	return matched, nil
}

// before reports whether (order.CreatedAt, order.ID) < (at, id).
func before(order models.Order, at time.Time, id uuid.UUID) bool {
	if !order.CreatedAt.Equal(at) {
		return order.CreatedAt.Before(at)
	}
	return order.ID.String() < id.String()
}

func (o orders) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus, at time.Time) (bool, error) {
	var ok bool
	err := o.run(func(st *state) error {
		order, found := st.orders[id]
		if !found || order.Status != from {
			return nil
		}
		order.Status = to
		order.UpdatedAt = at
		st.orders[id] = order
		ok = true
		return nil
	})
	return ok, err
}

type users struct {
	s   *Store
	run func(func(st *state) error) error
}

func (u users) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var out *models.User
	err := u.run(func(st *state) error {
		user, ok := st.users[id]
		if !ok {
			return apperrors.NotFound("user")
		}
		out = &user
		return nil
	})
	return out, err
}

func (u users) FindOrCreateByPhone(ctx context.Context, phone string) (*models.User, error) {
	var out models.User
	err := u.run(func(st *state) error {
		for _, user := range st.users {
			if user.Phone == phone {
				out = user
				return nil
			}
		}
		st.nextUserID++
		now := u.s.now()
		out = models.User{ID: st.nextUserID, Phone: phone, Role: models.RoleCustomer, CreatedAt: now, UpdatedAt: now}
		st.users[out.ID] = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
