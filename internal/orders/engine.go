// Package orders turns carts into orders and drives each order through its lifecycle.
//
// Checkout and every status change run inside one store transaction. Stock is taken with
// a conditional decrement, never on the strength of an earlier read, and cancellation puts
// it back in the same transaction that records the new status. Observers are told about a
// change only after it has committed.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/suriekke/shopeasy2-sub000/internal/apperrors"
	"github.com/suriekke/shopeasy2-sub000/internal/cart"
	"github.com/suriekke/shopeasy2-sub000/internal/logger"
	"github.com/suriekke/shopeasy2-sub000/internal/metrics"
	"github.com/suriekke/shopeasy2-sub000/internal/models"
	"github.com/suriekke/shopeasy2-sub000/internal/notify"
	"github.com/suriekke/shopeasy2-sub000/internal/pricing"
	"github.com/suriekke/shopeasy2-sub000/internal/repository"
	"github.com/suriekke/shopeasy2-sub000/internal/validation"
)

const (
	defaultPricingTimeout = 2 * time.Second
	defaultNotifyTimeout  = 3 * time.Second

	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Options struct {
	PricingTimeout time.Duration
	NotifyTimeout  time.Duration
	Logger         *logger.Logger
	Metrics        *metrics.Metrics
	Clock          func() time.Time
}

type Engine struct {
	store          repository.Store
	pricing        pricing.Rule
	sink           notify.Sink
	log            *logger.Logger
	metrics        *metrics.Metrics
	pricingTimeout time.Duration
	notifyTimeout  time.Duration
	now            func() time.Time
}

func NewEngine(store repository.Store, rule pricing.Rule, sink notify.Sink, opts Options) *Engine {
	e := &Engine{
		store:          store,
		pricing:        rule,
		sink:           sink,
		log:            opts.Logger,
		metrics:        opts.Metrics,
		pricingTimeout: opts.PricingTimeout,
		notifyTimeout:  opts.NotifyTimeout,
		now:            opts.Clock,
	}
	if e.log == nil {
		e.log = logger.Nop()
	}
	if e.pricingTimeout <= 0 {
		e.pricingTimeout = defaultPricingTimeout
	}
	if e.notifyTimeout <= 0 {
		e.notifyTimeout = defaultNotifyTimeout
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// CreateOrder checks out the user's cart. On success the order is pending, stock has
// been taken for every item and the cart is empty. On failure nothing has changed.
func (e *Engine) CreateOrder(ctx context.Context, userID int64, addr models.Address) (*models.Order, error) {
	start := time.Now()
	order, err := e.createOrder(ctx, userID, addr)
	e.metrics.ObserveCheckout(time.Since(start))

	ctx = e.log.WithUserID(ctx, userID)
	if err != nil {
		e.metrics.CheckoutFailed(string(apperrors.CodeOf(err)))
		e.log.Warn(ctx, "order.checkout_failed", err)
		return nil, err
	}

	e.metrics.OrderCreated()
	e.log.Info(e.log.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"total":        order.Total.StringFixed(2),
		"items":        len(order.Items),
	}), "order.created")
	return order, nil
}

func (e *Engine) createOrder(ctx context.Context, userID int64, addr models.Address) (*models.Order, error) {
	if err := validation.ID("user_id", userID); err != nil {
		return nil, err
	}
	if err := validation.Address(addr); err != nil {
		return nil, err
	}

	var order *models.Order
	err := e.store.Atomic(ctx, func(tx repository.Tx) error {
		if err := tx.LockUser(ctx, userID); err != nil {
			return err
		}

		// Postgres keeps microseconds; truncating keeps cursors stable across stores.
		now := e.now().UTC().Truncate(time.Microsecond)

		snapshot, err := cart.BuildSnapshot(ctx, tx.Cart(), tx.Catalog(), userID, now)
		if err != nil {
			return err
		}
		if snapshot.IsEmpty() {
			return apperrors.EmptyCart()
		}

		subtotal := decimal.Zero
		items := make([]models.OrderItem, 0, len(snapshot.Lines))
		for _, line := range snapshot.Lines {
			if !line.IsActive || line.StockQuantity < line.Quantity {
				return apperrors.InsufficientStock(line.ProductID)
			}
			subtotal = subtotal.Add(line.LineTotal)
			items = append(items, models.OrderItem{
				ProductID: line.ProductID,
				Name:      line.Name,
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice,
				LineTotal: line.LineTotal,
			})
		}

		charges, err := e.quote(ctx, subtotal, addr)
		if err != nil {
			return err
		}

		for _, item := range items {
			ok, err := tx.Catalog().DecrementStock(ctx, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return apperrors.InsufficientStock(item.ProductID)
			}
		}

		id := uuid.New()
		order = &models.Order{
			ID:              id,
			OrderNumber:     orderNumber(now, id),
			UserID:          userID,
			Status:          models.OrderStatusPending,
			Subtotal:        subtotal,
			Tax:             charges.Tax,
			ShippingCost:    charges.Shipping,
			Total:           subtotal.Add(charges.Tax).Add(charges.Shipping),
			ShippingAddress: addr,
			CreatedAt:       now,
			Items:           items,
		}
		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}
		return tx.Cart().Clear(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// orderNumber is for display. The id fragment separates checkouts sharing a clock tick.
func orderNumber(at time.Time, id uuid.UUID) string {
	return fmt.Sprintf("ORD-%d-%s", at.UnixNano(), strings.ToUpper(id.String()[:4]))
}

func (e *Engine) quote(ctx context.Context, subtotal decimal.Decimal, addr models.Address) (pricing.Charges, error) {
	qctx, cancel := context.WithTimeout(ctx, e.pricingTimeout)
	defer cancel()

	charges, err := e.pricing.Quote(qctx, subtotal, addr)
	if err != nil {
		if typed := apperrors.As(err); typed != nil {
			return pricing.Charges{}, typed
		}
		return pricing.Charges{}, apperrors.Infrastructure(err, "pricing rule unavailable")
	}
	if charges.Tax.IsNegative() || charges.Shipping.IsNegative() {
		return pricing.Charges{}, apperrors.New(apperrors.CodeInternal, "pricing rule returned a negative charge")
	}
	// order columns hold whole cents
	if !charges.Tax.Equal(charges.Tax.Round(2)) || !charges.Shipping.Equal(charges.Shipping.Round(2)) {
		return pricing.Charges{}, apperrors.New(apperrors.CodeInternal, "pricing rule returned a charge finer than cents")
	}
	return charges, nil
}

// UpdateStatus moves an order along the lifecycle graph on behalf of an operator.
func (e *Engine) UpdateStatus(ctx context.Context, orderID uuid.UUID, to models.OrderStatus) (*models.Order, error) {
	return e.transition(ctx, orderID, to, nil)
}

// Cancel lets a customer withdraw their own order while it is still pending.
// Orders owned by someone else are reported as not found.
func (e *Engine) Cancel(ctx context.Context, userID int64, orderID uuid.UUID) (*models.Order, error) {
	if err := validation.ID("user_id", userID); err != nil {
		return nil, err
	}
	return e.transition(ctx, orderID, models.OrderStatusCancelled, func(order *models.Order) error {
		if order.UserID != userID {
			return apperrors.NotFound("order")
		}
		if order.Status != models.OrderStatusPending {
			return apperrors.InvalidTransition(string(order.Status), string(models.OrderStatusCancelled))
		}
		return nil
	})
}

func (e *Engine) transition(ctx context.Context, orderID uuid.UUID, to models.OrderStatus, check func(*models.Order) error) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, apperrors.Validation("order_id", "is required")
	}
	if !to.Valid() {
		return nil, apperrors.Validation("status", "is not a known order status")
	}

	var (
		updated *models.Order
		change  models.StatusChange
	)
	err := e.store.Atomic(ctx, func(tx repository.Tx) error {
		order, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(order); err != nil {
				return err
			}
		}

		from := order.Status
		if !from.CanTransitionTo(to) {
			return apperrors.InvalidTransition(string(from), string(to))
		}

		at := e.now().UTC().Truncate(time.Microsecond)
		ok, err := tx.Orders().CompareAndSetStatus(ctx, orderID, from, to, at)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.ConcurrentModification("order")
		}

		if from.RestoresStock(to) {
			for _, item := range order.Items {
				if err := tx.Catalog().IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
					return err
				}
			}
		}

		order.Status = to
		order.UpdatedAt = at
		updated = order
		change = models.StatusChange{OrderID: order.ID, UserID: order.UserID, From: from, To: to, ChangedAt: at}
		return nil
	})

	ctx = e.log.WithFields(ctx, map[string]any{"order_id": orderID.String(), "to_status": string(to)})
	if err != nil {
		e.log.Warn(ctx, "order.transition_failed", err)
		return nil, err
	}

	e.metrics.StatusTransition(string(change.From), string(change.To))
	e.log.Info(e.log.WithField(ctx, "from_status", string(change.From)), "order.status_updated")
	e.notify(ctx, change)
	return updated, nil
}

// notify runs after commit. Its outcome never reaches the caller.
func (e *Engine) notify(ctx context.Context, change models.StatusChange) {
	if e.sink == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.notifyTimeout)
	defer cancel()

	if err := e.sink.Notify(nctx, change); err != nil {
		e.metrics.NotifyFailed()
		if errors.Is(err, context.DeadlineExceeded) {
			e.log.Warn(ctx, "notify.timeout", err)
			return
		}
		e.log.Warn(ctx, "notify.failed", err)
	}
}

func (e *Engine) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, apperrors.Validation("order_id", "is required")
	}
	return e.store.Orders().Get(ctx, orderID)
}

// GetUserOrder returns the order only if userID owns it.
func (e *Engine) GetUserOrder(ctx context.Context, userID int64, orderID uuid.UUID) (*models.Order, error) {
	order, err := e.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperrors.NotFound("order")
	}
	return order, nil
}

// ListOrders pages through one user's orders, newest first.
func (e *Engine) ListOrders(ctx context.Context, userID int64, cursor string, limit int) (*repository.CursorPage[models.Order], error) {
	if err := validation.ID("user_id", userID); err != nil {
		return nil, err
	}
	return e.list(ctx, repository.OrderFilter{UserID: &userID}, cursor, limit)
}

// ListAllOrders pages through every order, optionally narrowed to one status.
func (e *Engine) ListAllOrders(ctx context.Context, status *models.OrderStatus, cursor string, limit int) (*repository.CursorPage[models.Order], error) {
	if status != nil && !status.Valid() {
		return nil, apperrors.Validation("status", "is not a known order status")
	}
	return e.list(ctx, repository.OrderFilter{Status: status}, cursor, limit)
}

func (e *Engine) list(ctx context.Context, filter repository.OrderFilter, cursor string, limit int) (*repository.CursorPage[models.Order], error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	position, err := repository.DecodeCursor(cursor)
	if err != nil {
		return nil, apperrors.Validation("cursor", "is malformed")
	}
	filter.BeforeCreatedAt = position.CreatedAt
	filter.BeforeID = position.ID
	filter.Limit = limit + 1

	items, err := e.store.Orders().List(ctx, filter)
	if err != nil {
		return nil, err
	}

	page := &repository.CursorPage[models.Order]{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		page.HasMore = true
		last := page.Items[limit-1]
		page.NextCursor = repository.EncodeCursor(repository.OrderCursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}
