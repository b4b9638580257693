package httpapi

import (
	"net/http"
	"strings"

	"github.com/suriekke/shopeasy2-sub000/internal/apperrors"
	"github.com/suriekke/shopeasy2-sub000/internal/logger"
	"github.com/suriekke/shopeasy2-sub000/internal/models"
	"github.com/suriekke/shopeasy2-sub000/internal/orders"
	"github.com/suriekke/shopeasy2-sub000/internal/repository"
)

type createOrderRequest struct {
	ShippingAddress models.Address `json:"shipping_address"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type orderResponse struct {
	*models.Order
	// Label older admin screens still show for this status.
	LegacyStatus string `json:"legacy_status"`
}

type orderPageResponse struct {
	Items      []orderResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
	HasMore    bool            `json:"has_more"`
}

func newOrderResponse(order *models.Order) orderResponse {
	return orderResponse{Order: order, LegacyStatus: order.Status.LegacyLabel()}
}

func newOrderPageResponse(page *repository.CursorPage[models.Order]) orderPageResponse {
	out := orderPageResponse{
		Items:      make([]orderResponse, 0, len(page.Items)),
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	}
	for i := range page.Items {
		out.Items = append(out.Items, newOrderResponse(&page.Items[i]))
	}
	return out
}

func OrderCreate(engine *orders.Engine, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createOrderRequest
		if err := DecodeJSONBody(w, r, &payload); err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}

		session := SessionFromContext(r.Context())
		order, err := engine.CreateOrder(r.Context(), session.UserID, payload.ShippingAddress)
		if err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}
		WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}

func OrderList(engine *orders.Engine, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r, "limit", orders.DefaultPageSize, 1, orders.MaxPageSize)
		if err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}

		session := SessionFromContext(r.Context())
		page, err := engine.ListOrders(r.Context(), session.UserID, r.URL.Query().Get("cursor"), limit)
		if err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}
		WriteSuccess(w, newOrderPageResponse(page))
	}
}

// OrderGet returns any order to an admin and only their own orders to a customer.
func OrderGet(engine *orders.Engine, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}

		session := SessionFromContext(r.Context())
		var order *models.Order
		if session.IsAdmin() {
			order, err = engine.GetOrder(r.Context(), id)
		} else {
			order, err = engine.GetUserOrder(r.Context(), session.UserID, id)
		}
		if err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}
		WriteSuccess(w, newOrderResponse(order))
	}
}

func OrderCancel(engine *orders.Engine, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}

		session := SessionFromContext(r.Context())
		order, err := engine.Cancel(r.Context(), session.UserID, id)
		if err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}
		WriteSuccess(w, newOrderResponse(order))
	}
}

func OrderUpdateStatus(engine *orders.Engine, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}
		var payload updateStatusRequest
		if err := DecodeJSONBody(w, r, &payload); err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}
		status, err := models.ParseOrderStatus(strings.TrimSpace(payload.Status))
		if err != nil {
			WriteError(r.Context(), log, w, apperrors.Validation("status", "is not a known order status"))
			return
		}

		order, err := engine.UpdateStatus(r.Context(), id, status)
		if err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}
		WriteSuccess(w, newOrderResponse(order))
	}
}

func AdminOrderList(engine *orders.Engine, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r, "limit", orders.DefaultPageSize, 1, orders.MaxPageSize)
		if err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}

		var status *models.OrderStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := models.ParseOrderStatus(raw)
			if err != nil {
				WriteError(r.Context(), log, w, apperrors.Validation("status", "is not a known order status"))
				return
			}
			status = &parsed
		}

		page, err := engine.ListAllOrders(r.Context(), status, r.URL.Query().Get("cursor"), limit)
		if err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}
		WriteSuccess(w, newOrderPageResponse(page))
	}
}
