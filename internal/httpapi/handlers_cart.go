package httpapi

import (
	"net/http"

	"github.com/suriekke/shopeasy2-sub000/internal/cart"
	"github.com/suriekke/shopeasy2-sub000/internal/logger"
	"github.com/suriekke/shopeasy2-sub000/internal/metrics"
	"github.com/suriekke/shopeasy2-sub000/internal/validation"
)

type addItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	// Omitted or zero means one.
	Quantity int `json:"quantity" validate:"gte=0"`
}

type setQuantityRequest struct {
	// Zero or less removes the line.
	Quantity *int `json:"quantity" validate:"required"`
}

func CartGet(svc *cart.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := SessionFromContext(r.Context())
		snapshot, err := svc.Snapshot(r.Context(), session.UserID)
		if err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}
		WriteSuccess(w, snapshot)
	}
}

func CartAddItem(svc *cart.Service, m *metrics.Metrics, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload addItemRequest
		if err := DecodeJSONBody(w, r, &payload); err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}
		if payload.Quantity > validation.MaxQuantity {
			WriteError(r.Context(), log, w, validation.Quantity("quantity", payload.Quantity))
			return
		}

		session := SessionFromContext(r.Context())
		entry, err := svc.AddItem(r.Context(), session.UserID, payload.ProductID, payload.Quantity)
		if err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}
		m.CartMutation("add")
		WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}

func CartSetQuantity(svc *cart.Service, m *metrics.Metrics, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := pathInt64(r, "product_id")
		if err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}
		var payload setQuantityRequest
		if err := DecodeJSONBody(w, r, &payload); err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}

		session := SessionFromContext(r.Context())
		entry, err := svc.SetQuantity(r.Context(), session.UserID, productID, *payload.Quantity)
		if err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}
		m.CartMutation("set")
		// A removed line is reported as null data.
		WriteSuccess(w, entry)
	}
}

func CartRemoveItem(svc *cart.Service, m *metrics.Metrics, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := pathInt64(r, "product_id")
		if err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}

		session := SessionFromContext(r.Context())
		if err := svc.RemoveItem(r.Context(), session.UserID, productID); err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}
		m.CartMutation("remove")
		WriteSuccess(w, map[string]bool{"removed": true})
	}
}

func CartClear(svc *cart.Service, m *metrics.Metrics, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := SessionFromContext(r.Context())
		if err := svc.Clear(r.Context(), session.UserID); err != nil {
			WriteError(r.Context(), log, w, err)
			return
		}
		m.CartMutation("clear")
		WriteSuccess(w, map[string]bool{"cleared": true})
	}
}
