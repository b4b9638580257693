// Package validation holds the input checks shared by the cart ledger, the order engine
// and the catalog. All failures are apperrors validation errors.
package validation

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/suriekke/shopeasy2-sub000/internal/apperrors"
	"github.com/suriekke/shopeasy2-sub000/internal/models"
)

const moneyScale = 2

// MaxQuantity caps a single cart line or order item.
const MaxQuantity = 10000

func ID(field string, id int64) error {
	if id <= 0 {
		return apperrors.Validation(field, "must be a positive identifier")
	}
	return nil
}

func Quantity(field string, qty int) error {
	if qty <= 0 {
		return apperrors.Validation(field, "must be a positive integer")
	}
	if qty > MaxQuantity {
		return apperrors.Validation(field, "exceeds the maximum allowed quantity")
	}
	return nil
}

func StockLevel(field string, qty int) error {
	if qty < 0 {
		return apperrors.Validation(field, "must not be negative")
	}
	return nil
}

// Money accepts non-negative amounts with at most two fractional digits.
func Money(field string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return apperrors.Validation(field, "must not be negative")
	}
	if amount.Exponent() < -moneyScale && !amount.Equal(amount.Round(moneyScale)) {
		return apperrors.Validation(field, "must have at most two decimal places")
	}
	return nil
}

func Address(addr models.Address) error {
	required := map[string]string{
		"shipping_address.name":        addr.Name,
		"shipping_address.phone":       addr.Phone,
		"shipping_address.line1":       addr.Line1,
		"shipping_address.city":        addr.City,
		"shipping_address.state":       addr.State,
		"shipping_address.postal_code": addr.PostalCode,
		"shipping_address.country":     addr.Country,
	}
	details := apperrors.FieldDetails{}
	for field, value := range required {
		if strings.TrimSpace(value) == "" {
			details[field] = "is required"
		}
	}
	if len(details) > 0 {
		return apperrors.New(apperrors.CodeValidation, "shipping address is incomplete").WithDetails(details)
	}
	return nil
}

// Phone accepts an E.164-style number: optional leading +, 8 to 15 digits.
func Phone(phone string) error {
	digits := strings.TrimPrefix(phone, "+")
	if len(digits) < 8 || len(digits) > 15 {
		return apperrors.Validation("phone", "must contain 8 to 15 digits")
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return apperrors.Validation("phone", "must contain digits only")
		}
	}
	return nil
}
