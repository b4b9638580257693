// Package pricing quotes the tax and shipping charges added to an order subtotal.
package pricing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/suriekke/shopeasy2-sub000/internal/config"
	"github.com/suriekke/shopeasy2-sub000/internal/models"
)

const moneyScale = 2

type Charges struct {
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
}

// Rule computes charges for a subtotal shipped to addr.
type Rule interface {
	Quote(ctx context.Context, subtotal decimal.Decimal, addr models.Address) (Charges, error)
}

// FlatRate charges a fixed tax rate and a flat shipping fee that is waived once the
// subtotal reaches FreeShippingThreshold. A zero threshold never waives shipping.
type FlatRate struct {
	TaxRate               decimal.Decimal
	ShippingFee           decimal.Decimal
	FreeShippingThreshold decimal.Decimal
}

var _ Rule = FlatRate{}

func NewFlatRate(cfg config.PricingConfig) (FlatRate, error) {
	taxRate, shippingFee, threshold, err := cfg.Decimals()
	if err != nil {
		return FlatRate{}, err
	}
	return FlatRate{TaxRate: taxRate, ShippingFee: shippingFee, FreeShippingThreshold: threshold}, nil
}

func (r FlatRate) Quote(ctx context.Context, subtotal decimal.Decimal, _ models.Address) (Charges, error) {
	if err := ctx.Err(); err != nil {
		return Charges{}, err
	}

	shipping := r.ShippingFee
	if r.FreeShippingThreshold.IsPositive() && subtotal.GreaterThanOrEqual(r.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	return Charges{
		Tax:      subtotal.Mul(r.TaxRate).Round(moneyScale),
		Shipping: shipping.Round(moneyScale),
	}, nil
}

// RuleFunc adapts a function to Rule.
type RuleFunc func(ctx context.Context, subtotal decimal.Decimal, addr models.Address) (Charges, error)

func (f RuleFunc) Quote(ctx context.Context, subtotal decimal.Decimal, addr models.Address) (Charges, error) {
	return f(ctx, subtotal, addr)
}
