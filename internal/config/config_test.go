package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SHOPEASY_STORE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverMemory, cfg.Store.Driver)
	assert.Equal(t, NotifyModeLog, cfg.Notify.Mode)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 6, cfg.OTP.CodeLength)

	rate, fee, threshold, err := cfg.Pricing.Decimals()
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("0.18")))
	assert.True(t, fee.Equal(decimal.NewFromInt(40)))
	assert.True(t, threshold.Equal(decimal.NewFromInt(500)))
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("SHOPEASY_STORE_DRIVER", "mongo")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestLoadRejectsNegativePricing(t *testing.T) {
	t.Setenv("SHOPEASY_PRICING_SHIPPING_FEE", "-1")

	_, err := Load()
	require.Error(t, err)
}
