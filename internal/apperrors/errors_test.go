package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindMetadata(t *testing.T) {
	cases := []struct {
		err    *Error
		status int
		retry  bool
	}{
		{Validation("quantity", "must be positive"), http.StatusBadRequest, false},
		{NotFound("product"), http.StatusNotFound, false},
		{InsufficientStock(7), http.StatusConflict, false},
		{InvalidTransition("delivered", "pending"), http.StatusConflict, false},
		{EmptyCart(), http.StatusConflict, false},
		{ConcurrentModification("order"), http.StatusConflict, false},
		{Infrastructure(errors.New("dial tcp"), "store unavailable"), http.StatusServiceUnavailable, true},
		{New(CodeInternal, "boom"), http.StatusInternalServerError, false},
	}
	for _, tc := range cases {
		meta := MetadataFor(tc.err.Kind())
		assert.Equal(t, tc.status, meta.HTTPStatus, tc.err.Code())
		assert.Equal(t, tc.retry, tc.err.Retryable(), tc.err.Code())
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("checkout: %w", InsufficientStock(3))

	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.False(t, errors.Is(err, ErrEmptyCart))

	typed := As(err)
	require.NotNil(t, typed)
	assert.Equal(t, InsufficientStockDetails{ProductID: 3}, typed.Details())
	assert.Equal(t, CodeInsufficientStock, CodeOf(err))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Infrastructure(cause, "load cart")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, IsKind(err, KindInfrastructure))
}

func TestCodeOfUntyped(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	assert.Nil(t, As(nil))
}
