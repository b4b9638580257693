package apperrors

import "fmt"

// Sentinels for errors.Is checks. Matching is by code only.
var (
	ErrNotFound               = New(CodeNotFound, "not found")
	ErrEmptyCart              = New(CodeEmptyCart, "cart is empty")
	ErrInsufficientStock      = New(CodeInsufficientStock, "insufficient stock")
	ErrInvalidTransition      = New(CodeInvalidTransition, "invalid status transition")
	ErrConcurrentModification = New(CodeConcurrentModification, "resource was modified concurrently")
)

type InsufficientStockDetails struct {
	ProductID int64 `json:"product_id"`
}

type InvalidTransitionDetails struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type FieldDetails map[string]string

func Validation(field, message string) *Error {
	return New(CodeValidation, fmt.Sprintf("%s %s", field, message)).
		WithDetails(FieldDetails{field: message})
}

func NotFound(entity string) *Error {
	return New(CodeNotFound, entity+" not found")
}

func EmptyCart() *Error {
	return New(CodeEmptyCart, "cart is empty")
}

func InsufficientStock(productID int64) *Error {
	return New(CodeInsufficientStock, fmt.Sprintf("insufficient stock for product %d", productID)).
		WithDetails(InsufficientStockDetails{ProductID: productID})
}

func InvalidTransition(from, to string) *Error {
	return New(CodeInvalidTransition, fmt.Sprintf("cannot move order from %s to %s", from, to)).
		WithDetails(InvalidTransitionDetails{From: from, To: to})
}

func ConcurrentModification(entity string) *Error {
	return New(CodeConcurrentModification, entity+" was modified concurrently")
}

func Infrastructure(err error, message string) *Error {
	return Wrap(CodeDependency, err, message)
}
