package model

import (
	"fmt"
	"strings"
)

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON        = "INVALID_JSON"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeEmptyCart          = "EMPTY_CART"
	ErrCodeProductNotFound    = "PRODUCT_NOT_FOUND"
	ErrCodeProductUnavailable = "PRODUCT_UNAVAILABLE"
	ErrCodeInsufficientStock  = "INSUFFICIENT_STOCK"
	ErrCodeMissingProof       = "MISSING_PROOF"
	ErrCodeOrderNotFound      = "ORDER_NOT_FOUND"
	ErrCodeProfileNotFound    = "PROFILE_NOT_FOUND"
	ErrCodeInvalidState       = "INVALID_STATE"
	ErrCodeUnauthorised       = "UNAUTHORIZED"
	ErrCodeUnauthenticated    = "UNAUTHENTICATED"
	ErrCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
)

// DomainError is a business rule failure that is safe to show to the caller.
type DomainError struct {
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches domain errors by code so wrapped copies compare equal to the sentinels.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrEmptyCart       = NewDomainError(ErrCodeEmptyCart, "cart is empty")
	ErrMissingProof    = NewDomainError(ErrCodeMissingProof, "payment proof must be uploaded before confirming the order")
	ErrOrderNotFound   = NewDomainError(ErrCodeOrderNotFound, "order not found")
	ErrProductNotFound = NewDomainError(ErrCodeProductNotFound, "product not found")
	ErrProfileNotFound = NewDomainError(ErrCodeProfileNotFound, "profile not found")
	ErrUnauthorised    = NewDomainError(ErrCodeUnauthorised, "not allowed to modify this order")
	ErrUnauthenticated = NewDomainError(ErrCodeUnauthenticated, "authentication required")
)

// NewValidationError reports malformed or missing input.
func NewValidationError(format string, args ...any) *DomainError {
	return NewDomainError(ErrCodeValidation, fmt.Sprintf(format, args...))
}

// NewProductNotFoundError names the cart product ids that do not exist.
func NewProductNotFoundError(ids []string) *DomainError {
	return &DomainError{
		Code:    ErrCodeProductNotFound,
		Message: "products not found: " + strings.Join(ids, ", "),
		Details: ids,
	}
}

// NewProductUnavailableError names the cart products that are no longer sold.
func NewProductUnavailableError(names []string) *DomainError {
	return &DomainError{
		Code:    ErrCodeProductUnavailable,
		Message: "products not available: " + strings.Join(names, ", "),
		Details: names,
	}
}

// NewInsufficientStockError lists every cart line that cannot be covered by inventory.
func NewInsufficientStockError(shortages []StockShortage) *DomainError {
	parts := make([]string, len(shortages))
	for i, s := range shortages {
		parts[i] = fmt.Sprintf("%s (requested %d, available %d)", s.Product, s.Requested, s.Available)
	}
	return &DomainError{
		Code:    ErrCodeInsufficientStock,
		Message: "insufficient stock: " + strings.Join(parts, "; "),
		Details: shortages,
	}
}

// NewInvalidStateError reports an operation attempted on an order in the wrong status.
func NewInvalidStateError(status OrderStatus, action string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidState,
		Message: fmt.Sprintf("cannot %s an order with status %s", action, status),
		Details: map[string]string{"status": string(status)},
	}
}
