package domain

import "fmt"

// ValidationError is returned when an add request is rejected at the facade.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// Validate checks the required fields of an add request. Quantity is not
// checked here: the facade clamps it instead of rejecting.
func (in LineItemInput) Validate() error {
	switch {
	case in.ProductID == "":
		return NewValidationError("productId", "must not be empty")
	case in.Name == "":
		return NewValidationError("name", "must not be empty")
	case in.Currency == "":
		return NewValidationError("currency", "must not be empty")
	case in.UnitPrice.IsNegative():
		return NewValidationError("unitPrice", "must not be negative")
	}
	return nil
}

// ClampQuantity maps a requested add quantity into [1, MaxLineQuantity].
func ClampQuantity(q int) int {
	if q < 1 {
		return 1
	}
	if q > MaxLineQuantity {
		return MaxLineQuantity
	}
	return q
}
