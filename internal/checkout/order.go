package checkout

import (
	"fmt"
	"strings"

	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCOD   PaymentMethod = "cod"
	PaymentPayOS PaymentMethod = "payos"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCOD || m == PaymentPayOS
}

type CustomerInfo struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// OrderDetails is what the buyer fills in on the checkout form.
type OrderDetails struct {
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	Address       string        `json:"address"`
	Notes         string        `json:"notes,omitempty"`
	Customer      *CustomerInfo `json:"customerInfo,omitempty"`
}

// OrderRequest is the body sent to the order service.
type OrderRequest struct {
	Items         []OrderItem     `json:"items"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Currency      string          `json:"currency"`
	Notes         string          `json:"notes"`
	Address       string          `json:"address"`
	Customer      *CustomerInfo   `json:"customerInfo,omitempty"`
}

// BuildOrder turns the cart into an order request. The cart itself is not
// touched; it is cleared once the order service confirms the checkout.
func BuildOrder(s domain.Snapshot, details OrderDetails) (OrderRequest, error) {
	summary, err := Summarize(s)
	if err != nil {
		return OrderRequest{}, err
	}

	if !details.PaymentMethod.Valid() {
		return OrderRequest{}, fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, details.PaymentMethod)
	}
	address := strings.TrimSpace(details.Address)
	if address == "" {
		return OrderRequest{}, domain.NewValidationError("address", "must not be empty")
	}

	return OrderRequest{
		Items:         summary.Items,
		PaymentMethod: details.PaymentMethod,
		TotalAmount:   summary.Total,
		Currency:      summary.Currency,
		Notes:         strings.TrimSpace(details.Notes),
		Address:       address,
		Customer:      details.Customer,
	}, nil
}
