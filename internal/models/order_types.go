package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/kennethcatiis/ecommerce-platform/internal/apperr"
)

// Status is the fulfillment state of a transaction.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var statuses = []Status{
	StatusPending, StatusProcessing, StatusShipped,
	StatusDelivered, StatusCompleted, StatusCancelled,
}

func (s Status) Valid() bool {
	for _, known := range statuses {
		if s == known {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// ParseStatus accepts the lowercase status names only.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.TrimSpace(s))
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", apperr.ErrValidation, s)
	}
	return st, nil
}

type PaymentMethod string

const (
	PaymentCard   PaymentMethod = "card"
	PaymentPayPal PaymentMethod = "paypal"
	PaymentCash   PaymentMethod = "cash"
)

// ParsePaymentMethod defaults an empty value to card.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch pm := PaymentMethod(strings.TrimSpace(s)); pm {
	case "":
		return PaymentCard, nil
	case PaymentCard, PaymentPayPal, PaymentCash:
		return pm, nil
	}
	return "", fmt.Errorf("%w: unknown payment method %q", apperr.ErrValidation, s)
}

type ShippingAddress struct {
	Street  string `json:"street" binding:"required"`
	City    string `json:"city" binding:"required"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode" binding:"required"`
	Country string `json:"country" binding:"required"`
}

// OrderItem is a priced snapshot of a catalog product taken at checkout.
type OrderItem struct {
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	UnitPrice Money  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	ImageRef  string `json:"image"`
}

func (i OrderItem) LineTotal() Money {
	return i.UnitPrice.Times(i.Quantity)
}

// Transaction is the order record written by checkout. Items and
// TotalAmount never change after creation; only Status, Notes and
// UpdatedAt do.
type Transaction struct {
	TransactionID   string          `json:"transactionId"`
	UserID          int64           `json:"userId"`
	UserName        string          `json:"userName"`
	UserEmail       string          `json:"userEmail"`
	Items           []OrderItem     `json:"items"`
	TotalAmount     Money           `json:"totalAmount"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	Status          Status          `json:"status"`
	Notes           string          `json:"notes"`
	IdempotencyKey  string          `json:"-"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func SumItems(items []OrderItem) Money {
	var total Money
	for _, item := range items {
		total += item.LineTotal()
	}
	return total
}

// Validate checks the invariants a stored transaction must satisfy.
func (t *Transaction) Validate() error {
	switch {
	case t.TransactionID == "":
		return fmt.Errorf("%w: transaction id is required", apperr.ErrValidation)
	case t.UserID <= 0:
		return fmt.Errorf("%w: user id is required", apperr.ErrValidation)
	case len(t.Items) == 0:
		return fmt.Errorf("%w: transaction has no items", apperr.ErrValidation)
	case !t.Status.Valid():
		return fmt.Errorf("%w: unknown status %q", apperr.ErrValidation, t.Status)
	}
	for _, item := range t.Items {
		if item.Quantity <= 0 || item.UnitPrice < 0 {
			return fmt.Errorf("%w: bad line for product %d", apperr.ErrValidation, item.ProductID)
		}
	}
	if sum := SumItems(t.Items); sum != t.TotalAmount {
		return fmt.Errorf("%w: total %s does not match items %s", apperr.ErrValidation, t.TotalAmount, sum)
	}
	return nil
}

// Clone returns a deep copy so stored records are never aliased by callers.
func (t *Transaction) Clone() *Transaction {
	out := *t
	out.Items = append([]OrderItem(nil), t.Items...)
	return &out
}
