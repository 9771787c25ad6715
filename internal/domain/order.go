package domain

import (
	"errors"
	"time"
)

const (
	OrderStatusPending = "pending"

	PaymentMethodCOD      = "cod"
	PaymentMethodCODTitle = "Cash on Delivery"
)

// ErrDuplicateOrder is returned by order ledgers when an idempotency key
// has already been used.
var ErrDuplicateOrder = errors.New("domain: duplicate order idempotency key")

// ValidatedOrder is an order request the model emitted that passed validation.
type ValidatedOrder struct {
	Products []ProductRef `json:"products"`
	Email    string       `json:"email"`
	Phone    string       `json:"phone"`
	Address  string       `json:"address"`
}

type Address struct {
	FirstName string
	LastName  string
	Address1  string
	City      string
	Postcode  string
	Country   string
	Email     string
	Phone     string
}

type LineItem struct {
	ProductID int64
	Name      string
	Quantity  int
	UnitPrice Money
	Total     Money
}

type ShippingLine struct {
	MethodID string
	Title    string
	Cost     Money
}

// Order is a ledger record in the making.
type Order struct {
	ID             int64
	Status         string
	CustomerID     int64
	IdempotencyKey string
	Billing        Address
	Shipping       Address
	Lines          []LineItem
	ShippingLine   ShippingLine
	PaymentMethod  string
	PaymentTitle   string
	Currency       string
	CreatedAt      time.Time
}

type OrderTotals struct {
	Subtotal Money
	Shipping Money
	Total    Money
}

type OrderResult struct {
	OrderID        int64  `json:"order_id"`
	Status         string `json:"status"`
	Subtotal       Money  `json:"subtotal"`
	ShippingTotal  Money  `json:"shipping_total"`
	Total          Money  `json:"total"`
	Currency       string `json:"currency"`
	CurrencySymbol string `json:"currency_symbol"`
}
