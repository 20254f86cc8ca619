package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPaid   PaymentStatus = "paid"
	PaymentStatusUnpaid PaymentStatus = "unpaid"
)

// OrderItem is a cart item enriched with the supplier resolved from its
// parent product. SupplierID is nil when the parent product (or its
// supplier field) was missing at placement time.
type OrderItem struct {
	CartItem
	ProductID  string  `json:"productId"`
	VariantID  string  `json:"variantId"`
	SupplierID *string `json:"supplierId"`
}

// Order is immutable once the placement transaction commits it.
type Order struct {
	ID            string
	BuyerID       string
	Items         []OrderItem
	Total         decimal.Decimal
	Address       ShippingAddress
	PaymentMethod string
	Status        OrderStatus
	PaymentStatus PaymentStatus
	TxRef         string

	// Snapshot of the gateway's verification response.
	GatewayAmount   decimal.Decimal
	GatewayCurrency string
	PayerEmail      string
	PayerFirstName  string
	PayerLastName   string
	PaidAt          time.Time

	CreatedAt time.Time
}
