package port

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/davidumoru/shopcore/internal/core/domain"
)

// OrderLine is a cart item with its composite id already decomposed.
// Callers validate and split ids before the draft reaches storage.
type OrderLine struct {
	ProductID string
	VariantID string
	Item      domain.CartItem
}

// OrderDraft is everything the placement transaction needs to write an
// order: the verified payment snapshot plus the cart and address.
type OrderDraft struct {
	TxRef         string
	BuyerID       string
	PaymentMethod string
	Amount        decimal.Decimal
	Lines         []OrderLine
	Address       domain.ShippingAddress
	Verification  *domain.Verification
}

// PlacedOrder reports the committed order id. AlreadyPlaced marks an
// idempotent replay: an order for the draft's tx_ref existed before the
// call and no writes were performed.
type PlacedOrder struct {
	OrderID       string
	AlreadyPlaced bool
}

type CatalogRepository interface {
	// PlaceOrder runs the all-or-nothing order placement: stock check and
	// decrement for every line plus the order insert commit together, or
	// none of them apply.
	PlaceOrder(ctx context.Context, draft OrderDraft) (*PlacedOrder, error)

	// GetVariant retrieves a variant stock record, nil when absent.
	GetVariant(ctx context.Context, productID, variantID string) (*domain.Variant, error)

	// GetOrderByTxRef retrieves the order created for a transaction
	// reference, nil when none exists.
	GetOrderByTxRef(ctx context.Context, txRef string) (*domain.Order, error)
}
