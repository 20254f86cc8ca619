package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrVariantNotFound aborts placement when a cart item references a
	// variant row that does not exist in the catalog.
	ErrVariantNotFound = errors.New("variant not found")

	// ErrSupplierUnresolved aborts placement when the parent product is
	// missing and the require-supplier policy is enabled.
	ErrSupplierUnresolved = errors.New("supplier unresolved for product")
)

// Variant is the per-variant stock record. The placement transaction is
// its only writer.
type Variant struct {
	ProductID string
	VariantID string
	Stock     int
	UpdatedAt time.Time
}

// Product carries the supplier attribution copied onto order line items.
type Product struct {
	ID         string
	Name       string
	SupplierID *string
}

// InsufficientStockError names the offending item and quantities so the
// rejection can be surfaced verbatim to the shopper.
type InsufficientStockError struct {
	ItemID    string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d",
		e.ItemID, e.Available, e.Requested)
}
