package domain

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrMalformedItemID = errors.New("cart item id must be <productID>_<variantID>")

// CartItem is one line of the shopper's cart. ID is the composite
// "<productID>_<variantID>" id the mobile app stores in its cart blob.
type CartItem struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Price      decimal.Decimal   `json:"price"`
	Quantity   int               `json:"quantity"`
	Stock      int               `json:"stock"` // snapshot at add-time, informational only
	Attributes map[string]string `json:"attributes,omitempty"`
}

// ParseItemID decomposes a composite cart item id. The id must split
// into exactly two non-empty parts.
func ParseItemID(id string) (productID, variantID string, err error) {
	parts := strings.Split(id, "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", ErrMalformedItemID
	}
	return parts[0], parts[1], nil
}

// ShippingAddress is free-form; the app persists the last used one for
// reuse across checkouts.
type ShippingAddress struct {
	Country    string   `json:"country"`
	Name       string   `json:"name"`
	Street     string   `json:"street"`
	Apartment  string   `json:"apartment,omitempty"`
	City       string   `json:"city"`
	PostalCode string   `json:"postalCode"`
	Phone      string   `json:"phone"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
}
