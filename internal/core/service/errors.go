package service

import (
	"errors"
	"fmt"

	"github.com/davidumoru/shopcore/internal/core/domain"
)

var (
	ErrMissingTxRef     = errors.New("transaction reference is required")
	ErrMissingBuyer     = errors.New("buyer id is required")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrEmptyCart        = errors.New("cart is empty")
	ErrCheckoutInFlight = errors.New("a checkout for this transaction reference is already in flight")
)

// MalformedCartItemError rejects a cart before any read or write occurs.
type MalformedCartItemError struct {
	ItemID string
	Reason string
}

func (e *MalformedCartItemError) Error() string {
	return fmt.Sprintf("malformed cart item %q: %s", e.ItemID, e.Reason)
}

// VerificationRejectedError reports a failed or timed-out verification
// together with how many manual retries the shopper has left.
type VerificationRejectedError struct {
	Verification      *domain.Verification
	AttemptsRemaining int
	Err               error
}

func (e *VerificationRejectedError) Error() string {
	return fmt.Sprintf("verification %s: %s (%d attempts remaining)",
		e.Verification.State, e.Verification.Reason, e.AttemptsRemaining)
}

func (e *VerificationRejectedError) Unwrap() error { return e.Err }

// OrderPlacementError wraps a transaction abort that is not a business
// rejection: the payment already cleared, so the caller may retry
// placement without re-charging.
type OrderPlacementError struct {
	Err error
}

func (e *OrderPlacementError) Error() string {
	return fmt.Sprintf("order placement failed: %v", e.Err)
}

func (e *OrderPlacementError) Unwrap() error { return e.Err }
