package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/davidumoru/shopcore/internal/core/domain"
	"github.com/davidumoru/shopcore/internal/port"
)

// DefaultMaxVerifyAttempts bounds manual verification retries per
// checkout session; past it the app falls back to unbounded manual
// retry with a support hint.
const DefaultMaxVerifyAttempts = 3

type CheckoutService struct {
	gateway           port.PaymentGateway
	catalog           port.CatalogRepository
	cache             port.DeviceCacheRepository
	maxVerifyAttempts int
}

func NewCheckoutService(gateway port.PaymentGateway, catalog port.CatalogRepository, cache port.DeviceCacheRepository, maxVerifyAttempts int) *CheckoutService {
	if maxVerifyAttempts <= 0 {
		maxVerifyAttempts = DefaultMaxVerifyAttempts
	}
	return &CheckoutService{
		gateway:           gateway,
		catalog:           catalog,
		cache:             cache,
		maxVerifyAttempts: maxVerifyAttempts,
	}
}

// CheckoutInput is one checkout attempt as submitted by the app.
// Attempt is the 1-based verification attempt counter the app threads
// through its retries.
type CheckoutInput struct {
	DeviceID      string
	TxRef         string
	BuyerID       string
	Amount        decimal.Decimal
	PaymentMethod string
	Items         []domain.CartItem
	Address       domain.ShippingAddress
	Attempt       int
}

// CheckoutResult mirrors the navigation contract on success.
type CheckoutResult struct {
	OrderID       string
	TxRef         string
	Amount        decimal.Decimal
	AlreadyPlaced bool
}

// VerifyPayment classifies the gateway's answer into the verification
// state machine. It never returns an error; failed and timed-out states
// carry the reason instead.
func (s *CheckoutService) VerifyPayment(ctx context.Context, txRef string) *domain.Verification {
	v, err := s.gateway.Verify(ctx, txRef)
	switch {
	case err == nil:
		return v
	case errors.Is(err, port.ErrVerificationTimeout):
		return &domain.Verification{
			State:  domain.VerificationTimedOut,
			TxRef:  txRef,
			Reason: err.Error(),
		}
	default:
		var failed *port.VerificationFailedError
		reason := err.Error()
		if errors.As(err, &failed) {
			reason = failed.Reason
		}
		return &domain.Verification{
			State:  domain.VerificationFailed,
			TxRef:  txRef,
			Reason: reason,
		}
	}
}

// Checkout runs the sequential verify-then-place workflow. Placement is
// never reached unless verification reports success; a failed or
// timed-out verification short-circuits with the remaining retry budget.
func (s *CheckoutService) Checkout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}

	ok, err := s.cache.AcquireCheckoutLock(ctx, in.TxRef)
	if err != nil {
		return nil, &OrderPlacementError{Err: err}
	}
	if !ok {
		return nil, ErrCheckoutInFlight
	}
	defer func() {
		if err := s.cache.ReleaseCheckoutLock(context.WithoutCancel(ctx), in.TxRef); err != nil {
			log.Warn().Err(err).Str("txRef", in.TxRef).Msg("failed to release checkout lock")
		}
	}()

	v := s.VerifyPayment(ctx, in.TxRef)
	if v.State != domain.VerificationSuccess {
		attempt := in.Attempt
		if attempt < 1 {
			attempt = 1
		}
		remaining := s.maxVerifyAttempts - attempt
		if remaining < 0 {
			remaining = 0
		}
		return nil, &VerificationRejectedError{
			Verification:      v,
			AttemptsRemaining: remaining,
		}
	}

	return s.PlaceOrder(ctx, in, v)
}

// PlaceOrder validates the cart, runs the atomic placement, and clears
// the device cart afterwards. The cart clear is best-effort: the order
// is final once the transaction commits and is never rolled back for a
// local-cache failure.
func (s *CheckoutService) PlaceOrder(ctx context.Context, in CheckoutInput, v *domain.Verification) (*CheckoutResult, error) {
	lines, err := buildLines(in.Items)
	if err != nil {
		return nil, err
	}

	placed, err := s.catalog.PlaceOrder(ctx, port.OrderDraft{
		TxRef:         in.TxRef,
		BuyerID:       in.BuyerID,
		PaymentMethod: in.PaymentMethod,
		Amount:        in.Amount,
		Lines:         lines,
		Address:       in.Address,
		Verification:  v,
	})
	if err != nil {
		var insufficient *domain.InsufficientStockError
		if errors.As(err, &insufficient) ||
			errors.Is(err, domain.ErrVariantNotFound) ||
			errors.Is(err, domain.ErrSupplierUnresolved) {
			return nil, err
		}
		return nil, &OrderPlacementError{Err: err}
	}

	if placed.AlreadyPlaced {
		log.Info().Str("txRef", in.TxRef).Str("orderId", placed.OrderID).
			Msg("order already placed for tx_ref; returning existing order")
	}

	if err := s.cache.Delete(ctx, in.DeviceID, port.KeyCart); err != nil {
		log.Warn().Err(err).Str("deviceId", in.DeviceID).Msg("failed to clear cart after order placement")
	}

	return &CheckoutResult{
		OrderID:       placed.OrderID,
		TxRef:         in.TxRef,
		Amount:        in.Amount,
		AlreadyPlaced: placed.AlreadyPlaced,
	}, nil
}

// validate enforces the placement preconditions before any I/O.
func (s *CheckoutService) validate(in CheckoutInput) error {
	if in.TxRef == "" {
		return ErrMissingTxRef
	}
	if in.BuyerID == "" {
		return ErrMissingBuyer
	}
	if !in.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if len(in.Items) == 0 {
		return ErrEmptyCart
	}
	for _, item := range in.Items {
		if _, _, err := domain.ParseItemID(item.ID); err != nil {
			return &MalformedCartItemError{ItemID: item.ID, Reason: err.Error()}
		}
		if item.Quantity <= 0 {
			return &MalformedCartItemError{
				ItemID: item.ID,
				Reason: fmt.Sprintf("quantity must be positive, got %d", item.Quantity),
			}
		}
	}
	return nil
}

func buildLines(items []domain.CartItem) ([]port.OrderLine, error) {
	lines := make([]port.OrderLine, 0, len(items))
	for _, item := range items {
		productID, variantID, err := domain.ParseItemID(item.ID)
		if err != nil {
			return nil, &MalformedCartItemError{ItemID: item.ID, Reason: err.Error()}
		}
		if item.Quantity <= 0 {
			return nil, &MalformedCartItemError{
				ItemID: item.ID,
				Reason: fmt.Sprintf("quantity must be positive, got %d", item.Quantity),
			}
		}
		lines = append(lines, port.OrderLine{
			ProductID: productID,
			VariantID: variantID,
			Item:      item,
		})
	}
	return lines, nil
}
