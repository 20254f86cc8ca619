package port

import (
	"context"
	"errors"
	"fmt"

	"github.com/davidumoru/shopcore/internal/core/domain"
)

// ErrVerificationTimeout means the gateway did not answer within the
// verification deadline; treated identically to a remote failure.
var ErrVerificationTimeout = errors.New("payment verification timed out")

// VerificationFailedError carries the human-readable reason the gateway
// (or the transport) rejected the verification.
type VerificationFailedError struct {
	Reason string
}

func (e *VerificationFailedError) Error() string {
	return fmt.Sprintf("payment verification failed: %s", e.Reason)
}

type PaymentGateway interface {
	// Verify asks the gateway whether the payment for txRef succeeded.
	// It performs no automatic retries; manual retry is the caller's job.
	Verify(ctx context.Context, txRef string) (*domain.Verification, error)
}
