package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type VerificationState string

const (
	VerificationPending  VerificationState = "pending"
	VerificationSuccess  VerificationState = "success"
	VerificationFailed   VerificationState = "failed"
	VerificationTimedOut VerificationState = "timedOut"
)

// Verification is the in-memory outcome of a gateway status query. It is
// never persisted on its own; successful verifications are snapshotted
// onto the order record they produce.
type Verification struct {
	State     VerificationState
	TxRef     string
	Amount    decimal.Decimal
	Currency  string
	Email     string
	FirstName string
	LastName  string
	PaidAt    time.Time
	Reason    string // set for failed / timedOut
}
