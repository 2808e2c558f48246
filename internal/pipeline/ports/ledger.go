package ports

import (
	"context"

	"github.com/google/uuid"
)

// DebitResult is the credit ledger's response to a successful debit.
type DebitResult struct {
	NewBalanceCents int64
}

// CreditLedger is the external ledger that actually debits tenant balances.
// Implementations must enforce their own timeout: the debit happens strictly
// after the stage assignment is durable and must never delay or undo it.
type CreditLedger interface {
	Debit(ctx context.Context, tenantID uuid.UUID, amountCents int64, reference string) (DebitResult, error)
}
