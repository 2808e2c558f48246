package domain

// WarningChargeFailed marks a transition that committed but could not be
// charged. Always reported inline on a successful response, never as an error:
// a lead's pipeline position is never held hostage by a ledger outage.
const WarningChargeFailed = "charge_failed"

// Warning is a non-fatal condition accompanying an otherwise successful
// operation.
type Warning struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewChargeFailedWarning builds the warning attached when the ledger debit
// for a committed transition fails.
func NewChargeFailedWarning(message string) Warning {
	return Warning{Type: WarningChargeFailed, Message: message}
}
