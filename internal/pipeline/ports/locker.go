package ports

import (
	"context"

	"github.com/google/uuid"
)

// LeadLocker serializes transitions per lead: at most one in-flight
// transition for a given lead at any time. Different leads proceed fully
// independently; there is no global lock.
type LeadLocker interface {
	// AcquireLead blocks until the lead's lock is held or ctx is done.
	// The returned release function must be called once the transition's
	// read-compute-commit window has closed.
	AcquireLead(ctx context.Context, tenantID, leadID uuid.UUID) (release func(), err error)
}
