// Package ledger is the read-only view over invoice facts owned by the
// accounting subsystem. Compensation figures are never stored here; they
// are derived on demand so a split correction can never leave stale values
// behind.
package ledger

import (
	"time"

	"github.com/evergreen-media/backstage/internal/money"
	"github.com/evergreen-media/backstage/internal/splits"
)

// Entry is one billed revenue event for a show. A nil
// EffectivePaymentReceived means the payment is not yet known, which is
// distinct from a recorded zero.
type Entry struct {
	ID                       int64
	ShowID                   int64
	VendorID                 int64
	Customer                 string
	Category                 splits.RevenueCategory
	InvoiceDate              time.Time
	InvoiceAmount            money.Amount
	EffectivePaymentReceived *money.Amount
}

// Paid reports whether a payment amount has been recorded.
func (e Entry) Paid() bool {
	return e.EffectivePaymentReceived != nil
}
