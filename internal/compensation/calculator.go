// Package compensation turns a ledger entry and a resolved split into the
// network ("evergreen") and partner shares of collected revenue. Every
// function here is pure: no I/O, no state, deterministic for fixed inputs.
package compensation

import (
	"fmt"

	"github.com/evergreen-media/backstage/internal/ledger"
	"github.com/evergreen-media/backstage/internal/money"
	"github.com/evergreen-media/backstage/internal/splits"
)

// Compensation is the derived view of one ledger entry. Nil fields mean
// "not yet known" because no payment has been recorded; a recorded zero
// payment yields non-nil zero amounts. Outstanding is not floored at zero:
// a negative value is an over-payment and signals a correction elsewhere.
type Compensation struct {
	Evergreen   *money.Amount
	Partner     *money.Amount
	Outstanding *money.Amount
}

// Known reports whether the entry's payment was recorded and the shares
// could be computed.
func (c Compensation) Known() bool {
	return c.Evergreen != nil && c.Partner != nil
}

// Compute applies a resolved split to one ledger entry. Percentages apply
// to the payment actually received, never to the invoiced amount:
// compensation tracks cash collected. The evergreen share is defined as the
// payment minus the partner share, so the two always sum back exactly.
func Compute(entry ledger.Entry, split splits.SplitRecord) (Compensation, error) {
	pct, err := split.PartnerPct(entry.Category)
	if err != nil {
		return Compensation{}, fmt.Errorf("compensation: entry %d: %w", entry.ID, err)
	}
	if entry.EffectivePaymentReceived == nil {
		return Compensation{}, nil
	}

	received := *entry.EffectivePaymentReceived
	partner := received.MulPercent(pct)
	evergreen := received.Sub(partner)
	outstanding := entry.InvoiceAmount.Sub(received)

	return Compensation{
		Evergreen:   &evergreen,
		Partner:     &partner,
		Outstanding: &outstanding,
	}, nil
}
