// Package reports assembles the consumer-facing aggregates over the
// compensation and reconciliation engines, with snapshot-versioned caching
// and CSV export.
package reports

import (
	"github.com/evergreen-media/backstage/internal/compensation"
	"github.com/evergreen-media/backstage/internal/money"
)

// Totals sums collected revenue and the network's share across computed
// entries. Entries without a known compensation are excluded from the sums
// rather than counted as zero, and Excluded says how many were left out so
// a partial dataset cannot masquerade as a complete one.
type Totals struct {
	TotalNetRevenue     money.Amount `json:"total_net_revenue"`
	TotalEvergreenShare money.Amount `json:"total_evergreen_share"`
	TotalPartnerShare   money.Amount `json:"total_partner_share"`
	TotalOutstanding    money.Amount `json:"total_outstanding"`
	Included            int          `json:"included"`
	Excluded            int          `json:"excluded"`
}

// Summarize folds batch results into report totals.
func Summarize(results []compensation.Result) Totals {
	var t Totals
	for _, r := range results {
		comp := r.Compensation
		if comp == nil || !comp.Known() {
			t.Excluded++
			continue
		}
		t.TotalNetRevenue = t.TotalNetRevenue.Add(*r.Entry.EffectivePaymentReceived)
		t.TotalEvergreenShare = t.TotalEvergreenShare.Add(*comp.Evergreen)
		t.TotalPartnerShare = t.TotalPartnerShare.Add(*comp.Partner)
		t.TotalOutstanding = t.TotalOutstanding.Add(*comp.Outstanding)
		t.Included++
	}
	return t
}
