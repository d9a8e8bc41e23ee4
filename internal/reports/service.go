package reports

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/evergreen-media/backstage/internal/compensation"
	"github.com/evergreen-media/backstage/internal/ledger"
	"github.com/evergreen-media/backstage/internal/money"
	"github.com/evergreen-media/backstage/internal/payouts"
	"github.com/evergreen-media/backstage/internal/splits"
)

// SplitSource supplies the split history snapshot.
type SplitSource interface {
	Snapshot(ctx context.Context) (*splits.History, error)
}

// LedgerSource supplies invoice facts.
type LedgerSource interface {
	List(ctx context.Context, from, to time.Time) ([]ledger.Entry, error)
	ListByShow(ctx context.Context, showID int64, from, to time.Time) ([]ledger.Entry, error)
}

// PayoutSource supplies partner bill rows.
type PayoutSource interface {
	List(ctx context.Context, from, to time.Time) ([]payouts.PartnerPayout, error)
	ListByPartner(ctx context.Context, partnerID int64, from, to time.Time) ([]payouts.PartnerPayout, error)
}

// Service builds the two reconciliation reports. The engine itself is
// pure; this layer supplies it with snapshots and caches the outcome.
type Service struct {
	logger  *slog.Logger
	splits  SplitSource
	ledger  LedgerSource
	payouts PayoutSource
	cache   *Cache
	workers int
}

// NewService constructs the report service. workers bounds engine
// parallelism; <= 0 picks a per-call default.
func NewService(logger *slog.Logger, splitSrc SplitSource, ledgerSrc LedgerSource, payoutSrc PayoutSource, cache *Cache, workers int) *Service {
	return &Service{
		logger:  logger,
		splits:  splitSrc,
		ledger:  ledgerSrc,
		payouts: payoutSrc,
		cache:   cache,
		workers: workers,
	}
}

// CompensationParams filters the compensation report.
type CompensationParams struct {
	ShowID   *int64
	From     time.Time
	To       time.Time
	Fallback compensation.Fallback
}

// CompensationLine is one invoice with its derived figures. Nil derived
// fields mean the payment is not yet known.
type CompensationLine struct {
	EntryID         int64                  `json:"entry_id"`
	ShowID          int64                  `json:"show_id"`
	VendorID        int64                  `json:"vendor_id"`
	Customer        string                 `json:"customer"`
	Category        splits.RevenueCategory `json:"category"`
	InvoiceDate     string                 `json:"invoice_date"`
	InvoiceAmount   money.Amount           `json:"invoice_amount"`
	PaymentReceived *money.Amount          `json:"effective_payment_received"`
	Evergreen       *money.Amount          `json:"evergreen_compensation"`
	Partner         *money.Amount          `json:"partner_compensation"`
	Outstanding     *money.Amount          `json:"outstanding_balance"`
}

// CompensationReport is the assembled compensation view for a period.
type CompensationReport struct {
	From            string              `json:"from"`
	To              string              `json:"to"`
	SnapshotVersion string              `json:"snapshot_version"`
	Lines           []CompensationLine  `json:"lines"`
	Totals          Totals              `json:"totals"`
	Flags           []compensation.Flag `json:"flags,omitempty"`
	Warnings        []string            `json:"warnings,omitempty"`
}

const dateLayout = "2006-01-02"

// Compensation resolves splits and computes compensation for every ledger
// entry in the period. Results are cached keyed on the parameters AND the
// split snapshot version: the same entry legitimately yields different
// figures before and after a correction, so the snapshot version is part
// of the report's identity.
func (s *Service) Compensation(ctx context.Context, params CompensationParams) (CompensationReport, error) {
	history, err := s.splits.Snapshot(ctx)
	if err != nil {
		return CompensationReport{}, fmt.Errorf("reports: split snapshot: %w", err)
	}

	from := params.From.Format(dateLayout)
	to := params.To.Format(dateLayout)
	key, err := s.cache.BuildKey(ctx, keyCompensation(params.ShowID, from, to, history.Version())...)
	if err != nil {
		return CompensationReport{}, fmt.Errorf("reports: cache key: %w", err)
	}

	var report CompensationReport
	err = s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (interface{}, error) {
		return s.buildCompensation(ctx, history, params, from, to)
	})
	if err != nil {
		return CompensationReport{}, err
	}
	return report, nil
}

func (s *Service) buildCompensation(ctx context.Context, history *splits.History, params CompensationParams, from, to string) (CompensationReport, error) {
	var (
		entries []ledger.Entry
		err     error
	)
	if params.ShowID != nil {
		entries, err = s.ledger.ListByShow(ctx, *params.ShowID, params.From, params.To)
	} else {
		entries, err = s.ledger.List(ctx, params.From, params.To)
	}
	if err != nil {
		return CompensationReport{}, fmt.Errorf("reports: ledger: %w", err)
	}

	batch, err := compensation.ComputeBatch(ctx, history, entries, compensation.BatchOptions{
		Workers:  s.workers,
		Fallback: params.Fallback,
	})
	if err != nil {
		return CompensationReport{}, err
	}

	lines := make([]CompensationLine, 0, len(batch.Results))
	for _, r := range batch.Results {
		line := CompensationLine{
			EntryID:         r.Entry.ID,
			ShowID:          r.Entry.ShowID,
			VendorID:        r.Entry.VendorID,
			Customer:        r.Entry.Customer,
			Category:        r.Entry.Category,
			InvoiceDate:     r.Entry.InvoiceDate.Format(dateLayout),
			InvoiceAmount:   r.Entry.InvoiceAmount,
			PaymentReceived: r.Entry.EffectivePaymentReceived,
		}
		if r.Compensation != nil {
			line.Evergreen = r.Compensation.Evergreen
			line.Partner = r.Compensation.Partner
			line.Outstanding = r.Compensation.Outstanding
		}
		lines = append(lines, line)
	}

	return CompensationReport{
		From:            from,
		To:              to,
		SnapshotVersion: batch.SnapshotVersion,
		Lines:           lines,
		Totals:          Summarize(batch.Results),
		Flags:           batch.Flags,
		Warnings:        batch.Warnings,
	}, nil
}

// PayoutParams filters the payout reconciliation report.
type PayoutParams struct {
	PartnerID *int64
	From      time.Time
	To        time.Time
}

// PayoutGroupTotal is one partner's or show's realized total.
type PayoutGroupTotal struct {
	ID        int64        `json:"id"`
	TotalPaid money.Amount `json:"total_paid"`
}

// PayoutReport is the assembled reconciliation view for a period.
type PayoutReport struct {
	From              string             `json:"from"`
	To                string             `json:"to"`
	TotalPaid         money.Amount       `json:"total_paid"`
	TotalBilled       money.Amount       `json:"total_billed"`
	OutstandingBilled money.Amount       `json:"outstanding_billed"`
	ByPartner         []PayoutGroupTotal `json:"by_partner"`
	ByShow            []PayoutGroupTotal `json:"by_show"`
	UnpaidBills       int                `json:"unpaid_bills"`
	Flags             []payouts.Flag     `json:"flags,omitempty"`
}

// Payouts reconciles partner bills for the period, counting each payment
// at most once however many bill rows reference it.
func (s *Service) Payouts(ctx context.Context, params PayoutParams) (PayoutReport, error) {
	from := params.From.Format(dateLayout)
	to := params.To.Format(dateLayout)
	key, err := s.cache.BuildKey(ctx, keyPayouts(params.PartnerID, from, to)...)
	if err != nil {
		return PayoutReport{}, fmt.Errorf("reports: cache key: %w", err)
	}

	var report PayoutReport
	err = s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (interface{}, error) {
		return s.buildPayouts(ctx, params, from, to)
	})
	if err != nil {
		return PayoutReport{}, err
	}
	return report, nil
}

func (s *Service) buildPayouts(ctx context.Context, params PayoutParams, from, to string) (PayoutReport, error) {
	var (
		rows []payouts.PartnerPayout
		err  error
	)
	if params.PartnerID != nil {
		rows, err = s.payouts.ListByPartner(ctx, *params.PartnerID, params.From, params.To)
	} else {
		rows, err = s.payouts.List(ctx, params.From, params.To)
	}
	if err != nil {
		return PayoutReport{}, fmt.Errorf("reports: payouts: %w", err)
	}

	summary, err := payouts.ReconcileConcurrent(ctx, rows, s.workers)
	if err != nil {
		return PayoutReport{}, err
	}

	return PayoutReport{
		From:              from,
		To:                to,
		TotalPaid:         summary.TotalPaid,
		TotalBilled:       summary.TotalBilled,
		OutstandingBilled: summary.OutstandingBilled,
		ByPartner:         sortedTotals(summary.ByPartner),
		ByShow:            sortedTotals(summary.ByShow),
		UnpaidBills:       summary.UnpaidBills,
		Flags:             summary.Flags,
	}, nil
}

// sortedTotals flattens a totals map into an ID-ordered slice so report
// payloads and CSV exports are stable run to run.
func sortedTotals(m map[int64]money.Amount) []PayoutGroupTotal {
	out := make([]PayoutGroupTotal, 0, len(m))
	for id, amount := range m {
		out = append(out, PayoutGroupTotal{ID: id, TotalPaid: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
