package reports

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evergreen-media/backstage/internal/ledger"
	"github.com/evergreen-media/backstage/internal/money"
	"github.com/evergreen-media/backstage/internal/payouts"
	"github.com/evergreen-media/backstage/internal/splits"
)

type fakeSplitSource struct {
	history *splits.History
	calls   int
}

func (f *fakeSplitSource) Snapshot(context.Context) (*splits.History, error) {
	f.calls++
	return f.history, nil
}

type fakeLedgerSource struct {
	entries []ledger.Entry
	calls   int
}

func (f *fakeLedgerSource) List(context.Context, time.Time, time.Time) ([]ledger.Entry, error) {
	f.calls++
	return append([]ledger.Entry(nil), f.entries...), nil
}

func (f *fakeLedgerSource) ListByShow(_ context.Context, showID int64, _, _ time.Time) ([]ledger.Entry, error) {
	f.calls++
	var out []ledger.Entry
	for _, e := range f.entries {
		if e.ShowID == showID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakePayoutSource struct {
	rows  []payouts.PartnerPayout
	calls int
}

func (f *fakePayoutSource) List(context.Context, time.Time, time.Time) ([]payouts.PartnerPayout, error) {
	f.calls++
	return append([]payouts.PartnerPayout(nil), f.rows...), nil
}

func (f *fakePayoutSource) ListByPartner(_ context.Context, partnerID int64, _, _ time.Time) ([]payouts.PartnerPayout, error) {
	f.calls++
	var out []payouts.PartnerPayout
	for _, r := range f.rows {
		if r.PartnerID == partnerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func testHistory() *splits.History {
	return splits.NewHistory("v7", []splits.SplitRecord{
		{
			ID: 1, ShowID: 1, VendorID: 7,
			PartnerPctAds:          money.MustPercent("0.30"),
			PartnerPctProgrammatic: money.MustPercent("0.50"),
			EffectiveDate:          date("2023-01-01"),
		},
		{
			ID: 2, ShowID: 1, VendorID: 7,
			PartnerPctAds:          money.MustPercent("0.40"),
			PartnerPctProgrammatic: money.MustPercent("0.50"),
			EffectiveDate:          date("2024-06-01"),
		},
	})
}

func testService(splitSrc SplitSource, ledgerSrc LedgerSource, payoutSrc PayoutSource) *Service {
	return NewService(testLogger(), splitSrc, ledgerSrc, payoutSrc, NewCache(nil, 0), 4)
}

func TestCompensationReportResolvesByInvoiceDate(t *testing.T) {
	entries := []ledger.Entry{
		{
			ID: 1, ShowID: 1, VendorID: 7, Customer: "Acme",
			Category:    splits.CategoryAds,
			InvoiceDate: date("2024-03-01"),
			InvoiceAmount: money.MustNew("1000.00"),
			EffectivePaymentReceived: amt("1000.00"),
		},
		{
			ID: 2, ShowID: 1, VendorID: 7, Customer: "Acme",
			Category:    splits.CategoryAds,
			InvoiceDate: date("2024-07-01"),
			InvoiceAmount: money.MustNew("1000.00"),
			EffectivePaymentReceived: amt("1000.00"),
		},
	}
	svc := testService(&fakeSplitSource{history: testHistory()}, &fakeLedgerSource{entries: entries}, &fakePayoutSource{})

	report, err := svc.Compensation(context.Background(), CompensationParams{
		From: date("2024-01-01"), To: date("2024-12-31"),
	})
	require.NoError(t, err)
	require.Len(t, report.Lines, 2)

	// March invoice resolves the 0.30 split, July the 0.40 correction.
	assert.True(t, report.Lines[0].Partner.Equal(money.MustNew("300")), "march partner = %s", report.Lines[0].Partner)
	assert.True(t, report.Lines[0].Evergreen.Equal(money.MustNew("700")), "march evergreen = %s", report.Lines[0].Evergreen)
	assert.True(t, report.Lines[1].Partner.Equal(money.MustNew("400")), "july partner = %s", report.Lines[1].Partner)

	assert.Equal(t, "v7", report.SnapshotVersion)
	assert.True(t, report.Totals.TotalNetRevenue.Equal(money.MustNew("2000")))
	assert.True(t, report.Totals.TotalEvergreenShare.Equal(money.MustNew("1300")))
	assert.Equal(t, 0, report.Totals.Excluded)
}

func TestCompensationReportFlagsPreHistoryEntry(t *testing.T) {
	entries := []ledger.Entry{{
		ID: 1, ShowID: 1, VendorID: 7,
		Category:      splits.CategoryAds,
		InvoiceDate:   date("2022-01-01"),
		InvoiceAmount: money.MustNew("500.00"),
		EffectivePaymentReceived: amt("500.00"),
	}}
	svc := testService(&fakeSplitSource{history: testHistory()}, &fakeLedgerSource{entries: entries}, &fakePayoutSource{})

	report, err := svc.Compensation(context.Background(), CompensationParams{
		From: date("2022-01-01"), To: date("2022-12-31"),
	})
	require.NoError(t, err)
	require.Len(t, report.Lines, 1)
	assert.Nil(t, report.Lines[0].Partner, "no fallback requested; nothing may be computed")
	require.Len(t, report.Flags, 1)
	assert.Equal(t, "no_applicable_split", string(report.Flags[0].Reason))
	assert.Equal(t, 1, report.Totals.Excluded)
}

func TestPayoutReportDeduplicatesSharedPayments(t *testing.T) {
	p1, p2 := "P1", "P2"
	rows := []payouts.PartnerPayout{
		{BillNumber: "B-1", PartnerID: 1, ShowID: 10, BillAmount: money.MustNew("300"),
			PaymentID: &p1, EffectiveBilledAmountPaid: amt("500")},
		{BillNumber: "B-2", PartnerID: 1, ShowID: 10, BillAmount: money.MustNew("200"),
			PaymentID: &p1, EffectiveBilledAmountPaid: amt("500")},
		{BillNumber: "B-3", PartnerID: 2, ShowID: 11, BillAmount: money.MustNew("200"),
			PaymentID: &p2, EffectiveBilledAmountPaid: amt("200")},
	}
	svc := testService(&fakeSplitSource{history: testHistory()}, &fakeLedgerSource{}, &fakePayoutSource{rows: rows})

	report, err := svc.Payouts(context.Background(), PayoutParams{
		From: date("2024-01-01"), To: date("2024-12-31"),
	})
	require.NoError(t, err)
	assert.True(t, report.TotalPaid.Equal(money.MustNew("700")), "total paid = %s, want 700", report.TotalPaid)
	require.Len(t, report.ByPartner, 2)
	assert.Equal(t, int64(1), report.ByPartner[0].ID)
	assert.True(t, report.ByPartner[0].TotalPaid.Equal(money.MustNew("500")))
	assert.Equal(t, int64(2), report.ByPartner[1].ID)
	assert.True(t, report.ByPartner[1].TotalPaid.Equal(money.MustNew("200")))
}

func TestPayoutCSVWritesHeaderAndRows(t *testing.T) {
	var sb strings.Builder
	report := PayoutReport{
		From: "2024-01-01", To: "2024-12-31",
		TotalPaid:   money.MustNew("700"),
		TotalBilled: money.MustNew("700"),
		ByPartner:   []PayoutGroupTotal{{ID: 1, TotalPaid: money.MustNew("500")}},
	}
	require.NoError(t, WritePayoutCSV(&sb, report, date("2024-12-31")))
	out := sb.String()
	assert.Contains(t, out, "# Partner payout reconciliation 2024-01-01 to 2024-12-31")
	assert.Contains(t, out, "partner,1,500,")
}
