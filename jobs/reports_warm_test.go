package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/evergreen-media/backstage/internal/ledger"
	"github.com/evergreen-media/backstage/internal/money"
	"github.com/evergreen-media/backstage/internal/payouts"
	"github.com/evergreen-media/backstage/internal/reports"
	"github.com/evergreen-media/backstage/internal/splits"
)

type fakeSplitSource struct {
	history *splits.History
	err     error
}

func (f *fakeSplitSource) Snapshot(ctx context.Context) (*splits.History, error) {
	return f.history, f.err
}

type fakeLedgerSource struct {
	entries []ledger.Entry
}

func (f *fakeLedgerSource) List(ctx context.Context, from, to time.Time) ([]ledger.Entry, error) {
	return f.entries, nil
}

func (f *fakeLedgerSource) ListByShow(ctx context.Context, showID int64, from, to time.Time) ([]ledger.Entry, error) {
	return f.entries, nil
}

type fakePayoutSource struct {
	rows []payouts.PartnerPayout
}

func (f *fakePayoutSource) List(ctx context.Context, from, to time.Time) ([]payouts.PartnerPayout, error) {
	return f.rows, nil
}

func (f *fakePayoutSource) ListByPartner(ctx context.Context, partnerID int64, from, to time.Time) ([]payouts.PartnerPayout, error) {
	return f.rows, nil
}

func testService(splitSrc reports.SplitSource, ledgerSrc reports.LedgerSource, payoutSrc reports.PayoutSource) *reports.Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return reports.NewService(logger, splitSrc, ledgerSrc, payoutSrc, reports.NewCache(nil, time.Minute), 0)
}

func warmTask(t *testing.T, windowDays int) *asynq.Task {
	t.Helper()
	task, err := NewReportsWarmTask(windowDays)
	require.NoError(t, err)
	return task
}

func TestReportsWarmJobBuildsBothReports(t *testing.T) {
	paid := money.MustNew("800")
	history := splits.NewHistory("c1-m1", []splits.SplitRecord{
		{
			ID:                     1,
			ShowID:                 10,
			VendorID:               20,
			PartnerPctAds:          money.MustPercent("0.30"),
			PartnerPctProgrammatic: money.MustPercent("0.40"),
			EffectiveDate:          time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	})
	ledgerSrc := &fakeLedgerSource{entries: []ledger.Entry{
		{
			ID:                       1,
			ShowID:                   10,
			VendorID:                 20,
			Customer:                 "AdWave",
			Category:                 splits.CategoryAds,
			InvoiceDate:              time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			InvoiceAmount:            money.MustNew("1000"),
			EffectivePaymentReceived: &paid,
		},
	}}
	payoutSrc := &fakePayoutSource{rows: []payouts.PartnerPayout{
		{
			BillNumber:                "B-1",
			BillDate:                  time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
			PartnerID:                 7,
			ShowID:                    10,
			BillAmount:                money.MustNew("240"),
			PaymentID:                 strPtr("PAY-1"),
			EffectiveBilledAmountPaid: amtPtr("240"),
		},
	}}

	job := NewReportsWarmJob(testService(&fakeSplitSource{history: history}, ledgerSrc, payoutSrc), nil, nil)

	err := job.Handle(context.Background(), warmTask(t, 365))
	require.NoError(t, err)
}

func TestReportsWarmJobPropagatesBuildErrors(t *testing.T) {
	boom := errors.New("snapshot unavailable")
	job := NewReportsWarmJob(testService(&fakeSplitSource{err: boom}, &fakeLedgerSource{}, &fakePayoutSource{}), nil, nil)

	err := job.Handle(context.Background(), warmTask(t, 30))
	require.ErrorIs(t, err, boom)
}

func TestReportsWarmJobSkipsRetryOnBadPayload(t *testing.T) {
	job := NewReportsWarmJob(testService(&fakeSplitSource{}, &fakeLedgerSource{}, &fakePayoutSource{}), nil, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskReportsWarm, []byte("{not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func strPtr(s string) *string { return &s }

func amtPtr(s string) *money.Amount {
	a := money.MustNew(s)
	return &a
}
