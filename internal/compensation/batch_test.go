package compensation

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/evergreen-media/backstage/internal/ledger"
	"github.com/evergreen-media/backstage/internal/money"
	"github.com/evergreen-media/backstage/internal/splits"
)

func batchHistory() *splits.History {
	return splits.NewHistory("v1", []splits.SplitRecord{
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

func batchEntries(n int) []ledger.Entry {
	entries := make([]ledger.Entry, 0, n)
	for i := 0; i < n; i++ {
		paid := money.MustNew(fmt.Sprintf("%d.25", 100+i))
		entries = append(entries, ledger.Entry{
			ID:                       int64(i + 1),
			ShowID:                   1,
			VendorID:                 7,
			Customer:                 "Acme Media",
			Category:                 splits.CategoryAds,
			InvoiceDate:              date("2024-03-01"),
			InvoiceAmount:            money.MustNew("500.00"),
			EffectivePaymentReceived: &paid,
		})
	}
	return entries
}

func TestComputeBatchKeepsInputOrder(t *testing.T) {
	entries := batchEntries(50)
	res, err := ComputeBatch(context.Background(), batchHistory(), entries, BatchOptions{Workers: 8})
	if err != nil {
		t.Fatalf("ComputeBatch() error = %v", err)
	}
	if len(res.Results) != len(entries) {
		t.Fatalf("got %d results, want %d", len(res.Results), len(entries))
	}
	for i, r := range res.Results {
		if r.Entry.ID != entries[i].ID {
			t.Fatalf("result %d holds entry %d; order must match input", i, r.Entry.ID)
		}
	}
	if res.SnapshotVersion != "v1" {
		t.Fatalf("snapshot version = %q", res.SnapshotVersion)
	}
}

func TestComputeBatchDeterministicAcrossWorkerCounts(t *testing.T) {
	entries := batchEntries(200)
	history := batchHistory()

	serial, err := ComputeBatch(context.Background(), history, entries, BatchOptions{Workers: 1})
	if err != nil {
		t.Fatalf("ComputeBatch(workers=1) error = %v", err)
	}
	parallel, err := ComputeBatch(context.Background(), history, entries, BatchOptions{Workers: 16})
	if err != nil {
		t.Fatalf("ComputeBatch(workers=16) error = %v", err)
	}
	if !reflect.DeepEqual(serial, parallel) {
		t.Fatal("identical inputs must produce identical batch output for any worker count")
	}
}

func TestComputeBatchFlagsWithoutAborting(t *testing.T) {
	entries := batchEntries(3)
	// Entry predating the split history.
	entries[1].InvoiceDate = date("2022-01-01")
	// Entry with no recorded payment.
	entries[2].EffectivePaymentReceived = nil

	res, err := ComputeBatch(context.Background(), batchHistory(), entries, BatchOptions{})
	if err != nil {
		t.Fatalf("ComputeBatch() error = %v", err)
	}
	if len(res.Results) != 3 {
		t.Fatalf("one bad entry must not abort the batch; got %d results", len(res.Results))
	}
	if res.Results[0].Compensation == nil || !res.Results[0].Compensation.Known() {
		t.Fatal("healthy entry should be computed")
	}
	if res.Results[1].Compensation != nil {
		t.Fatal("pre-history entry must not be computed without a fallback")
	}
	if res.Results[2].Compensation == nil || res.Results[2].Compensation.Known() {
		t.Fatal("unpaid entry should carry nil shares, not be dropped")
	}

	reasons := map[FlagReason]int{}
	for _, f := range res.Flags {
		reasons[f.Reason]++
	}
	if reasons[ReasonNoApplicableSplit] != 1 || reasons[ReasonUnknownPayment] != 1 {
		t.Fatalf("unexpected flags: %+v", res.Flags)
	}
}

func TestComputeBatchAllEvergreenFallback(t *testing.T) {
	entries := batchEntries(1)
	entries[0].InvoiceDate = date("2022-01-01")

	res, err := ComputeBatch(context.Background(), batchHistory(), entries,
		BatchOptions{Fallback: FallbackAllEvergreen})
	if err != nil {
		t.Fatalf("ComputeBatch() error = %v", err)
	}
	comp := res.Results[0].Compensation
	if comp == nil || !comp.Known() {
		t.Fatal("fallback entry should be computed")
	}
	if !comp.Partner.IsZero() {
		t.Fatalf("partner = %s, want 0 under all-evergreen fallback", comp.Partner)
	}
	if !comp.Evergreen.Equal(*entries[0].EffectivePaymentReceived) {
		t.Fatalf("evergreen = %s, want full payment", comp.Evergreen)
	}
	if len(res.Flags) != 1 || res.Flags[0].Reason != ReasonNoApplicableSplit {
		t.Fatalf("fallback must still be flagged: %+v", res.Flags)
	}
}
