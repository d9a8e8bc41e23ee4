package compensation

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/evergreen-media/backstage/internal/ledger"
	"github.com/evergreen-media/backstage/internal/splits"
)

// Fallback decides what happens to entries that predate any split record.
type Fallback int

const (
	// FallbackNone skips the entry and flags it; nothing is computed.
	FallbackNone Fallback = iota
	// FallbackAllEvergreen treats the entry as 100% network revenue. The
	// entry is still flagged so the report shows the assumption was made.
	FallbackAllEvergreen
)

// FlagReason classifies why an entry could not be fully computed.
type FlagReason string

const (
	// ReasonNoApplicableSplit marks entries older than any split record.
	ReasonNoApplicableSplit FlagReason = "no_applicable_split"
	// ReasonUnknownPayment marks entries whose payment is not yet recorded.
	ReasonUnknownPayment FlagReason = "unknown_payment"
	// ReasonInvalidEntry marks structurally bad records.
	ReasonInvalidEntry FlagReason = "invalid_entry"
)

// Flag reports one entry excluded from, or qualified in, a batch result.
type Flag struct {
	EntryID int64      `json:"entry_id"`
	ShowID  int64      `json:"show_id"`
	Reason  FlagReason `json:"reason"`
	Detail  string     `json:"detail,omitempty"`
}

// Result pairs an entry with its computed compensation. Compensation is nil
// when the entry was skipped (see the batch flags for why).
type Result struct {
	Entry        ledger.Entry
	Compensation *Compensation
}

// BatchResult is a partial-success aggregate: one bad entry never aborts
// the rest of the batch.
type BatchResult struct {
	Results         []Result
	Flags           []Flag
	Warnings        []string
	SnapshotVersion string
}

// BatchOptions tunes batch execution.
type BatchOptions struct {
	// Workers bounds concurrent computation; <= 0 means GOMAXPROCS.
	Workers int
	// Fallback applies to entries with no applicable split.
	Fallback Fallback
}

// ComputeBatch resolves and computes every entry against one history
// snapshot. Entries are independent, so they are evaluated concurrently;
// results and flags are emitted in input order regardless of worker count,
// and identical inputs produce identical output whatever the parallelism.
func ComputeBatch(ctx context.Context, history *splits.History, entries []ledger.Entry, opts BatchOptions) (BatchResult, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	slots := make([]slot, len(entries))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, entry := range entries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			slots[i] = computeOne(history, entry, opts.Fallback)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BatchResult{}, fmt.Errorf("compensation: batch: %w", err)
	}

	out := BatchResult{
		Results:         make([]Result, 0, len(entries)),
		SnapshotVersion: history.Version(),
	}
	for _, s := range slots {
		out.Results = append(out.Results, s.result)
		out.Flags = append(out.Flags, s.flags...)
		out.Warnings = append(out.Warnings, s.warnings...)
	}
	return out, nil
}

// slot carries one entry's outcome back from a worker; keeping them
// indexed by input position is what makes the batch order-deterministic.
type slot struct {
	result   Result
	flags    []Flag
	warnings []string
}

func computeOne(history *splits.History, entry ledger.Entry, fallback Fallback) (s slot) {
	s.result = Result{Entry: entry}

	split, warnings, err := history.Resolve(entry.ShowID, entry.VendorID, entry.InvoiceDate)
	s.warnings = warnings
	switch {
	case errors.Is(err, splits.ErrNoApplicableSplit):
		if fallback == FallbackNone {
			s.flags = append(s.flags, Flag{
				EntryID: entry.ID,
				ShowID:  entry.ShowID,
				Reason:  ReasonNoApplicableSplit,
				Detail:  "entry predates split history; no fallback requested",
			})
			return s
		}
		split = allEvergreenSplit(entry)
		s.flags = append(s.flags, Flag{
			EntryID: entry.ID,
			ShowID:  entry.ShowID,
			Reason:  ReasonNoApplicableSplit,
			Detail:  "entry predates split history; treated as 100% evergreen",
		})
	case err != nil:
		s.flags = append(s.flags, Flag{
			EntryID: entry.ID,
			ShowID:  entry.ShowID,
			Reason:  ReasonInvalidEntry,
			Detail:  err.Error(),
		})
		return s
	}

	comp, err := Compute(entry, split)
	if err != nil {
		s.flags = append(s.flags, Flag{
			EntryID: entry.ID,
			ShowID:  entry.ShowID,
			Reason:  ReasonInvalidEntry,
			Detail:  err.Error(),
		})
		return s
	}
	if !comp.Known() {
		s.flags = append(s.flags, Flag{
			EntryID: entry.ID,
			ShowID:  entry.ShowID,
			Reason:  ReasonUnknownPayment,
			Detail:  "payment not yet recorded; excluded from totals",
		})
	}
	s.result.Compensation = &comp
	return s
}

// allEvergreenSplit is the explicit FallbackAllEvergreen policy: zero
// partner share in both categories.
func allEvergreenSplit(entry ledger.Entry) splits.SplitRecord {
	return splits.SplitRecord{
		ShowID:        entry.ShowID,
		VendorID:      entry.VendorID,
		EffectiveDate: entry.InvoiceDate,
	}
}
