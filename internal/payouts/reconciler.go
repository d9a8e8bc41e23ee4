package payouts

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/evergreen-media/backstage/internal/money"
)

// Reconcile aggregates payout rows in a single stable pass. Each unique
// payment contributes its paid amount exactly once to TotalPaid and to the
// per-partner and per-show breakdowns; rows repeating an already-counted
// payment contribute nothing, and unpaid rows (nil PaymentID) contribute
// only to the billed total. The result is invariant under permutation and
// under duplication of already-seen payment rows.
func Reconcile(rows []PartnerPayout) Summary {
	acc := newAccumulator()
	for i, row := range rows {
		acc.add(i, row)
	}
	return acc.summary()
}

// ReconcileConcurrent partitions rows by payment identity, reconciles the
// shards in parallel and merges the partial results. Rows sharing a
// PaymentID always land in the same shard, which keeps the seen-set
// single-writer per payment; the merged output is identical to
// Reconcile(rows) bit for bit.
func ReconcileConcurrent(ctx context.Context, rows []PartnerPayout, workers int) (Summary, error) {
	if workers <= 1 || len(rows) < 2 {
		return Reconcile(rows), nil
	}

	type indexed struct {
		index int
		row   PartnerPayout
	}
	shards := make([][]indexed, workers)
	for i, row := range rows {
		var shard int
		if row.PaymentID != nil {
			h := fnv.New32a()
			_, _ = h.Write([]byte(*row.PaymentID))
			shard = int(h.Sum32() % uint32(workers))
		} else {
			// Unpaid rows carry no identity; spread them round-robin.
			shard = i % workers
		}
		shards[shard] = append(shards[shard], indexed{index: i, row: row})
	}

	accs := make([]*accumulator, workers)
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			acc := newAccumulator()
			for _, it := range shards[w] {
				acc.add(it.index, it.row)
			}
			accs[w] = acc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, fmt.Errorf("payouts: reconcile: %w", err)
	}

	merged := newAccumulator()
	for _, acc := range accs {
		merged.merge(acc)
	}
	return merged.summary(), nil
}

type indexedFlag struct {
	index int
	flag  Flag
}

// accumulator is the single-invocation state of a reconciliation run. It is
// never shared across invocations and, in the concurrent path, each shard
// owns its accumulator alone until the merge.
type accumulator struct {
	totalPaid   money.Amount
	totalBilled money.Amount
	byPartner   map[int64]money.Amount
	byShow      map[int64]money.Amount
	seen        map[string]money.Amount
	unpaidBills int
	flags       []indexedFlag
}

func newAccumulator() *accumulator {
	return &accumulator{
		byPartner: make(map[int64]money.Amount),
		byShow:    make(map[int64]money.Amount),
		seen:      make(map[string]money.Amount),
	}
}

func (a *accumulator) add(index int, row PartnerPayout) {
	a.totalBilled = a.totalBilled.Add(row.BillAmount)

	if row.PaymentID == nil {
		a.unpaidBills++
		return
	}
	id := *row.PaymentID

	if row.EffectiveBilledAmountPaid == nil {
		a.flags = append(a.flags, indexedFlag{index: index, flag: Flag{
			BillNumber: row.BillNumber,
			PaymentID:  id,
			Reason:     ReasonMissingPaymentAmount,
			Detail:     "payment reference without a paid amount; excluded from totals",
		}})
		return
	}
	paid := *row.EffectiveBilledAmountPaid

	if counted, ok := a.seen[id]; ok {
		if !counted.Equal(paid) {
			a.flags = append(a.flags, indexedFlag{index: index, flag: Flag{
				BillNumber: row.BillNumber,
				PaymentID:  id,
				Reason:     ReasonAmountMismatch,
				Detail: fmt.Sprintf("payment %s recorded as %s here but counted as %s",
					id, paid, counted),
			}})
		}
		return
	}

	a.seen[id] = paid
	a.totalPaid = a.totalPaid.Add(paid)
	a.byPartner[row.PartnerID] = a.byPartner[row.PartnerID].Add(paid)
	a.byShow[row.ShowID] = a.byShow[row.ShowID].Add(paid)
}

// merge folds a shard accumulator in. Shards never share a payment ID, so
// seen-sets are disjoint by construction.
func (a *accumulator) merge(b *accumulator) {
	a.totalPaid = a.totalPaid.Add(b.totalPaid)
	a.totalBilled = a.totalBilled.Add(b.totalBilled)
	for partner, amount := range b.byPartner {
		a.byPartner[partner] = a.byPartner[partner].Add(amount)
	}
	for show, amount := range b.byShow {
		a.byShow[show] = a.byShow[show].Add(amount)
	}
	for id, amount := range b.seen {
		a.seen[id] = amount
	}
	a.unpaidBills += b.unpaidBills
	a.flags = append(a.flags, b.flags...)
}

func (a *accumulator) summary() Summary {
	sort.Slice(a.flags, func(i, j int) bool { return a.flags[i].index < a.flags[j].index })
	flags := make([]Flag, 0, len(a.flags))
	for _, f := range a.flags {
		flags = append(flags, f.flag)
	}
	return Summary{
		TotalPaid:         a.totalPaid,
		TotalBilled:       a.totalBilled,
		OutstandingBilled: a.totalBilled.Sub(a.totalPaid),
		ByPartner:         a.byPartner,
		ByShow:            a.byShow,
		UnpaidBills:       a.unpaidBills,
		Flags:             flags,
	}
}
