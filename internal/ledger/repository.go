package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/evergreen-media/backstage/internal/money"
	"github.com/evergreen-media/backstage/internal/splits"
)

// Repository reads invoice facts from PostgreSQL. The table belongs to the
// accounting subsystem; this layer is strictly SELECT.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const entryColumns = `id, show_id, vendor_id, customer, revenue_category,
	invoice_date, invoice_amount::text, effective_payment_received::text`

// ListByShow returns entries for one show with invoice dates in [from, to].
func (r *Repository) ListByShow(ctx context.Context, showID int64, from, to time.Time) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE show_id = $1 AND invoice_date BETWEEN $2 AND $3
		ORDER BY invoice_date, id`,
		showID, from, to)
	if err != nil {
		return nil, fmt.Errorf("ledger: list by show: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// List returns all entries with invoice dates in [from, to].
func (r *Repository) List(ctx context.Context, from, to time.Time) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE invoice_date BETWEEN $1 AND $2
		ORDER BY show_id, invoice_date, id`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("ledger: list: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEntries(rows pgxRows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			category string
			invoiced string
			paid     *string
		)
		if err := rows.Scan(&e.ID, &e.ShowID, &e.VendorID, &e.Customer, &category,
			&e.InvoiceDate, &invoiced, &paid); err != nil {
			return nil, fmt.Errorf("ledger: scan: %w", err)
		}
		e.Category = splits.RevenueCategory(category)
		if !e.Category.Valid() {
			return nil, fmt.Errorf("ledger: entry %d: unknown revenue category %q", e.ID, category)
		}
		amount, err := parseAmount(invoiced)
		if err != nil {
			return nil, fmt.Errorf("ledger: entry %d: invoice amount: %w", e.ID, err)
		}
		e.InvoiceAmount = amount
		if paid != nil {
			received, err := parseAmount(*paid)
			if err != nil {
				return nil, fmt.Errorf("ledger: entry %d: payment received: %w", e.ID, err)
			}
			e.EffectivePaymentReceived = &received
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: rows: %w", err)
	}
	return entries, nil
}

func parseAmount(raw string) (money.Amount, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return money.Amount{}, err
	}
	return money.FromDecimal(d), nil
}
