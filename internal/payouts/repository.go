package payouts

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/evergreen-media/backstage/internal/money"
)

// Repository reads partner bill rows from PostgreSQL. Strictly SELECT; the
// table is owned by the accounting subsystem.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const payoutColumns = `bill_number, bill_date, partner_id, show_id,
	bill_amount::text, payment_id, date_of_payment, effective_billed_amount_paid::text`

// List returns all payout rows with bill dates in [from, to], in a stable
// order so repeated runs reconcile identically.
func (r *Repository) List(ctx context.Context, from, to time.Time) ([]PartnerPayout, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+payoutColumns+`
		FROM partner_payouts
		WHERE bill_date BETWEEN $1 AND $2
		ORDER BY bill_date, bill_number`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("payouts: list: %w", err)
	}
	defer rows.Close()
	return scanPayouts(rows)
}

// ListByPartner returns one partner's payout rows in [from, to].
func (r *Repository) ListByPartner(ctx context.Context, partnerID int64, from, to time.Time) ([]PartnerPayout, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+payoutColumns+`
		FROM partner_payouts
		WHERE partner_id = $1 AND bill_date BETWEEN $2 AND $3
		ORDER BY bill_date, bill_number`,
		partnerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("payouts: list by partner: %w", err)
	}
	defer rows.Close()
	return scanPayouts(rows)
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanPayouts(rows pgxRows) ([]PartnerPayout, error) {
	var payouts []PartnerPayout
	for rows.Next() {
		var (
			p      PartnerPayout
			billed string
			paid   *string
		)
		if err := rows.Scan(&p.BillNumber, &p.BillDate, &p.PartnerID, &p.ShowID,
			&billed, &p.PaymentID, &p.DateOfPayment, &paid); err != nil {
			return nil, fmt.Errorf("payouts: scan: %w", err)
		}
		amount, err := parseAmount(billed)
		if err != nil {
			return nil, fmt.Errorf("payouts: bill %s: bill amount: %w", p.BillNumber, err)
		}
		p.BillAmount = amount
		if paid != nil {
			collected, err := parseAmount(*paid)
			if err != nil {
				return nil, fmt.Errorf("payouts: bill %s: paid amount: %w", p.BillNumber, err)
			}
			p.EffectiveBilledAmountPaid = &collected
		}
		payouts = append(payouts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("payouts: rows: %w", err)
	}
	return payouts, nil
}

func parseAmount(raw string) (money.Amount, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return money.Amount{}, err
	}
	return money.FromDecimal(d), nil
}
