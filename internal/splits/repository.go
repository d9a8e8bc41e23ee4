package splits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/evergreen-media/backstage/internal/money"
)

// Repository provides read and append access to the split history table.
// The table is owned by the accounting subsystem; this layer never issues
// UPDATE or DELETE statements.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Snapshot loads the full split history as an immutable History. The
// version tag is derived from row count and max ID, both of which move on
// every append, so a snapshot taken after a correction never shares a
// version with one taken before.
func (r *Repository) Snapshot(ctx context.Context) (*History, error) {
	var count, maxID int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(MAX(id), 0) FROM revenue_splits`,
	).Scan(&count, &maxID)
	if err != nil {
		return nil, fmt.Errorf("splits: snapshot version: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, show_id, vendor_id, pct_ads::text, pct_programmatic::text, effective_date
		FROM revenue_splits
		ORDER BY show_id, vendor_id, effective_date, id`)
	if err != nil {
		return nil, fmt.Errorf("splits: list: %w", err)
	}
	defer rows.Close()

	var records []SplitRecord
	for rows.Next() {
		var (
			rec              SplitRecord
			ads, programmatic string
		)
		if err := rows.Scan(&rec.ID, &rec.ShowID, &rec.VendorID, &ads, &programmatic, &rec.EffectiveDate); err != nil {
			return nil, fmt.Errorf("splits: scan: %w", err)
		}
		if rec.PartnerPctAds, err = normalizeColumn(ads); err != nil {
			return nil, fmt.Errorf("splits: record %d: %w", rec.ID, err)
		}
		if rec.PartnerPctProgrammatic, err = normalizeColumn(programmatic); err != nil {
			return nil, fmt.Errorf("splits: record %d: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("splits: list: %w", err)
	}

	return NewHistory(fmt.Sprintf("c%d-m%d", count, maxID), records), nil
}

// normalizeColumn converts a stored percentage to the canonical fraction.
// Legacy rows use the whole-number convention (30 instead of 0.30), which
// NormalizePercent accepts at exactly this boundary.
func normalizeColumn(raw string) (money.Percent, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return money.Percent{}, fmt.Errorf("parse percent %q: %w", raw, err)
	}
	return money.NormalizePercent(d)
}

// AppendInput carries a new split configuration.
type AppendInput struct {
	ShowID                 int64
	VendorID               int64
	PartnerPctAds          money.Percent
	PartnerPctProgrammatic money.Percent
	EffectiveDate          time.Time
}

// Append inserts a new split record. A collision on (show, vendor,
// effective_date) surfaces as ErrDuplicateEffectiveDate; the caller must
// pick a later date instead of overwriting history.
func (r *Repository) Append(ctx context.Context, in AppendInput) (SplitRecord, error) {
	rec := SplitRecord{
		ShowID:                 in.ShowID,
		VendorID:               in.VendorID,
		PartnerPctAds:          in.PartnerPctAds,
		PartnerPctProgrammatic: in.PartnerPctProgrammatic,
		EffectiveDate:          in.EffectiveDate,
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO revenue_splits (show_id, vendor_id, pct_ads, pct_programmatic, effective_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		in.ShowID, in.VendorID,
		in.PartnerPctAds.Decimal(), in.PartnerPctProgrammatic.Decimal(),
		in.EffectiveDate,
	).Scan(&rec.ID)
	if err != nil {
		return SplitRecord{}, mapAppendError(err)
	}
	return rec, nil
}

// mapAppendError translates the unique-constraint violation on
// (show, vendor, effective_date) into ErrDuplicateEffectiveDate.
func mapAppendError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateEffectiveDate
	}
	return fmt.Errorf("splits: append: %w", err)
}
