// Package splits resolves which revenue split applies to a show/vendor pair
// on a given date. Split configuration is append-only: a correction is a new
// record with a later effective date, so the history stays auditable.
package splits

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/evergreen-media/backstage/internal/money"
)

// ErrNoApplicableSplit indicates that no split record was effective on the
// requested date. The caller decides the fallback; the engine never guesses.
var ErrNoApplicableSplit = errors.New("splits: no applicable split")

// ErrDuplicateEffectiveDate indicates an append collided with an existing
// record for the same show, vendor and effective date.
var ErrDuplicateEffectiveDate = errors.New("splits: duplicate effective date")

// SplitRecord is one immutable entry in the split history.
type SplitRecord struct {
	ID                     int64
	ShowID                 int64
	VendorID               int64
	PartnerPctAds          money.Percent
	PartnerPctProgrammatic money.Percent
	EffectiveDate          time.Time
}

type pairKey struct {
	showID   int64
	vendorID int64
}

// History is an immutable snapshot of split records. Version identifies the
// snapshot so downstream caches never mix resolutions across corrections.
type History struct {
	version string
	byPair  map[pairKey][]SplitRecord
}

// NewHistory indexes a snapshot of records under the given version tag.
// Records are sorted per pair by effective date, then by ID.
func NewHistory(version string, records []SplitRecord) *History {
	byPair := make(map[pairKey][]SplitRecord)
	for _, r := range records {
		key := pairKey{showID: r.ShowID, vendorID: r.VendorID}
		byPair[key] = append(byPair[key], r)
	}
	for key, recs := range byPair {
		sort.Slice(recs, func(i, j int) bool {
			if !recs[i].EffectiveDate.Equal(recs[j].EffectiveDate) {
				return recs[i].EffectiveDate.Before(recs[j].EffectiveDate)
			}
			return recs[i].ID < recs[j].ID
		})
		byPair[key] = recs
	}
	return &History{version: version, byPair: byPair}
}

// Version returns the snapshot identifier.
func (h *History) Version() string {
	if h == nil {
		return ""
	}
	return h.version
}

// Resolve selects the split record for (showID, vendorID) with the greatest
// effective date not after asOf. When two records improbably share that
// date the higher ID wins and a data-integrity warning is returned; the
// pick is deterministic, never silent. Returns ErrNoApplicableSplit when
// every record for the pair postdates asOf or the pair is unknown.
func (h *History) Resolve(showID, vendorID int64, asOf time.Time) (SplitRecord, []string, error) {
	if h == nil {
		return SplitRecord{}, nil, ErrNoApplicableSplit
	}
	recs := h.byPair[pairKey{showID: showID, vendorID: vendorID}]
	// First index whose effective date is after asOf; everything before it
	// qualifies.
	n := sort.Search(len(recs), func(i int) bool {
		return recs[i].EffectiveDate.After(asOf)
	})
	if n == 0 {
		return SplitRecord{}, nil, fmt.Errorf("show %d vendor %d as of %s: %w",
			showID, vendorID, asOf.Format("2006-01-02"), ErrNoApplicableSplit)
	}

	selected := recs[n-1]
	var warnings []string
	if n > 1 && recs[n-2].EffectiveDate.Equal(selected.EffectiveDate) {
		warnings = append(warnings, fmt.Sprintf(
			"split records %d and %d for show %d vendor %d share effective date %s; using %d",
			recs[n-2].ID, selected.ID, showID, vendorID,
			selected.EffectiveDate.Format("2006-01-02"), selected.ID))
	}
	return selected, warnings, nil
}

// PartnerPct returns the partner share for the given revenue category.
func (r SplitRecord) PartnerPct(category RevenueCategory) (money.Percent, error) {
	switch category {
	case CategoryAds:
		return r.PartnerPctAds, nil
	case CategoryProgrammatic:
		return r.PartnerPctProgrammatic, nil
	default:
		return money.Percent{}, fmt.Errorf("splits: unknown revenue category %q", category)
	}
}

// RevenueCategory selects which partner percentage applies to an entry.
type RevenueCategory string

const (
	// CategoryAds covers directly sold advertising revenue.
	CategoryAds RevenueCategory = "ads"
	// CategoryProgrammatic covers programmatically sold revenue.
	CategoryProgrammatic RevenueCategory = "programmatic"
)

// Valid reports whether the category is one the engine knows.
func (c RevenueCategory) Valid() bool {
	return c == CategoryAds || c == CategoryProgrammatic
}
