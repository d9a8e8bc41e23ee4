package splits

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/evergreen-media/backstage/internal/money"
	"github.com/evergreen-media/backstage/internal/platform/httpx"
)

// Handler exposes split resolution and append endpoints.
type Handler struct {
	logger   *slog.Logger
	repo     *Repository
	validate *validator.Validate
	onAppend func(r *http.Request)
}

// NewHandler builds a handler. onAppend, when non-nil, runs after a
// successful append (cache invalidation hook).
func NewHandler(logger *slog.Logger, repo *Repository, onAppend func(r *http.Request)) *Handler {
	return &Handler{
		logger:   logger,
		repo:     repo,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		onAppend: onAppend,
	}
}

// MountRoutes registers split routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/resolve", h.resolveSplit)
	r.Post("/", h.appendSplit)
}

const dateLayout = "2006-01-02"

// resolveSplit answers which split applied to a show/vendor pair on a date.
func (h *Handler) resolveSplit(w http.ResponseWriter, r *http.Request) {
	showID, err1 := strconv.ParseInt(r.URL.Query().Get("show_id"), 10, 64)
	vendorID, err2 := strconv.ParseInt(r.URL.Query().Get("vendor_id"), 10, 64)
	asOf, err3 := time.Parse(dateLayout, r.URL.Query().Get("as_of"))
	if err1 != nil || err2 != nil || err3 != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid query",
			"show_id, vendor_id and as_of (YYYY-MM-DD) are required")
		return
	}

	history, err := h.repo.Snapshot(r.Context())
	if err != nil {
		h.logger.Error("split snapshot", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "snapshot failed", "")
		return
	}

	rec, warnings, err := history.Resolve(showID, vendorID, asOf)
	if errors.Is(err, ErrNoApplicableSplit) {
		httpx.Problem(w, http.StatusNotFound, "no applicable split",
			"no split record is effective on or before the requested date")
		return
	}
	if err != nil {
		h.logger.Error("split resolve", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "resolve failed", "")
		return
	}
	for _, warning := range warnings {
		h.logger.Warn("split integrity", slog.String("detail", warning))
	}

	httpx.JSON(w, http.StatusOK, resolveResponse{
		ID:                     rec.ID,
		ShowID:                 rec.ShowID,
		VendorID:               rec.VendorID,
		PartnerPctAds:          rec.PartnerPctAds,
		PartnerPctProgrammatic: rec.PartnerPctProgrammatic,
		EffectiveDate:          rec.EffectiveDate.Format(dateLayout),
		SnapshotVersion:        history.Version(),
		Warnings:               warnings,
	})
}

type resolveResponse struct {
	ID                     int64         `json:"id"`
	ShowID                 int64         `json:"show_id"`
	VendorID               int64         `json:"vendor_id"`
	PartnerPctAds          money.Percent `json:"partner_pct_ads"`
	PartnerPctProgrammatic money.Percent `json:"partner_pct_programmatic"`
	EffectiveDate          string        `json:"effective_date"`
	SnapshotVersion        string        `json:"snapshot_version"`
	Warnings               []string      `json:"warnings,omitempty"`
}

type appendRequest struct {
	ShowID                 int64         `json:"show_id" validate:"required,gt=0"`
	VendorID               int64         `json:"vendor_id" validate:"required,gt=0"`
	PartnerPctAds          money.Percent `json:"partner_pct_ads"`
	PartnerPctProgrammatic money.Percent `json:"partner_pct_programmatic"`
	EffectiveDate          string        `json:"effective_date" validate:"required,datetime=2006-01-02"`
}

// appendSplit records a new split configuration. Percentages accept both
// the fraction and whole-number conventions; they are normalized during
// decode, before validation.
func (h *Handler) appendSplit(w http.ResponseWriter, r *http.Request) {
	var req appendRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "validation failed", err.Error())
		return
	}
	effectiveDate, _ := time.Parse(dateLayout, req.EffectiveDate)

	rec, err := h.repo.Append(r.Context(), AppendInput{
		ShowID:                 req.ShowID,
		VendorID:               req.VendorID,
		PartnerPctAds:          req.PartnerPctAds,
		PartnerPctProgrammatic: req.PartnerPctProgrammatic,
		EffectiveDate:          effectiveDate,
	})
	if errors.Is(err, ErrDuplicateEffectiveDate) {
		httpx.Problem(w, http.StatusConflict, "duplicate effective date",
			"a split for this show, vendor and date already exists; append a later correction instead")
		return
	}
	if err != nil {
		h.logger.Error("split append", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "append failed", "")
		return
	}
	if h.onAppend != nil {
		h.onAppend(r)
	}

	httpx.JSON(w, http.StatusCreated, resolveResponse{
		ID:                     rec.ID,
		ShowID:                 rec.ShowID,
		VendorID:               rec.VendorID,
		PartnerPctAds:          rec.PartnerPctAds,
		PartnerPctProgrammatic: rec.PartnerPctProgrammatic,
		EffectiveDate:          rec.EffectiveDate.Format(dateLayout),
	})
}
