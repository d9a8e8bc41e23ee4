package reports

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/evergreen-media/backstage/internal/compensation"
	"github.com/evergreen-media/backstage/internal/platform/httpx"
)

// Handler exposes the reconciliation reports.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/compensation", h.compensationReport)
	r.Get("/compensation.csv", h.compensationCSV)
	r.Get("/payouts", h.payoutReport)
	r.Get("/payouts.csv", h.payoutCSV)
}

type periodQuery struct {
	From string `validate:"required,datetime=2006-01-02"`
	To   string `validate:"required,datetime=2006-01-02"`
}

func (h *Handler) period(w http.ResponseWriter, r *http.Request) (from, to time.Time, ok bool) {
	q := periodQuery{From: r.URL.Query().Get("from"), To: r.URL.Query().Get("to")}
	if err := h.validate.Struct(q); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid period",
			"from and to (YYYY-MM-DD) are required")
		return time.Time{}, time.Time{}, false
	}
	from, _ = time.Parse(dateLayout, q.From)
	to, _ = time.Parse(dateLayout, q.To)
	if to.Before(from) {
		httpx.Problem(w, http.StatusBadRequest, "invalid period", "to precedes from")
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

func optionalID(r *http.Request, name string) (*int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, false
	}
	return &id, true
}

func (h *Handler) compensationParams(w http.ResponseWriter, r *http.Request) (CompensationParams, bool) {
	from, to, ok := h.period(w, r)
	if !ok {
		return CompensationParams{}, false
	}
	showID, ok := optionalID(r, "show_id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "invalid show_id", "")
		return CompensationParams{}, false
	}
	params := CompensationParams{ShowID: showID, From: from, To: to}
	// Treating pre-history invoices as fully network-owned is an explicit
	// caller decision, never a default.
	if r.URL.Query().Get("fallback") == "all_evergreen" {
		params.Fallback = compensation.FallbackAllEvergreen
	}
	return params, true
}

func (h *Handler) compensationReport(w http.ResponseWriter, r *http.Request) {
	params, ok := h.compensationParams(w, r)
	if !ok {
		return
	}
	report, err := h.service.Compensation(r.Context(), params)
	if err != nil {
		h.logger.Error("compensation report", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "report failed", "")
		return
	}
	httpx.JSON(w, http.StatusOK, compensationResponse{
		CompensationReport: report,
		FormattedTotals: formattedTotals{
			NetRevenue:     FormatUSD(report.Totals.TotalNetRevenue),
			EvergreenShare: FormatUSD(report.Totals.TotalEvergreenShare),
			PartnerShare:   FormatUSD(report.Totals.TotalPartnerShare),
			Outstanding:    FormatUSD(report.Totals.TotalOutstanding),
		},
	})
}

type formattedTotals struct {
	NetRevenue     string `json:"net_revenue"`
	EvergreenShare string `json:"evergreen_share"`
	PartnerShare   string `json:"partner_share"`
	Outstanding    string `json:"outstanding"`
}

type compensationResponse struct {
	CompensationReport
	FormattedTotals formattedTotals `json:"formatted_totals"`
}

func (h *Handler) compensationCSV(w http.ResponseWriter, r *http.Request) {
	params, ok := h.compensationParams(w, r)
	if !ok {
		return
	}
	report, err := h.service.Compensation(r.Context(), params)
	if err != nil {
		h.logger.Error("compensation csv", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "report failed", "")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="compensation.csv"`)
	if err := WriteCompensationCSV(w, report, time.Now()); err != nil {
		h.logger.Error("compensation csv write", slog.Any("error", err))
	}
}

func (h *Handler) payoutReport(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.period(w, r)
	if !ok {
		return
	}
	partnerID, ok := optionalID(r, "partner_id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "invalid partner_id", "")
		return
	}
	report, err := h.service.Payouts(r.Context(), PayoutParams{PartnerID: partnerID, From: from, To: to})
	if err != nil {
		h.logger.Error("payout report", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "report failed", "")
		return
	}
	httpx.JSON(w, http.StatusOK, payoutResponse{
		PayoutReport: report,
		FormattedTotals: payoutFormattedTotals{
			TotalPaid:   FormatUSD(report.TotalPaid),
			TotalBilled: FormatUSD(report.TotalBilled),
			Outstanding: FormatUSD(report.OutstandingBilled),
		},
	})
}

type payoutFormattedTotals struct {
	TotalPaid   string `json:"total_paid"`
	TotalBilled string `json:"total_billed"`
	Outstanding string `json:"outstanding"`
}

type payoutResponse struct {
	PayoutReport
	FormattedTotals payoutFormattedTotals `json:"formatted_totals"`
}

func (h *Handler) payoutCSV(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.period(w, r)
	if !ok {
		return
	}
	partnerID, ok := optionalID(r, "partner_id")
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "invalid partner_id", "")
		return
	}
	report, err := h.service.Payouts(r.Context(), PayoutParams{PartnerID: partnerID, From: from, To: to})
	if err != nil {
		h.logger.Error("payout csv", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "report failed", "")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="payout_reconciliation.csv"`)
	if err := WritePayoutCSV(w, report, time.Now()); err != nil {
		h.logger.Error("payout csv write", slog.Any("error", err))
	}
}
