package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/evergreen-media/backstage/internal/jobs"
	"github.com/evergreen-media/backstage/internal/reports"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const defaultWarmWindowDays = 90

// ReportsWarmJob rebuilds the compensation and payout report caches so the
// first dashboard request after a data load does not pay the build cost.
type ReportsWarmJob struct {
	Reports *reports.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewReportsWarmJob wires dependencies for the warmup handler.
func NewReportsWarmJob(svc *reports.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportsWarmJob {
	return &ReportsWarmJob{
		Reports: svc,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskReportsWarm tasks.
func (j *ReportsWarmJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reports == nil {
		return errors.New("reports warm: handler not configured")
	}
	var payload ReportsWarmPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.WindowDays <= 0 {
		payload.WindowDays = defaultWarmWindowDays
	}

	tracker := j.metrics().Track(TaskReportsWarm)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	now := j.now()
	from := now.AddDate(0, 0, -payload.WindowDays)

	logger := j.logger().With(slog.Int("window_days", payload.WindowDays))
	logger.Info("starting report warmup")

	comp, err := j.Reports.Compensation(ctx, reports.CompensationParams{From: from, To: now})
	if err != nil {
		resultErr = err
		logger.Error("warm compensation report", slog.Any("error", err))
		return resultErr
	}
	for reason, count := range compensationFlagCounts(comp) {
		j.metrics().AddFlags("compensation", reason, count)
	}

	pay, err := j.Reports.Payouts(ctx, reports.PayoutParams{From: from, To: now})
	if err != nil {
		resultErr = err
		logger.Error("warm payout report", slog.Any("error", err))
		return resultErr
	}
	for reason, count := range payoutFlagCounts(pay) {
		j.metrics().AddFlags("payouts", reason, count)
	}

	logger.Info("report warmup complete",
		slog.String("snapshot_version", comp.SnapshotVersion),
		slog.Int("compensation_lines", len(comp.Lines)),
		slog.Int("compensation_flags", len(comp.Flags)),
		slog.Int("payout_flags", len(pay.Flags)),
		slog.Int("unpaid_bills", pay.UnpaidBills),
	)
	return resultErr
}

func compensationFlagCounts(report reports.CompensationReport) map[string]int {
	counts := make(map[string]int)
	for _, f := range report.Flags {
		counts[string(f.Reason)]++
	}
	return counts
}

func payoutFlagCounts(report reports.PayoutReport) map[string]int {
	counts := make(map[string]int)
	for _, f := range report.Flags {
		counts[string(f.Reason)]++
	}
	return counts
}

func (j *ReportsWarmJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ReportsWarmJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *ReportsWarmJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
