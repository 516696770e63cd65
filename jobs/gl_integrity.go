package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-gl/internal/accounting/integrity"
	jobmetrics "github.com/odyssey-erp/odyssey-gl/internal/jobs"
)

type integrityRunner interface {
	Run(ctx context.Context) (integrity.Report, error)
}

type reportStore interface {
	Store(ctx context.Context, report integrity.Report) error
}

// GLIntegrityJob runs the ledger integrity checks, caches the report and meters findings.
type GLIntegrityJob struct {
	Checker integrityRunner
	Reports reportStore
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewGLIntegrityJob initialises the integrity handler. Reports may be nil.
func NewGLIntegrityJob(checker integrityRunner, reports reportStore, logger *slog.Logger, metrics *jobmetrics.Metrics) *GLIntegrityJob {
	return &GLIntegrityJob{Checker: checker, Reports: reports, Logger: logger, Metrics: metrics}
}

// Handle executes one integrity run. Findings are reported, not returned as errors.
func (j *GLIntegrityJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Checker == nil {
		return errors.New("gl integrity: handler not configured")
	}
	payload := GLIntegrityPayload{Trigger: "schedule"}
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("gl integrity: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	tracker := j.Metrics.Track(TaskGLIntegrity)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("job", TaskGLIntegrity), slog.String("trigger", payload.Trigger))
	logger.Info("starting integrity run")

	report, err := j.Checker.Run(ctx)
	if err != nil {
		logger.Error("integrity run failed", slog.Any("error", err))
		return err
	}

	for _, f := range report.Findings {
		logger.Warn("integrity finding",
			slog.String("check", string(f.Check)),
			slog.String("severity", string(f.Severity)),
			slog.Int64("entity_id", f.EntityID),
			slog.String("delta", f.Delta.String()),
			slog.String("message", f.Message),
		)
		j.Metrics.AddFindings(string(f.Check), string(f.Severity), 1)
	}
	if report.Healthy {
		j.Metrics.MarkHealthy(report.CheckedAt)
	}

	if j.Reports != nil {
		if err := j.Reports.Store(ctx, report); err != nil {
			logger.Warn("cache integrity report", slog.Any("error", err))
		}
	}

	logger.Info("integrity run completed",
		slog.Bool("healthy", report.Healthy),
		slog.Int("findings", len(report.Findings)),
		slog.Int("entries_checked", report.JournalBalance.EntriesChecked),
	)
	return nil
}

func (j *GLIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
