package workflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"redads-automation/internal/core"
	"redads-automation/internal/download"
	"redads-automation/internal/tabular"
	"redads-automation/pkg/utils"
)

// ErrLimitReached is returned when the daily export limit is used up
var ErrLimitReached = errors.New("daily export limit reached")

// DataWorkflow runs a whole export: sign in, build the report, wait for the
// download and record the run
type DataWorkflow struct {
	browser    core.BrowserPort
	repository core.RepositoryPort
	downloads  core.DownloadPort
	auth       *AuthWorkflow
	report     *ReportWorkflow
	config     *core.Config
	logger     *zap.Logger
	now        func() time.Time
}

// NewDataWorkflow creates a new data workflow
func NewDataWorkflow(
	browser core.BrowserPort,
	repository core.RepositoryPort,
	downloads core.DownloadPort,
	config *core.Config,
	logger *zap.Logger,
) *DataWorkflow {
	return &DataWorkflow{
		browser:    browser,
		repository: repository,
		downloads:  downloads,
		auth:       NewAuthWorkflow(browser, repository, config, logger),
		report:     NewReportWorkflow(browser, config, logger),
		config:     config,
		logger:     logger,
		now:        time.Now,
	}
}

// GetData exports the report for dates and returns its rows. Zero start or
// end dates default to yesterday. When the export never lands on disk the
// returned table is empty and the error wraps download.ErrNoDownload.
// The browser is started only once the daily limit allows an export and is
// left open; closing it is up to the caller.
func (d *DataWorkflow) GetData(ctx context.Context, dates core.DateRange) (*tabular.Table, error) {
	start, end, err := utils.DefaultDateRange(dates.Start, dates.End, d.now())
	if err != nil {
		return nil, err
	}
	dates = core.DateRange{Start: start, End: end}

	if limit := d.config.Limits.MaxExportsPerDay; limit > 0 {
		allowed, err := d.repository.CanPerformAction(ctx, core.ActionExport, limit)
		if err != nil {
			d.logger.Warn("Failed to check daily limits", zap.Error(err))
		} else if !allowed {
			return nil, fmt.Errorf("%w (%d exports per day)", ErrLimitReached, limit)
		}
	}

	d.logPreviousRuns(ctx, dates)

	run := &core.ReportRun{
		RunID:     uuid.NewString(),
		StartDate: start,
		EndDate:   end,
		Status:    core.RunStatusPending,
	}
	if err := d.repository.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	logger := d.logger.With(zap.String("run_id", run.RunID))
	logger.Info("Getting data",
		zap.String("start", start.Format(utils.DateLayout)),
		zap.String("end", end.Format(utils.DateLayout)),
	)

	table, fileName, err := d.export(ctx, dates)
	switch {
	case errors.Is(err, download.ErrNoDownload):
		logger.Warn("No report was downloaded", zap.Error(err))
		d.complete(ctx, logger, run.RunID, core.RunStatusEmpty, "", 0, err)
		return table, err
	case err != nil:
		d.complete(ctx, logger, run.RunID, core.RunStatusFailed, fileName, 0, err)
		return nil, err
	}

	if err := d.repository.SaveRows(ctx, run.RunID, table); err != nil {
		d.complete(ctx, logger, run.RunID, core.RunStatusFailed, fileName, 0, err)
		return nil, fmt.Errorf("failed to save rows: %w", err)
	}

	d.history(ctx, logger, core.ActionDownload, fileName)
	d.complete(ctx, logger, run.RunID, core.RunStatusCompleted, fileName, table.Len(), nil)

	logger.Info("Report downloaded",
		zap.String("file", fileName),
		zap.Int("rows", table.Len()),
		zap.Int("columns", len(table.Columns)),
	)
	return table, nil
}

// logPreviousRuns reports earlier runs whose window overlaps dates
func (d *DataWorkflow) logPreviousRuns(ctx context.Context, dates core.DateRange) {
	runs, err := d.repository.GetRunsByDateRange(ctx, dates.Start, dates.End)
	if err != nil {
		d.logger.Warn("Failed to look up previous runs", zap.Error(err))
		return
	}
	for _, run := range runs {
		d.logger.Info("Previous run overlaps requested dates",
			zap.String("run_id", run.RunID),
			zap.String("status", run.Status),
			zap.String("start", run.StartDate.Format(utils.DateLayout)),
			zap.String("end", run.EndDate.Format(utils.DateLayout)),
			zap.Int("rows", run.RowCount),
		)
	}
}

func (d *DataWorkflow) export(ctx context.Context, dates core.DateRange) (*tabular.Table, string, error) {
	if err := d.browser.Initialize(ctx); err != nil {
		return nil, "", fmt.Errorf("failed to start browser: %w", err)
	}

	if err := d.auth.Authenticate(ctx); err != nil {
		return nil, "", fmt.Errorf("authentication failed: %w", err)
	}

	if err := d.report.CreateReport(ctx, dates); err != nil {
		return nil, "", fmt.Errorf("failed to create report: %w", err)
	}
	d.history(ctx, d.logger, core.ActionExport, fmt.Sprintf("%s..%s",
		dates.Start.Format(utils.DateLayout), dates.End.Format(utils.DateLayout)))

	return d.downloads.Wait(ctx)
}

func (d *DataWorkflow) history(ctx context.Context, logger *zap.Logger, action, details string) {
	if err := d.repository.CreateHistory(ctx, &core.History{
		ActionType: action,
		Details:    details,
		Timestamp:  d.now(),
	}); err != nil {
		logger.Warn("Failed to record history", zap.String("action", action), zap.Error(err))
	}
}

func (d *DataWorkflow) complete(ctx context.Context, logger *zap.Logger, runID, status, fileName string, rows int, runErr error) {
	// record the final status even after cancellation
	ctx = context.WithoutCancel(ctx)
	if err := d.repository.CompleteRun(ctx, runID, status, fileName, rows, runErr); err != nil {
		logger.Error("Failed to update run", zap.String("status", status), zap.Error(err))
	}
}
