package workflows

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"redads-automation/internal/core"
	"redads-automation/pkg/utils"
)

// Pause lengths after a click, in seconds
const (
	clickSettle    = 2.0
	monthNavSettle = 1.0
)

// ReportWorkflow configures and exports a report from the ads dashboard
type ReportWorkflow struct {
	browser core.BrowserPort
	config  *core.Config
	logger  *zap.Logger
}

// NewReportWorkflow creates a new report workflow
func NewReportWorkflow(browser core.BrowserPort, config *core.Config, logger *zap.Logger) *ReportWorkflow {
	return &ReportWorkflow{
		browser: browser,
		config:  config,
		logger:  logger,
	}
}

// CreateReport adds the date breakdown, selects the date range and triggers
// the CSV export
func (r *ReportWorkflow) CreateReport(ctx context.Context, dates core.DateRange) error {
	r.logger.Info("Creating report")

	base := core.NewElementPath(r.config.Locators.BaseApp)

	if err := r.SetBreakdowns(ctx, base); err != nil {
		return err
	}
	if err := r.SetDates(ctx, dates.Start, dates.End, base); err != nil {
		return err
	}
	return r.ExportToCSV(ctx, base)
}

// SetBreakdowns opens the breakdown menu and picks the date breakdown
func (r *ReportWorkflow) SetBreakdowns(ctx context.Context, base core.ElementPath) error {
	r.logger.Info("Setting breakdowns")

	button := base.Join(r.config.Locators.BreakdownButton)
	if err := r.click(ctx, button.String(), clickSettle); err != nil {
		return fmt.Errorf("failed to open breakdowns: %w", err)
	}
	if err := r.click(ctx, r.config.Locators.BreakdownDate, clickSettle); err != nil {
		return fmt.Errorf("failed to select date breakdown: %w", err)
	}
	return nil
}

// SetDates opens the calendar, selects start and end and applies the range
func (r *ReportWorkflow) SetDates(ctx context.Context, start, end time.Time, base core.ElementPath) error {
	r.logger.Info("Setting dates",
		zap.String("start", start.Format(utils.DateLayout)),
		zap.String("end", end.Format(utils.DateLayout)),
	)

	loc := r.config.Locators
	button := base.Join(loc.CalendarButton)
	if err := r.click(ctx, button.String(), clickSettle); err != nil {
		return fmt.Errorf("failed to open calendar: %w", err)
	}

	table := button.Join(loc.CalendarTable)
	for _, date := range []time.Time{start, end} {
		if err := r.selectDate(ctx, date, table); err != nil {
			return err
		}
	}

	if err := r.click(ctx, table.Join(loc.CalendarApply).String(), clickSettle); err != nil {
		return fmt.Errorf("failed to apply dates: %w", err)
	}
	return nil
}

// selectDate pages the calendar until date is visible and clicks its cell
func (r *ReportWorkflow) selectDate(ctx context.Context, date time.Time, table core.ElementPath) error {
	root := table.Join(r.config.Locators.CalendarRoot)

	left, err := r.visibleMonth(ctx, root, 1)
	if err != nil {
		return err
	}
	right, err := r.visibleMonth(ctx, root, 2)
	if err != nil {
		return err
	}
	right = LastDayOfMonth(right)

	nav := PlanMonthNavigation(date, left, right)
	if nav.Clicks > 0 {
		r.logger.Debug("Paging calendar",
			zap.String("date", date.Format(utils.DateLayout)),
			zap.Stringer("side", nav.Side),
			zap.Int("clicks", nav.Clicks),
		)
	}

	arrow := root.Join(fmt.Sprintf(r.config.Locators.CalendarNav, int(nav.Side))).String()
	for i := 0; i < nav.Clicks; i++ {
		if err := r.click(ctx, arrow, monthNavSettle); err != nil {
			return fmt.Errorf("failed to page calendar %s: %w", nav.Side, err)
		}
	}

	if err := r.click(ctx, DateCellLocator(date), clickSettle); err != nil {
		return fmt.Errorf("failed to select date %s: %w", date.Format(utils.DateLayout), err)
	}
	return nil
}

// visibleMonth reads the month header at position (1 left, 2 right)
func (r *ReportWorkflow) visibleMonth(ctx context.Context, root core.ElementPath, position int) (time.Time, error) {
	header := root.Join(fmt.Sprintf(r.config.Locators.CalendarMonth, position))

	label, err := r.browser.GetText(ctx, header.String())
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read calendar month: %w", err)
	}
	return ParseMonthLabel(label)
}

// ExportToCSV makes sure the download directory exists and clicks export
func (r *ReportWorkflow) ExportToCSV(ctx context.Context, base core.ElementPath) error {
	r.logger.Info("Downloading created report", zap.String("dir", r.config.Download.Dir))

	if err := os.MkdirAll(r.config.Download.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create download dir: %w", err)
	}

	if err := r.click(ctx, base.Join(r.config.Locators.ExportButton).String(), clickSettle); err != nil {
		return fmt.Errorf("failed to click export: %w", err)
	}
	return nil
}

func (r *ReportWorkflow) click(ctx context.Context, selector string, settle float64) error {
	if err := r.browser.Click(ctx, selector); err != nil {
		return err
	}
	r.browser.Pause(ctx, settle, settle*1.25)
	return nil
}
