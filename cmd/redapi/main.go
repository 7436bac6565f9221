package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"redads-automation/config"
	"redads-automation/internal/browser"
	"redads-automation/internal/core"
	"redads-automation/internal/download"
	"redads-automation/internal/repository"
	"redads-automation/internal/stealth"
	"redads-automation/internal/workflows"
	"redads-automation/pkg/utils"
)

var (
	configPath = flag.String("config", "", "Path to configuration file (default: config/redconfig.json)")
	startDate  = flag.String("start", "", "First report day, YYYY-MM-DD (default: yesterday)")
	endDate    = flag.String("end", "", "Last report day, YYYY-MM-DD (default: yesterday)")
	outPath    = flag.String("out", "", "Write the downloaded report to this CSV file")
	headless   = flag.Bool("headless", false, "Run the browser without a window")
)

func main() {
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Reddit Ads export - Starting", zap.String("version", "1.0.0"))

	dates, err := parseDates(*startDate, *endDate)
	if err != nil {
		logger.Fatal("Invalid date flags", zap.Error(err))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if *headless {
		cfg.Browser.Headless = true
	}
	logger.Info("Configuration loaded", zap.String("config_path", *configPath))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, dates, logger); err != nil {
		logger.Error("Export failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("Export completed successfully")
}

func parseDates(start, end string) (core.DateRange, error) {
	s, err := utils.ParseDate(start, time.Local)
	if err != nil {
		return core.DateRange{}, fmt.Errorf("-start: %w", err)
	}
	e, err := utils.ParseDate(end, time.Local)
	if err != nil {
		return core.DateRange{}, fmt.Errorf("-end: %w", err)
	}
	return core.DateRange{Start: s, End: e}, nil
}

func run(ctx context.Context, cfg *core.Config, dates core.DateRange, logger *zap.Logger) error {
	repo, err := repository.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("Failed to close repository", zap.Error(err))
		}
	}()
	logger.Info("Repository initialized", zap.String("driver", cfg.Database.Driver))

	stealthEngine := stealth.NewStealth(&cfg.Stealth)

	browserInstance := browser.NewInstance(cfg, stealthEngine, logger)
	// launched by GetData once the daily limit allows an export
	defer func() {
		if err := browserInstance.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Error("Failed to close browser", zap.Error(err))
		}
	}()

	poller := download.NewPoller(cfg.Download, logger)
	data := workflows.NewDataWorkflow(browserInstance, repo, poller, cfg, logger)

	table, err := data.GetData(ctx, dates)
	switch {
	case errors.Is(err, download.ErrNoDownload):
		logger.Warn("Report was not downloaded, nothing to write", zap.Error(err))
		return nil
	case err != nil:
		return err
	}

	logger.Info("Report downloaded",
		zap.Int("rows", table.Len()),
		zap.Strings("columns", table.Columns),
	)

	if *outPath == "" {
		return nil
	}
	if err := table.WriteFile(*outPath); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	logger.Info("Report written", zap.String("path", *outPath))
	return nil
}
