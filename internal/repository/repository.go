package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"redads-automation/internal/core"
	"redads-automation/internal/tabular"
)

const rowBatchSize = 500

// Repository implements core.RepositoryPort on top of GORM
type Repository struct {
	db *gorm.DB
}

// Open connects to the configured database and migrates the schema
func Open(cfg core.DatabaseConfig) (*Repository, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "", "sqlite":
		if cfg.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dialector = sqlite.Open(cfg.Path)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	// Silent in production
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	repo := &Repository{db: db}

	// Auto-migrate schema
	if err := repo.Migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

// Migrate runs database migrations
func (r *Repository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(
		&core.ReportRun{},
		&core.ReportRow{},
		&core.History{},
	)
}

// CreateRun stores a new report run
func (r *Repository) CreateRun(ctx context.Context, run *core.ReportRun) error {
	if run.Status == "" {
		run.Status = core.RunStatusPending
	}
	return r.db.WithContext(ctx).Create(run).Error
}

// CompleteRun sets the final status of a run
func (r *Repository) CompleteRun(ctx context.Context, runID, status, fileName string, rowCount int, runErr error) error {
	errText := ""
	if runErr != nil {
		errText = runErr.Error()
	}

	result := r.db.WithContext(ctx).
		Model(&core.ReportRun{}).
		Where("run_id = ?", runID).
		Updates(map[string]interface{}{
			"status":     status,
			"file_name":  fileName,
			"row_count":  rowCount,
			"error":      errText,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// GetRunsByDateRange returns runs whose reporting window overlaps [start, end],
// newest first
func (r *Repository) GetRunsByDateRange(ctx context.Context, start, end time.Time) ([]*core.ReportRun, error) {
	var runs []*core.ReportRun
	result := r.db.WithContext(ctx).
		Where("start_date <= ? AND end_date >= ?", end, start).
		Order("created_at DESC").
		Find(&runs)
	if result.Error != nil {
		return nil, result.Error
	}
	return runs, nil
}

// SaveRows replaces the stored rows of a run with the rows of table
func (r *Repository) SaveRows(ctx context.Context, runID string, table *tabular.Table) error {
	rows := make([]*core.ReportRow, 0, table.Len())
	for i := 0; i < table.Len(); i++ {
		data, err := json.Marshal(table.Record(i))
		if err != nil {
			return fmt.Errorf("failed to encode row %d: %w", i, err)
		}
		rows = append(rows, &core.ReportRow{RunID: runID, RowIndex: i, Data: string(data)})
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", runID).Delete(&core.ReportRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, rowBatchSize).Error
	})
}

// CreateHistory creates a new history record
func (r *Repository) CreateHistory(ctx context.Context, history *core.History) error {
	if history.Timestamp.IsZero() {
		history.Timestamp = time.Now()
	}
	return r.db.WithContext(ctx).Create(history).Error
}

// GetTodayActionCount counts actions of a specific type performed today
func (r *Repository) GetTodayActionCount(ctx context.Context, actionType string) (int64, error) {
	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var count int64
	result := r.db.WithContext(ctx).
		Model(&core.History{}).
		Where("action_type = ? AND timestamp >= ?", actionType, startOfDay).
		Count(&count)
	if result.Error != nil {
		return 0, result.Error
	}

	return count, nil
}

// CanPerformAction checks if an action can be performed based on daily
// limits. A limit of zero or less disables the check.
func (r *Repository) CanPerformAction(ctx context.Context, actionType string, dailyLimit int) (bool, error) {
	if dailyLimit <= 0 {
		return true, nil
	}

	count, err := r.GetTodayActionCount(ctx, actionType)
	if err != nil {
		return false, err
	}

	return count < int64(dailyLimit), nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
