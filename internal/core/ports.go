package core

import (
	"context"
	"time"

	"redads-automation/internal/tabular"
)

// BrowserPort defines the interface for browser operations.
// Selectors starting with "/" or "(" are XPath, everything else is CSS.
type BrowserPort interface {
	// Initialize launches the browser and prepares the download directory.
	// Calling it again on a running browser is a no-op.
	Initialize(ctx context.Context) error

	// Navigate loads a URL, retrying page-load timeouts with backoff
	Navigate(ctx context.Context, url string) error

	// Click clicks an element with humanized mouse movement
	Click(ctx context.Context, selector string) error

	// Type focuses an element and types text into it
	Type(ctx context.Context, selector string, text string) error

	// WaitForElement waits for an element to appear with timeout
	WaitForElement(ctx context.Context, selector string, timeout time.Duration) error

	// GetText extracts text content from an element
	GetText(ctx context.Context, selector string) (string, error)

	// ElementExists checks if an element exists on the page
	ElementExists(ctx context.Context, selector string) (bool, error)

	// GetCurrentURL returns the current page URL
	GetCurrentURL(ctx context.Context) (string, error)

	// Pause sleeps for a randomized duration between min and max seconds
	Pause(ctx context.Context, minSeconds, maxSeconds float64)

	// SaveCookies saves browser cookies to a file
	SaveCookies(ctx context.Context, path string) error

	// LoadCookies loads browser cookies from a file
	LoadCookies(ctx context.Context, path string) error

	// Close closes the browser instance
	Close(ctx context.Context) error
}

// DownloadPort waits for an exported file and loads it
type DownloadPort interface {
	Wait(ctx context.Context) (*tabular.Table, string, error)
}

// RepositoryPort defines the interface for data persistence
type RepositoryPort interface {
	// Report runs
	CreateRun(ctx context.Context, run *ReportRun) error
	CompleteRun(ctx context.Context, runID, status, fileName string, rowCount int, runErr error) error
	GetRunsByDateRange(ctx context.Context, start, end time.Time) ([]*ReportRun, error)
	SaveRows(ctx context.Context, runID string, table *tabular.Table) error

	// History operations
	CreateHistory(ctx context.Context, history *History) error
	GetTodayActionCount(ctx context.Context, actionType string) (int64, error)

	// Rate limiting
	CanPerformAction(ctx context.Context, actionType string, dailyLimit int) (bool, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}
