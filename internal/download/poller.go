package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"redads-automation/internal/core"
	"redads-automation/internal/tabular"
	"redads-automation/pkg/utils"
)

// ErrNoDownload means the poll budget ran out before a file appeared
var ErrNoDownload = errors.New("no file downloaded")

// in-progress browser downloads
var partialSuffixes = []string{".crdownload", ".part", ".tmp"}

// Poller waits for an exported report to land in the download directory.
// It implements core.DownloadPort.
type Poller struct {
	dir         string
	maxAttempts int
	interval    time.Duration
	logger      *zap.Logger
}

// NewPoller creates a poller for the configured download directory
func NewPoller(cfg core.DownloadConfig, logger *zap.Logger) *Poller {
	return &Poller{
		dir:         cfg.Dir,
		maxAttempts: max(cfg.MaxAttempts, 1),
		interval:    cfg.Interval,
		logger:      logger,
	}
}

// Wait polls until a complete file shows up, loads it as CSV, deletes it
// and removes the directory. If nothing arrives within the attempt budget
// it returns an empty table and an error wrapping ErrNoDownload.
func (p *Poller) Wait(ctx context.Context) (*tabular.Table, string, error) {
	p.logger.Info("Waiting for download",
		zap.String("dir", p.dir),
		zap.Int("max_attempts", p.maxAttempts),
		zap.String("max_wait", utils.FormatDuration(time.Duration(p.maxAttempts-1)*p.interval)),
	)

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		p.logger.Info("Checking for file", zap.Int("attempt", attempt))

		name, err := p.nextFile()
		if err != nil {
			return nil, "", err
		}
		if name != "" {
			p.logger.Info("File downloaded", zap.String("file", name))
			table, err := p.consume(name)
			if err != nil {
				return nil, name, err
			}
			return table, name, nil
		}

		if attempt == p.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-time.After(p.interval):
		}
	}

	p.removeDir()
	return tabular.Empty(), "", fmt.Errorf("%w after %d attempts in %s", ErrNoDownload, p.maxAttempts, p.dir)
}

// nextFile returns the first complete file in name order, or "" if none.
// A missing directory counts as empty.
func (p *Poller) nextFile() (string, error) {
	entries, err := os.ReadDir(p.dir)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to list download dir: %w", err)
	}

	for _, entry := range entries {
		if isComplete(entry) {
			return entry.Name(), nil
		}
	}
	return "", nil
}

func isComplete(entry os.DirEntry) bool {
	name := entry.Name()
	if entry.IsDir() || strings.HasPrefix(name, ".") {
		return false
	}
	return !lo.SomeBy(partialSuffixes, func(suffix string) bool {
		return strings.HasSuffix(name, suffix)
	})
}

func (p *Poller) consume(name string) (*tabular.Table, error) {
	path := filepath.Join(p.dir, name)

	table, err := tabular.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load downloaded file: %w", err)
	}
	if err := os.Remove(path); err != nil {
		return nil, fmt.Errorf("failed to remove downloaded file: %w", err)
	}

	p.removeDir()
	return table, nil
}

// removeDir deletes the download directory if it is empty. Leftovers are
// logged and kept.
func (p *Poller) removeDir() {
	err := os.Remove(p.dir)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return
	}

	entries, _ := os.ReadDir(p.dir)
	p.logger.Warn("Download dir not removed",
		zap.String("dir", p.dir),
		zap.Strings("leftovers", lo.Map(entries, func(e os.DirEntry, _ int) string { return e.Name() })),
		zap.Error(err),
	)
}
