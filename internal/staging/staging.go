// Package staging swaps working directories for test fixtures and puts them
// back afterwards. A manifest in the backup root makes the swap recoverable
// when a run dies before restoring.
package staging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

const manifestName = "manifest.json"

// ErrPendingRestore means a manifest from an earlier stage is still present
var ErrPendingRestore = errors.New("previous staging was not restored")

// Dir is a working directory to back up and stage
type Dir struct {
	Path  string
	Clear bool     // empty the directory after backing it up
	Keep  []string // sub-paths copied back from the backup after clearing
}

// Fixture is a file copied into place while staged
type Fixture struct {
	Src      string
	Dst      string
	Optional bool // skip silently when Src is missing
}

// Plan describes a staging run
type Plan struct {
	BackupRoot string
	Dirs       []Dir
	Fixtures   []Fixture
	Remove     []string // stale outputs deleted before the run; not restored
}

type manifestEntry struct {
	Path    string `json:"path"`
	Backup  string `json:"backup"`
	Existed bool   `json:"existed"`
}

type manifest struct {
	CreatedAt time.Time       `json:"created_at"`
	Entries   []manifestEntry `json:"entries"`
}

// Staged is an applied plan. Restore puts every directory back.
type Staged struct {
	root     string
	entries  []manifestEntry
	logger   *zap.Logger
	mu       sync.Mutex
	restored bool
}

// Stage backs up every directory of plan, writes the manifest and only then
// modifies the working tree. Any failure after the manifest is written is
// rolled back before returning.
func Stage(ctx context.Context, plan Plan, logger *zap.Logger) (*Staged, error) {
	if plan.BackupRoot == "" {
		return nil, errors.New("backup root is required")
	}

	if err := checkBackupRoot(plan); err != nil {
		return nil, err
	}

	manifestPath := filepath.Join(plan.BackupRoot, manifestName)
	pending, err := exists(manifestPath)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, fmt.Errorf("%w: %s", ErrPendingRestore, manifestPath)
	}

	// leftovers without a manifest never touched the working tree
	if err := os.RemoveAll(plan.BackupRoot); err != nil {
		return nil, fmt.Errorf("failed to clear backup root: %w", err)
	}

	entries, err := backup(ctx, plan)
	if err != nil {
		_ = os.RemoveAll(plan.BackupRoot)
		return nil, err
	}

	if err := writeManifest(manifestPath, entries); err != nil {
		_ = os.RemoveAll(plan.BackupRoot)
		return nil, err
	}

	s := &Staged{root: plan.BackupRoot, entries: entries, logger: logger}
	if err := s.apply(ctx, plan); err != nil {
		if rerr := s.Restore(); rerr != nil {
			return nil, errors.Join(err, fmt.Errorf("rollback failed: %w", rerr))
		}
		return nil, err
	}

	logger.Info("Fixtures staged",
		zap.String("backup_root", plan.BackupRoot),
		zap.Strings("dirs", lo.Map(entries, func(e manifestEntry, _ int) string { return e.Path })),
		zap.Int("fixtures", len(plan.Fixtures)),
	)
	return s, nil
}

// checkBackupRoot rejects a backup root that overlaps a staged directory in
// either direction, since the root is cleared before backing up
func checkBackupRoot(plan Plan) error {
	root, err := filepath.Abs(plan.BackupRoot)
	if err != nil {
		return err
	}
	for _, dir := range plan.Dirs {
		path, err := filepath.Abs(dir.Path)
		if err != nil {
			return err
		}
		if within(path, root) {
			return fmt.Errorf("backup root %s is inside staged directory %s", plan.BackupRoot, dir.Path)
		}
		if within(root, path) {
			return fmt.Errorf("staged directory %s is inside backup root %s", dir.Path, plan.BackupRoot)
		}
	}
	return nil
}

// within reports whether path is base or lies below it
func within(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func backup(ctx context.Context, plan Plan) ([]manifestEntry, error) {
	entries := make([]manifestEntry, 0, len(plan.Dirs))
	for i, dir := range plan.Dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path, err := filepath.Abs(dir.Path)
		if err != nil {
			return nil, err
		}
		entry := manifestEntry{
			Path:   path,
			Backup: filepath.Join(plan.BackupRoot, "dirs", strconv.Itoa(i)),
		}

		entry.Existed, err = exists(path)
		if err != nil {
			return nil, err
		}
		if entry.Existed {
			if err := copyTree(path, entry.Backup); err != nil {
				return nil, fmt.Errorf("failed to back up %s: %w", dir.Path, err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Staged) apply(ctx context.Context, plan Plan) error {
	for i, dir := range plan.Dirs {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry := s.entries[i]

		if dir.Clear {
			if err := os.RemoveAll(entry.Path); err != nil {
				return fmt.Errorf("failed to clear %s: %w", dir.Path, err)
			}
		}
		if err := os.MkdirAll(entry.Path, 0755); err != nil {
			return err
		}

		for _, keep := range dir.Keep {
			src := filepath.Join(entry.Backup, keep)
			ok, err := exists(src)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if err := copyTree(src, filepath.Join(entry.Path, keep)); err != nil {
				return fmt.Errorf("failed to keep %s in %s: %w", keep, dir.Path, err)
			}
		}
	}

	for _, fixture := range plan.Fixtures {
		ok, err := exists(fixture.Src)
		if err != nil {
			return err
		}
		if !ok {
			if fixture.Optional {
				s.logger.Debug("Optional fixture missing", zap.String("src", fixture.Src))
				continue
			}
			return fmt.Errorf("fixture %s not found", fixture.Src)
		}
		if err := copyFile(fixture.Src, fixture.Dst); err != nil {
			return fmt.Errorf("failed to stage fixture: %w", err)
		}
	}

	for _, path := range plan.Remove {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}

// Restore replaces every staged directory with its backup and deletes the
// backup root. It is safe to call more than once; after a failure the
// manifest is kept so Recover can finish the job.
func (s *Staged) Restore() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.restored {
		return nil
	}
	if err := restoreEntries(s.entries); err != nil {
		s.logger.Error("Restore incomplete", zap.String("backup_root", s.root), zap.Error(err))
		return err
	}
	if err := os.RemoveAll(s.root); err != nil {
		return fmt.Errorf("failed to remove backup root: %w", err)
	}

	s.restored = true
	s.logger.Info("Staged directories restored", zap.Int("dirs", len(s.entries)))
	return nil
}

// Recover restores directories from a manifest left behind by an aborted
// run. It reports whether anything was restored.
func Recover(backupRoot string, logger *zap.Logger) (bool, error) {
	manifestPath := filepath.Join(backupRoot, manifestName)
	data, err := os.ReadFile(manifestPath)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return false, fmt.Errorf("failed to parse manifest %s: %w", manifestPath, err)
	}

	logger.Warn("Recovering directories from an aborted run",
		zap.String("backup_root", backupRoot),
		zap.Time("staged_at", m.CreatedAt),
	)

	s := &Staged{root: backupRoot, entries: m.Entries, logger: logger}
	if err := s.Restore(); err != nil {
		return false, err
	}
	return true, nil
}

func restoreEntries(entries []manifestEntry) error {
	var errs []error
	for _, entry := range entries {
		if err := os.RemoveAll(entry.Path); err != nil {
			errs = append(errs, fmt.Errorf("failed to clear %s: %w", entry.Path, err))
			continue
		}
		if !entry.Existed {
			continue
		}
		if err := copyTree(entry.Backup, entry.Path); err != nil {
			errs = append(errs, fmt.Errorf("failed to restore %s: %w", entry.Path, err))
		}
	}
	return errors.Join(errs...)
}

func writeManifest(path string, entries []manifestEntry) error {
	data, err := json.MarshalIndent(manifest{CreatedAt: time.Now(), Entries: entries}, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return os.Rename(tmp, path)
}
