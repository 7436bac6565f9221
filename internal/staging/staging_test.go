package staging

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

// snapshot maps every file under root to its contents
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	files := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return files
}

type workspace struct {
	root    string
	plan    Plan
	fixture string
}

func newWorkspace(t *testing.T) *workspace {
	root := t.TempDir()
	join := func(parts ...string) string { return filepath.Join(append([]string{root}, parts...)...) }

	writeFile(t, join("config", "vendormatrix.csv"), "original vm")
	writeFile(t, join("config", "redconfig.json"), `{"username":"u"}`)
	writeFile(t, join("dictionaries", "dict_a.csv"), "dict a")
	writeFile(t, join("dictionaries", "translation", "translation.csv"), "original translation")
	writeFile(t, join("raw_data", "old_raw.csv"), "old raw")
	writeFile(t, join("analysis_dict.json"), "{}")

	writeFile(t, join("tests", "vendormatrix.csv"), "fixture vm")
	writeFile(t, join("tests", "rawfile.csv"), "fixture raw")

	return &workspace{
		root: root,
		plan: Plan{
			BackupRoot: join("tests", "tmp"),
			Dirs: []Dir{
				{Path: join("config")},
				{Path: join("dictionaries"), Clear: true, Keep: []string{"translation"}},
				{Path: join("raw_data"), Clear: true},
			},
			Fixtures: []Fixture{
				{Src: join("tests", "vendormatrix.csv"), Dst: join("config", "vendormatrix.csv"), Optional: true},
				{Src: join("tests", "translation.csv"), Dst: join("dictionaries", "translation", "translation.csv"), Optional: true},
				{Src: join("tests", "rawfile.csv"), Dst: join("raw_data", "rawfile.csv")},
			},
			Remove: []string{join("analysis_dict.json")},
		},
	}
}

func (w *workspace) dirs(t *testing.T) map[string]map[string]string {
	out := map[string]map[string]string{}
	for _, d := range []string{"config", "dictionaries", "raw_data"} {
		out[d] = snapshot(t, filepath.Join(w.root, d))
	}
	return out
}

func TestStageAndRestore(t *testing.T) {
	w := newWorkspace(t)
	before := w.dirs(t)

	s, err := Stage(context.Background(), w.plan, zaptest.NewLogger(t))
	require.NoError(t, err)

	staged := w.dirs(t)
	assert.Equal(t, map[string]string{
		"vendormatrix.csv": "fixture vm",
		"redconfig.json":   `{"username":"u"}`,
	}, staged["config"])
	assert.Equal(t, map[string]string{"translation/translation.csv": "original translation"}, staged["dictionaries"])
	assert.Equal(t, map[string]string{"rawfile.csv": "fixture raw"}, staged["raw_data"])
	assert.NoFileExists(t, filepath.Join(w.root, "analysis_dict.json"))
	assert.FileExists(t, filepath.Join(w.plan.BackupRoot, manifestName))

	// files produced during the run must not survive the restore
	writeFile(t, filepath.Join(w.root, "raw_data", "generated.csv"), "output")

	require.NoError(t, s.Restore())
	assert.Equal(t, before, w.dirs(t))
	assert.NoDirExists(t, w.plan.BackupRoot)

	// idempotent
	require.NoError(t, s.Restore())
	assert.Equal(t, before, w.dirs(t))
}

func TestStageMissingDirectoryIsRemovedOnRestore(t *testing.T) {
	w := newWorkspace(t)
	extra := filepath.Join(w.root, "not_there_yet")
	w.plan.Dirs = append(w.plan.Dirs, Dir{Path: extra})

	s, err := Stage(context.Background(), w.plan, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.DirExists(t, extra)

	require.NoError(t, s.Restore())
	assert.NoDirExists(t, extra)
}

func TestStageRollsBackOnMissingFixture(t *testing.T) {
	w := newWorkspace(t)
	before := w.dirs(t)
	w.plan.Fixtures = append(w.plan.Fixtures, Fixture{
		Src: filepath.Join(w.root, "tests", "results.csv"),
		Dst: filepath.Join(w.root, "raw_data", "results.csv"),
	})

	_, err := Stage(context.Background(), w.plan, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "results.csv not found")

	assert.Equal(t, before, w.dirs(t))
	assert.NoDirExists(t, w.plan.BackupRoot)
}

func TestRecoverAfterAbort(t *testing.T) {
	w := newWorkspace(t)
	before := w.dirs(t)
	logger := zaptest.NewLogger(t)

	// staged, then the process died without restoring
	_, err := Stage(context.Background(), w.plan, logger)
	require.NoError(t, err)
	require.NotEqual(t, before, w.dirs(t))

	_, err = Stage(context.Background(), w.plan, logger)
	assert.ErrorIs(t, err, ErrPendingRestore)

	recovered, err := Recover(w.plan.BackupRoot, logger)
	require.NoError(t, err)
	assert.True(t, recovered)
	assert.Equal(t, before, w.dirs(t))

	recovered, err = Recover(w.plan.BackupRoot, logger)
	require.NoError(t, err)
	assert.False(t, recovered)

	s, err := Stage(context.Background(), w.plan, logger)
	require.NoError(t, err)
	require.NoError(t, s.Restore())
}

func TestStageRejectsBackupRootInsideStagedDir(t *testing.T) {
	w := newWorkspace(t)
	w.plan.BackupRoot = filepath.Join(w.root, "raw_data", "backup")

	_, err := Stage(context.Background(), w.plan, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "inside staged directory")
}

func TestStageRejectsStagedDirInsideBackupRoot(t *testing.T) {
	w := newWorkspace(t)
	w.plan.BackupRoot = w.root
	before := snapshot(t, filepath.Join(w.root, "config"))

	_, err := Stage(context.Background(), w.plan, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "inside backup root")

	// nothing was cleared
	assert.Equal(t, before, snapshot(t, filepath.Join(w.root, "config")))
	assert.FileExists(t, filepath.Join(w.root, "tests", "rawfile.csv"))
}

func TestWithin(t *testing.T) {
	base := filepath.Join("work", "tests")
	assert.True(t, within(base, base))
	assert.True(t, within(base, filepath.Join(base, "tmp")))
	assert.False(t, within(base, "work"))
	assert.False(t, within(base, filepath.Join("work", "tests2")))
	assert.False(t, within(base, filepath.Join(base, "..", "..tmp")))
}
