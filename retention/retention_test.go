package retention_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golift.io/httplog/mocks"
	"golift.io/httplog/pathtmpl"
	"golift.io/httplog/retention"
)

var errTest = errors.New("this is a test error")

// makeLogs creates count files named day-N.log, each one day older than the last.
func makeLogs(t *testing.T, dir string, now time.Time, count int) []string {
	t.Helper()

	files := make([]string, count)

	for idx := range count {
		files[idx] = filepath.Join(dir, "day-"+string(rune('a'+idx))+".log")
		require.NoError(t, os.WriteFile(files[idx], []byte("line\n"), 0o600))

		when := now.Add(-time.Duration(idx) * 24 * time.Hour)
		require.NoError(t, os.Chtimes(files[idx], when, when))
	}

	return files
}

func TestPruneCount(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	dir := t.TempDir()
	now := time.Now()
	files := makeLogs(t, dir, now, 5)
	// files[1] was compressed; only its .gz exists.
	require.NoError(t, os.Rename(files[1], files[1]+retention.GZext))

	policy := &retention.Policy{Glob: filepath.Join(dir, "day-*.log"), MaxFiles: 2}

	deleted, err := policy.Prune(files[0])
	assert.NoError(err)
	assert.ElementsMatch([]string{files[3], files[4]}, deleted)
	assert.FileExists(files[0], "the current file is never deleted")
	assert.FileExists(files[1] + retention.GZext)
	assert.FileExists(files[2])
	assert.NoFileExists(files[3])
	assert.NoFileExists(files[4])
}

func TestPruneAge(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	dir := t.TempDir()
	now := time.Now()
	files := makeLogs(t, dir, now, 4)
	policy := &retention.Policy{
		Glob:   filepath.Join(dir, "day-*.log"),
		MaxAge: 36 * time.Hour,
		Now:    func() time.Time { return now },
	}

	deleted, err := policy.Prune(files[0])
	assert.NoError(err)
	assert.ElementsMatch([]string{files[2], files[3]}, deleted)
	assert.FileExists(files[1])
}

func TestPostRotate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files := makeLogs(t, dir, time.Now(), 3)
	policy := &retention.Policy{Glob: filepath.Join(dir, "day-*.log"), MaxFiles: 1}

	policy.PostRotate("", files[0])
	policy.Wait()

	assert.FileExists(t, files[0])
	assert.FileExists(t, files[1])
	assert.NoFileExists(t, files[2])

	// Disabled policies do nothing.
	(&retention.Policy{Glob: filepath.Join(dir, "day-*.log")}).PostRotate("", "")
	assert.FileExists(t, files[1])
}

func TestPruneErrors(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	_, err := (&retention.Policy{MaxFiles: 1}).Prune("x")
	assert.ErrorIs(err, retention.ErrNoGlob)

	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	dir := t.TempDir()
	files := makeLogs(t, dir, time.Now(), 2)
	mockFiler := mocks.NewMockFiler(mockCtrl)
	policy := &retention.Policy{Glob: "day-*.log", MaxAge: time.Hour, Filer: mockFiler}

	mockFiler.EXPECT().Glob("day-*.log").Return(files, nil)
	mockFiler.EXPECT().Glob("day-*.log.gz").Return(nil, nil)
	mockFiler.EXPECT().Stat(gomock.Any()).DoAndReturn(os.Stat).Times(1) // files[0] is current.
	mockFiler.EXPECT().Remove(files[1]).Return(errTest)
	mockFiler.EXPECT().Remove(files[1]+retention.GZext).Return(os.ErrNotExist)

	deleted, err := policy.Prune(files[0])
	assert.ErrorIs(err, errTest)
	assert.Empty(deleted)
}

func TestPruneOnlyTemplateFiles(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	dir := t.TempDir()
	old := time.Now().Add(-48 * time.Hour)
	// The unusual spelling must still protect the active file.
	tmpl, err := pathtmpl.New(dir+"/.//%Y%m%d.log", pathtmpl.UnknownHost())
	require.NoError(t, err)

	for _, name := range []string{"20240101.log", "20240102.log.gz", "20240103.log", "error.log", "www2-20240101.log", "2024.log"} {
		fileName := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(fileName, []byte("line\n"), 0o600))
		require.NoError(t, os.Chtimes(fileName, old, old))
	}

	policy := &retention.Policy{Glob: tmpl.Glob(), Match: tmpl.Match, MaxAge: time.Hour}

	deleted, err := policy.Prune(dir + "/.//20240103.log")
	assert.NoError(err)
	assert.ElementsMatch([]string{filepath.Join(dir, "20240101.log"), filepath.Join(dir, "20240102.log.gz")}, deleted)
	assert.FileExists(filepath.Join(dir, "20240103.log"), "the active file is never deleted")
	assert.FileExists(filepath.Join(dir, "error.log"), "files the template never wrote are kept")
	assert.FileExists(filepath.Join(dir, "www2-20240101.log"))
	assert.FileExists(filepath.Join(dir, "2024.log"))
}
