package gc_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devenvgo/devenv/pkg/gc"
)

type recordingCollector struct {
	mu    sync.Mutex
	calls [][]string
	err   error
	// run executes during GC, standing in for the store deleting outputs
	run func()
}

func (c *recordingCollector) GC(_ context.Context, live []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, append([]string(nil), live...))
	if c.run != nil {
		c.run()
	}
	return c.err
}

func canonical(t *testing.T, path string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(path)
	require.NoError(t, err)
	return resolved
}

func TestCollect_LiveAndDangling(t *testing.T) {
	dir := t.TempDir()
	homeGC := filepath.Join(dir, "gc")
	require.NoError(t, os.MkdirAll(homeGC, 0755))

	liveTarget := filepath.Join(dir, "out-live")
	require.NoError(t, os.MkdirAll(liveTarget, 0755))
	require.NoError(t, os.Symlink(liveTarget, filepath.Join(homeGC, "live")))
	require.NoError(t, os.Symlink(filepath.Join(dir, "out-deleted"), filepath.Join(homeGC, "dangling")))
	// A plain file is not a generation
	require.NoError(t, os.WriteFile(filepath.Join(homeGC, "README"), []byte("x"), 0644))

	collector := &recordingCollector{}
	report, err := gc.Collect(context.Background(), homeGC, collector, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 1, report.RemovedDangling)
	assert.Equal(t, 0, report.RemovedLive)

	require.Len(t, collector.calls, 1)
	assert.Equal(t, []string{canonical(t, liveTarget)}, collector.calls[0])

	_, err = os.Lstat(filepath.Join(homeGC, "dangling"))
	assert.True(t, os.IsNotExist(err), "dangling generation should be removed")
	assert.DirExists(t, liveTarget)
	assert.FileExists(t, filepath.Join(homeGC, "README"))
}

func TestCollect_ReportsLiveRemovedDuringCollection(t *testing.T) {
	dir := t.TempDir()
	homeGC := filepath.Join(dir, "gc")

	first := filepath.Join(dir, "out-1")
	second := filepath.Join(dir, "out-2")
	for _, target := range []string{first, second} {
		require.NoError(t, os.MkdirAll(target, 0755))
		_, err := gc.AddGeneration(homeGC, target)
		require.NoError(t, err)
	}

	collector := &recordingCollector{run: func() {
		require.NoError(t, os.RemoveAll(second))
	}}
	report, err := gc.Collect(context.Background(), homeGC, collector, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, report.RemovedDangling)
	assert.Equal(t, 1, report.RemovedLive)
	assert.Len(t, report.Live, 2)
}

func TestCollect_MissingDirectoryIsCreated(t *testing.T) {
	homeGC := filepath.Join(t.TempDir(), "does", "not", "exist")

	collector := &recordingCollector{}
	report, err := gc.Collect(context.Background(), homeGC, collector, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Scanned)
	assert.DirExists(t, homeGC)
	require.Len(t, collector.calls, 1)
	assert.Empty(t, collector.calls[0])
}

func TestCollect_BackendFailure(t *testing.T) {
	want := errors.New("store locked")
	_, err := gc.Collect(context.Background(), t.TempDir(), &recordingCollector{err: want}, nil)
	assert.ErrorIs(t, err, want)
}

func TestAddGeneration(t *testing.T) {
	dir := t.TempDir()
	homeGC := filepath.Join(dir, "home-gc")
	gcRoot := filepath.Join(dir, "project", ".devenv", "gc", "shell")
	require.NoError(t, os.MkdirAll(filepath.Dir(gcRoot), 0755))
	require.NoError(t, os.WriteFile(gcRoot, nil, 0644))

	link, err := gc.AddGeneration(homeGC, gcRoot)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(homeGC, gc.LinkName(gcRoot)), link)

	again, err := gc.AddGeneration(homeGC, gcRoot)
	require.NoError(t, err)
	assert.Equal(t, link, again)

	target, err := os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, gcRoot, target)

	live, dangling, err := gc.Scan(homeGC)
	require.NoError(t, err)
	assert.Len(t, live, 1)
	assert.Empty(t, dangling)
}

func TestLinkName(t *testing.T) {
	a := gc.LinkName("/p1/.devenv/gc/shell")
	b := gc.LinkName("/p2/.devenv/gc/shell")
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^[0-9a-f]{12}-shell$`, a)
}
