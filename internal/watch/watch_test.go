package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func testWatcher(t *testing.T, dir, hint string, baseline Snapshot) *Watcher {
	t.Helper()
	return New(Config{
		Dir:          dir,
		Hint:         hint,
		PollInterval: 20 * time.Millisecond,
		Timeout:      2 * time.Second,
		Log:          zaptest.NewLogger(t),
	}, baseline)
}

func TestTakeSnapshot(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.rar", "aaa")
	write(t, dir, "b.rar", "b")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	snap := Take(dir)
	require.Len(t, snap, 2)
	assert.Equal(t, int64(3), snap["a.rar"].Size)
	assert.Equal(t, int64(1), snap["b.rar"].Size)
}

func TestTakeMissingDir(t *testing.T) {
	snap := Take(filepath.Join(t.TempDir(), "gone"))
	assert.Empty(t, snap)
}

// Drives the state machine poll by poll with hand-built snapshots, no timing.
func TestStepTransitions(t *testing.T) {
	w := testWatcher(t, t.TempDir(), "file.rar", Snapshot{})

	// Nothing new: still watching.
	w.step(Snapshot{})
	assert.Equal(t, Watching, w.State())

	// Temp file appears: pending.
	w.step(Snapshot{"file.rar.crdownload": {Size: 10}})
	assert.Equal(t, Pending, w.State())

	// Temp file grows: still pending, never done.
	w.step(Snapshot{"file.rar.crdownload": {Size: 50}})
	assert.Equal(t, Pending, w.State())

	// Renamed to its final name: stable, not yet done.
	w.step(Snapshot{"file.rar": {Size: 100}})
	assert.Equal(t, Stable, w.State())

	// Size moved again: back to pending.
	w.step(Snapshot{"file.rar": {Size: 120}})
	assert.Equal(t, Pending, w.State())

	// Settles again: stable, then a second identical reading completes it.
	w.step(Snapshot{"file.rar": {Size: 150}})
	assert.Equal(t, Stable, w.State())
	w.step(Snapshot{"file.rar": {Size: 150}})
	assert.Equal(t, Done, w.State())
}

func TestStepRequiresTwoEqualReadings(t *testing.T) {
	w := testWatcher(t, t.TempDir(), "", Snapshot{})

	w.step(Snapshot{"file.rar": {Size: 100}})
	assert.Equal(t, Stable, w.State(), "one reading must not complete the attempt")

	w.step(Snapshot{"file.rar": {Size: 100}})
	assert.Equal(t, Done, w.State())
}

func TestStepNeverDoneOnTempFile(t *testing.T) {
	w := testWatcher(t, t.TempDir(), "", Snapshot{})

	for i := 0; i < 5; i++ {
		w.step(Snapshot{"file.rar.part": {Size: 100}})
		assert.NotEqual(t, Done, w.State())
	}
}

func TestStepIgnoresSidecarWithHint(t *testing.T) {
	w := testWatcher(t, t.TempDir(), "file.rar", Snapshot{})

	w.step(Snapshot{"file.rar.meta": {Size: 5}, "thumbnail.png": {Size: 9}})
	assert.Equal(t, Watching, w.State())

	// The duplicate-suffixed variant of the hint does qualify.
	w.step(Snapshot{"file (1).rar": {Size: 100}, "thumbnail.png": {Size: 9}})
	assert.Equal(t, Stable, w.State())
	w.step(Snapshot{"file (1).rar": {Size: 100}, "thumbnail.png": {Size: 9}})
	assert.Equal(t, Done, w.State())
	assert.Equal(t, "file (1).rar", w.candidate)
}

func TestStepPicksMostRecentWithoutHint(t *testing.T) {
	w := testWatcher(t, t.TempDir(), "", Snapshot{})

	old := time.Now().Add(-time.Hour)
	now := time.Now()
	snap := Snapshot{
		"older.bin": {Size: 10, ModTime: old},
		"newer.bin": {Size: 20, ModTime: now},
	}
	w.step(snap)
	w.step(snap)
	assert.Equal(t, Done, w.State())
	assert.Equal(t, "newer.bin", w.candidate)
}

func TestStepIgnoresBaselineFiles(t *testing.T) {
	baseline := Snapshot{"existing.rar": {Size: 10}}
	w := testWatcher(t, t.TempDir(), "", baseline)

	w.step(Snapshot{"existing.rar": {Size: 10}})
	w.step(Snapshot{"existing.rar": {Size: 10}})
	assert.Equal(t, Watching, w.State())
}

func TestWaitCompletesAfterRename(t *testing.T) {
	dir := t.TempDir()
	baseline := Take(dir)
	w := testWatcher(t, dir, "file.rar", baseline)

	go func() {
		time.Sleep(30 * time.Millisecond)
		write(t, dir, "file.rar.crdownload", "partial")
		time.Sleep(60 * time.Millisecond)
		require.NoError(t, os.Rename(
			filepath.Join(dir, "file.rar.crdownload"),
			filepath.Join(dir, "file.rar")))
	}()

	path, err := w.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "file.rar"), path)
	assert.Equal(t, Done, w.State())
}

func TestWaitTimesOutWhenNothingAppears(t *testing.T) {
	dir := t.TempDir()
	w := New(Config{
		Dir:          dir,
		PollInterval: 10 * time.Millisecond,
		Timeout:      60 * time.Millisecond,
		Log:          zaptest.NewLogger(t),
	}, Take(dir))

	_, err := w.Wait(context.Background())
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, TimedOut, w.State())
}

func TestWaitTimesOutOnStuckTempFile(t *testing.T) {
	dir := t.TempDir()
	baseline := Take(dir)
	write(t, dir, "file.rar.crdownload", "stuck")

	w := New(Config{
		Dir:          dir,
		PollInterval: 10 * time.Millisecond,
		Timeout:      80 * time.Millisecond,
		Log:          zaptest.NewLogger(t),
	}, baseline)

	_, err := w.Wait(context.Background())
	require.ErrorIs(t, err, ErrTimeout)
}

func TestWaitHonorsContextCancel(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	w := New(Config{
		Dir:          dir,
		PollInterval: 10 * time.Millisecond,
		Timeout:      5 * time.Second,
		Log:          zaptest.NewLogger(t),
	}, Take(dir))

	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err := w.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
