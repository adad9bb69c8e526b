package task

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubIdleReporter struct{ idle bool }

func (s *stubIdleReporter) Idle() bool { return s.idle }

func touchFile(t *testing.T, path string, modTime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
}

func TestJanitor_SweepDeletesOnlyStaleFiles(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	touchFile(t, filepath.Join(dir, "old.txt"), now.Add(-48*time.Hour))
	touchFile(t, filepath.Join(dir, "fresh.txt"), now)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	cfg := DefaultJanitorConfig()
	cfg.Dirs = []string{dir}

	j := NewJanitor(cfg, &stubIdleReporter{}, nil, testLogger())
	deleted := j.Sweep()

	assert.Equal(t, 1, deleted)
	assert.NoFileExists(t, filepath.Join(dir, "old.txt"))
	assert.FileExists(t, filepath.Join(dir, "fresh.txt"))
	assert.DirExists(t, filepath.Join(dir, "nested"))
}

func TestJanitor_SweepSkipsMissingDirectory(t *testing.T) {
	cfg := DefaultJanitorConfig()
	cfg.Dirs = []string{filepath.Join(t.TempDir(), "does-not-exist")}

	j := NewJanitor(cfg, &stubIdleReporter{}, nil, testLogger())
	assert.Equal(t, 0, j.Sweep())
}

func TestJanitor_IdleTimeoutTriggersShutdown(t *testing.T) {
	cfg := DefaultJanitorConfig()
	cfg.IdleShutdown = true
	cfg.IdleTimeout = 10 * time.Minute

	fired := 0
	j := NewJanitor(cfg, &stubIdleReporter{idle: true}, func() { fired++ }, testLogger())

	base := time.Now()
	j.idleSince = base

	j.checkIdle(base.Add(5 * time.Minute))
	assert.Equal(t, 0, fired, "shutdown must not fire before the timeout")

	j.checkIdle(base.Add(11 * time.Minute))
	assert.Equal(t, 1, fired)
}

func TestJanitor_ActivityResetsIdleClock(t *testing.T) {
	cfg := DefaultJanitorConfig()
	cfg.IdleShutdown = true
	cfg.IdleTimeout = 10 * time.Minute

	reporter := &stubIdleReporter{idle: true}
	fired := 0
	j := NewJanitor(cfg, reporter, func() { fired++ }, testLogger())

	base := time.Now()
	j.idleSince = base

	// Activity observed past the timeout window resets the clock.
	reporter.idle = false
	j.checkIdle(base.Add(20 * time.Minute))
	assert.Equal(t, 0, fired)

	// Idle again, but only since the reset.
	reporter.idle = true
	j.checkIdle(base.Add(25 * time.Minute))
	assert.Equal(t, 0, fired)

	j.checkIdle(base.Add(31 * time.Minute))
	assert.Equal(t, 1, fired)
}

func TestJanitor_DryRunNeverShutsDown(t *testing.T) {
	cfg := DefaultJanitorConfig()
	cfg.IdleShutdown = true
	cfg.IdleTimeout = time.Minute
	cfg.IdleShutdownDryRun = true

	fired := 0
	j := NewJanitor(cfg, &stubIdleReporter{idle: true}, func() { fired++ }, testLogger())

	j.idleSince = time.Now().Add(-time.Hour)
	j.checkIdle(time.Now())
	assert.Equal(t, 0, fired)
}

func TestJanitor_StartStop(t *testing.T) {
	cfg := DefaultJanitorConfig()
	cfg.SweepInterval = time.Hour
	cfg.IdleCheckInterval = time.Hour

	j := NewJanitor(cfg, &stubIdleReporter{}, nil, testLogger())
	j.Start()
	j.Stop()
	// Stop is idempotent.
	j.Stop()
}
