package task

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// JanitorConfig holds tunables for the periodic maintenance goroutine.
type JanitorConfig struct {
	// SweepInterval is how often the retention sweep runs.
	SweepInterval time.Duration

	// Retention is how long output files are kept before deletion.
	Retention time.Duration

	// Dirs are the directories subject to the retention sweep.
	Dirs []string

	// IdleCheckInterval is how often the idle-shutdown check runs. Only
	// used when IdleShutdown is enabled.
	IdleCheckInterval time.Duration

	// IdleTimeout is how long the system must stay idle before the
	// shutdown side effect triggers.
	IdleTimeout time.Duration

	// IdleShutdown enables the idle-shutdown check. Off by default; this
	// is a cloud cost-control feature, not core to task correctness.
	IdleShutdown bool

	// IdleShutdownDryRun logs the would-be shutdown instead of executing
	// it.
	IdleShutdownDryRun bool
}

// DefaultJanitorConfig returns janitor defaults matching a 24h retention
// window with hourly sweeps.
func DefaultJanitorConfig() JanitorConfig {
	return JanitorConfig{
		SweepInterval:     time.Hour,
		Retention:         24 * time.Hour,
		IdleCheckInterval: time.Minute,
		IdleTimeout:       15 * time.Minute,
	}
}

// idleReporter is the slice of Manager the janitor needs.
type idleReporter interface {
	Idle() bool
}

// Janitor periodically deletes stale output files and, when enabled, signals
// process shutdown after sustained inactivity. It runs independently of and
// concurrently with the worker loop.
type Janitor struct {
	cfg      JanitorConfig
	manager  idleReporter
	shutdown func()
	logger   *slog.Logger

	idleSince time.Time

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewJanitor creates a Janitor. The shutdown func is the injected
// process-termination side effect; business logic never calls the OS
// primitive directly, which keeps it replaceable in tests.
func NewJanitor(cfg JanitorConfig, manager idleReporter, shutdown func(), logger *slog.Logger) *Janitor {
	if shutdown == nil {
		shutdown = func() {}
	}
	return &Janitor{
		cfg:       cfg,
		manager:   manager,
		shutdown:  shutdown,
		logger:    logger,
		idleSince: time.Now(),
		stop:      make(chan struct{}),
	}
}

// Start launches the maintenance goroutine.
func (j *Janitor) Start() {
	j.wg.Add(1)
	go j.run()

	j.logger.Info("janitor started",
		"sweep_interval", j.cfg.SweepInterval,
		"retention", j.cfg.Retention,
		"idle_shutdown", j.cfg.IdleShutdown)
}

// Stop halts the maintenance goroutine and waits for it to exit.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() { close(j.stop) })
	j.wg.Wait()
}

func (j *Janitor) run() {
	defer j.wg.Done()

	sweep := time.NewTicker(j.cfg.SweepInterval)
	defer sweep.Stop()

	idle := time.NewTicker(j.cfg.IdleCheckInterval)
	defer idle.Stop()

	for {
		select {
		case <-j.stop:
			return
		case <-sweep.C:
			j.Sweep()
		case <-idle.C:
			if j.cfg.IdleShutdown {
				j.checkIdle(time.Now())
			}
		}
	}
}

// Sweep deletes files in the configured directories whose modification time
// is past the retention window. One bad file never aborts the sweep.
func (j *Janitor) Sweep() int {
	cutoff := time.Now().Add(-j.cfg.Retention)
	deleted := 0

	for _, dir := range j.cfg.Dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				j.logger.Error("retention sweep cannot read directory", "dir", dir, "error", err)
			}
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.ModTime().After(cutoff) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err != nil {
				j.logger.Error("retention sweep failed to delete file", "path", path, "error", err)
				continue
			}
			deleted++
		}
	}

	j.logger.Info("retention sweep complete", "deleted", deleted)
	return deleted
}

// checkIdle tracks how long the system has had zero active tasks and an
// empty queue. Any observed activity resets the idle clock.
func (j *Janitor) checkIdle(now time.Time) {
	if !j.manager.Idle() {
		j.idleSince = now
		return
	}

	idleFor := now.Sub(j.idleSince)
	if idleFor < j.cfg.IdleTimeout {
		return
	}

	if j.cfg.IdleShutdownDryRun {
		j.logger.Warn("idle shutdown triggered (dry run, not executing)", "idle_for", idleFor)
		return
	}

	j.logger.Warn("idle shutdown triggered", "idle_for", idleFor)
	j.shutdown()
}
