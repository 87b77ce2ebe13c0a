package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/gofrs/flock"

	"coursecast/internal/capability"
	"coursecast/internal/catalog"
	"coursecast/internal/config"
	"coursecast/internal/database"
	"coursecast/internal/logging"
	"coursecast/internal/metrics"
	"coursecast/internal/queue"
	"coursecast/internal/worker"
)

// ErrAlreadyRunning is returned when another worker daemon holds the lock.
var ErrAlreadyRunning = errors.New("another coursecast worker is already running")

// Daemon runs the worker pool and status API and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	db     *database.DB
	assets *catalog.Store
	jobs   *queue.Store
	pool   *worker.Pool
	probe  *capability.Probe
	logger *slog.Logger

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Pool         worker.Status
	Queue        queue.HealthSummary
	DatabasePath string
	LockFilePath string
	APIAddress   string
}

// New constructs a daemon around an open database, a worker pool and a capability probe.
func New(cfg *config.Config, db *database.DB, pool *worker.Pool, probe *capability.Probe, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || db == nil || pool == nil || probe == nil {
		return nil, errors.New("daemon requires config, database, worker pool, and capability probe")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		db:       db,
		assets:   catalog.NewStore(db),
		jobs:     queue.NewStore(db),
		pool:     pool,
		probe:    probe,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg.API.Bind, d, logger)
	return d, nil
}

// Start acquires the daemon lock, then launches the worker pool and the status API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	metrics.InitializeMetrics()
	runCtx, cancel := context.WithCancel(ctx)
	if err := d.pool.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start worker pool: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		cancel()
		d.pool.Stop()
		_ = d.lock.Unlock()
		return fmt.Errorf("start status api: %w", err)
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("coursecast worker started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.Int("workers", d.pool.Size()),
		logging.String("api", d.api.address()),
	)
	return nil
}

// Stop halts the workers and the API and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Swap(false) {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.pool.Stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.Error(err),
			logging.String("lock", d.lockPath),
			logging.String(logging.FieldErrorHint, "remove the lock file if no worker is running"),
		)
	}
	d.logger.Info("coursecast worker stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and closes the database.
func (d *Daemon) Close() error {
	d.Stop()
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// Status returns the current daemon status. Queue counts are left empty when
// the database cannot be read.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Pool:         d.pool.Status(),
		DatabasePath: d.db.Path(),
		LockFilePath: d.lockPath,
		APIAddress:   d.api.address(),
	}
	if health, err := d.jobs.Health(ctx); err == nil {
		status.Queue = health
	} else {
		d.logger.Debug("queue health unavailable", logging.Error(err))
	}
	return status
}
