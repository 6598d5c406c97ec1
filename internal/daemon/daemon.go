package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"aimatrix/internal/adapter"
	"aimatrix/internal/assetstore"
	"aimatrix/internal/config"
	"aimatrix/internal/job"
	"aimatrix/internal/logging"
	"aimatrix/internal/segment"
	"aimatrix/internal/workflow"
)

// Daemon coordinates the workflow manager and the asset store, and enforces
// single-instance execution through a lock file.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *assetstore.Store
	manager *workflow.Manager
	logPath string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	SocketPath   string
	LockPath     string
	DatabasePath string
	Backends     []adapter.Health
	Jobs         []job.Snapshot
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *assetstore.Store, logger *slog.Logger, mgr *workflow.Manager) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || mgr == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		manager:  mgr,
		logPath:  cfg.LogFilePath(),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and brings up every backend adapter.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another aimatrix daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.manager.Initialize(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("initialize workflow manager: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("aimatrix daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_start"),
	)
	return nil
}

// Stop cancels outstanding jobs, tears down adapters, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if err := d.manager.Cleanup(context.Background()); err != nil {
		d.logger.Warn("workflow cleanup reported errors", logging.Error(err))
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("aimatrix daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stop"),
	)
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether the daemon is started.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// LogPath returns the daemon log file location.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status reports runtime information for CLI display.
func (d *Daemon) Status(ctx context.Context) Status {
	st := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		SocketPath:   d.cfg.SocketPath(),
		LockPath:     d.lockPath,
		DatabasePath: d.store.Path(),
	}
	if st.Running {
		st.Backends = d.manager.Health(ctx)
		st.Jobs = d.manager.Jobs()
	}
	return st
}

// Execute validates a workflow and dispatches it to its backend.
func (d *Daemon) Execute(ctx context.Context, wf *job.Workflow) (job.Result, error) {
	if !d.running.Load() {
		return job.Result{}, errors.New("daemon is not running")
	}
	if err := workflow.ValidateWorkflow(wf); err != nil {
		return job.Result{}, err
	}
	return d.manager.Execute(ctx, wf)
}

// JobStatus returns the snapshot for one job.
func (d *Daemon) JobStatus(ctx context.Context, jobID string) (job.Snapshot, error) {
	return d.manager.Status(ctx, jobID)
}

// CancelJob requests a best-effort stop of one job.
func (d *Daemon) CancelJob(ctx context.Context, jobID string) error {
	return d.manager.Cancel(ctx, jobID)
}

// Jobs returns snapshots of every tracked job.
func (d *Daemon) Jobs() []job.Snapshot {
	return d.manager.Jobs()
}

// SaveWorkflow persists a workflow definition.
func (d *Daemon) SaveWorkflow(ctx context.Context, wf *job.Workflow) error {
	return d.manager.SaveWorkflow(ctx, wf)
}

// LoadWorkflow fetches a saved workflow definition.
func (d *Daemon) LoadWorkflow(ctx context.Context, id string) (*job.Workflow, error) {
	return d.manager.LoadWorkflow(ctx, id)
}

// ListWorkflows returns every saved workflow definition.
func (d *Daemon) ListWorkflows(ctx context.Context) ([]*job.Workflow, error) {
	return d.manager.ListWorkflows(ctx)
}

// Split divides novel text into scenes using the configured chunk threshold.
func (d *Daemon) Split(text string, chunkSize int) []segment.Scene {
	if chunkSize <= 0 {
		chunkSize = d.cfg.Segmentation.ChunkSize
	}
	return segment.SplitSize(text, chunkSize)
}

// QueryAssets returns persisted assets matching the filter.
func (d *Daemon) QueryAssets(ctx context.Context, filter assetstore.Filter) ([]*assetstore.Asset, error) {
	return d.store.QueryAssets(ctx, filter)
}
