package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"coursecast/internal/catalog"
	"coursecast/internal/config"
	"coursecast/internal/logging"
	"coursecast/internal/metrics"
	"coursecast/internal/queue"
	"coursecast/internal/services"
	"coursecast/internal/transcode"
)

// errorRetryInterval is the pause after a failed queue poll.
const errorRetryInterval = 5 * time.Second

// Converter runs one conversion job.
type Converter interface {
	Convert(ctx context.Context, assetID int64) (transcode.Result, error)
}

// Status is a point-in-time view of the pool.
type Status struct {
	Running   bool
	Workers   int
	Active    int
	Processed int64
	LastError string
}

// Pool runs conversion jobs from the queue on a fixed set of goroutines.
type Pool struct {
	cfg          *config.Config
	jobs         *queue.Store
	converter    Converter
	heartbeat    *HeartbeatMonitor
	logger       *slog.Logger
	size         int
	pollInterval time.Duration
	// reclaimInterval paces the stale-job sweep, which runs beside the workers.
	reclaimInterval time.Duration
	instance        string

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	active    int
	processed int64
	lastErr   error
}

// NewPool builds a pool of size workers. A size of zero resolves through Count.
func NewPool(cfg *config.Config, jobs *queue.Store, assets *catalog.Store, converter Converter, size int, logger *slog.Logger) *Pool {
	logger = logging.NewComponentLogger(logger, "worker")
	reclaimInterval := cfg.HeartbeatInterval()
	if reclaimInterval <= 0 {
		reclaimInterval = cfg.PollInterval()
	}
	if reclaimInterval <= 0 {
		reclaimInterval = time.Second
	}
	return &Pool{
		cfg:             cfg,
		jobs:            jobs,
		converter:       converter,
		heartbeat:       NewHeartbeatMonitor(jobs, assets, logger, cfg.HeartbeatInterval(), cfg.HeartbeatTimeout()),
		logger:          logger,
		size:            Count(size),
		pollInterval:    cfg.PollInterval(),
		reclaimInterval: reclaimInterval,
		instance:        uuid.NewString()[:8],
	}
}

// Size returns the number of workers the pool runs.
func (p *Pool) Size() int {
	return p.size
}

// Start launches the workers. It fails if the pool is already running.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("worker pool already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true
	p.wg.Add(p.size + 1)
	go p.reclaimLoop(runCtx)
	for i := 0; i < p.size; i++ {
		go p.run(runCtx, i)
	}
	p.logger.Info("worker pool started",
		logging.String(logging.FieldEventType, "pool_started"),
		logging.Int("workers", p.size),
		logging.Duration("poll_interval", p.pollInterval),
	)
	return nil
}

// Stop cancels the workers and waits for in-flight jobs to record their outcome.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped", logging.String(logging.FieldEventType, "pool_stopped"))
}

// Status reports the pool state.
func (p *Pool) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	status := Status{
		Running:   p.running,
		Workers:   p.size,
		Active:    p.active,
		Processed: p.processed,
	}
	if p.lastErr != nil {
		status.LastError = p.lastErr.Error()
	}
	return status
}

func (p *Pool) run(ctx context.Context, index int) {
	defer p.wg.Done()
	workerID := fmt.Sprintf("%s-%d", p.instance, index)
	ctx = services.WithWorker(ctx, workerID)
	logger := logging.WithContext(ctx, p.logger)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.jobs.Claim(ctx, workerID)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			p.setLastError(err)
			logger.Error("failed to claim next job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_claim_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
			p.wait(ctx, errorRetryInterval)
			continue
		}
		if job == nil {
			p.wait(ctx, p.pollInterval)
			continue
		}
		p.process(ctx, workerID, job)
	}
}

// reclaimLoop sweeps stale jobs at startup and then every reclaim interval,
// whether or not the workers are busy with long conversions.
func (p *Pool) reclaimLoop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.reclaimInterval)
	defer ticker.Stop()

	for {
		if _, err := p.heartbeat.ReclaimStale(ctx); err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Warn("reclaim stale jobs failed; stuck jobs may remain",
				logging.Error(err),
				logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
		}
		p.refreshQueueMetrics(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Pool) process(ctx context.Context, workerID string, job *queue.Job) {
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithRequestID(ctx, job.RequestID)
	ctx = services.WithAssetID(ctx, job.AssetID)
	logger := logging.WithContext(ctx, p.logger)

	p.mu.Lock()
	p.active++
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.active--
		p.processed++
		p.mu.Unlock()
	}()

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go p.heartbeat.StartLoop(hbCtx, &hbWG, job.ID)

	result, err := p.converter.Convert(ctx, job.AssetID)
	stopHeartbeat()
	hbWG.Wait()

	status, message := jobOutcome(result, err)
	if err != nil {
		p.setLastError(err)
	}
	if finishErr := p.jobs.Finish(context.WithoutCancel(ctx), job.ID, status, message); finishErr != nil {
		logger.Error("failed to record job outcome",
			logging.Error(finishErr),
			logging.String(logging.FieldEventType, "job_finish_failed"),
			logging.String(logging.FieldErrorHint, "the job is reclaimed after the heartbeat timeout"),
		)
		return
	}
	logger.Info("job finished",
		logging.String(logging.FieldEventType, "job_finished"),
		logging.String(logging.FieldWorker, workerID),
		logging.String("status", string(status)),
	)
}

func jobOutcome(result transcode.Result, err error) (queue.Status, string) {
	switch {
	case result.Outcome == transcode.OutcomeCompleted && err == nil:
		return queue.StatusDone, ""
	case result.Outcome == transcode.OutcomeSkipped && err == nil:
		return queue.StatusSkipped, result.Message
	case err != nil:
		return queue.StatusFailed, services.FailureMessage(err)
	default:
		return queue.StatusFailed, result.Message
	}
}

func (p *Pool) refreshQueueMetrics(ctx context.Context) {
	health, err := p.jobs.Health(ctx)
	if err != nil {
		return
	}
	metrics.QueueJobs.WithLabelValues(string(queue.StatusQueued)).Set(float64(health.Queued))
	metrics.QueueJobs.WithLabelValues(string(queue.StatusRunning)).Set(float64(health.Running))
	metrics.QueueJobs.WithLabelValues(string(queue.StatusDone)).Set(float64(health.Done))
	metrics.QueueJobs.WithLabelValues(string(queue.StatusFailed)).Set(float64(health.Failed))
	metrics.QueueJobs.WithLabelValues(string(queue.StatusSkipped)).Set(float64(health.Skipped))
}

func (p *Pool) setLastError(err error) {
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
}

func (p *Pool) wait(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
