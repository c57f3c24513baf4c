// Package worker implements the polling job pool: a bounded set of worker
// slots claim queued jobs from the store in creation order, skipping
// accounts already saturated, dispatch them through the adapter registry,
// and record progress and terminal state back to the store. Generalized
// from the teacher's push-queue Pool/Worker/Config shape (worker/pool.go)
// into the spec's claim-transaction model. Per-account in-flight counts
// and operator-facing recent-activity stats are both served by JobTracker,
// adapted from the teacher's bounded in-memory operation tracker
// (statemanager/manager.go's StartOperation/CompleteOperation/evictOldest).
package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/evalgo/gphotoctl/internal/adapters"
	"github.com/evalgo/gphotoctl/internal/logging"
	"github.com/evalgo/gphotoctl/internal/model"
	"github.com/evalgo/gphotoctl/internal/store"
)

// Config mirrors spec.md §4.6's scheduling knobs.
type Config struct {
	MaxWorkers    int
	PollInterval  time.Duration
	ScanLimit     int
	MaxPerAccount int
}

func DefaultConfig() Config {
	return Config{
		MaxWorkers:    4,
		PollInterval:  time.Second,
		ScanLimit:     500,
		MaxPerAccount: 1,
	}
}

// Pool runs the per-tick claim algorithm and dispatches admitted jobs.
type Pool struct {
	store    *store.Store
	registry *adapters.Registry
	cfg      Config
	logger   *logrus.Logger

	tracker *JobTracker

	mu      sync.Mutex
	running map[string]context.CancelFunc

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewPool(st *store.Store, registry *adapters.Registry, cfg Config) *Pool {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = DefaultConfig().MaxWorkers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.ScanLimit <= 0 {
		cfg.ScanLimit = DefaultConfig().ScanLimit
	}
	if cfg.MaxPerAccount <= 0 {
		cfg.MaxPerAccount = DefaultConfig().MaxPerAccount
	}
	return &Pool{
		store:    st,
		registry: registry,
		cfg:      cfg,
		logger:   logging.Logger,
		tracker:  NewJobTracker(1000),
		running:  make(map[string]context.CancelFunc),
		stopCh:   make(chan struct{}),
	}
}

// Stats exposes the pool's recent-activity tracker for an operator
// diagnostics surface.
func (p *Pool) Stats() OperationStats {
	return p.tracker.Stats()
}

// RecentJobs exposes the pool's recent-activity tracker for an operator
// diagnostics surface.
func (p *Pool) RecentJobs() []OperationState {
	return p.tracker.Recent()
}

// Start runs the polling loop until ctx is done or Stop is called.
func (p *Pool) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.loop(ctx)
}

// Stop signals the polling loop to exit and waits for in-flight jobs to
// finish their current tick bookkeeping (it does not abort running jobs).
func (p *Pool) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

func (p *Pool) loop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick is one iteration of the claim loop: compute available slots, claim
// up to that many queued jobs fairly, and submit each to its own goroutine.
func (p *Pool) tick(ctx context.Context) {
	p.mu.Lock()
	slots := p.cfg.MaxWorkers - len(p.running)
	p.mu.Unlock()

	if slots <= 0 {
		return
	}

	inFlightSnapshot := p.tracker.AccountCounts()

	jobs, err := p.store.ClaimJobs(ctx, slots, p.cfg.ScanLimit, p.cfg.MaxPerAccount, inFlightSnapshot)
	if err != nil {
		p.logger.WithError(err).Warn("worker: claim jobs")
		return
	}

	for i := range jobs {
		job := jobs[i]
		jobCtx, cancel := context.WithCancel(ctx)
		p.mu.Lock()
		p.running[job.ID] = cancel
		p.mu.Unlock()
		p.tracker.StartOperation(job.ID, job.AccountID, string(job.Provider)+"."+job.Operation)

		p.wg.Add(1)
		go p.execute(jobCtx, &job, cancel)
	}
}

// execute dispatches one claimed job through the adapter registry and
// records its terminal state, per spec.md §4.6's execution dispatch and
// termination rules.
func (p *Pool) execute(ctx context.Context, job *model.Job, cancel context.CancelFunc) {
	defer p.wg.Done()
	var finalErr error
	defer func() {
		p.mu.Lock()
		delete(p.running, job.ID)
		p.mu.Unlock()
		p.tracker.CompleteOperation(job.ID, finalErr)
		cancel()
	}()

	account, err := p.store.GetAccount(ctx, job.AccountID)
	if err != nil {
		finalErr = err
		p.finishFailed(job, err)
		return
	}

	report := p.progressFunc(ctx, job, cancel)
	result, err := p.registry.Dispatch(ctx, account, job, job.DryRun, report)
	finalErr = err

	switch {
	case err == nil:
		p.finishSucceeded(job, result)
	case errors.Is(err, context.Canceled):
		p.finishCancelled(job)
	case isCredentialError(err):
		p.finishRequiresCredentials(job, err)
	default:
		p.finishFailed(job, err)
	}
}

// progressFunc is the progress callback contract: clamp to [0,1], persist
// message/progress, append an event, and — by refreshing the job's
// cancel_requested flag and cancelling ctx — give Dispatch's ctx-aware
// calls a chance to unwind cooperatively on the next blocking call.
func (p *Pool) progressFunc(ctx context.Context, job *model.Job, cancel context.CancelFunc) adapters.ProgressFunc {
	return func(value float64, message string) {
		if value < 0 {
			value = 0
		}
		if value > 1 {
			value = 1
		}
		job.Progress = value
		job.Message = message
		job.UpdatedAt = time.Now().UTC()
		if err := p.store.SaveJob(ctx, job); err != nil {
			p.logger.WithError(err).Warn("worker: save job progress")
		}
		progressCopy := value
		if err := p.store.AppendEvent(ctx, &model.JobEvent{
			JobID: job.ID, Level: model.EventInfo, Message: message, Progress: &progressCopy,
		}); err != nil {
			p.logger.WithError(err).Warn("worker: append progress event")
		}

		fresh, err := p.store.GetJob(ctx, job.ID)
		if err == nil && fresh.CancelRequested {
			cancel()
		}
	}
}

func isCredentialError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "auth_data") || strings.Contains(msg, "cookie")
}

func (p *Pool) finishSucceeded(job *model.Job, result model.JSONMap) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	now := time.Now().UTC()
	job.Status = model.JobSucceeded
	job.Progress = 1.0
	job.Result = result
	job.FinishedAt = &now
	job.UpdatedAt = now
	if err := p.store.SaveJob(ctx, job); err != nil {
		p.logger.WithError(err).Warn("worker: save succeeded job")
	}
	p.appendTerminalEvent(ctx, job.ID, model.EventInfo, "Job completed")
}

func (p *Pool) finishCancelled(job *model.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	now := time.Now().UTC()
	job.Status = model.JobCancelled
	job.Error = model.JSONMap{"message": "cancelled"}
	job.FinishedAt = &now
	job.UpdatedAt = now
	if err := p.store.SaveJob(ctx, job); err != nil {
		p.logger.WithError(err).Warn("worker: save cancelled job")
	}
	p.appendTerminalEvent(ctx, job.ID, model.EventWarn, "Job cancelled by user")
}

func (p *Pool) finishRequiresCredentials(job *model.Job, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	now := time.Now().UTC()
	job.Status = model.JobRequiresCredentials
	job.Error = model.JSONMap{"message": cause.Error()}
	job.FinishedAt = &now
	job.UpdatedAt = now
	if err := p.store.SaveJob(ctx, job); err != nil {
		p.logger.WithError(err).Warn("worker: save requires_credentials job")
	}
	p.appendTerminalEvent(ctx, job.ID, model.EventError, "Job requires credential remediation: "+cause.Error())
}

func (p *Pool) finishFailed(job *model.Job, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	now := time.Now().UTC()
	job.Status = model.JobFailed
	job.Error = model.JSONMap{"message": cause.Error()}
	job.FinishedAt = &now
	job.UpdatedAt = now
	if err := p.store.SaveJob(ctx, job); err != nil {
		p.logger.WithError(err).Warn("worker: save failed job")
	}
	p.appendTerminalEvent(ctx, job.ID, model.EventError, "Job failed: "+cause.Error())
}

func (p *Pool) appendTerminalEvent(ctx context.Context, jobID string, level model.EventLevel, message string) {
	if err := p.store.AppendEvent(ctx, &model.JobEvent{JobID: jobID, Level: level, Message: message}); err != nil {
		p.logger.WithError(err).Warn("worker: append terminal event")
	}
}
