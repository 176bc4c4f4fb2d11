package async

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joseph-ayodele/cv-extractor/constants"
	"github.com/joseph-ayodele/cv-extractor/internal/common"
	"github.com/joseph-ayodele/cv-extractor/internal/entity"
	"github.com/joseph-ayodele/cv-extractor/internal/extract"
	"github.com/joseph-ayodele/cv-extractor/internal/repository"
)

// Extractor turns CV text into a structured profile.
type Extractor interface {
	Extract(ctx context.Context, text, userID string) (*entity.ExtractedProfile, error)
}

// SessionPurger deletes extraction sessions older than a TTL.
type SessionPurger interface {
	PurgeExpired(ctx context.Context, ttl time.Duration) (int64, error)
}

const staleJobMessage = "worker restarted while job was processing"

// ProcessingQueue is a persisted FIFO of extraction jobs drained by a single
// worker. At most one job is processing at any time within the process.
type ProcessingQueue struct {
	jobs      repository.JobRepository
	source    extract.TextSource
	extractor Extractor
	logger    *slog.Logger

	pollInterval    time.Duration
	jobTimeout      time.Duration
	retention       time.Duration
	cleanupInterval time.Duration
	statsWindow     time.Duration
	minutesPerJob   int

	persistAttempts int
	persistBackoff  time.Duration
	// pending is the terminal write of the last job when it could not be
	// persisted; it is only touched while busy is held.
	pending *terminalWrite

	sessions   SessionPurger
	sessionTTL time.Duration

	now  func() time.Time
	busy atomic.Bool

	stampMu   sync.Mutex
	lastStamp time.Time

	mu      sync.Mutex
	started bool
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

type Option func(*ProcessingQueue)

func WithPollInterval(d time.Duration) Option {
	return func(q *ProcessingQueue) {
		if d > 0 {
			q.pollInterval = d
		}
	}
}

func WithJobTimeout(d time.Duration) Option {
	return func(q *ProcessingQueue) {
		if d > 0 {
			q.jobTimeout = d
		}
	}
}

func WithRetention(d time.Duration) Option {
	return func(q *ProcessingQueue) {
		if d > 0 {
			q.retention = d
		}
	}
}

func WithCleanupInterval(d time.Duration) Option {
	return func(q *ProcessingQueue) {
		if d > 0 {
			q.cleanupInterval = d
		}
	}
}

func WithStatsWindow(d time.Duration) Option {
	return func(q *ProcessingQueue) {
		if d > 0 {
			q.statsWindow = d
		}
	}
}

func WithMinutesPerJob(n int) Option {
	return func(q *ProcessingQueue) {
		if n > 0 {
			q.minutesPerJob = n
		}
	}
}

// WithPersistRetry sets how often, and with what initial backoff, the
// terminal status write of a job is attempted before the worker gives up
// for this tick.
func WithPersistRetry(attempts int, backoff time.Duration) Option {
	return func(q *ProcessingQueue) {
		if attempts > 0 {
			q.persistAttempts = attempts
		}
		if backoff > 0 {
			q.persistBackoff = backoff
		}
	}
}

// WithSessionPurge makes Cleanup also delete sessions older than ttl.
func WithSessionPurge(p SessionPurger, ttl time.Duration) Option {
	return func(q *ProcessingQueue) {
		q.sessions = p
		q.sessionTTL = ttl
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(q *ProcessingQueue) { q.now = now }
}

// WithConfig applies the queue section of the application config.
func WithConfig(c common.QueueConfig) Option {
	return func(q *ProcessingQueue) {
		for _, o := range []Option{
			WithPollInterval(c.PollInterval),
			WithJobTimeout(c.JobTimeout),
			WithRetention(c.Retention),
			WithCleanupInterval(c.CleanupInterval),
			WithStatsWindow(c.StatsWindow),
			WithMinutesPerJob(c.MinutesPerJob),
		} {
			o(q)
		}
	}
}

func NewProcessingQueue(jobs repository.JobRepository, source extract.TextSource, extractor Extractor, logger *slog.Logger, opts ...Option) *ProcessingQueue {
	q := &ProcessingQueue{
		jobs:            jobs,
		source:          source,
		extractor:       extractor,
		logger:          common.LoggerOrDefault(logger),
		pollInterval:    constants.DefaultPollInterval,
		jobTimeout:      constants.DefaultJobTimeout,
		retention:       constants.DefaultRetention,
		cleanupInterval: constants.DefaultCleanupInterval,
		statsWindow:     constants.DefaultStatsWindow,
		minutesPerJob:   constants.DefaultMinutesPerJob,
		persistAttempts: constants.DefaultPersistAttempts,
		persistBackoff:  constants.DefaultPersistBackoff,
		now:             time.Now,
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// AddJob persists a queued job for text already stored under sourceRef.
func (q *ProcessingQueue) AddJob(ctx context.Context, userID, sourceRef string) (*entity.EnqueueResult, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(sourceRef) == "" {
		return nil, fmt.Errorf("user id and source ref are required: %w", common.ErrInvalidInput)
	}
	job, err := q.jobs.Create(ctx, userID, sourceRef, q.stamp())
	if err != nil {
		return nil, err
	}
	q.logger.Info("queue.job.added", append(common.LogAttrs(ctx),
		"job_id", job.ID, "user_id", userID, "position", job.Position)...)
	return &entity.EnqueueResult{
		JobID:                job.ID,
		Position:             job.Position,
		EstimatedWaitMinutes: job.Position * q.minutesPerJob,
	}, nil
}

// stamp returns a creation time strictly after the previous one so FIFO
// order never depends on id tie-breaking within this process.
func (q *ProcessingQueue) stamp() time.Time {
	q.stampMu.Lock()
	defer q.stampMu.Unlock()
	t := q.now().UTC().Truncate(time.Microsecond)
	if !t.After(q.lastStamp) {
		t = q.lastStamp.Add(time.Microsecond)
	}
	q.lastStamp = t
	return t
}

// GetJobStatus returns the job with its position derived at read time.
func (q *ProcessingQueue) GetJobStatus(ctx context.Context, jobID string) (*entity.Job, error) {
	job, err := q.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := q.livePosition(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// GetUserJobs lists a user's jobs, newest first.
func (q *ProcessingQueue) GetUserJobs(ctx context.Context, userID string) ([]*entity.Job, error) {
	jobs, err := q.jobs.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, j := range jobs {
		if err := q.livePosition(ctx, j); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}

func (q *ProcessingQueue) livePosition(ctx context.Context, job *entity.Job) error {
	if job.Status != constants.JobStatusQueued {
		job.Position = 0
		job.EstimatedWaitMinutes = 0
		return nil
	}
	ahead, err := q.jobs.CountQueuedBefore(ctx, job.CreatedAt, job.ID)
	if err != nil {
		return err
	}
	job.Position = ahead + 1
	job.EstimatedWaitMinutes = job.Position * q.minutesPerJob
	return nil
}

// CancelJob cancels a queued job owned by userID. It reports false when the
// job is unknown, owned by someone else or no longer queued.
func (q *ProcessingQueue) CancelJob(ctx context.Context, jobID, userID string) (bool, error) {
	ok, err := q.jobs.Cancel(ctx, jobID, userID, q.now())
	if err != nil {
		return false, err
	}
	attrs := append(common.LogAttrs(ctx), "job_id", jobID, "user_id", userID)
	if !ok {
		q.logger.Info("queue.cancel.rejected", attrs...)
		return false, nil
	}
	q.logger.Info("queue.job.cancelled", attrs...)
	return true, nil
}

// GetQueueStats counts live jobs and the terminal jobs created within the
// stats window.
func (q *ProcessingQueue) GetQueueStats(ctx context.Context) (*entity.QueueStats, error) {
	stats, err := q.jobs.Stats(ctx, q.now().Add(-q.statsWindow))
	if err != nil {
		return nil, err
	}
	stats.WindowHours = q.statsWindow.Hours()
	return stats, nil
}

// ProcessNext claims and runs the oldest queued job. It reports whether a
// job was run; false means the queue was empty or a job is already running.
//
// A job's terminal status is written before anything else is claimed. When
// that write keeps failing the job stays processing, the error is returned
// and the write is retried first on the next call.
func (q *ProcessingQueue) ProcessNext(ctx context.Context) (bool, error) {
	if !q.busy.CompareAndSwap(false, true) {
		return false, nil
	}
	defer q.busy.Store(false)

	if q.pending != nil {
		if err := q.flush(ctx); err != nil {
			return false, err
		}
	}

	started := q.now()
	job, err := q.jobs.ClaimNext(ctx, started)
	if err != nil || job == nil {
		return false, err
	}
	if err := q.jobs.RecomputePositions(ctx); err != nil {
		q.logger.Warn("queue.positions.failed", "error", err)
	}

	// a claimed job runs to completion even if the worker is stopping
	jctx := common.WithUserID(common.WithJobID(context.WithoutCancel(ctx), job.ID), job.UserID)
	attrs := common.LogAttrs(jctx)
	q.logger.Info("queue.job.started", attrs...)

	profile, runErr := q.run(jctx, job)
	finished := q.now()
	seconds := finished.Sub(started).Seconds()

	w := &terminalWrite{jobID: job.ID, attrs: append(attrs, "seconds", seconds)}
	if runErr != nil {
		w.status = constants.JobStatusFailed
		w.write = func(ctx context.Context) error {
			return q.jobs.Fail(ctx, job.ID, runErr.Error(), finished, seconds)
		}
		w.attrs = append(w.attrs, "error", runErr)
	} else {
		w.status = constants.JobStatusCompleted
		w.write = func(ctx context.Context) error {
			return q.jobs.Complete(ctx, job.ID, profile, finished, seconds)
		}
	}
	q.pending = w
	return true, q.flush(jctx)
}

// terminalWrite is the deferred completed/failed update of one job.
type terminalWrite struct {
	jobID  string
	status constants.JobStatus
	write  func(context.Context) error
	attrs  []any
}

// flush persists the pending terminal write, retrying with exponential
// backoff. A job that is no longer processing counts as persisted.
func (q *ProcessingQueue) flush(ctx context.Context) error {
	w := q.pending
	wait := q.persistBackoff
	var err error
	for attempt := 1; attempt <= q.persistAttempts; attempt++ {
		err = w.write(ctx)
		if err == nil || errors.Is(err, common.ErrQueueState) {
			break
		}
		q.logger.Warn("queue.persist.retry", "job_id", w.jobID, "attempt", attempt, "error", err)
		if attempt == q.persistAttempts {
			break
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return fmt.Errorf("mark job %s %s: %w", w.jobID, w.status, ctx.Err())
		}
		wait *= 2
	}
	switch {
	case err == nil:
	case errors.Is(err, common.ErrQueueState):
		q.logger.Warn("queue.persist.superseded", "job_id", w.jobID, "error", err)
	default:
		return fmt.Errorf("mark job %s %s: %w", w.jobID, w.status, err)
	}
	q.pending = nil
	if err == nil {
		if w.status == constants.JobStatusFailed {
			q.logger.Error("queue.job.failed", w.attrs...)
		} else {
			q.logger.Info("queue.job.completed", w.attrs...)
		}
	}
	return nil
}

func (q *ProcessingQueue) run(ctx context.Context, job *entity.Job) (profile *entity.ExtractedProfile, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", common.ErrInternal, r)
		}
	}()

	text, err := q.source.Text(ctx, job.SourceRef)
	if err != nil {
		return nil, fmt.Errorf("load source text: %w", err)
	}
	tctx, cancel := context.WithTimeout(ctx, q.jobTimeout)
	defer cancel()
	profile, err = q.extractor.Extract(tctx, text, job.UserID)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("extraction exceeded %s: %w", q.jobTimeout, err)
	}
	return profile, err
}

// Cleanup deletes terminal jobs past the retention window and, when
// configured, expired sessions.
func (q *ProcessingQueue) Cleanup(ctx context.Context) (int64, error) {
	n, err := q.jobs.DeleteFinishedBefore(ctx, q.now().Add(-q.retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		q.logger.Info("queue.cleanup.jobs", "deleted", n)
	}
	if q.sessions != nil {
		s, err := q.sessions.PurgeExpired(ctx, q.sessionTTL)
		if err != nil {
			q.logger.Warn("queue.cleanup.sessions_failed", "error", err)
		} else if s > 0 {
			q.logger.Info("queue.cleanup.sessions", "deleted", s)
		}
	}
	return n, nil
}

// Start fails jobs orphaned in processing by a previous run and launches the
// worker and cleanup loops. It is a no-op when already started.
func (q *ProcessingQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return nil
	}
	n, err := q.jobs.FailStale(ctx, staleJobMessage, q.now())
	if err != nil {
		return fmt.Errorf("recover stale jobs: %w", err)
	}
	if n > 0 {
		q.logger.Warn("queue.stale.failed", "jobs", n)
	}

	lctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	q.stop = cancel
	q.started = true

	q.wg.Add(2)
	go q.loop(lctx, "worker", q.pollInterval, q.drain)
	go q.loop(lctx, "cleanup", q.cleanupInterval, func(ctx context.Context) {
		if _, err := q.Cleanup(ctx); err != nil {
			q.logger.Error("queue.cleanup.failed", "error", err)
		}
	})
	q.logger.Info("queue.started", "poll_interval", q.pollInterval, "cleanup_interval", q.cleanupInterval)
	return nil
}

func (q *ProcessingQueue) loop(ctx context.Context, name string, every time.Duration, tick func(context.Context)) {
	defer q.wg.Done()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			q.logger.Info("queue.loop.stopped", "loop", name)
			return
		case <-t.C:
			tick(ctx)
		}
	}
}

// drain runs jobs back to back until the queue is empty or stopping.
func (q *ProcessingQueue) drain(ctx context.Context) {
	for ctx.Err() == nil {
		ran, err := q.ProcessNext(ctx)
		if err != nil {
			q.logger.Error("queue.worker.error", "error", err)
			return
		}
		if !ran {
			return
		}
	}
}

// Shutdown stops the loops and waits for a running job to be persisted,
// or for ctx to expire.
func (q *ProcessingQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.started = false
	q.stop()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.complete")
	}
}
