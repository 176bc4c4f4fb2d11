package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/cv-extractor/constants"
	"github.com/joseph-ayodele/cv-extractor/internal/common"
	"github.com/joseph-ayodele/cv-extractor/internal/entity"
)

const jobsTable = "jobs"

var jobColumns = []string{
	"id", "user_id", "source_ref", "status", "position", "created_at", "started_at",
	"completed_at", "structured_data", "error_message", "processing_time_seconds",
}

// JobRepository persists queue jobs. Every status change is a guarded
// UPDATE so concurrent callers cannot apply an illegal transition.
type JobRepository interface {
	Create(ctx context.Context, userID, sourceRef string, createdAt time.Time) (*entity.Job, error)
	Get(ctx context.Context, id string) (*entity.Job, error)
	ListByUser(ctx context.Context, userID string) ([]*entity.Job, error)
	CountQueued(ctx context.Context) (int, error)
	CountQueuedBefore(ctx context.Context, createdAt time.Time, id string) (int, error)
	ClaimNext(ctx context.Context, startedAt time.Time) (*entity.Job, error)
	RecomputePositions(ctx context.Context) error
	Complete(ctx context.Context, id string, profile *entity.ExtractedProfile, completedAt time.Time, seconds float64) error
	Fail(ctx context.Context, id, message string, completedAt time.Time, seconds float64) error
	Cancel(ctx context.Context, id, userID string, at time.Time) (bool, error)
	Stats(ctx context.Context, since time.Time) (*entity.QueueStats, error)
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	FailStale(ctx context.Context, message string, at time.Time) (int64, error)
}

type jobRepo struct {
	db  *DB
	log *slog.Logger
}

func NewJobRepository(db *DB, log *slog.Logger) JobRepository {
	return &jobRepo{db: db, log: common.LoggerOrDefault(log)}
}

func (r *jobRepo) Create(ctx context.Context, userID, sourceRef string, createdAt time.Time) (*entity.Job, error) {
	createdAt = createdAt.UTC().Truncate(time.Microsecond)
	job := &entity.Job{
		ID:        uuid.NewString(),
		UserID:    userID,
		SourceRef: sourceRef,
		Status:    constants.JobStatusQueued,
		CreatedAt: createdAt,
	}

	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		before, err := countQueued(ctx, r.db, tx, nil)
		if err != nil {
			return err
		}
		job.Position = before + 1
		ins := r.db.builder().Insert(jobsTable).
			Columns("id", "user_id", "source_ref", "status", "position", "created_at").
			Values(job.ID, job.UserID, job.SourceRef, string(job.Status), job.Position, job.CreatedAt)
		_, err = exec(ctx, tx, ins)
		return err
	})
	if err != nil {
		r.log.Error("job create failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("create job: %w", err)
	}
	r.log.Info("job created", "job_id", job.ID, "user_id", userID, "position", job.Position)
	return job, nil
}

func (r *jobRepo) Get(ctx context.Context, id string) (*entity.Job, error) {
	b := r.db.builder()
	q := b.Select(jobColumns...).From(b.Table(jobsTable)).Where(entsql.EQ("id", id))
	job, err := scanJob(queryRow(ctx, r.db.SQL(), q))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListByUser returns the user's jobs, newest first.
func (r *jobRepo) ListByUser(ctx context.Context, userID string) ([]*entity.Job, error) {
	b := r.db.builder()
	q := b.Select(jobColumns...).From(b.Table(jobsTable)).
		Where(entsql.EQ("user_id", userID)).
		OrderBy("created_at", "id")
	rows, err := queryRows(ctx, r.db.SQL(), q)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*entity.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(jobs)-1; i < j; i, j = i+1, j-1 {
		jobs[i], jobs[j] = jobs[j], jobs[i]
	}
	return jobs, nil
}

func (r *jobRepo) CountQueued(ctx context.Context) (int, error) {
	return countQueued(ctx, r.db, r.db.SQL(), nil)
}

// CountQueuedBefore counts queued jobs ahead of (createdAt, id) in FIFO order.
func (r *jobRepo) CountQueuedBefore(ctx context.Context, createdAt time.Time, id string) (int, error) {
	createdAt = createdAt.UTC().Truncate(time.Microsecond)
	ahead := entsql.Or(
		entsql.LT("created_at", createdAt),
		entsql.And(entsql.EQ("created_at", createdAt), entsql.LT("id", id)),
	)
	return countQueued(ctx, r.db, r.db.SQL(), ahead)
}

func countQueued(ctx context.Context, db *DB, q querier, extra *entsql.Predicate) (int, error) {
	b := db.builder()
	where := entsql.EQ("status", string(constants.JobStatusQueued))
	if extra != nil {
		where = entsql.And(where, extra)
	}
	sel := b.Select(entsql.Count("*")).From(b.Table(jobsTable)).Where(where)
	var n int
	if err := queryRow(ctx, q, sel).Scan(&n); err != nil {
		return 0, fmt.Errorf("count queued: %w", err)
	}
	return n, nil
}

// ClaimNext moves the oldest queued job to processing. It returns nil when
// the queue is empty or another claimer won the row.
func (r *jobRepo) ClaimNext(ctx context.Context, startedAt time.Time) (*entity.Job, error) {
	startedAt = startedAt.UTC().Truncate(time.Microsecond)
	var claimed *entity.Job

	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		b := r.db.builder()
		sel := b.Select("id").From(b.Table(jobsTable)).
			Where(entsql.EQ("status", string(constants.JobStatusQueued))).
			OrderBy("created_at", "id").
			Limit(1)
		var id string
		if err := queryRow(ctx, tx, sel).Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}

		upd := b.Update(jobsTable).
			Set("status", string(constants.JobStatusProcessing)).
			Set("started_at", startedAt).
			Set("position", 0).
			Where(entsql.And(
				entsql.EQ("id", id),
				entsql.EQ("status", string(constants.JobStatusQueued)),
			))
		res, err := exec(ctx, tx, upd)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return nil
		}

		q := b.Select(jobColumns...).From(b.Table(jobsTable)).Where(entsql.EQ("id", id))
		claimed, err = scanJob(queryRow(ctx, tx, q))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	if claimed != nil {
		r.log.Info("job claimed", "job_id", claimed.ID, "user_id", claimed.UserID)
	}
	return claimed, nil
}

// RecomputePositions rewrites the stored 1-based FIFO rank of every queued job.
func (r *jobRepo) RecomputePositions(ctx context.Context) error {
	const rank = `UPDATE jobs SET position = (
		SELECT COUNT(*) FROM jobs j2
		WHERE j2.status = 'queued'
		  AND (j2.created_at < jobs.created_at OR (j2.created_at = jobs.created_at AND j2.id < jobs.id))
	) + 1 WHERE status = 'queued'`

	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, rank); err != nil {
			return fmt.Errorf("rank queued jobs: %w", err)
		}
		reset := r.db.builder().Update(jobsTable).
			Set("position", 0).
			Where(entsql.And(
				entsql.NEQ("status", string(constants.JobStatusQueued)),
				entsql.NEQ("position", 0),
			))
		if _, err := exec(ctx, tx, reset); err != nil {
			return fmt.Errorf("clear positions: %w", err)
		}
		return nil
	})
}

func (r *jobRepo) Complete(ctx context.Context, id string, profile *entity.ExtractedProfile, completedAt time.Time, seconds float64) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode structured data: %w", err)
	}
	upd := r.db.builder().Update(jobsTable).
		Set("status", string(constants.JobStatusCompleted)).
		Set("structured_data", string(data)).
		Set("completed_at", completedAt.UTC().Truncate(time.Microsecond)).
		Set("processing_time_seconds", seconds).
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.EQ("status", string(constants.JobStatusProcessing)),
		))
	if err := r.finish(ctx, id, upd); err != nil {
		return err
	}
	r.log.Info("job completed", "job_id", id, "processing_time_seconds", seconds)
	return nil
}

func (r *jobRepo) Fail(ctx context.Context, id, message string, completedAt time.Time, seconds float64) error {
	upd := r.db.builder().Update(jobsTable).
		Set("status", string(constants.JobStatusFailed)).
		Set("error_message", message).
		Set("completed_at", completedAt.UTC().Truncate(time.Microsecond)).
		Set("processing_time_seconds", seconds).
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.EQ("status", string(constants.JobStatusProcessing)),
		))
	if err := r.finish(ctx, id, upd); err != nil {
		return err
	}
	r.log.Warn("job failed", "job_id", id, "error", message)
	return nil
}

func (r *jobRepo) finish(ctx context.Context, id string, upd *entsql.UpdateBuilder) error {
	res, err := exec(ctx, r.db.SQL(), upd)
	if err != nil {
		return fmt.Errorf("finish job %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s is not processing: %w", id, common.ErrQueueState)
	}
	return nil
}

// Cancel flips a queued job owned by userID to cancelled. It reports false
// when the job is unknown, owned by someone else, or already past queued.
func (r *jobRepo) Cancel(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	upd := r.db.builder().Update(jobsTable).
		Set("status", string(constants.JobStatusCancelled)).
		Set("completed_at", at.UTC().Truncate(time.Microsecond)).
		Set("position", 0).
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.EQ("user_id", userID),
			entsql.EQ("status", string(constants.JobStatusQueued)),
		))
	res, err := exec(ctx, r.db.SQL(), upd)
	if err != nil {
		return false, fmt.Errorf("cancel job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		r.log.Info("job cancelled", "job_id", id, "user_id", userID)
	}
	return n == 1, nil
}

// Stats counts jobs by status and averages the processing time of the
// completed ones. Queued and processing jobs are always counted; terminal
// jobs only when created since the given instant.
func (r *jobRepo) Stats(ctx context.Context, since time.Time) (*entity.QueueStats, error) {
	since = since.UTC().Truncate(time.Microsecond)
	b := r.db.builder()
	q := b.Select("status", entsql.Count("*")).From(b.Table(jobsTable)).
		Where(entsql.Or(
			entsql.In("status", string(constants.JobStatusQueued), string(constants.JobStatusProcessing)),
			entsql.GTE("created_at", since),
		)).
		GroupBy("status")
	rows, err := queryRows(ctx, r.db.SQL(), q)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := &entity.QueueStats{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		switch constants.JobStatus(status) {
		case constants.JobStatusQueued:
			stats.Queued = n
		case constants.JobStatusProcessing:
			stats.Processing = n
		case constants.JobStatusCompleted:
			stats.Completed = n
		case constants.JobStatusFailed:
			stats.Failed = n
		case constants.JobStatusCancelled:
			stats.Cancelled = n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	avg := b.Select("AVG(processing_time_seconds)").From(b.Table(jobsTable)).
		Where(entsql.And(
			entsql.GTE("created_at", since),
			entsql.EQ("status", string(constants.JobStatusCompleted)),
		))
	var mean sql.NullFloat64
	if err := queryRow(ctx, r.db.SQL(), avg).Scan(&mean); err != nil {
		return nil, fmt.Errorf("average processing time: %w", err)
	}
	if mean.Valid {
		stats.AvgProcessingTimeSeconds = mean.Float64
	}
	return stats, nil
}

// DeleteFinishedBefore removes terminal jobs completed before cutoff.
func (r *jobRepo) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	del := r.db.builder().Delete(jobsTable).
		Where(entsql.And(
			entsql.In("status",
				string(constants.JobStatusCompleted),
				string(constants.JobStatusFailed),
				string(constants.JobStatusCancelled),
			),
			entsql.LT("completed_at", cutoff.UTC().Truncate(time.Microsecond)),
		))
	res, err := exec(ctx, r.db.SQL(), del)
	if err != nil {
		return 0, fmt.Errorf("delete finished jobs: %w", err)
	}
	return res.RowsAffected()
}

// FailStale fails jobs stuck in processing, e.g. after a crash mid-job.
func (r *jobRepo) FailStale(ctx context.Context, message string, at time.Time) (int64, error) {
	upd := r.db.builder().Update(jobsTable).
		Set("status", string(constants.JobStatusFailed)).
		Set("error_message", message).
		Set("completed_at", at.UTC().Truncate(time.Microsecond)).
		Where(entsql.EQ("status", string(constants.JobStatusProcessing)))
	res, err := exec(ctx, r.db.SQL(), upd)
	if err != nil {
		return 0, fmt.Errorf("fail stale jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if n > 0 {
		r.log.Warn("stale processing jobs failed", "count", n)
	}
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(s rowScanner) (*entity.Job, error) {
	var (
		job                   entity.Job
		status                string
		startedAt, finishedAt sql.NullTime
		data, errMsg          sql.NullString
		seconds               sql.NullFloat64
	)
	if err := s.Scan(&job.ID, &job.UserID, &job.SourceRef, &status, &job.Position, &job.CreatedAt,
		&startedAt, &finishedAt, &data, &errMsg, &seconds); err != nil {
		return nil, err
	}
	job.Status = constants.JobStatus(status)
	job.CreatedAt = job.CreatedAt.UTC()
	job.StartedAt = timePtr(startedAt)
	job.CompletedAt = timePtr(finishedAt)
	if data.Valid && data.String != "" {
		var p entity.ExtractedProfile
		if err := json.Unmarshal([]byte(data.String), &p); err != nil {
			return nil, fmt.Errorf("decode structured data: %w", err)
		}
		job.StructuredData = p.Normalize()
	}
	if errMsg.Valid {
		msg := errMsg.String
		job.ErrorMessage = &msg
	}
	if seconds.Valid {
		v := seconds.Float64
		job.ProcessingTimeSeconds = &v
	}
	return &job, nil
}
