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

	"github.com/joseph-ayodele/cv-extractor/internal/common"
	"github.com/joseph-ayodele/cv-extractor/internal/entity"
)

const (
	sessionsTable = "processing_sessions"
	stepsTable    = "session_steps"
)

// SessionRepository persists processing sessions and their append-only steps.
type SessionRepository interface {
	Create(ctx context.Context, s *entity.ProcessingSession) error
	// AppendStep stores step at the next index and returns that index.
	AppendStep(ctx context.Context, sessionID string, step entity.StepResult) (int, error)
	Get(ctx context.Context, id string) (*entity.ProcessingSession, error)
	Delete(ctx context.Context, id string) error
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type sessionRepo struct {
	db  *DB
	log *slog.Logger
}

func NewSessionRepository(db *DB, log *slog.Logger) SessionRepository {
	return &sessionRepo{db: db, log: common.LoggerOrDefault(log)}
}

func (r *sessionRepo) Create(ctx context.Context, s *entity.ProcessingSession) error {
	meta, err := json.Marshal(s.Metadata)
	if err != nil {
		return fmt.Errorf("encode session metadata: %w", err)
	}
	s.CreatedAt = s.CreatedAt.UTC().Truncate(time.Microsecond)
	ins := r.db.builder().Insert(sessionsTable).
		Columns("id", "user_id", "preview_text", "metadata", "created_at").
		Values(s.ID, s.UserID, s.PreviewText, string(meta), s.CreatedAt)
	if _, err := exec(ctx, r.db.SQL(), ins); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *sessionRepo) AppendStep(ctx context.Context, sessionID string, step entity.StepResult) (int, error) {
	data, err := json.Marshal(step.Data)
	if err != nil {
		return 0, fmt.Errorf("encode step data: %w", err)
	}

	var index int
	err = r.db.withTx(ctx, func(tx *sql.Tx) error {
		b := r.db.builder()
		var n int
		exists := b.Select(entsql.Count("*")).From(b.Table(sessionsTable)).Where(entsql.EQ("id", sessionID))
		if err := queryRow(ctx, tx, exists).Scan(&n); err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("session %s: %w", sessionID, common.ErrSessionNotFound)
		}

		count := b.Select(entsql.Count("*")).From(b.Table(stepsTable)).Where(entsql.EQ("session_id", sessionID))
		if err := queryRow(ctx, tx, count).Scan(&index); err != nil {
			return err
		}
		step.Metadata.StepIndex = index
		meta, err := json.Marshal(step.Metadata)
		if err != nil {
			return fmt.Errorf("encode step metadata: %w", err)
		}

		ins := b.Insert(stepsTable).
			Columns("session_id", "step_index", "step_name", "data", "confidence", "metadata", "created_at").
			Values(sessionID, index, step.StepName, string(data), step.Confidence, string(meta),
				step.Timestamp.UTC().Truncate(time.Microsecond))
		_, err = exec(ctx, tx, ins)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrSessionNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("append step %s: %w", step.StepName, err)
	}
	return index, nil
}

func (r *sessionRepo) Get(ctx context.Context, id string) (*entity.ProcessingSession, error) {
	b := r.db.builder()
	sel := b.Select("id", "user_id", "preview_text", "metadata", "created_at").
		From(b.Table(sessionsTable)).Where(entsql.EQ("id", id))

	var (
		s    entity.ProcessingSession
		meta string
	)
	err := queryRow(ctx, r.db.SQL(), sel).Scan(&s.ID, &s.UserID, &s.PreviewText, &meta, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, common.ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	s.CreatedAt = s.CreatedAt.UTC()
	if err := json.Unmarshal([]byte(meta), &s.Metadata); err != nil {
		return nil, fmt.Errorf("decode session metadata: %w", err)
	}

	steps := b.Select("step_name", "data", "confidence", "metadata", "created_at").
		From(b.Table(stepsTable)).
		Where(entsql.EQ("session_id", id)).
		OrderBy("step_index")
	rows, err := queryRows(ctx, r.db.SQL(), steps)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	s.Steps = []entity.StepResult{}
	for rows.Next() {
		var (
			st             entity.StepResult
			data, stepMeta string
		)
		if err := rows.Scan(&st.StepName, &data, &st.Confidence, &stepMeta, &st.Timestamp); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		st.Timestamp = st.Timestamp.UTC()
		if st.Data, err = entity.DecodePhaseResult(st.StepName, []byte(data)); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(stepMeta), &st.Metadata); err != nil {
			return nil, fmt.Errorf("decode step metadata: %w", err)
		}
		s.Steps = append(s.Steps, st)
	}
	return &s, rows.Err()
}

// Delete removes a session and, through the foreign key, its steps.
func (r *sessionRepo) Delete(ctx context.Context, id string) error {
	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		b := r.db.builder()
		if _, err := exec(ctx, tx, b.Delete(stepsTable).Where(entsql.EQ("session_id", id))); err != nil {
			return fmt.Errorf("delete steps: %w", err)
		}
		if _, err := exec(ctx, tx, b.Delete(sessionsTable).Where(entsql.EQ("id", id))); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		return nil
	})
}

// DeleteBefore removes sessions created before cutoff whose cleanup timer
// never fired, e.g. because the process restarted.
func (r *sessionRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoff = cutoff.UTC().Truncate(time.Microsecond)
	var n int64
	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		b := r.db.builder()
		old := b.Select("id").From(b.Table(sessionsTable)).Where(entsql.LT("created_at", cutoff))
		if _, err := exec(ctx, tx, b.Delete(stepsTable).Where(entsql.In("session_id", old))); err != nil {
			return fmt.Errorf("delete steps: %w", err)
		}
		res, err := exec(ctx, tx, b.Delete(sessionsTable).Where(entsql.LT("created_at", cutoff)))
		if err != nil {
			return fmt.Errorf("delete sessions: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	if n > 0 {
		r.log.Info("expired sessions removed", "count", n)
	}
	return n, err
}
