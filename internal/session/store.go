package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/cv-extractor/internal/common"
	"github.com/joseph-ayodele/cv-extractor/internal/entity"
	"github.com/joseph-ayodele/cv-extractor/internal/repository"
)

const previewRunes = 200

// Store is the session memory of multi-step extractions. Steps are
// append-only and later phases read the facts earlier ones established.
type Store struct {
	repo repository.SessionRepository
	log  *slog.Logger
	now  func() time.Time

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(repo repository.SessionRepository, log *slog.Logger, opts ...Option) *Store {
	s := &Store{
		repo:   repo,
		log:    common.LoggerOrDefault(log),
		now:    time.Now,
		timers: make(map[string]*time.Timer),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateSession opens a new session and returns its id.
func (s *Store) CreateSession(ctx context.Context, userID, previewText string, meta entity.SessionMetadata) (string, error) {
	sess := &entity.ProcessingSession{
		ID:          uuid.NewString(),
		UserID:      userID,
		CreatedAt:   s.now().UTC(),
		PreviewText: preview(previewText),
		Metadata:    meta,
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		s.log.Error("session.create.failed", append(common.LogAttrs(ctx), "error", err)...)
		return "", fmt.Errorf("create session: %w", err)
	}
	s.log.Debug("session.created", append(common.LogAttrs(ctx), "session_id", sess.ID)...)
	return sess.ID, nil
}

// StoreStepResult appends one phase outcome. Confidence is clamped to [0,1].
// An unknown session is logged and reported as ErrSessionNotFound.
func (s *Store) StoreStepResult(ctx context.Context, sessionID string, result entity.PhaseResult, confidence float64, meta entity.StepMetadata) error {
	if result == nil {
		return fmt.Errorf("nil step result: %w", common.ErrInvalidInput)
	}
	step := entity.StepResult{
		StepName:   result.StepName(),
		Data:       result,
		Confidence: clamp01(confidence),
		Metadata:   meta,
		Timestamp:  s.now().UTC(),
	}
	idx, err := s.repo.AppendStep(ctx, sessionID, step)
	if errors.Is(err, common.ErrSessionNotFound) {
		s.log.Warn("session.step.orphaned", append(common.LogAttrs(ctx),
			"session_id", sessionID, "phase", step.StepName)...)
		return err
	}
	if err != nil {
		return err
	}
	s.log.Debug("session.step.stored", append(common.LogAttrs(ctx),
		"session_id", sessionID, "phase", step.StepName, "step_index", idx,
		"confidence", step.Confidence)...)
	return nil
}

// GetSessionContext returns the facts established so far and every stored step.
func (s *Store) GetSessionContext(ctx context.Context, sessionID string) (*entity.SessionContext, error) {
	sess, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &entity.SessionContext{
		KnownFacts:    DeriveFacts(results(sess)...),
		PreviousSteps: sess.Steps,
	}, nil
}

// GetFinalResult merges all stored steps into one profile.
func (s *Store) GetFinalResult(ctx context.Context, sessionID string) (*entity.ExtractedProfile, error) {
	sess, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return AssembleProfile(results(sess)...), nil
}

// CleanupSession deletes the session immediately.
func (s *Store) CleanupSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	if t, ok := s.timers[sessionID]; ok {
		t.Stop()
		delete(s.timers, sessionID)
	}
	s.mu.Unlock()

	if err := s.repo.Delete(ctx, sessionID); err != nil {
		s.log.Error("session.cleanup.failed", "session_id", sessionID, "error", err)
		return err
	}
	s.log.Debug("session.cleaned", "session_id", sessionID)
	return nil
}

// ScheduleCleanup deletes the session once ttl has elapsed. Rescheduling
// replaces the pending timer.
func (s *Store) ScheduleCleanup(sessionID string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if t, ok := s.timers[sessionID]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(ttl, func() {
		s.mu.Lock()
		current := s.timers[sessionID] == t
		if current {
			delete(s.timers, sessionID)
		}
		s.mu.Unlock()
		if !current {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.CleanupSession(ctx, sessionID)
	})
	s.timers[sessionID] = t
}

// Pending reports how many cleanups are scheduled.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// PurgeExpired removes sessions older than ttl whose timers were lost,
// typically across a restart.
func (s *Store) PurgeExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	return s.repo.DeleteBefore(ctx, s.now().Add(-ttl))
}

// Close stops every pending cleanup timer.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

func results(sess *entity.ProcessingSession) []entity.PhaseResult {
	out := make([]entity.PhaseResult, 0, len(sess.Steps))
	for _, st := range sess.Steps {
		out = append(out, st.Data)
	}
	return out
}

func preview(text string) string {
	r := []rune(text)
	if len(r) > previewRunes {
		r = r[:previewRunes]
	}
	return string(r)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
