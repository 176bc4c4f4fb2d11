package server

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/cv-extractor/constants"
	"github.com/joseph-ayodele/cv-extractor/internal/common"
	"github.com/joseph-ayodele/cv-extractor/internal/entity"
	"github.com/joseph-ayodele/cv-extractor/internal/export"
	"github.com/joseph-ayodele/cv-extractor/internal/ingest"
	"github.com/joseph-ayodele/cv-extractor/internal/reconcile"
	"github.com/joseph-ayodele/cv-extractor/internal/repository"
)

const (
	maxIDLength   = 128
	maxTextLength = 200_000
)

// Queue is the part of async.ProcessingQueue the service exposes.
type Queue interface {
	AddJob(ctx context.Context, userID, sourceRef string) (*entity.EnqueueResult, error)
	GetJobStatus(ctx context.Context, jobID string) (*entity.Job, error)
	GetUserJobs(ctx context.Context, userID string) ([]*entity.Job, error)
	CancelJob(ctx context.Context, jobID, userID string) (bool, error)
	GetQueueStats(ctx context.Context) (*entity.QueueStats, error)
}

// Extractor runs a synchronous extraction outside the queue.
type Extractor interface {
	Extract(ctx context.Context, text, userID string) (*entity.ExtractedProfile, error)
}

// Service is the caller-facing API. Every error it returns is a gRPC status.
type Service struct {
	queue     Queue
	extractor Extractor
	sources   repository.SourceRepository
	exporter  *export.Service
	ingestor  ingest.Ingestor
	logger    *slog.Logger
}

type Deps struct {
	Queue     Queue
	Extractor Extractor
	Sources   repository.SourceRepository
	Exporter  *export.Service
	Ingestor  ingest.Ingestor
}

func NewService(d Deps, logger *slog.Logger) *Service {
	return &Service{
		queue:     d.Queue,
		extractor: d.Extractor,
		sources:   d.Sources,
		exporter:  d.Exporter,
		ingestor:  d.Ingestor,
		logger:    common.LoggerOrDefault(logger),
	}
}

// EnqueueRequest names stored text by SourceRef, or carries the text inline.
type EnqueueRequest struct {
	UserID    string
	SourceRef string
	Text      string
	Filename  string
}

// Enqueue queues an extraction job. Inline text is stored first, so the
// same content submitted twice by one user shares a source ref.
func (s *Service) Enqueue(ctx context.Context, req EnqueueRequest) (*entity.EnqueueResult, error) {
	v := common.NewValidator().
		Field("user_id", req.UserID, common.Required, common.MaxLength(maxIDLength)).
		Field("text", req.Text, common.MaxLength(maxTextLength))
	if strings.TrimSpace(req.Text) == "" {
		v.Field("source_ref", req.SourceRef, common.Required, common.MaxLength(maxIDLength))
	}
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}

	ref := strings.TrimSpace(req.SourceRef)
	if strings.TrimSpace(req.Text) != "" {
		src, dedup, err := s.sources.UpsertByHash(ctx, req.UserID, req.Filename, req.Text, time.Now())
		if err != nil {
			s.logger.Error("service.enqueue.store_failed", "user_id", req.UserID, "error", err)
			return nil, common.ToStatus(err)
		}
		ref = src.Ref
		s.logger.Debug("service.enqueue.stored", "user_id", req.UserID, "ref", ref, "deduplicated", dedup)
	}

	res, err := s.queue.AddJob(ctx, req.UserID, ref)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return res, nil
}

// GetStatus returns a job; unknown ids map to codes.NotFound.
func (s *Service) GetStatus(ctx context.Context, jobID string) (*entity.Job, error) {
	if err := common.ValidateAndReturnError(common.NewValidator().
		Field("job_id", jobID, common.Required, common.UUID)); err != nil {
		return nil, err
	}
	job, err := s.queue.GetJobStatus(ctx, jobID)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return job, nil
}

func (s *Service) ListJobs(ctx context.Context, userID string) ([]*entity.Job, error) {
	if err := common.ValidateAndReturnError(common.NewValidator().
		Field("user_id", userID, common.Required, common.MaxLength(maxIDLength))); err != nil {
		return nil, err
	}
	jobs, err := s.queue.GetUserJobs(ctx, userID)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return jobs, nil
}

// Cancel reports whether the job was cancelled. Jobs that are not queued,
// unknown or owned by another user yield false without an error.
func (s *Service) Cancel(ctx context.Context, jobID, userID string) (bool, error) {
	if err := common.ValidateAndReturnError(common.NewValidator().
		Field("job_id", jobID, common.Required, common.UUID).
		Field("user_id", userID, common.Required, common.MaxLength(maxIDLength))); err != nil {
		return false, err
	}
	ok, err := s.queue.CancelJob(ctx, jobID, userID)
	if err != nil {
		return false, common.ToStatus(err)
	}
	return ok, nil
}

func (s *Service) GetQueueStats(ctx context.Context) (*entity.QueueStats, error) {
	stats, err := s.queue.GetQueueStats(ctx)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return stats, nil
}

// Extract runs the extractor inline, bypassing the queue.
func (s *Service) Extract(ctx context.Context, userID, text string) (*entity.ExtractedProfile, error) {
	if err := common.ValidateAndReturnError(common.NewValidator().
		Field("user_id", userID, common.Required, common.MaxLength(maxIDLength)).
		Field("text", text, common.Required, common.MaxLength(maxTextLength))); err != nil {
		return nil, err
	}
	start := time.Now()
	p, err := s.extractor.Extract(ctx, text, userID)
	if err != nil {
		s.logger.Error("service.extract.failed", "user_id", userID, "error", err)
		return nil, common.ToStatus(err)
	}
	s.logger.Info("service.extract.ok", "user_id", userID, "elapsed_ms", time.Since(start).Milliseconds())
	return p, nil
}

// ReconcileTextToStructured merges edited section text into anchor.
func (s *Service) ReconcileTextToStructured(ctx context.Context, section, text string, anchor *entity.ExtractedProfile) (*entity.ExtractedProfile, reconcile.Report, error) {
	sec, err := parseSection(section)
	if err != nil {
		return nil, reconcile.Report{}, err
	}
	if err := common.ValidateAndReturnError(common.NewValidator().
		Field("text", text, common.MaxLength(maxTextLength))); err != nil {
		return nil, reconcile.Report{}, err
	}
	p, rep, err := reconcile.Reconcile(sec, text, anchor)
	if err != nil {
		return nil, rep, common.ToStatus(err)
	}
	s.logger.Info("service.reconcile.text",
		append(common.LogAttrs(ctx), "section", string(sec), "blocks", rep.Blocks,
			"anchored", rep.Anchored, "added", rep.Added, "dropped", rep.Dropped)...)
	return p, rep, nil
}

// ReconcileStructuredToText renders one section of p as editable text.
func (s *Service) ReconcileStructuredToText(_ context.Context, section string, p *entity.ExtractedProfile) (string, error) {
	sec, err := parseSection(section)
	if err != nil {
		return "", err
	}
	text, err := reconcile.ToText(sec, p)
	if err != nil {
		return "", common.ToStatus(err)
	}
	return text, nil
}

// ExportProfileXLSX returns the workbook of a completed job.
func (s *Service) ExportProfileXLSX(ctx context.Context, jobID string) ([]byte, error) {
	if err := common.ValidateAndReturnError(common.NewValidator().
		Field("job_id", jobID, common.Required, common.UUID)); err != nil {
		return nil, err
	}
	b, err := s.exporter.ExportJobXLSX(ctx, jobID)
	if err != nil {
		s.logger.Error("export.xlsx.failed", "job_id", jobID, "error", err)
		return nil, common.ToStatus(err)
	}
	return b, nil
}

// IngestDirectory stores and queues every CV text file under root.
func (s *Service) IngestDirectory(ctx context.Context, userID, root string, skipHidden bool) ([]ingest.IngestionResult, ingest.DirStats, error) {
	if err := common.ValidateAndReturnError(common.NewValidator().
		Field("user_id", userID, common.Required, common.MaxLength(maxIDLength)).
		Field("root_path", root, common.Required)); err != nil {
		return nil, ingest.DirStats{}, err
	}
	s.logger.Info("service.ingest.started", "user_id", userID, "root", root, "skip_hidden", skipHidden)
	results, stats, err := s.ingestor.IngestDirectory(ctx, userID, root, skipHidden)
	if err != nil {
		return results, stats, common.ToStatus(err)
	}
	return results, stats, nil
}

func parseSection(name string) (constants.Section, error) {
	sec, ok := constants.Canonicalize(name)
	if !ok {
		return "", common.InvalidArgumentErrorf("section must be one of [%s]", strings.Join(constants.AsStringSlice(), ", "))
	}
	return sec, nil
}
