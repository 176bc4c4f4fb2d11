package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/cv-extractor/constants"
	"github.com/joseph-ayodele/cv-extractor/internal/async"
	"github.com/joseph-ayodele/cv-extractor/internal/common"
	"github.com/joseph-ayodele/cv-extractor/internal/export"
	"github.com/joseph-ayodele/cv-extractor/internal/extract"
	"github.com/joseph-ayodele/cv-extractor/internal/ingest"
	"github.com/joseph-ayodele/cv-extractor/internal/llm"
	"github.com/joseph-ayodele/cv-extractor/internal/llm/openai"
	"github.com/joseph-ayodele/cv-extractor/internal/pipeline"
	"github.com/joseph-ayodele/cv-extractor/internal/repository"
	"github.com/joseph-ayodele/cv-extractor/internal/session"
)

// Stack is the fully wired application shared by the daemon and the CLI.
type Stack struct {
	DB       *repository.DB
	Sessions *session.Store
	Queue    *async.ProcessingQueue
	Ingestor *ingest.FSIngestor
	Service  *Service
	logger   *slog.Logger
}

// NewStack opens the store and wires the extractor, queue and service.
func NewStack(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*Stack, error) {
	logger = common.LoggerOrDefault(logger)
	db, err := repository.Open(ctx, repository.ConfigFrom(cfg.Database), logger)
	if err != nil {
		return nil, err
	}

	client := openai.NewClient(openai.Config{
		APIKey:            cfg.LLM.APIKey,
		BaseURL:           cfg.LLM.BaseURL,
		Timeout:           cfg.LLM.Timeout,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
	}, logger)
	caller := llm.NewResilient(client, llm.NewModelChain(cfg.LLM.Models...), logger,
		llm.WithTemperature(cfg.LLM.Temperature),
		llm.WithRetryConfig(llm.RetryConfig{
			MaxRetries:  cfg.LLM.MaxRetries,
			InitialWait: cfg.LLM.InitialBackoff,
			MaxWait:     cfg.LLM.MaxBackoff,
			Multiplier:  2.0,
		}),
	)

	jobs := repository.NewJobRepository(db, logger)
	sources := repository.NewSourceRepository(db, logger)
	sessions := session.NewStore(repository.NewSessionRepository(db, logger), logger)
	extractor := pipeline.NewExtractor(caller, sessions, logger, pipeline.WithSessionTTL(cfg.Session.TTL))

	queue := async.NewProcessingQueue(jobs, extract.TextSourceFunc(sources.Text), extractor, logger,
		async.WithConfig(cfg.Queue),
		async.WithSessionPurge(sessions, SessionPurgeAge(cfg)),
	)
	ingestor := ingest.NewFSIngestor(sources, queue, logger)
	ingestor.AllowedExts = ingest.ExtSet(cfg.Ingest.Extensions)

	svc := NewService(Deps{
		Queue:     queue,
		Extractor: extractor,
		Sources:   sources,
		Exporter:  export.NewService(jobs, logger),
		Ingestor:  ingestor,
	}, logger)

	return &Stack{
		DB:       db,
		Sessions: sessions,
		Queue:    queue,
		Ingestor: ingestor,
		Service:  svc,
		logger:   logger,
	}, nil
}

// SessionPurgeAge is how old a session must be before cleanup deletes it.
// It outlives the longest job so a running extraction keeps its session.
func SessionPurgeAge(cfg *common.Config) time.Duration {
	jobTimeout := cfg.Queue.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = constants.DefaultJobTimeout
	}
	return max(cfg.Session.TTL, jobTimeout) + cfg.Session.TTL
}

// Close stops the queue, pending session timers and the store, in that order.
func (s *Stack) Close(ctx context.Context) {
	s.Queue.Shutdown(ctx)
	s.Sessions.Close()
	s.DB.Close()
	s.logger.Info("stack.closed")
}
