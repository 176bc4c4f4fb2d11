package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/cv-extractor/internal/common"
	"github.com/joseph-ayodele/cv-extractor/internal/extract"
	"github.com/joseph-ayodele/cv-extractor/internal/repository"
)

// FSIngestor reads CV text files from the local filesystem, stores them and
// queues new content for extraction.
type FSIngestor struct {
	Sources     repository.SourceRepository
	Queue       Enqueuer
	AllowedExts map[string]struct{} // lowercased sans '.'; nil -> default set

	logger *slog.Logger
	now    func() time.Time
}

func NewFSIngestor(sources repository.SourceRepository, queue Enqueuer, logger *slog.Logger) *FSIngestor {
	return &FSIngestor{
		Sources: sources,
		Queue:   queue,
		logger:  common.LoggerOrDefault(logger),
		now:     time.Now,
	}
}

// IngestPath stores the file's text for userID. Content the user already
// stored is reported as deduplicated and not queued again.
func (i *FSIngestor) IngestPath(ctx context.Context, userID, path string) (IngestionResult, error) {
	var out IngestionResult
	if strings.TrimSpace(userID) == "" {
		return out, fmt.Errorf("user id is required: %w", common.ErrInvalidInput)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, fmt.Errorf("abs path: %w", err)
	}
	ext := NormalizeExt(filepath.Ext(abs))
	if ext == "" || !AllowedExt(ext, i.AllowedExts) {
		i.logger.Warn("ingest.ext.unsupported", "path", abs, "ext", ext)
		return out, fmt.Errorf("unsupported or missing extension %q: %w", ext, common.ErrInvalidInput)
	}

	text, err := extract.ReadTextFile(abs)
	if err != nil {
		return out, err
	}
	if strings.TrimSpace(text) == "" {
		return out, fmt.Errorf("%s has no text: %w", abs, common.ErrInvalidInput)
	}

	src, dedup, err := i.Sources.UpsertByHash(ctx, userID, filepath.Base(abs), text, i.now())
	if err != nil {
		return out, err
	}
	out = IngestionResult{
		SourcePath:   abs,
		SourceRef:    src.Ref,
		Deduplicated: dedup,
		HashHex:      src.HashHex,
		UploadedAt:   src.CreatedAt,
	}
	if dedup || i.Queue == nil {
		i.logger.Info("ingest.file.stored", "path", abs, "ref", src.Ref, "deduplicated", dedup)
		return out, nil
	}

	res, err := i.Queue.AddJob(ctx, userID, src.Ref)
	if err != nil {
		return out, fmt.Errorf("enqueue %s: %w", src.Ref, err)
	}
	out.JobID = res.JobID
	out.Position = res.Position
	i.logger.Info("ingest.file.enqueued", "path", abs, "ref", src.Ref, "job_id", res.JobID, "position", res.Position)
	return out, nil
}

// IngestDirectory walks root, skips hidden if requested,
// and calls IngestPath for each file. Returns per-file results + aggregate stats.
func (i *FSIngestor) IngestDirectory(
	ctx context.Context,
	userID string,
	root string,
	skipHidden bool,
) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, fmt.Errorf("root path is required: %w", common.ErrInvalidInput)
	}

	var results []IngestionResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}
		if !AllowedExt(filepath.Ext(path), i.AllowedExts) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, userID, path)
		if err != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: err.Error()})
			stats.Failed++
			return nil
		}

		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
		}
		if r.JobID != "" {
			stats.Enqueued++
		}
		return nil
	})

	i.logger.Info("ingest.dir.done", "root", root,
		"scanned", stats.Scanned, "matched", stats.Matched, "succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated, "enqueued", stats.Enqueued, "failed", stats.Failed)
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}
