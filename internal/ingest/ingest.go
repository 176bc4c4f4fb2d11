package ingest

import (
	"context"
	"time"

	"github.com/joseph-ayodele/cv-extractor/internal/entity"
)

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath   string
	SourceRef    string
	Deduplicated bool
	HashHex      string
	JobID        string
	Position     int
	UploadedAt   time.Time
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Enqueued     uint32
	Failed       uint32
}

// Enqueuer accepts extraction jobs for stored text.
type Enqueuer interface {
	AddJob(ctx context.Context, userID, sourceRef string) (*entity.EnqueueResult, error)
}

// Ingestor is the behavior the service depends on.
type Ingestor interface {
	// IngestPath stores the text of a single file and queues it for extraction.
	IngestPath(ctx context.Context, userID, path string) (IngestionResult, error)
	// IngestDirectory ingests all matching files under root.
	IngestDirectory(ctx context.Context, userID, root string, skipHidden bool) ([]IngestionResult, DirStats, error)
}
