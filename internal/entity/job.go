package entity

import (
	"time"

	"github.com/joseph-ayodele/cv-extractor/constants"
)

// Job represents a queued extraction for data transfer between layers.
type Job struct {
	ID                    string              `json:"id"`
	UserID                string              `json:"user_id"`
	SourceRef             string              `json:"source_ref"`
	Status                constants.JobStatus `json:"status"`
	Position              int                 `json:"position"`
	EstimatedWaitMinutes  int                 `json:"estimated_wait_minutes"`
	CreatedAt             time.Time           `json:"created_at"`
	StartedAt             *time.Time          `json:"started_at,omitempty"`
	CompletedAt           *time.Time          `json:"completed_at,omitempty"`
	StructuredData        *ExtractedProfile   `json:"structured_data,omitempty"`
	ErrorMessage          *string             `json:"error_message,omitempty"`
	ProcessingTimeSeconds *float64            `json:"processing_time_seconds,omitempty"`
}

// EnqueueResult is returned when a job is accepted.
type EnqueueResult struct {
	JobID                string `json:"job_id"`
	Position             int    `json:"position"`
	EstimatedWaitMinutes int    `json:"estimated_wait_minutes"`
}

// QueueStats summarises jobs created inside a rolling window.
type QueueStats struct {
	Queued                   int     `json:"queued"`
	Processing               int     `json:"processing"`
	Completed                int     `json:"completed"`
	Failed                   int     `json:"failed"`
	Cancelled                int     `json:"cancelled"`
	AvgProcessingTimeSeconds float64 `json:"avg_processing_time_seconds"`
	WindowHours              float64 `json:"window_hours"`
}

// SourceText is pre-extracted CV text stored for later processing.
type SourceText struct {
	Ref       string    `json:"ref"`
	UserID    string    `json:"user_id"`
	Filename  string    `json:"filename,omitempty"`
	Text      string    `json:"text"`
	HashHex   string    `json:"hash"`
	CreatedAt time.Time `json:"created_at"`
}
