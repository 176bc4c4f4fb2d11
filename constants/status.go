package constants

// JobStatus is the canonical status for rows in the jobs table.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusQueued     JobStatus = "queued"     // waiting for the worker
	JobStatusProcessing JobStatus = "processing" // claimed by the worker
	JobStatusCompleted  JobStatus = "completed"  // terminal, structured data persisted
	JobStatusFailed     JobStatus = "failed"     // terminal, error message persisted
	JobStatusCancelled  JobStatus = "cancelled"  // terminal, cancelled while queued
)

// IsTerminal reports whether no further transition is possible.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// AllJobStatuses lists every status in lifecycle order.
var AllJobStatuses = []JobStatus{
	JobStatusQueued,
	JobStatusProcessing,
	JobStatusCompleted,
	JobStatusFailed,
	JobStatusCancelled,
}
