// internal/process/adapter.go
package process

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of one trimming job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Job tracks one trimming invocation from dispatch to its terminal state.
// Terminal states are final; later transitions are ignored.
type Job struct {
	ID         string
	BatchID    string
	PairKey    string
	Status     JobStatus
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

func NewJob(batchID, pairKey string) *Job {
	return &Job{
		ID:      uuid.New().String(),
		BatchID: batchID,
		PairKey: pairKey,
		Status:  JobStatusPending,
	}
}

// Terminal reports whether the job reached succeeded or failed.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusSucceeded || j.Status == JobStatusFailed
}

func MarkRunning(j *Job) {
	if j.Status != JobStatusPending {
		return
	}
	j.Status = JobStatusRunning
	j.StartedAt = time.Now()
}

func MarkSucceeded(j *Job) {
	if j.Terminal() {
		return
	}
	j.Status = JobStatusSucceeded
	j.FinishedAt = time.Now()
}

func MarkFailed(j *Job, err error) {
	if j.Terminal() {
		return
	}
	j.Status = JobStatusFailed
	j.FinishedAt = time.Now()
	if err != nil {
		j.Error = err.Error()
	}
}

// Duration is the time spent running, or zero if the job never started.
func (j *Job) Duration() time.Duration {
	if j.StartedAt.IsZero() {
		return 0
	}
	end := j.FinishedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(j.StartedAt)
}
