// pkg/schema/events.go
package schema

// BatchRequest asks a worker to trim one directory of reads.
type BatchRequest struct {
	ID            string            `json:"id"`
	InputDir      string            `json:"input_dir"`
	Destination   string            `json:"destination"`
	Manifest      map[string]string `json:"manifest,omitempty"` // file name -> content id
	AdapterSeq    string            `json:"adapter_seq"`
	SlidingWindow string            `json:"sliding_window,omitempty"`
	MinLen        int               `json:"min_len,omitempty"`
	Threads       int               `json:"threads,omitempty"`
	ReadType      string            `json:"read_type,omitempty"`
	Phred         string            `json:"phred,omitempty"`
	HappenedAt    int64             `json:"happened_at"`
}

type BatchStage string

const (
	StagePairing     BatchStage = "pairing"
	StageRunning     BatchStage = "running"
	StageAggregating BatchStage = "aggregating"
	StageDone        BatchStage = "done"
	StageFailed      BatchStage = "failed"
)

type FailureType string

const (
	FailureTypeRetryable  FailureType = "retryable"
	FailureTypePermanent  FailureType = "permanent"
	FailureTypeValidation FailureType = "validation"
)

type BatchLifecycleEvent struct {
	BatchID     string      `json:"batch_id"`
	Stage       BatchStage  `json:"stage"`
	TotalJobs   int         `json:"total_jobs,omitempty"`
	Error       string      `json:"error,omitempty"`
	FailureType FailureType `json:"failure_type,omitempty"`
	HappenedAt  int64       `json:"happened_at"`
}

type JobLifecycleEvent struct {
	BatchID         string      `json:"batch_id"`
	JobID           string      `json:"job_id"`
	PairKey         string      `json:"pair_key"`
	Status          string      `json:"status"`
	ExitCode        *int        `json:"exit_code,omitempty"`
	ProcessingStart int64       `json:"processing_start,omitempty"`
	ProcessingEnd   int64       `json:"processing_end,omitempty"`
	Error           string      `json:"error,omitempty"`
	FailureType     FailureType `json:"failure_type,omitempty"`
	HappenedAt      int64       `json:"happened_at"`
}

type OutputResult struct {
	Role   string `json:"role"`
	Path   string `json:"path"`
	Ref    string `json:"ref,omitempty"`
	Status string `json:"status"` // published, failed, skipped
	Reads  int64  `json:"reads,omitempty"`
	Error  string `json:"error,omitempty"`
}

type JobResult struct {
	JobID       string         `json:"job_id"`
	PairKey     string         `json:"pair_key"`
	Inputs      []string       `json:"inputs"`
	Status      string         `json:"status"`
	ExitCode    int            `json:"exit_code"`
	Error       string         `json:"error,omitempty"`
	FailureType FailureType    `json:"failure_type,omitempty"`
	DurationMs  int64          `json:"duration_ms"`
	Outputs     []OutputResult `json:"outputs,omitempty"`
}

type BatchDone struct {
	ID               string      `json:"id"`
	InputDir         string      `json:"input_dir"`
	Destination      string      `json:"destination"`
	Mode             string      `json:"mode"`
	TotalJobs        int         `json:"total_jobs"`
	TotalSucceeded   int         `json:"total_succeeded"`
	TotalFailed      int         `json:"total_failed"`
	Unmatched        []string    `json:"unmatched,omitempty"`
	Warnings         []string    `json:"warnings,omitempty"`
	Results          []JobResult `json:"results,omitempty"`
	Error            string      `json:"error,omitempty"`
	FailureType      FailureType `json:"failure_type,omitempty"`
	ProcessingTimeMs int64       `json:"processing_time_ms"`
	HappenedAt       int64       `json:"happened_at"`
}
