// Package batch fans trimming jobs out over every resolved read pair of a
// directory and aggregates their outcomes.
package batch

import (
	"fmt"
	"strings"
	"time"

	"github.com/tendant/simple-trimmer/internal/reads"
	"github.com/tendant/simple-trimmer/internal/trim"
)

// Stage is the orchestrator's position in a batch.
type Stage string

const (
	StagePairing     Stage = "PAIRING"
	StageRunning     Stage = "RUNNING"
	StageAggregating Stage = "AGGREGATING"
	StageDone        Stage = "DONE"
)

// Policy decides the overall batch status from its job outcomes.
type Policy string

const (
	// PolicyStrict fails the batch if any job failed.
	PolicyStrict Policy = "strict"
	// PolicyBestEffort succeeds as long as one job succeeded.
	PolicyBestEffort Policy = "best-effort"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyStrict, "":
		return PolicyStrict, nil
	case PolicyBestEffort, "best_effort", "besteffort":
		return PolicyBestEffort, nil
	default:
		return "", fmt.Errorf("unknown policy %q (want strict or best-effort)", s)
	}
}

// PublishedFile is one declared output of a successful job.
type PublishedFile struct {
	Role string
	Path string
	// Ref is the destination reference; empty when publishing failed.
	Ref string
	// Reads is the FASTQ record count, or -1 when not counted.
	Reads int64
	Err   error
}

// JobOutcome is created once per unit when its job reaches a terminal state.
type JobOutcome struct {
	JobID    string
	Input    reads.Input
	Outputs  reads.OutputSpec
	Status   trim.Status
	ExitCode int
	Err      error
	// EngineOutput is the tail of the engine's stdout/stderr.
	EngineOutput string
	Duration     time.Duration
	Published    []PublishedFile
}

// ErrorMessage is the human-readable failure cause, empty on success.
func (o JobOutcome) ErrorMessage() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// PublishFailures returns the outputs that could not be published.
func (o JobOutcome) PublishFailures() []PublishedFile {
	var failed []PublishedFile
	for _, p := range o.Published {
		if p.Err != nil {
			failed = append(failed, p)
		}
	}
	return failed
}

// Result is the aggregated report of one batch. Outcomes follow pairing-key order.
type Result struct {
	ID          string
	Mode        reads.Mode
	InputDir    string
	Destination string
	Workspace   string
	Outcomes    []JobOutcome
	Unmatched   []string
	Warnings    []string
	StartedAt   time.Time
	FinishedAt  time.Time
}

func (r *Result) Succeeded() int { return r.count(trim.StatusSuccess) }
func (r *Result) Failed() int    { return r.count(trim.StatusFailure) }

func (r *Result) count(status trim.Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// PublishedRefs returns every destination reference the batch produced.
func (r *Result) PublishedRefs() []string {
	var refs []string
	for _, o := range r.Outcomes {
		for _, p := range o.Published {
			if p.Err == nil && p.Ref != "" {
				refs = append(refs, p.Ref)
			}
		}
	}
	return refs
}

// OK reports the overall batch status under policy. An empty batch is OK.
func (r *Result) OK(policy Policy) bool {
	if len(r.Outcomes) == 0 {
		return true
	}
	if policy == PolicyBestEffort {
		return r.Succeeded() > 0
	}
	return r.Failed() == 0
}
