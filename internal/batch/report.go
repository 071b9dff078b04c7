package batch

import (
	"time"

	"github.com/tendant/simple-trimmer/pkg/schema"
)

// Done converts the result into the event published when a batch finishes.
func (r *Result) Done() schema.BatchDone {
	done := schema.BatchDone{
		ID:             r.ID,
		InputDir:       r.InputDir,
		Destination:    r.Destination,
		Mode:           string(r.Mode),
		TotalJobs:      len(r.Outcomes),
		TotalSucceeded: r.Succeeded(),
		TotalFailed:    r.Failed(),
		Unmatched:      r.Unmatched,
		Warnings:       r.Warnings,
		HappenedAt:     time.Now().Unix(),
	}
	if !r.FinishedAt.IsZero() {
		done.ProcessingTimeMs = r.FinishedAt.Sub(r.StartedAt).Milliseconds()
	}

	for _, o := range r.Outcomes {
		jr := schema.JobResult{
			JobID:       o.JobID,
			PairKey:     o.Input.PairKey(),
			Status:      string(o.Status),
			ExitCode:    o.ExitCode,
			Error:       o.ErrorMessage(),
			FailureType: ClassifyFailure(o.Err),
			DurationMs:  o.Duration.Milliseconds(),
		}
		for _, rf := range o.Input.Reads() {
			jr.Inputs = append(jr.Inputs, rf.Name)
		}
		for _, p := range o.Published {
			out := schema.OutputResult{Role: p.Role, Path: p.Path, Ref: p.Ref, Status: "published"}
			if p.Reads >= 0 {
				out.Reads = p.Reads
			}
			if p.Err != nil {
				out.Status = "failed"
				out.Error = p.Err.Error()
			}
			jr.Outputs = append(jr.Outputs, out)
		}
		done.Results = append(done.Results, jr)
	}
	return done
}

// FailedDone reports a batch that was rejected before any job ran.
func FailedDone(id, inputDir, destination string, err error) schema.BatchDone {
	return schema.BatchDone{
		ID:          id,
		InputDir:    inputDir,
		Destination: destination,
		Error:       err.Error(),
		FailureType: ClassifyFailure(err),
		HappenedAt:  time.Now().Unix(),
	}
}
