package batch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-trimmer/internal/reads"
	"github.com/tendant/simple-trimmer/internal/trim"
	"github.com/tendant/simple-trimmer/pkg/schema"
)

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want schema.FailureType
	}{
		{"Nil", nil, ""},
		{"Unpaired", fmt.Errorf("pair: %w", &reads.UnpairedReadError{Key: "s"}), schema.FailureTypeValidation},
		{"Ambiguous", &reads.AmbiguousNameError{Name: "x_r1_r2"}, schema.FailureTypeValidation},
		{"Collision", &reads.OutputCollisionError{Output: "trimmed_a"}, schema.FailureTypeValidation},
		{"Launch", &trim.ProcessLaunchError{Command: "java", Err: errors.New("not found")}, schema.FailureTypePermanent},
		{"NonZero", &trim.NonZeroExitError{ExitCode: 1}, schema.FailureTypePermanent},
		{"NonZeroCancelled", &trim.NonZeroExitError{ExitCode: -1, Cause: context.Canceled}, schema.FailureTypeRetryable},
		{"Missing", &trim.MissingOutputError{Paths: []string{"a"}}, schema.FailureTypePermanent},
		{"NotDispatched", fmt.Errorf("%w: %w", ErrNotDispatched, context.Canceled), schema.FailureTypeRetryable},
		{"FetchRefused", &FetchError{Name: "a", Err: errors.New("dial tcp: connection refused")}, schema.FailureTypeRetryable},
		{"FetchMissing", &FetchError{Name: "a", Err: errors.New("open a: no such file or directory")}, schema.FailureTypePermanent},
		{"Publish", &PublishError{Path: "a", Destination: "d", Err: errors.New("i/o timeout")}, schema.FailureTypeRetryable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyFailure(tc.err))
		})
	}
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{
		"":            PolicyStrict,
		"strict":      PolicyStrict,
		"Best-Effort": PolicyBestEffort,
		"best_effort": PolicyBestEffort,
	} {
		got, err := ParsePolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParsePolicy("lenient")
	assert.Error(t, err)
}

func TestResultOK(t *testing.T) {
	ok := JobOutcome{Status: trim.StatusSuccess}
	bad := JobOutcome{Status: trim.StatusFailure}

	tests := []struct {
		name       string
		outcomes   []JobOutcome
		strict     bool
		bestEffort bool
	}{
		{"Empty", nil, true, true},
		{"AllSucceeded", []JobOutcome{ok, ok}, true, true},
		{"Mixed", []JobOutcome{ok, bad}, false, true},
		{"AllFailed", []JobOutcome{bad, bad}, false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := &Result{Outcomes: tc.outcomes}
			assert.Equal(t, tc.strict, r.OK(PolicyStrict))
			assert.Equal(t, tc.bestEffort, r.OK(PolicyBestEffort))
		})
	}
}

func TestResultDone(t *testing.T) {
	pair := reads.ReadPair{
		Key:     "sampleA",
		Forward: reads.ReadFile{Name: "sampleA_r1.fq"},
		Reverse: reads.ReadFile{Name: "sampleA_r2.fq"},
	}
	start := time.Now()
	r := &Result{
		ID:         "b1",
		Mode:       reads.ModePaired,
		InputDir:   "/in",
		Unmatched:  []string{"notes.txt"},
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Outcomes: []JobOutcome{
			{
				JobID:  "j1",
				Input:  pair,
				Status: trim.StatusSuccess,
				Published: []PublishedFile{
					{Role: "trimmed_forward", Path: "/w/trimmed_sampleA_r1.fq", Ref: "/out/trimmed_sampleA_r1.fq", Reads: 10},
					{Role: "untrimmed_forward", Path: "/w/untrimmed_sampleA_r1.fq", Reads: -1, Err: errors.New("disk full")},
				},
			},
			{
				JobID:    "j2",
				Input:    reads.ReadPair{Key: "sampleB"},
				Status:   trim.StatusFailure,
				ExitCode: 1,
				Err:      &trim.NonZeroExitError{ExitCode: 1},
			},
		},
	}

	done := r.Done()
	assert.Equal(t, "b1", done.ID)
	assert.Equal(t, "PE", done.Mode)
	assert.Equal(t, 2, done.TotalJobs)
	assert.Equal(t, 1, done.TotalSucceeded)
	assert.Equal(t, 1, done.TotalFailed)
	assert.Equal(t, int64(1500), done.ProcessingTimeMs)
	assert.Equal(t, []string{"notes.txt"}, done.Unmatched)

	require.Len(t, done.Results, 2)
	first := done.Results[0]
	assert.Equal(t, []string{"sampleA_r1.fq", "sampleA_r2.fq"}, first.Inputs)
	require.Len(t, first.Outputs, 2)
	assert.Equal(t, "published", first.Outputs[0].Status)
	assert.Equal(t, int64(10), first.Outputs[0].Reads)
	assert.Equal(t, "failed", first.Outputs[1].Status)
	assert.Equal(t, "disk full", first.Outputs[1].Error)
	assert.Zero(t, first.Outputs[1].Reads)

	second := done.Results[1]
	assert.Equal(t, "FAILURE", second.Status)
	assert.Equal(t, schema.FailureTypePermanent, second.FailureType)
	assert.NotEmpty(t, second.Error)
}

func TestFailedDone(t *testing.T) {
	done := FailedDone("b1", "/in", "/out", &reads.UnpairedReadError{Key: "sampleB", Present: reads.RoleForward, Name: "sampleB_r1.fq"})
	assert.Equal(t, schema.FailureTypeValidation, done.FailureType)
	assert.Contains(t, done.Error, "sampleB")
	assert.Zero(t, done.TotalJobs)
}
