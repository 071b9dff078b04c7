package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tendant/simple-trimmer/internal/reads"
	"github.com/tendant/simple-trimmer/internal/trim"
	"github.com/tendant/simple-trimmer/pkg/schema"
)

// ErrNotDispatched marks jobs skipped because the batch was cancelled.
var ErrNotDispatched = errors.New("job not dispatched")

// ErrInvalidBatchID rejects IDs that cannot name a directory under the workspace.
var ErrInvalidBatchID = errors.New("invalid batch id")

// ValidateID accepts an ID only when it is a single path element, so the
// batch workspace always stays inside the configured root.
func ValidateID(id string) error {
	switch {
	case id == "", id == ".", id == "..",
		strings.ContainsAny(id, `/\`),
		filepath.Base(id) != id,
		filepath.IsAbs(id):
		return fmt.Errorf("%w: %q", ErrInvalidBatchID, id)
	}
	return nil
}

// FetchError means an input read could not be made available locally.
type FetchError struct {
	Name string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch input %s: %v", e.Name, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// PublishError means a produced file did not reach the destination. It never
// changes the job's trimming status.
type PublishError struct {
	Path        string
	Destination string
	Err         error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s to %s: %v", e.Path, e.Destination, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// ClassifyFailure maps an error from any stage to a failure type.
func ClassifyFailure(err error) schema.FailureType {
	if err == nil {
		return ""
	}

	var (
		ambiguous *reads.AmbiguousNameError
		unpaired  *reads.UnpairedReadError
		collision *reads.OutputCollisionError
		launch    *trim.ProcessLaunchError
		nonZero   *trim.NonZeroExitError
		missing   *trim.MissingOutputError
	)
	switch {
	case errors.As(err, &ambiguous), errors.As(err, &unpaired), errors.As(err, &collision),
		errors.Is(err, ErrInvalidBatchID):
		return schema.FailureTypeValidation
	case errors.Is(err, ErrNotDispatched),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return schema.FailureTypeRetryable
	case errors.As(err, &launch), errors.As(err, &missing):
		return schema.FailureTypePermanent
	case errors.As(err, &nonZero):
		return schema.FailureTypePermanent
	}

	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "temporary failure") {
		return schema.FailureTypeRetryable
	}
	if strings.Contains(errStr, "no such file") ||
		strings.Contains(errStr, "permission denied") {
		return schema.FailureTypePermanent
	}
	return schema.FailureTypeRetryable
}
