package analysis

import (
	"errors"
	"fmt"

	"swotlens/internal/batch"
	"swotlens/internal/core"
	"swotlens/internal/recovery"
)

var (
	// ErrBatchProcessingFailed marks a batch failure that ended a strict run.
	ErrBatchProcessingFailed = errors.New("batch processing failed")
	// ErrRunTimeout means the whole run outlived its deadline.
	ErrRunTimeout = errors.New("analysis run timed out")
	// ErrInvalidTransition means the run state machine was driven out of order.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// BatchError names the batch that failed and carries an excerpt of the
// offending model output when one exists. Only strict runs match
// ErrBatchProcessingFailed; a fatal model error in a resilient run is
// reported through the same type without it.
type BatchError struct {
	Source  core.Source
	Ordinal int // 1-based position among batches of the same source
	Total   int // Batches with the same source
	Index   int // Position in the whole plan
	Excerpt string
	Strict  bool
	Err     error
}

func newBatchError(b batch.Batch, err error, mode Mode) *BatchError {
	return &BatchError{
		Strict:  mode == ModeStrict,
		Source:  b.Source,
		Ordinal: b.Ordinal,
		Total:   b.Total,
		Index:   b.Index,
		Excerpt: excerptOf(err),
		Err:     err,
	}
}

func (e *BatchError) Error() string {
	msg := fmt.Sprintf("%s batch %d/%d failed: %v", e.Source, e.Ordinal, e.Total, e.Err)
	if e.Excerpt != "" {
		msg += "\nresponse excerpt: " + e.Excerpt
	}
	return msg
}

func (e *BatchError) Unwrap() error { return e.Err }

func (e *BatchError) Is(target error) bool {
	return e.Strict && target == ErrBatchProcessingFailed
}

func excerptOf(err error) string {
	var malformed *recovery.MalformedResponseError
	if errors.As(err, &malformed) {
		return malformed.Excerpt()
	}
	var invalid *recovery.InvalidStructuredResultError
	if errors.As(err, &invalid) {
		return invalid.Excerpt()
	}
	return ""
}
