package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline failure taxonomy.
var (
	ErrInvalidURL        = errors.New("invalid url")
	ErrInvalidQuestion   = errors.New("invalid question")
	ErrInvalidChunkCount = errors.New("invalid chunk count")
	ErrFetchFailed       = errors.New("fetch failed")
	ErrEmptyBody         = errors.New("empty body")
	ErrEmbeddingFailed   = errors.New("embedding failed")
	ErrStoreFailed       = errors.New("store failed")
	ErrRetrievalFailed   = errors.New("retrieval failed")
	ErrGenerationFailed  = errors.New("generation failed")
)

// PipelineError wraps a sentinel with the URL or question it occurred on.
type PipelineError struct {
	Op      string
	Subject string
	Wrapped error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s (subject=%q)", e.Op, e.Wrapped, e.Subject)
}

func (e *PipelineError) Unwrap() error { return e.Wrapped }

// NewPipelineError creates a PipelineError.
func NewPipelineError(op, subject string, wrapped error) *PipelineError {
	return &PipelineError{Op: op, Subject: subject, Wrapped: wrapped}
}
