package pipeline

import (
	"errors"
	"fmt"
)

// ErrDeadlineExceeded aborts the pipeline when the wall-clock budget is
// spent before the next stage can start.
var ErrDeadlineExceeded = errors.New("pipeline deadline exceeded")

// ErrInFlight is returned when another execution already holds the lease for
// the same jd_hash.
var ErrInFlight = errors.New("job is already being processed")

// ExtractionError is a terminal ingestion failure: the input could not be
// turned into usable JD text (low OCR confidence, dead URL, empty message).
type ExtractionError struct {
	Source  string // "ocr", "url", "text"
	Message string
	Cause   error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extraction failed (%s): %s: %v", e.Source, e.Message, e.Cause)
	}
	return fmt.Sprintf("extraction failed (%s): %s", e.Source, e.Message)
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

// ExternalServiceError wraps upload/calendar failures. Optional stages
// record it and continue; required stages abort.
type ExternalServiceError struct {
	Service string
	Cause   error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Service, e.Cause)
}

func (e *ExternalServiceError) Unwrap() error { return e.Cause }

// ErrBudgetExceeded aborts the pipeline when accumulated LLM cost crosses
// the per-job ceiling.
var ErrBudgetExceeded = errors.New("per-job cost ceiling exceeded")
