package model

import (
	"time"

	"github.com/google/uuid"
)

// Outcome classifies how a refresh attempt ended. The stages map one-to-one
// onto the refresh pipeline: login, cookie extraction, API validation, store
// write. Success also covers the skip-if-valid short circuit.
type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeLoginFailed      Outcome = "login_failed"
	OutcomeExtractionFailed Outcome = "extraction_failed"
	OutcomeValidationFailed Outcome = "validation_failed"
	OutcomeStoreFailed      Outcome = "store_failed"
)

// RefreshAttempt is one complete execution of the refresh pipeline. Exactly
// one record is appended to the audit trail per run, success or failure, and
// it is immutable once finished.
type RefreshAttempt struct {
	ID          uuid.UUID
	StartedAt   time.Time
	FinishedAt  time.Time
	Outcome     Outcome
	ErrorDetail string
	// ValidationRetries counts transport-level validation retries consumed
	// beyond the first request. Always zero for non-transport failures.
	ValidationRetries int
}
