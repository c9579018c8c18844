package driven

import (
	"context"

	"github.com/ericfisherdev/leaguedash/internal/domain/model"
)

// AttemptStore defines the driven port for the append-only refresh audit
// trail. Records are immutable once appended.
type AttemptStore interface {
	// Append durably records a finished refresh attempt.
	Append(ctx context.Context, attempt model.RefreshAttempt) error

	// ListRecent returns up to limit attempts, newest first. Intended for
	// operators diagnosing repeated failures.
	ListRecent(ctx context.Context, limit int) ([]model.RefreshAttempt, error)
}
