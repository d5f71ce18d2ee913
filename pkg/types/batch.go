package types

import "github.com/google/uuid"

// ItemFailure records one failed element of a best-effort batch.
type ItemFailure struct {
	ID     uuid.UUID `json:"id"`
	Reason string    `json:"reason"`
}

// BatchResult makes continue-on-error outcomes a first-class output instead of
// a side effect of logging: succeeded and failed counts are both reported.
type BatchResult struct {
	Migrated int           `json:"migrated"`
	Failed   []ItemFailure `json:"failed,omitempty"`
}

// FailedCount returns the number of failed elements.
func (b BatchResult) FailedCount() int {
	return len(b.Failed)
}
