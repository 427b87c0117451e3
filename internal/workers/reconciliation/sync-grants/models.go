// internal/workers/reconciliation/sync-grants/models.go
package syncgrants

import (
	"time"

	"whitelist-intake/internal/models"
)

// SweepResult summarizes one pass over a decision class.
type SweepResult struct {
	Class    models.Action `json:"class"`
	Scanned  int           `json:"scanned"`
	Synced   int           `json:"synced"`
	Pending  int           `json:"pending"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

type rowOutcome int

const (
	rowSynced rowOutcome = iota
	rowPending
	rowFailed
)
