package model

import "time"

// Task represents a single user-initiated ingestion request. It is owned
// exclusively by the controller that spawned it and lives until terminal
// success acknowledgment, cancellation, or user-triggered removal.
type Task struct {
	ID          string
	Identity    Identity
	PartSize    int64 // transfer-size policy: bytes per segment
	AutoProcess bool  // start deep processing automatically after merge
	State       State
	SessionRef  string // server-assigned upload session, empty until init
	ContentRef  string // server-resolved content id, empty until init
	DownloadRef string // reference to the processed content, set on first finish
	StartedAt   time.Time
	FinishedAt  time.Time
}

// DisplayTitle returns the best human-readable name for the task.
func (t *Task) DisplayTitle() string {
	return t.Identity.DisplayTitle()
}
