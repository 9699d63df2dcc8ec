package models

import "time"

// SyncStatus is the lifecycle state of one sync command
type SyncStatus string

const (
	SyncQueued  SyncStatus = "queued"
	SyncRunning SyncStatus = "running"
	SyncDone    SyncStatus = "done"
	SyncFailed  SyncStatus = "failed"
)

// SyncRun is the history record of one sync command
type SyncRun struct {
	ID          string     `json:"id"`
	Directory   string     `json:"directory"` // root-relative
	Status      SyncStatus `json:"status"`
	ImageCount  int        `json:"image_count"`
	BundleCount int        `json:"bundle_count"`
	Error       string     `json:"error,omitempty"`
	QueuedAt    time.Time  `json:"queued_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Event types published while a sync command moves through the worker
const (
	EventSyncQueued  = "sync.queued"
	EventSyncStarted = "sync.started"
	EventSyncDone    = "sync.done"
	EventSyncFailed  = "sync.failed"
)

// SyncEvent is pushed to websocket subscribers on every status change
type SyncEvent struct {
	Type        string    `json:"type"`
	RunID       string    `json:"runId"`
	Directory   string    `json:"directory"`
	ImageCount  int       `json:"imageCount,omitempty"`
	BundleCount int       `json:"bundleCount,omitempty"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
