package domain

import "time"

// BuildRecord is the durable outcome of one build attempt.
type BuildRecord struct {
	Package      string    `json:"package"`
	Version      string    `json:"version"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Success      bool      `json:"success"`
	CheckpointID string    `json:"checkpoint_id,omitempty"`
	LogTail      string    `json:"log_tail,omitempty"`
}

// Transition is one audit row of the status history.
type Transition struct {
	Package string    `json:"package"`
	Version string    `json:"version"`
	From    Status    `json:"from"`
	To      Status    `json:"to"`
	At      time.Time `json:"at"`
	Note    string    `json:"note,omitempty"`
}
