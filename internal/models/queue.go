package models

import "time"

// QueueEntry represents one pending mutation awaiting transmission.
// Immutable after insert except for RetryCount and LastError.
type QueueEntry struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"task_id"`
	Operation  string    `json:"operation"`
	Payload    string    `json:"payload"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	RetryCount int       `json:"retry_count"`
	LastError  *string   `json:"last_error,omitempty"`
}

// DeadLetter is the terminal projection of a queue entry that exhausted its
// retry budget. Never mutated after creation.
type DeadLetter struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	Operation string    `json:"operation"`
	Payload   string    `json:"payload"`
	LastError string    `json:"last_error"`
	FailedAt  time.Time `json:"failed_at"`
}
