package models

import "time"

// SyncError records one failure produced during a sync pass.
type SyncError struct {
	TaskID    string    `json:"task_id"`
	Operation string    `json:"operation"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// SyncResult summarizes a single orchestrator pass. Not persisted.
type SyncResult struct {
	Success     bool        `json:"success"`
	SyncedCount int         `json:"synced_count"`
	FailedCount int         `json:"failed_count"`
	Errors      []SyncError `json:"errors"`
}

// BatchItem is one mutation on the wire, in canonical batch order.
type BatchItem struct {
	TaskID     string    `json:"task_id"`
	Operation  string    `json:"operation"`
	Payload    Task      `json:"payload"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// BatchRequest is the request body sent to the remote authority.
type BatchRequest struct {
	Items           []BatchItem `json:"items"`
	ClientTimestamp time.Time   `json:"client_timestamp"`
	Checksum        string      `json:"checksum"`
}

// ItemResult is the remote's verdict for one submitted item. Results are not
// ordered relative to the request; they are matched by ClientID.
type ItemResult struct {
	ClientID     string  `json:"client_id"`
	ServerID     *string `json:"server_id,omitempty"`
	Status       string  `json:"status"`
	ResolvedData *Task   `json:"resolved_data,omitempty"`
	Error        *string `json:"error,omitempty"`
}

// BatchResponse is the remote's reply to a BatchRequest.
type BatchResponse struct {
	ProcessedItems []ItemResult `json:"processed_items"`
}
