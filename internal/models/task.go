package models

import "time"

// Task is a locally mutable record. The ID is assigned by this client;
// RemoteID appears only after the remote authority has accepted the task.
type Task struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Completed    bool       `json:"completed"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	IsDeleted    bool       `json:"is_deleted"`
	SyncStatus   string     `json:"sync_status"`
	RemoteID     *string    `json:"remote_id,omitempty"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

// InferOperation reconstructs the mutation kind implied by a bare snapshot.
// The timestamp heuristic cannot distinguish "freshly created" from "updated
// within the same instant"; callers that need exact fidelity should carry the
// operation explicitly.
func (t Task) InferOperation() string {
	if t.IsDeleted {
		return OpDelete
	}
	if t.UpdatedAt.Equal(t.CreatedAt) {
		return OpCreate
	}
	return OpUpdate
}
