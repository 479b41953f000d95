package sync

import "tasksync/internal/models"

// Resolve picks the winner between a locally known version and a
// remote-supplied version of the same record. Last writer wins on the update
// timestamp; on an exact tie the version whose inferred operation carries the
// higher priority wins (delete beats update beats create), and the local side
// wins ties between equal-priority operations.
//
// Pure function, no side effects; the orchestrator persists the winner.
func Resolve(local, remote models.Task) (winner models.Task, localWon bool) {
	if local.UpdatedAt.After(remote.UpdatedAt) {
		return local, true
	}
	if remote.UpdatedAt.After(local.UpdatedAt) {
		return remote, false
	}

	localPriority := models.OperationPriority(local.InferOperation())
	remotePriority := models.OperationPriority(remote.InferOperation())
	if remotePriority > localPriority {
		return remote, false
	}
	return local, true
}
