package models

// Sync status lifecycle of a task.
const (
	SyncStatusPending    = "pending"
	SyncStatusInProgress = "in-progress"
	SyncStatusSynced     = "synced"
	SyncStatusError      = "error"
	SyncStatusFailed     = "failed"
)

// Mutation kinds carried by queue entries.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Per-item outcomes reported by the remote authority.
const (
	ItemStatusSuccess  = "success"
	ItemStatusConflict = "conflict"
	ItemStatusError    = "error"
)

const (
	// DefaultBatchSize количество мутаций в одном запросе к удалённой стороне
	DefaultBatchSize = 10

	// DefaultRetryBudget общее число попыток до переноса в dead letter
	DefaultRetryBudget = 3

	// DefaultProbeTimeout таймаут проверки доступности удалённой стороны
	DefaultProbeTimeoutSeconds = 3

	// DefaultRequestTimeout таймаут одного batch-запроса
	DefaultRequestTimeoutSeconds = 15

	// DefaultSyncStateTTL время жизни кэша результата синхронизации в Redis
	DefaultSyncStateTTL = 60 * 60 // 1 час в секундах
)

// OperationPriority orders same-instant mutations: the more foundational
// operation sorts first, and on conflict ties the higher value wins.
func OperationPriority(op string) int {
	switch op {
	case OpCreate:
		return 1
	case OpUpdate:
		return 2
	case OpDelete:
		return 3
	default:
		return 0
	}
}

// IsValidOperation reports whether op is one of the known mutation kinds.
func IsValidOperation(op string) bool {
	return op == OpCreate || op == OpUpdate || op == OpDelete
}
