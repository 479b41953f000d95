package sync

import (
	"strconv"
	"strings"
	"time"

	"tasksync/internal/models"
)

// Checksum folds the ordered batch into a 32-bit polynomial rolling hash and
// returns its base-10 string form. The remote uses it to detect request
// corruption or reordering: the same ordered batch always produces the same
// string, and reordering distinct items changes it.
func Checksum(items []models.BatchItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, item.TaskID+":"+item.Operation+":"+item.EnqueuedAt.UTC().Format(time.RFC3339Nano))
	}
	joined := strings.Join(parts, "|")

	var hash int32
	for _, b := range []byte(joined) {
		hash = hash*31 + int32(b)
	}
	return strconv.FormatInt(int64(hash), 10)
}
