package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegister_Idempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestCounters(t *testing.T) {
	Register()

	before := testutil.ToFloat64(syncPasses.WithLabelValues("success"))
	IncSyncPass("success")
	assert.Equal(t, before+1, testutil.ToFloat64(syncPasses.WithLabelValues("success")))

	beforeItems := testutil.ToFloat64(syncItems.WithLabelValues("synced"))
	AddSyncItems("synced", 3)
	assert.Equal(t, beforeItems+3, testutil.ToFloat64(syncItems.WithLabelValues("synced")))

	beforeDead := testutil.ToFloat64(deadLetters)
	IncDeadLetter()
	assert.Equal(t, beforeDead+1, testutil.ToFloat64(deadLetters))

	beforeHTTP := testutil.ToFloat64(httpRequests.WithLabelValues("/health"))
	IncHTTP("/health")
	assert.Equal(t, beforeHTTP+1, testutil.ToFloat64(httpRequests.WithLabelValues("/health")))
}
