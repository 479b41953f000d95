package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	syncPasses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tasksync",
			Name:      "sync_passes_total",
			Help:      "Sync passes by result.",
		},
		[]string{"result"},
	)

	syncItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tasksync",
			Name:      "sync_items_total",
			Help:      "Queue entries settled by outcome.",
		},
		[]string{"outcome"},
	)

	deadLetters = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tasksync",
			Name:      "dead_letters_total",
			Help:      "Mutations archived after exhausting the retry budget.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tasksync",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(syncPasses, syncItems, deadLetters, httpRequests)
	})
}

// IncSyncPass increments the pass counter for a result label.
func IncSyncPass(result string) {
	syncPasses.WithLabelValues(result).Inc()
}

// AddSyncItems adds settled items for an outcome label.
func AddSyncItems(outcome string, n int) {
	syncItems.WithLabelValues(outcome).Add(float64(n))
}

// IncDeadLetter increments the dead-letter counter.
func IncDeadLetter() {
	deadLetters.Inc()
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
