// Package metrics holds the Prometheus metrics of the monitor.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// snapshotsTotal counts applied snapshots per collection.
	snapshotsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ipal_monitor_snapshots_total",
		Help: "Total number of live snapshots applied",
	}, []string{"collection"})

	// subscriptionErrorsTotal counts failed live subscriptions per collection.
	subscriptionErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ipal_monitor_subscription_errors_total",
		Help: "Total number of live subscriptions that ended with an error",
	}, []string{"collection"})

	newAlertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ipal_monitor_new_alerts_total",
		Help: "Total number of alerts seen for the first time",
	})

	// activeAlerts mirrors the latest server-side counts.
	activeAlerts = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ipal_monitor_active_alerts",
		Help: "Active alerts by facility and bucket (active, critical, high)",
	}, []string{"ipal_id", "bucket"})

	cacheWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ipal_monitor_cache_write_failures_total",
		Help: "Total number of failed summary cache writes",
	})
)

// RecordSnapshot counts one applied snapshot.
func RecordSnapshot(collection string) {
	snapshotsTotal.WithLabelValues(collection).Inc()
}

// RecordSubscriptionError counts one failed subscription.
func RecordSubscriptionError(collection string) {
	subscriptionErrorsTotal.WithLabelValues(collection).Inc()
}

// RecordNewAlerts adds n newly seen alerts.
func RecordNewAlerts(n int) {
	if n > 0 {
		newAlertsTotal.Add(float64(n))
	}
}

// SetAlertCounts publishes one tick of counts for a facility.
func SetAlertCounts(ipalID int, active, critical, high int64) {
	id := strconv.Itoa(ipalID)
	activeAlerts.WithLabelValues(id, "active").Set(float64(active))
	activeAlerts.WithLabelValues(id, "critical").Set(float64(critical))
	activeAlerts.WithLabelValues(id, "high").Set(float64(high))
}

// RecordCacheWriteFailure counts one failed cache write.
func RecordCacheWriteFailure() {
	cacheWriteFailures.Inc()
}
