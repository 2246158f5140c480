package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ledgerOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_operations_total",
		Help: "Ledger operations by kind and outcome.",
	}, []string{"operation", "outcome"})

	ledgerAmountMoved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_amount_vhs_total",
		Help: "Total VHS moved through committed ledger operations, by transaction type.",
	}, []string{"type"})

	notificationsQueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_queued_total",
		Help: "Settlement notifications queued for out-of-band delivery.",
	})

	notificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notification_failures_total",
		Help: "Settlement notifications that could not be queued.",
	})
)

func RecordOperation(operation, outcome string) {
	ledgerOperations.WithLabelValues(operation, outcome).Inc()
}

func RecordAmount(txType string, amount int64) {
	ledgerAmountMoved.WithLabelValues(txType).Add(float64(amount))
}

func RecordNotification(err error) {
	if err != nil {
		notificationFailures.Inc()
		return
	}
	notificationsQueued.Inc()
}
