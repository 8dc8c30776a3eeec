package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	stemflow = "stemflow"

	// Task producer metrics
	tasksEnqueuedTotal = "tasks_enqueued_total"

	// Webhook metrics
	webhookOutcomesTotal = "webhook_outcomes_total"

	// Socket metrics
	socketConnections = "socket_connections"
	socketEventsTotal = "socket_events_total"

	// Labels
	taskKindLabel     = "kind"
	taskResultLabel   = "result"
	endpointLabel     = "endpoint"
	outcomeLabel      = "outcome"
	eventLabel        = "event"
	deliveredLabel    = "delivered"
	jobStatusLabel    = "status"
	TaskResultOK      = "ok"
	TaskResultDedup   = "deduplicated"
	TaskResultFailure = "failure"
)

var tasksEnqueuedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: stemflow,
		Name:      tasksEnqueuedTotal,
		Help:      "number of tasks handed to the queue partitioned by kind and result",
	},
	[]string{taskKindLabel, taskResultLabel},
)

var webhookOutcomesTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: stemflow,
		Name:      webhookOutcomesTotal,
		Help:      "number of worker callbacks partitioned by endpoint and outcome",
	},
	[]string{endpointLabel, outcomeLabel},
)

var socketConnectionsMetric = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: stemflow,
		Name:      socketConnections,
		Help:      "number of live authenticated socket connections",
	},
)

var socketEventsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: stemflow,
		Name:      socketEventsTotal,
		Help:      "number of socket events emitted partitioned by event name and delivery",
	},
	[]string{eventLabel, deliveredLabel},
)

func IncreaseTasksEnqueuedMetric(kind, result string) {
	tasksEnqueuedTotalMetric.With(prometheus.Labels{
		taskKindLabel:   kind,
		taskResultLabel: result,
	}).Inc()
}

func IncreaseWebhookOutcomeMetric(endpoint, outcome string) {
	webhookOutcomesTotalMetric.With(prometheus.Labels{
		endpointLabel: endpoint,
		outcomeLabel:  outcome,
	}).Inc()
}

func UpdateSocketConnectionsMetric(count int) {
	socketConnectionsMetric.Set(float64(count))
}

func IncreaseSocketEventMetric(event string, delivered bool) {
	d := "false"
	if delivered {
		d = "true"
	}
	socketEventsTotalMetric.With(prometheus.Labels{
		eventLabel:     event,
		deliveredLabel: d,
	}).Inc()
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(tasksEnqueuedTotalMetric)
	prometheus.MustRegister(webhookOutcomesTotalMetric)
	prometheus.MustRegister(socketConnectionsMetric)
	prometheus.MustRegister(socketEventsTotalMetric)
}
