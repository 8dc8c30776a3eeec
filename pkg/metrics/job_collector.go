package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stemflow/stemflow/internal/store"
	"github.com/stemflow/stemflow/internal/store/model"
	"go.uber.org/zap"
)

var collectedStatuses = []model.JobStatus{
	model.JobStatusCreated,
	model.JobStatusHashPending,
	model.JobStatusApproved,
	model.JobStatusAnalysisPending,
	model.JobStatusFailed,
}

type jobStatusCollector struct {
	store    store.Store
	statuses []model.JobStatus
	jobs     *prometheus.Desc
}

// NewJobStatusCollector exposes the number of live job rows per status, read from the store on scrape.
// Without statuses every non terminal status is reported.
func NewJobStatusCollector(s store.Store, statuses ...model.JobStatus) prometheus.Collector {
	if len(statuses) == 0 {
		statuses = collectedStatuses
	}
	return &jobStatusCollector{
		store:    s,
		statuses: statuses,
		jobs: prometheus.NewDesc(
			fmt.Sprintf("%s_jobs", stemflow),
			"Number of stem jobs in the store by status.",
			[]string{jobStatusLabel},
			prometheus.Labels{},
		),
	}
}

func (c *jobStatusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.jobs
}

func (c *jobStatusCollector) Collect(ch chan<- prometheus.Metric) {
	counts, err := c.store.Job().CountByStatus(context.Background())
	if err != nil {
		zap.S().Named("job_collector").Errorw("failed to collect job statistics", "error", err)
		return
	}
	for _, status := range c.statuses {
		ch <- prometheus.MustNewConstMetric(c.jobs, prometheus.GaugeValue, float64(counts[status]), string(status))
	}
}
