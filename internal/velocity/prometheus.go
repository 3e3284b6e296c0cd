package velocity

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/moai-adk/orchestrator/internal/types"
)

const metricNamespace = "orch"

// Collector exposes a Report and status counts as Prometheus gauges.
type Collector struct {
	report Report
	counts map[types.Status]int

	specsDesc       *prometheus.Desc
	avgDesc         *prometheus.Desc
	weeklyDesc      *prometheus.Desc
	projectionDesc  *prometheus.Desc
	bottleneckDesc  *prometheus.Desc
	blockedDesc     *prometheus.Desc
	generatedAtDesc *prometheus.Desc
}

// NewCollector snapshots report and counts for collection.
func NewCollector(report Report, counts map[types.Status]int) *Collector {
	return &Collector{
		report: report,
		counts: counts,
		specsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", "specs"),
			"Tracked specs by status",
			[]string{"status"}, nil,
		),
		avgDesc: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "completion", "days_avg"),
			"Average days from first in_progress to completed",
			nil, nil,
		),
		weeklyDesc: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", "weekly_completed"),
			"Transitions to completed per trailing week",
			[]string{"week"}, nil,
		),
		projectionDesc: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", "projection_days"),
			"Estimated days until all remaining specs complete",
			nil, nil,
		),
		bottleneckDesc: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", "bottlenecks"),
			"In-progress specs above the stale threshold",
			nil, nil,
		),
		blockedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", "blocked"),
			"Pending specs waiting on incomplete dependencies (capped)",
			nil, nil,
		),
		generatedAtDesc: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "report", "generated_timestamp_seconds"),
			"Reference time of the report",
			nil, nil,
		),
	}
}

// Describe sends metric descriptors.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.specsDesc
	ch <- c.avgDesc
	ch <- c.weeklyDesc
	ch <- c.projectionDesc
	ch <- c.bottleneckDesc
	ch <- c.blockedDesc
	ch <- c.generatedAtDesc
}

// Collect emits the current snapshot.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range types.AllStatuses {
		ch <- prometheus.MustNewConstMetric(c.specsDesc, prometheus.GaugeValue, float64(c.counts[s]), string(s))
	}
	if c.report.HasData {
		ch <- prometheus.MustNewConstMetric(c.avgDesc, prometheus.GaugeValue, c.report.AverageDays)
	}
	for _, w := range c.report.Weeks {
		ch <- prometheus.MustNewConstMetric(c.weeklyDesc, prometheus.GaugeValue, float64(w.Completed), w.Label)
	}
	if c.report.Projection.Available {
		ch <- prometheus.MustNewConstMetric(c.projectionDesc, prometheus.GaugeValue, c.report.Projection.EstimatedDays)
	}
	ch <- prometheus.MustNewConstMetric(c.bottleneckDesc, prometheus.GaugeValue, float64(len(c.report.Bottlenecks)))
	ch <- prometheus.MustNewConstMetric(c.blockedDesc, prometheus.GaugeValue, float64(len(c.report.Blocked)))
	ch <- prometheus.MustNewConstMetric(c.generatedAtDesc, prometheus.GaugeValue, float64(c.report.GeneratedAt.Unix()))
}

// WriteTextfile writes the report in node-exporter textfile format.
// The file is written to a temp name and renamed into place.
func WriteTextfile(path string, report Report, counts map[types.Status]int) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(report, counts)); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, reg)
}
