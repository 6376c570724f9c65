// Prometheus instrumentation for the scrape pipeline. Labels are kept to the
// platform name plus a small closed result set so cardinality stays bounded
// regardless of how many activities exist upstream.
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// scrapeRuns counts completed pipeline runs per platform.
	scrapeRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_runs_total",
			Help: "Total number of completed scrape runs.",
		},
		[]string{"platform"},
	)

	// scrapePages counts listing page fetches by outcome:
	// ok | error | rejected.
	scrapePages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_list_pages_total",
			Help: "Total number of listing page fetches by outcome.",
		},
		[]string{"platform", "result"},
	)

	// scrapeDetails counts per-item detail outcomes:
	// stored | error | rejected | store_error.
	scrapeDetails = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_details_total",
			Help: "Total number of detail fetches by outcome.",
		},
		[]string{"platform", "result"},
	)

	// scrapeLastRun records the unix time of the last completed run so
	// dashboards can alert on staleness.
	scrapeLastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scrape_last_run_timestamp_seconds",
			Help: "Unix timestamp of the last completed scrape run.",
		},
		[]string{"platform"},
	)
)

func init() {
	prometheus.MustRegister(scrapeRuns, scrapePages, scrapeDetails, scrapeLastRun)
}
