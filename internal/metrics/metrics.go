package metrics

import (
	"fmt"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline counters scraped by the collection agent.
// Metric names match what the notification dashboards already query.
type Metrics struct {
	NotificationJobs     *prometheus.CounterVec
	NotificationDuration prometheus.Histogram
	ConversionJobs       *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		NotificationJobs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notification_jobs_total",
			Help: "Notification jobs processed",
		}, []string{"result"}),
		NotificationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "notification_job_duration_seconds",
			Help: "Notification job processing time",
		}),
		ConversionJobs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "conversion_jobs_total",
			Help: "Conversion jobs processed",
		}, []string{"result"}),
	}
}

// Serve exposes /metrics on its own port so the scraper never contends
// with the API listener.
func Serve(port int, gatherer prometheus.Gatherer) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	go func() {
		addr := fmt.Sprintf(":%d", port)
		log.Printf("[metrics] serving on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("[metrics] server stopped: %v", err)
		}
	}()
}
