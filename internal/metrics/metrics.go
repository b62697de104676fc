package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	RunsStarted   prometheus.Counter
	RunsCompleted prometheus.Counter
	RunsFailed    prometheus.Counter

	LegsParsed    prometheus.Counter
	FlightsLinked *prometheus.CounterVec // status label: linked|no_departure
	ServiceSlots  prometheus.Counter
	GroundSlots   prometheus.Counter

	RowsUpserted *prometheus.CounterVec // table label
	UpsertErrs   prometheus.Counter

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge

	RunDuration     prometheus.Histogram
	PublishDuration prometheus.Histogram

	MinTurnaroundMinutes prometheus.Gauge
	SoloOpenMinutes      prometheus.Gauge
	SlotMinutes          prometheus.Gauge
}

func NewCollector(minTurnaround, soloOpen, granularity time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		RunsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_runs_started_total",
			Help: "Total pipeline runs started.",
		}),
		RunsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_runs_completed_total",
			Help: "Total pipeline runs completed successfully.",
		}),
		RunsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_runs_failed_total",
			Help: "Total pipeline runs that ended with an error.",
		}),
		LegsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_legs_parsed_total",
			Help: "Total schedule legs parsed across runs.",
		}),
		FlightsLinked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_flights_total",
			Help: "Total flights produced, by link status.",
		}, []string{"status"}),
		ServiceSlots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_service_slots_total",
			Help: "Total service slots generated.",
		}),
		GroundSlots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_ground_slots_total",
			Help: "Total ground occupancy slots generated.",
		}),
		RowsUpserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planner_rows_upserted_total",
			Help: "Rows upserted into the reporting store, by table.",
		}, []string{"table"}),
		UpsertErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_upsert_errors_total",
			Help: "Total persistence errors.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "planner_run_duration_seconds",
			Help:    "Duration of full pipeline runs.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "planner_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		MinTurnaroundMinutes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_min_turnaround_minutes",
			Help: "Configured minimum turnaround in minutes.",
		}),
		SoloOpenMinutes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_solo_open_minutes",
			Help: "Configured open occupancy horizon for unlinked arrivals.",
		}),
		SlotMinutes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "planner_slot_minutes",
			Help: "Configured slot granularity in minutes.",
		}),
	}

	reg.MustRegister(
		c.RunsStarted, c.RunsCompleted, c.RunsFailed,
		c.LegsParsed, c.FlightsLinked, c.ServiceSlots, c.GroundSlots,
		c.RowsUpserted, c.UpsertErrs,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
		c.RunDuration, c.PublishDuration,
		c.MinTurnaroundMinutes, c.SoloOpenMinutes, c.SlotMinutes,
	)

	c.MinTurnaroundMinutes.Set(minTurnaround.Minutes())
	c.SoloOpenMinutes.Set(soloOpen.Minutes())
	c.SlotMinutes.Set(granularity.Minutes())

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
