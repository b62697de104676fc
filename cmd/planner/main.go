package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"flightops-planner/internal/config"
	"flightops-planner/internal/export"
	"flightops-planner/internal/linker"
	"flightops-planner/internal/metrics"
	"flightops-planner/internal/pipeline"
	"flightops-planner/internal/publisher"
	"flightops-planner/internal/siros"
	"flightops-planner/internal/store"
)

// airportList accepts repeated -airport flags and comma-separated values.
type airportList []string

func (a *airportList) String() string { return strings.Join(*a, ",") }

func (a *airportList) Set(v string) error {
	for _, token := range strings.Split(strings.ReplaceAll(v, " ", ""), ",") {
		if token != "" {
			*a = append(*a, strings.ToUpper(token))
		}
	}
	return nil
}

func main() {
	var airports airportList
	flag.Var(&airports, "airport", "target airport code; repeat or comma-separate for several, ALL for every airport in the feed")
	season := flag.String("season", "", "season code (e.g. S25); defaults to DEFAULT_SEASON")
	input := flag.String("input", "", "read the schedule from a local file instead of fetching it")
	windowStart := flag.String("window-start", "", "only keep legs inside [start, end); RFC3339 or YYYY-MM-DD")
	windowEnd := flag.String("window-end", "", "window end (exclusive); RFC3339 or YYYY-MM-DD")
	dryRun := flag.Bool("dry-run", false, "run the full pipeline but skip persistence and publishing")
	replace := flag.Bool("replace", false, "delete stored rows for the season (and airports) before upserting")
	exportDir := flag.String("export-dir", "", "also write the result datasets as CSV files into this directory")
	loadAirports := flag.String("load-airports", "", "load the airport reference CSV into the store and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var mcol *metrics.Collector
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.MinTurnaround, cfg.SoloOpen, cfg.Granularity)
		srv := mcol.Serve(cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = store.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := store.Ping(ctx, db); err != nil {
			log.Fatalf("db ping error: %v", err)
		}
	}

	if *loadAirports != "" {
		if db == nil {
			log.Fatalf("load-airports requires a configured database")
		}
		if err := store.EnsureSchema(ctx, db); err != nil {
			log.Fatalf("schema error: %v", err)
		}
		n, err := store.LoadAirportsCSV(ctx, db, *loadAirports)
		if err != nil {
			log.Fatalf("load airports error: %v", err)
		}
		log.Printf("airport reference load complete (%d rows)", n)
		return
	}

	var countries map[string]string
	if db != nil {
		countries, err = store.AirportCountries(ctx, db)
		if err != nil {
			// Classification degrades to its heuristic without the table.
			log.Printf("airport reference unavailable: %v", err)
			countries = nil
		}
	}

	scheduleText := ""
	if *input != "" {
		raw, err := os.ReadFile(*input)
		if err != nil {
			log.Fatalf("read input file: %v", err)
		}
		scheduleText = string(raw)
	}

	params := pipeline.Params{
		Season:       firstNonEmpty(*season, cfg.DefaultSeason),
		Airports:     airportParams(airports),
		ScheduleText: scheduleText,
		Countries:    countries,
		Fetcher:      siros.NewClient(cfg.SirosBaseURL, cfg.HTTPTimeout),
		Workers:      cfg.Workers,
		Linker: linker.Options{
			MinTurnaround: cfg.MinTurnaround,
			SoloOpen:      cfg.SoloOpen,
			Granularity:   cfg.Granularity,
		},
	}
	if params.WindowStart, err = parseWindow(*windowStart); err != nil {
		log.Fatalf("invalid -window-start: %v", err)
	}
	if params.WindowEnd, err = parseWindow(*windowEnd); err != nil {
		log.Fatalf("invalid -window-end: %v", err)
	}

	if mcol != nil {
		mcol.RunsStarted.Inc()
	}
	start := time.Now()
	res, err := pipeline.Run(ctx, params)
	if err != nil {
		if mcol != nil {
			mcol.RunsFailed.Inc()
		}
		switch {
		case errors.Is(err, pipeline.ErrEmptyResult):
			log.Fatalf("nothing to process: %v", err)
		default:
			log.Fatalf("pipeline error: %v", err)
		}
	}
	elapsed := time.Since(start)
	recordRunMetrics(mcol, res, elapsed)

	log.Printf("run complete: season=%s airports=%d legs=%d events=%d flights=%d service_slots=%d ground_slots=%d in %s",
		res.Season, len(res.Airports), len(res.Legs), len(res.Events), len(res.Flights), len(res.Service), len(res.Ground), elapsed.Round(time.Millisecond))

	if *exportDir != "" {
		if err := export.WriteResult(*exportDir, res); err != nil {
			log.Fatalf("export error: %v", err)
		}
		log.Printf("exported CSV datasets to %s", *exportDir)
	}

	if *dryRun {
		log.Printf("dry-run: skipping persistence and publishing")
		return
	}

	if db == nil {
		log.Printf("no database configured: skipping persistence")
	} else {
		if err := store.EnsureSchema(ctx, db); err != nil {
			log.Fatalf("schema error: %v", err)
		}
		if *replace {
			if err := store.ReplaceSeason(ctx, db, res.Season, airportParams(airports)); err != nil {
				log.Fatalf("replace error: %v", err)
			}
		}
		if err := store.SaveResult(ctx, db, res, wrapStoreMetrics(mcol)); err != nil {
			if mcol != nil {
				mcol.UpsertErrs.Inc()
			}
			log.Fatalf("save error: %v", err)
		}
		log.Printf("persisted results to the reporting store")
	}

	if cfg.NATSURL != "" {
		pub, err := publisher.NewNATSPublisher(cfg.NATSURL, wrapPublisherMetrics(mcol))
		if err != nil {
			log.Fatalf("nats error: %v", err)
		}
		defer pub.Close()
		summary := publisher.RunSummary{
			Season:       res.Season,
			Airports:     res.Airports,
			Legs:         len(res.Legs),
			Events:       len(res.Events),
			Flights:      len(res.Flights),
			ServiceSlots: len(res.Service),
			GroundSlots:  len(res.Ground),
			DurationSec:  elapsed.Seconds(),
			FinishedAt:   time.Now().UTC(),
		}
		if err := pub.PublishRunSummary(summary); err != nil {
			log.Printf("publish run summary: %v", err)
		}
	}
}

// airportParams drops the ALL token: an empty set means every airport.
func airportParams(airports airportList) []string {
	out := make([]string, 0, len(airports))
	for _, a := range airports {
		if a == "ALL" {
			return nil
		}
		out = append(out, a)
	}
	return out
}

func parseWindow(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q (want RFC3339 or YYYY-MM-DD)", s)
}

func recordRunMetrics(c *metrics.Collector, res *pipeline.Result, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.RunsCompleted.Inc()
	c.RunDuration.Observe(elapsed.Seconds())
	c.LegsParsed.Add(float64(len(res.Legs)))
	c.ServiceSlots.Add(float64(len(res.Service)))
	c.GroundSlots.Add(float64(len(res.Ground)))
	for _, f := range res.Flights {
		c.FlightsLinked.WithLabelValues(f.LinkStatus).Inc()
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// wrapPublisherMetrics adapts our Collector to the PublisherMetrics interface.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSPublishedInc()              { p.c.NATSPublished.Inc() }
func (p *pubMetrics) NATSPublishErrInc()             { p.c.NATSPublishErrs.Inc() }
func (p *pubMetrics) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p *pubMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}

// wrapStoreMetrics adapts the Collector to the store's SaveMetrics hook.
func wrapStoreMetrics(c *metrics.Collector) store.SaveMetrics {
	if c == nil {
		return nil
	}
	return &saveMetrics{c: c}
}

type saveMetrics struct{ c *metrics.Collector }

func (s *saveMetrics) RowsUpserted(table string, n int) {
	s.c.RowsUpserted.WithLabelValues(table).Add(float64(n))
}
