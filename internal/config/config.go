package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL   string // empty when no reporting store is configured
	NATSURL       string // empty disables the run-summary publisher
	MetricsAddr   string // empty disables the metrics server
	SirosBaseURL  string
	HTTPTimeout   time.Duration
	DefaultSeason string
	MinTurnaround time.Duration
	SoloOpen      time.Duration
	Granularity   time.Duration
	Workers       int
}

// allowed slot widths; anything else is a configuration error.
var validGranularities = map[int]bool{5: true, 10: true, 15: true}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	// Database URL: prefer DATABASE_URL / PG_DSN, else build from PG* vars.
	// Persistence is optional; leave empty when nothing is configured.
	dsn := firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("PG_DSN"),
	)
	if dsn == "" && os.Getenv("PGDATABASE") != "" {
		host := getenvDefault("PGHOST", "127.0.0.1")
		port := getenvDefault("PGPORT", "5432")
		user := getenvDefault("PGUSER", "postgres")
		pass := os.Getenv("PGPASSWORD")
		db := os.Getenv("PGDATABASE")
		sslmode := getenvDefault("PGSSLMODE", "disable")
		if pass != "" {
			dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
		} else {
			dsn = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
		}
	}
	cfg.DatabaseURL = dsn

	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")
	cfg.SirosBaseURL = getenvDefault("SIROS_BASE_URL", "https://sas.anac.gov.br/sas/siros_api")
	cfg.DefaultSeason = strings.ToUpper(strings.TrimSpace(os.Getenv("DEFAULT_SEASON")))

	// HTTP timeout for the SIROS download
	if v := os.Getenv("HTTP_TIMEOUT_SECONDS"); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec <= 0 {
			return nil, fmt.Errorf("invalid HTTP_TIMEOUT_SECONDS: %q", v)
		}
		cfg.HTTPTimeout = time.Duration(sec) * time.Second
	} else {
		cfg.HTTPTimeout = 30 * time.Second
	}

	// Minimum ground time accepted when matching an arrival to a departure
	if v := os.Getenv("MIN_TURNAROUND_MINUTES"); v != "" {
		min, err := strconv.Atoi(v)
		if err != nil || min < 0 {
			return nil, fmt.Errorf("invalid MIN_TURNAROUND_MINUTES: %q", v)
		}
		cfg.MinTurnaround = time.Duration(min) * time.Minute
	} else {
		cfg.MinTurnaround = 30 * time.Minute
	}

	// Occupancy horizon assumed for arrivals without a linked departure
	if v := os.Getenv("SOLO_OPEN_MINUTES"); v != "" {
		min, err := strconv.Atoi(v)
		if err != nil || min < 0 {
			return nil, fmt.Errorf("invalid SOLO_OPEN_MINUTES: %q", v)
		}
		cfg.SoloOpen = time.Duration(min) * time.Minute
	} else {
		cfg.SoloOpen = 180 * time.Minute
	}

	// Slot width used for rounding and slot expansion
	if v := os.Getenv("SLOT_GRANULARITY_MINUTES"); v != "" {
		min, err := strconv.Atoi(v)
		if err != nil || !validGranularities[min] {
			return nil, fmt.Errorf("invalid SLOT_GRANULARITY_MINUTES: %q (must be 5, 10 or 15)", v)
		}
		cfg.Granularity = time.Duration(min) * time.Minute
	} else {
		cfg.Granularity = 10 * time.Minute
	}

	// Airports linked concurrently
	if v := os.Getenv("WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid WORKERS: %q", v)
		}
		cfg.Workers = n
	} else {
		cfg.Workers = 1
	}

	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
