package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/i474232898/temper/internal/forecast"
	"github.com/i474232898/temper/internal/history"
)

type AppConfig struct {
	// GeocoderAPIKey enables resolving tracked city names that have no
	// explicit coordinates.
	GeocoderAPIKey string

	// RefreshInterval controls how often the scheduler re-runs forecasts
	// for each tracked location.
	RefreshInterval time.Duration

	// Locations to track.
	Locations []history.Location

	// HistoricalDays is how much daily history is fetched for training.
	HistoricalDays int

	// Horizon is the scheduler's forecast horizon in days.
	Horizon int

	// Kinds selects which variants the scheduled runs train.
	Kinds []forecast.ModelKind

	// Model knobs passed through to the variants.
	Models forecast.Options

	// PerModelTimeout bounds each variant's training time.
	PerModelTimeout time.Duration

	// PoolSize bounds concurrent variant training per run.
	PoolSize int

	// In-memory store retention.
	StoreMaxHistory int           // max runs per location (0 = unlimited)
	StoreMaxAge     time.Duration // max age of runs (0 = unlimited)

	HTTPTimeout time.Duration
	Port        string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Infof("no .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	interval, err := getenvDuration("REFRESH_INTERVAL", "6h")
	if err != nil {
		return nil, err
	}
	cfg.RefreshInterval = interval

	cfg.HistoricalDays = getenvInt("HISTORICAL_DAYS", 90)
	cfg.Horizon = getenvInt("FORECAST_HORIZON", 7)
	if cfg.Horizon < 1 {
		return nil, fmt.Errorf("FORECAST_HORIZON must be positive")
	}

	kinds, err := parseKinds(getenvDefault("FORECAST_MODELS", "statistical,additive,sequential,gradient_boosted"))
	if err != nil {
		return nil, err
	}
	cfg.Kinds = kinds

	opts := forecast.DefaultOptions()
	opts.MinTraining = getenvInt("MIN_TRAINING_DAYS", opts.MinTraining)
	opts.Lookback = getenvInt("SEQUENTIAL_LOOKBACK", opts.Lookback)
	opts.Epochs = getenvInt("SEQUENTIAL_EPOCHS", opts.Epochs)
	opts.Trees = getenvInt("BOOSTED_TREES", opts.Trees)
	cfg.Models = opts

	cfg.PerModelTimeout, err = getenvDuration("PER_MODEL_TIMEOUT", "2m")
	if err != nil {
		return nil, err
	}
	cfg.PoolSize = getenvInt("TRAINING_POOL_SIZE", 1)

	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 28) // a week of runs at 6-hour refreshes
	cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "168h")
	if err != nil {
		return nil, err
	}

	cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	cfg.Port = getenvDefault("PORT", "8080")

	locs, err := loadLocations()
	if err != nil {
		return nil, err
	}
	cfg.Locations = locs

	return cfg, nil
}

func loadLocations() ([]history.Location, error) {
	city := os.Getenv("FORECAST_LOCATION_CITY")
	country := os.Getenv("FORECAST_LOCATION_COUNTRY")
	if city == "" {
		return nil, nil
	}
	cities := strings.Split(city, ",")
	countries := strings.Split(country, ",")
	if len(cities) != len(countries) {
		return nil, fmt.Errorf("number of cities and countries must be the same")
	}

	lats := splitFloats(os.Getenv("FORECAST_LOCATION_LAT"))
	lons := splitFloats(os.Getenv("FORECAST_LOCATION_LON"))

	var locs []history.Location
	for i := range cities {
		loc := history.Location{
			City:    strings.TrimSpace(cities[i]),
			Country: strings.TrimSpace(countries[i]),
		}
		if i < len(lats) && i < len(lons) {
			lat, lon := lats[i], lons[i]
			loc.Lat = &lat
			loc.Lon = &lon
		}
		locs = append(locs, loc)
	}
	return locs, nil
}

func parseKinds(s string) ([]forecast.ModelKind, error) {
	known := make(map[forecast.ModelKind]bool)
	for _, k := range forecast.AllKinds() {
		known[k] = true
	}
	var kinds []forecast.ModelKind
	for _, part := range strings.Split(s, ",") {
		kind := forecast.ModelKind(strings.TrimSpace(part))
		if kind == "" {
			continue
		}
		if !known[kind] {
			return nil, fmt.Errorf("unknown model kind %q in FORECAST_MODELS", kind)
		}
		kinds = append(kinds, kind)
	}
	if len(kinds) == 0 {
		return nil, fmt.Errorf("FORECAST_MODELS selected no models")
	}
	return kinds, nil
}

func splitFloats(s string) []float64 {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil
		}
		out = append(out, v)
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	v := getenvDefault(key, def)
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
