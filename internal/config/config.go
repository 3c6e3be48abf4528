package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelvins/geocoder"
)

// SensorConfig locates the home sensor hub's cloud API.
type SensorConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	BaseURL      string
	DeviceID     string
}

// ResortConfig locates the ski resort's conditions feed.
type ResortConfig struct {
	ConditionsURL string
	APIKey        string
}

// ForecastConfig locates the meteorological forecast API.
type ForecastConfig struct {
	BaseURL    string
	Lat        float64
	Lon        float64
	UserAgent  string
	StepHours  int
	MaxEntries int
}

type AppConfig struct {
	Port      string
	LogLevel  string
	LogPretty bool

	// HTTPTimeout is the hard cap on each outbound request attempt.
	HTTPTimeout time.Duration

	// SnapshotTTL is the cache lifetime of each source snapshot.
	SnapshotTTL time.Duration

	// FetchTimeout bounds one full source fetch, retries included.
	FetchTimeout time.Duration

	HistoryMaxPoints int

	// RefreshSecret authorizes POST /refresh. The endpoint is unavailable
	// until it is set.
	RefreshSecret string

	// Redis connection; empty address selects the in-memory store.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Built-in interval refresh, for deployments without an external cron.
	ScheduleEnabled  bool
	ScheduleInterval time.Duration

	Sensor   SensorConfig
	Resort   ResortConfig
	Forecast ForecastConfig
}

// Load reads configuration from environment with sensible defaults.
// Malformed values fail here; missing upstream credentials do not, they
// surface as source failures at fetch time.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{
		Port:      getenvDefault("PORT", "8080"),
		LogLevel:  getenvDefault("LOG_LEVEL", "info"),
		LogPretty: getenvBool("LOG_PRETTY", false),

		HistoryMaxPoints: getenvInt("HISTORY_MAX_POINTS", 48), // roughly 12h at 15-minute refreshes

		RefreshSecret: os.Getenv("REFRESH_SECRET"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getenvInt("REDIS_DB", 0),

		ScheduleEnabled: getenvBool("SCHEDULE_ENABLED", false),

		Sensor: SensorConfig{
			TokenURL:     os.Getenv("SENSOR_TOKEN_URL"),
			ClientID:     os.Getenv("SENSOR_CLIENT_ID"),
			ClientSecret: os.Getenv("SENSOR_CLIENT_SECRET"),
			BaseURL:      os.Getenv("SENSOR_BASE_URL"),
			DeviceID:     os.Getenv("SENSOR_DEVICE_ID"),
		},
		Resort: ResortConfig{
			ConditionsURL: os.Getenv("RESORT_CONDITIONS_URL"),
			APIKey:        os.Getenv("RESORT_API_KEY"),
		},
		Forecast: ForecastConfig{
			BaseURL:    getenvDefault("FORECAST_BASE_URL", "https://api.met.no/weatherapi/locationforecast/2.0/compact"),
			UserAgent:  getenvDefault("FORECAST_USER_AGENT", "hyttevaer/1.0 github.com/hallgrim/hyttevaer"),
			StepHours:  getenvInt("FORECAST_STEP_HOURS", 1),
			MaxEntries: getenvInt("FORECAST_MAX_ENTRIES", 24),
		},
	}

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "20s"); err != nil {
		return nil, err
	}
	if cfg.SnapshotTTL, err = getenvDuration("SNAPSHOT_TTL", "10m"); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = getenvDuration("FETCH_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.ScheduleInterval, err = getenvDuration("SCHEDULE_INTERVAL", "5m"); err != nil {
		return nil, err
	}

	if err := loadForecastCoordinates(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadForecastCoordinates resolves the forecast location, either from
// explicit FORECAST_LAT/FORECAST_LON or by geocoding a configured place.
func loadForecastCoordinates(cfg *AppConfig) error {
	latStr := os.Getenv("FORECAST_LAT")
	lonStr := os.Getenv("FORECAST_LON")
	if latStr != "" || lonStr != "" {
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			return fmt.Errorf("invalid FORECAST_LAT: %w", err)
		}
		lon, err := strconv.ParseFloat(lonStr, 64)
		if err != nil {
			return fmt.Errorf("invalid FORECAST_LON: %w", err)
		}
		cfg.Forecast.Lat = lat
		cfg.Forecast.Lon = lon
		return nil
	}

	city := os.Getenv("FORECAST_PLACE_CITY")
	apiKey := os.Getenv("GEOCODER_API_KEY")
	if city == "" {
		return nil // forecast source reports the missing location itself
	}
	if apiKey == "" {
		return fmt.Errorf("FORECAST_PLACE_CITY is set but GEOCODER_API_KEY is missing")
	}

	geocoder.ApiKey = apiKey
	location, err := geocoder.Geocoding(geocoder.Address{
		City:    city,
		Country: os.Getenv("FORECAST_PLACE_COUNTRY"),
	})
	if err != nil {
		return fmt.Errorf("geocoding %q failed: %w", city, err)
	}

	cfg.Forecast.Lat = location.Latitude
	cfg.Forecast.Lon = location.Longitude
	return nil
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

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
