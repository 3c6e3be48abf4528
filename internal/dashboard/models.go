package dashboard

import (
	"encoding/json"
	"time"
)

// SourceName identifies one of the configured upstream data sources.
type SourceName string

const (
	SourceSensor   SourceName = "sensor"
	SourceResort   SourceName = "resort"
	SourceForecast SourceName = "forecast"
)

// SensorReading is the normalized reading from the home sensor hub.
// Fields the hub did not report are nil rather than omitted, so consumers
// can rely on a fixed shape.
type SensorReading struct {
	TemperatureC    *float64 `json:"temperatureC"`
	HumidityPercent *float64 `json:"humidityPercent"`
}

// ResortStation holds conditions measured at one station of the resort.
type ResortStation struct {
	TemperatureC *float64 `json:"temperatureC"`
	WindSpeedMS  *float64 `json:"windSpeedMS"`
	Condition    string   `json:"condition"`
}

// LiftStatus summarizes the resort's lift availability.
type LiftStatus struct {
	Open   int    `json:"open"`
	Total  int    `json:"total"`
	Status string `json:"status"`
}

// ResortConditions is the normalized resort feed payload.
type ResortConditions struct {
	Top    ResortStation `json:"top"`
	Bottom ResortStation `json:"bottom"`
	Lifts  LiftStatus    `json:"lifts"`
}

// ForecastEntry is one point of the filtered forecast time series.
type ForecastEntry struct {
	Time            time.Time `json:"time"` // always UTC
	TemperatureC    float64   `json:"temperatureC"`
	PrecipitationMm float64   `json:"precipitationMm"`
	WindSpeedMS     float64   `json:"windSpeedMS"`
	Symbol          string    `json:"symbol"`
}

// ForecastSeries is a truncated forecast, ordered by Time ascending.
type ForecastSeries []ForecastEntry

// SourceReading is what an adapter hands back to the coordinator: the
// cache-ready payload plus whichever temperatures the source carries for
// the history series.
type SourceReading struct {
	Source    SourceName
	FetchedAt time.Time

	// Payload is the normalized, JSON-encoded snapshot written to the cache.
	Payload json.RawMessage

	SensorTemperatureC       *float64
	ResortTopTemperatureC    *float64
	ResortBottomTemperatureC *float64
}

// SourceResult records the outcome of a single adapter invocation within
// one refresh. Exactly one is produced per configured source.
type SourceResult struct {
	Source     SourceName      `json:"source"`
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data,omitempty"`
	Error      string          `json:"error,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	DurationMs int64           `json:"durationMs"`
}

// RefreshSummary is returned from every refresh, regardless of how many
// sources failed. It is transient and never persisted.
type RefreshSummary struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	DurationMs int64          `json:"durationMs"`
	Results    []SourceResult `json:"results"`
}

// Successes counts the sources that produced data in this refresh.
func (s RefreshSummary) Successes() int {
	n := 0
	for _, r := range s.Results {
		if r.Success {
			n++
		}
	}
	return n
}

// HistoryPoint is one bounded time-series sample of temperatures.
// Partial points are valid; a point with only the sensor temperature
// populated is acceptable.
type HistoryPoint struct {
	Timestamp                time.Time `json:"timestamp"`
	SensorTemperatureC       *float64  `json:"sensorTemperatureC"`
	ResortTopTemperatureC    *float64  `json:"resortTopTemperatureC"`
	ResortBottomTemperatureC *float64  `json:"resortBottomTemperatureC"`
}

// AggregateSnapshot is the combined view served by the read endpoint.
// Sources always contains one key per configured source; sources without
// data marshal as null.
type AggregateSnapshot struct {
	Cached    bool                           `json:"cached"`
	Timestamp time.Time                      `json:"timestamp"`
	Sources   map[SourceName]json.RawMessage `json:"sources"`
	Errors    []string                       `json:"errors,omitempty"`
}
