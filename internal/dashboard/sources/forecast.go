package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hallgrim/hyttevaer/internal/dashboard"
)

// ForecastConfig locates the meteorological forecast API and controls how
// the returned time series is thinned.
type ForecastConfig struct {
	BaseURL string
	Lat     float64
	Lon     float64

	// UserAgent identifies this service; the national forecast API
	// rejects anonymous clients.
	UserAgent string

	// StepHours keeps every Nth hourly entry (1 = keep all).
	StepHours int

	// MaxEntries truncates the filtered series.
	MaxEntries int
}

// ForecastSource fetches a locationforecast-style time series and trims
// it down to what the dashboard displays.
type ForecastSource struct {
	client *upstreamClient
	cfg    ForecastConfig
}

func NewForecastSource(client *http.Client, cfg ForecastConfig) *ForecastSource {
	if cfg.StepHours <= 0 {
		cfg.StepHours = 1
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 24
	}
	return &ForecastSource{
		client: newUpstreamClient(client, "forecast"),
		cfg:    cfg,
	}
}

func (s *ForecastSource) Name() dashboard.SourceName {
	return dashboard.SourceForecast
}

func (s *ForecastSource) Fetch(ctx context.Context) (dashboard.SourceReading, error) {
	if s.cfg.BaseURL == "" {
		return dashboard.SourceReading{}, fmt.Errorf("forecast base url is not configured")
	}
	if s.cfg.Lat == 0 && s.cfg.Lon == 0 {
		return dashboard.SourceReading{}, fmt.Errorf("forecast coordinates are not configured")
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("lat", fmt.Sprintf("%.4f", s.cfg.Lat))
		values.Set("lon", fmt.Sprintf("%.4f", s.cfg.Lon))

		req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s?%s", s.cfg.BaseURL, values.Encode()), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if s.cfg.UserAgent != "" {
			req.Header.Set("User-Agent", s.cfg.UserAgent)
		}
		return req, nil
	}

	resp, err := s.client.do(ctx, buildRequest)
	if err != nil {
		return dashboard.SourceReading{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Properties struct {
			Timeseries []struct {
				Time time.Time `json:"time"`
				Data struct {
					Instant struct {
						Details struct {
							AirTemperature float64 `json:"air_temperature"`
							WindSpeed      float64 `json:"wind_speed"`
						} `json:"details"`
					} `json:"instant"`
					Next1Hours *struct {
						Summary struct {
							SymbolCode string `json:"symbol_code"`
						} `json:"summary"`
						Details struct {
							PrecipitationAmount float64 `json:"precipitation_amount"`
						} `json:"details"`
					} `json:"next_1_hours"`
				} `json:"data"`
			} `json:"timeseries"`
		} `json:"properties"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return dashboard.SourceReading{}, err
	}
	if len(payload.Properties.Timeseries) == 0 {
		return dashboard.SourceReading{}, fmt.Errorf("forecast response contained no timeseries")
	}

	series := make(dashboard.ForecastSeries, 0, s.cfg.MaxEntries)
	for i, ts := range payload.Properties.Timeseries {
		if i%s.cfg.StepHours != 0 {
			continue
		}
		entry := dashboard.ForecastEntry{
			Time:         ts.Time.UTC(),
			TemperatureC: ts.Data.Instant.Details.AirTemperature,
			WindSpeedMS:  ts.Data.Instant.Details.WindSpeed,
			Symbol:       unknownCondition,
		}
		if next := ts.Data.Next1Hours; next != nil {
			entry.PrecipitationMm = next.Details.PrecipitationAmount
			if next.Summary.SymbolCode != "" {
				entry.Symbol = next.Summary.SymbolCode
			}
		}
		series = append(series, entry)
		if len(series) >= s.cfg.MaxEntries {
			break
		}
	}

	data, err := json.Marshal(series)
	if err != nil {
		return dashboard.SourceReading{}, err
	}

	return dashboard.SourceReading{
		Source:    dashboard.SourceForecast,
		FetchedAt: time.Now().UTC(),
		Payload:   data,
	}, nil
}
