package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hallgrim/hyttevaer/internal/dashboard"
)

func forecastServer(t *testing.T, hours int) *httptest.Server {
	t.Helper()
	base := time.Date(2026, 1, 15, 6, 0, 0, 0, time.UTC)

	entries := make([]string, 0, hours)
	for i := 0; i < hours; i++ {
		entries = append(entries, fmt.Sprintf(`{
			"time": %q,
			"data": {
				"instant": {"details": {"air_temperature": %d.0, "wind_speed": 3.2}},
				"next_1_hours": {
					"summary": {"symbol_code": "lightsnow"},
					"details": {"precipitation_amount": 0.4}
				}
			}
		}`, base.Add(time.Duration(i)*time.Hour).Format(time.RFC3339), -i))
	}

	body := fmt.Sprintf(`{"properties":{"timeseries":[%s]}}`, strings.Join(entries, ","))
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("lat") == "" || r.URL.Query().Get("lon") == "" {
			t.Error("expected lat/lon query parameters")
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a User-Agent header")
		}
		w.Write([]byte(body))
	}))
}

func TestForecastFetchTruncatesSeries(t *testing.T) {
	srv := forecastServer(t, 10)
	defer srv.Close()

	src := NewForecastSource(http.DefaultClient, ForecastConfig{
		BaseURL:    srv.URL,
		Lat:        61.1,
		Lon:        9.5,
		UserAgent:  "test-agent",
		MaxEntries: 4,
	})

	reading, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reading.Source != dashboard.SourceForecast {
		t.Fatalf("unexpected source %q", reading.Source)
	}

	var series dashboard.ForecastSeries
	if err := json.Unmarshal(reading.Payload, &series); err != nil {
		t.Fatalf("payload is not a ForecastSeries: %v", err)
	}
	if len(series) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(series))
	}
	if series[0].TemperatureC != 0 || series[3].TemperatureC != -3 {
		t.Fatalf("unexpected temperatures: %v / %v", series[0].TemperatureC, series[3].TemperatureC)
	}
	if series[0].Symbol != "lightsnow" {
		t.Fatalf("unexpected symbol %q", series[0].Symbol)
	}
	if series[0].PrecipitationMm != 0.4 {
		t.Fatalf("unexpected precipitation %v", series[0].PrecipitationMm)
	}
}

func TestForecastFetchStepsThroughSeries(t *testing.T) {
	srv := forecastServer(t, 12)
	defer srv.Close()

	src := NewForecastSource(http.DefaultClient, ForecastConfig{
		BaseURL:    srv.URL,
		Lat:        61.1,
		Lon:        9.5,
		UserAgent:  "test-agent",
		StepHours:  3,
		MaxEntries: 10,
	})

	reading, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var series dashboard.ForecastSeries
	if err := json.Unmarshal(reading.Payload, &series); err != nil {
		t.Fatalf("payload is not a ForecastSeries: %v", err)
	}
	if len(series) != 4 {
		t.Fatalf("expected 4 entries at a 3-hour step, got %d", len(series))
	}
	if series[1].TemperatureC != -3 {
		t.Fatalf("expected the second entry to be hour 3, got temperature %v", series[1].TemperatureC)
	}
}

func TestForecastFetchRequiresCoordinates(t *testing.T) {
	src := NewForecastSource(http.DefaultClient, ForecastConfig{BaseURL: "http://example.invalid"})
	if _, err := src.Fetch(context.Background()); err == nil {
		t.Fatal("expected a configuration error")
	}
}

func TestForecastFetchRejectsEmptySeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"properties":{"timeseries":[]}}`))
	}))
	defer srv.Close()

	src := NewForecastSource(http.DefaultClient, ForecastConfig{BaseURL: srv.URL, Lat: 61, Lon: 9})
	if _, err := src.Fetch(context.Background()); err == nil {
		t.Fatal("expected an error for an empty timeseries")
	}
}
