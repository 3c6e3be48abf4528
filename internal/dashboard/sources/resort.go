package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hallgrim/hyttevaer/internal/dashboard"
)

const unknownCondition = "unknown"

// ResortSource fetches the ski resort's conditions feed and normalizes it
// into top/bottom station readings plus lift status.
type ResortSource struct {
	client        *upstreamClient
	conditionsURL string
	apiKey        string
}

func NewResortSource(client *http.Client, conditionsURL, apiKey string) *ResortSource {
	return &ResortSource{
		client:        newUpstreamClient(client, "resort"),
		conditionsURL: conditionsURL,
		apiKey:        apiKey,
	}
}

func (s *ResortSource) Name() dashboard.SourceName {
	return dashboard.SourceResort
}

func (s *ResortSource) Fetch(ctx context.Context) (dashboard.SourceReading, error) {
	if s.conditionsURL == "" {
		return dashboard.SourceReading{}, fmt.Errorf("resort conditions url is not configured")
	}

	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, s.conditionsURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if s.apiKey != "" {
			req.Header.Set("X-Api-Key", s.apiKey)
		}
		return req, nil
	}

	resp, err := s.client.do(ctx, buildRequest)
	if err != nil {
		return dashboard.SourceReading{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Top    stationPayload `json:"top"`
		Bottom stationPayload `json:"bottom"`
		Lifts  struct {
			Open   *int   `json:"open"`
			Total  *int   `json:"total"`
			Status string `json:"status"`
		} `json:"lifts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return dashboard.SourceReading{}, err
	}

	conditions := dashboard.ResortConditions{
		Top:    normalizeStation(payload.Top),
		Bottom: normalizeStation(payload.Bottom),
		Lifts: dashboard.LiftStatus{
			Open:   intOrZero(payload.Lifts.Open),
			Total:  intOrZero(payload.Lifts.Total),
			Status: stringOrUnknown(payload.Lifts.Status),
		},
	}

	data, err := json.Marshal(conditions)
	if err != nil {
		return dashboard.SourceReading{}, err
	}

	return dashboard.SourceReading{
		Source:                   dashboard.SourceResort,
		FetchedAt:                time.Now().UTC(),
		Payload:                  data,
		ResortTopTemperatureC:    conditions.Top.TemperatureC,
		ResortBottomTemperatureC: conditions.Bottom.TemperatureC,
	}, nil
}

type stationPayload struct {
	Temperature *float64 `json:"temperature"`
	WindSpeed   *float64 `json:"windSpeed"`
	Condition   string   `json:"condition"`
}

func normalizeStation(p stationPayload) dashboard.ResortStation {
	return dashboard.ResortStation{
		TemperatureC: p.Temperature,
		WindSpeedMS:  p.WindSpeed,
		Condition:    stringOrUnknown(p.Condition),
	}
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func stringOrUnknown(s string) string {
	if s == "" {
		return unknownCondition
	}
	return s
}
