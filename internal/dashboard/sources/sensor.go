package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hallgrim/hyttevaer/internal/dashboard"
)

// SensorSource fetches one device reading from the home sensor hub's
// cloud API, authenticated with a bearer token from the credential
// provider.
type SensorSource struct {
	client   *upstreamClient
	creds    *CredentialProvider
	baseURL  string
	deviceID string
}

func NewSensorSource(client *http.Client, creds *CredentialProvider, baseURL, deviceID string) *SensorSource {
	return &SensorSource{
		client:   newUpstreamClient(client, "sensor"),
		creds:    creds,
		baseURL:  baseURL,
		deviceID: deviceID,
	}
}

func (s *SensorSource) Name() dashboard.SourceName {
	return dashboard.SourceSensor
}

func (s *SensorSource) Fetch(ctx context.Context) (dashboard.SourceReading, error) {
	if s.baseURL == "" || s.deviceID == "" {
		return dashboard.SourceReading{}, fmt.Errorf("sensor hub url or device id is not configured")
	}

	raw, err := s.fetchDevice(ctx)
	if err != nil {
		// An expired credential is recovered by forcing re-acquisition
		// and retrying once.
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusUnauthorized {
			s.creds.Invalidate()
			raw, err = s.fetchDevice(ctx)
		}
		if err != nil {
			return dashboard.SourceReading{}, err
		}
	}

	reading, err := normalizeSensorPayload(raw)
	if err != nil {
		return dashboard.SourceReading{}, err
	}

	payload, err := json.Marshal(reading)
	if err != nil {
		return dashboard.SourceReading{}, err
	}

	return dashboard.SourceReading{
		Source:             dashboard.SourceSensor,
		FetchedAt:          time.Now().UTC(),
		Payload:            payload,
		SensorTemperatureC: reading.TemperatureC,
	}, nil
}

func (s *SensorSource) fetchDevice(ctx context.Context) ([]byte, error) {
	token, err := s.creds.Token(ctx)
	if err != nil {
		return nil, err
	}

	buildRequest := func() (*http.Request, error) {
		u := fmt.Sprintf("%s/devices/%s", s.baseURL, s.deviceID)
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := s.client.do(ctx, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// normalizeSensorPayload maps the hub's response to a SensorReading. The
// hub has shipped three payload shapes over time; they are tried in
// order: flat fields, a "data" wrapper, and a "lastReading" wrapper.
// Fields absent from the payload stay nil.
func normalizeSensorPayload(raw []byte) (dashboard.SensorReading, error) {
	var flat struct {
		Temperature *float64 `json:"temperature"`
		Humidity    *float64 `json:"humidity"`
	}
	if err := json.Unmarshal(raw, &flat); err == nil && (flat.Temperature != nil || flat.Humidity != nil) {
		return dashboard.SensorReading{
			TemperatureC:    flat.Temperature,
			HumidityPercent: flat.Humidity,
		}, nil
	}

	var wrapped struct {
		Data        json.RawMessage `json:"data"`
		LastReading json.RawMessage `json:"lastReading"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		if len(wrapped.Data) > 0 {
			if reading, err := normalizeSensorPayload(wrapped.Data); err == nil {
				return reading, nil
			}
		}
		if len(wrapped.LastReading) > 0 {
			if reading, err := normalizeSensorPayload(wrapped.LastReading); err == nil {
				return reading, nil
			}
		}
	}

	return dashboard.SensorReading{}, fmt.Errorf("unrecognized sensor payload shape")
}
