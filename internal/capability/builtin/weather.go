package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"nova/internal/capability"
)

// weather adapts a single HTTP forecast endpoint into the get_weather
// action. The provider is expected to answer GET {base}/current?location=...
// with a JSON body matching providerObservation.
type weather struct {
	baseURL string
	client  *http.Client
}

type providerObservation struct {
	Location    string  `json:"location"`
	Temperature float64 `json:"temperature"`
	Condition   string  `json:"condition"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"windSpeed"`
}

func NewGetWeather(baseURL string, client *http.Client) capability.Capability {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &weather{baseURL: baseURL, client: client}
}

func (w *weather) Metadata() capability.Metadata {
	return capability.Metadata{
		ID:          "get_weather",
		Version:     "1.0.0",
		Description: "Current conditions from the configured weather provider",
	}
}

func (w *weather) Execute(ctx context.Context, params map[string]any) (map[string]any, error) {
	location, _ := params["location"].(string)
	if location == "" {
		location = "here"
	}

	endpoint := fmt.Sprintf("%s/current?location=%s", w.baseURL, url.QueryEscape(location))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build weather request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather provider: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("weather provider returned %d: %s", resp.StatusCode, body)
	}

	var obs providerObservation
	if err := json.NewDecoder(resp.Body).Decode(&obs); err != nil {
		return nil, fmt.Errorf("decode weather response: %w", err)
	}

	return map[string]any{
		"location":    obs.Location,
		"temperature": obs.Temperature,
		"condition":   obs.Condition,
		"humidity":    obs.Humidity,
		"windSpeed":   obs.WindSpeed,
		"isRainy":     isRainy(obs.Condition),
		"spoken": fmt.Sprintf("It's %.0f degrees and %s in %s.",
			obs.Temperature, obs.Condition, obs.Location),
	}, nil
}

func isRainy(condition string) bool {
	switch condition {
	case "rain", "drizzle", "showers", "thunderstorm":
		return true
	default:
		return false
	}
}
