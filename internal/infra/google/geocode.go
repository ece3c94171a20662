package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yanqian/location-insights/internal/domain/insights"
)

const defaultGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// GeocodeClient resolves postal codes with the Google Geocoding API.
type GeocodeClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewGeocodeClient builds a geocoding client. An empty baseURL selects the public endpoint.
func NewGeocodeClient(apiKey, baseURL string, timeout time.Duration) *GeocodeClient {
	endpoint := strings.TrimSpace(baseURL)
	if endpoint == "" {
		endpoint = defaultGeocodeURL
	}
	return &GeocodeClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(endpoint, "/"),
		httpClient: newHTTPClient(timeout),
	}
}

// StatusError is returned when the geocoder answers with a non-OK status.
type StatusError struct {
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("geocoding failed: %s (%s)", e.Status, e.Message)
	}
	return "geocoding failed: " + e.Status
}

// Geocode returns the location of the first result for the given address.
func (c *GeocodeClient) Geocode(ctx context.Context, address string) (insights.Coordinate, error) {
	params := url.Values{}
	params.Set("address", address)
	params.Set("key", c.apiKey)
	endpoint := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return insights.Coordinate{}, fmt.Errorf("build geocode request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return insights.Coordinate{}, fmt.Errorf("geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return insights.Coordinate{}, fmt.Errorf("geocode request error: status=%d body=%s", resp.StatusCode, string(payload))
	}

	var raw geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return insights.Coordinate{}, fmt.Errorf("decode geocode response: %w", err)
	}
	if raw.Status != "OK" {
		return insights.Coordinate{}, &StatusError{Status: raw.Status, Message: raw.ErrorMessage}
	}
	if len(raw.Results) == 0 {
		return insights.Coordinate{}, &StatusError{Status: "ZERO_RESULTS"}
	}

	loc := raw.Results[0].Geometry.Location
	return insights.Coordinate{Latitude: loc.Lat, Longitude: loc.Lng}, nil
}

type geocodeResponse struct {
	Status       string          `json:"status"`
	ErrorMessage string          `json:"error_message"`
	Results      []geocodeResult `json:"results"`
}

type geocodeResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
