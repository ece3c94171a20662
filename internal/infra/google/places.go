package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yanqian/location-insights/internal/domain/insights"
)

const (
	defaultPlacesURL = "https://places.googleapis.com/v1/places:searchText"

	// PlacesFieldMask limits the response to the fields persisted per store.
	PlacesFieldMask = "places.displayName,places.formattedAddress,places.location,places.primaryType,places.types,places.rating"
)

// PlacesClient runs text searches against the Places API (New).
type PlacesClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewPlacesClient builds a places client. An empty baseURL selects the public endpoint.
func NewPlacesClient(apiKey, baseURL string, timeout time.Duration) *PlacesClient {
	endpoint := strings.TrimSpace(baseURL)
	if endpoint == "" {
		endpoint = defaultPlacesURL
	}
	return &PlacesClient{
		apiKey:     apiKey,
		baseURL:    endpoint,
		httpClient: newHTTPClient(timeout),
	}
}

// SearchText returns the first page of places matching the query.
func (c *PlacesClient) SearchText(ctx context.Context, query insights.PlacesQuery) ([]insights.Place, error) {
	body := searchTextRequest{TextQuery: query.Text}
	if query.Bias != nil && query.RadiusMeters > 0 {
		body.LocationBias = &locationBias{Circle: circle{Center: *query.Bias, Radius: query.RadiusMeters}}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode places request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build places request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", PlacesFieldMask)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("places request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("places request error: status=%d body=%s", resp.StatusCode, string(errBody))
	}

	var raw searchTextResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode places response: %w", err)
	}
	if raw.Places == nil {
		return []insights.Place{}, nil
	}
	return raw.Places, nil
}

type searchTextRequest struct {
	TextQuery    string        `json:"textQuery"`
	LocationBias *locationBias `json:"locationBias,omitempty"`
}

type locationBias struct {
	Circle circle `json:"circle"`
}

type circle struct {
	Center insights.Coordinate `json:"center"`
	Radius float64             `json:"radius"`
}

type searchTextResponse struct {
	Places []insights.Place `json:"places"`
}
