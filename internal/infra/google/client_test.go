package google

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/location-insights/internal/domain/insights"
)

func TestGeocodeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "94103", r.URL.Query().Get("address"))
		require.Equal(t, "test-key", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"geometry":{"location":{"lat":37.77,"lng":-122.41}}},{"geometry":{"location":{"lat":1,"lng":1}}}]}`))
	}))
	defer srv.Close()

	client := NewGeocodeClient("test-key", srv.URL, time.Second)
	at, err := client.Geocode(context.Background(), "94103")
	require.NoError(t, err)
	require.Equal(t, insights.Coordinate{Latitude: 37.77, Longitude: -122.41}, at)
}

func TestGeocodeNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"The provided API key is invalid.","results":[]}`))
	}))
	defer srv.Close()

	_, err := NewGeocodeClient("bad", srv.URL, time.Second).Geocode(context.Background(), "94103")
	require.Error(t, err)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, "REQUEST_DENIED", statusErr.Status)
	require.Contains(t, err.Error(), "API key is invalid")
}

func TestGeocodeHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewGeocodeClient("k", srv.URL, time.Second).Geocode(context.Background(), "94103")
	require.Error(t, err)
	require.Contains(t, err.Error(), "status=502")
}

func TestPlacesSearchText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		require.Equal(t, PlacesFieldMask, r.Header.Get("X-Goog-FieldMask"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.JSONEq(t, `{"textQuery":"Flower store in 94103","locationBias":{"circle":{"center":{"latitude":37.77,"longitude":-122.41},"radius":5000}}}`, string(body))

		_, _ = w.Write([]byte(`{"places":[
			{"displayName":{"text":"Petals","languageCode":"en"},"formattedAddress":"1 Market St","location":{"latitude":37.77,"longitude":-122.41},"primaryType":"florist","types":["florist"],"rating":4.5},
			{"displayName":{"text":"Bloom Box"},"formattedAddress":"22 Mission St","location":{"latitude":37.78,"longitude":-122.4},"types":["store"]}
		]}`))
	}))
	defer srv.Close()

	client := NewPlacesClient("test-key", srv.URL, time.Second)
	places, err := client.SearchText(context.Background(), insights.PlacesQuery{
		Text:         "Flower store in 94103",
		Bias:         &insights.Coordinate{Latitude: 37.77, Longitude: -122.41},
		RadiusMeters: 5000,
	})
	require.NoError(t, err)
	require.Len(t, places, 2)
	require.Equal(t, "Petals", places[0].DisplayName.Text)
	require.NotNil(t, places[0].Rating)
	require.Equal(t, 4.5, *places[0].Rating)
	require.Nil(t, places[1].Rating)
	require.Equal(t, []string{"store"}, places[1].Types)
}

func TestPlacesSearchTextWithoutBias(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, map[string]any{"textQuery": "Art store in 10001"}, body)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	places, err := NewPlacesClient("k", srv.URL, time.Second).SearchText(context.Background(), insights.PlacesQuery{Text: "Art store in 10001"})
	require.NoError(t, err)
	require.NotNil(t, places)
	require.Empty(t, places)
}

func TestPlacesSearchTextError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403}}`, http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewPlacesClient("k", srv.URL, time.Second).SearchText(context.Background(), insights.PlacesQuery{Text: "x"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "status=403")
}
