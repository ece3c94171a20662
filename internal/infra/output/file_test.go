package output

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/location-insights/internal/domain/campaign"
	"github.com/yanqian/location-insights/internal/domain/insights"
)

const storesFixture = `[
	{"displayName": {"text": "Petals & Co", "languageCode": "en"}, "formattedAddress": "1 Market St", "location": {"latitude": 37.77, "longitude": -122.41}, "primaryType": "florist", "types": ["florist", "store"], "rating": 4.6, "businessStatus": "OPERATIONAL"},
	{"displayName": {"text": "Bloom Box"}, "formattedAddress": "22 Mission St", "location": {"latitude": 37.78, "longitude": -122.4}, "types": ["store"]}
]`

func TestFileStoreInsightsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, "", "")

	var stores []insights.Place
	require.NoError(t, json.Unmarshal([]byte(storesFixture), &stores))
	data := insights.LocationInsights{
		ZipCode: "94103",
		Stores:  stores,
		Weather: insights.WeatherReport{Payload: json.RawMessage(`{"current":{"temperature_2m":14.3}}`)},
	}

	path, err := store.SaveInsights(context.Background(), "run-1", data)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "location_insights.json"), path)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(written), "{\n    \"zipcode\": \"94103\""))
	require.Contains(t, string(written), "Petals & Co")

	var decoded insights.LocationInsights
	require.NoError(t, json.Unmarshal(written, &decoded))
	require.Equal(t, "94103", decoded.ZipCode)
	require.Len(t, decoded.Stores, 2)
	require.Equal(t, "Bloom Box", decoded.Stores[1].DisplayName.Text)

	reencoded, err := json.Marshal(decoded)
	require.NoError(t, err)
	original, err := json.Marshal(data)
	require.NoError(t, err)
	require.JSONEq(t, string(original), string(reencoded))
	require.Contains(t, string(written), `"businessStatus": "OPERATIONAL"`)
}

func TestFileStoreWeatherFailureShape(t *testing.T) {
	store := NewFileStore(t.TempDir(), "", "")
	path, err := store.SaveInsights(context.Background(), "run-1", insights.LocationInsights{
		ZipCode: "10001",
		Stores:  []insights.Place{},
		Weather: insights.WeatherReport{Failure: "Error fetching weather data: timeout"},
	})
	require.NoError(t, err)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, `{"zipcode":"10001","stores":[],"weather":{"error":"Error fetching weather data: timeout"}}`, string(written))
}

func TestFileStoreCampaigns(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	store := NewFileStore(dir, "insights.json", "top.json")

	path, err := store.SaveCampaigns(context.Background(), "run-1", []campaign.Campaign{
		{Title: "Spring Blooms", Description: "Bouquets", Insight: "Mild weather", StartDate: "2025-03-01", EndDate: "2025-03-31", Discount: campaign.TextDiscount("15%")},
	})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "top.json"), path)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, `[{"campaign_title":"Spring Blooms","campaign_description":"Bouquets","insight":"Mild weather","start_date":"2025-03-01","end_date":"2025-03-31","discount_amount":"15%"}]`, string(written))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStorePerRunKeepsRunsApart(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, "", "").PerRun()
	ctx := context.Background()

	first, err := store.SaveInsights(ctx, "run-a", insights.LocationInsights{ZipCode: "94103", Stores: []insights.Place{}})
	require.NoError(t, err)
	second, err := store.SaveInsights(ctx, "run-b", insights.LocationInsights{ZipCode: "10001", Stores: []insights.Place{}})
	require.NoError(t, err)
	campaigns, err := store.SaveCampaigns(ctx, "run-a", nil)
	require.NoError(t, err)

	require.Equal(t, filepath.Join(dir, "run-a", "location_insights.json"), first)
	require.Equal(t, filepath.Join(dir, "run-b", "location_insights.json"), second)
	require.Equal(t, filepath.Join(dir, "run-a", "top_campaigns.json"), campaigns)

	written, err := os.ReadFile(first)
	require.NoError(t, err)
	require.Contains(t, string(written), `"zipcode": "94103"`)

	_, err = os.Stat(filepath.Join(dir, "location_insights.json"))
	require.True(t, os.IsNotExist(err))

	_, err = store.SaveInsights(ctx, "../escape", insights.LocationInsights{})
	require.ErrorContains(t, err, "invalid run id")
}
