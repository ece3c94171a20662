package campaign

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/location-insights/internal/domain/insights"
	apperrors "github.com/yanqian/location-insights/pkg/errors"
	"github.com/yanqian/location-insights/pkg/metrics"
)

const validSelection = `[
  {"campaign_title":"Spring Blooms","campaign_description":"Seasonal bouquets","insight":"Mild weather","start_date":"2025-03-01","end_date":"2025-03-31","discount_amount":"15%"},
  {"campaign_title":"Rainy Day Roses","campaign_description":"Delivery promo","insight":"Humidity is high","start_date":"2025-03-05","end_date":"2025-03-12","discount_amount":10},
  {"campaign_title":"Office Greens","campaign_description":"Desk plants for SoMa offices","insight":"Dense office area","start_date":"2025-04-01","end_date":"2025-04-30"},
  {"campaign_title":"Mother's Day","campaign_description":"Pre-order bundles","insight":"Holiday demand","start_date":"2025-04-20","end_date":"2025-05-11","discount_amount":null},
  {"campaign_title":"Loyalty Stems","campaign_description":"Punch card","insight":"Competitors lack loyalty","start_date":"2025-03-01","end_date":"2025-12-31","discount_amount":"Buy 10 get 1 free"}
]`

func TestGenerateBuildsPromptAndReturnsDraft(t *testing.T) {
	model := &scriptedModel{answers: []string{"1. Campaign Title: Spring Blooms ..."}}
	svc := newTestService(model, Config{})

	draft, err := svc.Generate(context.Background(), sampleInsights(t), "Flower store")
	require.NoError(t, err)
	require.Equal(t, "1. Campaign Title: Spring Blooms ...", draft.Text)
	require.Equal(t, 1, model.calls)

	prompt := model.prompts[0]
	require.Contains(t, prompt, "Based on the following data for a Flower store in ZIP code 94103:")
	require.Contains(t, prompt, `"displayName":{"text":"Petals"}`)
	require.Contains(t, prompt, `"temperature_2m":14.3`)
	require.Contains(t, prompt, "Generate a list of 10 campaign recommendations.")
	require.Contains(t, prompt, "- Discount Amount (if applicable)")
}

func TestGenerateWrapsModelFailure(t *testing.T) {
	model := &scriptedModel{err: errors.New("quota exceeded")}
	svc := newTestService(model, Config{})

	_, err := svc.Generate(context.Background(), sampleInsights(t), "Flower store")
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeLLMError))
	require.True(t, strings.HasPrefix(err.Error(), "Error generating campaigns:"))
}

func TestGeneratePromptStatesWeatherFailure(t *testing.T) {
	model := &scriptedModel{answers: []string{"ideas"}}
	svc := newTestService(model, Config{})
	data := sampleInsights(t)
	data.Weather = insights.WeatherReport{Failure: "Error fetching weather data: timeout"}

	_, err := svc.Generate(context.Background(), data, "Art store")
	require.NoError(t, err)
	require.Contains(t, model.prompts[0], "Weather: unavailable (Error fetching weather data: timeout)")
}

func TestGeneratePromptHonorsStoreLimits(t *testing.T) {
	model := &scriptedModel{answers: []string{"ideas"}}
	svc := newTestService(model, Config{MaxStores: 2})

	_, err := svc.Generate(context.Background(), sampleInsights(t), "Flower store")
	require.NoError(t, err)
	require.Contains(t, model.prompts[0], "Bloom Box")
	require.NotContains(t, model.prompts[0], "Fern & Co")
	require.Contains(t, model.prompts[0], "(1 more stores omitted)")
}

func TestGeneratePromptHonorsTokenBudget(t *testing.T) {
	model := &scriptedModel{answers: []string{"ideas"}}
	full := newTestService(&scriptedModel{answers: []string{"ideas"}}, Config{}).(*service)
	budget := full.counter.Count(full.buildGeneratePrompt(sampleInsights(t), "Flower store")) - 1
	svc := newTestService(model, Config{PromptTokenBudget: budget})

	_, err := svc.Generate(context.Background(), sampleInsights(t), "Flower store")
	require.NoError(t, err)
	require.Contains(t, model.prompts[0], "more stores omitted")
	require.LessOrEqual(t, WordCounter{}.Count(model.prompts[0]), budget)
}

func TestGeneratePromptCapsHourlySeries(t *testing.T) {
	model := &scriptedModel{answers: []string{"ideas"}}
	svc := newTestService(model, Config{MaxHourlyPoints: 2})

	_, err := svc.Generate(context.Background(), sampleInsights(t), "Flower store")
	require.NoError(t, err)
	require.Contains(t, model.prompts[0], `"temperature_2m":[12.1,12.4]`)
	require.NotContains(t, model.prompts[0], "13.9")
	require.Contains(t, model.prompts[0], "limited to the first 2 of 3 points")
}

func TestSelectParsesFencedAnswer(t *testing.T) {
	model := &scriptedModel{
		answers: []string{"```json\n" + validSelection + "\n```"},
		usage:   metrics.TokenUsage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
	}
	svc := newTestService(model, Config{})

	sel, err := svc.Select(context.Background(), "ten campaign ideas")
	require.NoError(t, err)
	require.Len(t, sel.Campaigns, 5)
	require.Equal(t, 1, sel.Attempts)
	require.Equal(t, "Spring Blooms", sel.Campaigns[0].Title)
	require.Equal(t, "15%", sel.Campaigns[0].Discount.String())
	require.True(t, sel.Campaigns[1].Discount.IsNumber())
	require.Nil(t, sel.Campaigns[2].Discount)
	require.Nil(t, sel.Campaigns[3].Discount)
	require.Equal(t, 150, sel.Usage.TotalTokens)

	prompt := model.prompts[0]
	require.Contains(t, prompt, "select the top 5 most effective campaigns considering its a mom and pop type small business")
	require.Contains(t, prompt, "ten campaign ideas")
	require.Contains(t, prompt, "- discount_amount")
}

func TestSelectRepromptsOnSchemaMismatch(t *testing.T) {
	model := &scriptedModel{answers: []string{`[{"campaign_title":"Only one"}]`, validSelection}}
	svc := newTestService(model, Config{MaxSelectAttempts: 2})

	sel, err := svc.Select(context.Background(), "ideas")
	require.NoError(t, err)
	require.Equal(t, 2, model.calls)
	require.Equal(t, 2, sel.Attempts)
	require.Len(t, sel.Campaigns, 5)
	require.Contains(t, model.prompts[1], "It was rejected because: expected 5 campaigns, got 1")
	require.Contains(t, model.prompts[1], `[{"campaign_title":"Only one"}]`)
}

func TestSelectFailsAfterAttemptsExhausted(t *testing.T) {
	model := &scriptedModel{answers: []string{"Here are the top campaigns!", "still not json"}}
	svc := newTestService(model, Config{MaxSelectAttempts: 2})

	sel, err := svc.Select(context.Background(), "ideas")
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeParseError))
	require.Equal(t, MsgParseFailed, apperrors.MessageOf(err))
	require.Equal(t, "still not json", sel.Raw)
	require.Empty(t, sel.Campaigns)
	require.Equal(t, 2, model.calls)
}

func TestSelectWrapsModelFailure(t *testing.T) {
	model := &scriptedModel{err: errors.New("deadline exceeded")}
	svc := newTestService(model, Config{})

	_, err := svc.Select(context.Background(), "ideas")
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeLLMError))
	require.Equal(t, "Error selecting top campaigns: deadline exceeded", err.Error())
}

func TestWordCounter(t *testing.T) {
	require.Equal(t, 0, WordCounter{}.Count("   "))
	require.Equal(t, 2, WordCounter{}.Count("flower"))
	require.Equal(t, 4, WordCounter{}.Count("flower store in"))
	require.Equal(t, 10, WordCounter{}.Count("Based on the following data for a"))
}

func TestParseSelectionValidation(t *testing.T) {
	entry := func(start, end, discount string) string {
		return fmt.Sprintf(`{"campaign_title":"T","campaign_description":"D","insight":"I","start_date":%q,"end_date":%q%s}`, start, end, discount)
	}
	five := func(first string) string {
		items := []string{first}
		for i := 0; i < 4; i++ {
			items = append(items, entry("2025-01-01", "2025-01-02", ""))
		}
		return "[" + strings.Join(items, ",") + "]"
	}

	cases := map[string]struct {
		raw         string
		wantErr     string
		wantDetails string
	}{
		"valid with trailing comma": {raw: strings.TrimSuffix(five(entry("2025-01-01", "2025-01-31", `,"discount_amount":"20%"`)), "]") + ",]"},
		"comma before brace inside text": {
			raw:         five(`{"campaign_title":"A","campaign_description":"Bouquets {roses, } and [tulips, ]","insight":"I","start_date":"2025-01-01","end_date":"2025-01-02",}`),
			wantDetails: "Bouquets {roses, } and [tulips, ]",
		},
		"escaped quote before comma": {
			raw:         five(`{"campaign_title":"A","campaign_description":"Say \"hi\", ]","insight":"I","start_date":"2025-01-01","end_date":"2025-01-02"}`),
			wantDetails: `Say "hi", ]`,
		},
		"bad date":                  {raw: five(entry("March 1", "2025-01-31", "")), wantErr: "start_date"},
		"end before start":          {raw: five(entry("2025-02-01", "2025-01-31", "")), wantErr: "before start_date"},
		"boolean discount":          {raw: five(entry("2025-01-01", "2025-01-31", `,"discount_amount":true`)), wantErr: "string or a number"},
		"unknown field":             {raw: five(`{"campaign_title":"T","campaign_description":"D","insight":"I","start_date":"2025-01-01","end_date":"2025-01-02","rank":1}`), wantErr: "rank"},
		"missing title":             {raw: five(`{"campaign_description":"D","insight":"I","start_date":"2025-01-01","end_date":"2025-01-02"}`), wantErr: "campaign_title"},
		"trailing prose":            {raw: five(entry("2025-01-01", "2025-01-02", "")) + " hope this helps", wantErr: "after the JSON array"},
		"object not array":          {raw: entry("2025-01-01", "2025-01-02", ""), wantErr: "not a JSON array"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := ParseSelection(tc.raw, 5)
			if tc.wantErr == "" {
				require.NoError(t, err)
				require.Len(t, got, 5)
				if tc.wantDetails != "" {
					require.Equal(t, tc.wantDetails, got[0].Description)
				}
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestCampaignMarshalKeepsDiscountShape(t *testing.T) {
	out, err := json.Marshal([]Campaign{
		{Title: "A", Description: "B", Insight: "C", StartDate: "2025-01-01", EndDate: "2025-01-02", Discount: NumberDiscount(12.5)},
		{Title: "A", Description: "B", Insight: "C", StartDate: "2025-01-01", EndDate: "2025-01-02", Discount: TextDiscount("BOGO")},
		{Title: "A", Description: "B", Insight: "C", StartDate: "2025-01-01", EndDate: "2025-01-02"},
	})
	require.NoError(t, err)
	require.JSONEq(t, `[
		{"campaign_title":"A","campaign_description":"B","insight":"C","start_date":"2025-01-01","end_date":"2025-01-02","discount_amount":12.5},
		{"campaign_title":"A","campaign_description":"B","insight":"C","start_date":"2025-01-01","end_date":"2025-01-02","discount_amount":"BOGO"},
		{"campaign_title":"A","campaign_description":"B","insight":"C","start_date":"2025-01-01","end_date":"2025-01-02"}
	]`, string(out))
}

func newTestService(model TextModel, cfg Config) Service {
	return NewService(cfg, model, WordCounter{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func sampleInsights(t *testing.T) insights.LocationInsights {
	t.Helper()
	var stores []insights.Place
	require.NoError(t, json.Unmarshal([]byte(`[
		{"displayName": {"text": "Petals"}, "formattedAddress": "1 Market St", "rating": 4.6},
		{"displayName": {"text": "Bloom Box"}, "formattedAddress": "22 Mission St"},
		{"displayName": {"text": "Fern & Co"}, "formattedAddress": "9 Howard St"}
	]`), &stores))
	return insights.LocationInsights{
		ZipCode: "94103",
		Stores:  stores,
		Weather: insights.WeatherReport{Payload: json.RawMessage(`{
			"current": {"time": "2025-03-01T10:00", "temperature_2m": 14.3, "wind_speed_10m": 9.7},
			"hourly": {"time": ["t0", "t1", "t2"], "temperature_2m": [12.1, 12.4, 13.9]}
		}`)},
	}
}

type scriptedModel struct {
	answers []string
	err     error
	usage   metrics.TokenUsage
	calls   int
	prompts []string
}

func (m *scriptedModel) Generate(ctx context.Context, prompt string) (Completion, error) {
	m.calls++
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return Completion{}, m.err
	}
	idx := m.calls - 1
	if idx >= len(m.answers) {
		idx = len(m.answers) - 1
	}
	return Completion{Text: m.answers[idx], Usage: m.usage}, nil
}
