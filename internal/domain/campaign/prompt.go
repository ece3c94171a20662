package campaign

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/yanqian/location-insights/internal/domain/insights"
)

const campaignFields = `- Campaign Title
- Campaign Description
- Insight leading to the recommendation
- Start Date (YYYY-MM-DD)
- End Date (YYYY-MM-DD)
- Discount Amount (if applicable)`

const selectionFields = `- campaign_title
- campaign_description
- insight
- start_date
- end_date
- discount_amount`

func (s *service) buildGeneratePrompt(data insights.LocationInsights, storeType string) string {
	weather := s.renderWeather(data.Weather)
	instructions := fmt.Sprintf("Generate a list of %d campaign recommendations. Each recommendation should include:\n%s", s.cfg.Count, campaignFields)

	frame := func(stores string) string {
		var b strings.Builder
		fmt.Fprintf(&b, "Based on the following data for a %s in ZIP code %s:\n", storeType, data.ZipCode)
		fmt.Fprintf(&b, "Stores: %s\n", stores)
		fmt.Fprintf(&b, "Weather: %s\n\n", weather)
		b.WriteString(instructions)
		return b.String()
	}

	lines := compactStores(data.Stores)
	limit := len(lines)
	if s.cfg.MaxStores > 0 && limit > s.cfg.MaxStores {
		limit = s.cfg.MaxStores
	}
	if s.cfg.PromptTokenBudget > 0 {
		for limit > 0 && s.counter.Count(frame(renderStores(lines, limit))) > s.cfg.PromptTokenBudget {
			limit--
		}
	}
	if limit < len(lines) {
		s.logger.Info("store list trimmed for prompt", "kept", limit, "total", len(lines))
	}
	return frame(renderStores(lines, limit))
}

func (s *service) buildSelectPrompt(draft string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From the following list of campaign recommendations, select the top %d most effective campaigns considering its a %s and present them in a JSON format.\n\n", s.cfg.SelectCount, s.cfg.BusinessProfile)
	b.WriteString(strings.TrimSpace(draft))
	b.WriteString("\n\nPresent the result as a JSON array where each element contains:\n")
	b.WriteString(selectionFields)
	fmt.Fprintf(&b, "\n\nRespond with the JSON array only. The array must hold exactly %d objects. Dates use YYYY-MM-DD. discount_amount is a string or a number, and is left out when no discount applies.", s.cfg.SelectCount)
	return b.String()
}

func (s *service) buildRepairPrompt(basePrompt, previous string, cause error) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\nYour previous answer was:\n")
	b.WriteString(strings.TrimSpace(previous))
	fmt.Fprintf(&b, "\n\nIt was rejected because: %s\nReturn the corrected JSON array only.", cause)
	return b.String()
}

func compactStores(stores []insights.Place) []string {
	out := make([]string, 0, len(stores))
	for _, store := range stores {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(store); err != nil {
			continue
		}
		out = append(out, strings.TrimSpace(buf.String()))
	}
	return out
}

func renderStores(lines []string, limit int) string {
	if len(lines) == 0 {
		return "[]"
	}
	rendered := "[" + strings.Join(lines[:limit], ", ") + "]"
	if omitted := len(lines) - limit; omitted > 0 {
		rendered += fmt.Sprintf(" (%d more stores omitted)", omitted)
	}
	return rendered
}

func (s *service) renderWeather(report insights.WeatherReport) string {
	if report.Failure != "" {
		return fmt.Sprintf("unavailable (%s)", report.Failure)
	}
	if !report.Available() {
		return "unavailable"
	}
	payload, note := capHourly(report.Payload, s.cfg.MaxHourlyPoints)
	var buf bytes.Buffer
	if err := json.Compact(&buf, payload); err != nil {
		return string(payload) + note
	}
	return buf.String() + note
}

// capHourly keeps the first max points of every hourly series.
func capHourly(payload json.RawMessage, max int) (json.RawMessage, string) {
	if max <= 0 {
		return payload, ""
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(payload, &doc); err != nil {
		return payload, ""
	}
	rawHourly, ok := doc["hourly"]
	if !ok {
		return payload, ""
	}
	var hourly map[string]json.RawMessage
	if err := json.Unmarshal(rawHourly, &hourly); err != nil {
		return payload, ""
	}

	keys := make([]string, 0, len(hourly))
	for key := range hourly {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	total := 0
	for _, key := range keys {
		var series []json.RawMessage
		if err := json.Unmarshal(hourly[key], &series); err != nil {
			continue
		}
		if len(series) > total {
			total = len(series)
		}
		if len(series) <= max {
			continue
		}
		trimmed, err := json.Marshal(series[:max])
		if err != nil {
			continue
		}
		hourly[key] = trimmed
	}
	if total <= max {
		return payload, ""
	}

	encodedHourly, err := json.Marshal(hourly)
	if err != nil {
		return payload, ""
	}
	doc["hourly"] = encodedHourly
	encoded, err := json.Marshal(doc)
	if err != nil {
		return payload, ""
	}
	return encoded, fmt.Sprintf(" (hourly series limited to the first %d of %d points)", max, total)
}
