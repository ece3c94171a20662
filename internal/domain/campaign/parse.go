package campaign

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// cleanResponse strips markdown fences and trailing commas around a JSON answer.
func cleanResponse(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```JSON")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
		cleaned = strings.TrimSpace(cleaned)
	}
	return stripTrailingCommas(cleaned)
}

// stripTrailingCommas drops commas that directly precede a closing bracket
// or brace. Commas inside string literals are left alone.
func stripTrailingCommas(text string) string {
	out := make([]byte, 0, len(text))
	inString, escaped := false, false
	pending := -1
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			out = append(out, ch)
			continue
		}
		switch ch {
		case ',':
			pending = len(out)
		case '}', ']':
			if pending >= 0 {
				out = append(out[:pending], out[pending+1:]...)
			}
			pending = -1
		case ' ', '\t', '\n', '\r':
		default:
			pending = -1
			inString = ch == '"'
		}
		out = append(out, ch)
	}
	return string(out)
}

// ParseSelection decodes and validates a selector answer holding exactly want campaigns.
func ParseSelection(raw string, want int) ([]Campaign, error) {
	cleaned := cleanResponse(raw)
	if cleaned == "" {
		return nil, errors.New("response is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	decoder.DisallowUnknownFields()
	var campaigns []Campaign
	if err := decoder.Decode(&campaigns); err != nil {
		return nil, fmt.Errorf("response is not a JSON array of campaigns: %w", err)
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("response has content after the JSON array")
	}

	if want > 0 && len(campaigns) != want {
		return nil, fmt.Errorf("expected %d campaigns, got %d", want, len(campaigns))
	}
	for i, c := range campaigns {
		if err := validateCampaign(c); err != nil {
			return nil, fmt.Errorf("campaign %d: %w", i+1, err)
		}
	}
	return campaigns, nil
}

func validateCampaign(c Campaign) error {
	if strings.TrimSpace(c.Title) == "" {
		return errors.New("campaign_title is required")
	}
	if strings.TrimSpace(c.Description) == "" {
		return errors.New("campaign_description is required")
	}
	if strings.TrimSpace(c.Insight) == "" {
		return errors.New("insight is required")
	}
	start, err := time.Parse(dateLayout, c.StartDate)
	if err != nil {
		return fmt.Errorf("start_date %q is not YYYY-MM-DD", c.StartDate)
	}
	end, err := time.Parse(dateLayout, c.EndDate)
	if err != nil {
		return fmt.Errorf("end_date %q is not YYYY-MM-DD", c.EndDate)
	}
	if end.Before(start) {
		return fmt.Errorf("end_date %s is before start_date %s", c.EndDate, c.StartDate)
	}
	return nil
}
