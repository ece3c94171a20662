package campaign

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/yanqian/location-insights/pkg/metrics"
)

// Campaign is one selected marketing campaign.
type Campaign struct {
	Title       string    `json:"campaign_title"`
	Description string    `json:"campaign_description"`
	Insight     string    `json:"insight"`
	StartDate   string    `json:"start_date"`
	EndDate     string    `json:"end_date"`
	Discount    *Discount `json:"discount_amount,omitempty"`
}

// Discount holds a discount amount exactly as the model wrote it: either a
// JSON string such as "15%" or a JSON number.
type Discount struct {
	raw json.RawMessage
}

// TextDiscount builds a string discount.
func TextDiscount(text string) *Discount {
	payload, _ := json.Marshal(text)
	return &Discount{raw: payload}
}

// NumberDiscount builds a numeric discount.
func NumberDiscount(value float64) *Discount {
	return &Discount{raw: json.RawMessage(strconv.FormatFloat(value, 'f', -1, 64))}
}

// IsNumber reports whether the discount was given as a number.
func (d *Discount) IsNumber() bool {
	return d != nil && len(d.raw) > 0 && d.raw[0] != '"'
}

// String renders the discount for display.
func (d *Discount) String() string {
	if d == nil || len(d.raw) == 0 {
		return ""
	}
	if d.IsNumber() {
		return string(d.raw)
	}
	var text string
	_ = json.Unmarshal(d.raw, &text)
	return text
}

func (d Discount) MarshalJSON() ([]byte, error) {
	if len(d.raw) == 0 {
		return []byte("null"), nil
	}
	return d.raw, nil
}

func (d *Discount) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return errors.New("discount_amount is empty")
	}
	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var number json.Number
		if err := json.Unmarshal(trimmed, &number); err != nil {
			return err
		}
	default:
		return errors.New("discount_amount must be a string or a number")
	}
	d.raw = append(json.RawMessage(nil), trimmed...)
	return nil
}

// Draft is the free-text list of candidate campaigns.
type Draft struct {
	Text  string             `json:"text"`
	Usage metrics.TokenUsage `json:"usage"`
}

// Selection is the validated top list together with the raw model output.
type Selection struct {
	Campaigns []Campaign         `json:"campaigns"`
	Raw       string             `json:"raw"`
	Attempts  int                `json:"attempts"`
	Usage     metrics.TokenUsage `json:"usage"`
}

// Completion is a single text model answer.
type Completion struct {
	Text  string
	Usage metrics.TokenUsage
}

// Config drives prompt construction and selection.
type Config struct {
	Count             int
	SelectCount       int
	MaxSelectAttempts int
	MaxStores         int
	MaxHourlyPoints   int
	PromptTokenBudget int
	BusinessProfile   string
}
