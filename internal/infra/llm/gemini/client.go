package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/yanqian/location-insights/internal/domain/campaign"
	"github.com/yanqian/location-insights/pkg/metrics"
)

const defaultModel = "gemini-2.0-flash"

// contentGenerator is the slice of genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client generates text with a Gemini model.
type Client struct {
	models      contentGenerator
	model       string
	temperature float32
}

// NewClient connects to the Gemini API.
func NewClient(ctx context.Context, apiKey, model string, temperature float32) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini api key cannot be empty")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newClient(client.Models, model, temperature), nil
}

func newClient(models contentGenerator, model string, temperature float32) *Client {
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	return &Client{models: models, model: model, temperature: temperature}
}

// Generate implements campaign.TextModel.
func (c *Client) Generate(ctx context.Context, prompt string) (campaign.Completion, error) {
	cfg := &genai.GenerateContentConfig{}
	if c.temperature > 0 {
		cfg.Temperature = genai.Ptr(c.temperature)
	}
	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), cfg)
	metrics.CountUpstream("gemini", err)
	if err != nil {
		return campaign.Completion{}, err
	}
	text := responseText(resp)
	if text == "" {
		return campaign.Completion{}, errors.New("gemini returned no text candidates")
	}
	return campaign.Completion{Text: text, Usage: usageOf(resp)}, nil
}

// responseText joins the text parts of the first candidate that has any.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		var b strings.Builder
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			b.WriteString(part.Text)
		}
		if text := strings.TrimSpace(b.String()); text != "" {
			return text
		}
	}
	return ""
}

func usageOf(resp *genai.GenerateContentResponse) metrics.TokenUsage {
	if resp == nil || resp.UsageMetadata == nil {
		return metrics.TokenUsage{}
	}
	meta := resp.UsageMetadata
	return metrics.TokenUsage{
		PromptTokens:     int(meta.PromptTokenCount),
		CompletionTokens: int(meta.CandidatesTokenCount),
		TotalTokens:      int(meta.TotalTokenCount),
	}
}

var _ campaign.TextModel = (*Client)(nil)
