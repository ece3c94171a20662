package campaign

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/yanqian/location-insights/internal/domain/insights"
	apperrors "github.com/yanqian/location-insights/pkg/errors"
	"github.com/yanqian/location-insights/pkg/metrics"
)

const (
	MsgGenerateFailed = "Error generating campaigns"
	MsgSelectFailed   = "Error selecting top campaigns"
	MsgParseFailed    = "Error: Could not parse top campaigns JSON."
)

// Service turns location insights into campaign ideas and picks the best ones.
type Service interface {
	Generate(ctx context.Context, data insights.LocationInsights, storeType string) (Draft, error)
	Select(ctx context.Context, draft string) (Selection, error)
}

// TextModel is a single-prompt generative model.
type TextModel interface {
	Generate(ctx context.Context, prompt string) (Completion, error)
}

// TokenCounter estimates prompt size.
type TokenCounter interface {
	Count(text string) int
}

type service struct {
	cfg     Config
	model   TextModel
	counter TokenCounter
	logger  *slog.Logger
}

// NewService wires the campaign domain.
func NewService(cfg Config, model TextModel, counter TokenCounter, logger *slog.Logger) Service {
	if cfg.Count <= 0 {
		cfg.Count = 10
	}
	if cfg.SelectCount <= 0 {
		cfg.SelectCount = 5
	}
	if cfg.MaxSelectAttempts <= 0 {
		cfg.MaxSelectAttempts = 1
	}
	if strings.TrimSpace(cfg.BusinessProfile) == "" {
		cfg.BusinessProfile = "mom and pop type small business"
	}
	if counter == nil {
		counter = WordCounter{}
	}
	return &service{
		cfg:     cfg,
		model:   model,
		counter: counter,
		logger:  logger.With("component", "campaign.service"),
	}
}

func (s *service) Generate(ctx context.Context, data insights.LocationInsights, storeType string) (Draft, error) {
	prompt := s.buildGeneratePrompt(data, storeType)
	s.logger.Debug("generating campaigns", "zipcode", data.ZipCode, "stores", len(data.Stores), "promptTokens", s.counter.Count(prompt))

	completion, err := s.model.Generate(ctx, prompt)
	if err != nil {
		return Draft{}, apperrors.Wrap(apperrors.CodeLLMError, MsgGenerateFailed, err)
	}
	metrics.AddTokens(completion.Usage)
	if strings.TrimSpace(completion.Text) == "" {
		return Draft{}, apperrors.Wrap(apperrors.CodeLLMError, MsgGenerateFailed, errors.New("model returned an empty response"))
	}
	return Draft{Text: completion.Text, Usage: completion.Usage}, nil
}

func (s *service) Select(ctx context.Context, draft string) (Selection, error) {
	if strings.TrimSpace(draft) == "" {
		return Selection{}, apperrors.Wrap(apperrors.CodeInvalidInput, "campaign draft cannot be empty", nil)
	}

	basePrompt := s.buildSelectPrompt(draft)
	prompt := basePrompt
	var selection Selection
	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxSelectAttempts; attempt++ {
		completion, err := s.model.Generate(ctx, prompt)
		if err != nil {
			return selection, apperrors.Wrap(apperrors.CodeLLMError, MsgSelectFailed, err)
		}
		metrics.AddTokens(completion.Usage)
		selection.Attempts = attempt
		selection.Raw = completion.Text
		selection.Usage = selection.Usage.Add(completion.Usage)

		campaigns, err := ParseSelection(completion.Text, s.cfg.SelectCount)
		if err == nil {
			selection.Campaigns = campaigns
			return selection, nil
		}
		lastErr = err
		s.logger.Warn("top campaigns rejected", "attempt", attempt, "error", err)
		prompt = s.buildRepairPrompt(basePrompt, completion.Text, err)
	}
	return selection, apperrors.Wrap(apperrors.CodeParseError, MsgParseFailed, lastErr)
}

// WordCounter approximates tokens as 4/3 of the whitespace separated words.
type WordCounter struct{}

func (WordCounter) Count(text string) int {
	words := len(strings.Fields(text))
	return (words*4 + 2) / 3
}
