package tokens

import (
	"log/slog"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/yanqian/location-insights/internal/domain/campaign"
)

// Counter counts prompt tokens with a BPE encoding, or estimates them from
// word counts when the encoding could not be loaded.
type Counter struct {
	encoding *tiktoken.Tiktoken
}

// NewCounter loads the named encoding. Loading may need network access to
// fetch the ranks file, so failures degrade to the word estimate.
func NewCounter(encoding string, logger *slog.Logger) *Counter {
	if strings.TrimSpace(encoding) == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		logger.Warn("tokenizer unavailable, estimating from words", "encoding", encoding, "error", err)
		return &Counter{}
	}
	return &Counter{encoding: enc}
}

// Exact reports whether counts come from a real tokenizer.
func (c *Counter) Exact() bool {
	return c != nil && c.encoding != nil
}

// Count returns the token count of text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.Exact() {
		return len(c.encoding.Encode(text, nil, nil))
	}
	return campaign.WordCounter{}.Count(text)
}

var _ campaign.TokenCounter = (*Counter)(nil)
