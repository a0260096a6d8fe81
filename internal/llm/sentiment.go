package llm

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// SentimentModel scores a single headline's sentiment in [-1,+1]. It
// satisfies aegis.SentimentModel structurally, without either package
// importing the other.
type SentimentModel struct {
	client *Client
}

// NewSentimentModel wraps client as a headline sentiment scorer. A nil
// client reports a clear error rather than panicking — the News analyser
// falls back to its keyword-only scorer when construction fails.
func NewSentimentModel(client *Client) *SentimentModel {
	return &SentimentModel{client: client}
}

const sentimentSystemPrompt = `You score the sentiment of a Korean stock-market headline for the
company it concerns. Respond with exactly one number between -1.00 and 1.00,
nothing else: -1 is maximally bearish, 0 is neutral, +1 is maximally bullish.`

// Score asks Gemini to rate a headline's sentiment in [-1,+1], parsing the
// bare numeric response. A malformed response is treated as neutral rather
// than propagated, matching the analyser's "default to neutral" contract.
func (m *SentimentModel) Score(ctx context.Context, title string) (float64, error) {
	if m == nil || m.client == nil {
		return 0, fmt.Errorf("llm: sentiment model not configured")
	}

	resp, err := m.client.Generate(ctx, sentimentSystemPrompt, title)
	if err != nil {
		return 0, err
	}

	resp = strings.TrimSpace(resp)
	v, err := strconv.ParseFloat(resp, 64)
	if err != nil {
		return 0, nil
	}
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return v, nil
}
