// Package llm wraps the Gemini client used by the News analyser's external
// sentiment model and the recommendation lifecycle's retrospective oracle.
// Both call sites depend only on this package's small surface, never on
// google.golang.org/genai directly, so the vendor stays replaceable.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/aristath/aegis-kr/pkg/logger"
)

// Config configures a Gemini-backed Client.
type Config struct {
	APIKey  string
	Model   string // defaults to "gemini-2.0-flash"
	Timeout time.Duration
}

// Client is a thin synchronous wrapper around genai.Client's GenerateContent
// call, matching the single-shot request/response shape both call sites need.
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	log     zerolog.Logger
}

// NewClient builds a Client. GEMINI_API_KEY is optional process-wide, so
// an empty key is an error here; without a Client the News analyser scores
// by keyword only and the retrospective job is disabled.
func NewClient(ctx context.Context, cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: GEMINI_API_KEY not configured")
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: failed to initialise genai client: %w", err)
	}

	return &Client{
		client:  c,
		model:   model,
		timeout: timeout,
		log:     logger.Component(log, "llm").With().Str("model", model).Logger(),
	}, nil
}

// Generate sends a single system+user prompt pair and returns the
// concatenated text of the first candidate with non-empty output.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cfg := &genai.GenerateContentConfig{Temperature: genai.Ptr(float32(0.2))}
	if systemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	contents := []*genai.Content{
		{Role: genai.RoleUser, Parts: []*genai.Part{genai.NewPartFromText(userPrompt)}},
	}

	resp, err := c.client.Models.GenerateContent(timeoutCtx, c.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("llm: generate content failed: %w", err)
	}

	var out strings.Builder
	if resp != nil {
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if part.Text != "" {
					out.WriteString(part.Text)
				}
			}
			if out.Len() > 0 {
				break
			}
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("llm: empty response")
	}
	return out.String(), nil
}
