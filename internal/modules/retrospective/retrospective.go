// Package retrospective builds the AI post-mortem for a failed
// Recommendation horizon: a prompt contract (original rationale, realised
// return, drawdown, optional post-recommendation headlines), an external
// LLM call, and a validating parser for the structured JSON response
// .
package retrospective

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aristath/aegis-kr/internal/domain"
)

// PromptInput is everything the retrospective prompt needs about one
// failed Recommendation×horizon.
type PromptInput struct {
	Ticker      string
	RecDate     string
	RecPrice    float64
	Rationale   string
	Grade       domain.Grade
	DaysHeld    int
	ReturnRate  float64
	MaxDrawdown float64
	Headlines   []string // optional post-recommendation news, best-effort
}

// Generator is the contract the retrospective job calls through — it never
// touches google.golang.org/genai directly, keeping the vendor replaceable.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

const systemPrompt = `You are a disciplined equity analyst performing a retrospective on a
trading recommendation that underperformed. Respond with ONLY a JSON object
with exactly these fields: "missed_risks" (string), "actual_cause" (string),
"lesson" (string), "improvement" (string), "confidence_adjustment" (number
between -10 and 10). Do not wrap the JSON in markdown fences.`

// BuildPrompt renders PromptInput into the user-turn text sent to the LLM.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticker: %s\n", in.Ticker)
	fmt.Fprintf(&b, "Recommended on %s at price %.2f, grade %s\n", in.RecDate, in.RecPrice, in.Grade)
	fmt.Fprintf(&b, "Original rationale: %s\n", in.Rationale)
	fmt.Fprintf(&b, "At the %d-day horizon: return %.2f%%, max drawdown %.2f%%\n",
		in.DaysHeld, in.ReturnRate*100, in.MaxDrawdown*100)
	if len(in.Headlines) > 0 {
		b.WriteString("Post-recommendation headlines:\n")
		for _, h := range in.Headlines {
			fmt.Fprintf(&b, "- %s\n", h)
		}
	}
	return b.String()
}

// response is the wire shape the LLM must return; ParseResponse rejects
// anything that doesn't unmarshal cleanly into it.
type response struct {
	MissedRisks          string  `json:"missed_risks"`
	ActualCause          string  `json:"actual_cause"`
	Lesson               string  `json:"lesson"`
	Improvement          string  `json:"improvement"`
	ConfidenceAdjustment float64 `json:"confidence_adjustment"`
}

// ErrUnparseable marks an LLM response that fails JSON validation — the
// caller logs it as ai_error and skips the retrospective with no partial
// write.
var ErrUnparseable = fmt.Errorf("retrospective: response did not parse as the required JSON contract")

// ParseResponse validates and converts a raw LLM response into the
// persisted Retrospective fields. confidence_adjustment is clamped to
// [-10,+10] per the data model invariant.
func ParseResponse(recID int64, daysHeld int, raw string) (domain.Retrospective, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var r response
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return domain.Retrospective{}, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	if r.MissedRisks == "" || r.ActualCause == "" || r.Lesson == "" {
		return domain.Retrospective{}, ErrUnparseable
	}

	adj := r.ConfidenceAdjustment
	if adj > 10 {
		adj = 10
	}
	if adj < -10 {
		adj = -10
	}

	return domain.Retrospective{
		RecID:                recID,
		DaysHeld:             daysHeld,
		MissedRisks:          r.MissedRisks,
		ActualCause:          r.ActualCause,
		Lesson:               r.Lesson,
		Improvement:          r.Improvement,
		ConfidenceAdjustment: adj,
	}, nil
}

// Build runs the full prompt→LLM→parse sequence for one failed horizon.
func Build(ctx context.Context, gen Generator, recID int64, in PromptInput) (domain.Retrospective, error) {
	raw, err := gen.Generate(ctx, systemPrompt, BuildPrompt(in))
	if err != nil {
		return domain.Retrospective{}, fmt.Errorf("retrospective: generation failed: %w", err)
	}
	return ParseResponse(recID, in.DaysHeld, raw)
}
