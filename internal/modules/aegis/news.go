package aegis

import (
	"context"
	"strings"
	"time"

	"github.com/aristath/aegis-kr/internal/database"
	"github.com/rs/zerolog"
)

// priorityKeywords rank the Korean headline terms worth spending an
// external sentiment call on; everything else gets keyword scoring only.
var priorityKeywords = []string{"실적", "투자", "계약", "소송", "리콜"}

// tierASources get the external sentiment model regardless of keyword match.
var tierASources = map[string]bool{
	"google-news-rss": false, // the only wired source today is not tier-A
}

// positiveNewsKeywords / negativeNewsKeywords back the keyword-only fallback
// score for headlines that don't qualify for the external sentiment model.
var positiveNewsKeywords = []string{"호실적", "흑자전환", "수주", "신고가", "최대실적"}
var negativeNewsKeywords = []string{"적자", "급락", "리콜", "소송", "횡령", "부도"}

// SentimentModel scores a single headline's sentiment in [-1,+1]. The
// keyword-only fallback implements it directly; a caller may inject an
// LLM-backed implementation for priority/tier-A items.
type SentimentModel interface {
	Score(ctx context.Context, title string) (float64, error)
}

type keywordSentimentModel struct{}

func (keywordSentimentModel) Score(_ context.Context, title string) (float64, error) {
	return keywordNewsScore(title), nil
}

func keywordNewsScore(title string) float64 {
	var score float64
	for _, k := range positiveNewsKeywords {
		if strings.Contains(title, k) {
			score += 0.3
		}
	}
	for _, k := range negativeNewsKeywords {
		if strings.Contains(title, k) {
			score -= 0.3
		}
	}
	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}
	return score
}

func isPriorityHeadline(title string) bool {
	for _, k := range priorityKeywords {
		if strings.Contains(title, k) {
			return true
		}
	}
	return false
}

// NewsAnalyser scores recent news items, de-duplicating near-identical
// headlines and sending only priority or tier-A items to the external
// sentiment model; everything else is scored by keyword match alone.
type NewsAnalyser struct {
	Blobs    *database.BlobStore
	External SentimentModel // invoked only for priority/tier-A headlines
	Log      zerolog.Logger
}

func NewNewsAnalyser(blobs *database.BlobStore, external SentimentModel, log zerolog.Logger) *NewsAnalyser {
	if external == nil {
		external = keywordSentimentModel{}
	}
	return &NewsAnalyser{Blobs: blobs, External: external, Log: log.With().Str("analyser", "news").Logger()}
}

func (a *NewsAnalyser) Name() string { return "news" }

func (a *NewsAnalyser) Analyse(ctx context.Context, ticker string, asOf time.Time) (AnalyserResult, error) {
	blob, err := a.Blobs.Latest(ctx, ticker, "news_items")
	if err != nil {
		return AnalyserResult{Name: a.Name(), Score: 0, Grade: GradeAverage, Notes: "no news data"}, nil
	}

	rawItems, _ := blob.Content["items"].([]any)
	source, _ := blob.Content["source"].(string)

	var titles []string
	var sum float64
	var n int
	var events []string

	for _, raw := range rawItems {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		title, _ := item["title"].(string)
		if title == "" {
			continue
		}
		if isDuplicateTitle(title, titles) {
			continue
		}
		titles = append(titles, title)

		var itemScore float64
		if isPriorityHeadline(title) || tierASources[source] {
			itemScore, _ = a.External.Score(ctx, title)
			events = append(events, "priority:"+truncateTitle(title))
		} else {
			itemScore = keywordNewsScore(title)
		}
		sum += itemScore
		n++
	}

	var score float64
	if n > 0 {
		score = clampScore(sum / float64(n) * 2) // scale [-1,1] aggregate to [-2,2]
	}

	return AnalyserResult{
		Name:      a.Name(),
		Score:     score,
		Grade:     gradeFromScore(score),
		KeyEvents: events,
		Notes:     "deduped items scored",
	}, nil
}

// isDuplicateTitle reports whether title is near-identical (Jaccard token
// similarity ≥0.7) to any title already seen.
func isDuplicateTitle(title string, seen []string) bool {
	for _, s := range seen {
		if titleSimilarity(title, s) >= 0.7 {
			return true
		}
	}
	return false
}

func titleSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	var intersection int
	for t := range setA {
		if setB[t] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	fields := strings.Fields(s)
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

func truncateTitle(title string) string {
	const maxLen = 40
	if len(title) <= maxLen {
		return title
	}
	return title[:maxLen]
}
