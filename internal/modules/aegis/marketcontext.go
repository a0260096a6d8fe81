package aegis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/aegis-kr/internal/database"
	"github.com/rs/zerolog"
)

// Mood is the market-wide sentiment bucket the MarketContext analyser
// derives from breadth (advancers/decliners) across the universe.
type Mood string

const (
	MoodStrongBullish Mood = "strong_bullish"
	MoodBullish       Mood = "bullish"
	MoodNeutral       Mood = "neutral"
	MoodBearish       Mood = "bearish"
	MoodStrongBearish Mood = "strong_bearish"
)

// marketContextCacheTTL matches the analyser's 5-minute cache window —
// breadth and sector heat rarely change meaningfully faster than that.
const marketContextCacheTTL = 5 * time.Minute

// MarketContextAnalyser is ticker-independent: it scores the market as a
// whole from advance/decline breadth and per-sector heat, cached for 5
// minutes since every candidate in a batch shares the same reading.
type MarketContextAnalyser struct {
	OHLCV *database.OHLCVStore
	Log   zerolog.Logger

	mu       sync.Mutex
	cachedAt time.Time
	cached   AnalyserResult
}

func NewMarketContextAnalyser(ohlcv *database.OHLCVStore, log zerolog.Logger) *MarketContextAnalyser {
	return &MarketContextAnalyser{OHLCV: ohlcv, Log: log.With().Str("analyser", "market_context").Logger()}
}

func (a *MarketContextAnalyser) Name() string { return "market_context" }

func (a *MarketContextAnalyser) Analyse(ctx context.Context, _ string, asOf time.Time) (AnalyserResult, error) {
	a.mu.Lock()
	if !a.cachedAt.IsZero() && asOf.Sub(a.cachedAt) < marketContextCacheTTL {
		cached := a.cached
		a.mu.Unlock()
		return cached, nil
	}
	a.mu.Unlock()

	changes, err := a.OHLCV.LatestChanges(ctx)
	if err != nil || len(changes) == 0 {
		return AnalyserResult{Name: a.Name(), Score: 0, Grade: GradeAverage, Notes: "no breadth data"}, nil
	}

	var advancers, decliners int
	sectorSum := make(map[string]float64)
	sectorCount := make(map[string]int)
	for _, c := range changes {
		if c.PctChange > 0 {
			advancers++
		} else if c.PctChange < 0 {
			decliners++
		}
		sectorSum[c.Sector] += c.PctChange
		sectorCount[c.Sector]++
	}

	var adr float64
	if decliners > 0 {
		adr = float64(advancers) / float64(decliners)
	} else if advancers > 0 {
		adr = float64(advancers)
	}

	mood, score := moodFromADR(adr)

	hottest, coldest := hottestAndColdestSectors(sectorSum, sectorCount)

	result := AnalyserResult{
		Name:      a.Name(),
		Score:     clampScore(score),
		Grade:     gradeFromScore(score),
		Notes:     fmt.Sprintf("adr=%.2f mood=%s", adr, mood),
		KeyEvents: []string{"hottest:" + hottest, "coldest:" + coldest},
		Flags:     map[string]any{"mood": string(mood), "advancers": advancers, "decliners": decliners},
	}

	a.mu.Lock()
	a.cached = result
	a.cachedAt = asOf
	a.mu.Unlock()

	return result, nil
}

// moodFromADR maps the advance/decline ratio onto the five mood buckets
// and a signed score contribution.
func moodFromADR(adr float64) (Mood, float64) {
	switch {
	case adr >= 2.5:
		return MoodStrongBullish, 2
	case adr >= 1.5:
		return MoodBullish, 1
	case adr >= 0.67:
		return MoodNeutral, 0
	case adr >= 0.4:
		return MoodBearish, -1
	default:
		return MoodStrongBearish, -2
	}
}

func hottestAndColdestSectors(sum map[string]float64, count map[string]int) (hottest, coldest string) {
	var best, worst float64
	first := true
	for sector, total := range sum {
		if count[sector] == 0 {
			continue
		}
		avg := total / float64(count[sector])
		if first || avg > best {
			best = avg
			hottest = sector
		}
		if first || avg < worst {
			worst = avg
			coldest = sector
		}
		first = false
	}
	return hottest, coldest
}
