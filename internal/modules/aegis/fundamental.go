package aegis

import (
	"context"
	"time"

	"github.com/aristath/aegis-kr/internal/database"
	"github.com/rs/zerolog"
)

// FundamentalAnalyser grades valuation and leverage. A debt ratio over
// 300% fails the filter outright regardless of the other ratios.
type FundamentalAnalyser struct {
	Fundamentals *database.FundamentalsStore
	Log          zerolog.Logger
}

func NewFundamentalAnalyser(fundamentals *database.FundamentalsStore, log zerolog.Logger) *FundamentalAnalyser {
	return &FundamentalAnalyser{Fundamentals: fundamentals, Log: log.With().Str("analyser", "fundamental").Logger()}
}

func (a *FundamentalAnalyser) Name() string { return "fundamental" }

func (a *FundamentalAnalyser) Analyse(ctx context.Context, ticker string, asOf time.Time) (AnalyserResult, error) {
	f, err := a.Fundamentals.Get(ctx, ticker)
	if err != nil {
		return AnalyserResult{Name: a.Name(), Score: 0, Grade: GradeAverage, Notes: "no fundamentals data"}, nil
	}

	if f.DebtRatio > 300 {
		return AnalyserResult{
			Name:  a.Name(),
			Score: -2,
			Grade: GradeDanger,
			Notes: "debt_ratio exceeds 300%",
			Flags: map[string]any{"pass_filter": false},
		}, nil
	}

	var score float64
	if f.ROE >= 15 {
		score += 0.5
	}
	if f.PER > 0 && f.PER < 10 {
		score += 0.2
	}
	if f.PBR > 0 && f.PBR < 1 {
		score += 0.2
	}

	score = clampScore(score)
	return AnalyserResult{
		Name:  a.Name(),
		Score: score,
		Grade: gradeFromScore(score),
		Notes: "roe/per/pbr within screened bounds",
		Flags: map[string]any{"pass_filter": true},
	}, nil
}
