package aegis

import (
	"context"
	"strconv"
	"time"

	"github.com/aristath/aegis-kr/internal/database"
	"github.com/rs/zerolog"
)

// SupplyDemandAnalyser scores institutional and foreign net-buying
// patterns over a trailing 20-day window.
type SupplyDemandAnalyser struct {
	Flows *database.SupplyDemandStore
	Log   zerolog.Logger
}

func NewSupplyDemandAnalyser(flows *database.SupplyDemandStore, log zerolog.Logger) *SupplyDemandAnalyser {
	return &SupplyDemandAnalyser{Flows: flows, Log: log.With().Str("analyser", "supply_demand").Logger()}
}

func (a *SupplyDemandAnalyser) Name() string { return "supply_demand" }

func (a *SupplyDemandAnalyser) Analyse(ctx context.Context, ticker string, asOf time.Time) (AnalyserResult, error) {
	rows, err := a.Flows.Recent(ctx, ticker, 20)
	if err != nil || len(rows) == 0 {
		return AnalyserResult{Name: a.Name(), Score: 0, Grade: GradeAverage, Notes: "no supply/demand data"}, nil
	}

	var score float64
	var events []string

	last := rows[len(rows)-1]
	if last.ForeignNet > 0 && last.InstitutionNet > 0 {
		score += 1
		events = append(events, "dual_buy")
	}
	if last.ForeignNet < 0 && last.InstitutionNet < 0 {
		score -= 1
		events = append(events, "dual_sell")
	}

	streak := 0
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].ForeignNet > 0 && rows[i].InstitutionNet > 0 {
			streak++
		} else {
			break
		}
	}
	if streak >= 3 {
		score += 0.5
		events = append(events, "buy_streak")
	}

	score = clampScore(score)
	return AnalyserResult{
		Name:      a.Name(),
		Score:     score,
		Grade:     gradeFromScore(score),
		KeyEvents: events,
		Notes:     "streak_days=" + strconv.Itoa(streak),
	}, nil
}
