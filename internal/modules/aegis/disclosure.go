package aegis

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/aegis-kr/internal/database"
	"github.com/rs/zerolog"
)

// disclosureImpact is one keyword-matched filing's signed contribution to
// the Disclosure analyser's aggregate score, and whether it is a hard-veto
// halt trigger.
type disclosureImpact struct {
	label       string
	score       float64
	tradingHalt bool
}

// disclosureKeywords maps Korean DART filing-title substrings to their
// event label and score impact. Checked in order; first match wins.
var disclosureKeywords = []struct {
	keywords []string
	impact   disclosureImpact
}{
	// halt triggers — hard veto regardless of aggregate score
	{[]string{"횡령", "배임"}, disclosureImpact{"embezzlement", -2, true}},
	{[]string{"거래정지", "매매거래정지"}, disclosureImpact{"trading_suspension", -2, true}},
	{[]string{"상장폐지"}, disclosureImpact{"delisting_halt", -2, true}},

	// positive events
	{[]string{"공급계약", "수주"}, disclosureImpact{"supply_contract", 2, false}},
	{[]string{"자기주식취득", "자사주매입", "자기주식매입", "자기주식신탁"}, disclosureImpact{"share_buyback", 1.5, false}},
	{[]string{"배당", "배당금"}, disclosureImpact{"dividend", 1, false}},
	{[]string{"사채취득", "조기상환", "사채상환"}, disclosureImpact{"bond_redemption", 1, false}},
	{[]string{"신규사업", "신제품", "신규계약"}, disclosureImpact{"new_business", 0.8, false}},
	{[]string{"인수", "합병", "경영권"}, disclosureImpact{"merger", 0.8, false}},
	{[]string{"MOU", "양해각서", "업무협약", "파트너십", "제휴"}, disclosureImpact{"partnership", 0.6, false}},
	{[]string{"특허", "기술이전"}, disclosureImpact{"patent", 0.5, false}},
	{[]string{"대량보유상황보고", "주식등의대량보유"}, disclosureImpact{"large_holding_report", 0.3, false}},

	// negative events (non-halt)
	{[]string{"유상증자", "무상증자", "증자결정"}, disclosureImpact{"capital_increase", -0.5, false}},
	{[]string{"전환사채", "CB발행", "신주인수권"}, disclosureImpact{"convertible_bond", -0.5, false}},
	{[]string{"소송", "소제기", "피소", "손해배상"}, disclosureImpact{"lawsuit", -1, false}},
	{[]string{"감사의견", "감사보고서", "한정의견", "부적정의견"}, disclosureImpact{"audit_opinion", -1.5, false}},
	{[]string{"행정처분", "과징금", "제재", "시정명령"}, disclosureImpact{"regulatory_action", -1, false}},
	{[]string{"사임", "해임", "퇴임"}, disclosureImpact{"management_exit", -0.5, false}},
	{[]string{"리콜", "자진회수"}, disclosureImpact{"recall", -1, false}},
}

// classifyDisclosureTitle returns the impact of the first keyword group
// that matches title, or a zero-score general announcement if none match.
func classifyDisclosureTitle(title string) disclosureImpact {
	for _, group := range disclosureKeywords {
		if containsAny(title, group.keywords...) {
			return group.impact
		}
	}
	return disclosureImpact{label: "general_announcement", score: 0}
}

func containsAny(s string, keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// DisclosureAnalyser scores the last 30 days of DART filings by keyword
// match, surfacing a hard trading_halt veto flag when any filing matches
// a fraud, embezzlement, or suspension keyword.
type DisclosureAnalyser struct {
	Blobs *database.BlobStore
	Log   zerolog.Logger
}

func NewDisclosureAnalyser(blobs *database.BlobStore, log zerolog.Logger) *DisclosureAnalyser {
	return &DisclosureAnalyser{Blobs: blobs, Log: log.With().Str("analyser", "disclosure").Logger()}
}

func (a *DisclosureAnalyser) Name() string { return "disclosure" }

func (a *DisclosureAnalyser) Analyse(ctx context.Context, ticker string, asOf time.Time) (AnalyserResult, error) {
	blob, err := a.Blobs.Latest(ctx, ticker, "disclosure_filings")
	if err != nil {
		return AnalyserResult{Name: a.Name(), Score: 0, Grade: GradeAverage, Notes: "no disclosure data"}, nil
	}

	cutoff := asOf.AddDate(0, 0, -30)
	rawItems, _ := blob.Content["items"].([]any)

	var total float64
	var n int
	var halt bool
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
		if filedAt, ok := item["filed_at"].(string); ok && filedAt != "" {
			if t, err := time.Parse("2006-01-02", filedAt); err == nil && t.Before(cutoff) {
				continue
			}
		}

		impact := classifyDisclosureTitle(title)
		total += impact.score
		n++
		if impact.label != "general_announcement" {
			events = append(events, impact.label)
		}
		if impact.tradingHalt {
			halt = true
		}
	}

	var score float64
	if n > 0 {
		score = clampScore(total)
	}

	result := AnalyserResult{
		Name:      a.Name(),
		Score:     score,
		Grade:     gradeFromScore(score),
		KeyEvents: events,
		Notes:     "filings_matched=" + strconv.Itoa(n),
	}
	if halt {
		result.Grade = GradeDanger
		result.Flags = map[string]any{"trading_halt": true}
	}
	return result, nil
}
