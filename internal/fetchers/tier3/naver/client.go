// Package naver scrapes Naver Finance's per-ticker investor-trend page as a
// Tier-3 fetcher.Fetcher — a stable HTML endpoint with no documented API.
package naver

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/aristath/aegis-kr/internal/domain"
	"github.com/rs/zerolog"
)

const pageURLTemplate = "https://finance.naver.com/item/frgn.naver?code=%s"

// dataRowSel is compiled once; the scraper runs it per candidate ticker.
var dataRowSel = cascadia.MustCompile("table.type2 tr")

// SupplyDemandScraper scrapes the foreign/institution net-buy table.
type SupplyDemandScraper struct {
	HTTP *http.Client
	log  zerolog.Logger
}

func NewSupplyDemandScraper(log zerolog.Logger) *SupplyDemandScraper {
	return &SupplyDemandScraper{
		HTTP: &http.Client{Timeout: 15 * time.Second},
		log:  log.With().Str("client", "naver-supply-demand").Logger(),
	}
}

func (s *SupplyDemandScraper) SiteID() string   { return "naver-frgn" }
func (s *SupplyDemandScraper) DomainID() string { return "supply_demand" }
func (s *SupplyDemandScraper) DataType() string { return "supply_demand_daily" }

// Fetch scrapes the most recent row of the investor-trend table.
func (s *SupplyDemandScraper) Fetch(ctx context.Context, ticker string) (map[string]any, error) {
	url := fmt.Sprintf(pageURLTemplate, ticker)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domain.NewFetchError(s.SiteID(), ticker, domain.FetchTransient, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; aegis-collector/1.0)")

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return nil, domain.NewFetchError(s.SiteID(), ticker, domain.FetchTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.NewFetchError(s.SiteID(), ticker, domain.FetchNotFound, fmt.Errorf("page not found for %s", ticker))
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return nil, domain.NewFetchError(s.SiteID(), ticker, domain.FetchBlocked, fmt.Errorf("blocked: status %d", resp.StatusCode))
	case resp.StatusCode >= 500:
		return nil, domain.NewFetchError(s.SiteID(), ticker, domain.FetchTransient, fmt.Errorf("server error: %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, domain.NewFetchError(s.SiteID(), ticker, domain.FetchTransient, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, domain.NewFetchError(s.SiteID(), ticker, domain.FetchParse, err)
	}

	row := doc.FindMatcher(dataRowSel).FilterFunction(func(_ int, sel *goquery.Selection) bool {
		return sel.Find("td").Length() >= 8
	}).First()
	if row.Length() == 0 {
		return nil, domain.NewFetchError(s.SiteID(), ticker, domain.FetchParse, fmt.Errorf("no data rows found"))
	}

	cells := row.Find("td")
	foreignNet := parseKRXInt(cells.Eq(6).Text())
	institutionNet := parseKRXInt(cells.Eq(5).Text())

	return map[string]any{
		"ticker":          ticker,
		"foreign_net":     foreignNet,
		"institution_net": institutionNet,
	}, nil
}

// parseKRXInt strips Naver's thousands separators and sign formatting.
func parseKRXInt(s string) int64 {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "+", "")
	if s == "" || s == "-" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
