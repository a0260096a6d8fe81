// Package krx adapts KRX's official market-data endpoints (OHLCV, listing
// metadata) as a Tier-1 fetcher.Fetcher — the vetted, deterministic source
// the orchestrator hydrates first.
package krx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aristath/aegis-kr/internal/domain"
	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://data.krx.co.kr/svc/apis/sto/stk_isu_base_info"

// OHLCVClient fetches daily price bars for one ticker from KRX.
type OHLCVClient struct {
	BaseURL string
	HTTP    *http.Client
	log     zerolog.Logger
}

func NewOHLCVClient(log zerolog.Logger) *OHLCVClient {
	return &OHLCVClient{
		BaseURL: defaultBaseURL,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
		log:     log.With().Str("client", "krx-ohlcv").Logger(),
	}
}

func (c *OHLCVClient) SiteID() string   { return "krx" }
func (c *OHLCVClient) DomainID() string { return "price" }
func (c *OHLCVClient) DataType() string { return "ohlcv_daily" }

type krxBar struct {
	Date   string `json:"BAS_DD"`
	Open   string `json:"TDD_OPNPRC"`
	High   string `json:"TDD_HGPRC"`
	Low    string `json:"TDD_LWPRC"`
	Close  string `json:"TDD_CLSPRC"`
	Volume string `json:"ACC_TRDVOL"`
}

// Fetch pulls the most recent daily bar for ticker. The content map mirrors
// a single domain.OHLCV so a caller can unmarshal it directly.
func (c *OHLCVClient) Fetch(ctx context.Context, ticker string) (map[string]any, error) {
	url := fmt.Sprintf("%s?isu_srt_cd=%s", c.BaseURL, ticker)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domain.NewFetchError(c.SiteID(), ticker, domain.FetchTransient, err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, domain.NewFetchError(c.SiteID(), ticker, domain.FetchTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewFetchError(c.SiteID(), ticker, domain.FetchTransient, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.NewFetchError(c.SiteID(), ticker, domain.FetchNotFound, fmt.Errorf("ticker not found: %s", ticker))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden:
		return nil, domain.NewFetchError(c.SiteID(), ticker, domain.FetchBlocked, fmt.Errorf("blocked: status %d", resp.StatusCode))
	case resp.StatusCode >= 500:
		return nil, domain.NewFetchError(c.SiteID(), ticker, domain.FetchTransient, fmt.Errorf("server error: status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, domain.NewFetchError(c.SiteID(), ticker, domain.FetchTransient, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var payload struct {
		Bars []krxBar `json:"OutBlock_1"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		fe := domain.NewFetchError(c.SiteID(), ticker, domain.FetchParse, err)
		fe.Excerpt = truncate(string(body), 200)
		return nil, fe
	}
	if len(payload.Bars) == 0 {
		return nil, domain.NewFetchError(c.SiteID(), ticker, domain.FetchNotFound, fmt.Errorf("no bars returned"))
	}

	bar := payload.Bars[0]
	return map[string]any{
		"ticker": ticker,
		"date":   bar.Date,
		"open":   bar.Open,
		"high":   bar.High,
		"low":    bar.Low,
		"close":  bar.Close,
		"volume": bar.Volume,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
