// Package dart adapts the Financial Supervisory Service's DART disclosure
// API (Korea's official corporate-filings feed) as a Tier-2 fetcher.Fetcher.
package dart

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/aristath/aegis-kr/internal/domain"
	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://opendart.fss.or.kr/api/list.json"

// Client fetches recent disclosure filings for one ticker.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
	log     zerolog.Logger
}

func NewClient(apiKey string, log zerolog.Logger) *Client {
	return &Client{
		BaseURL: defaultBaseURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
		log:     log.With().Str("client", "dart-disclosure").Logger(),
	}
}

func (c *Client) SiteID() string   { return "dart" }
func (c *Client) DomainID() string { return "disclosure" }
func (c *Client) DataType() string { return "disclosure_filings" }

type dartFiling struct {
	ReportName string `json:"report_nm"`
	ReceiptNo  string `json:"rcept_no"`
	ReceiptDt  string `json:"rcept_dt"`
	Flr        string `json:"flr_nm"`
}

// Fetch retrieves disclosure filings over the past 30 days for ticker.
func (c *Client) Fetch(ctx context.Context, ticker string) (map[string]any, error) {
	if c.APIKey == "" {
		return nil, domain.NewFetchError(c.SiteID(), ticker, domain.FetchAuth, fmt.Errorf("DART_API_KEY not configured"))
	}

	q := url.Values{}
	q.Set("crtfc_key", c.APIKey)
	q.Set("corp_code", ticker)
	q.Set("bgn_de", time.Now().AddDate(0, 0, -30).Format("20060102"))
	q.Set("page_count", "100")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+q.Encode(), nil)
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

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, domain.NewFetchError(c.SiteID(), ticker, domain.FetchAuth, fmt.Errorf("DART auth rejected"))
	}
	if resp.StatusCode >= 500 {
		return nil, domain.NewFetchError(c.SiteID(), ticker, domain.FetchTransient, fmt.Errorf("DART server error: %d", resp.StatusCode))
	}

	var payload struct {
		Status  string       `json:"status"`
		Message string       `json:"message"`
		List    []dartFiling `json:"list"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		fe := domain.NewFetchError(c.SiteID(), ticker, domain.FetchParse, err)
		fe.Excerpt = truncate(string(body), 200)
		return nil, fe
	}

	if payload.Status != "000" && payload.Status != "013" { // 013 = no data, not an error
		return nil, domain.NewFetchError(c.SiteID(), ticker, domain.FetchTransient, fmt.Errorf("DART status %s: %s", payload.Status, payload.Message))
	}

	items := make([]map[string]any, 0, len(payload.List))
	for _, f := range payload.List {
		items = append(items, map[string]any{
			"title":      f.ReportName,
			"receipt_no": f.ReceiptNo,
			"filed_at":   f.ReceiptDt,
			"filer":      f.Flr,
		})
	}

	return map[string]any{
		"ticker": ticker,
		"items":  items,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
