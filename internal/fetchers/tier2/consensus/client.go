// Package consensus adapts a broker analyst-consensus API (target prices,
// opinion counts) as a Tier-2 fetcher.Fetcher.
package consensus

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

const defaultBaseURL = "https://api.example-broker.co.kr/v1/consensus"

// Client fetches analyst consensus (target price, opinion counts) for one ticker.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	log     zerolog.Logger
}

func NewClient(log zerolog.Logger) *Client {
	return &Client{
		BaseURL: defaultBaseURL,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
		log:     log.With().Str("client", "broker-consensus").Logger(),
	}
}

func (c *Client) SiteID() string   { return "broker-consensus" }
func (c *Client) DomainID() string { return "consensus" }
func (c *Client) DataType() string { return "consensus_snapshot" }

type consensusPayload struct {
	AvgTargetPrice float64 `json:"avg_target_price"`
	TargetHigh     float64 `json:"target_high"`
	TargetLow      float64 `json:"target_low"`
	BuyCount       int     `json:"buy_count"`
	HoldCount      int     `json:"hold_count"`
	SellCount      int     `json:"sell_count"`
	EPSConsensus   float64 `json:"eps_consensus"`
	PERConsensus   float64 `json:"per_consensus"`
}

// Fetch returns the consensus snapshot as a CollectedBlob content map.
func (c *Client) Fetch(ctx context.Context, ticker string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/"+ticker, nil)
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
		return nil, domain.NewFetchError(c.SiteID(), ticker, domain.FetchNotFound, fmt.Errorf("no consensus for %s", ticker))
	case resp.StatusCode >= 500:
		return nil, domain.NewFetchError(c.SiteID(), ticker, domain.FetchTransient, fmt.Errorf("broker API error: %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, domain.NewFetchError(c.SiteID(), ticker, domain.FetchTransient, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var p consensusPayload
	if err := json.Unmarshal(body, &p); err != nil {
		fe := domain.NewFetchError(c.SiteID(), ticker, domain.FetchParse, err)
		fe.Excerpt = truncate(string(body), 200)
		return nil, fe
	}

	return map[string]any{
		"avg_target_price": p.AvgTargetPrice,
		"target_high":      p.TargetHigh,
		"target_low":       p.TargetLow,
		"buy_count":        p.BuyCount,
		"hold_count":       p.HoldCount,
		"sell_count":       p.SellCount,
		"eps_consensus":    p.EPSConsensus,
		"per_consensus":    p.PERConsensus,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
