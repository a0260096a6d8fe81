// Package browser drives a single headless Chrome instance via chromedp to
// scrape pages that require JS rendering — the Tier-4 fallback, serialised
// to one concurrent fetch by the orchestrator's tier-4 subpool (size 1).
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/aegis-kr/internal/domain"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

// ConsensusClient scrapes a broker-report aggregator page that only
// renders its target-price table via client-side JS.
type ConsensusClient struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	log      zerolog.Logger
}

// NewConsensusClient launches the single shared headless browser instance.
// Callers must call Close when the process shuts down.
func NewConsensusClient(log zerolog.Logger) *ConsensusClient {
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(),
		append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", true))...)
	return &ConsensusClient{allocCtx: allocCtx, cancel: cancel, log: log.With().Str("client", "browser-consensus").Logger()}
}

func (c *ConsensusClient) Close() { c.cancel() }

func (c *ConsensusClient) SiteID() string   { return "browser-consensus-reports" }
func (c *ConsensusClient) DomainID() string { return "consensus" }
func (c *ConsensusClient) DataType() string { return "consensus_report_page" }

// Fetch renders the per-ticker report page and scrapes the target-price cell.
func (c *ConsensusClient) Fetch(ctx context.Context, ticker string) (map[string]any, error) {
	tabCtx, cancel := chromedp.NewContext(c.allocCtx)
	defer cancel()

	tabCtx, timeoutCancel := context.WithTimeout(tabCtx, 25*time.Second)
	defer timeoutCancel()

	url := fmt.Sprintf("https://finance.naver.com/item/coinfo.naver?code=%s", ticker)

	var targetPriceText string
	err := chromedp.Run(tabCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "ko-KR,ko;q=0.9"}),
		chromedp.Navigate(url),
		chromedp.WaitVisible(`#tab_con1`, chromedp.ByID),
		chromedp.Text(`.gray`, &targetPriceText, chromedp.NodeVisible),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.NewFetchError(c.SiteID(), ticker, domain.FetchTransient, ctx.Err())
		}
		return nil, domain.NewFetchError(c.SiteID(), ticker, domain.FetchParse, err)
	}

	return map[string]any{
		"ticker":            ticker,
		"target_price_text": targetPriceText,
	}, nil
}
