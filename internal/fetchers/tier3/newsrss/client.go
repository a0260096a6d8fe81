// Package newsrss ingests ticker-tagged news via RSS, a Tier-3 source —
// stable but not a documented API.
package newsrss

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/aristath/aegis-kr/internal/domain"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
)

const feedURLTemplate = "https://news.google.com/rss/search?q=%s+%%EC%%A3%%BC%%EC%%8B%%9D&hl=ko&gl=KR&ceid=KR:ko"

// Client ingests a news-search RSS feed scoped to a ticker's company name.
type Client struct {
	Parser *gofeed.Parser
	log    zerolog.Logger
}

func NewClient(log zerolog.Logger) *Client {
	p := gofeed.NewParser()
	p.Client = &http.Client{Timeout: 15 * time.Second}
	return &Client{Parser: p, log: log.With().Str("client", "news-rss").Logger()}
}

func (c *Client) SiteID() string   { return "news-rss" }
func (c *Client) DomainID() string { return "news" }
func (c *Client) DataType() string { return "news_items" }

// Fetch searches the feed for the string it is given. The collector passes
// the 6-digit ticker code, and the blob is stored under that same key,
// which is what the News analyser looks up.
func (c *Client) Fetch(ctx context.Context, companyName string) (map[string]any, error) {
	feedURL := fmt.Sprintf(feedURLTemplate, url.QueryEscape(companyName))

	feed, err := c.Parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, domain.NewFetchError(c.SiteID(), companyName, domain.FetchTransient, err)
	}

	items := make([]map[string]any, 0, len(feed.Items))
	for _, item := range feed.Items {
		var publishedAt string
		if item.PublishedParsed != nil {
			publishedAt = item.PublishedParsed.Format(time.RFC3339)
		}
		items = append(items, map[string]any{
			"title":        item.Title,
			"url":          item.Link,
			"published_at": publishedAt,
		})
	}

	return map[string]any{
		"source":             "google-news-rss",
		"items":              items,
		"raw_count":          len(items),
		"duplicates_removed": 0, // dedup happens in the News Sentiment analyser, not the fetcher
	}, nil
}
