package orchestrator

import (
	"github.com/aristath/aegis-kr/internal/domain"
	"github.com/aristath/aegis-kr/internal/fetcher"
)

// tierFetchers groups registered fetchers by their Site's tier, the
// grouping run() dispatches a tier barrier over.
func tierFetchers(fetchers []fetcher.Fetcher, sites map[string]domain.Site) map[domain.SiteTier][]fetcher.Fetcher {
	out := make(map[domain.SiteTier][]fetcher.Fetcher)
	for _, f := range fetchers {
		site, ok := sites[f.SiteID()]
		if !ok {
			continue
		}
		out[site.Tier] = append(out[site.Tier], f)
	}
	return out
}
