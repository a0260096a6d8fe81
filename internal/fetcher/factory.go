package fetcher

import (
	"context"

	"github.com/aristath/aegis-kr/internal/database"
	"github.com/rs/zerolog"
)

// Factory resolves the set of live Fetchers for a tier against the Site
// registry, logging and skipping any fetcher whose site isn't registered
// or isn't active rather than failing the whole run.
type Factory struct {
	Sites *database.SiteStore
	Log   zerolog.Logger
}

// Resolve filters candidates down to those backed by an active, registered
// Site.
func (f *Factory) Resolve(ctx context.Context, candidates []Fetcher) []Fetcher {
	var out []Fetcher
	for _, c := range candidates {
		site, err := f.Sites.Get(ctx, c.SiteID())
		if err != nil {
			f.Log.Warn().Err(err).Str("site", c.SiteID()).Msg("failed to look up site, skipping fetcher")
			continue
		}
		if site == nil {
			f.Log.Warn().Str("site", c.SiteID()).Msg("fetcher references unknown site, skipping")
			continue
		}
		if !site.IsActive {
			f.Log.Info().Str("site", c.SiteID()).Msg("site inactive, skipping fetcher")
			continue
		}
		out = append(out, c)
	}
	return out
}
