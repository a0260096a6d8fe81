package fetcher

import (
	"math"
	"time"

	"github.com/aristath/aegis-kr/internal/config"
)

// backoffDelay computes the wait after failed attempt n (1-indexed), i.e.
// before attempt n+1, under preset p: BaseDelay * Multiplier^(n-1).
func backoffDelay(p config.RetryPreset, attempt int) time.Duration {
	if attempt <= 1 {
		return p.BaseDelay
	}
	factor := math.Pow(p.Multiplier, float64(attempt-1))
	return time.Duration(float64(p.BaseDelay) * factor)
}
