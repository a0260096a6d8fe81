package backtest

// CircuitBreaker halts new entries for the remainder of a simulated day
// once cumulative realised loss or trade count crosses its threshold. It
// is reset at the start of every new bar (one bar == one trading day).
type CircuitBreaker struct {
	MaxLossPct float64 // cumulative daily loss fraction, negative (e.g. -0.02)
	MaxTrades  int

	dayLossPct float64
	dayTrades  int
	halted     bool
}

func NewCircuitBreaker(maxLossPct float64, maxTrades int) *CircuitBreaker {
	return &CircuitBreaker{MaxLossPct: maxLossPct, MaxTrades: maxTrades}
}

// NewDay resets the breaker's per-day counters.
func (c *CircuitBreaker) NewDay() {
	c.dayLossPct = 0
	c.dayTrades = 0
	c.halted = false
}

// CanEnter reports whether a new position may be opened right now.
func (c *CircuitBreaker) CanEnter() bool {
	if c.dayLossPct <= c.MaxLossPct {
		return false
	}
	if c.dayTrades >= c.MaxTrades {
		return false
	}
	return !c.halted
}

// RecordTrade registers one closed trade's realised P&L as a fraction of
// equity, tripping the breaker for the rest of the day if either
// threshold is crossed.
func (c *CircuitBreaker) RecordTrade(pnlPct float64) {
	c.dayTrades++
	c.dayLossPct += pnlPct
	if c.dayLossPct <= c.MaxLossPct || c.dayTrades >= c.MaxTrades {
		c.halted = true
	}
}

// Halted reports whether the breaker tripped at any point today.
func (c *CircuitBreaker) Halted() bool {
	return c.halted
}
