// Command aegis is the operator CLI for the Korean-equity data-acquisition
// and recommendation engine: register tickers, record trades, run the
// screen-and-score pipeline on demand, stream realtime ticks, or let the
// scheduler drive it all on a cadence.
package main

import "os"

func main() {
	os.Exit(Execute())
}
