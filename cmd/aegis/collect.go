package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aristath/aegis-kr/internal/domain"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "stream realtime ticks for the active universe until interrupted",
	RunE:  runCollect,
}

func runCollect(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tickers, err := app.Tickers.ListActive(ctx, "")
	if err != nil {
		return err
	}
	if len(tickers) == 0 {
		fmt.Println("no active tickers registered, nothing to collect")
		return nil
	}
	codes := make([]string, len(tickers))
	for i, t := range tickers {
		codes[i] = t.Code
	}

	client := app.brokerClient(func(t domain.Tick) {
		if err := app.Ticks.Insert(ctx, t); err != nil {
			app.Log.Error().Err(err).Str("ticker", t.Ticker).Msg("failed to persist tick")
		}
	})

	app.Log.Info().Int("tickers", len(codes)).Msg("starting realtime tick collection")
	err = client.Run(ctx, codes)
	if err != nil && ctx.Err() != nil {
		return nil // interrupted by signal or parent context, not a failure
	}
	return err
}
