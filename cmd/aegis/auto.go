package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var autoRunOnce bool

var autoCmd = &cobra.Command{
	Use:   "auto",
	Short: "run the scheduled loop: tiered fetch + recommendation batch every 20 minutes, daily price tracking, and the status server",
	RunE:  runAuto,
}

func init() {
	autoCmd.Flags().BoolVar(&autoRunOnce, "once", false, "run the fetch-and-recommend pass once and exit, instead of scheduling")
}

func runAuto(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if autoRunOnce {
		tickers, err := app.Tickers.ListActive(ctx, "")
		if err != nil {
			return err
		}
		codes := make([]string, len(tickers))
		for i, t := range tickers {
			codes[i] = t.Code
		}
		app.Orchestrator.Run(ctx, app.Fetchers, codes)
		summary, err := app.Batch.Run(ctx, time.Now())
		if err != nil {
			return err
		}
		app.Log.Info().Str("batch", summary.BatchID).Int("persisted", summary.Persisted).
			Int("skipped", summary.Skipped).Msg("single auto pass complete")
		return nil
	}

	go func() {
		if err := app.Server.Start(); err != nil {
			app.Log.Error().Err(err).Msg("status server stopped")
		}
	}()

	app.Scheduler.Start()
	app.Log.Info().Msg("auto mode running: scheduled fetch/recommend every cycle, status server serving /healthz")

	<-ctx.Done()

	app.Log.Info().Msg("shutting down")
	app.Scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return app.Server.Shutdown(shutdownCtx)
}
