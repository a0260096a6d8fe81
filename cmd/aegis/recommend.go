package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "run one screen, collect, analyse, and score pass and print the resulting recommendations",
	RunE:  runRecommend,
}

func runRecommend(cmd *cobra.Command, args []string) error {
	summary, err := app.Batch.Run(cmd.Context(), time.Now())
	if err != nil {
		return err
	}

	fmt.Printf("batch %s: %d recommendations persisted, %d skipped\n",
		summary.BatchID, summary.Persisted, summary.Skipped)
	return nil
}
