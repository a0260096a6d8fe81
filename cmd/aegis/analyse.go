package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var analyseCmd = &cobra.Command{
	Use:   "analyse",
	Short: "print open holdings with unrealized profit/loss",
	RunE:  runAnalyse,
}

func runAnalyse(cmd *cobra.Command, args []string) error {
	holdings, err := app.Holdings.ListAll(cmd.Context())
	if err != nil {
		return err
	}

	if len(holdings) == 0 {
		fmt.Println("no open holdings")
		return nil
	}

	var totalCost, totalValue float64
	fmt.Printf("%-8s %10s %14s %14s %10s %12s\n", "ticker", "qty", "avg_cost", "price", "pnl_pct", "pnl_krw")
	for _, h := range holdings {
		cost := h.AvgBuyPrice * h.Quantity
		value := h.CurrentPrice * h.Quantity
		pnl := value - cost
		pnlPct := 0.0
		if cost != 0 {
			pnlPct = pnl / cost * 100
		}
		totalCost += cost
		totalValue += value
		fmt.Printf("%-8s %10.0f %14.2f %14.2f %9.2f%% %12.0f\n",
			h.Ticker, h.Quantity, h.AvgBuyPrice, h.CurrentPrice, pnlPct, pnl)
	}

	totalPnL := totalValue - totalCost
	totalPnLPct := 0.0
	if totalCost != 0 {
		totalPnLPct = totalPnL / totalCost * 100
	}
	fmt.Printf("\ntotal cost %.0f, total value %.0f, unrealized P/L %.0f (%.2f%%)\n",
		totalCost, totalValue, totalPnL, totalPnLPct)
	return nil
}
