package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aristath/aegis-kr/internal/domain"
)

var registerMarket string

var registerCmd = &cobra.Command{
	Use:   "register <code> [name]",
	Short: "add or update a ticker in the tracked universe",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runRegister,
}

func init() {
	registerCmd.Flags().StringVar(&registerMarket, "market", "KOSPI", "exchange: KOSPI|KOSDAQ|KONEX")
}

func runRegister(cmd *cobra.Command, args []string) error {
	code := args[0]
	if len(code) != 6 {
		return newInvalidInputError("ticker code must be 6 characters, got %q", code)
	}
	name := code
	if len(args) > 1 {
		name = args[1]
	}

	market := domain.Market(registerMarket)
	switch market {
	case domain.MarketKOSPI, domain.MarketKOSDAQ, domain.MarketKONEX:
	default:
		return newInvalidInputError("unknown market %q", registerMarket)
	}

	ticker := domain.Ticker{Code: code, Name: name, Market: market}
	if err := app.Tickers.Upsert(cmd.Context(), ticker); err != nil {
		return err
	}

	fmt.Printf("registered %s (%s) on %s\n", code, name, market)
	return nil
}
