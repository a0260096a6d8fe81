package main

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/aegis-kr/internal/domain"
)

var tradeCmd = &cobra.Command{
	Use:   "trade <free text>",
	Short: `record a fill from free text, e.g. "buy 005930 10 @ 71500"`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTrade,
}

func runTrade(cmd *cobra.Command, args []string) error {
	record, err := parseTradeText(strings.Join(args, " "))
	if err != nil {
		return newInvalidInputError("%v", err)
	}

	id, err := app.Trades.Insert(cmd.Context(), record)
	if err != nil {
		return err
	}

	fmt.Printf("trade #%d recorded: %s %d %s @ %.2f (fees %.2f, total %.2f)\n",
		id, record.Side, record.Quantity, record.Ticker, record.Price, record.Fees, record.Total)
	return nil
}

// tradeTextPattern recognises this free-text grammar:
//
//	<buy|sell> <6-digit code> <quantity> <@|at> <price> [fee <fees>]
//
// Case-insensitive; either "@" or the word "at" is required before price,
// and a trailing "fee <amount>" clause is optional. There is no richer
// grammar to fall back on (no documented syntax, no comparable parser in
// the example corpus).
var tradeTextPattern = regexp.MustCompile(
	`(?i)^\s*(buy|sell)\s+(\d{6})\s+(\d+(?:\.\d+)?)\s+(?:@|at)\s+(\d+(?:\.\d+)?)\s*(?:fee\s+(\d+(?:\.\d+)?))?\s*$`,
)

func parseTradeText(text string) (domain.TradeRecord, error) {
	m := tradeTextPattern.FindStringSubmatch(text)
	if m == nil {
		return domain.TradeRecord{}, fmt.Errorf(`unrecognised trade text %q, expected "buy|sell <code> <qty> @ <price> [fee <amount>]"`, text)
	}

	side := domain.TradeBuy
	if strings.EqualFold(m[1], "sell") {
		side = domain.TradeSell
	}

	quantity, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return domain.TradeRecord{}, fmt.Errorf("parse quantity: %w", err)
	}
	price, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return domain.TradeRecord{}, fmt.Errorf("parse price: %w", err)
	}
	var fees float64
	if m[5] != "" {
		fees, err = strconv.ParseFloat(m[5], 64)
		if err != nil {
			return domain.TradeRecord{}, fmt.Errorf("parse fee: %w", err)
		}
	}

	var total float64
	if side == domain.TradeSell {
		total = quantity*price - fees
	} else {
		total = -(quantity*price + fees)
	}

	record := domain.TradeRecord{
		Ticker:     m[2],
		Side:       side,
		Quantity:   int64(quantity),
		Price:      price,
		Fees:       fees,
		Total:      total,
		ExecutedAt: time.Now(),
		RawText:    text,
	}
	if !record.Valid() {
		return domain.TradeRecord{}, fmt.Errorf("parsed trade failed validation: %+v", record)
	}
	return record, nil
}
