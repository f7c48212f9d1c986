// Package profile holds the static ticker profile table.
package profile

import (
	"sort"
	"strings"

	"github.com/wonny/tradecraft/internal/contracts"
)

// Profile is the deterministic per-ticker tuple the stage simulators read
type Profile struct {
	Bias       contracts.Bias   `json:"bias"`
	Action     contracts.Action `json:"action"`
	Price      float64          `json:"price"`
	Stop       float64          `json:"stop"`
	TakeProfit float64          `json:"take_profit"`
	Sharpe     float64          `json:"sharpe"`
}

// Neutral is returned for tickers missing from the table
var Neutral = Profile{
	Bias:       contracts.BiasNeutral,
	Action:     contracts.ActionHold,
	Price:      100.00,
	Stop:       95.00,
	TakeProfit: 105.00,
	Sharpe:     0.8,
}

// ⭐ SSOT: 종목 프로필 테이블 (읽기 전용, 동시 접근 안전)
var table = map[string]Profile{
	"AAPL":  {contracts.BiasBearish, contracts.ActionShort, 189.50, 193.00, 182.00, 1.4},
	"NVDA":  {contracts.BiasBullish, contracts.ActionLong, 875.00, 840.00, 950.00, 1.8},
	"SPY":   {contracts.BiasBearish, contracts.ActionShort, 502.00, 510.00, 488.00, 1.1},
	"MSFT":  {contracts.BiasBullish, contracts.ActionLong, 415.00, 402.00, 440.00, 1.5},
	"TSLA":  {contracts.BiasBearish, contracts.ActionShort, 265.00, 280.00, 240.00, 0.9},
	"META":  {contracts.BiasBullish, contracts.ActionLong, 510.00, 495.00, 545.00, 1.6},
	"AMZN":  {contracts.BiasBullish, contracts.ActionLong, 185.00, 178.00, 200.00, 1.3},
	"GOOGL": {contracts.BiasBullish, contracts.ActionLong, 175.00, 168.00, 190.00, 1.2},
	"QQQ":   {contracts.BiasNeutral, contracts.ActionHold, 440.00, 430.00, 450.00, 1.0},
}

// Lookup returns the profile for ticker (case-insensitive), or Neutral
func Lookup(ticker string) Profile {
	if p, ok := table[normalize(ticker)]; ok {
		return p
	}
	return Neutral
}

// Known reports whether ticker has its own profile
func Known(ticker string) bool {
	_, ok := table[normalize(ticker)]
	return ok
}

// Tickers returns the known tickers, sorted
func Tickers() []string {
	tickers := make([]string, 0, len(table))
	for t := range table {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers
}

func normalize(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}
