package report

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"liquidityVault/internal/model"
)

const priceScale = 18

var yearSeconds = decimal.NewFromInt(int64(365 * 24 * time.Hour / time.Second))

func reportable(kind string) bool {
	switch kind {
	case model.EventMinted, model.EventBurned, model.EventFeesEarned, model.EventRebalance:
		return true
	}
	return false
}

func windowStart(ts, windowSec int64) int64 {
	return ts - (ts % windowSec)
}

func vaultKey(address string) string {
	return strings.ToLower(address)
}

func unixUTC(ts int64) time.Time {
	return time.Unix(ts, 0).UTC()
}

func formatPrice(price *decimal.Decimal) *string {
	if price == nil {
		return nil
	}
	text := price.StringFixed(priceScale)
	return &text
}

// computeAPR annualizes share price growth over a window. Windows without a
// price on both ends have no APR.
func computeAPR(open, close *decimal.Decimal, windowSeconds int64) *string {
	if open == nil || close == nil || windowSeconds <= 0 || !open.IsPositive() {
		return nil
	}
	growth := close.DivRound(*open, priceScale).Sub(decimal.NewFromInt(1))
	apr := growth.Mul(yearSeconds).DivRound(decimal.NewFromInt(windowSeconds), priceScale)
	text := apr.StringFixed(priceScale)
	return &text
}

func minOpenWindowStart(acc map[string]*Accumulator) int64 {
	var min int64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if min == 0 || entry.WindowStart < min {
			min = entry.WindowStart
		}
	}
	return min
}
