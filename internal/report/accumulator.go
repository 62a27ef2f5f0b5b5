package report

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"liquidityVault/internal/model"
)

// position tracks supply and deployed liquidity of an instance across the
// whole journal, including events before the report cutoff.
type position struct {
	supply    decimal.Decimal
	liquidity decimal.Decimal
}

// sharePrice is deployed liquidity per share; nil while no shares exist.
func (p *position) sharePrice() *decimal.Decimal {
	if !p.supply.IsPositive() {
		return nil
	}
	price := p.liquidity.DivRound(p.supply, priceScale)
	return &price
}

func (p *position) apply(kind string, data gjson.Result) error {
	switch kind {
	case model.EventMinted:
		shares, err := parseAmount(data, "shares")
		if err != nil {
			return err
		}
		minted, err := parseAmount(data, "liquidity_minted")
		if err != nil {
			return err
		}
		p.supply = p.supply.Add(shares)
		p.liquidity = p.liquidity.Add(minted)
	case model.EventBurned:
		shares, err := parseAmount(data, "shares")
		if err != nil {
			return err
		}
		burned, err := parseAmount(data, "liquidity_burned")
		if err != nil {
			return err
		}
		p.supply = floorZero(p.supply.Sub(shares))
		p.liquidity = floorZero(p.liquidity.Sub(burned))
	case model.EventRebalance:
		after, err := parseAmount(data, "liquidity_after")
		if err != nil {
			return err
		}
		p.liquidity = after
	}
	return nil
}

// Accumulator holds aggregate values for one instance window.
type Accumulator struct {
	Vault          string
	WindowStart    int64
	WindowEnd      int64
	MintCount      uint64
	BurnCount      uint64
	RebalanceCount uint64
	Fee0           decimal.Decimal
	Fee1           decimal.Decimal
	ManagerFee0    decimal.Decimal
	ManagerFee1    decimal.Decimal
	PriceOpen      *decimal.Decimal
	PriceClose     *decimal.Decimal
}

// NewAccumulator opens a window with the share price in force before its
// first event.
func NewAccumulator(vault string, windowStart, windowEnd int64, open *decimal.Decimal) *Accumulator {
	return &Accumulator{
		Vault:       vault,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		PriceOpen:   open,
		PriceClose:  open,
	}
}

// AddEvent folds a journal line into the window counters.
func (a *Accumulator) AddEvent(kind string, data gjson.Result) error {
	switch kind {
	case model.EventMinted:
		a.MintCount++
	case model.EventBurned:
		a.BurnCount++
	case model.EventRebalance:
		a.RebalanceCount++
	case model.EventFeesEarned:
		fee0, err := parseAmount(data, "fee0")
		if err != nil {
			return err
		}
		fee1, err := parseAmount(data, "fee1")
		if err != nil {
			return err
		}
		manager0, err := parseAmount(data, "manager_fee0")
		if err != nil {
			return err
		}
		manager1, err := parseAmount(data, "manager_fee1")
		if err != nil {
			return err
		}
		a.Fee0 = a.Fee0.Add(fee0)
		a.Fee1 = a.Fee1.Add(fee1)
		a.ManagerFee0 = a.ManagerFee0.Add(manager0)
		a.ManagerFee1 = a.ManagerFee1.Add(manager1)
	}
	return nil
}

// Metrics renders the window; APR is derived from share price growth.
func (a *Accumulator) Metrics(windowSeconds int64) model.VaultWindowMetrics {
	m := model.VaultWindowMetrics{
		Vault:           a.Vault,
		WindowSizeSecs:  windowSeconds,
		WindowStart:     unixUTC(a.WindowStart),
		WindowEnd:       unixUTC(a.WindowEnd),
		MintCount:       a.MintCount,
		BurnCount:       a.BurnCount,
		RebalanceCount:  a.RebalanceCount,
		Fee0:            a.Fee0.String(),
		Fee1:            a.Fee1.String(),
		ManagerFee0:     a.ManagerFee0.String(),
		ManagerFee1:     a.ManagerFee1.String(),
		SharePriceOpen:  formatPrice(a.PriceOpen),
		SharePriceClose: formatPrice(a.PriceClose),
		APR:             computeAPR(a.PriceOpen, a.PriceClose, windowSeconds),
	}
	return m
}

func parseAmount(data gjson.Result, field string) (decimal.Decimal, error) {
	value := data.Get(field)
	if !value.Exists() || value.String() == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(value.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s: %w", field, err)
	}
	return d, nil
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
