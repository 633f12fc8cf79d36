// Package instruments holds the per-venue instrument catalog: immutable
// details records computed once at load and shared by reference.
package instruments

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/straddle-io/straddle/internal/schema"
)

// Status reflects the venue listing state of an instrument.
type Status string

const (
	StatusTrading   Status = "trading"
	StatusHalted    Status = "halted"
	StatusDelisting Status = "delisting"
	StatusDelisted  Status = "delisted"
)

// AssetInfo describes one leg of an instrument.
type AssetInfo struct {
	Asset     schema.Asset
	Precision int32
}

// SizedLimit bounds a quantity to a min/max range on a step grid.
type SizedLimit struct {
	Min  decimal.Decimal
	Max  decimal.Decimal
	Step decimal.Decimal
}

// Snap floors the value onto the step grid.
func (l SizedLimit) Snap(v decimal.Decimal) decimal.Decimal {
	if l.Step.IsZero() {
		return v
	}
	return v.Div(l.Step).Floor().Mul(l.Step)
}

// Contains reports whether the value satisfies the min/max bounds.
func (l SizedLimit) Contains(v decimal.Decimal) bool {
	if !l.Min.IsZero() && v.LessThan(l.Min) {
		return false
	}
	if !l.Max.IsZero() && v.GreaterThan(l.Max) {
		return false
	}
	return true
}

// Details is the immutable per-instrument record. Compute once at load and
// share by reference; never mutate after publication.
type Details struct {
	Code            schema.InstrumentCode
	Symbol          schema.Symbol
	Base            AssetInfo
	Quote           AssetInfo
	Lot             SizedLimit
	Tick            SizedLimit
	SettlementAsset schema.Asset
	ContractValue   decimal.Decimal
	Status          Status
	ListingDate     time.Time
	DeliveryDate    time.Time
}

// RoundSize floors a raw quantity onto the lot grid.
func (d *Details) RoundSize(v float64) float64 {
	f, _ := d.Lot.Snap(decimal.NewFromFloat(v)).Float64()
	return f
}

// RoundPrice snaps a raw price onto the tick grid, rounding to nearest.
func (d *Details) RoundPrice(v float64) float64 {
	if d.Tick.Step.IsZero() {
		return v
	}
	dv := decimal.NewFromFloat(v)
	f, _ := dv.Div(d.Tick.Step).Round(0).Mul(d.Tick.Step).Float64()
	return f
}

// ValidSize reports whether a rounded quantity is inside the lot bounds.
func (d *Details) ValidSize(v float64) bool {
	return d.Lot.Contains(decimal.NewFromFloat(v))
}

// IsTrading reports whether orders may be placed on the instrument.
func (d *Details) IsTrading() bool { return d.Status == StatusTrading }
