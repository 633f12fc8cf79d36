package schema

import (
	"math"
	"time"
)

// PositionUnit names the denomination of a position's figures.
type PositionUnit uint8

const (
	UnitBase PositionUnit = iota
	UnitQuote
)

func (u PositionUnit) String() string {
	if u == UnitQuote {
		return "quote"
	}
	return "base"
}

// Position is the local record of holdings on one (account, instrument).
type Position struct {
	Instrument InstrumentCode
	Total      float64
	Available  float64
	Locked     float64
	Unit       PositionUnit
	EntryPrice float64
	UpdateLt   time.Time
	Updated    bool
}

// EffectiveTotal returns Total when set, otherwise Available+Locked.
func (p *Position) EffectiveTotal() float64 {
	if p.Total != 0 {
		return p.Total
	}
	return p.Available + p.Locked
}

// ConvertValuesToQuote rebases base-denominated figures into the quote unit
// at the given price. Idempotent once the unit is already quote.
func (p *Position) ConvertValuesToQuote(price float64) {
	if p.Unit == UnitQuote || price == 0 {
		return
	}
	p.Total *= price
	p.Available *= price
	p.Locked *= price
	p.Unit = UnitQuote
}

// ProfitAt returns the unrealised PnL at the given price, or 0 when no entry
// price is known.
func (p *Position) ProfitAt(price float64) float64 {
	if p.EntryPrice == 0 || math.IsNaN(p.EntryPrice) {
		return 0
	}
	return (price - p.EntryPrice) * p.EffectiveTotal()
}

// PositionValues is a (total, available, locked) triple used by patches.
type PositionValues struct {
	Total     float64 `json:"total"`
	Available float64 `json:"available"`
	Locked    float64 `json:"locked"`
}

// UpdatePosition patches one position: SetValues overwrites the figures,
// AddValues shifts them, EntryPrice overwrites the entry when non-zero.
// When both patches are present, set applies before add.
type UpdatePosition struct {
	Instrument InstrumentCode  `json:"instrument"`
	SetValues  *PositionValues `json:"set_values,omitempty"`
	AddValues  *PositionValues `json:"add_values,omitempty"`
	EntryPrice float64         `json:"entry_price,omitempty"`
	UpdateLt   time.Time       `json:"update_lt"`
}

// SetPosition builds an absolute patch.
func SetPosition(instrument InstrumentCode, total, available, locked float64) UpdatePosition {
	return UpdatePosition{
		Instrument: instrument,
		SetValues:  &PositionValues{Total: total, Available: available, Locked: locked},
		UpdateLt:   time.Now(),
	}
}

// AddPosition builds a delta patch.
func AddPosition(instrument InstrumentCode, total, available, locked float64) UpdatePosition {
	return UpdatePosition{
		Instrument: instrument,
		AddValues:  &PositionValues{Total: total, Available: available, Locked: locked},
		UpdateLt:   time.Now(),
	}
}

// ApplyTo mutates the position in place and marks it updated.
func (u UpdatePosition) ApplyTo(p *Position) {
	if u.SetValues != nil {
		p.Total = u.SetValues.Total
		p.Available = u.SetValues.Available
		p.Locked = u.SetValues.Locked
	}
	if u.AddValues != nil {
		p.Total += u.AddValues.Total
		p.Available += u.AddValues.Available
		p.Locked += u.AddValues.Locked
	}
	if u.EntryPrice != 0 {
		p.EntryPrice = u.EntryPrice
	}
	if !u.UpdateLt.IsZero() {
		p.UpdateLt = u.UpdateLt
	} else {
		p.UpdateLt = time.Now()
	}
	p.Updated = true
}

// UpdatePositions wraps a batch of patches with the range the batch is
// authoritative over. When Range.ShouldSync() holds, positions inside the
// range that the batch did not refresh are culled.
type UpdatePositions struct {
	Account   AccountId          `json:"account"`
	Range     InstrumentSelector `json:"range"`
	Positions []UpdatePosition   `json:"positions"`
}

// SyncBalances builds an authoritative wallet-balance sync for one venue.
func SyncBalances(account AccountId, exchange Exchange, positions []UpdatePosition) UpdatePositions {
	return UpdatePositions{Account: account, Range: SelectCategory(exchange, CategoryAsset), Positions: positions}
}

// SyncPositions builds an authoritative derivative-position sync for one venue.
func SyncPositions(account AccountId, exchange Exchange, positions []UpdatePosition) UpdatePositions {
	return UpdatePositions{Account: account, Range: SelectCategory(exchange, CategoryFutures), Positions: positions}
}

// SyncBalancesAndPositions builds an authoritative sync over everything on a venue.
func SyncBalancesAndPositions(account AccountId, exchange Exchange, positions []UpdatePosition) UpdatePositions {
	return UpdatePositions{Account: account, Range: SelectCategory(exchange, CategoryAll), Positions: positions}
}
