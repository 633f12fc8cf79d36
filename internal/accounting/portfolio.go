package accounting

import (
	"sync"
	"time"

	"github.com/straddle-io/straddle/internal/observability"
	"github.com/straddle-io/straddle/internal/schema"
)

// orderUpdateHistory is the bounded series of recent order updates kept per
// portfolio for diagnostics and the snapshot publisher.
const orderUpdateHistory = 1000

// Portfolio owns the orders, positions, and funding state of one account.
// All mutation funnels through the portfolio's lock; one account has one
// logical writer (the execution consumer) and any number of snapshotters.
type Portfolio struct {
	mu      sync.Mutex
	account schema.AccountId

	orders   *OrderCache
	updates  []schema.UpdateOrder
	updateAt int
	wrapped  bool

	positions map[schema.InstrumentCode]*schema.Position
	fundings  map[schema.InstrumentCode]schema.FundingRate
}

// NewPortfolio builds an empty portfolio for the account.
func NewPortfolio(account schema.AccountId) *Portfolio {
	return &Portfolio{
		account:   account,
		orders:    NewOrderCache(),
		updates:   make([]schema.UpdateOrder, 0, orderUpdateHistory),
		positions: make(map[schema.InstrumentCode]*schema.Position),
		fundings:  make(map[schema.InstrumentCode]schema.FundingRate),
	}
}

// Account returns the owning account id.
func (p *Portfolio) Account() schema.AccountId { return p.account }

// InsertOrder registers a locally created order before placement.
func (p *Portfolio) InsertOrder(o *schema.Order) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.orders.Insert(o)
}

// Order returns a copy of the order with the given Lid.
func (p *Portfolio) Order(lid schema.OrderLid) (schema.Order, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders.Get(lid)
	if !ok {
		return schema.Order{}, false
	}
	return *o, true
}

// OpenOrders returns copies of every non-dead order, optionally filtered by
// instrument range.
func (p *Portfolio) OpenOrders(rng schema.InstrumentSelector) []schema.Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []schema.Order
	for _, o := range p.orders.Orders() {
		if o.Status.IsDead() {
			continue
		}
		if !rng.MatchInstrument(o.Instrument) {
			continue
		}
		out = append(out, *o)
	}
	return out
}

// Position returns a copy of the position for the instrument.
func (p *Portfolio) Position(code schema.InstrumentCode) (schema.Position, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[code]
	if !ok {
		return schema.Position{}, false
	}
	return *pos, true
}

// SignedPosition returns the effective total for the instrument, zero when
// no position exists.
func (p *Portfolio) SignedPosition(code schema.InstrumentCode) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pos, ok := p.positions[code]; ok {
		return pos.EffectiveTotal()
	}
	return 0
}

// Positions returns a snapshot copy of every position.
func (p *Portfolio) Positions() map[schema.InstrumentCode]schema.Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[schema.InstrumentCode]schema.Position, len(p.positions))
	for code, pos := range p.positions {
		out[code] = *pos
	}
	return out
}

// Funding returns the last funding observation for the instrument.
func (p *Portfolio) Funding(code schema.InstrumentCode) (schema.FundingRate, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.fundings[code]
	return f, ok
}

// RecentOrderUpdates returns the bounded update history, oldest first.
func (p *Portfolio) RecentOrderUpdates() []schema.UpdateOrder {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.wrapped {
		return append([]schema.UpdateOrder(nil), p.updates[:p.updateAt]...)
	}
	out := make([]schema.UpdateOrder, 0, orderUpdateHistory)
	out = append(out, p.updates[p.updateAt:]...)
	out = append(out, p.updates[:p.updateAt]...)
	return out
}

// CullDeadOrders removes dead orders older than the retention window.
func (p *Portfolio) CullDeadOrders(retention time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.orders.CullDead(retention)
}

func (p *Portfolio) recordUpdate(u schema.UpdateOrder) {
	if len(p.updates) < orderUpdateHistory {
		p.updates = append(p.updates, u)
		p.updateAt = len(p.updates) % orderUpdateHistory
		p.wrapped = len(p.updates) == orderUpdateHistory && p.updateAt == 0
		return
	}
	p.updates[p.updateAt] = u
	p.updateAt = (p.updateAt + 1) % orderUpdateHistory
	p.wrapped = true
}

// ApplyUpdateOrder upserts one order patch and folds the fill delta into the
// instrument position. Returns the resulting order copy when applied.
func (p *Portfolio) ApplyUpdateOrder(u *schema.UpdateOrder) (schema.Order, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.applyUpdateOrderLocked(u)
}

func (p *Portfolio) applyUpdateOrderLocked(u *schema.UpdateOrder) (schema.Order, bool) {
	var before float64
	if existing, ok := p.orders.Find(u.Lid, u.Cid, u.Sid); ok {
		before = existing.FilledSize
	}
	o, applied := p.orders.Upsert(u)
	if !applied || o == nil {
		if o != nil {
			return *o, false
		}
		return schema.Order{}, false
	}
	p.recordUpdate(*u)
	if delta := o.FilledSize - before; delta > 0 && !o.Instrument.IsNone() {
		p.adjustPositionLocked(o.Instrument, delta*o.Side.Sign(), o.LastFilledPrice)
	}
	return *o, true
}

func (p *Portfolio) adjustPositionLocked(code schema.InstrumentCode, delta, price float64) {
	pos, ok := p.positions[code]
	if !ok {
		pos = &schema.Position{Instrument: code}
		p.positions[code] = pos
	}
	pos.Total += delta
	pos.Available += delta
	if pos.EntryPrice == 0 && price != 0 {
		pos.EntryPrice = price
	}
	pos.UpdateLt = time.Now()
	pos.Updated = true
}

// ApplySyncOrders applies an authoritative order enumeration.
func (p *Portfolio) ApplySyncOrders(s *schema.SyncOrders) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders.ApplySync(s)
}

// ApplyUpdatePosition applies one position patch.
func (p *Portfolio) ApplyUpdatePosition(u *schema.UpdatePosition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyUpdatePositionLocked(u)
}

func (p *Portfolio) applyUpdatePositionLocked(u *schema.UpdatePosition) {
	pos, ok := p.positions[u.Instrument]
	if !ok {
		pos = &schema.Position{Instrument: u.Instrument}
		p.positions[u.Instrument] = pos
	}
	u.ApplyTo(pos)
}

// ApplyUpdatePositions applies a patch batch. When the range is
// authoritative, positions inside it that the batch did not refresh are
// removed.
func (p *Portfolio) ApplyUpdatePositions(batch *schema.UpdatePositions) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pos := range p.positions {
		pos.Updated = false
	}
	for i := range batch.Positions {
		p.applyUpdatePositionLocked(&batch.Positions[i])
	}
	if !batch.Range.ShouldSync() {
		return
	}
	for code, pos := range p.positions {
		if pos.Updated || !batch.Range.MatchInstrument(code) {
			continue
		}
		delete(p.positions, code)
	}
}

// ApplyFunding upserts the funding observation for its instrument.
func (p *Portfolio) ApplyFunding(f schema.FundingRate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fundings[f.Instrument] = f
}

// Apply dispatches one execution response into the portfolio.
func (p *Portfolio) Apply(resp *schema.ExecutionResponse) {
	switch resp.Kind {
	case schema.RespNoop:
	case schema.RespText:
		observability.Log().Debug("execution text", observability.F("account", string(p.account)), observability.F("text", resp.Text))
	case schema.RespError:
		observability.Log().Error("execution error", observability.F("account", string(p.account)), observability.F("error", resp.Error))
	case schema.RespSyncOrders:
		if resp.Sync != nil {
			p.ApplySyncOrders(resp.Sync)
		}
	case schema.RespUpdateOrder:
		if resp.Order != nil {
			p.ApplyUpdateOrder(resp.Order)
		}
	case schema.RespUpdatePositions:
		if resp.Positions != nil {
			p.ApplyUpdatePositions(resp.Positions)
		}
	case schema.RespUpdatePosition:
		if resp.Position != nil {
			p.ApplyUpdatePosition(resp.Position)
		}
	case schema.RespUpdateFunding:
		if resp.Funding != nil {
			p.ApplyFunding(*resp.Funding)
		}
	case schema.RespUpdateBook:
		// Books are owned by the pricing layer; portfolios ignore them.
	case schema.RespTradeOrder:
		if resp.Trade != nil {
			u := schema.UpdateFromOrder(resp.Trade)
			p.ApplyUpdateOrder(&u)
		}
	case schema.RespCompleteOrder:
		if resp.Complete != nil {
			u := schema.UpdateFromOrder(resp.Complete)
			p.ApplyUpdateOrder(&u)
		}
	case schema.RespGroup:
		for i := range resp.Group {
			p.Apply(&resp.Group[i])
		}
	}
}

// PortfolioMulti maps accounts to portfolios, creating them on first touch.
type PortfolioMulti struct {
	mu         sync.RWMutex
	portfolios map[schema.AccountId]*Portfolio
}

// NewPortfolioMulti builds an empty account map.
func NewPortfolioMulti() *PortfolioMulti {
	return &PortfolioMulti{portfolios: make(map[schema.AccountId]*Portfolio)}
}

// Resolve returns the portfolio for the account, creating it if needed.
func (m *PortfolioMulti) Resolve(account schema.AccountId) *Portfolio {
	m.mu.RLock()
	p, ok := m.portfolios[account]
	m.mu.RUnlock()
	if ok {
		return p
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok = m.portfolios[account]; ok {
		return p
	}
	p = NewPortfolio(account)
	m.portfolios[account] = p
	return p
}

// Apply routes an execution response to the portfolio named by its account.
func (m *PortfolioMulti) Apply(resp *schema.ExecutionResponse) {
	account := resp.Account
	if account == "" {
		switch {
		case resp.Sync != nil:
			account = resp.Sync.Account
		case resp.Positions != nil:
			account = resp.Positions.Account
		case resp.Order != nil:
			account = resp.Order.Account
		}
	}
	m.Resolve(account).Apply(resp)
}

// Accounts returns the known account ids.
func (m *PortfolioMulti) Accounts() []schema.AccountId {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]schema.AccountId, 0, len(m.portfolios))
	for a := range m.portfolios {
		out = append(out, a)
	}
	return out
}
