// Package accounting reconciles local order intent with venue-confirmed
// state: order caches, positions, and per-account portfolios.
package accounting

import (
	"time"

	"github.com/straddle-io/straddle/internal/observability"
	"github.com/straddle-io/straddle/internal/schema"
)

// OrderCache holds the local orders of one account, keyed by Lid with
// secondary Cid and Sid indexes. Not safe for concurrent use; the owning
// Portfolio serialises access.
type OrderCache struct {
	orders map[schema.OrderLid]*schema.Order
	byCid  map[schema.OrderCid]schema.OrderLid
	bySid  map[schema.OrderSid]schema.OrderLid
}

// NewOrderCache builds an empty cache.
func NewOrderCache() *OrderCache {
	return &OrderCache{
		orders: make(map[schema.OrderLid]*schema.Order),
		byCid:  make(map[schema.OrderCid]schema.OrderLid),
		bySid:  make(map[schema.OrderSid]schema.OrderLid),
	}
}

// Len returns the number of cached orders.
func (c *OrderCache) Len() int { return len(c.orders) }

// Get returns the order with the given Lid.
func (c *OrderCache) Get(lid schema.OrderLid) (*schema.Order, bool) {
	o, ok := c.orders[lid]
	return o, ok
}

// Find resolves an order by any of its identifiers, Lid first.
func (c *OrderCache) Find(lid schema.OrderLid, cid schema.OrderCid, sid schema.OrderSid) (*schema.Order, bool) {
	if lid != "" {
		if o, ok := c.orders[lid]; ok {
			return o, true
		}
	}
	if cid != "" {
		if l, ok := c.byCid[cid]; ok {
			return c.orders[l], true
		}
	}
	if sid != "" {
		if l, ok := c.bySid[sid]; ok {
			return c.orders[l], true
		}
	}
	return nil, false
}

// Insert adds a locally created order. Lid collisions are rejected so the
// caller can detect duplicate local ids before anything reaches a venue.
func (c *OrderCache) Insert(o *schema.Order) bool {
	if o == nil || o.Lid == "" {
		return false
	}
	if _, exists := c.orders[o.Lid]; exists {
		return false
	}
	c.orders[o.Lid] = o
	c.index(o)
	return true
}

// Orders returns the live map for iteration by the owning portfolio.
func (c *OrderCache) Orders() map[schema.OrderLid]*schema.Order { return c.orders }

// Upsert applies an order patch following the freshness rules: an update
// whose (status rank, filled size) does not advance the cached state is a
// no-op; cancel-path updates never create orders; unknown live orders are
// materialised from the patch.
func (c *OrderCache) Upsert(u *schema.UpdateOrder) (*schema.Order, bool) {
	if u == nil || !u.HasIdentity() {
		return nil, false
	}
	if u.Reason != "" {
		observability.Log().Warn("order update carries reason",
			observability.F("lid", string(u.Lid)),
			observability.F("cid", string(u.Cid)),
			observability.F("status", u.Status.String()),
			observability.F("reason", u.Reason))
	}
	existing, found := c.Find(u.Lid, u.Cid, u.Sid)

	if u.Status.IsCancel() {
		if !found {
			return nil, false
		}
		if existing.Status.IsDead() {
			return existing, false
		}
		existing.Status = u.Status
		if !u.UpdateLt.IsZero() {
			existing.UpdateLt = u.UpdateLt
		} else {
			existing.UpdateLt = time.Now()
		}
		existing.CancelLt = existing.UpdateLt
		if u.Status == schema.StatusCancelled {
			existing.CloseLt = existing.UpdateLt
		}
		existing.Updated = true
		return existing, true
	}

	if !found {
		o := u.ToOrder()
		if o.Lid == "" {
			// Orders discovered by sync may only carry venue ids; key them
			// by a synthetic Lid derived from the strongest id we have.
			if u.Cid != "" {
				o.Lid = schema.OrderLid(u.Cid)
			} else {
				o.Lid = schema.OrderLid(u.Sid)
			}
		}
		c.orders[o.Lid] = o
		c.index(o)
		c.warnOverrun(o)
		return o, true
	}

	if !existing.IsOlderThan(u.Status, u.FilledSize) {
		// The venue still reports this order: an equal (status, filled)
		// re-report is a refresh, not a stale update.
		existing.Updated = true
		if !u.UpdateLt.IsZero() && u.UpdateLt.After(existing.UpdateLt) {
			existing.UpdateLt = u.UpdateLt
		}
		return existing, false
	}
	c.applyGeneral(existing, u)
	return existing, true
}

func (c *OrderCache) applyGeneral(o *schema.Order, u *schema.UpdateOrder) {
	if o.Status.IsDead() && !u.Status.IsDead() {
		observability.Log().Warn("ignoring live update for dead order",
			observability.F("lid", string(o.Lid)),
			observability.F("status", o.Status.String()),
			observability.F("update_status", u.Status.String()))
		return
	}
	if u.Status > o.Status {
		o.Status = u.Status
	}
	if u.FilledSize > o.FilledSize {
		o.FilledSize = u.FilledSize
	}
	if u.LastFilledSize != 0 {
		o.LastFilledSize = u.LastFilledSize
	}
	if u.LastFilledPrice != 0 {
		o.LastFilledPrice = u.LastFilledPrice
	}
	if u.AverageFilledPrice != 0 {
		o.AverageFilledPrice = u.AverageFilledPrice
	}
	if u.Cid != "" && o.Cid == "" {
		o.Cid = u.Cid
		c.byCid[o.Cid] = o.Lid
	}
	if u.Sid != "" && o.Sid == "" {
		o.Sid = u.Sid
		c.bySid[o.Sid] = o.Lid
	}
	if u.Price != 0 {
		o.Price = u.Price
	}
	if u.Size != 0 {
		o.Size = u.Size
	}
	if !u.Instrument.IsNone() && o.Instrument.IsNone() {
		o.Instrument = u.Instrument
	}
	if u.Side != schema.SideUnknown && o.Side == schema.SideUnknown {
		o.Side = u.Side
	}
	if u.Effect != schema.EffectNA && o.Effect == schema.EffectNA {
		o.Effect = u.Effect
	}
	if !u.UpdateLt.IsZero() {
		o.UpdateLt = u.UpdateLt
	} else {
		o.UpdateLt = time.Now()
	}
	if !u.UpdateEt.IsZero() {
		o.UpdateEt = u.UpdateEt
	}
	if !u.UpdateTst.IsZero() {
		o.UpdateTst = u.UpdateTst
	}
	switch o.Status {
	case schema.StatusOpen:
		if o.OpenLt.IsZero() {
			o.OpenLt = o.UpdateLt
		}
	case schema.StatusFilled, schema.StatusRejected, schema.StatusExpired:
		if o.CloseLt.IsZero() {
			o.CloseLt = o.UpdateLt
		}
	}
	o.Updated = true
	c.warnOverrun(o)
}

func (c *OrderCache) warnOverrun(o *schema.Order) {
	if o.Size > 0 && o.FilledSize > o.Size*schema.FillOverrunSlack {
		observability.Log().Warn("filled size exceeds order size beyond slack",
			observability.F("lid", string(o.Lid)),
			observability.F("size", o.Size),
			observability.F("filled", o.FilledSize))
	}
}

// ApplySync applies an authoritative order enumeration. When the sync is
// full, cached orders inside the range that the enumeration did not refresh
// are removed, except orders still in a new state.
func (c *OrderCache) ApplySync(s *schema.SyncOrders) {
	for _, o := range c.orders {
		o.Updated = false
	}
	for i := range s.Orders {
		c.Upsert(&s.Orders[i])
	}
	if !s.Full {
		return
	}
	for lid, o := range c.orders {
		if o.Updated || o.Status.IsNew() || !s.Range.MatchInstrument(o.Instrument) {
			continue
		}
		c.remove(lid, o)
	}
}

// CullDead removes dead orders whose last update is older than the cutoff.
func (c *OrderCache) CullDead(retention time.Duration) int {
	cutoff := time.Now().Add(-retention)
	removed := 0
	for lid, o := range c.orders {
		if o.Status.IsDead() && o.UpdateLt.Before(cutoff) {
			c.remove(lid, o)
			removed++
		}
	}
	return removed
}

func (c *OrderCache) remove(lid schema.OrderLid, o *schema.Order) {
	delete(c.orders, lid)
	if o.Cid != "" {
		delete(c.byCid, o.Cid)
	}
	if o.Sid != "" {
		delete(c.bySid, o.Sid)
	}
}

func (c *OrderCache) index(o *schema.Order) {
	if o.Cid != "" {
		c.byCid[o.Cid] = o.Lid
	}
	if o.Sid != "" {
		c.bySid[o.Sid] = o.Lid
	}
}
