package instruments

import (
	"context"
	"fmt"
	"sync"

	"github.com/straddle-io/straddle/internal/observability"
	"github.com/straddle-io/straddle/internal/schema"
)

// Loader supplies the instrument catalog of one venue.
type Loader interface {
	Exchange() schema.Exchange
	Load(ctx context.Context) ([]*Details, error)
}

// Registry aggregates the catalogs of every configured venue. It is
// read-mostly: rebuilt at startup or on explicit reload, then shared by
// reference.
type Registry struct {
	mu       sync.RWMutex
	byCode   map[schema.InstrumentCode]*Details
	bySymbol map[schema.Exchange]map[schema.Symbol]*Details
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byCode:   make(map[schema.InstrumentCode]*Details),
		bySymbol: make(map[schema.Exchange]map[schema.Symbol]*Details),
	}
}

// Load runs every loader and replaces the catalog atomically. A loader
// failure aborts the whole reload so the registry never holds a partial mix
// of old and new catalogs.
func (r *Registry) Load(ctx context.Context, loaders ...Loader) error {
	byCode := make(map[schema.InstrumentCode]*Details)
	bySymbol := make(map[schema.Exchange]map[schema.Symbol]*Details)
	for _, loader := range loaders {
		details, err := loader.Load(ctx)
		if err != nil {
			return fmt.Errorf("load instruments for %s: %w", loader.Exchange(), err)
		}
		symbols := bySymbol[loader.Exchange()]
		if symbols == nil {
			symbols = make(map[schema.Symbol]*Details, len(details))
			bySymbol[loader.Exchange()] = symbols
		}
		for _, d := range details {
			byCode[d.Code] = d
			if !d.Symbol.IsEmpty() {
				symbols[d.Symbol] = d
			}
		}
		observability.Log().Info("instrument catalog loaded",
			observability.F("exchange", loader.Exchange().String()),
			observability.F("count", len(details)))
	}
	r.mu.Lock()
	r.byCode = byCode
	r.bySymbol = bySymbol
	r.mu.Unlock()
	return nil
}

// ByCode resolves one instrument's details.
func (r *Registry) ByCode(code schema.InstrumentCode) (*Details, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byCode[code]
	return d, ok
}

// BySymbol resolves details by venue ticker.
func (r *Registry) BySymbol(exchange schema.Exchange, symbol schema.Symbol) (*Details, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	symbols, ok := r.bySymbol[exchange]
	if !ok {
		return nil, false
	}
	d, ok := symbols[symbol]
	return d, ok
}

// Select returns every detail record matching the selector.
func (r *Registry) Select(sel schema.InstrumentSelector) []*Details {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Details
	for code, d := range r.byCode {
		if sel.MatchInstrument(code) {
			out = append(out, d)
		}
	}
	return out
}

// Len returns the number of catalogued instruments.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byCode)
}

// StaticLoader serves a fixed catalog, used by the mock venue and tests.
type StaticLoader struct {
	Venue   schema.Exchange
	Details []*Details
}

// Exchange implements Loader.
func (l StaticLoader) Exchange() schema.Exchange { return l.Venue }

// Load implements Loader.
func (l StaticLoader) Load(context.Context) ([]*Details, error) { return l.Details, nil }
