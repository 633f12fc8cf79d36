package binance

import (
	"context"
	"fmt"
	"net/url"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/straddle-io/straddle/internal/adapters/shared"
	"github.com/straddle-io/straddle/internal/instruments"
	"github.com/straddle-io/straddle/internal/schema"
)

// CatalogLoader loads the USD-M futures instrument catalog from
// /fapi/v1/exchangeInfo.
type CatalogLoader struct {
	venue schema.Exchange
	rest  *shared.RESTClient
}

var _ instruments.Loader = (*CatalogLoader)(nil)

// NewCatalogLoader builds a loader against the given REST base URL.
func NewCatalogLoader(baseURL string) *CatalogLoader {
	if baseURL == "" {
		baseURL = DefaultRESTBaseURL
	}
	venue := schema.ExchangeBinanceFutures
	return &CatalogLoader{
		venue: venue,
		rest:  shared.NewRESTClient(shared.RESTConfig{Venue: venue.String(), BaseURL: baseURL}, nil),
	}
}

// Exchange returns the venue this loader covers.
func (l *CatalogLoader) Exchange() schema.Exchange { return l.venue }

// Load fetches and normalizes the catalog.
func (l *CatalogLoader) Load(ctx context.Context) ([]*instruments.Details, error) {
	body, err := l.rest.Get(ctx, "/fapi/v1/exchangeInfo", url.Values{})
	if err != nil {
		return nil, err
	}
	return parseExchangeInfo(l.venue, body)
}

func parseExchangeInfo(venue schema.Exchange, body []byte) ([]*instruments.Details, error) {
	var info restExchangeInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decode exchange info: %w", err)
	}
	out := make([]*instruments.Details, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		typ, ok := instrumentType(s.ContractType, s.DeliveryDate)
		if !ok {
			continue
		}
		d := &instruments.Details{
			Code: schema.CodeForSimple(venue,
				schema.InternAsset(s.BaseAsset), schema.InternAsset(s.QuoteAsset), typ),
			Symbol:          schema.InternSymbol(s.Symbol),
			Base:            instruments.AssetInfo{Asset: schema.InternAsset(s.BaseAsset), Precision: s.QuantityPrecision},
			Quote:           instruments.AssetInfo{Asset: schema.InternAsset(s.QuoteAsset), Precision: s.PricePrecision},
			SettlementAsset: schema.InternAsset(s.MarginAsset),
			ContractValue:   decimal.NewFromInt(1),
			Status:          catalogStatus(s.Status),
		}
		if s.OnboardDate > 0 {
			d.ListingDate = time.UnixMilli(s.OnboardDate)
		}
		if s.DeliveryDate > 0 {
			d.DeliveryDate = time.UnixMilli(s.DeliveryDate)
		}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "PRICE_FILTER":
				if step, err := decimal.NewFromString(f.TickSize); err == nil {
					d.Tick = instruments.SizedLimit{Step: step}
				}
			case "LOT_SIZE":
				lot := instruments.SizedLimit{}
				if step, err := decimal.NewFromString(f.StepSize); err == nil {
					lot.Step = step
				}
				if min, err := decimal.NewFromString(f.MinQty); err == nil {
					lot.Min = min
				}
				if max, err := decimal.NewFromString(f.MaxQty); err == nil {
					lot.Max = max
				}
				d.Lot = lot
			}
		}
		out = append(out, d)
	}
	return out, nil
}

func instrumentType(contractType string, deliveryDate int64) (schema.InstrumentType, bool) {
	switch contractType {
	case "PERPETUAL":
		return schema.TypePerpetual(schema.SettlementLinear, schema.DirectionEither), true
	case "CURRENT_QUARTER", "NEXT_QUARTER":
		return schema.TypeDelivery(schema.SettlementLinear, time.UnixMilli(deliveryDate)), true
	default:
		return schema.InstrumentType{}, false
	}
}

func catalogStatus(raw string) instruments.Status {
	switch raw {
	case "TRADING":
		return instruments.StatusTrading
	case "SETTLING", "PENDING_TRADING":
		return instruments.StatusHalted
	case "CLOSE", "DELIVERING":
		return instruments.StatusDelisted
	default:
		return instruments.StatusHalted
	}
}
