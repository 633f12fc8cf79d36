package binance

import (
	"context"

	"github.com/straddle-io/straddle/config"
	"github.com/straddle-io/straddle/internal/instruments"
	"github.com/straddle-io/straddle/internal/schema"
	"github.com/straddle-io/straddle/internal/service"
)

// FeedBuilder builds the market feed for Binance futures venue configs.
type FeedBuilder struct {
	Ctx      context.Context
	Registry *instruments.Registry
}

var _ service.Builder[config.VenueConfig, schema.MarketFeedRequest, schema.MarketEvent] = FeedBuilder{}

// Accept reports whether the venue runs on Binance USD-M futures.
func (b FeedBuilder) Accept(cfg config.VenueConfig) bool { return isBinanceFutures(cfg) }

// Build dials the combined stream for the venue.
func (b FeedBuilder) Build(cfg config.VenueConfig) (service.Service[schema.MarketFeedRequest, schema.MarketEvent], error) {
	return NewFeed(b.Ctx, FeedConfig{
		WSBaseURL: cfg.WSBaseURL,
		Registry:  b.Registry,
	})
}

// ExecBuilder builds the execution service for Binance futures venue configs.
type ExecBuilder struct {
	Ctx      context.Context
	Registry *instruments.Registry
}

var _ service.Builder[config.VenueConfig, schema.ExecutionRequest, schema.ExecutionResponse] = ExecBuilder{}

// Accept reports whether the venue runs on Binance USD-M futures.
func (b ExecBuilder) Accept(cfg config.VenueConfig) bool { return isBinanceFutures(cfg) }

// Build wires REST execution, plus the user stream when enabled.
func (b ExecBuilder) Build(cfg config.VenueConfig) (service.Service[schema.ExecutionRequest, schema.ExecutionResponse], error) {
	wsBase := ""
	if cfg.UserStream {
		wsBase = cfg.WSBaseURL
		if wsBase == "" {
			wsBase = DefaultWSBaseURL
		}
	}
	return NewExecution(b.Ctx, ExecConfig{
		RESTBaseURL: cfg.RESTBaseURL,
		WSBaseURL:   wsBase,
		APIKey:      cfg.Credentials.APIKey,
		APISecret:   cfg.Credentials.APISecret,
		Account:     schema.AccountId(cfg.Account),
		Registry:    b.Registry,
	})
}

func isBinanceFutures(cfg config.VenueConfig) bool {
	ex, ok := schema.ParseExchange(cfg.Exchange)
	return ok && ex == schema.ExchangeBinanceFutures
}
