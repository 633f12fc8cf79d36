package mock

import (
	"github.com/straddle-io/straddle/config"
	"github.com/straddle-io/straddle/internal/schema"
	"github.com/straddle-io/straddle/internal/service"
)

// FeedBuilder builds scripted feeds for mock venue configs.
type FeedBuilder struct{}

var _ service.Builder[config.VenueConfig, schema.MarketFeedRequest, schema.MarketEvent] = FeedBuilder{}

func (FeedBuilder) Accept(cfg config.VenueConfig) bool { return isMock(cfg) }

func (FeedBuilder) Build(cfg config.VenueConfig) (service.Service[schema.MarketFeedRequest, schema.MarketEvent], error) {
	ex, _ := schema.ParseExchange(cfg.Exchange)
	return NewFeed(ex), nil
}

// ExecBuilder builds scripted execution services for mock venue configs.
type ExecBuilder struct{}

var _ service.Builder[config.VenueConfig, schema.ExecutionRequest, schema.ExecutionResponse] = ExecBuilder{}

func (ExecBuilder) Accept(cfg config.VenueConfig) bool { return isMock(cfg) }

func (ExecBuilder) Build(cfg config.VenueConfig) (service.Service[schema.ExecutionRequest, schema.ExecutionResponse], error) {
	ex, _ := schema.ParseExchange(cfg.Exchange)
	return NewExecution(ex, schema.AccountId(cfg.Account)), nil
}

func isMock(cfg config.VenueConfig) bool {
	ex, ok := schema.ParseExchange(cfg.Exchange)
	return ok && ex == schema.ExchangeMock
}
