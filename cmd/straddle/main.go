// Command straddle runs the cross-venue spread trading core: market feeds,
// pricing, signals, the hedged quoter engine and the Postgres sink.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/straddle-io/straddle/config"
	"github.com/straddle-io/straddle/internal/accounting"
	"github.com/straddle-io/straddle/internal/adapters/binance"
	"github.com/straddle-io/straddle/internal/adapters/mock"
	"github.com/straddle-io/straddle/internal/feed"
	"github.com/straddle-io/straddle/internal/instruments"
	"github.com/straddle-io/straddle/internal/observability"
	"github.com/straddle-io/straddle/internal/persistence/migrations"
	"github.com/straddle-io/straddle/internal/persistence/postgres"
	"github.com/straddle-io/straddle/internal/pricing"
	"github.com/straddle-io/straddle/internal/schema"
	"github.com/straddle-io/straddle/internal/service"
	"github.com/straddle-io/straddle/internal/signals"
	"github.com/straddle-io/straddle/internal/strategy"
	"github.com/straddle-io/straddle/lib/async"
	"github.com/straddle-io/straddle/lib/telemetry"
)

const (
	shutdownTimeout  = 30 * time.Second
	syncInterval     = 30 * time.Second
	watchdogInterval = 10 * time.Second
	recomputeEvery   = 10 * time.Second
	ledgerFlushEvery = 10 * time.Second
	rowBuffer        = 256
)

type feedService = service.Service[schema.MarketFeedRequest, schema.MarketEvent]
type execService = service.Service[schema.ExecutionRequest, schema.ExecutionResponse]

func main() {
	cfgPath := flag.String("config", "", "path to straddle.yaml (default: $STRADDLE_CONFIG)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewStdLogger("straddle ", cfg.Environment == config.EnvDev)
	observability.SetLogger(logger)
	log := observability.Log()

	telemetryShutdown, err := initTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		fatal("initialise telemetry", err)
	}

	store, err := initStore(ctx, cfg)
	if err != nil {
		fatal("initialise store", err)
	}
	defer store.Pool().Close()

	registry, err := buildRegistry(ctx, cfg)
	if err != nil {
		fatal("load instrument catalogs", err)
	}

	feedSel, execSel, closers, err := buildServices(ctx, cfg, registry)
	if err != nil {
		fatal("build venue services", err)
	}

	pairs, specs, err := resolvePairs(cfg, registry)
	if err != nil {
		fatal("resolve pairs", err)
	}

	if err := subscribeFeeds(ctx, cfg, feedSel, pairs); err != nil {
		fatal("subscribe market feeds", err)
	}

	chain, err := buildSignalChain(cfg.Strategy)
	if err != nil {
		fatal("build signal chain", err)
	}

	writes, err := async.NewPool(4, 1024)
	if err != nil {
		fatal("start write pool", err)
	}

	priceMgr := pricing.NewManager(pairs)
	accumulator := pricing.NewAccumulator(pricing.DefaultMeanWindow)
	engine := strategy.NewEngine(strategy.EngineConfig{
		Pairs:        specs,
		MinOrderSize: cfg.Strategy.MinOrderSize,
		Retries:      cfg.Strategy.Retries,
	}, accounting.NewPortfolioMulti(), execSel.Request, registry)

	rows := make(chan pricing.SpreadRow, rowBuffer)
	rowFeed := feed.NewBroadcaster[pricing.SpreadRow](rowBuffer)

	var lifecycle conc.WaitGroup
	lifecycle.Go(func() { priceMgr.Watchdog(ctx, watchdogInterval) })
	lifecycle.Go(func() { accumulator.Run(ctx, recomputeEvery) })
	lifecycle.Go(func() {
		defer close(rows)
		pumpMarketData(ctx, pumpDeps{
			feeds: feedSel, mgr: priceMgr, acc: accumulator,
			chain: chain, store: store, writes: writes,
			rows: rows, rowFeed: rowFeed,
			change: signals.NewChangeConverter(pricing.DefaultMeanWindow),
			diff:   signals.NewDifferenceConverter(thresholds(cfg.Strategy.Thresholds)),
		})
	})
	lifecycle.Go(func() {
		engine.Run(ctx, rows, persistingNext(execSel, store, writes))
	})
	lifecycle.Go(func() { runSyncTicker(ctx, cfg, execSel) })
	lifecycle.Go(func() { runLedgerFlusher(ctx, engine.Ledger(), store, writes) })

	log.Info("straddle started",
		observability.F("env", string(cfg.Environment)),
		observability.F("pairs", len(specs)))

	<-ctx.Done()
	log.Info("shutdown signal received")

	for _, closeFn := range closers {
		closeFn()
	}
	lifecycle.Wait()
	rowFeed.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := writes.Shutdown(shutdownCtx); err != nil {
		log.Warn("write pool drain incomplete", observability.F("error", err.Error()))
	}
	if err := telemetryShutdown(shutdownCtx); err != nil {
		log.Warn("telemetry shutdown failed", observability.F("error", err.Error()))
	}
	log.Info("shutdown complete")
}

func fatal(stage string, err error) {
	observability.Log().Error(stage, observability.F("error", err.Error()))
	os.Exit(1)
}

func initTelemetry(ctx context.Context, cfg config.TelemetryConfig) (func(context.Context) error, error) {
	endpoint := ""
	if cfg.EnableMetrics {
		endpoint = cfg.OTLPEndpoint
	}
	providers, shutdown, err := telemetry.Init(ctx, telemetry.Config{
		OTLPEndpoint: endpoint,
		ServiceName:  cfg.ServiceName,
	})
	if err != nil {
		return nil, err
	}
	observability.SetMetrics(telemetry.NewRecorder(providers.MeterProvider, "straddle"))
	return shutdown, nil
}

func initStore(ctx context.Context, cfg config.Settings) (*postgres.Store, error) {
	if cfg.Database.MigrateOnStart {
		if err := migrations.Apply(ctx, cfg.Database.DSN, nil); err != nil {
			return nil, err
		}
	}
	pool, err := postgres.Connect(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	store := postgres.New(pool)
	if err := store.Settings.EnsureAppVersion(ctx, cfg.Version); err != nil {
		return nil, err
	}
	return store, nil
}

func buildRegistry(ctx context.Context, cfg config.Settings) (*instruments.Registry, error) {
	registry := instruments.NewRegistry()
	var loaders []instruments.Loader
	for name, v := range cfg.Venues {
		ex, ok := schema.ParseExchange(v.Exchange)
		if !ok {
			return nil, fmt.Errorf("venue %s: unknown exchange %q", name, v.Exchange)
		}
		if ex == schema.ExchangeBinanceFutures {
			loaders = append(loaders, binance.NewCatalogLoader(v.RESTBaseURL))
		}
	}
	if err := registry.Load(ctx, loaders...); err != nil {
		return nil, err
	}
	return registry, nil
}

func buildServices(ctx context.Context, cfg config.Settings, registry *instruments.Registry) (feedService, execService, []func(), error) {
	venues := make([]config.VenueConfig, 0, len(cfg.Venues))
	for name, v := range cfg.Venues {
		if _, ok := schema.ParseExchange(v.Exchange); !ok {
			return nil, nil, nil, fmt.Errorf("venue %s: unknown exchange %q", name, v.Exchange)
		}
		venues = append(venues, v)
	}

	feedBuilders := service.NewBuilderManager[config.VenueConfig, schema.MarketFeedRequest, schema.MarketEvent]()
	feedBuilders.Register(binance.FeedBuilder{Ctx: ctx, Registry: registry})
	feedBuilders.Register(mock.FeedBuilder{})

	execBuilders := service.NewBuilderManager[config.VenueConfig, schema.ExecutionRequest, schema.ExecutionResponse]()
	execBuilders.Register(binance.ExecBuilder{Ctx: ctx, Registry: registry})
	execBuilders.Register(mock.ExecBuilder{})

	feedSel, err := feedBuilders.BuildSelect(venues)
	if err != nil {
		return nil, nil, nil, err
	}
	execSel, err := execBuilders.BuildSelect(venues)
	if err != nil {
		feedSel.Close()
		return nil, nil, nil, err
	}
	return feedSel, execSel, []func(){feedSel.Close, execSel.Close}, nil
}

func resolvePairs(cfg config.Settings, registry *instruments.Registry) ([]pricing.Pair, []strategy.PairSpec, error) {
	pairs := make([]pricing.Pair, 0, len(cfg.Strategy.Pairs))
	specs := make([]strategy.PairSpec, 0, len(cfg.Strategy.Pairs))
	for _, p := range cfg.Strategy.Pairs {
		legX, err := legCode(cfg, registry, p.VenueX, p.SymbolX, p.Asset)
		if err != nil {
			return nil, nil, fmt.Errorf("pair %s leg X: %w", p.Asset, err)
		}
		legY, err := legCode(cfg, registry, p.VenueY, p.SymbolY, p.Asset)
		if err != nil {
			return nil, nil, fmt.Errorf("pair %s leg Y: %w", p.Asset, err)
		}
		pair := pricing.Pair{Asset: schema.Asset(p.Asset), X: legX, Y: legY}
		pairs = append(pairs, pair)
		specs = append(specs, strategy.PairSpec{
			Pair: pair,
			Quoter: strategy.QuoterConfig{
				Asset:       schema.Asset(p.Asset),
				OpenSpread:  p.OpenSpread,
				CloseSpread: p.CloseSpread,
				XMaintain:   p.XMaintain,
				YMaintain:   p.YMaintain,
				MaxUnhedged: p.MaxUnhedged,
				SideFilter:  sideFilter(p.SideFilter),
			},
			AccountX: schema.AccountId(cfg.Venues[p.VenueX].Account),
			AccountY: schema.AccountId(cfg.Venues[p.VenueY].Account),
		})
	}
	return pairs, specs, nil
}

func legCode(cfg config.Settings, registry *instruments.Registry, venue, symbol, asset string) (schema.InstrumentCode, error) {
	v, ok := cfg.Venues[venue]
	if !ok {
		return schema.NoCode, fmt.Errorf("unknown venue %q", venue)
	}
	ex, ok := schema.ParseExchange(v.Exchange)
	if !ok {
		return schema.NoCode, fmt.Errorf("unknown exchange %q", v.Exchange)
	}
	if symbol == "" {
		return schema.NoCode, fmt.Errorf("symbol required for %s/%s", venue, asset)
	}
	sym := schema.InternSymbol(strings.ToUpper(symbol))
	if d, ok := registry.BySymbol(ex, sym); ok {
		return d.Code, nil
	}
	return schema.CodeForSymbol(ex, sym), nil
}

func sideFilter(raw string) schema.Side {
	switch raw {
	case "buy":
		return schema.SideBuy
	case "sell":
		return schema.SideSell
	default:
		return schema.SideUnknown
	}
}

func subscribeFeeds(ctx context.Context, cfg config.Settings, feeds feedService, pairs []pricing.Pair) error {
	topics, err := feedTopics(cfg.Feed.Topics)
	if err != nil {
		return err
	}
	symbols := make(map[schema.Exchange][]schema.Symbol)
	for _, pair := range pairs {
		for _, leg := range []schema.InstrumentCode{pair.X, pair.Y} {
			if !leg.Symbol.IsEmpty() {
				symbols[leg.Exchange] = append(symbols[leg.Exchange], leg.Symbol)
			}
		}
	}
	for ex, syms := range symbols {
		for _, topic := range topics {
			err := feeds.Request(ctx, schema.MarketFeedRequest{
				Exchange:    ex,
				Topic:       topic,
				Symbols:     syms,
				DepthLevels: cfg.Feed.DepthLevels,
			})
			if err != nil && !errors.Is(err, service.ErrNoService) {
				return err
			}
		}
	}
	return nil
}

func feedTopics(names []string) ([]schema.FeedTopic, error) {
	out := make([]schema.FeedTopic, 0, len(names))
	for _, name := range names {
		switch name {
		case "depth":
			out = append(out, schema.TopicDepth)
		case "book_ticker":
			out = append(out, schema.TopicBookTicker)
		case "funding_rate":
			out = append(out, schema.TopicFundingRate)
		case "trade":
			out = append(out, schema.TopicTrade)
		default:
			return nil, fmt.Errorf("unknown feed topic %q", name)
		}
	}
	return out, nil
}

func buildSignalChain(cfg config.StrategyConfig) (signals.Chain, error) {
	chain := signals.Chain{
		signals.NewCooldownFilter(cfg.Cooldown.Std()),
		signals.LevelFilter{Min: signals.ParseLevel(cfg.MinLevel)},
	}
	if cfg.ScriptGate != "" {
		gate, err := signals.NewScriptGate(cfg.ScriptGate)
		if err != nil {
			return nil, err
		}
		chain = append(chain, gate)
	}
	return chain, nil
}

func thresholds(t config.ThresholdsConfig) signals.Thresholds {
	return signals.Thresholds{Medium: t.Medium, High: t.High, Critical: t.Critical}
}
