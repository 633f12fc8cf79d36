// Package config loads and validates the straddle runtime configuration
// from YAML, with credentials supplied through the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment identifies the runtime environment.
type Environment string

const (
	EnvDev     Environment = "dev"
	EnvStaging Environment = "staging"
	EnvProd    Environment = "prod"
)

// Duration accepts Go duration strings ("10s", "1h") and bare integers
// interpreted as seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	text := strings.TrimSpace(node.Value)
	if text == "" {
		*d = 0
		return nil
	}
	if parsed, err := time.ParseDuration(text); err == nil {
		*d = Duration(parsed)
		return nil
	}
	var secs int64
	if err := node.Decode(&secs); err != nil {
		return fmt.Errorf("invalid duration %q", node.Value)
	}
	*d = Duration(time.Duration(secs) * time.Second)
	return nil
}

// Std converts to the standard library type.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Credentials carries venue API secrets. They are never read from YAML;
// Load fills them from {VENUE}_API_KEY, {VENUE}_API_SECRET and
// {VENUE}_PASSPHRASE.
type Credentials struct {
	APIKey     string `yaml:"-"`
	APISecret  string `yaml:"-"`
	Passphrase string `yaml:"-"`
}

// VenueConfig describes one exchange connection.
type VenueConfig struct {
	// Exchange is the canonical venue name (binance_futures, bybit, mock).
	Exchange    string        `yaml:"exchange"`
	Account     string        `yaml:"account"`
	RESTBaseURL string        `yaml:"restBaseUrl"`
	WSBaseURL   string        `yaml:"wsBaseUrl"`
	UserStream  bool          `yaml:"userStream"`
	RateLimit   float64       `yaml:"rateLimit"`
	RateBurst   int           `yaml:"rateBurst"`
	HTTPTimeout Duration `yaml:"httpTimeout"`
	Credentials Credentials   `yaml:"-"`
}

// MarketFeedConfig selects the subscribed market-data families.
type MarketFeedConfig struct {
	Topics      []string `yaml:"topics"`
	DepthLevels int      `yaml:"depthLevels"`
}

// InstrumentsConfig tunes catalog loading.
type InstrumentsConfig struct {
	RefreshInterval Duration      `yaml:"refreshInterval"`
}

// ThresholdsConfig grades spread signals in basis points.
type ThresholdsConfig struct {
	Medium   float64 `yaml:"medium"`
	High     float64 `yaml:"high"`
	Critical float64 `yaml:"critical"`
}

// PairConfig describes one cross-venue spread pair.
type PairConfig struct {
	Asset    string `yaml:"asset"`
	VenueX   string `yaml:"venueX"`
	VenueY   string `yaml:"venueY"`
	SymbolX  string `yaml:"symbolX"`
	SymbolY  string `yaml:"symbolY"`
	AccountX string `yaml:"accountX"`
	AccountY string `yaml:"accountY"`

	// Spread thresholds are fractions, not basis points.
	OpenSpread  float64 `yaml:"openSpread"`
	CloseSpread float64 `yaml:"closeSpread"`
	XMaintain   float64 `yaml:"xMaintain"`
	YMaintain   float64 `yaml:"yMaintain"`
	// MaxUnhedged caps the inter-leg exposure gap. Omitted disables the cap.
	MaxUnhedged *float64 `yaml:"maxUnhedged"`
	// SideFilter restricts the X leg: "", "buy" or "sell".
	SideFilter string `yaml:"sideFilter"`
}

// StrategyConfig tunes the spread engine and the signal chain.
type StrategyConfig struct {
	Pairs        []PairConfig     `yaml:"pairs"`
	MinOrderSize float64          `yaml:"minOrderSize"`
	Retries      int              `yaml:"retries"`
	Cooldown     Duration         `yaml:"cooldown"`
	MinLevel     string           `yaml:"minLevel"`
	Thresholds   ThresholdsConfig `yaml:"thresholds"`
	// ScriptGate is an optional JS boolean expression evaluated per signal.
	ScriptGate string `yaml:"scriptGate"`
}

// DatabaseConfig locates the Postgres sink.
type DatabaseConfig struct {
	DSN            string `yaml:"dsn"`
	MigrateOnStart bool   `yaml:"migrateOnStart"`
}

// TelemetryConfig configures OTLP export (metrics only).
type TelemetryConfig struct {
	OTLPEndpoint  string `yaml:"otlpEndpoint"`
	ServiceName   string `yaml:"serviceName"`
	OTLPInsecure  bool   `yaml:"otlpInsecure"`
	EnableMetrics bool   `yaml:"enableMetrics"`
}

// Settings is the full configuration tree sourced from YAML.
type Settings struct {
	Environment Environment            `yaml:"environment"`
	Version     string                 `yaml:"version"`
	Venues      map[string]VenueConfig `yaml:"venues"`
	Feed        MarketFeedConfig       `yaml:"feed"`
	Instruments InstrumentsConfig      `yaml:"instruments"`
	Strategy    StrategyConfig         `yaml:"strategy"`
	Database    DatabaseConfig         `yaml:"database"`
	Telemetry   TelemetryConfig        `yaml:"telemetry"`
}

// Default returns the baseline configuration.
func Default() Settings {
	return Settings{
		Environment: EnvProd,
		Version:     "0.1.0",
		Venues:      make(map[string]VenueConfig),
		Feed: MarketFeedConfig{
			Topics:      []string{"depth", "book_ticker", "funding_rate"},
			DepthLevels: 100,
		},
		Instruments: InstrumentsConfig{RefreshInterval: Duration(time.Hour)},
		Strategy: StrategyConfig{
			MinOrderSize: 0.001,
			Retries:      2,
			Cooldown:     Duration(5 * time.Second),
			MinLevel:     "medium",
			Thresholds:   ThresholdsConfig{Medium: 5, High: 15, Critical: 30},
		},
		Telemetry: TelemetryConfig{ServiceName: "straddle"},
	}
}

// Load reads the YAML file, overlays defaults and environment values, and
// validates the result.
func Load(path string) (Settings, error) {
	if path == "" {
		path = os.Getenv("STRADDLE_CONFIG")
	}
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Settings{}, fmt.Errorf("unmarshal config: %w", err)
		}
	}
	cfg.normalise()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Settings{}, err
	}
	return cfg, nil
}

func (s *Settings) normalise() {
	s.Environment = Environment(strings.ToLower(strings.TrimSpace(string(s.Environment))))
	venues := make(map[string]VenueConfig, len(s.Venues))
	for name, v := range s.Venues {
		key := strings.ToLower(strings.TrimSpace(name))
		if v.Exchange == "" {
			v.Exchange = key
		}
		v.Exchange = strings.ToLower(strings.TrimSpace(v.Exchange))
		if v.Account == "" {
			v.Account = key
		}
		venues[key] = v
	}
	s.Venues = venues
	for i := range s.Strategy.Pairs {
		p := &s.Strategy.Pairs[i]
		p.Asset = strings.ToUpper(strings.TrimSpace(p.Asset))
		p.VenueX = strings.ToLower(strings.TrimSpace(p.VenueX))
		p.VenueY = strings.ToLower(strings.TrimSpace(p.VenueY))
		p.SideFilter = strings.ToLower(strings.TrimSpace(p.SideFilter))
		if p.AccountX == "" {
			p.AccountX = p.VenueX
		}
		if p.AccountY == "" {
			p.AccountY = p.VenueY
		}
	}
}

// applyEnv overlays environment values: STRADDLE_ENV, STRADDLE_DB_DSN and
// per-venue credentials keyed by the upper-cased venue name.
func (s *Settings) applyEnv() {
	if env := strings.TrimSpace(os.Getenv("STRADDLE_ENV")); env != "" {
		s.Environment = Environment(strings.ToLower(env))
	}
	if dsn := strings.TrimSpace(os.Getenv("STRADDLE_DB_DSN")); dsn != "" {
		s.Database.DSN = dsn
	}
	for name, v := range s.Venues {
		prefix := strings.ToUpper(name)
		if key := os.Getenv(prefix + "_API_KEY"); key != "" {
			v.Credentials.APIKey = key
		}
		if secret := os.Getenv(prefix + "_API_SECRET"); secret != "" {
			v.Credentials.APISecret = secret
		}
		if pass := os.Getenv(prefix + "_PASSPHRASE"); pass != "" {
			v.Credentials.Passphrase = pass
		}
		s.Venues[name] = v
	}
}

// Validate performs semantic validation.
func (s Settings) Validate() error {
	switch s.Environment {
	case EnvDev, EnvStaging, EnvProd:
	default:
		return fmt.Errorf("environment must be one of dev, staging, prod")
	}
	if s.Version == "" {
		return fmt.Errorf("version required")
	}
	if s.Database.DSN == "" {
		return fmt.Errorf("database dsn required")
	}
	if s.Strategy.Thresholds.Medium <= 0 ||
		s.Strategy.Thresholds.High <= s.Strategy.Thresholds.Medium ||
		s.Strategy.Thresholds.Critical <= s.Strategy.Thresholds.High {
		return fmt.Errorf("thresholds must be ascending and positive")
	}
	if s.Strategy.MinOrderSize < 0 {
		return fmt.Errorf("minOrderSize must be >= 0")
	}
	for i, p := range s.Strategy.Pairs {
		if p.Asset == "" {
			return fmt.Errorf("pair %d: asset required", i)
		}
		if p.VenueX == "" || p.VenueY == "" {
			return fmt.Errorf("pair %s: both venues required", p.Asset)
		}
		if _, ok := s.Venues[p.VenueX]; !ok {
			return fmt.Errorf("pair %s: unknown venue %q", p.Asset, p.VenueX)
		}
		if _, ok := s.Venues[p.VenueY]; !ok {
			return fmt.Errorf("pair %s: unknown venue %q", p.Asset, p.VenueY)
		}
		if p.OpenSpread <= 0 || p.CloseSpread <= 0 {
			return fmt.Errorf("pair %s: spreads must be > 0", p.Asset)
		}
		if p.OpenSpread <= p.CloseSpread {
			return fmt.Errorf("pair %s: openSpread must exceed closeSpread", p.Asset)
		}
		if p.XMaintain <= 0 || p.YMaintain <= 0 {
			return fmt.Errorf("pair %s: maintain sizes must be > 0", p.Asset)
		}
		if p.MaxUnhedged != nil && *p.MaxUnhedged < 0 {
			return fmt.Errorf("pair %s: maxUnhedged must be >= 0", p.Asset)
		}
		switch p.SideFilter {
		case "", "buy", "sell":
		default:
			return fmt.Errorf("pair %s: sideFilter must be buy, sell or empty", p.Asset)
		}
	}
	return nil
}
