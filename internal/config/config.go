package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/geoequity/internal/ejv"
	"github.com/sells-group/geoequity/internal/indicators"
	"github.com/sells-group/geoequity/internal/overpass"
	"github.com/sells-group/geoequity/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Gateway   GatewayConfig   `yaml:"gateway" mapstructure:"gateway"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Scoring   ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Overpass  OverpassConfig  `yaml:"overpass" mapstructure:"overpass"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins     []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// GatewayConfig configures the BLS and Census indicator reads.
type GatewayConfig struct {
	BLSBaseURL    string `yaml:"bls_base_url" mapstructure:"bls_base_url"`
	BLSKey        string `yaml:"bls_api_key" mapstructure:"bls_api_key"`
	CensusBaseURL string `yaml:"census_base_url" mapstructure:"census_base_url"`
	CensusKey     string `yaml:"census_api_key" mapstructure:"census_api_key"`
	ACSYear       int    `yaml:"acs_year" mapstructure:"acs_year"`
	CBPYear       int    `yaml:"cbp_year" mapstructure:"cbp_year"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Indicators converts the section to a gateway config.
func (c GatewayConfig) Indicators() indicators.Config {
	return indicators.Config{
		BLSBaseURL:    c.BLSBaseURL,
		BLSKey:        c.BLSKey,
		CensusBaseURL: c.CensusBaseURL,
		CensusKey:     c.CensusKey,
		ACSYear:       c.ACSYear,
		CBPYear:       c.CBPYear,
		Timeout:       time.Duration(c.TimeoutSecs) * time.Second,
	}
}

// CacheConfig configures the indicator cache.
type CacheConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	TTLMinutes    int    `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
	MaxEntries    int    `yaml:"max_entries" mapstructure:"max_entries"`
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// StoreConfig configures the score history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ScoringConfig holds the tunable scoring constants.
type ScoringConfig struct {
	Weights            ejv.Weights `yaml:"weights" mapstructure:"weights"`
	NominalTransaction float64     `yaml:"nominal_transaction" mapstructure:"nominal_transaction"`
	BaseYear           int         `yaml:"base_year" mapstructure:"base_year"`
	WageInflation      float64     `yaml:"wage_inflation" mapstructure:"wage_inflation"`
}

// Params converts the section to engine parameters.
func (c ScoringConfig) Params() ejv.Params {
	return ejv.Params{
		Weights:       c.Weights,
		NominalAmount: c.NominalTransaction,
		BaseYear:      c.BaseYear,
		WageInflation: c.WageInflation,
	}
}

// OverpassConfig configures the Overpass proxy.
type OverpassConfig struct {
	Servers          []string `yaml:"servers" mapstructure:"servers"`
	TimeoutSecs      int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts      int      `yaml:"max_attempts" mapstructure:"max_attempts"`
	BackoffMillis    int      `yaml:"backoff_ms" mapstructure:"backoff_ms"`
	FailureThreshold int      `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int      `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// Proxy converts the section to a proxy config.
func (c OverpassConfig) Proxy() overpass.Config {
	return overpass.Config{
		Servers: c.Servers,
		Timeout: time.Duration(c.TimeoutSecs) * time.Second,
		Policy: resilience.NewPolicy(
			c.MaxAttempts,
			time.Duration(c.BackoffMillis)*time.Millisecond,
			c.FailureThreshold,
			time.Duration(c.ResetTimeoutSecs)*time.Second,
		),
	}
}

// AnthropicConfig holds Anthropic API settings for the assistant.
type AnthropicConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables take precedence.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		zap.L().Debug("config: .env not loaded", zap.Error(err))
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GEOEQUITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("anthropic.key", "GEOEQUITY_ANTHROPIC_KEY", "ANTHROPIC_API_KEY", "CLAUDE_API_KEY")
	_ = v.BindEnv("gateway.bls_api_key", "GEOEQUITY_GATEWAY_BLS_API_KEY", "BLS_API_KEY")
	_ = v.BindEnv("gateway.census_api_key", "GEOEQUITY_GATEWAY_CENSUS_API_KEY", "CENSUS_API_KEY")

	// Defaults
	weights := ejv.DefaultWeights()
	params := ejv.DefaultParams()
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.request_timeout_secs", 60)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("gateway.bls_base_url", "https://api.bls.gov/publicAPI/v2/timeseries/data")
	v.SetDefault("gateway.census_base_url", "https://api.census.gov/data")
	v.SetDefault("gateway.acs_year", 2022)
	v.SetDefault("gateway.cbp_year", 2021)
	v.SetDefault("gateway.timeout_secs", 10)
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.ttl_minutes", 60)
	v.SetDefault("cache.max_entries", 1000)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "geoequity.db")
	v.SetDefault("scoring.weights.fair_wage", weights.FairWage)
	v.SetDefault("scoring.weights.pay_equity", weights.PayEquity)
	v.SetDefault("scoring.weights.local_impact", weights.LocalImpact)
	v.SetDefault("scoring.weights.affordability", weights.Affordability)
	v.SetDefault("scoring.weights.environmental", weights.Environmental)
	v.SetDefault("scoring.nominal_transaction", params.NominalAmount)
	v.SetDefault("scoring.base_year", params.BaseYear)
	v.SetDefault("scoring.wage_inflation", params.WageInflation)
	v.SetDefault("overpass.servers", overpass.DefaultServers)
	v.SetDefault("overpass.timeout_secs", 30)
	v.SetDefault("overpass.max_attempts", 2)
	v.SetDefault("overpass.backoff_ms", 500)
	v.SetDefault("overpass.failure_threshold", 5)
	v.SetDefault("overpass.reset_timeout_secs", 60)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 500)
	v.SetDefault("anthropic.temperature", 0.7)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

var (
	cacheDrivers = map[string]bool{"memory": true, "redis": true, "none": true}
	storeDrivers = map[string]bool{"sqlite": true, "postgres": true, "none": true}
)

// Validate checks the configuration for the given command mode
// ("serve", "score", "migrate" or "pathways").
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Server.RequestTimeoutSecs < 0 {
			problems = append(problems, "server.request_timeout_secs must be >= 0")
		}
	case "migrate":
		if c.Store.Driver == "none" {
			problems = append(problems, "store.driver must not be none")
		}
	case "score", "pathways":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if err := c.Scoring.Params().Validate(); err != nil {
		problems = append(problems, "scoring: "+err.Error())
	}
	if !cacheDrivers[c.Cache.Driver] {
		problems = append(problems, "cache.driver must be memory, redis or none")
	}
	if c.Cache.Driver == "memory" && c.Cache.MaxEntries <= 0 {
		problems = append(problems, "cache.max_entries must be > 0")
	}
	if c.Cache.Driver == "redis" && c.Cache.RedisAddr == "" {
		problems = append(problems, "cache.redis_addr is required")
	}
	if !storeDrivers[c.Store.Driver] {
		problems = append(problems, "store.driver must be sqlite, postgres or none")
	}
	if c.Store.Driver != "none" && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}
	if c.Overpass.MaxAttempts < 0 || c.Overpass.TimeoutSecs < 0 {
		problems = append(problems, "overpass timeouts and attempts must be >= 0")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
