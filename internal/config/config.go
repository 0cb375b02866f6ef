// Package config loads runtime configuration from an optional YAML
// file, environment variables prefixed FINTEL_, and a local .env file,
// in ascending precedence of env over file over defaults.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"fintel/internal/scoring"
)

type Config struct {
	DataDir      string `mapstructure:"data_dir"`
	DatabaseFile string `mapstructure:"database_file"`
	CacheFile    string `mapstructure:"cache_file"`
	VectorFile   string `mapstructure:"vector_file"`

	Model      string        `mapstructure:"model"`
	MaxTokens  int64         `mapstructure:"max_tokens"`
	LLMTimeout time.Duration `mapstructure:"llm_timeout"`

	FetchLimit         int      `mapstructure:"fetch_limit"`
	RelevanceThreshold float64  `mapstructure:"relevance_threshold"`
	TrendingDays       int      `mapstructure:"trending_days"`
	Competitors        []string `mapstructure:"competitors"`

	SocialTTL     time.Duration `mapstructure:"social_ttl"`
	MarketTTL     time.Duration `mapstructure:"market_ttl"`
	CompetitorTTL time.Duration `mapstructure:"competitor_ttl"`

	RetentionDays int `mapstructure:"retention_days"`

	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	LogLevel     string `mapstructure:"log_level"`

	// Keyword weights and segment term tables fall back to the scoring
	// defaults when not configured.
	KeywordWeights map[string]float64  `mapstructure:"keyword_weights"`
	Segments       map[string][]string `mapstructure:"segments"`
}

func Load(configFile string) (Config, error) {
	// A missing .env is fine; explicit env vars still apply.
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("data_dir", "data")
	v.SetDefault("database_file", "fintel.db")
	v.SetDefault("cache_file", "cache.db")
	v.SetDefault("vector_file", "vectors.db")
	v.SetDefault("model", "")
	v.SetDefault("max_tokens", 4096)
	v.SetDefault("llm_timeout", 60*time.Second)
	v.SetDefault("fetch_limit", 50)
	v.SetDefault("relevance_threshold", scoring.DefaultRelevanceThreshold)
	v.SetDefault("trending_days", 7)
	v.SetDefault("competitors", []string{
		"MTN MoMo", "Airtel Money", "Chipper Cash", "Wave", "SafeBoda Wallet",
		"Stanbic FlexiPay", "Centenary Bank", "Absa Uganda",
	})
	v.SetDefault("social_ttl", 30*time.Minute)
	v.SetDefault("market_ttl", time.Hour)
	v.SetDefault("competitor_ttl", 2*time.Hour)
	v.SetDefault("retention_days", 90)
	v.SetDefault("otlp_endpoint", "")
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("FINTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(cfg.KeywordWeights) == 0 {
		cfg.KeywordWeights = scoring.DefaultKeywordWeights
	}
	if len(cfg.Segments) == 0 {
		cfg.Segments = scoring.DefaultSegments
	}
	return cfg, nil
}

func (c Config) DatabasePath() string { return filepath.Join(c.DataDir, c.DatabaseFile) }
func (c Config) CachePath() string    { return filepath.Join(c.DataDir, c.CacheFile) }
func (c Config) VectorPath() string   { return filepath.Join(c.DataDir, c.VectorFile) }
