package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/search/mode"
	"github.com/kailas-cloud/recall/internal/domain/search/request"
	"github.com/kailas-cloud/recall/internal/domain/search/score"
	"github.com/kailas-cloud/recall/internal/domain/search/strategy"
	"github.com/kailas-cloud/recall/internal/domain/source"
	"github.com/kailas-cloud/recall/internal/domain/tenant"
	"github.com/kailas-cloud/recall/internal/usecase/quota"
	searchuc "github.com/kailas-cloud/recall/internal/usecase/search"
)

// Config holds the recall API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Auth      AuthConfig      `yaml:"auth"`
	Search    SearchConfig    `yaml:"search"`
	Fallback  FallbackConfig  `yaml:"fallback"`
	Quota     QuotaConfig     `yaml:"quota"`
	Index     IndexConfig     `yaml:"index"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// TracingConfig holds OTLP trace export settings. Export is off without an endpoint.
type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"` // default 1 when an endpoint is set
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []APIKeyConfig `yaml:"api_keys"`
}

// APIKeyConfig binds one API key to the tenant it authenticates.
type APIKeyConfig struct {
	Key             string `yaml:"key"`
	TenantID        string `yaml:"tenant_id"`
	DefaultCurrency string `yaml:"default_currency"`
	Name            string `yaml:"name"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Redis connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// SearchConfig holds request bounds, orchestrator timing and scoring profiles.
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
	TimeoutMs    int `yaml:"timeout_ms"`
	// Depth is the minimum candidate pool per source.
	Depth int `yaml:"depth"`
	// SimilarityThreshold, when set, replaces the vector floor of every profile.
	SimilarityThreshold *float64                 `yaml:"similarity_threshold"`
	AggregationMode     string                   `yaml:"aggregation_mode"`
	SourcePriority      []string                 `yaml:"source_priority"`
	Profiles            map[string]ProfileConfig `yaml:"profiles"`
}

// ProfileConfig overrides one scoring profile. Omitted profiles keep built-in values.
type ProfileConfig struct {
	Weights WeightsConfig `yaml:"weights"`
	Floors  FloorsConfig  `yaml:"floors"`
}

// WeightsConfig is the channel blend of a profile.
type WeightsConfig struct {
	Semantic float64 `yaml:"semantic"`
	Keyword  float64 `yaml:"keyword"`
	Trigram  float64 `yaml:"trigram"`
}

// FloorsConfig is the per-channel admission floor of a profile.
type FloorsConfig struct {
	Vector  float64 `yaml:"vector"`
	Keyword float64 `yaml:"keyword"`
	Trigram float64 `yaml:"trigram"`
}

// FallbackConfig holds degraded-mode settings.
type FallbackConfig struct {
	TimeoutMs        int `yaml:"timeout_ms"`
	RecentWindowDays int `yaml:"recent_window_days"`
}

// QuotaConfig holds the per-tenant monthly search allowance.
type QuotaConfig struct {
	MonthlySearches int64            `yaml:"monthly_searches"` // 0 = unlimited
	Action          string           `yaml:"action"`           // "reject" (default) | "warn"
	Overrides       map[string]int64 `yaml:"overrides"`        // tenant id -> monthly searches
}

// IndexConfig holds index bootstrap settings.
type IndexConfig struct {
	EnsureOnStart   bool   `yaml:"ensure_on_start"`
	Algorithm       string `yaml:"algorithm"` // hnsw (default) | flat
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// EmbeddingConfig holds query embedding settings.
type EmbeddingConfig struct {
	Providers  map[string]ProviderConfig `yaml:"providers"`
	Vectorizer VectorizerConfig          `yaml:"vectorizer"`
	Cache      CacheConfig               `yaml:"cache"`
}

// CacheConfig holds the query embedding cache settings.
type CacheConfig struct {
	Enabled  bool `yaml:"enabled"`
	TTLHours int  `yaml:"ttl_hours"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// ProviderConfig holds embedding provider settings.
type ProviderConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	TimeoutMs  int    `yaml:"timeout_ms"`
	MaxRetries int    `yaml:"max_retries"`

	// RequestsPerSecond limits provider calls from this process; 0 disables it.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`

	Budget BudgetConfig `yaml:"budget"`
}

// VectorizerConfig holds the model used for queries. Records are embedded by
// the indexing pipeline with the same model and the document instruction.
type VectorizerConfig struct {
	Provider         string `yaml:"provider"`
	Model            string `yaml:"model"`
	Dimensions       int    `yaml:"dimensions"`
	QueryInstruction string `yaml:"query_instruction"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = request.DefaultLimit
	}
	if c.Search.MaxLimit <= 0 {
		c.Search.MaxLimit = request.MaxLimit
	}
	if c.Search.TimeoutMs <= 0 {
		c.Search.TimeoutMs = 5000
	}
	if c.Search.Depth <= 0 {
		c.Search.Depth = 50
	}
	if c.Search.AggregationMode == "" {
		c.Search.AggregationMode = string(mode.Relevance)
	}
	if c.Fallback.TimeoutMs <= 0 {
		c.Fallback.TimeoutMs = 2000
	}
	if c.Fallback.RecentWindowDays <= 0 {
		c.Fallback.RecentWindowDays = 30
	}
	if c.Quota.Action == "" {
		c.Quota.Action = string(quota.ActionReject)
	}
	if c.Index.Algorithm == "" {
		c.Index.Algorithm = "hnsw"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = domain.DefaultKeyPrefix
	}
	if c.Embedding.Cache.TTLHours <= 0 {
		c.Embedding.Cache.TTLHours = 24 * 7
	}
	if c.Tracing.Endpoint != "" && c.Tracing.SampleRatio == 0 {
		c.Tracing.SampleRatio = 1
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return errors.New("database.addrs is required")
	}
	if err := c.Auth.validate(); err != nil {
		return err
	}
	if err := c.validateEmbedding(); err != nil {
		return err
	}
	if c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("search.default_limit %d exceeds search.max_limit %d",
			c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	if !mode.Aggregation(c.Search.AggregationMode).IsValid() {
		return fmt.Errorf("search.aggregation_mode must be \"relevance\" or \"grouped\", got %q",
			c.Search.AggregationMode)
	}
	switch quota.Action(c.Quota.Action) {
	case quota.ActionReject, quota.ActionWarn:
	default:
		return fmt.Errorf("quota.action must be \"warn\" or \"reject\", got %q", c.Quota.Action)
	}
	switch c.Index.Algorithm {
	case "hnsw", "flat":
	default:
		return fmt.Errorf("index.algorithm must be \"hnsw\" or \"flat\", got %q", c.Index.Algorithm)
	}
	if c.Index.EnsureOnStart && c.Embedding.Vectorizer.Dimensions <= 0 {
		return errors.New("embedding.vectorizer.dimensions is required when index.ensure_on_start is set")
	}
	if p := c.Embedding.Providers[c.Embedding.Vectorizer.Provider]; p.RequestsPerSecond < 0 || p.Burst < 0 {
		return errors.New("embedding provider requests_per_second and burst must not be negative")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1, got %v", c.Tracing.SampleRatio)
	}
	if _, err := c.SearchTuning(); err != nil {
		return err
	}
	return nil
}

func (a AuthConfig) validate() error {
	if len(a.APIKeys) == 0 {
		return errors.New("auth.api_keys must contain at least one key")
	}
	seen := make(map[string]struct{}, len(a.APIKeys))
	for i, k := range a.APIKeys {
		if strings.TrimSpace(k.Key) == "" {
			return fmt.Errorf("auth.api_keys[%d].key is required", i)
		}
		if strings.TrimSpace(k.TenantID) == "" {
			return fmt.Errorf("auth.api_keys[%d].tenant_id is required", i)
		}
		if _, dup := seen[k.Key]; dup {
			return fmt.Errorf("auth.api_keys[%d]: duplicate key", i)
		}
		seen[k.Key] = struct{}{}
	}
	return nil
}

func (c *Config) validateEmbedding() error {
	v := c.Embedding.Vectorizer
	if v.Provider == "" || v.Model == "" {
		return errors.New("embedding.vectorizer.provider and model are required")
	}
	p, ok := c.Embedding.Providers[v.Provider]
	if !ok {
		return fmt.Errorf("embedding.vectorizer.provider %q is not configured", v.Provider)
	}
	switch p.Budget.Action {
	case "", "warn", "reject":
	default:
		return fmt.Errorf(
			"embedding.providers.%s.budget.action must be \"warn\" or \"reject\", got %q",
			v.Provider, p.Budget.Action,
		)
	}
	return nil
}

// Identities maps every API key to the tenant it authenticates.
func (a AuthConfig) Identities() map[string]tenant.Identity {
	out := make(map[string]tenant.Identity, len(a.APIKeys))
	for _, k := range a.APIKeys {
		out[k.Key] = tenant.Identity{
			ID:              strings.TrimSpace(k.TenantID),
			DefaultCurrency: strings.ToUpper(strings.TrimSpace(k.DefaultCurrency)),
			KeyName:         k.Name,
		}
	}
	return out
}

// RequestOptions returns the inbound request bounds.
func (c *Config) RequestOptions() request.Options {
	return request.Options{
		DefaultLimit: c.Search.DefaultLimit,
		MaxLimit:     c.Search.MaxLimit,
		DefaultMode:  mode.Aggregation(c.Search.AggregationMode),
	}
}

// QuotaTuning returns the quota checker settings.
func (c *Config) QuotaTuning() quota.Config {
	return quota.Config{
		MonthlyLimit: c.Quota.MonthlySearches,
		Action:       quota.Action(c.Quota.Action),
		Overrides:    c.Quota.Overrides,
	}
}

// SearchTuning builds the orchestrator settings: built-in profiles overlaid
// with configured ones.
func (c *Config) SearchTuning() (searchuc.Config, error) {
	sc := searchuc.DefaultConfig()
	sc.Timeout = time.Duration(c.Search.TimeoutMs) * time.Millisecond
	sc.FallbackTimeout = time.Duration(c.Fallback.TimeoutMs) * time.Millisecond
	sc.RecentWindow = time.Duration(c.Fallback.RecentWindowDays) * 24 * time.Hour
	sc.Depth = c.Search.Depth

	if len(c.Search.SourcePriority) > 0 {
		priority, err := source.ParseTypes(c.Search.SourcePriority)
		if err != nil {
			return searchuc.Config{}, fmt.Errorf("search.source_priority: %w", err)
		}
		sc.Priority = priority
	}

	for name, pc := range c.Search.Profiles {
		p := strategy.Profile(name)
		if _, ok := sc.Profiles[p]; !ok {
			return searchuc.Config{}, fmt.Errorf("search.profiles: unknown profile %q", name)
		}
		sc.Profiles[p] = searchuc.Profile{
			Weights: score.Weights{Semantic: pc.Weights.Semantic, Keyword: pc.Weights.Keyword, Trigram: pc.Weights.Trigram},
			Floors:  score.Floors{Vector: pc.Floors.Vector, Keyword: pc.Floors.Keyword, Trigram: pc.Floors.Trigram},
		}
	}

	if t := c.Search.SimilarityThreshold; t != nil {
		for name, p := range sc.Profiles {
			p.Floors.Vector = *t
			sc.Profiles[name] = p
		}
	}

	if err := sc.Validate(); err != nil {
		return searchuc.Config{}, fmt.Errorf("search: %w", err)
	}
	return sc, nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
