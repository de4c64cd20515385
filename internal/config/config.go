package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/mailrag/internal/domain"
)

// Storage drivers accepted by ledger.driver and vector.driver.
const (
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds the mailrag configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Redis     RedisConfig     `yaml:"redis"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Vector    VectorConfig    `yaml:"vector"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Retry     RetryConfig     `yaml:"retry"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Verify    VerifyConfig    `yaml:"verify"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings. No keys disables auth.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	DSN              string `yaml:"dsn"`
	MaxOpenConns     int    `yaml:"max_open_conns"`
	ReadinessTimeout int    `yaml:"readiness_timeout_sec"`
}

// LedgerConfig selects the dedup ledger backend.
type LedgerConfig struct {
	Driver string `yaml:"driver"` // redis (default), postgres, memory
}

// maxEFRuntime is the largest hnsw.ef_search pgvector accepts.
const maxEFRuntime = 1000

// VectorConfig selects the vector store backend and its geometry.
type VectorConfig struct {
	Driver          string `yaml:"driver"` // redis (default), postgres, memory
	Collection      string `yaml:"collection"`
	Dimensions      int    `yaml:"dimensions"`
	Metric          string `yaml:"metric"`
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
	HNSWEFRuntime   int    `yaml:"hnsw_ef_runtime"` // 0 = backend default
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKey            string  `yaml:"api_key"`
	Model             string  `yaml:"model"`
	Dimensions        int     `yaml:"dimensions"`
	BatchSize         int     `yaml:"batch_size"`
	Workers           int     `yaml:"workers"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
	Burst             int     `yaml:"burst"`
	TimeoutSec        int     `yaml:"timeout_sec"`
	Cache             bool    `yaml:"cache"` // requires redis
}

// LLMConfig holds chat model settings for answering and verification.
type LLMConfig struct {
	BaseURL         string  `yaml:"base_url"`
	APIKey          string  `yaml:"api_key"`
	Model           string  `yaml:"model"`
	Temperature     float64 `yaml:"temperature"`
	MaxPromptTokens int     `yaml:"max_prompt_tokens"`
	MaxTokens       int     `yaml:"max_tokens"` // 0 = provider default
	TimeoutSec      int     `yaml:"timeout_sec"`
	SystemPrompt    string  `yaml:"system_prompt"`
}

// RetryConfig bounds retries of remote calls.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	BaseDelayMS int `yaml:"base_delay_ms"`
	MaxDelayMS  int `yaml:"max_delay_ms"`
}

// ChunkingConfig holds chunker parameters, counted in characters.
type ChunkingConfig struct {
	MaxSize int `yaml:"max_size"`
	Overlap int `yaml:"overlap"`
}

// RetrievalConfig holds retrieval settings.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// VerifyConfig toggles the answer verification pass.
type VerifyConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads configuration from a YAML file by environment name (local, docker, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("%w: failed to read config %s: %w", domain.ErrConfiguration, configPath, err)
	}
	return Parse(data)
}

// Parse decodes YAML after env substitution, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: failed to parse config: %w", domain.ErrConfiguration, err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadDotEnv loads .env files into the process environment. Variables already set win.
// Missing files are ignored. With no paths it tries ./.env.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
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
		// a query makes up to three remote calls
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Redis.ReadinessTimeout <= 0 {
		c.Redis.ReadinessTimeout = 10
	}
	if c.Postgres.MaxOpenConns <= 0 {
		c.Postgres.MaxOpenConns = 16
	}
	if c.Postgres.ReadinessTimeout <= 0 {
		c.Postgres.ReadinessTimeout = 10
	}
	if c.Ledger.Driver == "" {
		c.Ledger.Driver = DriverRedis
	}

	space := domain.DefaultVectorSpace()
	if c.Vector.Driver == "" {
		c.Vector.Driver = DriverRedis
	}
	if c.Vector.Collection == "" {
		c.Vector.Collection = "emails"
	}
	if c.Vector.Metric == "" {
		c.Vector.Metric = space.Metric
	}
	if c.Vector.HNSWM <= 0 {
		c.Vector.HNSWM = 16
	}
	if c.Vector.HNSWEFConstruct <= 0 {
		c.Vector.HNSWEFConstruct = 200
	}

	if c.Embedding.Model == "" {
		c.Embedding.Model = space.Model
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = c.Vector.Dimensions
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = space.Dimensions
	}
	if c.Vector.Dimensions <= 0 {
		c.Vector.Dimensions = c.Embedding.Dimensions
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 64
	}
	if c.Embedding.Workers <= 0 {
		c.Embedding.Workers = 4
	}
	if c.Embedding.Burst <= 0 {
		c.Embedding.Burst = 1
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}

	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.MaxPromptTokens <= 0 {
		c.LLM.MaxPromptTokens = domain.DefaultMaxPromptTokens
	}
	if c.LLM.TimeoutSec <= 0 {
		c.LLM.TimeoutSec = 60
	}

	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 4
	}
	if c.Retry.BaseDelayMS <= 0 {
		c.Retry.BaseDelayMS = 200
	}
	if c.Retry.MaxDelayMS <= 0 {
		c.Retry.MaxDelayMS = 5000
	}

	if c.Chunking.MaxSize <= 0 {
		c.Chunking.MaxSize = domain.DefaultChunkSize
		if c.Chunking.Overlap == 0 {
			c.Chunking.Overlap = domain.DefaultChunkOverlap
		}
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = domain.DefaultTopK
	}
}

// Validate checks the configuration for correctness. Every error wraps domain.ErrConfiguration.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	for name, driver := range map[string]string{"ledger.driver": c.Ledger.Driver, "vector.driver": c.Vector.Driver} {
		switch driver {
		case DriverRedis, DriverPostgres, DriverMemory:
		default:
			return fmt.Errorf("%s must be %q, %q or %q, got %q", name, DriverRedis, DriverPostgres, DriverMemory, driver)
		}
	}
	if c.uses(DriverRedis) && len(c.Redis.Addrs) == 0 {
		return errors.New("redis.addrs is required for the redis driver")
	}
	if c.uses(DriverPostgres) && c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required for the postgres driver")
	}
	if c.Embedding.Cache && len(c.Redis.Addrs) == 0 {
		return errors.New("embedding.cache requires redis.addrs")
	}

	if c.Vector.Metric != domain.MetricCosine {
		return fmt.Errorf("vector.metric must be %q, got %q", domain.MetricCosine, c.Vector.Metric)
	}
	if c.Vector.HNSWEFRuntime < 0 || c.Vector.HNSWEFRuntime > maxEFRuntime {
		return fmt.Errorf("vector.hnsw_ef_runtime must be between 0 and %d, got %d", maxEFRuntime, c.Vector.HNSWEFRuntime)
	}
	if c.Vector.Dimensions != c.Embedding.Dimensions {
		return fmt.Errorf("vector.dimensions (%d) must equal embedding.dimensions (%d)",
			c.Vector.Dimensions, c.Embedding.Dimensions)
	}
	if c.Embedding.RequestsPerSecond < 0 {
		return fmt.Errorf("embedding.requests_per_second must not be negative, got %v", c.Embedding.RequestsPerSecond)
	}

	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.MaxSize {
		return fmt.Errorf("chunking.overlap must be in [0, %d), got %d", c.Chunking.MaxSize, c.Chunking.Overlap)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2, got %v", c.LLM.Temperature)
	}
	if c.Retry.MaxDelayMS < c.Retry.BaseDelayMS {
		return fmt.Errorf("retry.max_delay_ms (%d) must not be below retry.base_delay_ms (%d)",
			c.Retry.MaxDelayMS, c.Retry.BaseDelayMS)
	}
	return nil
}

func (c *Config) uses(driver string) bool {
	return c.Ledger.Driver == driver || c.Vector.Driver == driver
}

// RetryBaseDelay returns retry.base_delay_ms as a duration.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Retry.BaseDelayMS) * time.Millisecond
}

// RetryMaxDelay returns retry.max_delay_ms as a duration.
func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.Retry.MaxDelayMS) * time.Millisecond
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
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
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
